package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"medication-tracker/internal/adapters/auth/healthid"
	"medication-tracker/internal/adapters/capabilities/plansfeatures"
	"medication-tracker/internal/adapters/suggest/recetai"
	"medication-tracker/internal/domain/medications"
	"medication-tracker/internal/platform/logger"
	"medication-tracker/internal/ports/auth"
	"medication-tracker/internal/ports/capabilities"
	"medication-tracker/internal/reminders"
	"medication-tracker/internal/router"
)

func main() {
	log := logger.NewFromEnv()

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	handler, scheduler := router.NewRouter(router.Options{
		AuthVerifier: buildVerifier(log),
		Extractor:    buildExtractor(log),
		Capabilities: buildCapabilities(),
		Log:          log,
		Reminders:    remindersConfig(),
	})

	if err := scheduler.Start(); err != nil {
		log.Error("reminder scheduler start failed", map[string]any{"err": err.Error()})
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting server", map[string]any{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", map[string]any{"err": err.Error()})
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down", nil)
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", map[string]any{"err": err.Error()})
	}
}

// buildVerifier arma el verifier de identidad si hay config.
// Sin AUTH_BASE_URL queda nil => modo dev con X-Debug-User-ID.
func buildVerifier(log logger.Logger) auth.AuthVerifier {
	baseURL := os.Getenv("AUTH_BASE_URL")
	if baseURL == "" {
		log.Warn("AUTH_BASE_URL not set, running in dev auth mode", nil)
		return nil
	}

	client, err := healthid.NewClient(healthid.Config{
		BaseURL: baseURL,
		APIKey:  os.Getenv("AUTH_API_KEY"),
	})
	if err != nil {
		log.Error("healthid client config invalid", map[string]any{"err": err.Error()})
		os.Exit(1)
	}
	return healthid.NewVerifier(client)
}

func buildExtractor(log logger.Logger) medications.PrescriptionExtractor {
	baseURL := os.Getenv("EXTRACT_BASE_URL")
	if baseURL == "" {
		log.Info("EXTRACT_BASE_URL not set, prescription extraction disabled", nil)
		return nil
	}

	client, err := recetai.NewClient(recetai.Config{
		BaseURL: baseURL,
		APIKey:  os.Getenv("EXTRACT_API_KEY"),
	})
	if err != nil {
		log.Error("recetai client config invalid", map[string]any{"err": err.Error()})
		os.Exit(1)
	}
	return client
}

func buildCapabilities() capabilities.Resolver {
	client, err := plansfeatures.NewClient(plansfeatures.Config{
		BaseURL: os.Getenv("PLANS_BASE_URL"),
		APIKey:  os.Getenv("PLANS_API_KEY"),
	})
	if err != nil {
		client = nil
	}
	return plansfeatures.NewResolver(client)
}

func remindersConfig() reminders.Config {
	cfg := reminders.Config{}
	if v := os.Getenv("REMINDER_POLL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PollInterval = time.Duration(n) * time.Second
		}
	}
	return cfg
}
