package reminders

import (
	"net/http"
	"strings"

	"medication-tracker/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, s *Scheduler) {
	// "Descartar recordatorios de hoy": silencia el resto del día sin tocar
	// el ledger ni la adherencia. Idempotente.
	r.Post("/reminders/dismiss-today", dismissTodayHandler(s))
}

func dismissTodayHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		s.DismissToday()
		w.WriteHeader(http.StatusNoContent)
	}
}
