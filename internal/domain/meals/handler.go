package meals

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"medication-tracker/internal/domain/medications"
	"medication-tracker/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/meals", func(mr chi.Router) {
		mr.Post("/", logMealHandler(svc))
		mr.Get("/", listTodayMealsHandler(svc))
	})
}

type logMealRequest struct {
	Meal string `json:"meal" enums:"breakfast,lunch,dinner"`
}

type mealLogResponse struct {
	ID       string    `json:"id"`
	Meal     string    `json:"meal"`
	LoggedAt time.Time `json:"logged_at"`
}

// logMealHandler godoc
// @Summary Registrar comida
// @Description Registra que el usuario comió. Dispara los recordatorios meal_relative: los "before" pendientes avisan de inmediato; los "after" agendan un recordatorio diferido.
// @Tags meals
// @Accept json
// @Produce json
// @Param payload body logMealRequest true "Comida"
// @Success 201 {object} mealLogResponse
// @Failure 400 {string} string "invalid json / comida desconocida"
// @Failure 401 {string} string "unauthorized"
// @Router /meals [post]
func logMealHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req logMealRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		l, err := svc.Log(r.Context(), claims.UserID, medications.Meal(req.Meal))
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				http.Error(w, "meal must be breakfast, lunch or dinner", http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, toMealLogResponse(l))
	}
}

func listTodayMealsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListToday(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]mealLogResponse, 0, len(items))
		for _, l := range items {
			out = append(out, toMealLogResponse(l))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func toMealLogResponse(l MealLog) mealLogResponse {
	return mealLogResponse{
		ID:       l.ID,
		Meal:     string(l.Meal),
		LoggedAt: l.LoggedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
