package meals

import (
	"time"

	"medication-tracker/internal/domain/medications"
)

// MealLog registra que el usuario comió. Es el evento externo que dispara
// los recordatorios meal_relative; no guarda contenido nutricional.
type MealLog struct {
	ID          string
	OwnerUserID string

	Meal     medications.Meal
	LoggedAt time.Time
}
