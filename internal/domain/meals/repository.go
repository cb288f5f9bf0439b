package meals

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, l MealLog) error
	// ListOnDay devuelve las comidas del dueño en la fecha (calendario local)
	// de day, más reciente primero.
	ListOnDay(ctx context.Context, ownerUserID string, day time.Time) ([]MealLog, error)
}
