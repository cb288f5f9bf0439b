package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"medication-tracker/internal/domain/doses"
	"medication-tracker/internal/domain/meals"
)

type mealRepo struct {
	mu   sync.RWMutex
	logs []meals.MealLog
}

func NewMealRepo() meals.Repository {
	return &mealRepo{
		logs: make([]meals.MealLog, 0),
	}
}

func (r *mealRepo) Create(ctx context.Context, l meals.MealLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l.ID == "" {
		return errors.New("meal log id required")
	}
	r.logs = append(r.logs, l)
	return nil
}

func (r *mealRepo) ListOnDay(ctx context.Context, ownerUserID string, day time.Time) ([]meals.MealLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]meals.MealLog, 0)
	for _, l := range r.logs {
		if l.OwnerUserID == ownerUserID && doses.SameCalendarDay(day, l.LoggedAt) {
			out = append(out, l)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LoggedAt.After(out[j].LoggedAt)
	})

	return out, nil
}
