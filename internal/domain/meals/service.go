package meals

import (
	"context"
	"errors"
	"strings"
	"time"

	"medication-tracker/internal/domain/medications"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
)

// MealListener recibe el evento "comida registrada". Lo implementa el
// scheduler de recordatorios. Puede ser nil.
type MealListener interface {
	MealLogged(ownerUserID string, meal medications.Meal)
}

type Service struct {
	repo     Repository
	listener MealListener
	now      func() time.Time
}

func NewService(repo Repository, listener MealListener) *Service {
	return &Service{
		repo:     repo,
		listener: listener,
		now:      time.Now,
	}
}

// Log registra la comida y avisa al scheduler. El aviso es best-effort:
// los recordatorios son advisory y no condicionan la escritura.
func (s *Service) Log(ctx context.Context, ownerUserID string, meal medications.Meal) (MealLog, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return MealLog{}, ErrInvalidInput
	}

	meal = medications.Meal(strings.ToLower(strings.TrimSpace(string(meal))))
	switch meal {
	case medications.MealBreakfast, medications.MealLunch, medications.MealDinner:
	default:
		return MealLog{}, ErrInvalidInput
	}

	l := MealLog{
		ID:          uuid.NewString(),
		OwnerUserID: ownerUserID,
		Meal:        meal,
		LoggedAt:    s.now(),
	}

	if err := s.repo.Create(ctx, l); err != nil {
		return MealLog{}, err
	}

	if s.listener != nil {
		s.listener.MealLogged(ownerUserID, meal)
	}
	return l, nil
}

// ListToday devuelve las comidas registradas hoy por el dueño.
func (s *Service) ListToday(ctx context.Context, ownerUserID string) ([]MealLog, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListOnDay(ctx, ownerUserID, s.now())
}
