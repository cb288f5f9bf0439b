package medications

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// DeleteListener recibe el aviso de borrado para cancelar recordatorios
// pendientes. Puede ser nil (tests, herramientas).
type DeleteListener interface {
	MedicationDeleted(medID string)
}

type Service struct {
	repo     Repository
	now      func() time.Time
	onDelete DeleteListener
}

func NewService(repo Repository, onDelete DeleteListener) *Service {
	return &Service{
		repo:     repo,
		now:      time.Now,
		onDelete: onDelete,
	}
}

type CreateInput struct {
	Name         string
	Dosage       string
	Frequency    string
	Instructions string

	ScheduleType ScheduleType
	FixedTimes   []string
	MealTriggers []MealTrigger
}

func (s *Service) Create(ctx context.Context, ownerUserID string, in CreateInput) (Medication, error) {
	if strings.TrimSpace(ownerUserID) == "" {
		return Medication{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.Name) == "" {
		return Medication{}, ErrInvalidInput
	}

	st, fixed, triggers, err := validateSchedule(in.ScheduleType, in.FixedTimes, in.MealTriggers)
	if err != nil {
		return Medication{}, err
	}

	now := s.now()
	m := Medication{
		ID:           uuid.NewString(),
		OwnerUserID:  ownerUserID,
		Name:         strings.TrimSpace(in.Name),
		Dosage:       strings.TrimSpace(in.Dosage),
		Frequency:    strings.TrimSpace(in.Frequency),
		Instructions: strings.TrimSpace(in.Instructions),
		ScheduleType: st,
		FixedTimes:   fixed,
		MealTriggers: triggers,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return Medication{}, err
	}
	return m, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Medication{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByOwner(ctx context.Context, ownerUserID string) ([]Medication, error) {
	return s.repo.ListByOwner(ctx, ownerUserID)
}

type UpdateInput struct {
	// Punteros para PATCH real: nil = no tocar.
	Name         *string
	Dosage       *string
	Frequency    *string
	Instructions *string

	// Cambiar horario reemplaza el campo activo completo.
	// Editarlo cambia retroactivamente el objetivo del día en curso.
	ScheduleType *ScheduleType
	FixedTimes   []string
	MealTriggers []MealTrigger
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Medication{}, ErrInvalidInput
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Medication{}, ErrNotFound
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Medication{}, ErrInvalidInput
		}
		m.Name = name
	}
	if in.Dosage != nil {
		m.Dosage = strings.TrimSpace(*in.Dosage)
	}
	if in.Frequency != nil {
		m.Frequency = strings.TrimSpace(*in.Frequency)
	}
	if in.Instructions != nil {
		m.Instructions = strings.TrimSpace(*in.Instructions)
	}

	if in.ScheduleType != nil {
		st, fixed, triggers, err := validateSchedule(*in.ScheduleType, in.FixedTimes, in.MealTriggers)
		if err != nil {
			return Medication{}, err
		}
		m.ScheduleType = st
		m.FixedTimes = fixed
		m.MealTriggers = triggers
	}

	m.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, m); err != nil {
		return Medication{}, err
	}
	return m, nil
}

// Delete quita el medicamento de la lista. Las entradas históricas del
// ledger se conservan (quedan huérfanas, con el nombre como snapshot).
func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidInput
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.onDelete != nil {
		s.onDelete.MedicationDeleted(id)
	}
	return nil
}

// OwnerOf expone el ownerUserID de un medicamento.
// Se usa para evitar ciclos de imports entre módulos (medications <-> doses/caregivers).
func (s *Service) OwnerOf(ctx context.Context, medID string) (string, error) {
	m, err := s.GetByID(ctx, medID)
	if err != nil {
		return "", err
	}
	return m.OwnerUserID, nil
}

// validateSchedule valida estrictamente la entrada manual.
// Para sugerencias de IA (entrada no confiable) usar Normalize, que aplica
// defaults en vez de rechazar.
func validateSchedule(st ScheduleType, fixed []string, triggers []MealTrigger) (ScheduleType, []string, []MealTrigger, error) {
	switch st {
	case ScheduleFixed:
		times := dedupeTimes(fixed)
		if len(times) == 0 {
			return "", nil, nil, ErrInvalidInput
		}
		for _, t := range times {
			if !ValidClockTime(t) {
				return "", nil, nil, ErrInvalidInput
			}
		}
		return ScheduleFixed, times, nil, nil

	case ScheduleMealRelative:
		tt := dedupeTriggers(triggers)
		if len(tt) == 0 {
			return "", nil, nil, ErrInvalidInput
		}
		for _, t := range tt {
			if !validMeal(t.Meal) || !validTiming(t.Timing) {
				return "", nil, nil, ErrInvalidInput
			}
		}
		return ScheduleMealRelative, nil, tt, nil
	}
	return "", nil, nil, ErrInvalidInput
}

func validMeal(m Meal) bool {
	switch m {
	case MealBreakfast, MealLunch, MealDinner:
		return true
	}
	return false
}

func validTiming(t MealTiming) bool {
	return t == TimingBefore || t == TimingAfter
}

func dedupeTimes(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, raw := range in {
		t := strings.TrimSpace(raw)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func dedupeTriggers(in []MealTrigger) []MealTrigger {
	seen := map[MealTrigger]struct{}{}
	out := make([]MealTrigger, 0, len(in))
	for _, t := range in {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
