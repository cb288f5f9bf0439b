package doses

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
	ErrNotFound     = errors.New("not found")
)

// DefaultNote se usa cuando el registro no trae contexto.
const DefaultNote = "Manual"

// MedicationLookup evita acoplar el recorder al service completo de
// medications (lo satisfacen el service y el repo de medications).
type MedicationLookup interface {
	GetByID(ctx context.Context, id string) (medications.Medication, error)
}

// AdherenceListener recibe cada cambio de adherencia. Lo implementa el
// scheduler de recordatorios para cancelar timers al completar el día y
// rearmarlos tras un undo. Puede ser nil.
type AdherenceListener interface {
	AdherenceChanged(medID string, a Adherence)
}

// Service es el recorder: el único componente que muta el ledger.
type Service struct {
	ledger   Repository
	meds     MedicationLookup
	listener AdherenceListener
	now      func() time.Time
}

func NewService(ledger Repository, meds MedicationLookup, listener AdherenceListener) *Service {
	return &Service{
		ledger:   ledger,
		meds:     meds,
		listener: listener,
		now:      time.Now,
	}
}

// SetListener conecta el scheduler una vez construidos ambos: el scheduler
// consulta Status de este service y este service le avisa los cambios.
func (s *Service) SetListener(l AdherenceListener) {
	s.listener = l
}

// RecordResult distingue el no-op silencioso (medicamento inexistente) de un
// registro efectivo, sin convertirlo en error.
type RecordResult struct {
	Recorded  bool
	Entry     Entry
	Adherence Adherence
}

// Record agrega exactamente una entrada taken con el nombre actual del
// medicamento. No es idempotente: después de completar el día sigue
// agregando (Completed simplemente se mantiene en true).
// Un medID que no resuelve degrada a no-op sin error.
func (s *Service) Record(ctx context.Context, medID, note string) (RecordResult, error) {
	medID = strings.TrimSpace(medID)
	if medID == "" {
		return RecordResult{}, ErrInvalidInput
	}

	med, err := s.meds.GetByID(ctx, medID)
	if err != nil {
		return RecordResult{}, nil
	}

	note = strings.TrimSpace(note)
	if note == "" {
		note = DefaultNote
	}

	now := s.now()
	e := Entry{
		ID:           uuid.NewString(),
		MedicationID: med.ID,
		MedName:      med.Name,
		OwnerUserID:  med.OwnerUserID,
		TakenAt:      now,
		Status:       StatusTaken,
		Note:         note,
	}

	if err := s.ledger.Append(ctx, e); err != nil {
		return RecordResult{}, err
	}

	a, err := s.adherenceOn(ctx, med, now)
	if err != nil {
		return RecordResult{}, err
	}
	s.notify(med.ID, a)

	return RecordResult{Recorded: true, Entry: e, Adherence: a}, nil
}

// UndoResult es el espejo de RecordResult para el undo.
type UndoResult struct {
	Undone    bool
	Entry     Entry
	Adherence Adherence
}

// Undo quita la entrada más reciente de hoy para el medicamento. No toca
// días anteriores ni otros medicamentos; sin entrada de hoy es no-op.
func (s *Service) Undo(ctx context.Context, medID string) (UndoResult, error) {
	medID = strings.TrimSpace(medID)
	if medID == "" {
		return UndoResult{}, ErrInvalidInput
	}

	med, err := s.meds.GetByID(ctx, medID)
	if err != nil {
		return UndoResult{}, nil
	}

	now := s.now()
	removed, ok, err := s.ledger.RemoveMostRecentOnDay(ctx, med.ID, now)
	if err != nil {
		return UndoResult{}, err
	}

	a, err := s.adherenceOn(ctx, med, now)
	if err != nil {
		return UndoResult{}, err
	}
	if ok {
		// Puede transicionar Completed -> Pending; el scheduler rearma.
		s.notify(med.ID, a)
	}

	return UndoResult{Undone: ok, Entry: removed, Adherence: a}, nil
}

// Status recalcula la adherencia de hoy desde el ledger.
func (s *Service) Status(ctx context.Context, medID string) (Adherence, error) {
	medID = strings.TrimSpace(medID)
	if medID == "" {
		return Adherence{}, ErrInvalidInput
	}
	med, err := s.meds.GetByID(ctx, medID)
	if err != nil {
		return Adherence{}, ErrNotFound
	}
	return s.adherenceOn(ctx, med, s.now())
}

// MedicationStatus empareja el medicamento con su adherencia del día.
type MedicationStatus struct {
	Medication medications.Medication
	Adherence  Adherence
}

// StatusFor evalúa una lista ya resuelta de medicamentos (la usa el handler
// de listado y el scheduler en cada barrido).
func (s *Service) StatusFor(ctx context.Context, meds []medications.Medication) ([]MedicationStatus, error) {
	now := s.now()
	out := make([]MedicationStatus, 0, len(meds))
	for _, med := range meds {
		a, err := s.adherenceOn(ctx, med, now)
		if err != nil {
			return nil, err
		}
		out = append(out, MedicationStatus{Medication: med, Adherence: a})
	}
	return out, nil
}

// History devuelve el historial del dueño, más reciente primero.
func (s *Service) History(ctx context.Context, ownerUserID string, limit int) ([]Entry, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return nil, ErrInvalidInput
	}
	return s.ledger.ListByOwner(ctx, ownerUserID, limit)
}

// HistoryByMedication devuelve el historial de un medicamento, más reciente
// primero. Funciona también para medicamentos ya borrados: el ledger conserva
// sus entradas.
func (s *Service) HistoryByMedication(ctx context.Context, medID string, limit int) ([]Entry, error) {
	medID = strings.TrimSpace(medID)
	if medID == "" {
		return nil, ErrInvalidInput
	}
	return s.ledger.ListByMedication(ctx, medID, limit)
}

func (s *Service) adherenceOn(ctx context.Context, med medications.Medication, day time.Time) (Adherence, error) {
	taken, err := s.ledger.CountOnDay(ctx, med.ID, day)
	if err != nil {
		return Adherence{}, err
	}
	return Evaluate(medications.DailyTarget(med), taken), nil
}

func (s *Service) notify(medID string, a Adherence) {
	if s.listener != nil {
		s.listener.AdherenceChanged(medID, a)
	}
}
