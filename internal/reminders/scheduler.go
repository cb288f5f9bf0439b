package reminders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"medication-tracker/internal/domain/doses"
	"medication-tracker/internal/domain/medications"
	"medication-tracker/internal/platform/logger"
	"medication-tracker/internal/ports/notify"
)

// Config del scheduler. Los ceros toman los defaults del flujo de
// recordatorios: barrido cada 30s, ventana puntual de 2m, escalada a los 30m,
// toma post-comida a los 15m con escalada 30m después.
type Config struct {
	PollInterval      time.Duration
	OnTimeWindow      time.Duration
	EscalateAfter     time.Duration
	AfterMealDelay    time.Duration
	AfterMealEscalate time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.OnTimeWindow <= 0 {
		c.OnTimeWindow = 2 * time.Minute
	}
	if c.EscalateAfter <= 0 {
		c.EscalateAfter = 30 * time.Minute
	}
	if c.AfterMealDelay <= 0 {
		c.AfterMealDelay = 15 * time.Minute
	}
	if c.AfterMealEscalate <= 0 {
		c.AfterMealEscalate = 30 * time.Minute
	}
	return c
}

// MedicationSource es lo que el scheduler necesita de medications
// (lo satisface medications.Repository).
type MedicationSource interface {
	GetByID(ctx context.Context, id string) (medications.Medication, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]medications.Medication, error)
	ListAll(ctx context.Context) ([]medications.Medication, error)
}

// AdherenceSource recalcula la adherencia fresca desde el ledger
// (lo satisface *doses.Service).
type AdherenceSource interface {
	Status(ctx context.Context, medID string) (doses.Adherence, error)
}

// Scheduler decide qué recordatorios emitir. Es puramente advisory: ningún
// fallo acá toca el ledger ni la adherencia, que siempre se rederivan.
type Scheduler struct {
	cfg       Config
	meds      MedicationSource
	adherence AdherenceSource
	notifier  notify.Notifier
	log       logger.Logger
	now       func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	mu sync.Mutex
	// sent dedupa por (medID, hora-o-comida, fecha): a lo sumo un primario y
	// una escalada por vencimiento por día aunque el barrido corra cada 30s.
	sent    map[string]struct{}
	sentDay string
	// timers pendientes de recordatorios post-comida, cancelables por medID.
	timers map[string][]*time.Timer
	// dismissedDay silencia el resto del día en curso (operación "descartar
	// recordatorios de hoy"; no es el corte de día, que sale del ledger).
	dismissedDay string
}

func NewScheduler(cfg Config, meds MedicationSource, adherence AdherenceSource, notifier notify.Notifier, log logger.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:       cfg.withDefaults(),
		meds:      meds,
		adherence: adherence,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		sent:      make(map[string]struct{}),
		timers:    make(map[string][]*time.Timer),
	}
}

// Start lanza el barrido periódico de horarios fijos.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("reminder scheduler already running")
	}
	s.running = true
	s.wg.Add(1)
	go s.run()
	return nil
}

// Stop detiene el barrido y cancela los timers pendientes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	for medID := range s.timers {
		s.cancelTimersLocked(medID)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.log.Info("reminder scheduler stopped", nil)
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.Sweep()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep evalúa una vez todos los medicamentos de horario fijo.
// Lo invoca el ticker; exportado para poder disparar un barrido en tests.
func (s *Scheduler) Sweep() {
	now := s.now()
	s.rollover(now)

	if s.isDismissed(now) {
		return
	}

	ctx, cancelCtx := context.WithTimeout(s.ctx, s.cfg.PollInterval)
	defer cancelCtx()

	meds, err := s.meds.ListAll(ctx)
	if err != nil {
		s.log.Error("reminder sweep: list medications", map[string]any{"err": err.Error()})
		return
	}

	for _, med := range meds {
		if med.ScheduleType != medications.ScheduleFixed {
			continue
		}

		a, err := s.adherence.Status(ctx, med.ID)
		if err != nil {
			continue
		}
		if a.Completed {
			continue
		}

		for _, due := range medications.DueTimes(med, now) {
			elapsed := now.Sub(due)
			if elapsed < 0 {
				continue
			}

			slot := due.Format("15:04")

			if elapsed <= s.cfg.OnTimeWindow {
				key := dedupKey(med.ID, slot, now)
				if s.markSent(key) {
					s.send(ctx, med, notify.Notification{
						UserID:   med.OwnerUserID,
						Title:    "Hora de tu medicamento",
						Body:     fmt.Sprintf("%s %s — %s", med.Name, med.Dosage, slot),
						DedupKey: key,
					})
				}
			}

			if elapsed >= s.cfg.EscalateAfter {
				key := dedupKey(med.ID, slot, now) + "|esc"
				if s.markSent(key) {
					s.send(ctx, med, notify.Notification{
						UserID:   med.OwnerUserID,
						Title:    "Medicamento pendiente",
						Body:     fmt.Sprintf("%s sigue sin registrarse (programado %s)", med.Name, slot),
						Urgent:   true,
						DedupKey: key,
					})
				}
			}
		}
	}
}

// MealLogged dispara los recordatorios meal_relative de esa comida:
// "before" avisa ya; "after" agenda una toma diferida con escalada.
// Implementa meals.MealListener.
func (s *Scheduler) MealLogged(ownerUserID string, meal medications.Meal) {
	now := s.now()
	s.rollover(now)
	if s.isDismissed(now) {
		return
	}

	ctx, cancelCtx := context.WithTimeout(s.ctx, s.cfg.PollInterval)
	defer cancelCtx()

	meds, err := s.meds.ListByOwner(ctx, ownerUserID)
	if err != nil {
		s.log.Error("reminder meal check: list medications", map[string]any{"err": err.Error()})
		return
	}

	for _, med := range meds {
		if med.ScheduleType != medications.ScheduleMealRelative {
			continue
		}

		a, err := s.adherence.Status(ctx, med.ID)
		if err != nil || a.Completed {
			continue
		}

		if medications.HasMealTrigger(med, meal, medications.TimingBefore) {
			key := dedupKey(med.ID, string(meal)+"|before", now)
			if s.markSent(key) {
				s.send(ctx, med, notify.Notification{
					UserID:   med.OwnerUserID,
					Title:    "Antes de comer",
					Body:     fmt.Sprintf("Toma %s %s antes de %s", med.Name, med.Dosage, mealLabel(meal)),
					DedupKey: key,
				})
			}
		}

		if medications.HasMealTrigger(med, meal, medications.TimingAfter) {
			s.scheduleAfterMeal(med.ID, meal)
		}
	}
}

// scheduleAfterMeal agenda el recordatorio diferido y su escalada. Cada timer
// reconsulta el estado al disparar en vez de confiar en lo capturado: si la
// toma ya se registró, el medicamento se borró o el día se descartó, no avisa.
func (s *Scheduler) scheduleAfterMeal(medID string, meal medications.Meal) {
	first := time.AfterFunc(s.cfg.AfterMealDelay, func() {
		s.fireAfterMeal(medID, meal, false)

		esc := time.AfterFunc(s.cfg.AfterMealEscalate, func() {
			s.fireAfterMeal(medID, meal, true)
		})
		s.registerTimer(medID, esc)
	})
	s.registerTimer(medID, first)
}

func (s *Scheduler) fireAfterMeal(medID string, meal medications.Meal, urgent bool) {
	now := s.now()
	if s.isDismissed(now) {
		return
	}

	ctx, cancelCtx := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelCtx()

	// Recheck con estado fresco, nunca con el snapshot de cuando se agendó.
	med, err := s.meds.GetByID(ctx, medID)
	if err != nil {
		return
	}
	a, err := s.adherence.Status(ctx, medID)
	if err != nil || a.Completed {
		return
	}

	suffix := "|after"
	title := "Después de comer"
	body := fmt.Sprintf("Toma %s %s después de %s", med.Name, med.Dosage, mealLabel(meal))
	if urgent {
		suffix = "|after|esc"
		title = "Medicamento pendiente"
		body = fmt.Sprintf("%s sigue sin registrarse después de %s", med.Name, mealLabel(meal))
	}

	key := dedupKey(medID, string(meal)+suffix, now)
	if !s.markSent(key) {
		return
	}
	s.send(ctx, med, notify.Notification{
		UserID:   med.OwnerUserID,
		Title:    title,
		Body:     body,
		Urgent:   urgent,
		DedupKey: key,
	})
}

// AdherenceChanged implementa doses.AdherenceListener: al completar el día se
// cancelan los timers pendientes del medicamento. Tras un undo no hay nada
// que rearmar acá: el barrido rederiva todo del ledger.
func (s *Scheduler) AdherenceChanged(medID string, a doses.Adherence) {
	if a.Completed {
		s.mu.Lock()
		s.cancelTimersLocked(medID)
		s.mu.Unlock()
	}
}

// MedicationDeleted implementa medications.DeleteListener.
func (s *Scheduler) MedicationDeleted(medID string) {
	s.mu.Lock()
	s.cancelTimersLocked(medID)
	s.mu.Unlock()
}

// DismissToday silencia los recordatorios del resto del día. Idempotente y
// sin efecto sobre ledger ni adherencia; el corte real de día es la fecha de
// calendario de cada entrada.
func (s *Scheduler) DismissToday() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dismissedDay = dayStamp(now)
	for medID := range s.timers {
		s.cancelTimersLocked(medID)
	}
}

func (s *Scheduler) send(ctx context.Context, med medications.Medication, n notify.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		// La entrega es problema del colaborador; acá solo queda constancia.
		s.log.Warn("reminder delivery failed", map[string]any{
			"med_id": med.ID,
			"key":    n.DedupKey,
			"err":    err.Error(),
		})
	}
}

// markSent registra el key y devuelve true solo la primera vez del día.
func (s *Scheduler) markSent(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sent[key]; ok {
		return false
	}
	s.sent[key] = struct{}{}
	return true
}

func (s *Scheduler) isDismissed(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dismissedDay == dayStamp(now)
}

// rollover limpia el estado de sesión al cambiar la fecha local.
func (s *Scheduler) rollover(now time.Time) {
	day := dayStamp(now)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sentDay != day {
		s.sentDay = day
		s.sent = make(map[string]struct{})
		if s.dismissedDay != day {
			s.dismissedDay = ""
		}
	}
}

func (s *Scheduler) registerTimer(medID string, t *time.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[medID] = append(s.timers[medID], t)
}

func (s *Scheduler) cancelTimersLocked(medID string) {
	for _, t := range s.timers[medID] {
		t.Stop()
	}
	delete(s.timers, medID)
}

func dedupKey(medID, slot string, day time.Time) string {
	return medID + "|" + slot + "|" + dayStamp(day)
}

func dayStamp(t time.Time) string {
	return t.Format("2006-01-02")
}

func mealLabel(m medications.Meal) string {
	switch m {
	case medications.MealBreakfast:
		return "el desayuno"
	case medications.MealLunch:
		return "el almuerzo"
	case medications.MealDinner:
		return "la cena"
	}
	return string(m)
}
