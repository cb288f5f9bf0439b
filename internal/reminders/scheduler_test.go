package reminders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"medication-tracker/internal/domain/doses"
	"medication-tracker/internal/domain/medications"
	"medication-tracker/internal/platform/logger"
	"medication-tracker/internal/ports/notify"
)

// -------------------------
// Fakes
// -------------------------

type fakeMeds struct {
	mu   sync.Mutex
	byID map[string]medications.Medication
}

func newFakeMeds(meds ...medications.Medication) *fakeMeds {
	f := &fakeMeds{byID: map[string]medications.Medication{}}
	for _, m := range meds {
		f.byID[m.ID] = m
	}
	return f
}

func (f *fakeMeds) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
}

func (f *fakeMeds) GetByID(ctx context.Context, id string) (medications.Medication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return medications.Medication{}, errors.New("not found")
	}
	return m, nil
}

func (f *fakeMeds) ListByOwner(ctx context.Context, ownerUserID string) ([]medications.Medication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]medications.Medication, 0)
	for _, m := range f.byID {
		if m.OwnerUserID == ownerUserID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMeds) ListAll(ctx context.Context) ([]medications.Medication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]medications.Medication, 0)
	for _, m := range f.byID {
		out = append(out, m)
	}
	return out, nil
}

type fakeAdherence struct {
	mu   sync.Mutex
	byID map[string]doses.Adherence
}

func newFakeAdherence() *fakeAdherence {
	return &fakeAdherence{byID: map[string]doses.Adherence{}}
}

func (f *fakeAdherence) set(medID string, a doses.Adherence) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[medID] = a
}

func (f *fakeAdherence) Status(ctx context.Context, medID string) (doses.Adherence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.byID[medID]; ok {
		return a, nil
	}
	return doses.Adherence{Target: 1}, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (f *fakeNotifier) Notify(ctx context.Context, n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeNotifier) last() notify.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func fixedMed(id, owner string, times ...string) medications.Medication {
	return medications.Medication{
		ID:           id,
		OwnerUserID:  owner,
		Name:         "Metformina",
		Dosage:       "500mg",
		ScheduleType: medications.ScheduleFixed,
		FixedTimes:   times,
	}
}

func mealMed(id, owner string, triggers ...medications.MealTrigger) medications.Medication {
	return medications.Medication{
		ID:           id,
		OwnerUserID:  owner,
		Name:         "Aspirina",
		Dosage:       "100mg",
		ScheduleType: medications.ScheduleMealRelative,
		MealTriggers: triggers,
	}
}

func newTestScheduler(cfg Config, meds *fakeMeds, adh *fakeAdherence, at time.Time) (*Scheduler, *fakeNotifier) {
	n := &fakeNotifier{}
	s := NewScheduler(cfg, meds, adh, n, logger.New(logger.Options{Level: logger.Error}))
	s.now = func() time.Time { return at }
	return s, n
}

// waitFor espera a que cond sea cierta (los timers post-comida corren en
// goroutines reales).
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %v", d)
	}
}

// -------------------------
// Tests
// -------------------------

func TestSweep_PrimaryReminder_OncePerDueTime(t *testing.T) {
	day := time.Date(2026, 3, 10, 8, 1, 0, 0, time.UTC)
	meds := newFakeMeds(fixedMed("med-1", "user-1", "08:00", "20:00"))
	s, n := newTestScheduler(Config{}, meds, newFakeAdherence(), day)

	// Varios barridos dentro de la ventana => un solo aviso.
	s.Sweep()
	s.Sweep()
	s.Sweep()

	if n.count() != 1 {
		t.Fatalf("expected exactly 1 primary reminder, got %d", n.count())
	}
	if n.last().UserID != "user-1" {
		t.Fatalf("expected owner notified, got %q", n.last().UserID)
	}

	// A las 20:01: primario de la toma de las 20:00 y, como la de las 08:00
	// sigue sin registrarse, su escalada. Cada uno una sola vez.
	s.now = func() time.Time { return time.Date(2026, 3, 10, 20, 1, 0, 0, time.UTC) }
	s.Sweep()
	s.Sweep()
	if n.count() != 3 {
		t.Fatalf("expected second slot reminder plus morning escalation, got %d", n.count())
	}
}

func TestSweep_OutsideWindow_NoPrimary(t *testing.T) {
	// 08:05 con ventana de 2m: ni puntual ni (todavía) escalada.
	day := time.Date(2026, 3, 10, 8, 5, 0, 0, time.UTC)
	meds := newFakeMeds(fixedMed("med-1", "user-1", "08:00"))
	s, n := newTestScheduler(Config{}, meds, newFakeAdherence(), day)

	s.Sweep()
	if n.count() != 0 {
		t.Fatalf("expected no reminder outside window, got %d", n.count())
	}

	// Antes de la hora tampoco.
	s.now = func() time.Time { return time.Date(2026, 3, 10, 7, 59, 0, 0, time.UTC) }
	s.Sweep()
	if n.count() != 0 {
		t.Fatalf("expected no reminder before due time, got %d", n.count())
	}
}

func TestSweep_Escalation_OnceAfterThreshold(t *testing.T) {
	meds := newFakeMeds(fixedMed("med-1", "user-1", "08:00"))
	s, n := newTestScheduler(Config{}, meds, newFakeAdherence(), time.Date(2026, 3, 10, 8, 31, 0, 0, time.UTC))

	s.Sweep()
	s.Sweep()

	if n.count() != 1 {
		t.Fatalf("expected exactly 1 escalation, got %d", n.count())
	}
	if !n.last().Urgent {
		t.Fatalf("expected escalation marked urgent")
	}
}

func TestSweep_CompletedMedication_Silent(t *testing.T) {
	meds := newFakeMeds(fixedMed("med-1", "user-1", "08:00"))
	adh := newFakeAdherence()
	adh.set("med-1", doses.Adherence{Taken: 1, Target: 1, Completed: true})

	s, n := newTestScheduler(Config{}, meds, adh, time.Date(2026, 3, 10, 8, 1, 0, 0, time.UTC))
	s.Sweep()

	if n.count() != 0 {
		t.Fatalf("completed medication must not remind, got %d", n.count())
	}
}

func TestSweep_NewDay_ResetsDedup(t *testing.T) {
	meds := newFakeMeds(fixedMed("med-1", "user-1", "08:00"))
	s, n := newTestScheduler(Config{}, meds, newFakeAdherence(), time.Date(2026, 3, 10, 8, 1, 0, 0, time.UTC))

	s.Sweep()
	if n.count() != 1 {
		t.Fatalf("expected day-1 reminder, got %d", n.count())
	}

	s.now = func() time.Time { return time.Date(2026, 3, 11, 8, 1, 0, 0, time.UTC) }
	s.Sweep()
	if n.count() != 2 {
		t.Fatalf("expected fresh reminder next day, got %d", n.count())
	}
}

func TestMealLogged_BeforeTrigger_ImmediateOnce(t *testing.T) {
	meds := newFakeMeds(mealMed("med-2", "user-1",
		medications.MealTrigger{Meal: medications.MealLunch, Timing: medications.TimingBefore},
	))
	s, n := newTestScheduler(Config{}, meds, newFakeAdherence(), time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC))

	s.MealLogged("user-1", medications.MealLunch)
	s.MealLogged("user-1", medications.MealLunch) // segunda comida igual no duplica

	if n.count() != 1 {
		t.Fatalf("expected 1 before-meal reminder, got %d", n.count())
	}

	// Otra comida sin trigger no avisa.
	s.MealLogged("user-1", medications.MealDinner)
	if n.count() != 1 {
		t.Fatalf("dinner has no trigger, got %d reminders", n.count())
	}
}

func TestMealLogged_AfterTrigger_DelayedWithEscalation(t *testing.T) {
	meds := newFakeMeds(mealMed("med-2", "user-1",
		medications.MealTrigger{Meal: medications.MealLunch, Timing: medications.TimingAfter},
	))
	cfg := Config{AfterMealDelay: 20 * time.Millisecond, AfterMealEscalate: 20 * time.Millisecond}
	s, n := newTestScheduler(cfg, meds, newFakeAdherence(), time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC))

	s.MealLogged("user-1", medications.MealLunch)

	if n.count() != 0 {
		t.Fatalf("after-meal reminder must not be immediate")
	}

	waitFor(t, 2*time.Second, func() bool { return n.count() >= 2 })

	if !n.last().Urgent {
		t.Fatalf("expected second after-meal notification to escalate")
	}
}

func TestMealLogged_AfterTrigger_RecheckSuppressesWhenTaken(t *testing.T) {
	meds := newFakeMeds(mealMed("med-2", "user-1",
		medications.MealTrigger{Meal: medications.MealLunch, Timing: medications.TimingAfter},
	))
	adh := newFakeAdherence()
	cfg := Config{AfterMealDelay: 50 * time.Millisecond, AfterMealEscalate: 50 * time.Millisecond}
	s, n := newTestScheduler(cfg, meds, adh, time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC))

	s.MealLogged("user-1", medications.MealLunch)

	// La toma se registra antes de que venza el timer: el recheck la ve.
	adh.set("med-2", doses.Adherence{Taken: 1, Target: 1, Completed: true})

	time.Sleep(300 * time.Millisecond)
	if n.count() != 0 {
		t.Fatalf("timer must recheck fresh state and stay silent, got %d", n.count())
	}
}

func TestMealLogged_AfterTrigger_CancelledOnDelete(t *testing.T) {
	meds := newFakeMeds(mealMed("med-2", "user-1",
		medications.MealTrigger{Meal: medications.MealLunch, Timing: medications.TimingAfter},
	))
	cfg := Config{AfterMealDelay: 50 * time.Millisecond, AfterMealEscalate: 50 * time.Millisecond}
	s, n := newTestScheduler(cfg, meds, newFakeAdherence(), time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC))

	s.MealLogged("user-1", medications.MealLunch)
	s.MedicationDeleted("med-2")
	meds.remove("med-2")

	time.Sleep(300 * time.Millisecond)
	if n.count() != 0 {
		t.Fatalf("deleted medication must not fire timers, got %d", n.count())
	}
}

func TestAdherenceChanged_Completed_CancelsTimers(t *testing.T) {
	meds := newFakeMeds(mealMed("med-2", "user-1",
		medications.MealTrigger{Meal: medications.MealLunch, Timing: medications.TimingAfter},
	))
	cfg := Config{AfterMealDelay: 50 * time.Millisecond, AfterMealEscalate: 50 * time.Millisecond}
	s, n := newTestScheduler(cfg, meds, newFakeAdherence(), time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC))

	s.MealLogged("user-1", medications.MealLunch)
	s.AdherenceChanged("med-2", doses.Adherence{Taken: 1, Target: 1, Completed: true})

	time.Sleep(300 * time.Millisecond)
	if n.count() != 0 {
		t.Fatalf("completed adherence must cancel pending timers, got %d", n.count())
	}
}

func TestDismissToday_SilencesRestOfDay(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 1, 0, 0, time.UTC)
	meds := newFakeMeds(fixedMed("med-1", "user-1", "08:00"))
	s, n := newTestScheduler(Config{}, meds, newFakeAdherence(), now)

	s.DismissToday()
	s.DismissToday() // idempotente

	s.Sweep()
	s.MealLogged("user-1", medications.MealLunch)
	if n.count() != 0 {
		t.Fatalf("dismissed day must stay silent, got %d", n.count())
	}

	// Al día siguiente los recordatorios vuelven solos.
	s.now = func() time.Time { return now.AddDate(0, 0, 1) }
	s.Sweep()
	if n.count() != 1 {
		t.Fatalf("dismissal must expire at day rollover, got %d", n.count())
	}
}

func TestStartStop(t *testing.T) {
	meds := newFakeMeds()
	s, _ := newTestScheduler(Config{PollInterval: 10 * time.Millisecond}, meds, newFakeAdherence(), time.Now())

	if err := s.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Fatalf("second Start must fail")
	}

	s.Stop()
	s.Stop() // no-op
}
