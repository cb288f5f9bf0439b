package doses

import (
	"context"
	"errors"
	"testing"
	"time"

	"medication-tracker/internal/domain/medications"
)

// -------------------------
// Test ledger (in-memory)
// -------------------------

type testLedger struct {
	entries []Entry
}

func (l *testLedger) Append(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return errors.New("ledger: id required")
	}
	l.entries = append([]Entry{e}, l.entries...)
	return nil
}

func (l *testLedger) ListByMedication(ctx context.Context, medID string, limit int) ([]Entry, error) {
	out := make([]Entry, 0)
	for _, e := range l.entries {
		if e.MedicationID == medID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *testLedger) ListByOwner(ctx context.Context, ownerUserID string, limit int) ([]Entry, error) {
	out := make([]Entry, 0)
	for _, e := range l.entries {
		if e.OwnerUserID == ownerUserID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *testLedger) CountOnDay(ctx context.Context, medID string, day time.Time) (int, error) {
	n := 0
	for _, e := range l.entries {
		if e.MedicationID == medID && SameCalendarDay(day, e.TakenAt) {
			n++
		}
	}
	return n, nil
}

func (l *testLedger) RemoveMostRecentOnDay(ctx context.Context, medID string, day time.Time) (Entry, bool, error) {
	idx := -1
	for i, e := range l.entries {
		if e.MedicationID != medID || !SameCalendarDay(day, e.TakenAt) {
			continue
		}
		if idx == -1 || e.TakenAt.After(l.entries[idx].TakenAt) {
			idx = i
		}
	}
	if idx == -1 {
		return Entry{}, false, nil
	}
	removed := l.entries[idx]
	l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
	return removed, true, nil
}

type testMeds struct {
	byID map[string]medications.Medication
}

func (m *testMeds) GetByID(ctx context.Context, id string) (medications.Medication, error) {
	med, ok := m.byID[id]
	if !ok {
		return medications.Medication{}, errors.New("meds: not found")
	}
	return med, nil
}

type adherenceRecorder struct {
	changes []Adherence
}

func (a *adherenceRecorder) AdherenceChanged(medID string, adh Adherence) {
	a.changes = append(a.changes, adh)
}

func fixedMed(id, owner, name string, times ...string) medications.Medication {
	return medications.Medication{
		ID:           id,
		OwnerUserID:  owner,
		Name:         name,
		ScheduleType: medications.ScheduleFixed,
		FixedTimes:   times,
	}
}

func newTestService(meds ...medications.Medication) (*Service, *testLedger, *adherenceRecorder) {
	ledger := &testLedger{}
	lookup := &testMeds{byID: map[string]medications.Medication{}}
	for _, m := range meds {
		lookup.byID[m.ID] = m
	}
	rec := &adherenceRecorder{}
	svc := NewService(ledger, lookup, rec)
	return svc, ledger, rec
}

// -------------------------
// Tests
// -------------------------

func TestService_Record_FixedTwiceADay(t *testing.T) {
	med := fixedMed("med-1", "user-1", "Metformina", "08:00", "20:00")
	svc, _, _ := newTestService(med)

	now := time.Date(2026, 3, 10, 8, 5, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	res, err := svc.Record(context.Background(), "med-1", "")
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if !res.Recorded {
		t.Fatalf("expected recorded=true")
	}
	if res.Entry.MedName != "Metformina" {
		t.Fatalf("expected name snapshot in entry, got %q", res.Entry.MedName)
	}
	if res.Entry.Note != DefaultNote {
		t.Fatalf("expected default note, got %q", res.Entry.Note)
	}
	if res.Adherence.Taken != 1 || res.Adherence.Target != 2 || res.Adherence.Completed {
		t.Fatalf("expected 1/2 pending, got %+v", res.Adherence)
	}

	now = now.Add(12 * time.Hour)
	res, err = svc.Record(context.Background(), "med-1", "con la cena")
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if res.Adherence.Taken != 2 || !res.Adherence.Completed {
		t.Fatalf("expected 2/2 completed, got %+v", res.Adherence)
	}
	if res.Entry.Note != "con la cena" {
		t.Fatalf("expected custom note kept, got %q", res.Entry.Note)
	}
}

func TestService_Record_MealRelativeSingleDose(t *testing.T) {
	med := medications.Medication{
		ID:           "med-2",
		OwnerUserID:  "user-1",
		Name:         "Aspirina",
		ScheduleType: medications.ScheduleMealRelative,
		MealTriggers: []medications.MealTrigger{
			{Meal: medications.MealLunch, Timing: medications.TimingBefore},
		},
	}
	svc, _, _ := newTestService(med)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC) }

	res, err := svc.Record(context.Background(), "med-2", "")
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if res.Adherence.Taken != 1 || res.Adherence.Target != 1 || !res.Adherence.Completed {
		t.Fatalf("expected 1/1 completed, got %+v", res.Adherence)
	}
}

func TestService_Record_MissingMedication_SilentNoop(t *testing.T) {
	svc, ledger, rec := newTestService()

	res, err := svc.Record(context.Background(), "ghost", "")
	if err != nil {
		t.Fatalf("expected no error for missing medication, got %v", err)
	}
	if res.Recorded {
		t.Fatalf("expected recorded=false")
	}
	if len(ledger.entries) != 0 {
		t.Fatalf("ledger must stay untouched")
	}
	if len(rec.changes) != 0 {
		t.Fatalf("listener must not be notified on no-op")
	}
}

func TestService_Record_BeyondTarget_KeepsCounting(t *testing.T) {
	med := fixedMed("med-1", "user-1", "Metformina", "08:00")
	svc, _, _ := newTestService(med)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC) }

	for i := 0; i < 3; i++ {
		res, err := svc.Record(context.Background(), "med-1", "")
		if err != nil {
			t.Fatalf("Record %d returned error: %v", i, err)
		}
		if res.Adherence.Taken != i+1 {
			t.Fatalf("record %d: expected taken %d, got %d", i, i+1, res.Adherence.Taken)
		}
	}

	a, err := svc.Status(context.Background(), "med-1")
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if a.Taken != 3 || a.Target != 1 || !a.Completed {
		t.Fatalf("expected 3/1 completed, got %+v", a)
	}
}

func TestService_Undo_RemovesMostRecentToday(t *testing.T) {
	med := fixedMed("med-1", "user-1", "Metformina", "08:00", "20:00")
	svc, _, rec := newTestService(med)

	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, _ = svc.Record(context.Background(), "med-1", "")
	now = now.Add(12 * time.Hour)
	_, _ = svc.Record(context.Background(), "med-1", "")

	res, err := svc.Undo(context.Background(), "med-1")
	if err != nil {
		t.Fatalf("Undo returned error: %v", err)
	}
	if !res.Undone {
		t.Fatalf("expected undone=true")
	}
	if res.Entry.TakenAt.Hour() != 20 {
		t.Fatalf("expected most recent entry removed, got %v", res.Entry.TakenAt)
	}
	if res.Adherence.Taken != 1 || res.Adherence.Completed {
		t.Fatalf("expected back to 1/2 pending, got %+v", res.Adherence)
	}

	// record + undo x2 => tres cambios de adherencia notificados
	if len(rec.changes) != 3 {
		t.Fatalf("expected 3 adherence notifications, got %d", len(rec.changes))
	}
	last := rec.changes[len(rec.changes)-1]
	if last.Completed {
		t.Fatalf("expected listener told about Completed->Pending transition")
	}
}

func TestService_Undo_NothingToday_Noop(t *testing.T) {
	med := fixedMed("med-1", "user-1", "Metformina", "08:00")
	svc, ledger, _ := newTestService(med)

	// Entrada de ayer: el undo de hoy no la toca.
	yesterday := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	_ = ledger.Append(context.Background(), Entry{
		ID: "old", MedicationID: "med-1", OwnerUserID: "user-1",
		TakenAt: yesterday, Status: StatusTaken,
	})

	svc.now = func() time.Time { return time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC) }

	res, err := svc.Undo(context.Background(), "med-1")
	if err != nil {
		t.Fatalf("Undo returned error: %v", err)
	}
	if res.Undone {
		t.Fatalf("expected undone=false with no entries today")
	}
	if len(ledger.entries) != 1 {
		t.Fatalf("yesterday's entry must survive, got %d entries", len(ledger.entries))
	}
}

func TestService_History_SurvivesMedicationDelete(t *testing.T) {
	med := fixedMed("med-1", "user-1", "Metformina", "08:00")
	svc, _, _ := newTestService(med)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC) }

	_, _ = svc.Record(context.Background(), "med-1", "")

	// El medicamento se borra de la lista: el lookup deja de resolverlo,
	// pero el ledger conserva la entrada con el nombre como snapshot.
	svc.meds = &testMeds{byID: map[string]medications.Medication{}}

	items, err := svc.HistoryByMedication(context.Background(), "med-1", 0)
	if err != nil {
		t.Fatalf("HistoryByMedication returned error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected orphan entry preserved, got %d", len(items))
	}
	if items[0].MedName != "Metformina" {
		t.Fatalf("expected name snapshot, got %q", items[0].MedName)
	}

	// Y registrar contra el id borrado degrada a no-op.
	res, err := svc.Record(context.Background(), "med-1", "")
	if err != nil || res.Recorded {
		t.Fatalf("expected silent no-op after delete, got recorded=%v err=%v", res.Recorded, err)
	}
}

func TestEvaluate(t *testing.T) {
	cases := []struct {
		target, taken int
		completed     bool
	}{
		{2, 0, false},
		{2, 1, false},
		{2, 2, true},
		{2, 3, true},
		{0, 0, false}, // target degenera a 1
		{0, 1, true},
	}
	for _, c := range cases {
		a := Evaluate(c.target, c.taken)
		if a.Completed != c.completed {
			t.Fatalf("Evaluate(%d,%d): expected completed=%v, got %+v", c.target, c.taken, c.completed, a)
		}
		if a.Target < 1 {
			t.Fatalf("target floor violated: %+v", a)
		}
	}
}

func TestSameCalendarDay(t *testing.T) {
	a := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	b := time.Date(2026, 3, 10, 0, 1, 0, 0, time.UTC)
	c := time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC)

	if !SameCalendarDay(a, b) {
		t.Fatalf("same date must match regardless of hour")
	}
	if SameCalendarDay(a, c) {
		t.Fatalf("different dates must not match, even within 24h")
	}
}
