package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"medication-tracker/internal/domain/doses"
)

type doseRepo struct {
	mu sync.RWMutex
	// entradas más reciente primero; el insert va a la cabeza
	entries []doses.Entry
}

func NewDoseRepo() doses.Repository {
	return &doseRepo{
		entries: make([]doses.Entry, 0),
	}
}

func (r *doseRepo) Append(ctx context.Context, e doses.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == "" {
		return errors.New("entry id required")
	}
	// Insert en cabeza: el orden más-reciente-primero es invariante observable.
	r.entries = append([]doses.Entry{e}, r.entries...)
	return nil
}

func (r *doseRepo) ListByMedication(ctx context.Context, medID string, limit int) ([]doses.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]doses.Entry, 0)
	for _, e := range r.entries {
		if e.MedicationID == medID {
			out = append(out, e)
		}
	}
	return sortAndCap(out, limit), nil
}

func (r *doseRepo) ListByOwner(ctx context.Context, ownerUserID string, limit int) ([]doses.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]doses.Entry, 0)
	for _, e := range r.entries {
		if e.OwnerUserID == ownerUserID {
			out = append(out, e)
		}
	}
	return sortAndCap(out, limit), nil
}

func (r *doseRepo) CountOnDay(ctx context.Context, medID string, day time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.entries {
		if e.MedicationID == medID && doses.SameCalendarDay(day, e.TakenAt) {
			n++
		}
	}
	return n, nil
}

func (r *doseRepo) RemoveMostRecentOnDay(ctx context.Context, medID string, day time.Time) (doses.Entry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, e := range r.entries {
		if e.MedicationID != medID || !doses.SameCalendarDay(day, e.TakenAt) {
			continue
		}
		if idx == -1 || e.TakenAt.After(r.entries[idx].TakenAt) {
			idx = i
		}
	}
	if idx == -1 {
		return doses.Entry{}, false, nil
	}

	removed := r.entries[idx]
	r.entries = append(r.entries[:idx], r.entries[idx+1:]...)
	return removed, true, nil
}

func sortAndCap(in []doses.Entry, limit int) []doses.Entry {
	sort.Slice(in, func(i, j int) bool {
		return in[i].TakenAt.After(in[j].TakenAt)
	})

	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if len(in) > limit {
		in = in[:limit]
	}
	return in
}
