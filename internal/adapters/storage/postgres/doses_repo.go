package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"medication-tracker/internal/domain/doses"
)

type DosesRepo struct {
	db *sql.DB
}

func NewDosesRepo(db *sql.DB) *DosesRepo {
	return &DosesRepo{db: db}
}

func (r *DosesRepo) Append(ctx context.Context, e doses.Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dose_entries (
			id, medication_id, med_name, owner_user_id,
			taken_at, status, note
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		e.ID,
		e.MedicationID,
		e.MedName,
		e.OwnerUserID,
		e.TakenAt,
		string(e.Status),
		e.Note,
	)
	return err
}

func (r *DosesRepo) ListByMedication(ctx context.Context, medID string, limit int) ([]doses.Entry, error) {
	medID = strings.TrimSpace(medID)
	if medID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, medication_id, med_name, owner_user_id, taken_at, status, note
		FROM dose_entries
		WHERE medication_id = $1
		ORDER BY taken_at DESC
		LIMIT $2
	`, medID, capLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntries(rows)
}

func (r *DosesRepo) ListByOwner(ctx context.Context, ownerUserID string, limit int) ([]doses.Entry, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, medication_id, med_name, owner_user_id, taken_at, status, note
		FROM dose_entries
		WHERE owner_user_id = $1
		ORDER BY taken_at DESC
		LIMIT $2
	`, ownerUserID, capLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntries(rows)
}

func (r *DosesRepo) CountOnDay(ctx context.Context, medID string, day time.Time) (int, error) {
	start, end := dayBounds(day)

	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM dose_entries
		WHERE medication_id = $1
		  AND taken_at >= $2
		  AND taken_at < $3
	`, medID, start, end).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *DosesRepo) RemoveMostRecentOnDay(ctx context.Context, medID string, day time.Time) (doses.Entry, bool, error) {
	start, end := dayBounds(day)

	row := r.db.QueryRowContext(ctx, `
		DELETE FROM dose_entries
		WHERE id = (
			SELECT id FROM dose_entries
			WHERE medication_id = $1
			  AND taken_at >= $2
			  AND taken_at < $3
			ORDER BY taken_at DESC
			LIMIT 1
		)
		RETURNING id, medication_id, med_name, owner_user_id, taken_at, status, note
	`, medID, start, end)

	e, err := scanEntry(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return doses.Entry{}, false, nil
		}
		return doses.Entry{}, false, err
	}
	return e, true, nil
}

func collectEntries(rows *sql.Rows) ([]doses.Entry, error) {
	out := make([]doses.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(scan func(dest ...any) error) (doses.Entry, error) {
	var e doses.Entry
	var status string

	if err := scan(
		&e.ID,
		&e.MedicationID,
		&e.MedName,
		&e.OwnerUserID,
		&e.TakenAt,
		&status,
		&e.Note,
	); err != nil {
		return doses.Entry{}, err
	}

	e.Status = doses.Status(status)
	return e, nil
}

// Los límites de día se calculan en Go en la zona del servidor, no con
// DATE() en SQL, para que el corte de día coincida con el del evaluador.
func dayBounds(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1)
}

func capLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}
