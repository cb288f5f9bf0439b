package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"medication-tracker/internal/domain/medications"
)

type MedicationsRepo struct {
	db *sql.DB
}

func NewMedicationsRepo(db *sql.DB) *MedicationsRepo {
	return &MedicationsRepo{db: db}
}

func (r *MedicationsRepo) Create(ctx context.Context, m medications.Medication) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO medications (
			id, owner_user_id,
			name, dosage, frequency, instructions,
			schedule_type, fixed_times, meal_triggers,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		m.ID,
		m.OwnerUserID,
		m.Name,
		m.Dosage,
		m.Frequency,
		m.Instructions,
		string(m.ScheduleType),
		encodeTimes(m.FixedTimes),
		encodeTriggers(m.MealTriggers),
		m.CreatedAt,
		m.UpdatedAt,
	)
	return err
}

func (r *MedicationsRepo) Update(ctx context.Context, m medications.Medication) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE medications
		SET
			name = $2,
			dosage = $3,
			frequency = $4,
			instructions = $5,
			schedule_type = $6,
			fixed_times = $7,
			meal_triggers = $8,
			updated_at = $9
		WHERE id = $1
	`,
		m.ID,
		m.Name,
		m.Dosage,
		m.Frequency,
		m.Instructions,
		string(m.ScheduleType),
		encodeTimes(m.FixedTimes),
		encodeTriggers(m.MealTriggers),
		m.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MedicationsRepo) GetByID(ctx context.Context, id string) (medications.Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return medications.Medication{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, owner_user_id,
			name, dosage, frequency, instructions,
			schedule_type, fixed_times, meal_triggers,
			created_at, updated_at
		FROM medications
		WHERE id = $1
	`, id)

	m, err := scanMedication(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return medications.Medication{}, ErrNotFound
		}
		return medications.Medication{}, err
	}
	return m, nil
}

func (r *MedicationsRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]medications.Medication, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id, owner_user_id,
			name, dosage, frequency, instructions,
			schedule_type, fixed_times, meal_triggers,
			created_at, updated_at
		FROM medications
		WHERE owner_user_id = $1
		ORDER BY created_at ASC
	`, ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMedications(rows)
}

func (r *MedicationsRepo) ListAll(ctx context.Context) ([]medications.Medication, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id, owner_user_id,
			name, dosage, frequency, instructions,
			schedule_type, fixed_times, meal_triggers,
			created_at, updated_at
		FROM medications
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMedications(rows)
}

func (r *MedicationsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM medications
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func collectMedications(rows *sql.Rows) ([]medications.Medication, error) {
	out := make([]medications.Medication, 0)
	for rows.Next() {
		m, err := scanMedication(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMedication(scan func(dest ...any) error) (medications.Medication, error) {
	var m medications.Medication
	var scheduleType, fixedTimes, mealTriggers string

	if err := scan(
		&m.ID,
		&m.OwnerUserID,
		&m.Name,
		&m.Dosage,
		&m.Frequency,
		&m.Instructions,
		&scheduleType,
		&fixedTimes,
		&mealTriggers,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return medications.Medication{}, err
	}

	m.ScheduleType = medications.ScheduleType(scheduleType)
	m.FixedTimes = decodeTimes(fixedTimes)
	m.MealTriggers = decodeTriggers(mealTriggers)
	return m, nil
}

// fixed_times se guarda como texto "08:00,20:00"; meal_triggers como JSON.
// El write siempre es de fila completa, nunca update parcial de campos.

func encodeTimes(in []string) string {
	return strings.Join(in, ",")
}

func decodeTimes(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func encodeTriggers(in []medications.MealTrigger) string {
	if len(in) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(in)
	return string(b)
}

func decodeTriggers(s string) []medications.MealTrigger {
	s = strings.TrimSpace(s)
	if s == "" || s == "[]" {
		return nil
	}
	var out []medications.MealTrigger
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}
