package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"medication-tracker/internal/domain/caregivers"
)

type CaregiversRepo struct {
	db *sql.DB
}

func NewCaregiversRepo(db *sql.DB) *CaregiversRepo {
	return &CaregiversRepo{db: db}
}

func (r *CaregiversRepo) Create(ctx context.Context, g caregivers.Grant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO caregiver_grants (
			id, patient_user_id, caregiver_user_id,
			scopes, status,
			created_at, updated_at, revoked_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		g.ID,
		g.PatientUserID,
		g.CaregiverUserID,
		scopesToText(g.Scopes),
		string(g.Status),
		g.CreatedAt,
		g.UpdatedAt,
		toNullTime(g.RevokedAt),
	)
	return err
}

func (r *CaregiversRepo) Update(ctx context.Context, g caregivers.Grant) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE caregiver_grants
		SET
			scopes = $2,
			status = $3,
			updated_at = $4,
			revoked_at = $5
		WHERE id = $1
	`,
		g.ID,
		scopesToText(g.Scopes),
		string(g.Status),
		g.UpdatedAt,
		toNullTime(g.RevokedAt),
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

func (r *CaregiversRepo) GetByID(ctx context.Context, id string) (caregivers.Grant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return caregivers.Grant{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, patient_user_id, caregiver_user_id,
		       scopes, status,
		       created_at, updated_at, revoked_at
		FROM caregiver_grants
		WHERE id = $1
	`, id)

	g, err := scanGrant(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return caregivers.Grant{}, ErrNotFound
		}
		return caregivers.Grant{}, err
	}
	return g, nil
}

func (r *CaregiversRepo) ListByPatient(ctx context.Context, patientUserID string) ([]caregivers.Grant, error) {
	return r.list(ctx, "patient_user_id", patientUserID)
}

func (r *CaregiversRepo) ListByCaregiver(ctx context.Context, caregiverUserID string) ([]caregivers.Grant, error) {
	return r.list(ctx, "caregiver_user_id", caregiverUserID)
}

func (r *CaregiversRepo) list(ctx context.Context, column, value string) ([]caregivers.Grant, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	// column viene de un set fijo interno, nunca de input del usuario.
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, patient_user_id, caregiver_user_id,
		       scopes, status,
		       created_at, updated_at, revoked_at
		FROM caregiver_grants
		WHERE `+column+` = $1
		ORDER BY created_at DESC
	`, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]caregivers.Grant, 0)
	for rows.Next() {
		g, err := scanGrant(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *CaregiversRepo) GetActiveGrant(ctx context.Context, patientUserID, caregiverUserID string) (caregivers.Grant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, patient_user_id, caregiver_user_id,
		       scopes, status,
		       created_at, updated_at, revoked_at
		FROM caregiver_grants
		WHERE patient_user_id = $1
		  AND caregiver_user_id = $2
		  AND status = $3
		ORDER BY updated_at DESC, created_at DESC
		LIMIT 1
	`, patientUserID, caregiverUserID, string(caregivers.StatusActive))

	g, err := scanGrant(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return caregivers.Grant{}, ErrNotFound
		}
		return caregivers.Grant{}, err
	}
	return g, nil
}

func scanGrant(scan func(dest ...any) error) (caregivers.Grant, error) {
	var g caregivers.Grant
	var scopes, status string
	var revokedAt sql.NullTime

	if err := scan(
		&g.ID,
		&g.PatientUserID,
		&g.CaregiverUserID,
		&scopes,
		&status,
		&g.CreatedAt,
		&g.UpdatedAt,
		&revokedAt,
	); err != nil {
		return caregivers.Grant{}, err
	}

	g.Scopes = textToScopes(scopes)
	g.Status = caregivers.Status(status)
	if revokedAt.Valid {
		t := revokedAt.Time
		g.RevokedAt = &t
	}
	return g, nil
}

// scopes se guardan como texto "meds:read,doses:read"; el set es chico
// y el filtrado por scope lo hace el servicio, no SQL.
func scopesToText(in []caregivers.Scope) string {
	parts := make([]string, 0, len(in))
	for _, s := range in {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, ",")
}

func textToScopes(s string) []caregivers.Scope {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]caregivers.Scope, 0, len(parts))
	for _, p := range parts {
		out = append(out, caregivers.Scope(p))
	}
	return out
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
