package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"medication-tracker/internal/domain/meals"
	"medication-tracker/internal/domain/medications"
)

type MealsRepo struct {
	db *sql.DB
}

func NewMealsRepo(db *sql.DB) *MealsRepo {
	return &MealsRepo{db: db}
}

func (r *MealsRepo) Create(ctx context.Context, l meals.MealLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO meal_logs (id, owner_user_id, meal, logged_at)
		VALUES ($1,$2,$3,$4)
	`,
		l.ID,
		l.OwnerUserID,
		string(l.Meal),
		l.LoggedAt,
	)
	return err
}

func (r *MealsRepo) ListOnDay(ctx context.Context, ownerUserID string, day time.Time) ([]meals.MealLog, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return nil, nil
	}

	start, end := dayBounds(day)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_user_id, meal, logged_at
		FROM meal_logs
		WHERE owner_user_id = $1
		  AND logged_at >= $2
		  AND logged_at < $3
		ORDER BY logged_at DESC
	`, ownerUserID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]meals.MealLog, 0)
	for rows.Next() {
		var l meals.MealLog
		var meal string
		if err := rows.Scan(&l.ID, &l.OwnerUserID, &meal, &l.LoggedAt); err != nil {
			return nil, err
		}
		l.Meal = medications.Meal(meal)
		out = append(out, l)
	}
	return out, rows.Err()
}
