package doses

import (
	"context"
	"time"
)

// Repository almacena y consulta el ledger de tomas.
// El orden observable de los listados es más-reciente-primero.
type Repository interface {
	Append(ctx context.Context, e Entry) error
	ListByMedication(ctx context.Context, medID string, limit int) ([]Entry, error)
	ListByOwner(ctx context.Context, ownerUserID string, limit int) ([]Entry, error)

	// CountOnDay cuenta entradas del medicamento cuya fecha (calendario local)
	// coincide con la de day.
	CountOnDay(ctx context.Context, medID string, day time.Time) (int, error)

	// RemoveMostRecentOnDay borra exactamente la entrada más nueva del día
	// para ese medicamento. Devuelve false sin error si no hay ninguna.
	RemoveMostRecentOnDay(ctx context.Context, medID string, day time.Time) (Entry, bool, error)
}
