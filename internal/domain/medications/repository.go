package medications

import "context"

type Repository interface {
	Create(ctx context.Context, m Medication) error
	Update(ctx context.Context, m Medication) error
	GetByID(ctx context.Context, id string) (Medication, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]Medication, error)
	// ListAll lo usa el scheduler de recordatorios para el barrido periódico.
	ListAll(ctx context.Context) ([]Medication, error)
	Delete(ctx context.Context, id string) error
}
