package doses

import "time"

// Status del registro de toma. Las operaciones actuales solo producen taken;
// skipped queda reservado para importaciones.
type Status string

const (
	StatusTaken   Status = "taken"
	StatusSkipped Status = "skipped"
)

// Entry es una entrada del ledger de tomas. El ledger es append-only: solo
// el undo explícito quita la entrada más reciente del día.
type Entry struct {
	ID string

	// El ledger se indexa por el ID estable del medicamento. MedName es un
	// snapshot inmutable del nombre al momento de la toma, solo para mostrar:
	// renombrar el medicamento no desconecta su historial.
	MedicationID string
	MedName      string

	OwnerUserID string

	TakenAt time.Time
	Status  Status

	// Note anota el porqué/cuándo: "Manual", "Scheduled: 08:00", etc.
	Note string
}

// SameCalendarDay compara por fecha de calendario en la zona de `a`
// (no es una ventana móvil de 24h).
func SameCalendarDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
