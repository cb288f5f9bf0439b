package caregivers

import "time"

// Scope limita qué puede hacer el cuidador sobre el tracking del paciente.
type Scope string

const (
	ScopeMedsRead    Scope = "meds:read"
	ScopeMedsWrite   Scope = "meds:write"
	ScopeDosesRead   Scope = "doses:read"
	ScopeDosesRecord Scope = "doses:record"
)

type Status string

const (
	StatusInvited Status = "invited"
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// Grant habilita a un cuidador sobre todo el perfil de un paciente.
// A diferencia de un permiso por medicamento, el grant es por persona:
// quien ayuda con la medicación ayuda con toda.
type Grant struct {
	ID string

	PatientUserID   string // quien comparte
	CaregiverUserID string // quien cuida

	Scopes []Scope
	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}
