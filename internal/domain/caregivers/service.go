package caregivers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrBadState     = errors.New("invalid state")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type InviteInput struct {
	PatientUserID   string
	CaregiverUserID string
	Scopes          []Scope
}

// Invite crea (o actualiza) la invitación del paciente a un cuidador.
// Reinvitar al mismo cuidador no duplica: actualiza scopes del grant vigente
// y revoca cualquier otro matching que haya quedado por data sucia.
func (s *Service) Invite(ctx context.Context, in InviteInput) (Grant, error) {
	patientID := strings.TrimSpace(in.PatientUserID)
	caregiverID := strings.TrimSpace(in.CaregiverUserID)

	if patientID == "" || caregiverID == "" {
		return Grant{}, ErrInvalidInput
	}
	if patientID == caregiverID {
		return Grant{}, ErrInvalidInput
	}

	// Scopes: vacío => default de solo lectura. Con valores => validación estricta.
	var scopes []Scope
	var err error
	if len(in.Scopes) == 0 {
		scopes = []Scope{ScopeMedsRead, ScopeDosesRead}
	} else {
		scopes, err = normalizeScopesStrict(in.Scopes)
		if err != nil {
			return Grant{}, err
		}
		if len(scopes) == 0 {
			return Grant{}, ErrInvalidInput
		}
	}

	now := s.now()

	existing, allMatches, err := s.findLatestMatch(ctx, patientID, caregiverID)
	if err == nil && existing.ID != "" {
		// Un grant revocado no revive: re-invitar crea uno nuevo.
		if existing.Status != StatusRevoked {
			_ = s.revokeOtherMatches(ctx, existing.ID, allMatches, now)

			existing.Scopes = scopes
			existing.UpdatedAt = now

			if err := s.repo.Update(ctx, existing); err != nil {
				return Grant{}, err
			}
			return existing, nil
		}
	}

	g := Grant{
		ID:              uuid.NewString(),
		PatientUserID:   patientID,
		CaregiverUserID: caregiverID,
		Scopes:          scopes,
		Status:          StatusInvited,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// Accept activa la invitación. Idempotente sobre un grant ya activo.
func (s *Service) Accept(ctx context.Context, grantID, caregiverUserID string) (Grant, error) {
	grantID = strings.TrimSpace(grantID)
	caregiverUserID = strings.TrimSpace(caregiverUserID)

	if grantID == "" || caregiverUserID == "" {
		return Grant{}, ErrInvalidInput
	}

	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return Grant{}, ErrNotFound
	}

	if g.CaregiverUserID != caregiverUserID {
		return Grant{}, ErrForbidden
	}
	if g.Status == StatusRevoked {
		return Grant{}, ErrBadState
	}
	if g.Status == StatusActive {
		return g, nil
	}
	if g.Status != StatusInvited {
		return Grant{}, ErrBadState
	}

	now := s.now()
	g.Status = StatusActive
	g.UpdatedAt = now

	if err := s.repo.Update(ctx, g); err != nil {
		return Grant{}, err
	}

	// Garantiza un único grant activo por (paciente, cuidador).
	_, matches, ferr := s.findLatestMatch(ctx, g.PatientUserID, g.CaregiverUserID)
	if ferr == nil {
		_ = s.revokeOtherMatches(ctx, g.ID, matches, now)
	}

	return g, nil
}

// Revoke lo ejecuta el paciente. Idempotente.
func (s *Service) Revoke(ctx context.Context, grantID, patientUserID string) (Grant, error) {
	grantID = strings.TrimSpace(grantID)
	patientUserID = strings.TrimSpace(patientUserID)

	if grantID == "" || patientUserID == "" {
		return Grant{}, ErrInvalidInput
	}

	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return Grant{}, ErrNotFound
	}

	if g.PatientUserID != patientUserID {
		return Grant{}, ErrForbidden
	}
	if g.Status == StatusRevoked {
		return g, nil
	}

	now := s.now()
	g.Status = StatusRevoked
	g.UpdatedAt = now
	g.RevokedAt = &now

	if err := s.repo.Update(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientUserID string) ([]Grant, error) {
	patientUserID = strings.TrimSpace(patientUserID)
	if patientUserID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByPatient(ctx, patientUserID)
}

func (s *Service) ListByCaregiver(ctx context.Context, caregiverUserID string) ([]Grant, error) {
	caregiverUserID = strings.TrimSpace(caregiverUserID)
	if caregiverUserID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByCaregiver(ctx, caregiverUserID)
}

func (s *Service) GetActiveGrant(ctx context.Context, patientUserID, caregiverUserID string) (Grant, error) {
	patientUserID = strings.TrimSpace(patientUserID)
	caregiverUserID = strings.TrimSpace(caregiverUserID)

	if patientUserID == "" || caregiverUserID == "" {
		return Grant{}, ErrInvalidInput
	}
	g, err := s.repo.GetActiveGrant(ctx, patientUserID, caregiverUserID)
	if err != nil {
		return Grant{}, ErrNotFound
	}
	return g, nil
}

// HasScope valida si el grant incluye un scope.
func HasScope(g Grant, scope Scope) bool {
	for _, s := range g.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

func (s *Service) findLatestMatch(ctx context.Context, patientID, caregiverID string) (Grant, []Grant, error) {
	items, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return Grant{}, nil, err
	}

	matches := make([]Grant, 0)
	var winner Grant
	hasWinner := false

	for _, g := range items {
		if g.CaregiverUserID != caregiverID {
			continue
		}
		matches = append(matches, g)

		if !hasWinner || g.UpdatedAt.After(winner.UpdatedAt) {
			winner = g
			hasWinner = true
		}
	}

	if !hasWinner {
		return Grant{}, matches, ErrNotFound
	}
	return winner, matches, nil
}

func (s *Service) revokeOtherMatches(ctx context.Context, winnerID string, matches []Grant, now time.Time) error {
	for _, g := range matches {
		if g.ID == "" || g.ID == winnerID {
			continue
		}
		if g.Status == StatusRevoked {
			continue
		}
		g.Status = StatusRevoked
		g.UpdatedAt = now
		g.RevokedAt = &now
		_ = s.repo.Update(ctx, g) // best-effort
	}
	return nil
}

func normalizeScopesStrict(in []Scope) ([]Scope, error) {
	allowed := map[Scope]struct{}{
		ScopeMedsRead:    {},
		ScopeMedsWrite:   {},
		ScopeDosesRead:   {},
		ScopeDosesRecord: {},
	}

	seen := map[Scope]struct{}{}
	out := make([]Scope, 0, len(in))

	for _, raw := range in {
		s := Scope(strings.TrimSpace(string(raw)))
		if s == "" {
			continue
		}
		if _, ok := allowed[s]; !ok {
			return nil, ErrInvalidInput
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	return out, nil
}
