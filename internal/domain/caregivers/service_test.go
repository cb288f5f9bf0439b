package caregivers

import (
	"context"
	"errors"
	"testing"
	"time"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

var errRepoNotFound = errors.New("repo: not found")

type testRepo struct {
	byID map[string]Grant
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Grant{}}
}

func (r *testRepo) Create(ctx context.Context, g Grant) error {
	if g.ID == "" {
		return errors.New("repo: id required")
	}
	if _, ok := r.byID[g.ID]; ok {
		return errors.New("repo: already exists")
	}
	r.byID[g.ID] = g
	return nil
}

func (r *testRepo) Update(ctx context.Context, g Grant) error {
	if _, ok := r.byID[g.ID]; !ok {
		return errRepoNotFound
	}
	r.byID[g.ID] = g
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Grant, error) {
	g, ok := r.byID[id]
	if !ok {
		return Grant{}, errRepoNotFound
	}
	return g, nil
}

func (r *testRepo) ListByPatient(ctx context.Context, patientUserID string) ([]Grant, error) {
	out := make([]Grant, 0)
	for _, g := range r.byID {
		if g.PatientUserID == patientUserID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *testRepo) ListByCaregiver(ctx context.Context, caregiverUserID string) ([]Grant, error) {
	out := make([]Grant, 0)
	for _, g := range r.byID {
		if g.CaregiverUserID == caregiverUserID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *testRepo) GetActiveGrant(ctx context.Context, patientUserID, caregiverUserID string) (Grant, error) {
	var winner Grant
	has := false

	for _, g := range r.byID {
		if g.PatientUserID != patientUserID || g.CaregiverUserID != caregiverUserID {
			continue
		}
		if g.Status != StatusActive {
			continue
		}
		if !has || g.UpdatedAt.After(winner.UpdatedAt) {
			winner = g
			has = true
		}
	}

	if !has {
		return Grant{}, errRepoNotFound
	}
	return winner, nil
}

// -------------------------
// Tests
// -------------------------

func TestService_Invite_DefaultScopes_WhenEmpty(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	g, err := svc.Invite(context.Background(), InviteInput{
		PatientUserID:   "patient-1",
		CaregiverUserID: "caregiver-1",
		Scopes:          nil,
	})
	if err != nil {
		t.Fatalf("Invite returned error: %v", err)
	}
	if g.Status != StatusInvited {
		t.Fatalf("expected status invited, got %s", g.Status)
	}
	if !HasScope(g, ScopeMedsRead) || !HasScope(g, ScopeDosesRead) {
		t.Fatalf("expected read-only defaults, got %v", g.Scopes)
	}
	if HasScope(g, ScopeMedsWrite) || HasScope(g, ScopeDosesRecord) {
		t.Fatalf("defaults must not include write scopes, got %v", g.Scopes)
	}
}

func TestService_Invite_RejectsUnknownScope(t *testing.T) {
	svc := NewService(newTestRepo())

	_, err := svc.Invite(context.Background(), InviteInput{
		PatientUserID:   "patient-1",
		CaregiverUserID: "caregiver-1",
		Scopes:          []Scope{ScopeMedsRead, "meds:admin"},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestService_Invite_RejectsSelfGrant(t *testing.T) {
	svc := NewService(newTestRepo())

	_, err := svc.Invite(context.Background(), InviteInput{
		PatientUserID:   "user-1",
		CaregiverUserID: "user-1",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestService_Invite_Reinvite_UpdatesInsteadOfDuplicating(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	first, err := svc.Invite(context.Background(), InviteInput{
		PatientUserID:   "patient-1",
		CaregiverUserID: "caregiver-1",
	})
	if err != nil {
		t.Fatalf("first Invite returned error: %v", err)
	}

	now = now.Add(time.Hour)
	second, err := svc.Invite(context.Background(), InviteInput{
		PatientUserID:   "patient-1",
		CaregiverUserID: "caregiver-1",
		Scopes:          []Scope{ScopeMedsRead, ScopeDosesRecord},
	})
	if err != nil {
		t.Fatalf("second Invite returned error: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("expected reinvite to update the existing grant, got new id")
	}
	if !HasScope(second, ScopeDosesRecord) {
		t.Fatalf("expected scopes replaced, got %v", second.Scopes)
	}
	if len(repo.byID) != 1 {
		t.Fatalf("expected single grant, got %d", len(repo.byID))
	}
}

func TestService_Invite_AfterRevoke_CreatesNewGrant(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	g, _ := svc.Invite(context.Background(), InviteInput{
		PatientUserID:   "patient-1",
		CaregiverUserID: "caregiver-1",
	})
	if _, err := svc.Revoke(context.Background(), g.ID, "patient-1"); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}

	again, err := svc.Invite(context.Background(), InviteInput{
		PatientUserID:   "patient-1",
		CaregiverUserID: "caregiver-1",
	})
	if err != nil {
		t.Fatalf("reinvite returned error: %v", err)
	}
	if again.ID == g.ID {
		t.Fatalf("a revoked grant must not revive")
	}
	if again.Status != StatusInvited {
		t.Fatalf("expected fresh invitation, got %s", again.Status)
	}
}

func TestService_Accept_Flow(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	g, _ := svc.Invite(context.Background(), InviteInput{
		PatientUserID:   "patient-1",
		CaregiverUserID: "caregiver-1",
	})

	// Otro usuario no puede aceptar
	if _, err := svc.Accept(context.Background(), g.ID, "intruder"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	active, err := svc.Accept(context.Background(), g.ID, "caregiver-1")
	if err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}
	if active.Status != StatusActive {
		t.Fatalf("expected active, got %s", active.Status)
	}

	// Idempotente
	again, err := svc.Accept(context.Background(), g.ID, "caregiver-1")
	if err != nil {
		t.Fatalf("second Accept returned error: %v", err)
	}
	if again.Status != StatusActive {
		t.Fatalf("expected still active, got %s", again.Status)
	}

	got, err := svc.GetActiveGrant(context.Background(), "patient-1", "caregiver-1")
	if err != nil {
		t.Fatalf("GetActiveGrant returned error: %v", err)
	}
	if got.ID != g.ID {
		t.Fatalf("expected active grant %s, got %s", g.ID, got.ID)
	}
}

func TestService_Revoke_PatientOnly_Idempotent(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	g, _ := svc.Invite(context.Background(), InviteInput{
		PatientUserID:   "patient-1",
		CaregiverUserID: "caregiver-1",
	})
	_, _ = svc.Accept(context.Background(), g.ID, "caregiver-1")

	if _, err := svc.Revoke(context.Background(), g.ID, "caregiver-1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-patient, got %v", err)
	}

	revoked, err := svc.Revoke(context.Background(), g.ID, "patient-1")
	if err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
	if revoked.Status != StatusRevoked || revoked.RevokedAt == nil {
		t.Fatalf("expected revoked with timestamp, got %+v", revoked)
	}

	// Idempotente
	if _, err := svc.Revoke(context.Background(), g.ID, "patient-1"); err != nil {
		t.Fatalf("second Revoke returned error: %v", err)
	}

	if _, err := svc.GetActiveGrant(context.Background(), "patient-1", "caregiver-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no active grant after revoke, got %v", err)
	}

	// Aceptar un grant revocado es estado inválido
	if _, err := svc.Accept(context.Background(), g.ID, "caregiver-1"); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState, got %v", err)
	}
}
