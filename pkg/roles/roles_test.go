package roles

import (
	"errors"
	"testing"

	"github.com/neuralforge/platform/pkg/account"
	"github.com/neuralforge/platform/pkg/common/failure"
	"github.com/neuralforge/platform/pkg/events"
)

const (
	admin account.Account = "admin"
	alice account.Account = "alice"
	bob   account.Account = "bob"
)

func TestBootstrapGrantsAdmin(t *testing.T) {
	r := NewRegistry(admin, nil)
	if !r.HasRole(Admin, admin) {
		t.Fatal("initializer must hold ADMIN")
	}
	if r.HasRole(Verifier, admin) {
		t.Fatal("initializer must not hold other roles implicitly")
	}
}

func TestGrantRequiresAdmin(t *testing.T) {
	buf := &events.Buffer{}
	r := NewRegistry(admin, buf)

	err := r.GrantRole(alice, Verifier, bob)
	if !errors.Is(err, failure.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	if len(buf.Drain()) != 0 {
		t.Fatal("rejected grant must not emit")
	}

	if err := r.GrantRole(admin, Verifier, bob); err != nil {
		t.Fatalf("GrantRole: %v", err)
	}
	if !r.HasRole(Verifier, bob) {
		t.Fatal("expected bob to hold VERIFIER")
	}
	evs := buf.Drain()
	if len(evs) != 1 || evs[0].EventType() != "RoleGranted" {
		t.Fatalf("unexpected events %v", evs)
	}

	// Granting twice is a no-op without a second event.
	if err := r.GrantRole(admin, Verifier, bob); err != nil {
		t.Fatalf("GrantRole again: %v", err)
	}
	if len(buf.Drain()) != 0 {
		t.Fatal("repeated grant must not emit")
	}
}

func TestGrantRejectsUnknownRoleAndModuleAccounts(t *testing.T) {
	r := NewRegistry(admin, nil)
	if err := r.GrantRole(admin, Role("OWNER"), bob); !errors.Is(err, failure.ErrInvalidInput) {
		t.Fatalf("expected InvalidInput for unknown role, got %v", err)
	}
	if err := r.GrantRole(admin, Trainer, account.Module("training")); !errors.Is(err, failure.ErrInvalidInput) {
		t.Fatalf("expected InvalidInput for module account, got %v", err)
	}
}

func TestRevokeAndRenounce(t *testing.T) {
	r := NewRegistry(admin, nil)
	if err := r.GrantRole(admin, Trainer, alice); err != nil {
		t.Fatalf("GrantRole: %v", err)
	}
	if err := r.RevokeRole(bob, Trainer, alice); !errors.Is(err, failure.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	if err := r.RevokeRole(admin, Trainer, alice); err != nil {
		t.Fatalf("RevokeRole: %v", err)
	}
	if r.HasRole(Trainer, alice) {
		t.Fatal("expected TRAINER revoked")
	}

	if err := r.GrantRole(admin, MarketplaceVerifier, alice); err != nil {
		t.Fatalf("GrantRole: %v", err)
	}
	if err := r.RenounceRole(alice, MarketplaceVerifier); err != nil {
		t.Fatalf("RenounceRole: %v", err)
	}
	if r.HasRole(MarketplaceVerifier, alice) {
		t.Fatal("expected role renounced")
	}
}

func TestLastAdminCannotBeRemoved(t *testing.T) {
	r := NewRegistry(admin, nil)
	if err := r.RenounceRole(admin, Admin); !errors.Is(err, failure.ErrInvalidInput) {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
	if err := r.GrantRole(admin, Admin, alice); err != nil {
		t.Fatalf("GrantRole: %v", err)
	}
	if err := r.RevokeRole(alice, Admin, admin); err != nil {
		t.Fatalf("RevokeRole: %v", err)
	}
	if r.HasRole(Admin, admin) || !r.HasRole(Admin, alice) {
		t.Fatal("expected ADMIN to move to alice")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	r := NewRegistry(admin, nil)
	_ = r.GrantRole(admin, Verifier, bob)
	_ = r.GrantRole(admin, Trainer, alice)

	restored, err := Restore(r.Snapshot(), nil)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	for _, role := range All {
		got, want := restored.Members(role), r.Members(role)
		if len(got) != len(want) {
			t.Fatalf("%s: got %v want %v", role, got, want)
		}
	}

	if _, err := Restore(Snapshot{Grants: []Grant{{Role: Trainer, Account: alice}}}, nil); err == nil {
		t.Fatal("expected restore without ADMIN to fail")
	}
}
