package ledger

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/neuralforge/platform/pkg/account"
	"github.com/neuralforge/platform/pkg/common/failure"
	"github.com/neuralforge/platform/pkg/events"
	"github.com/neuralforge/platform/pkg/roles"
)

const (
	admin account.Account = "admin"
	alice account.Account = "alice"
	bob   account.Account = "bob"
	carol account.Account = "carol"
)

func n(v uint64) *uint256.Int { return uint256.NewInt(v) }

func newLedger(t *testing.T) (*Ledger, *events.Buffer) {
	t.Helper()
	buf := &events.Buffer{}
	reg := roles.NewRegistry(admin, buf)
	return New(reg, buf), buf
}

func mustMint(t *testing.T, l *Ledger, to account.Account, amount uint64) {
	t.Helper()
	if err := l.Mint(admin, to, n(amount)); err != nil {
		t.Fatalf("Mint(%s, %d): %v", to, amount, err)
	}
}

func expectBalance(t *testing.T, l *Ledger, a account.Account, want uint64) {
	t.Helper()
	if got := l.BalanceOf(a); !got.Eq(n(want)) {
		t.Fatalf("balance of %s: got %s want %d", a, got.Dec(), want)
	}
}

func TestMintRequiresAdmin(t *testing.T) {
	l, buf := newLedger(t)
	if err := l.Mint(alice, alice, n(10)); !errors.Is(err, failure.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	if err := l.Mint(admin, alice, n(0)); !errors.Is(err, failure.ErrInvalidAmount) {
		t.Fatalf("expected InvalidAmount, got %v", err)
	}
	if err := l.Mint(admin, account.Module("training"), n(5)); !errors.Is(err, failure.ErrInvalidInput) {
		t.Fatalf("expected InvalidInput minting to module, got %v", err)
	}
	if len(buf.Drain()) != 0 {
		t.Fatal("rejected mints must not emit")
	}

	mustMint(t, l, alice, 1000)
	expectBalance(t, l, alice, 1000)
	if !l.TotalSupply().Eq(n(1000)) {
		t.Fatalf("unexpected supply %s", l.TotalSupply().Dec())
	}
	evs := buf.Drain()
	if len(evs) != 1 || evs[0].EventType() != "Minted" {
		t.Fatalf("unexpected events %v", evs)
	}
}

func TestTransfer(t *testing.T) {
	l, _ := newLedger(t)
	mustMint(t, l, alice, 100)

	if err := l.Transfer(alice, bob, n(101)); !errors.Is(err, failure.ErrInsufficientBalance) {
		t.Fatalf("expected InsufficientBalance, got %v", err)
	}
	if err := l.Transfer(alice, bob, n(0)); !errors.Is(err, failure.ErrInvalidAmount) {
		t.Fatalf("expected InvalidAmount, got %v", err)
	}
	if err := l.Transfer(alice, bob, n(30)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	expectBalance(t, l, alice, 70)
	expectBalance(t, l, bob, 30)

	// Self-transfer is accepted and changes nothing.
	if err := l.Transfer(alice, alice, n(70)); err != nil {
		t.Fatalf("self transfer: %v", err)
	}
	expectBalance(t, l, alice, 70)
	if err := l.CheckConservation(); err != nil {
		t.Fatalf("conservation: %v", err)
	}
}

func TestModuleAccountsAreNotExternallyUsable(t *testing.T) {
	l, _ := newLedger(t)
	mustMint(t, l, alice, 100)
	escrow := account.Module("training").Sub("escrow", "1")

	if err := l.Transfer(escrow, alice, n(1)); !errors.Is(err, failure.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized for module caller, got %v", err)
	}
	if err := l.Transfer(alice, escrow, n(1)); !errors.Is(err, failure.ErrInvalidInput) {
		t.Fatalf("expected InvalidInput crediting module, got %v", err)
	}
	if err := l.TransferFrom(bob, escrow, bob, n(1)); !errors.Is(err, failure.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized spending from module, got %v", err)
	}
}

func TestApproveTransferFromRoundTrip(t *testing.T) {
	l, _ := newLedger(t)
	mustMint(t, l, alice, 500)

	if err := l.Approve(alice, bob, n(100)); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := l.TransferFrom(bob, alice, carol, n(60)); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}
	if got := l.Allowance(alice, bob); !got.Eq(n(40)) {
		t.Fatalf("allowance: got %s want 40", got.Dec())
	}
	expectBalance(t, l, alice, 440)
	expectBalance(t, l, carol, 60)

	if err := l.TransferFrom(bob, alice, carol, n(41)); !errors.Is(err, failure.ErrInsufficientAllowance) {
		t.Fatalf("expected InsufficientAllowance, got %v", err)
	}
	if got := l.Allowance(alice, bob); !got.Eq(n(40)) {
		t.Fatalf("failed transferFrom changed allowance to %s", got.Dec())
	}

	// Approve overwrites rather than adds.
	if err := l.Approve(alice, bob, n(5)); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if got := l.Allowance(alice, bob); !got.Eq(n(5)) {
		t.Fatalf("allowance after overwrite: got %s want 5", got.Dec())
	}
}

func TestTransferFromChecksAllowanceBeforeBalance(t *testing.T) {
	l, _ := newLedger(t)
	mustMint(t, l, alice, 10)
	if err := l.TransferFrom(bob, alice, bob, n(50)); !errors.Is(err, failure.ErrInsufficientAllowance) {
		t.Fatalf("expected InsufficientAllowance, got %v", err)
	}
	if err := l.Approve(alice, bob, n(50)); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := l.TransferFrom(bob, alice, bob, n(50)); !errors.Is(err, failure.ErrInsufficientBalance) {
		t.Fatalf("expected InsufficientBalance, got %v", err)
	}
	if got := l.Allowance(alice, bob); !got.Eq(n(50)) {
		t.Fatalf("allowance changed by failed call: %s", got.Dec())
	}
}

func TestUnlimitedAllowanceIsNotDecremented(t *testing.T) {
	l, _ := newLedger(t)
	mustMint(t, l, alice, 100)
	if err := l.Approve(alice, bob, Unlimited()); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := l.TransferFrom(bob, alice, bob, n(10)); err != nil {
			t.Fatalf("TransferFrom #%d: %v", i, err)
		}
	}
	if !l.Allowance(alice, bob).Eq(Unlimited()) {
		t.Fatal("unlimited allowance was decremented")
	}
	expectBalance(t, l, bob, 30)
}

func TestRollbackRestoresEverything(t *testing.T) {
	l, _ := newLedger(t)
	mustMint(t, l, alice, 100)
	if err := l.Approve(alice, bob, n(50)); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	before := l.Snapshot()

	if err := l.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := l.Begin(); !errors.Is(err, ErrTxActive) {
		t.Fatalf("expected ErrTxActive, got %v", err)
	}
	mustMint(t, l, carol, 7)
	if err := l.TransferFrom(bob, alice, bob, n(50)); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}
	if err := l.Transfer(bob, carol, n(20)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if err := l.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	after := l.Snapshot()
	if after.Supply != before.Supply || len(after.Balances) != len(before.Balances) || len(after.Allowances) != len(before.Allowances) {
		t.Fatalf("state differs after rollback: before %+v after %+v", before, after)
	}
	for i := range before.Balances {
		if before.Balances[i] != after.Balances[i] {
			t.Fatalf("balance %d differs: %+v vs %+v", i, before.Balances[i], after.Balances[i])
		}
	}
	if before.Allowances[0] != after.Allowances[0] {
		t.Fatalf("allowance differs: %+v vs %+v", before.Allowances[0], after.Allowances[0])
	}
	if err := l.Commit(); !errors.Is(err, ErrTxInactive) {
		t.Fatalf("expected ErrTxInactive, got %v", err)
	}
}

func TestModulePullAndPay(t *testing.T) {
	l, _ := newLedger(t)
	mod, err := l.Module("training")
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	if _, err := l.Module("training"); err == nil {
		t.Fatal("expected second claim of the same module to fail")
	}
	other, err := l.Module("marketplace")
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	mustMint(t, l, alice, 100)
	escrow := mod.Account().Sub("escrow", "1")

	if err := mod.Pull("createTrainingJob", alice, escrow, n(50)); !errors.Is(err, failure.ErrInsufficientAllowance) {
		t.Fatalf("expected InsufficientAllowance, got %v", err)
	}
	if err := l.Approve(alice, mod.Account(), n(50)); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := mod.Pull("createTrainingJob", alice, escrow, n(50)); err != nil {
		t.Fatalf("Pull: %v", err)
	}
	expectBalance(t, l, escrow, 50)
	if got := l.Holders(); got != 1 {
		t.Fatalf("holders %d, want 1 (escrow is not a holder)", got)
	}

	if err := other.Pay("steal", escrow, bob, n(50)); !errors.Is(err, failure.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized for foreign module, got %v", err)
	}
	if err := mod.Pay("completeTrainingJob", escrow, bob, n(51)); !errors.Is(err, failure.ErrInsufficientBalance) {
		t.Fatalf("expected InsufficientBalance, got %v", err)
	}
	if err := mod.Pay("completeTrainingJob", escrow, bob, n(50)); err != nil {
		t.Fatalf("Pay: %v", err)
	}
	expectBalance(t, l, escrow, 0)
	expectBalance(t, l, bob, 50)
	if err := l.CheckConservation(); err != nil {
		t.Fatalf("conservation: %v", err)
	}
}

func TestSnapshotRestore(t *testing.T) {
	l, _ := newLedger(t)
	mustMint(t, l, alice, 300)
	_ = l.Transfer(alice, bob, n(100))
	_ = l.Approve(alice, carol, Unlimited())

	restored, err := Restore(l.Snapshot(), l.roles, nil)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	expectBalance(t, restored, alice, 200)
	expectBalance(t, restored, bob, 100)
	if !restored.Allowance(alice, carol).Eq(Unlimited()) {
		t.Fatal("unlimited allowance lost in snapshot")
	}

	bad := l.Snapshot()
	bad.Supply = "1"
	if _, err := Restore(bad, l.roles, nil); err == nil {
		t.Fatal("expected restore of non-conserving snapshot to fail")
	}
}

func TestUnits(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1", "1000000000000000000"},
		{"1.5", "1500000000000000000"},
		{"0.000000000000000001", "1"},
		{"1000000", "1000000000000000000000000"},
	}
	for _, tc := range cases {
		got, err := ParseUnits(tc.in)
		if err != nil {
			t.Fatalf("ParseUnits(%q): %v", tc.in, err)
		}
		if got.Dec() != tc.want {
			t.Fatalf("ParseUnits(%q) = %s want %s", tc.in, got.Dec(), tc.want)
		}
		if back := FormatUnits(got); back != tc.in {
			t.Fatalf("FormatUnits(%s) = %s want %s", got.Dec(), back, tc.in)
		}
	}
	for _, bad := range []string{"-1", "abc", "0.0000000000000000001"} {
		if _, err := ParseUnits(bad); err == nil {
			t.Fatalf("expected ParseUnits(%q) to fail", bad)
		}
	}
	if _, err := ParseAmount("12x"); err == nil {
		t.Fatal("expected ParseAmount to reject non-decimal input")
	}
}
