package failure

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatchesKind(t *testing.T) {
	err := New(ErrInsufficientBalance, "transfer", "have %d, need %d", 5, 10)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected errors.Is to match kind, got %v", err)
	}
	if errors.Is(err, ErrInsufficientAllowance) {
		t.Fatal("unexpected match on a different kind")
	}
	if got := err.Error(); got != "transfer: insufficient balance: have 5, need 10" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestNameSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("buy model: %w", New(ErrSelfPurchase, "buyModel", "owner cannot buy"))
	if got := Name(err); got != "SelfPurchase" {
		t.Fatalf("expected SelfPurchase, got %s", got)
	}
	if got := Name(errors.New("disk full")); got != "internal" {
		t.Fatalf("expected internal, got %s", got)
	}
	if KindOf(errors.New("plain")) != nil {
		t.Fatal("expected nil kind for plain error")
	}
}
