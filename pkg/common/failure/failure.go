// Package failure defines the typed rejection kinds returned by the ledger,
// marketplace and training components.
package failure

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotFound              = errors.New("not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidScore          = errors.New("invalid score")
	ErrInvalidPayoutPlan     = errors.New("invalid payout plan")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrNotForSale            = errors.New("not for sale")
	ErrSelfPurchase          = errors.New("self purchase")
	ErrJobNotOpen            = errors.New("job not open")
	ErrNoSubmissions         = errors.New("no submissions")
)

// Error is a rejected operation. Kind is one of the sentinels above so
// callers can match with errors.Is.
type Error struct {
	Kind error
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	prefix := e.Kind.Error()
	if e.Op != "" {
		prefix = e.Op + ": " + prefix
	}
	if e.Msg == "" {
		return prefix
	}
	return fmt.Sprintf("%s: %s", prefix, e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

// New builds an Error of the given kind for op.
func New(kind error, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the sentinel kind carried by err, or nil when err is not
// a rejection.
func KindOf(err error) error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return nil
}

// Name returns a stable label for the kind of err, used in metrics and
// API responses. Non-rejection errors report "internal".
func Name(err error) string {
	switch KindOf(err) {
	case ErrUnauthorized:
		return "Unauthorized"
	case ErrNotFound:
		return "NotFound"
	case ErrInvalidInput:
		return "InvalidInput"
	case ErrInvalidAmount:
		return "InvalidAmount"
	case ErrInvalidScore:
		return "InvalidScore"
	case ErrInvalidPayoutPlan:
		return "InvalidPayoutPlan"
	case ErrInsufficientBalance:
		return "InsufficientBalance"
	case ErrInsufficientAllowance:
		return "InsufficientAllowance"
	case ErrNotForSale:
		return "NotForSale"
	case ErrSelfPurchase:
		return "SelfPurchase"
	case ErrJobNotOpen:
		return "JobNotOpen"
	case ErrNoSubmissions:
		return "NoSubmissions"
	default:
		return "internal"
	}
}
