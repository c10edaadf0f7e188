package ledger

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/neuralforge/platform/pkg/account"
	"github.com/neuralforge/platform/pkg/common/failure"
)

// Module is the capability to move funds held in a component's reserved
// accounts. The ledger hands out exactly one Module per name, so escrow
// held under "module:training/..." can only be released by the holder
// of the training handle.
type Module struct {
	l    *Ledger
	name string
	root account.Account
}

// Module claims the reserved namespace for name.
func (l *Ledger) Module(name string) (*Module, error) {
	if name == "" {
		return nil, fmt.Errorf("module name is required")
	}
	if _, taken := l.modules[name]; taken {
		return nil, fmt.Errorf("module %q already claimed", name)
	}
	m := &Module{l: l, name: name, root: account.Module(name)}
	l.modules[name] = m
	return m, nil
}

// Account is the module's root account; users approve it as spender.
func (m *Module) Account() account.Account { return m.root }

// Owns reports whether a lives in this module's namespace.
func (m *Module) Owns(a account.Account) bool {
	return a.IsModule() && a.ModuleName() == m.name
}

// Pull moves amount from a user account into an account this module
// owns, consuming the allowance the user granted to the module root.
func (m *Module) Pull(op string, from, into account.Account, amount *uint256.Int) error {
	if from.IsZero() || from.IsModule() {
		return failure.New(failure.ErrInvalidInput, op, "cannot pull from %q", from)
	}
	if !m.Owns(into) {
		return failure.New(failure.ErrUnauthorized, op, "%s is not owned by module %s", into, m.name)
	}
	return m.l.spend(op, m.root, from, into, amount)
}

// Pay releases amount from an account this module owns to a user account.
func (m *Module) Pay(op string, from, to account.Account, amount *uint256.Int) error {
	if !m.Owns(from) {
		return failure.New(failure.ErrUnauthorized, op, "%s is not owned by module %s", from, m.name)
	}
	if err := checkRecipient(op, to); err != nil {
		return err
	}
	if err := checkPositive(op, amount); err != nil {
		return err
	}
	return m.l.move(op, from, to, m.root, amount)
}

func (m *Module) BalanceOf(a account.Account) *uint256.Int {
	return m.l.BalanceOf(a)
}
