// Package ledger holds NFG balances and allowances.
//
// Every public operation validates fully before it mutates, so a
// rejected call leaves the ledger unchanged. Composite operations that
// chain several ledger calls run inside Begin/Commit; Rollback restores
// every balance, allowance and the supply touched since Begin.
package ledger

import (
	"github.com/holiman/uint256"
	"github.com/neuralforge/platform/pkg/account"
	"github.com/neuralforge/platform/pkg/common/failure"
	"github.com/neuralforge/platform/pkg/events"
	"github.com/neuralforge/platform/pkg/roles"
)

const (
	TokenName     = "NeuralForge Token"
	TokenSymbol   = "NFG"
	TokenDecimals = 18
)

// Unlimited returns the allowance sentinel that transferFrom never
// decrements.
func Unlimited() *uint256.Int {
	return new(uint256.Int).SetAllOne()
}

func isUnlimited(v *uint256.Int) bool {
	return v.Eq(Unlimited())
}

type allowanceKey struct {
	Owner   account.Account
	Spender account.Account
}

type Ledger struct {
	roles *roles.Registry
	emit  events.Emitter

	balances   map[account.Account]uint256.Int
	allowances map[allowanceKey]uint256.Int
	supply     uint256.Int

	modules map[string]*Module
	journal *journal
}

func New(reg *roles.Registry, emit events.Emitter) *Ledger {
	if emit == nil {
		emit = events.Discard
	}
	return &Ledger{
		roles:      reg,
		emit:       emit,
		balances:   make(map[account.Account]uint256.Int),
		allowances: make(map[allowanceKey]uint256.Int),
		modules:    make(map[string]*Module),
	}
}

// BalanceOf returns a copy of a's balance.
func (l *Ledger) BalanceOf(a account.Account) *uint256.Int {
	v := l.balances[a]
	return new(uint256.Int).Set(&v)
}

// Allowance returns how much spender may still move out of owner.
func (l *Ledger) Allowance(owner, spender account.Account) *uint256.Int {
	v := l.allowances[allowanceKey{Owner: owner, Spender: spender}]
	return new(uint256.Int).Set(&v)
}

// TotalSupply is the amount ever minted. Nothing is burned, so it always
// equals the sum of all balances.
func (l *Ledger) TotalSupply() *uint256.Int {
	return new(uint256.Int).Set(&l.supply)
}

// Holders returns the number of user accounts with a non-zero balance.
// Module accounts such as job escrows are not counted.
func (l *Ledger) Holders() int {
	var count int
	for a := range l.balances {
		if !a.IsModule() {
			count++
		}
	}
	return count
}

func (l *Ledger) Mint(caller, to account.Account, amount *uint256.Int) error {
	const op = "mint"
	if l.roles == nil || !l.roles.HasRole(roles.Admin, caller) {
		return failure.New(failure.ErrUnauthorized, op, "%s does not hold %s", caller, roles.Admin)
	}
	if err := checkRecipient(op, to); err != nil {
		return err
	}
	if err := checkPositive(op, amount); err != nil {
		return err
	}
	supply, overflow := new(uint256.Int).AddOverflow(&l.supply, amount)
	if overflow {
		return failure.New(failure.ErrInvalidAmount, op, "total supply would overflow")
	}
	bal := l.balances[to]
	credited, overflow := new(uint256.Int).AddOverflow(&bal, amount)
	if overflow {
		return failure.New(failure.ErrInvalidAmount, op, "balance of %s would overflow", to)
	}

	l.setSupply(supply)
	l.setBalance(to, credited)
	l.emit.Emit(Minted{To: to, Amount: new(uint256.Int).Set(amount)})
	return nil
}

// Transfer moves amount from caller to to. Sending to oneself is allowed
// and leaves balances unchanged.
func (l *Ledger) Transfer(caller, to account.Account, amount *uint256.Int) error {
	const op = "transfer"
	if err := checkExternalCaller(op, caller); err != nil {
		return err
	}
	if err := checkRecipient(op, to); err != nil {
		return err
	}
	if err := checkPositive(op, amount); err != nil {
		return err
	}
	return l.move(op, caller, to, "", amount)
}

// Approve overwrites the allowance spender holds over caller's balance.
// Approving zero revokes; Unlimited() is never decremented.
func (l *Ledger) Approve(caller, spender account.Account, amount *uint256.Int) error {
	const op = "approve"
	if err := checkExternalCaller(op, caller); err != nil {
		return err
	}
	if spender.IsZero() {
		return failure.New(failure.ErrInvalidInput, op, "spender is empty")
	}
	if amount == nil {
		return failure.New(failure.ErrInvalidAmount, op, "amount is required")
	}
	l.setAllowance(allowanceKey{Owner: caller, Spender: spender}, amount)
	l.emit.Emit(Approved{Owner: caller, Spender: spender, Amount: new(uint256.Int).Set(amount)})
	return nil
}

// TransferFrom moves amount out of from on behalf of caller, consuming
// caller's allowance.
func (l *Ledger) TransferFrom(caller, from, to account.Account, amount *uint256.Int) error {
	const op = "transferFrom"
	if err := checkExternalCaller(op, caller); err != nil {
		return err
	}
	if from.IsZero() || from.IsModule() {
		return failure.New(failure.ErrUnauthorized, op, "cannot spend from %q", from)
	}
	if err := checkRecipient(op, to); err != nil {
		return err
	}
	return l.spend(op, caller, from, to, amount)
}

// spend is transferFrom without the external-caller restrictions, shared
// with module pulls.
func (l *Ledger) spend(op string, spender, from, to account.Account, amount *uint256.Int) error {
	if err := checkPositive(op, amount); err != nil {
		return err
	}
	key := allowanceKey{Owner: from, Spender: spender}
	allowed := l.allowances[key]
	if allowed.Lt(amount) {
		return failure.New(failure.ErrInsufficientAllowance, op,
			"%s may spend %s of %s, requested %s", spender, allowed.Dec(), from, amount.Dec())
	}
	bal := l.balances[from]
	if bal.Lt(amount) {
		return failure.New(failure.ErrInsufficientBalance, op,
			"%s holds %s, requested %s", from, bal.Dec(), amount.Dec())
	}

	if !isUnlimited(&allowed) {
		l.setAllowance(key, new(uint256.Int).Sub(&allowed, amount))
	}
	return l.move(op, from, to, spender, amount)
}

// move debits from and credits to. Callers have already validated the
// parties; move still checks the balance so it is safe on its own.
func (l *Ledger) move(op string, from, to, spender account.Account, amount *uint256.Int) error {
	bal := l.balances[from]
	if bal.Lt(amount) {
		return failure.New(failure.ErrInsufficientBalance, op,
			"%s holds %s, requested %s", from, bal.Dec(), amount.Dec())
	}
	if from != to {
		dest := l.balances[to]
		credited, overflow := new(uint256.Int).AddOverflow(&dest, amount)
		if overflow {
			return failure.New(failure.ErrInvalidAmount, op, "balance of %s would overflow", to)
		}
		l.setBalance(from, new(uint256.Int).Sub(&bal, amount))
		l.setBalance(to, credited)
	}
	l.emit.Emit(Transferred{From: from, To: to, Spender: spender, Amount: new(uint256.Int).Set(amount)})
	return nil
}

func (l *Ledger) setBalance(a account.Account, v *uint256.Int) {
	if l.journal != nil {
		l.journal.touchBalance(l, a)
	}
	if v.IsZero() {
		delete(l.balances, a)
		return
	}
	l.balances[a] = *v
}

func (l *Ledger) setAllowance(k allowanceKey, v *uint256.Int) {
	if l.journal != nil {
		l.journal.touchAllowance(l, k)
	}
	if v.IsZero() {
		delete(l.allowances, k)
		return
	}
	l.allowances[k] = *v
}

func (l *Ledger) setSupply(v *uint256.Int) {
	if l.journal != nil {
		l.journal.touchSupply(l)
	}
	l.supply = *v
}

func checkExternalCaller(op string, caller account.Account) error {
	if caller.IsZero() {
		return failure.New(failure.ErrUnauthorized, op, "caller is empty")
	}
	if caller.IsModule() {
		return failure.New(failure.ErrUnauthorized, op, "%s is a module account", caller)
	}
	return nil
}

func checkRecipient(op string, to account.Account) error {
	if to.IsZero() {
		return failure.New(failure.ErrInvalidInput, op, "recipient is empty")
	}
	if to.IsModule() {
		return failure.New(failure.ErrInvalidInput, op, "cannot credit module account %s directly", to)
	}
	return nil
}

func checkPositive(op string, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return failure.New(failure.ErrInvalidAmount, op, "amount must be positive")
	}
	return nil
}
