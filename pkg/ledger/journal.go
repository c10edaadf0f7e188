package ledger

import (
	"errors"

	"github.com/holiman/uint256"
	"github.com/neuralforge/platform/pkg/account"
)

var (
	ErrTxActive   = errors.New("ledger transaction already active")
	ErrTxInactive = errors.New("no ledger transaction active")
)

type prior struct {
	value   uint256.Int
	present bool
}

// journal remembers the first value seen for every key touched since
// Begin.
type journal struct {
	balances   map[account.Account]prior
	allowances map[allowanceKey]prior
	supply     *uint256.Int
}

func (j *journal) touchBalance(l *Ledger, a account.Account) {
	if _, seen := j.balances[a]; seen {
		return
	}
	v, ok := l.balances[a]
	j.balances[a] = prior{value: v, present: ok}
}

func (j *journal) touchAllowance(l *Ledger, k allowanceKey) {
	if _, seen := j.allowances[k]; seen {
		return
	}
	v, ok := l.allowances[k]
	j.allowances[k] = prior{value: v, present: ok}
}

func (j *journal) touchSupply(l *Ledger) {
	if j.supply != nil {
		return
	}
	j.supply = new(uint256.Int).Set(&l.supply)
}

// Begin starts recording undo information.
func (l *Ledger) Begin() error {
	if l.journal != nil {
		return ErrTxActive
	}
	l.journal = &journal{
		balances:   make(map[account.Account]prior),
		allowances: make(map[allowanceKey]prior),
	}
	return nil
}

// Commit keeps every change made since Begin.
func (l *Ledger) Commit() error {
	if l.journal == nil {
		return ErrTxInactive
	}
	l.journal = nil
	return nil
}

// Rollback restores the state observed at Begin.
func (l *Ledger) Rollback() error {
	j := l.journal
	if j == nil {
		return ErrTxInactive
	}
	l.journal = nil
	for a, p := range j.balances {
		if p.present {
			l.balances[a] = p.value
		} else {
			delete(l.balances, a)
		}
	}
	for k, p := range j.allowances {
		if p.present {
			l.allowances[k] = p.value
		} else {
			delete(l.allowances, k)
		}
	}
	if j.supply != nil {
		l.supply = *j.supply
	}
	return nil
}

// InTx reports whether a transaction is open.
func (l *Ledger) InTx() bool { return l.journal != nil }
