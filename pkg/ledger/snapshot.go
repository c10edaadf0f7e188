package ledger

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"
	"github.com/neuralforge/platform/pkg/account"
	"github.com/neuralforge/platform/pkg/events"
	"github.com/neuralforge/platform/pkg/roles"
)

// Snapshot is the serializable ledger state. Amounts are decimal strings
// in smallest units; entries are sorted so equal states encode equally.
type Snapshot struct {
	Supply     string           `json:"supply"`
	Balances   []BalanceEntry   `json:"balances"`
	Allowances []AllowanceEntry `json:"allowances"`
}

type BalanceEntry struct {
	Account account.Account `json:"account"`
	Amount  string          `json:"amount"`
}

type AllowanceEntry struct {
	Owner   account.Account `json:"owner"`
	Spender account.Account `json:"spender"`
	Amount  string          `json:"amount"`
}

func (l *Ledger) Snapshot() Snapshot {
	s := Snapshot{Supply: l.supply.Dec()}
	for a, v := range l.balances {
		s.Balances = append(s.Balances, BalanceEntry{Account: a, Amount: v.Dec()})
	}
	sort.Slice(s.Balances, func(i, j int) bool { return s.Balances[i].Account < s.Balances[j].Account })
	for k, v := range l.allowances {
		s.Allowances = append(s.Allowances, AllowanceEntry{Owner: k.Owner, Spender: k.Spender, Amount: v.Dec()})
	}
	sort.Slice(s.Allowances, func(i, j int) bool {
		if s.Allowances[i].Owner != s.Allowances[j].Owner {
			return s.Allowances[i].Owner < s.Allowances[j].Owner
		}
		return s.Allowances[i].Spender < s.Allowances[j].Spender
	})
	return s
}

// Restore rebuilds a ledger and verifies supply conservation.
func Restore(s Snapshot, reg *roles.Registry, emit events.Emitter) (*Ledger, error) {
	l := New(reg, emit)
	supply, err := parseStored(s.Supply)
	if err != nil {
		return nil, fmt.Errorf("supply: %w", err)
	}
	l.supply = *supply
	for _, b := range s.Balances {
		v, err := parseStored(b.Amount)
		if err != nil {
			return nil, fmt.Errorf("balance of %s: %w", b.Account, err)
		}
		if !v.IsZero() {
			l.balances[b.Account] = *v
		}
	}
	for _, a := range s.Allowances {
		v, err := parseStored(a.Amount)
		if err != nil {
			return nil, fmt.Errorf("allowance %s->%s: %w", a.Owner, a.Spender, err)
		}
		if !v.IsZero() {
			l.allowances[allowanceKey{Owner: a.Owner, Spender: a.Spender}] = *v
		}
	}
	if err := l.CheckConservation(); err != nil {
		return nil, err
	}
	return l, nil
}

// CheckConservation verifies that balances sum to the minted supply.
func (l *Ledger) CheckConservation() error {
	sum := new(uint256.Int)
	for a, v := range l.balances {
		var overflow bool
		sum, overflow = new(uint256.Int).AddOverflow(sum, &v)
		if overflow {
			return fmt.Errorf("balances overflow at %s", a)
		}
	}
	if !sum.Eq(&l.supply) {
		return fmt.Errorf("balances sum to %s but supply is %s", sum.Dec(), l.supply.Dec())
	}
	return nil
}

func parseStored(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	return uint256.FromDecimal(s)
}
