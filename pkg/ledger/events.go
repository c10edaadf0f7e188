package ledger

import (
	"github.com/holiman/uint256"
	"github.com/neuralforge/platform/pkg/account"
)

type Minted struct {
	To     account.Account `json:"to"`
	Amount *uint256.Int    `json:"amount"`
}

func (Minted) EventType() string   { return "Minted" }
func (e Minted) Parties() []string { return []string{e.To.String()} }

// Transferred is emitted for every balance movement. Spender is set when
// the movement consumed an allowance or was made by a module.
type Transferred struct {
	From    account.Account `json:"from"`
	To      account.Account `json:"to"`
	Spender account.Account `json:"spender,omitempty"`
	Amount  *uint256.Int    `json:"amount"`
}

func (Transferred) EventType() string { return "Transferred" }
func (e Transferred) Parties() []string {
	parties := []string{e.From.String()}
	if e.To != e.From {
		parties = append(parties, e.To.String())
	}
	return parties
}

type Approved struct {
	Owner   account.Account `json:"owner"`
	Spender account.Account `json:"spender"`
	Amount  *uint256.Int    `json:"amount"`
}

func (Approved) EventType() string { return "Approved" }
func (e Approved) Parties() []string {
	return []string{e.Owner.String(), e.Spender.String()}
}
