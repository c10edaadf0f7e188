// Package genesis loads the bootstrap file that seeds an empty engine
// with roles and initial token balances.
package genesis

import (
	"fmt"
	"os"
	"sort"

	"github.com/holiman/uint256"
	"github.com/neuralforge/platform/pkg/account"
	"github.com/neuralforge/platform/pkg/events"
	"github.com/neuralforge/platform/pkg/ledger"
	"github.com/neuralforge/platform/pkg/roles"
	"gopkg.in/yaml.v3"
)

type File struct {
	Admin string              `yaml:"admin"`
	Roles map[string][]string `yaml:"roles"`
	Mints []Mint              `yaml:"mints"`
}

// Mint credits To with Amount whole tokens.
type Mint struct {
	To     string `yaml:"to"`
	Amount string `yaml:"amount"`
}

// Target is the engine surface genesis is applied through.
type Target interface {
	GrantRole(caller account.Account, role roles.Role, a account.Account) ([]events.Record, error)
	Mint(caller, to account.Account, amount *uint256.Int) ([]events.Record, error)
}

func Load(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(content)
}

func Parse(content []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(content, &f); err != nil {
		return nil, fmt.Errorf("parse genesis: %w", err)
	}
	return &f, nil
}

type grant struct {
	role    roles.Role
	account account.Account
}

type credit struct {
	to     account.Account
	amount *uint256.Int
}

// Plan is a validated genesis file.
type Plan struct {
	Admin  account.Account
	grants []grant
	mints  []credit
}

// Resolve validates every entry before anything is applied.
func (f *File) Resolve() (*Plan, error) {
	admin, err := account.Normalize(f.Admin)
	if err != nil {
		return nil, fmt.Errorf("genesis admin: %w", err)
	}
	p := &Plan{Admin: admin}

	names := make([]string, 0, len(f.Roles))
	for name := range f.Roles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		role, err := roles.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("genesis roles: %w", err)
		}
		for _, raw := range f.Roles[name] {
			a, err := account.Normalize(raw)
			if err != nil {
				return nil, fmt.Errorf("genesis role %s: %w", role, err)
			}
			p.grants = append(p.grants, grant{role: role, account: a})
		}
	}

	for i, m := range f.Mints {
		to, err := account.Normalize(m.To)
		if err != nil {
			return nil, fmt.Errorf("genesis mint %d: %w", i, err)
		}
		amount, err := ledger.ParseUnits(m.Amount)
		if err != nil {
			return nil, fmt.Errorf("genesis mint %d: %w", i, err)
		}
		if amount.IsZero() {
			return nil, fmt.Errorf("genesis mint %d: amount must be positive", i)
		}
		p.mints = append(p.mints, credit{to: to, amount: amount})
	}
	return p, nil
}

// Apply grants roles then mints, acting as the plan's admin. It returns
// the number of committed events.
func (p *Plan) Apply(t Target) (int, error) {
	var n int
	for _, g := range p.grants {
		recs, err := t.GrantRole(p.Admin, g.role, g.account)
		if err != nil {
			return n, fmt.Errorf("grant %s to %s: %w", g.role, g.account, err)
		}
		n += len(recs)
	}
	for _, m := range p.mints {
		recs, err := t.Mint(p.Admin, m.to, m.amount)
		if err != nil {
			return n, fmt.Errorf("mint to %s: %w", m.to, err)
		}
		n += len(recs)
	}
	return n, nil
}
