package forge

import (
	"fmt"
	"time"

	"github.com/neuralforge/platform/pkg/ledger"
	"github.com/neuralforge/platform/pkg/marketplace"
	"github.com/neuralforge/platform/pkg/roles"
	"github.com/neuralforge/platform/pkg/training"
)

// StateFormat is bumped whenever State changes incompatibly.
const StateFormat = 1

// State is a complete, self-consistent copy of the engine's tables.
type State struct {
	Format      int                  `json:"format"`
	Seq         uint64               `json:"seq"`
	SavedAt     time.Time            `json:"saved_at"`
	Roles       roles.Snapshot       `json:"roles"`
	Ledger      ledger.Snapshot      `json:"ledger"`
	Marketplace marketplace.Snapshot `json:"marketplace"`
	Training    training.Snapshot    `json:"training"`
}

// Snapshot captures the current state under the read lock.
func (e *Engine) Snapshot() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return State{
		Format:      StateFormat,
		Seq:         e.seq,
		SavedAt:     e.now().UTC(),
		Roles:       e.roles.Snapshot(),
		Ledger:      e.ledger.Snapshot(),
		Marketplace: e.market.Snapshot(),
		Training:    e.training.Snapshot(),
	}
}

// Restore rebuilds an engine from st and verifies that token supply and
// escrow balances are consistent. opts.Admin is ignored; roles come from
// the state.
func Restore(st State, opts Options) (*Engine, error) {
	if st.Format != StateFormat {
		return nil, fmt.Errorf("forge: unsupported state format %d", st.Format)
	}
	e := newEngine(opts)
	reg, err := roles.Restore(st.Roles, e.buf)
	if err != nil {
		return nil, fmt.Errorf("forge: restore roles: %w", err)
	}
	l, err := ledger.Restore(st.Ledger, reg, e.buf)
	if err != nil {
		return nil, fmt.Errorf("forge: restore ledger: %w", err)
	}
	if err := e.wire(reg, l, opts); err != nil {
		return nil, err
	}
	if err := e.market.Restore(st.Marketplace); err != nil {
		return nil, fmt.Errorf("forge: restore marketplace: %w", err)
	}
	if held := l.BalanceOf(e.market.Account()); !held.IsZero() {
		return nil, fmt.Errorf("forge: marketplace account holds %s between operations", held.Dec())
	}
	if err := e.training.Restore(st.Training); err != nil {
		return nil, fmt.Errorf("forge: restore training: %w", err)
	}
	if err := e.training.CheckEscrow(); err != nil {
		return nil, fmt.Errorf("forge: %w", err)
	}
	e.seq = st.Seq
	return e, nil
}
