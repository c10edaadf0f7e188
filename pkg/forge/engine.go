// Package forge composes the role registry, ledger, marketplace and
// training components behind one serially consistent API.
//
// Every mutating call runs under the engine's write lock inside a ledger
// transaction. A rejected call is rolled back and emits nothing; a
// committed call returns its events sealed with global sequence numbers
// and hands them to the dispatcher in commit order.
package forge

import (
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/neuralforge/platform/pkg/account"
	"github.com/neuralforge/platform/pkg/common/failure"
	"github.com/neuralforge/platform/pkg/common/logger"
	"github.com/neuralforge/platform/pkg/events"
	"github.com/neuralforge/platform/pkg/ledger"
	"github.com/neuralforge/platform/pkg/marketplace"
	"github.com/neuralforge/platform/pkg/observability/metrics"
	"github.com/neuralforge/platform/pkg/roles"
	"github.com/neuralforge/platform/pkg/training"
)

type Options struct {
	// Admin is granted ADMIN when the engine starts from empty state.
	Admin account.Account
	// Now defaults to time.Now.
	Now                    func() time.Time
	TrainerOnlySubmissions bool
	// Dispatcher receives committed records. Optional.
	Dispatcher *events.Dispatcher
}

type Engine struct {
	mu sync.RWMutex

	now      func() time.Time
	dispatch *events.Dispatcher
	buf      *events.Buffer

	roles    *roles.Registry
	ledger   *ledger.Ledger
	market   *marketplace.Service
	training *training.Service

	seq uint64
}

// New starts an engine from empty state with opts.Admin as sole ADMIN.
func New(opts Options) (*Engine, error) {
	if opts.Admin.IsZero() || opts.Admin.IsModule() {
		return nil, fmt.Errorf("forge: admin account is required")
	}
	e := newEngine(opts)
	reg := roles.NewRegistry(opts.Admin, e.buf)
	if err := e.wire(reg, ledger.New(reg, e.buf), opts); err != nil {
		return nil, err
	}
	return e, nil
}

func newEngine(opts Options) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		now:      now,
		dispatch: opts.Dispatcher,
		buf:      &events.Buffer{},
	}
}

func (e *Engine) wire(reg *roles.Registry, l *ledger.Ledger, opts Options) error {
	market, err := marketplace.NewService(l, reg, e.buf, e.now)
	if err != nil {
		return fmt.Errorf("forge: marketplace: %w", err)
	}
	train, err := training.NewService(l, reg, e.buf, e.now, training.Options{
		TrainerOnlySubmissions: opts.TrainerOnlySubmissions,
	})
	if err != nil {
		return fmt.Errorf("forge: training: %w", err)
	}
	e.roles = reg
	e.ledger = l
	e.market = market
	e.training = train
	return nil
}

// apply runs fn as one atomic operation.
func (e *Engine) apply(op string, caller account.Account, fn func() error) (recs []events.Record, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	log := logger.ForOperation(op, caller.String())
	e.buf.Reset()
	if err := e.ledger.Begin(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		// fn panicked; leave the ledger as it was before the call.
		if e.ledger.InTx() {
			_ = e.ledger.Rollback()
			e.buf.Reset()
		}
	}()

	if err := fn(); err != nil {
		if rbErr := e.ledger.Rollback(); rbErr != nil {
			log.WithError(rbErr).Error("ledger rollback failed")
		}
		e.buf.Reset()
		metrics.ObserveRejected(op, failure.Name(err))
		log.WithError(err).Debug("operation rejected")
		return nil, err
	}
	if err := e.ledger.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	at := e.now().UTC()
	pending := e.buf.Drain()
	recs = make([]events.Record, 0, len(pending))
	for _, ev := range pending {
		e.seq++
		recs = append(recs, events.Record{Seq: e.seq, Op: op, Caller: caller.String(), At: at, Event: ev})
	}
	metrics.ObserveCommitted()
	log.WithField("events", len(recs)).Info("operation committed")
	if e.dispatch != nil {
		e.dispatch.Enqueue(recs)
	}
	return recs, nil
}

// Version is the sequence number of the last committed event. It changes
// whenever state does.
func (e *Engine) Version() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.seq
}

// Ledger

func (e *Engine) Mint(caller, to account.Account, amount *uint256.Int) ([]events.Record, error) {
	return e.apply("mint", caller, func() error {
		return e.ledger.Mint(caller, to, amount)
	})
}

func (e *Engine) Transfer(caller, to account.Account, amount *uint256.Int) ([]events.Record, error) {
	return e.apply("transfer", caller, func() error {
		return e.ledger.Transfer(caller, to, amount)
	})
}

func (e *Engine) Approve(caller, spender account.Account, amount *uint256.Int) ([]events.Record, error) {
	return e.apply("approve", caller, func() error {
		return e.ledger.Approve(caller, spender, amount)
	})
}

func (e *Engine) TransferFrom(caller, from, to account.Account, amount *uint256.Int) ([]events.Record, error) {
	return e.apply("transferFrom", caller, func() error {
		return e.ledger.TransferFrom(caller, from, to, amount)
	})
}

func (e *Engine) BalanceOf(a account.Account) *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.BalanceOf(a)
}

func (e *Engine) Allowance(owner, spender account.Account) *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Allowance(owner, spender)
}

func (e *Engine) TotalSupply() *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.TotalSupply()
}

type TokenInfo struct {
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *uint256.Int
	Holders     int
}

func (e *Engine) TokenInfo() TokenInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return TokenInfo{
		Name:        ledger.TokenName,
		Symbol:      ledger.TokenSymbol,
		Decimals:    ledger.TokenDecimals,
		TotalSupply: e.ledger.TotalSupply(),
		Holders:     e.ledger.Holders(),
	}
}

// Roles

func (e *Engine) GrantRole(caller account.Account, role roles.Role, a account.Account) ([]events.Record, error) {
	return e.apply("grantRole", caller, func() error {
		return e.roles.GrantRole(caller, role, a)
	})
}

func (e *Engine) RevokeRole(caller account.Account, role roles.Role, a account.Account) ([]events.Record, error) {
	return e.apply("revokeRole", caller, func() error {
		return e.roles.RevokeRole(caller, role, a)
	})
}

func (e *Engine) RenounceRole(caller account.Account, role roles.Role) ([]events.Record, error) {
	return e.apply("renounceRole", caller, func() error {
		return e.roles.RenounceRole(caller, role)
	})
}

func (e *Engine) HasRole(role roles.Role, a account.Account) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.roles.HasRole(role, a)
}

func (e *Engine) Members(role roles.Role) []account.Account {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.roles.Members(role)
}

// Marketplace

// MarketplaceAccount is the spender buyers approve before BuyModel.
func (e *Engine) MarketplaceAccount() account.Account { return e.market.Account() }

func (e *Engine) ListModel(caller account.Account, contentRef string, price *uint256.Int, royaltyPercentage int) (uint64, []events.Record, error) {
	var id uint64
	recs, err := e.apply("listModel", caller, func() error {
		var err error
		id, err = e.market.ListModel(caller, contentRef, price, royaltyPercentage)
		return err
	})
	return id, recs, err
}

func (e *Engine) UpdateListing(caller account.Account, id uint64, newPrice *uint256.Int, forSale bool) ([]events.Record, error) {
	return e.apply("updateListing", caller, func() error {
		return e.market.UpdateListing(caller, id, newPrice, forSale)
	})
}

func (e *Engine) Delist(caller account.Account, id uint64) ([]events.Record, error) {
	return e.apply("delist", caller, func() error {
		return e.market.Delist(caller, id)
	})
}

func (e *Engine) BuyModel(caller account.Account, id uint64) ([]events.Record, error) {
	return e.apply("buyModel", caller, func() error {
		_, err := e.market.BuyModel(caller, id)
		return err
	})
}

func (e *Engine) SetVerified(caller account.Account, id uint64, verified bool) ([]events.Record, error) {
	return e.apply("setVerified", caller, func() error {
		return e.market.SetVerified(caller, id, verified)
	})
}

func (e *Engine) GetModelDetails(id uint64) (marketplace.Listing, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.market.GetModelDetails(id)
}

func (e *Engine) ListModels() []marketplace.Listing {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.market.ListModels()
}

func (e *Engine) ModelCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.market.ModelCount()
}

// Training

// TrainingAccount is the spender job creators approve before creating a
// job.
func (e *Engine) TrainingAccount() account.Account { return e.training.Account() }

func (e *Engine) EscrowAccount(jobID uint64) account.Account { return e.training.EscrowAccount(jobID) }

func (e *Engine) CreateTrainingJob(caller account.Account, in training.CreateJobInput) (uint64, []events.Record, error) {
	var id uint64
	recs, err := e.apply("createTrainingJob", caller, func() error {
		var err error
		id, err = e.training.CreateTrainingJob(caller, in)
		return err
	})
	return id, recs, err
}

func (e *Engine) SubmitTrainingResult(caller account.Account, jobID uint64, resultRef string, score int) ([]events.Record, error) {
	return e.apply("submitTrainingResult", caller, func() error {
		return e.training.SubmitTrainingResult(caller, jobID, resultRef, score)
	})
}

func (e *Engine) CompleteTrainingJob(caller account.Account, jobID uint64, plan []training.Payout) ([]events.Record, error) {
	return e.apply("completeTrainingJob", caller, func() error {
		return e.training.CompleteTrainingJob(caller, jobID, plan)
	})
}

// CompleteTrainingJobProportionally completes a job with a plan derived
// from submission scores.
func (e *Engine) CompleteTrainingJobProportionally(caller account.Account, jobID uint64) ([]training.Payout, []events.Record, error) {
	var plan []training.Payout
	recs, err := e.apply("completeTrainingJob", caller, func() error {
		var err error
		plan, err = e.training.CompleteProportionally(caller, jobID)
		return err
	})
	return plan, recs, err
}

func (e *Engine) CancelTrainingJob(caller account.Account, jobID uint64) ([]events.Record, error) {
	return e.apply("cancelTrainingJob", caller, func() error {
		return e.training.CancelTrainingJob(caller, jobID)
	})
}

func (e *Engine) GetJobDetails(jobID uint64) (training.Job, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.training.GetJobDetails(jobID)
}

func (e *Engine) ListJobs() []training.Job {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.training.ListJobs()
}
