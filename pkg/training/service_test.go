package training

import (
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/neuralforge/platform/pkg/account"
	"github.com/neuralforge/platform/pkg/common/failure"
	"github.com/neuralforge/platform/pkg/events"
	"github.com/neuralforge/platform/pkg/ledger"
	"github.com/neuralforge/platform/pkg/roles"
)

const (
	admin    account.Account = "admin"
	creator  account.Account = "creator"
	alice    account.Account = "alice"
	bob      account.Account = "bob"
	verifier account.Account = "verifier"
)

func n(v uint64) *uint256.Int { return uint256.NewInt(v) }

type fixture struct {
	ledger   *ledger.Ledger
	roles    *roles.Registry
	training *Service
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	buf := &events.Buffer{}
	reg := roles.NewRegistry(admin, buf)
	l := ledger.New(reg, buf)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewService(l, reg, buf, func() time.Time { return clock }, opts)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := l.Mint(admin, creator, n(1000)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := reg.GrantRole(admin, roles.Verifier, verifier); err != nil {
		t.Fatalf("GrantRole: %v", err)
	}
	return &fixture{ledger: l, roles: reg, training: svc}
}

// run wraps fn in a ledger transaction the way the engine does.
func (f *fixture) run(t *testing.T, fn func() error) error {
	t.Helper()
	if err := f.ledger.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := fn(); err != nil {
		if rbErr := f.ledger.Rollback(); rbErr != nil {
			t.Fatalf("Rollback: %v", rbErr)
		}
		return err
	}
	if err := f.ledger.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return nil
}

func (f *fixture) createJob(t *testing.T, reward uint64) uint64 {
	t.Helper()
	if err := f.ledger.Approve(creator, f.training.Account(), n(reward)); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	var id uint64
	err := f.run(t, func() error {
		var err error
		id, err = f.training.CreateTrainingJob(creator, CreateJobInput{
			ModelRef:        "ipfs://model",
			DatasetRef:      "ipfs://data",
			Reward:          n(reward),
			DurationSeconds: 3600,
		})
		return err
	})
	if err != nil {
		t.Fatalf("CreateTrainingJob: %v", err)
	}
	return id
}

func (f *fixture) expectBalance(t *testing.T, a account.Account, want uint64) {
	t.Helper()
	if got := f.ledger.BalanceOf(a); !got.Eq(n(want)) {
		t.Fatalf("balance of %s: got %s want %d", a, got.Dec(), want)
	}
}

func TestCreateJobEscrowsReward(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.createJob(t, 300)

	f.expectBalance(t, creator, 700)
	f.expectBalance(t, f.training.EscrowAccount(id), 300)
	job, err := f.training.GetJobDetails(id)
	if err != nil {
		t.Fatalf("GetJobDetails: %v", err)
	}
	if job.Status != StatusOpen || job.ParticipantCount != 0 {
		t.Fatalf("unexpected job %+v", job)
	}
	if want := job.CreatedAt.Add(time.Hour); !job.Deadline().Equal(want) {
		t.Fatalf("deadline %v, want %v", job.Deadline(), want)
	}
	if err := f.training.CheckEscrow(); err != nil {
		t.Fatalf("CheckEscrow: %v", err)
	}
}

func TestCreateJobRequiresApprovalAndReward(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.training.CreateTrainingJob(creator, CreateJobInput{Reward: n(0)})
	if !errors.Is(err, failure.ErrInvalidAmount) {
		t.Fatalf("expected InvalidAmount, got %v", err)
	}
	_, err = f.training.CreateTrainingJob(creator, CreateJobInput{Reward: n(10)})
	if !errors.Is(err, failure.ErrInsufficientAllowance) {
		t.Fatalf("expected InsufficientAllowance, got %v", err)
	}
	if f.training.JobCount() != 0 {
		t.Fatal("failed creation must not store a job")
	}
	f.expectBalance(t, creator, 1000)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.createJob(t, 100)

	if err := f.training.SubmitTrainingResult(alice, 9, "r", 50); !errors.Is(err, failure.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	for _, score := range []int{-1, 101} {
		if err := f.training.SubmitTrainingResult(alice, id, "r", score); !errors.Is(err, failure.ErrInvalidScore) {
			t.Fatalf("score %d: expected InvalidScore, got %v", score, err)
		}
	}
	for _, score := range []int{0, 100, 40} {
		if err := f.training.SubmitTrainingResult(alice, id, "r", score); err != nil {
			t.Fatalf("score %d: %v", score, err)
		}
	}
	job, _ := f.training.GetJobDetails(id)
	if job.ParticipantCount != 3 || len(job.Submissions) != 3 {
		t.Fatalf("repeat submissions should append, got %d", job.ParticipantCount)
	}
}

func TestTrainerOnlySubmissions(t *testing.T) {
	f := newFixture(t, Options{TrainerOnlySubmissions: true})
	id := f.createJob(t, 100)

	if err := f.training.SubmitTrainingResult(alice, id, "r", 50); !errors.Is(err, failure.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	if err := f.roles.GrantRole(admin, roles.Trainer, alice); err != nil {
		t.Fatalf("GrantRole: %v", err)
	}
	if err := f.training.SubmitTrainingResult(alice, id, "r", 50); err != nil {
		t.Fatalf("SubmitTrainingResult: %v", err)
	}
}

func TestCompleteJobPaysPlan(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.createJob(t, 100)
	f.training.SubmitTrainingResult(alice, id, "a", 80)
	f.training.SubmitTrainingResult(bob, id, "b", 20)

	plan := []Payout{{Participant: alice, Amount: *n(70)}, {Participant: bob, Amount: *n(30)}}
	if err := f.run(t, func() error { return f.training.CompleteTrainingJob(creator, id, plan) }); !errors.Is(err, failure.ErrUnauthorized) {
		t.Fatalf("creator must not complete, got %v", err)
	}
	if err := f.run(t, func() error { return f.training.CompleteTrainingJob(verifier, id, plan) }); err != nil {
		t.Fatalf("CompleteTrainingJob: %v", err)
	}

	f.expectBalance(t, alice, 70)
	f.expectBalance(t, bob, 30)
	f.expectBalance(t, f.training.EscrowAccount(id), 0)
	job, _ := f.training.GetJobDetails(id)
	if job.Status != StatusCompleted || job.ClosedAt == nil || len(job.Payouts) != 2 {
		t.Fatalf("unexpected job %+v", job)
	}
	if err := f.training.CheckEscrow(); err != nil {
		t.Fatalf("CheckEscrow: %v", err)
	}

	if err := f.training.SubmitTrainingResult(alice, id, "late", 90); !errors.Is(err, failure.ErrJobNotOpen) {
		t.Fatalf("expected JobNotOpen, got %v", err)
	}
	if err := f.training.CompleteTrainingJob(verifier, id, plan); !errors.Is(err, failure.ErrJobNotOpen) {
		t.Fatalf("expected JobNotOpen on second completion, got %v", err)
	}
}

func TestCompleteJobRejectsBadPlans(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.createJob(t, 100)

	if err := f.training.CompleteTrainingJob(verifier, id, nil); !errors.Is(err, failure.ErrNoSubmissions) {
		t.Fatalf("expected NoSubmissions, got %v", err)
	}
	f.training.SubmitTrainingResult(alice, id, "a", 80)
	f.training.SubmitTrainingResult(bob, id, "b", 20)

	cases := []struct {
		name string
		plan []Payout
	}{
		{"empty", nil},
		{"short", []Payout{{Participant: alice, Amount: *n(99)}}},
		{"over", []Payout{{Participant: alice, Amount: *n(60)}, {Participant: bob, Amount: *n(41)}}},
		{"zero total", []Payout{{Participant: alice, Amount: *n(0)}, {Participant: bob, Amount: *n(0)}}},
		{"outsider", []Payout{{Participant: creator, Amount: *n(100)}}},
		{"duplicate", []Payout{{Participant: alice, Amount: *n(50)}, {Participant: alice, Amount: *n(50)}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.run(t, func() error { return f.training.CompleteTrainingJob(verifier, id, tc.plan) })
			if !errors.Is(err, failure.ErrInvalidPayoutPlan) {
				t.Fatalf("expected InvalidPayoutPlan, got %v", err)
			}
		})
	}
	f.expectBalance(t, f.training.EscrowAccount(id), 100)
}

func TestCompleteJobSettlesZeroShares(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.createJob(t, 50)
	f.training.SubmitTrainingResult(alice, id, "a", 90)
	f.training.SubmitTrainingResult(bob, id, "b", 0)

	plan := []Payout{{Participant: alice, Amount: *n(50)}, {Participant: bob, Amount: *n(0)}}
	if err := f.run(t, func() error { return f.training.CompleteTrainingJob(verifier, id, plan) }); err != nil {
		t.Fatalf("CompleteTrainingJob: %v", err)
	}
	f.expectBalance(t, alice, 50)
	f.expectBalance(t, bob, 0)
	f.expectBalance(t, f.training.EscrowAccount(id), 0)
	job, _ := f.training.GetJobDetails(id)
	if job.Status != StatusCompleted || len(job.Payouts) != 1 || job.Payouts[0].Participant != alice {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestCancelRefundsCreator(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.createJob(t, 250)

	if err := f.training.CancelTrainingJob(alice, id); !errors.Is(err, failure.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	if err := f.run(t, func() error { return f.training.CancelTrainingJob(creator, id) }); err != nil {
		t.Fatalf("CancelTrainingJob: %v", err)
	}
	f.expectBalance(t, creator, 1000)
	f.expectBalance(t, f.training.EscrowAccount(id), 0)
	if err := f.training.CancelTrainingJob(creator, id); !errors.Is(err, failure.ErrJobNotOpen) {
		t.Fatalf("expected JobNotOpen, got %v", err)
	}
	if !f.ledger.TotalSupply().Eq(n(1000)) {
		t.Fatalf("supply changed to %s", f.ledger.TotalSupply().Dec())
	}
}

func TestProportionalPlan(t *testing.T) {
	subs := []Submission{
		{Participant: alice, Score: 10},
		{Participant: bob, Score: 20},
		{Participant: alice, Score: 40},
	}
	plan := ProportionalPlan(n(100), subs)
	if len(plan) != 2 {
		t.Fatalf("expected 2 payouts, got %d", len(plan))
	}
	// alice 40/60, bob 20/60 of 100: 66 and 33, dust to alice.
	if plan[0].Participant != alice || !plan[0].Amount.Eq(n(67)) {
		t.Fatalf("unexpected alice payout %+v", plan[0])
	}
	if plan[1].Participant != bob || !plan[1].Amount.Eq(n(33)) {
		t.Fatalf("unexpected bob payout %+v", plan[1])
	}

	zero := ProportionalPlan(n(9), []Submission{{Participant: bob}, {Participant: alice}})
	if len(zero) != 1 || zero[0].Participant != bob || !zero[0].Amount.Eq(n(9)) {
		t.Fatalf("all-zero scores should pay the earliest participant, got %+v", zero)
	}
}

func TestProportionalPlanCompletesJob(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.createJob(t, 1000)
	f.training.SubmitTrainingResult(alice, id, "a", 33)
	f.training.SubmitTrainingResult(bob, id, "b", 33)

	plan, err := f.training.ProportionalPlan(id)
	if err != nil {
		t.Fatalf("ProportionalPlan: %v", err)
	}
	if err := f.run(t, func() error { return f.training.CompleteTrainingJob(verifier, id, plan) }); err != nil {
		t.Fatalf("CompleteTrainingJob: %v", err)
	}
	f.expectBalance(t, alice, 500)
	f.expectBalance(t, bob, 500)
}

func TestSnapshotRestore(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.createJob(t, 100)
	f.training.SubmitTrainingResult(alice, id, "a", 50)

	snap := f.training.Snapshot()
	g := newFixture(t, Options{})
	if err := g.training.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	job, err := g.training.GetJobDetails(id)
	if err != nil {
		t.Fatalf("GetJobDetails: %v", err)
	}
	if len(job.Submissions) != 1 || job.Submissions[0].Participant != alice || !job.Reward.Eq(n(100)) {
		t.Fatalf("unexpected restored job %+v", job)
	}
	// g's ledger never escrowed the reward.
	if err := g.training.CheckEscrow(); err == nil {
		t.Fatal("expected escrow mismatch")
	}
}
