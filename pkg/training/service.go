// Package training runs reward-bearing training jobs. A job's reward is
// pulled into a per-job escrow account at creation and released exactly
// once, either to participants on completion or back to the creator on
// cancellation.
package training

import (
	"sort"
	"strconv"
	"time"

	"github.com/holiman/uint256"
	"github.com/neuralforge/platform/pkg/account"
	"github.com/neuralforge/platform/pkg/common/failure"
	"github.com/neuralforge/platform/pkg/events"
	"github.com/neuralforge/platform/pkg/ledger"
	"github.com/neuralforge/platform/pkg/roles"
)

const ModuleName = "training"

type Options struct {
	// TrainerOnlySubmissions restricts submitTrainingResult to TRAINER
	// holders.
	TrainerOnlySubmissions bool
}

type Service struct {
	ledger *ledger.Ledger
	module *ledger.Module
	roles  *roles.Registry
	emit   events.Emitter
	now    func() time.Time
	opts   Options

	jobs   map[uint64]*Job
	lastID uint64
}

func NewService(l *ledger.Ledger, reg *roles.Registry, emit events.Emitter, now func() time.Time, opts Options) (*Service, error) {
	mod, err := l.Module(ModuleName)
	if err != nil {
		return nil, err
	}
	if emit == nil {
		emit = events.Discard
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		ledger: l,
		module: mod,
		roles:  reg,
		emit:   emit,
		now:    now,
		opts:   opts,
		jobs:   make(map[uint64]*Job),
	}, nil
}

// Account is the spender job creators must approve.
func (s *Service) Account() account.Account { return s.module.Account() }

// EscrowAccount holds the reward of job id while it is open.
func (s *Service) EscrowAccount(id uint64) account.Account {
	return s.module.Account().Sub("escrow", strconv.FormatUint(id, 10))
}

func (s *Service) CreateTrainingJob(caller account.Account, in CreateJobInput) (uint64, error) {
	const op = "createTrainingJob"
	if caller.IsZero() || caller.IsModule() {
		return 0, failure.New(failure.ErrUnauthorized, op, "invalid caller %q", caller)
	}
	if in.Reward == nil || in.Reward.IsZero() {
		return 0, failure.New(failure.ErrInvalidAmount, op, "reward must be positive")
	}

	id := s.lastID + 1
	if err := s.module.Pull(op, caller, s.EscrowAccount(id), in.Reward); err != nil {
		return 0, err
	}

	s.lastID = id
	s.jobs[id] = &Job{
		ID:                     id,
		Creator:                caller,
		ModelRef:               in.ModelRef,
		DatasetRef:             in.DatasetRef,
		Reward:                 *in.Reward,
		RequiredComputingPower: in.RequiredComputingPower,
		DurationSeconds:        in.DurationSeconds,
		Status:                 StatusOpen,
		CreatedAt:              s.now().UTC(),
	}
	s.emit.Emit(JobCreated{ID: id, Owner: caller, Reward: new(uint256.Int).Set(in.Reward)})
	return id, nil
}

// SubmitTrainingResult appends a submission. Repeat submissions by the
// same participant are kept; each one counts toward ParticipantCount.
func (s *Service) SubmitTrainingResult(caller account.Account, jobID uint64, resultRef string, score int) error {
	const op = "submitTrainingResult"
	if caller.IsZero() || caller.IsModule() {
		return failure.New(failure.ErrUnauthorized, op, "invalid caller %q", caller)
	}
	if s.opts.TrainerOnlySubmissions && !s.roles.HasRole(roles.Trainer, caller) {
		return failure.New(failure.ErrUnauthorized, op, "%s does not hold %s", caller, roles.Trainer)
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return failure.New(failure.ErrNotFound, op, "job %d", jobID)
	}
	if job.Status != StatusOpen {
		return failure.New(failure.ErrJobNotOpen, op, "job %d is %s", jobID, job.Status)
	}
	if score < 0 || score > MaxScore {
		return failure.New(failure.ErrInvalidScore, op, "score %d outside 0-%d", score, MaxScore)
	}

	job.Submissions = append(job.Submissions, Submission{
		Participant: caller,
		ResultRef:   resultRef,
		Score:       uint8(score),
		SubmittedAt: s.now().UTC(),
	})
	job.ParticipantCount++
	s.emit.Emit(ResultSubmitted{JobID: jobID, Participant: caller, ResultRef: resultRef, Score: uint8(score)})
	return nil
}

// CompleteTrainingJob releases the escrow according to plan. Only
// VERIFIER holders may complete; the job creator cannot.
func (s *Service) CompleteTrainingJob(caller account.Account, jobID uint64, plan []Payout) error {
	const op = "completeTrainingJob"
	job, err := s.completable(op, caller, jobID)
	if err != nil {
		return err
	}
	return s.complete(op, caller, job, plan)
}

// CompleteProportionally completes job id with the plan ProportionalPlan
// derives from its submissions.
func (s *Service) CompleteProportionally(caller account.Account, jobID uint64) ([]Payout, error) {
	const op = "completeTrainingJob"
	job, err := s.completable(op, caller, jobID)
	if err != nil {
		return nil, err
	}
	plan := ProportionalPlan(&job.Reward, job.Submissions)
	if err := s.complete(op, caller, job, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *Service) completable(op string, caller account.Account, jobID uint64) (*Job, error) {
	if !s.roles.HasRole(roles.Verifier, caller) {
		return nil, failure.New(failure.ErrUnauthorized, op, "%s does not hold %s", caller, roles.Verifier)
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, failure.New(failure.ErrNotFound, op, "job %d", jobID)
	}
	if job.Status != StatusOpen {
		return nil, failure.New(failure.ErrJobNotOpen, op, "job %d is %s", jobID, job.Status)
	}
	if job.ParticipantCount == 0 {
		return nil, failure.New(failure.ErrNoSubmissions, op, "job %d", jobID)
	}
	return job, nil
}

func (s *Service) complete(op string, caller account.Account, job *Job, plan []Payout) error {
	if err := validatePlan(op, job, plan); err != nil {
		return err
	}

	escrow := s.EscrowAccount(job.ID)
	paid := make([]PayoutEvent, 0, len(plan))
	settled := make([]Payout, 0, len(plan))
	for _, p := range plan {
		if p.Amount.IsZero() {
			continue
		}
		amount := p.Amount
		if err := s.module.Pay(op, escrow, p.Participant, &amount); err != nil {
			return err
		}
		paid = append(paid, PayoutEvent{Participant: p.Participant, Amount: new(uint256.Int).Set(&amount)})
		settled = append(settled, p)
	}

	closed := s.now().UTC()
	job.Status = StatusCompleted
	job.ClosedAt = &closed
	job.Payouts = settled
	s.emit.Emit(JobCompleted{JobID: job.ID, Verifier: caller, Payouts: paid})
	return nil
}

// CancelTrainingJob refunds the whole escrow to the creator.
func (s *Service) CancelTrainingJob(caller account.Account, jobID uint64) error {
	const op = "cancelTrainingJob"
	job, ok := s.jobs[jobID]
	if !ok {
		return failure.New(failure.ErrNotFound, op, "job %d", jobID)
	}
	if caller != job.Creator {
		return failure.New(failure.ErrUnauthorized, op, "%s did not create job %d", caller, jobID)
	}
	if job.Status != StatusOpen {
		return failure.New(failure.ErrJobNotOpen, op, "job %d is %s", jobID, job.Status)
	}

	refund := new(uint256.Int).Set(&job.Reward)
	if err := s.module.Pay(op, s.EscrowAccount(jobID), job.Creator, refund); err != nil {
		return err
	}

	closed := s.now().UTC()
	job.Status = StatusCancelled
	job.ClosedAt = &closed
	s.emit.Emit(JobCancelled{JobID: jobID, Creator: job.Creator, Refund: refund})
	return nil
}

func (s *Service) GetJobDetails(jobID uint64) (Job, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return Job{}, failure.New(failure.ErrNotFound, "getJobDetails", "job %d", jobID)
	}
	return job.clone(), nil
}

// ListJobs returns copies of every job ordered by id.
func (s *Service) ListJobs() []Job {
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.clone())
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

func (s *Service) JobCount() int { return len(s.jobs) }

// ProportionalPlan builds a payout plan for job id from its submissions.
func (s *Service) ProportionalPlan(jobID uint64) ([]Payout, error) {
	const op = "proportionalPlan"
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, failure.New(failure.ErrNotFound, op, "job %d", jobID)
	}
	if len(job.Submissions) == 0 {
		return nil, failure.New(failure.ErrNoSubmissions, op, "job %d", jobID)
	}
	return ProportionalPlan(&job.Reward, job.Submissions), nil
}

// CheckEscrow verifies that every open job's escrow holds exactly its
// reward and every closed job's escrow is empty.
func (s *Service) CheckEscrow() error {
	for _, job := range s.jobs {
		held := s.ledger.BalanceOf(s.EscrowAccount(job.ID))
		want := new(uint256.Int)
		if job.Status == StatusOpen {
			want.Set(&job.Reward)
		}
		if !held.Eq(want) {
			return failure.New(failure.ErrInvalidInput, "checkEscrow",
				"job %d (%s) escrow holds %s, expected %s", job.ID, job.Status, held.Dec(), want.Dec())
		}
	}
	return nil
}
