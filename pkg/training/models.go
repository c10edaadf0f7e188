package training

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/neuralforge/platform/pkg/account"
)

type Status string

const (
	StatusOpen      Status = "Open"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

const MaxScore = 100

// Job is a reward-bearing training task. Its reward sits in the job's
// escrow account while the job is Open.
type Job struct {
	ID                     uint64
	Creator                account.Account
	ModelRef               string
	DatasetRef             string
	Reward                 uint256.Int
	RequiredComputingPower uint64
	DurationSeconds        uint64
	Status                 Status
	CreatedAt              time.Time
	ClosedAt               *time.Time
	Submissions            []Submission
	ParticipantCount       uint64
	Payouts                []Payout
}

// Deadline is informational; nothing closes a job when it passes.
func (j Job) Deadline() time.Time {
	return j.CreatedAt.Add(time.Duration(j.DurationSeconds) * time.Second)
}

func (j *Job) clone() Job {
	out := *j
	out.Submissions = append([]Submission(nil), j.Submissions...)
	out.Payouts = append([]Payout(nil), j.Payouts...)
	if j.ClosedAt != nil {
		closed := *j.ClosedAt
		out.ClosedAt = &closed
	}
	return out
}

type Submission struct {
	Participant account.Account
	ResultRef   string
	Score       uint8
	SubmittedAt time.Time
}

// Payout is one entry of a payout plan.
type Payout struct {
	Participant account.Account
	Amount      uint256.Int
}

type CreateJobInput struct {
	ModelRef               string
	DatasetRef             string
	Reward                 *uint256.Int
	RequiredComputingPower uint64
	DurationSeconds        uint64
}

type JobCreated struct {
	ID     uint64          `json:"id"`
	Owner  account.Account `json:"owner"`
	Reward *uint256.Int    `json:"reward"`
}

func (JobCreated) EventType() string   { return "JobCreated" }
func (e JobCreated) Parties() []string { return []string{e.Owner.String()} }

type ResultSubmitted struct {
	JobID       uint64          `json:"job_id"`
	Participant account.Account `json:"participant"`
	ResultRef   string          `json:"result_ref"`
	Score       uint8           `json:"score"`
}

func (ResultSubmitted) EventType() string   { return "ResultSubmitted" }
func (e ResultSubmitted) Parties() []string { return []string{e.Participant.String()} }

type PayoutEvent struct {
	Participant account.Account `json:"participant"`
	Amount      *uint256.Int    `json:"amount"`
}

type JobCompleted struct {
	JobID    uint64          `json:"job_id"`
	Verifier account.Account `json:"verifier"`
	Payouts  []PayoutEvent   `json:"payouts"`
}

func (JobCompleted) EventType() string { return "JobCompleted" }
func (e JobCompleted) Parties() []string {
	parties := []string{e.Verifier.String()}
	for _, p := range e.Payouts {
		parties = append(parties, p.Participant.String())
	}
	return parties
}

type JobCancelled struct {
	JobID   uint64          `json:"job_id"`
	Creator account.Account `json:"creator"`
	Refund  *uint256.Int    `json:"refund"`
}

func (JobCancelled) EventType() string   { return "JobCancelled" }
func (e JobCancelled) Parties() []string { return []string{e.Creator.String()} }
