package training

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/neuralforge/platform/pkg/account"
)

type Snapshot struct {
	LastID uint64      `json:"last_id"`
	Jobs   []JobRecord `json:"jobs"`
}

// JobRecord is the stored form of a Job; amounts are decimal strings.
type JobRecord struct {
	ID                     uint64             `json:"id"`
	Creator                account.Account    `json:"creator"`
	ModelRef               string             `json:"model_ref"`
	DatasetRef             string             `json:"dataset_ref"`
	Reward                 string             `json:"reward"`
	RequiredComputingPower uint64             `json:"required_computing_power"`
	DurationSeconds        uint64             `json:"duration_seconds"`
	Status                 Status             `json:"status"`
	CreatedAt              time.Time          `json:"created_at"`
	ClosedAt               *time.Time         `json:"closed_at,omitempty"`
	ParticipantCount       uint64             `json:"participant_count"`
	Submissions            []SubmissionRecord `json:"submissions"`
	Payouts                []PayoutRecord     `json:"payouts,omitempty"`
}

type SubmissionRecord struct {
	Participant account.Account `json:"participant"`
	ResultRef   string          `json:"result_ref"`
	Score       uint8           `json:"score"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

type PayoutRecord struct {
	Participant account.Account `json:"participant"`
	Amount      string          `json:"amount"`
}

func (s *Service) Snapshot() Snapshot {
	snap := Snapshot{LastID: s.lastID}
	for _, j := range s.ListJobs() {
		rec := JobRecord{
			ID:                     j.ID,
			Creator:                j.Creator,
			ModelRef:               j.ModelRef,
			DatasetRef:             j.DatasetRef,
			Reward:                 j.Reward.Dec(),
			RequiredComputingPower: j.RequiredComputingPower,
			DurationSeconds:        j.DurationSeconds,
			Status:                 j.Status,
			CreatedAt:              j.CreatedAt,
			ClosedAt:               j.ClosedAt,
			ParticipantCount:       j.ParticipantCount,
		}
		for _, sub := range j.Submissions {
			rec.Submissions = append(rec.Submissions, SubmissionRecord(sub))
		}
		for _, p := range j.Payouts {
			rec.Payouts = append(rec.Payouts, PayoutRecord{Participant: p.Participant, Amount: p.Amount.Dec()})
		}
		snap.Jobs = append(snap.Jobs, rec)
	}
	return snap
}

// Restore replaces the service's jobs with snap. Escrow balances live in
// the ledger; call CheckEscrow once both are restored.
func (s *Service) Restore(snap Snapshot) error {
	jobs := make(map[uint64]*Job, len(snap.Jobs))
	for _, r := range snap.Jobs {
		if r.ID == 0 || r.ID > snap.LastID {
			return fmt.Errorf("job id %d outside 1-%d", r.ID, snap.LastID)
		}
		if _, dup := jobs[r.ID]; dup {
			return fmt.Errorf("duplicate job %d", r.ID)
		}
		switch r.Status {
		case StatusOpen, StatusCompleted, StatusCancelled:
		default:
			return fmt.Errorf("job %d: unknown status %q", r.ID, r.Status)
		}
		reward, err := uint256.FromDecimal(r.Reward)
		if err != nil {
			return fmt.Errorf("job %d reward: %w", r.ID, err)
		}
		job := &Job{
			ID:                     r.ID,
			Creator:                r.Creator,
			ModelRef:               r.ModelRef,
			DatasetRef:             r.DatasetRef,
			Reward:                 *reward,
			RequiredComputingPower: r.RequiredComputingPower,
			DurationSeconds:        r.DurationSeconds,
			Status:                 r.Status,
			CreatedAt:              r.CreatedAt,
			ClosedAt:               r.ClosedAt,
			ParticipantCount:       r.ParticipantCount,
		}
		for _, sub := range r.Submissions {
			if sub.Score > MaxScore {
				return fmt.Errorf("job %d: score %d", r.ID, sub.Score)
			}
			job.Submissions = append(job.Submissions, Submission(sub))
		}
		for _, p := range r.Payouts {
			amount, err := uint256.FromDecimal(p.Amount)
			if err != nil {
				return fmt.Errorf("job %d payout to %s: %w", r.ID, p.Participant, err)
			}
			job.Payouts = append(job.Payouts, Payout{Participant: p.Participant, Amount: *amount})
		}
		jobs[r.ID] = job
	}
	s.jobs = jobs
	s.lastID = snap.LastID
	return nil
}
