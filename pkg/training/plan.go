package training

import (
	"github.com/holiman/uint256"
	"github.com/neuralforge/platform/pkg/account"
	"github.com/neuralforge/platform/pkg/common/failure"
)

// validatePlan accepts a non-empty plan whose entries name distinct
// participants that submitted to job and sum to exactly the reward.
// Zero shares are allowed; they are settled by paying nothing.
func validatePlan(op string, job *Job, plan []Payout) error {
	if len(plan) == 0 {
		return failure.New(failure.ErrInvalidPayoutPlan, op, "plan is empty")
	}
	submitters := make(map[account.Account]struct{}, len(job.Submissions))
	for _, sub := range job.Submissions {
		submitters[sub.Participant] = struct{}{}
	}

	seen := make(map[account.Account]struct{}, len(plan))
	total := new(uint256.Int)
	for _, p := range plan {
		if _, ok := submitters[p.Participant]; !ok {
			return failure.New(failure.ErrInvalidPayoutPlan, op, "%s did not submit to job %d", p.Participant, job.ID)
		}
		if _, dup := seen[p.Participant]; dup {
			return failure.New(failure.ErrInvalidPayoutPlan, op, "%s appears twice", p.Participant)
		}
		seen[p.Participant] = struct{}{}

		var overflow bool
		total, overflow = new(uint256.Int).AddOverflow(total, &p.Amount)
		if overflow {
			return failure.New(failure.ErrInvalidPayoutPlan, op, "shares overflow")
		}
	}
	if !total.Eq(&job.Reward) {
		return failure.New(failure.ErrInvalidPayoutPlan, op,
			"shares sum to %s, reward is %s", total.Dec(), job.Reward.Dec())
	}
	return nil
}

// ProportionalPlan splits reward across the distinct participants of
// subs in proportion to each one's best score. Truncation dust goes to
// the highest scorer, the earliest one on a tie. Participants whose
// share truncates to zero are left out.
func ProportionalPlan(reward *uint256.Int, subs []Submission) []Payout {
	var order []account.Account
	best := make(map[account.Account]uint8)
	for _, sub := range subs {
		score, seen := best[sub.Participant]
		if !seen {
			order = append(order, sub.Participant)
		}
		if !seen || sub.Score > score {
			best[sub.Participant] = sub.Score
		}
	}
	if len(order) == 0 {
		return nil
	}

	top := order[0]
	var total uint64
	for _, a := range order {
		total += uint64(best[a])
		if best[a] > best[top] {
			top = a
		}
	}

	shares := make(map[account.Account]*uint256.Int, len(order))
	allocated := new(uint256.Int)
	for _, a := range order {
		share := new(uint256.Int)
		if total > 0 {
			share, _ = new(uint256.Int).MulDivOverflow(reward, uint256.NewInt(uint64(best[a])), uint256.NewInt(total))
		}
		shares[a] = share
		allocated.Add(allocated, share)
	}
	shares[top].Add(shares[top], new(uint256.Int).Sub(reward, allocated))

	plan := make([]Payout, 0, len(order))
	for _, a := range order {
		if shares[a].IsZero() {
			continue
		}
		plan = append(plan, Payout{Participant: a, Amount: *shares[a]})
	}
	return plan
}
