package services

import "ocelot/contexts/evaluation/leaderboard-service/domain/entities"

const DefaultSubmissionQuota = 7

// QuotaPolicy decides which ledger rows occupy a (team, test set) slot.
// Invalid submissions never count. Pending submissions count only when
// ReservePending is set, so an unscored upload holds its slot until the
// scorer rejects it.
type QuotaPolicy struct {
	Limit          int
	ReservePending bool
}

func (p QuotaPolicy) EffectiveLimit() int {
	if p.Limit <= 0 {
		return DefaultSubmissionQuota
	}
	return p.Limit
}

func (p QuotaPolicy) Counts(submission entities.Submission) bool {
	switch submission.State {
	case entities.ScoreStateValid:
		return true
	case entities.ScoreStatePending:
		return p.ReservePending
	default:
		return false
	}
}

// CountedStates lists the states matched by Counts, for storage-side counting.
func (p QuotaPolicy) CountedStates() []entities.ScoreState {
	if p.ReservePending {
		return []entities.ScoreState{entities.ScoreStateValid, entities.ScoreStatePending}
	}
	return []entities.ScoreState{entities.ScoreStateValid}
}

func (p QuotaPolicy) Admits(counted int) bool {
	return counted < p.EffectiveLimit()
}

func (p QuotaPolicy) Remaining(counted int) int {
	remaining := p.EffectiveLimit() - counted
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CountFor counts the submissions of teamID on testSetID that occupy quota.
func (p QuotaPolicy) CountFor(submissions []entities.Submission, teamID string, testSetID string) int {
	count := 0
	for _, item := range submissions {
		if item.TeamID == teamID && item.TestSetID == testSetID && p.Counts(item) {
			count++
		}
	}
	return count
}
