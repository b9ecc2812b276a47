package entities

import (
	"strings"
	"time"
)

type ScoreState string

const (
	ScoreStatePending ScoreState = "pending"
	ScoreStateValid   ScoreState = "valid"
	ScoreStateInvalid ScoreState = "invalid"
)

// StateForScore keeps the scorer contract: a non-negative primary score is
// valid, anything else (negative or NaN) is invalid.
func StateForScore(score float64) ScoreState {
	if score >= 0 {
		return ScoreStateValid
	}
	return ScoreStateInvalid
}

type Submission struct {
	SubmissionID string
	TeamID       string
	TestSetID    string
	FileName     string
	State        ScoreState
	Score        *float64
	ScoreChrF    *float64
	CreatedAt    time.Time
	ScoredAt     *time.Time
	// Sequence is assigned by the ledger and is strictly increasing in
	// admission order.
	Sequence int64
}

func (s Submission) ValidateCreate() bool {
	return strings.TrimSpace(s.SubmissionID) != "" &&
		strings.TrimSpace(s.TeamID) != "" &&
		strings.TrimSpace(s.TestSetID) != "" &&
		strings.TrimSpace(s.FileName) != "" &&
		s.State == ScoreStatePending
}

func (s Submission) IsValid() bool {
	return s.State == ScoreStateValid && s.Score != nil
}

func (s Submission) IsPending() bool {
	return s.State == ScoreStatePending
}

// WithScore returns the scored copy of a pending submission. ok is false when
// the submission was already scored.
func (s Submission) WithScore(score float64, scoreChrF *float64, at time.Time) (Submission, bool) {
	if !s.IsPending() {
		return s, false
	}
	primary := score
	scored := at.UTC()
	s.Score = &primary
	if scoreChrF != nil {
		secondary := *scoreChrF
		s.ScoreChrF = &secondary
	}
	s.State = StateForScore(score)
	s.ScoredAt = &scored
	return s, true
}
