package errors

import "errors"

var (
	ErrAuthenticationRequired   = errors.New("authentication required")
	ErrAlreadySignedIn          = errors.New("already signed in")
	ErrInvalidCredentials       = errors.New("invalid team credentials")
	ErrInvalidTeamInput         = errors.New("invalid team input")
	ErrDuplicateTeam            = errors.New("team name, email or token already registered")
	ErrUnknownTeam              = errors.New("unknown team")
	ErrUnknownTestSet           = errors.New("unknown test set")
	ErrInvalidTestSetInput      = errors.New("invalid test set input")
	ErrTestSetInactive          = errors.New("test set is not accepting submissions")
	ErrInvalidSubmissionInput   = errors.New("invalid submission input")
	ErrQuotaExceeded            = errors.New("quota exceeded for this test set")
	ErrSubmissionNotFound       = errors.New("submission not found")
	ErrScoreAlreadyRecorded     = errors.New("submission already scored")
	ErrInvalidScoreInput        = errors.New("invalid score input")
	ErrIdempotencyKeyConflict   = errors.New("event id reused with different payload")
	ErrRepositoryInvariantBroke = errors.New("repository invariant violated")
)
