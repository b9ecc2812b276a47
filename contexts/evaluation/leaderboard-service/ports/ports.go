package ports

import (
	"context"
	"time"

	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
	"ocelot/contexts/evaluation/leaderboard-service/domain/services"
	contractsv1 "ocelot/contracts/gen/events/v1"
	"ocelot/internal/shared/outbox"
)

// TeamRepository is the identity store. Name, email and token are unique.
type TeamRepository interface {
	CreateTeam(ctx context.Context, team entities.Team) error
	GetTeam(ctx context.Context, teamID string) (entities.Team, error)
	// GetTeamByToken returns found=false for an unknown token; it is not an error.
	GetTeamByToken(ctx context.Context, token string) (entities.Team, bool, error)
	FindTeamByCredentials(ctx context.Context, name string, email string, token string) (entities.Team, bool, error)
	UpdateTeamProfile(ctx context.Context, teamID string, description string, publicationURL string, updatedAt time.Time) (entities.Team, error)
	// TokensByTeamID maps team ids to tokens for ranking projection.
	TokensByTeamID(ctx context.Context, teamIDs []string) (map[string]string, error)
}

// TestSetCatalog lists test sets in catalog (insertion) order.
type TestSetCatalog interface {
	GetTestSet(ctx context.Context, testSetID string) (entities.TestSet, error)
	ListTestSets(ctx context.Context, activeOnly bool) ([]entities.TestSet, error)
	SetTestSetActive(ctx context.Context, testSetID string, active bool) (entities.TestSet, error)
}

type SubmissionFilter struct {
	TeamID     string
	TestSetIDs []string
	States     []entities.ScoreState
}

// SubmissionLedger is the append-only submission store.
type SubmissionLedger interface {
	// AdmitSubmission counts quota-occupying rows for the pair and appends the
	// submission plus its outbox event as one atomic step per (team, test set).
	// It returns ErrQuotaExceeded without writing when the policy rejects, and
	// ErrUnknownTeam/ErrUnknownTestSet for dangling references. The returned
	// submission carries its ledger Sequence.
	AdmitSubmission(ctx context.Context, submission entities.Submission, policy services.QuotaPolicy, event EventEnvelope) (entities.Submission, error)
	GetSubmission(ctx context.Context, submissionID string) (entities.Submission, error)
	// ListSubmissions returns rows in ledger order.
	ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]entities.Submission, error)
	// RecordScore applies the scored copy only while the row is still pending.
	RecordScore(ctx context.Context, scored entities.Submission) error
}

// SessionStore maps opaque browser session ids to team tokens.
type SessionStore interface {
	CreateSession(ctx context.Context, sessionID string, token string, ttl time.Duration) error
	GetSessionToken(ctx context.Context, sessionID string) (string, bool, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type TokenGenerator interface {
	NewToken(ctx context.Context) (string, error)
}

type OutboxMessage = outbox.Message

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// EventDedupStore records processed event ids. An expired reservation is
// replaced as if it never existed.
type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
	// ReleaseEvent forgets a reservation so a redelivered event is processed again.
	ReleaseEvent(ctx context.Context, eventID string) error
}

type EventEnvelope = contractsv1.Envelope

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}
