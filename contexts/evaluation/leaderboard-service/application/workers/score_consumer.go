package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "ocelot/contexts/evaluation/leaderboard-service/application"
	"ocelot/contexts/evaluation/leaderboard-service/application/commands"
	domainerrors "ocelot/contexts/evaluation/leaderboard-service/domain/errors"
	"ocelot/contexts/evaluation/leaderboard-service/ports"
	contractsv1 "ocelot/contracts/gen/events/v1"
)

const (
	SubmissionScoredTopic        = "submission.scored"
	defaultScoreConsumerGroup    = "leaderboard-service-submission-scored-cg"
	defaultScoreConsumerDedupTTL = 7 * 24 * time.Hour
)

// ScoreConsumer applies scorer results published on submission.scored.
type ScoreConsumer struct {
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	RecordScore   commands.RecordScoreUseCase
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Logger        *slog.Logger
}

func (c ScoreConsumer) Start(ctx context.Context) error {
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultScoreConsumerGroup
	}
	return c.Subscriber.Subscribe(ctx, SubmissionScoredTopic, group, c.Handle)
}

// Handle is idempotent per event id. A redelivered score for an already
// scored submission is logged and acknowledged. A failed attempt releases
// its reservation.
func (c ScoreConsumer) Handle(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}

	alreadyProcessed, err := c.Dedup.ReserveEvent(ctx, event.EventID, hashPayload(event.Data), now.Add(c.dedupTTL()))
	if err != nil {
		logger.Error("submission.scored dedupe failed",
			"event", "leaderboard_score_dedupe_failed",
			"module", "evaluation/leaderboard-service",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	if alreadyProcessed {
		logger.Debug("submission.scored already processed",
			"event", "leaderboard_score_replayed",
			"module", "evaluation/leaderboard-service",
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}

	if err := c.apply(ctx, logger, event); err != nil {
		// The event stays unprocessed so a redelivery can apply it.
		if releaseErr := c.Dedup.ReleaseEvent(ctx, event.EventID); releaseErr != nil {
			logger.Error("submission.scored reservation release failed",
				"event", "leaderboard_score_release_failed",
				"module", "evaluation/leaderboard-service",
				"layer", "worker",
				"event_id", event.EventID,
				"error", releaseErr.Error(),
			)
		}
		return err
	}
	return nil
}

// apply records the score. Errors that a redelivery cannot fix are logged
// and acknowledged; only retryable failures are returned.
func (c ScoreConsumer) apply(ctx context.Context, logger *slog.Logger, event ports.EventEnvelope) error {
	var payload contractsv1.SubmissionScoredData
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("submission.scored payload dropped",
			"event", "leaderboard_score_undecodable",
			"module", "evaluation/leaderboard-service",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return nil
	}

	_, err := c.RecordScore.Execute(ctx, commands.RecordScoreCommand{
		SubmissionID: payload.SubmissionID,
		Score:        payload.Score,
		ScoreChrF:    payload.ScoreChrF,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domainerrors.ErrScoreAlreadyRecorded):
		logger.Warn("submission.scored ignored for scored submission",
			"event", "leaderboard_score_duplicate",
			"module", "evaluation/leaderboard-service",
			"layer", "worker",
			"event_id", event.EventID,
			"submission_id", payload.SubmissionID,
		)
		return nil
	case errors.Is(err, domainerrors.ErrSubmissionNotFound), errors.Is(err, domainerrors.ErrInvalidScoreInput):
		logger.Error("submission.scored rejected",
			"event", "leaderboard_score_rejected",
			"module", "evaluation/leaderboard-service",
			"layer", "worker",
			"event_id", event.EventID,
			"submission_id", payload.SubmissionID,
			"error", err.Error(),
		)
		return nil
	default:
		return fmt.Errorf("record score for %s: %w", payload.SubmissionID, err)
	}
}

func (c ScoreConsumer) dedupTTL() time.Duration {
	if c.DedupTTL <= 0 {
		return defaultScoreConsumerDedupTTL
	}
	return c.DedupTTL
}

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
