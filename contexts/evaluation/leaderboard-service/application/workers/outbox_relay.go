package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "ocelot/contexts/evaluation/leaderboard-service/application"
	"ocelot/contexts/evaluation/leaderboard-service/ports"
)

// OutboxRelay forwards admitted submissions to the scoring pipeline.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("leaderboard outbox list failed",
			"event", "leaderboard_outbox_list_failed",
			"module", "evaluation/leaderboard-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return 0, err
	}

	published := 0
	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("leaderboard outbox decode failed",
				"event", "leaderboard_outbox_decode_failed",
				"module", "evaluation/leaderboard-service",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return published, err
		}

		topic := event.EventType
		if topic == "" {
			topic = row.EventType
		}
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			logger.Error("leaderboard outbox publish failed",
				"event", "leaderboard_outbox_publish_failed",
				"module", "evaluation/leaderboard-service",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_id", event.EventID,
				"topic", topic,
				"error", err.Error(),
			)
			return published, err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, r.now()); err != nil {
			logger.Error("leaderboard outbox mark published failed",
				"event", "leaderboard_outbox_mark_published_failed",
				"module", "evaluation/leaderboard-service",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return published, err
		}
		published++
	}

	if published > 0 {
		logger.Info("leaderboard outbox relay cycle completed",
			"event", "leaderboard_outbox_relay_completed",
			"module", "evaluation/leaderboard-service",
			"layer", "worker",
			"published_count", published,
		)
	}
	return published, nil
}

func (r OutboxRelay) now() time.Time {
	if r.Clock != nil {
		return r.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
