package commands

import (
	"context"
	"log/slog"
	"math"
	"strings"

	application "ocelot/contexts/evaluation/leaderboard-service/application"
	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
	domainerrors "ocelot/contexts/evaluation/leaderboard-service/domain/errors"
	"ocelot/contexts/evaluation/leaderboard-service/ports"
)

type RecordScoreCommand struct {
	SubmissionID string
	Score        *float64
	ScoreChrF    *float64
}

type RecordScoreUseCase struct {
	Ledger ports.SubmissionLedger
	Clock  ports.Clock
	Logger *slog.Logger
}

// Execute stores the scorer's result. Each submission is scored once; a
// negative primary score marks it invalid.
func (uc RecordScoreUseCase) Execute(ctx context.Context, cmd RecordScoreCommand) (entities.Submission, error) {
	logger := application.ResolveLogger(uc.Logger)
	submissionID := strings.TrimSpace(cmd.SubmissionID)
	if submissionID == "" || cmd.Score == nil || !finite(*cmd.Score) {
		return entities.Submission{}, domainerrors.ErrInvalidScoreInput
	}
	if cmd.ScoreChrF != nil && !finite(*cmd.ScoreChrF) {
		return entities.Submission{}, domainerrors.ErrInvalidScoreInput
	}

	current, err := uc.Ledger.GetSubmission(ctx, submissionID)
	if err != nil {
		return entities.Submission{}, err
	}
	scored, ok := current.WithScore(*cmd.Score, cmd.ScoreChrF, uc.Clock.Now())
	if !ok {
		return entities.Submission{}, domainerrors.ErrScoreAlreadyRecorded
	}
	if err := uc.Ledger.RecordScore(ctx, scored); err != nil {
		logger.Warn("submission score not recorded",
			"event", "submission_score_rejected",
			"module", "evaluation/leaderboard-service",
			"layer", "application",
			"submission_id", submissionID,
			"error", err.Error(),
		)
		return entities.Submission{}, err
	}

	logger.Info("submission scored",
		"event", "submission_scored",
		"module", "evaluation/leaderboard-service",
		"layer", "application",
		"submission_id", scored.SubmissionID,
		"test_set_id", scored.TestSetID,
		"state", string(scored.State),
		"score", *scored.Score,
	)
	return scored, nil
}

func finite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
