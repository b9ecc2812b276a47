package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	application "ocelot/contexts/evaluation/leaderboard-service/application"
	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
	domainerrors "ocelot/contexts/evaluation/leaderboard-service/domain/errors"
	"ocelot/contexts/evaluation/leaderboard-service/domain/services"
	"ocelot/contexts/evaluation/leaderboard-service/ports"
)

const SubmissionAdmittedEventType = "submission.admitted"

// AdmitSubmissionCommand describes an upload. Only the file name and the
// presence of content matter here; the bytes are stored elsewhere.
type AdmitSubmissionCommand struct {
	Identity    entities.Identity
	TestSetID   string
	FileName    string
	ContentSize int64
}

type AdmitSubmissionUseCase struct {
	Catalog ports.TestSetCatalog
	Ledger  ports.SubmissionLedger
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Policy  services.QuotaPolicy
	Logger  *slog.Logger
}

// Execute admits the upload as a pending submission unless the team already
// holds its quota for the test set. The quota check and the append happen in
// one ledger call so concurrent uploads cannot both pass the check.
func (uc AdmitSubmissionUseCase) Execute(ctx context.Context, cmd AdmitSubmissionCommand) (entities.Submission, error) {
	logger := application.ResolveLogger(uc.Logger)
	if cmd.Identity.IsAnonymous() {
		return entities.Submission{}, domainerrors.ErrAuthenticationRequired
	}

	fileName := normalizeFileName(cmd.FileName)
	testSetID := strings.TrimSpace(cmd.TestSetID)
	if testSetID == "" || fileName == "" || cmd.ContentSize <= 0 {
		return entities.Submission{}, domainerrors.ErrInvalidSubmissionInput
	}

	testSet, err := uc.Catalog.GetTestSet(ctx, testSetID)
	if err != nil {
		return entities.Submission{}, err
	}
	if !testSet.IsActive {
		return entities.Submission{}, fmt.Errorf("%w: %s", domainerrors.ErrTestSetInactive, testSet.Label())
	}

	submissionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Submission{}, err
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Submission{}, err
	}

	now := uc.Clock.Now().UTC()
	submission := entities.Submission{
		SubmissionID: submissionID,
		TeamID:       cmd.Identity.TeamID,
		TestSetID:    testSet.TestSetID,
		FileName:     fileName,
		State:        entities.ScoreStatePending,
		CreatedAt:    now,
	}
	if !submission.ValidateCreate() {
		return entities.Submission{}, domainerrors.ErrInvalidSubmissionInput
	}
	event, err := newAdmittedEnvelope(eventID, submission)
	if err != nil {
		return entities.Submission{}, err
	}

	admitted, err := uc.Ledger.AdmitSubmission(ctx, submission, uc.Policy, event)
	if err != nil {
		if errors.Is(err, domainerrors.ErrQuotaExceeded) {
			logger.Warn("submission rejected by quota",
				"event", "submission_quota_exceeded",
				"module", "evaluation/leaderboard-service",
				"layer", "application",
				"team_id", submission.TeamID,
				"test_set_id", submission.TestSetID,
				"quota", uc.Policy.EffectiveLimit(),
			)
			return entities.Submission{}, fmt.Errorf("%w: %s", err, testSet.Label())
		}
		logger.Error("submission admission failed",
			"event", "submission_admission_failed",
			"module", "evaluation/leaderboard-service",
			"layer", "application",
			"team_id", submission.TeamID,
			"test_set_id", submission.TestSetID,
			"error", err.Error(),
		)
		return entities.Submission{}, err
	}

	logger.Info("submission admitted",
		"event", "submission_admitted",
		"module", "evaluation/leaderboard-service",
		"layer", "application",
		"submission_id", admitted.SubmissionID,
		"team_id", admitted.TeamID,
		"test_set_id", admitted.TestSetID,
		"sequence", admitted.Sequence,
	)
	return admitted, nil
}

// normalizeFileName keeps the base name of an uploaded path from any client OS.
func normalizeFileName(raw string) string {
	name := strings.TrimSpace(strings.ReplaceAll(raw, "\\", "/"))
	if name == "" {
		return ""
	}
	name = path.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
