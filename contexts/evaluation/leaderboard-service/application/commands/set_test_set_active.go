package commands

import (
	"context"
	"log/slog"
	"strings"

	application "ocelot/contexts/evaluation/leaderboard-service/application"
	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
	domainerrors "ocelot/contexts/evaluation/leaderboard-service/domain/errors"
	"ocelot/contexts/evaluation/leaderboard-service/ports"
)

type SetTestSetActiveUseCase struct {
	Catalog ports.TestSetCatalog
	Logger  *slog.Logger
}

// Execute toggles public visibility. Submissions are kept either way.
func (uc SetTestSetActiveUseCase) Execute(ctx context.Context, testSetID string, active bool) (entities.TestSet, error) {
	testSetID = strings.TrimSpace(testSetID)
	if testSetID == "" {
		return entities.TestSet{}, domainerrors.ErrInvalidTestSetInput
	}
	testSet, err := uc.Catalog.SetTestSetActive(ctx, testSetID, active)
	if err != nil {
		return entities.TestSet{}, err
	}
	application.ResolveLogger(uc.Logger).Info("test set activity changed",
		"event", "test_set_activity_changed",
		"module", "evaluation/leaderboard-service",
		"layer", "application",
		"test_set_id", testSet.TestSetID,
		"is_active", testSet.IsActive,
	)
	return testSet, nil
}
