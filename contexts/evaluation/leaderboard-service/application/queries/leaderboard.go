package queries

import (
	"context"
	"log/slog"

	application "ocelot/contexts/evaluation/leaderboard-service/application"
	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
	"ocelot/contexts/evaluation/leaderboard-service/domain/services"
	"ocelot/contexts/evaluation/leaderboard-service/ports"
)

type LeaderboardQuery struct {
	Catalog ports.TestSetCatalog
	Ledger  ports.SubmissionLedger
	Teams   ports.TeamRepository
	Size    int
	Logger  *slog.Logger
}

// Execute builds the public top-K view over active test sets. The viewer only
// affects how callers project ownership; every viewer sees the same ranking.
func (q LeaderboardQuery) Execute(ctx context.Context, viewer entities.Identity) ([]services.TestSetRanking, error) {
	active, err := q.Catalog.ListTestSets(ctx, true)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return []services.TestSetRanking{}, nil
	}

	testSetIDs := make([]string, 0, len(active))
	for _, testSet := range active {
		testSetIDs = append(testSetIDs, testSet.TestSetID)
	}
	submissions, err := q.Ledger.ListSubmissions(ctx, ports.SubmissionFilter{
		TestSetIDs: testSetIDs,
		States:     []entities.ScoreState{entities.ScoreStateValid},
	})
	if err != nil {
		return nil, err
	}

	tokens, err := q.Teams.TokensByTeamID(ctx, distinctTeamIDs(submissions))
	if err != nil {
		return nil, err
	}

	rankings := services.BuildLeaderboard(active, submissions, tokens, q.Size)
	application.ResolveLogger(q.Logger).Debug("leaderboard computed",
		"event", "leaderboard_computed",
		"module", "evaluation/leaderboard-service",
		"layer", "application",
		"test_sets", len(rankings),
		"viewer_anonymous", viewer.IsAnonymous(),
	)
	return rankings, nil
}

func distinctTeamIDs(submissions []entities.Submission) []string {
	seen := make(map[string]struct{}, len(submissions))
	ids := make([]string, 0, len(submissions))
	for _, item := range submissions {
		if _, ok := seen[item.TeamID]; ok {
			continue
		}
		seen[item.TeamID] = struct{}{}
		ids = append(ids, item.TeamID)
	}
	return ids
}
