package queries

import (
	"context"
	"log/slog"

	application "ocelot/contexts/evaluation/leaderboard-service/application"
	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
	domainerrors "ocelot/contexts/evaluation/leaderboard-service/domain/errors"
	"ocelot/contexts/evaluation/leaderboard-service/domain/services"
	"ocelot/contexts/evaluation/leaderboard-service/ports"
)

type QuotaUsage struct {
	TestSet   entities.TestSet
	Used      int
	Remaining int
}

type TeamView struct {
	Rankings []services.TestSetRanking
	Quota    []QuotaUsage
}

type TeamSubmissionsQuery struct {
	Catalog ports.TestSetCatalog
	Ledger  ports.SubmissionLedger
	Policy  services.QuotaPolicy
	Logger  *slog.Logger
}

// Execute returns the caller's own scored history and remaining quota per
// active test set.
func (q TeamSubmissionsQuery) Execute(ctx context.Context, identity entities.Identity) (TeamView, error) {
	if identity.IsAnonymous() {
		return TeamView{}, domainerrors.ErrAuthenticationRequired
	}

	testSets, err := q.Catalog.ListTestSets(ctx, false)
	if err != nil {
		return TeamView{}, err
	}
	owned, err := q.Ledger.ListSubmissions(ctx, ports.SubmissionFilter{TeamID: identity.TeamID})
	if err != nil {
		return TeamView{}, err
	}

	view := TeamView{
		Rankings: services.BuildTeamView(identity.TeamID, identity.Token, testSets, owned),
		Quota:    make([]QuotaUsage, 0, len(testSets)),
	}
	for _, testSet := range testSets {
		if !testSet.IsActive {
			continue
		}
		used := q.Policy.CountFor(owned, identity.TeamID, testSet.TestSetID)
		view.Quota = append(view.Quota, QuotaUsage{
			TestSet:   testSet,
			Used:      used,
			Remaining: q.Policy.Remaining(used),
		})
	}

	application.ResolveLogger(q.Logger).Debug("team view computed",
		"event", "team_view_computed",
		"module", "evaluation/leaderboard-service",
		"layer", "application",
		"team_id", identity.TeamID,
		"test_sets", len(view.Rankings),
	)
	return view, nil
}
