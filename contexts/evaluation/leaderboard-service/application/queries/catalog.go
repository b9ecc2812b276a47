package queries

import (
	"context"

	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
	"ocelot/contexts/evaluation/leaderboard-service/domain/services"
	"ocelot/contexts/evaluation/leaderboard-service/ports"
)

type CatalogQuery struct {
	Catalog ports.TestSetCatalog
}

func (q CatalogQuery) ListTestSets(ctx context.Context, activeOnly bool) ([]entities.TestSet, error) {
	return q.Catalog.ListTestSets(ctx, activeOnly)
}

type Limits struct {
	SubmissionQuota int
	LeaderboardSize int
	ReservePending  bool
}

type LimitsQuery struct {
	Policy          services.QuotaPolicy
	LeaderboardSize int
}

func (q LimitsQuery) Execute() Limits {
	size := q.LeaderboardSize
	if size <= 0 {
		size = services.DefaultLeaderboardSize
	}
	return Limits{
		SubmissionQuota: q.Policy.EffectiveLimit(),
		LeaderboardSize: size,
		ReservePending:  q.Policy.ReservePending,
	}
}
