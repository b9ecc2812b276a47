package leaderboardservice

import (
	"log/slog"
	"time"

	httpadapter "ocelot/contexts/evaluation/leaderboard-service/adapters/http"
	"ocelot/contexts/evaluation/leaderboard-service/adapters/memory"
	"ocelot/contexts/evaluation/leaderboard-service/application/commands"
	"ocelot/contexts/evaluation/leaderboard-service/application/queries"
	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
	"ocelot/contexts/evaluation/leaderboard-service/domain/services"
	"ocelot/contexts/evaluation/leaderboard-service/ports"
)

// Module is the composition surface for the leaderboard context.
// Runtime wiring consumes Handler and RecordScore; Store is exposed for
// tests and in-memory bootstrap only.
type Module struct {
	Handler     httpadapter.Handler
	RecordScore commands.RecordScoreUseCase
	Store       *memory.Store
}

type Dependencies struct {
	Teams           ports.TeamRepository
	Catalog         ports.TestSetCatalog
	Ledger          ports.SubmissionLedger
	Sessions        ports.SessionStore
	Clock           ports.Clock
	IDGenerator     ports.IDGenerator
	Tokens          ports.TokenGenerator
	SubmissionQuota int
	ReservePending  bool
	LeaderboardSize int
	SessionTTL      time.Duration
	Logger          *slog.Logger
}

// NewModule wires leaderboard use cases against explicit ports.
func NewModule(deps Dependencies) Module {
	policy := services.QuotaPolicy{
		Limit:          deps.SubmissionQuota,
		ReservePending: deps.ReservePending,
	}
	leaderboardSize := deps.LeaderboardSize
	if leaderboardSize <= 0 {
		leaderboardSize = services.DefaultLeaderboardSize
	}

	recordScore := commands.RecordScoreUseCase{
		Ledger: deps.Ledger,
		Clock:  deps.Clock,
		Logger: deps.Logger,
	}
	handler := httpadapter.Handler{
		Resolver: queries.SessionResolver{
			Teams:    deps.Teams,
			Sessions: deps.Sessions,
			Logger:   deps.Logger,
		},
		CurrentTeam: queries.CurrentTeamQuery{Teams: deps.Teams},
		Leaderboard: queries.LeaderboardQuery{
			Catalog: deps.Catalog,
			Ledger:  deps.Ledger,
			Teams:   deps.Teams,
			Size:    leaderboardSize,
			Logger:  deps.Logger,
		},
		TeamSubmissions: queries.TeamSubmissionsQuery{
			Catalog: deps.Catalog,
			Ledger:  deps.Ledger,
			Policy:  policy,
			Logger:  deps.Logger,
		},
		Catalog: queries.CatalogQuery{Catalog: deps.Catalog},
		Limits: queries.LimitsQuery{
			Policy:          policy,
			LeaderboardSize: leaderboardSize,
		},
		RegisterTeam: commands.RegisterTeamUseCase{
			Teams:      deps.Teams,
			Sessions:   deps.Sessions,
			Clock:      deps.Clock,
			IDGen:      deps.IDGenerator,
			Tokens:     deps.Tokens,
			SessionTTL: deps.SessionTTL,
			Logger:     deps.Logger,
		},
		SignIn: commands.SignInUseCase{
			Teams:      deps.Teams,
			Sessions:   deps.Sessions,
			IDGen:      deps.IDGenerator,
			SessionTTL: deps.SessionTTL,
			Logger:     deps.Logger,
		},
		SignOut: commands.SignOutUseCase{
			Sessions: deps.Sessions,
			Logger:   deps.Logger,
		},
		UpdateProfile: commands.UpdateTeamProfileUseCase{
			Teams:  deps.Teams,
			Clock:  deps.Clock,
			Logger: deps.Logger,
		},
		AdmitSubmission: commands.AdmitSubmissionUseCase{
			Catalog: deps.Catalog,
			Ledger:  deps.Ledger,
			Clock:   deps.Clock,
			IDGen:   deps.IDGenerator,
			Policy:  policy,
			Logger:  deps.Logger,
		},
		RecordScore: recordScore,
		SetTestSetActive: commands.SetTestSetActiveUseCase{
			Catalog: deps.Catalog,
			Logger:  deps.Logger,
		},
		Logger: deps.Logger,
	}

	return Module{
		Handler:     handler,
		RecordScore: recordScore,
	}
}

// InMemoryDependencies binds every port to store with default limits.
func InMemoryDependencies(store *memory.Store, logger *slog.Logger) Dependencies {
	return Dependencies{
		Teams:           store,
		Catalog:         store,
		Ledger:          store,
		Sessions:        store,
		Clock:           store,
		IDGenerator:     store,
		Tokens:          store,
		SubmissionQuota: services.DefaultSubmissionQuota,
		ReservePending:  true,
		LeaderboardSize: services.DefaultLeaderboardSize,
		SessionTTL:      14 * 24 * time.Hour,
		Logger:          logger,
	}
}

// NewInMemoryModule wires the context against a fresh in-memory store seeded
// with the given catalog.
func NewInMemoryModule(seedTestSets []entities.TestSet, logger *slog.Logger) Module {
	store := memory.NewStore(seedTestSets, logger)
	module := NewModule(InMemoryDependencies(store, logger))
	module.Store = store
	return module
}
