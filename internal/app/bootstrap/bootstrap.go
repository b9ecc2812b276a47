// Package bootstrap is the composition root.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	leaderboardservice "ocelot/contexts/evaluation/leaderboard-service"
	"ocelot/contexts/evaluation/leaderboard-service/adapters/memory"
	postgresadapter "ocelot/contexts/evaluation/leaderboard-service/adapters/postgres"
	redisadapter "ocelot/contexts/evaluation/leaderboard-service/adapters/redis"
	workerapp "ocelot/contexts/evaluation/leaderboard-service/application/workers"
	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
	"ocelot/contexts/evaluation/leaderboard-service/ports"
	"ocelot/internal/platform/cache"
	"ocelot/internal/platform/config"
	"ocelot/internal/platform/db"
	"ocelot/internal/platform/httpserver"
	"ocelot/internal/platform/messaging"

	"golang.org/x/sync/errgroup"
)

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	redis    *cache.Redis
	// worker is set only on the in-memory runtime with Redis, where relay
	// and consumer must share the API process's store.
	worker *WorkerApp
	logger *slog.Logger
}

type WorkerApp struct {
	postgres       *db.Postgres
	redis          *cache.Redis
	outboxRelay    workerapp.OutboxRelay
	scoreConsumer  workerapp.ScoreConsumer
	enableRelay    bool
	enableConsumer bool
	pollInterval   time.Duration
	logger         *slog.Logger
}

type testSetSeeder interface {
	PutTestSet(ctx context.Context, testSet entities.TestSet) error
}

// storage holds the port implementations selected from configuration.
type storage struct {
	deps     leaderboardservice.Dependencies
	outbox   ports.OutboxRepository
	dedup    ports.EventDedupStore
	seeder   testSetSeeder
	memory   *memory.Store
	postgres *db.Postgres
	redis    *cache.Redis
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	store, err := buildStorage(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := seedCatalog(context.Background(), store.seeder, cfg.SeedTestSets); err != nil {
		store.close()
		return nil, err
	}

	module := leaderboardservice.NewModule(store.deps)
	server := httpserver.New(module, httpserver.Options{
		ScorerAPIKey:  cfg.ScorerAPIKey,
		AdminAPIKey:   cfg.AdminAPIKey,
		SecureCookies: cfg.SecureCookies,
		SessionTTL:    cfg.SessionTTL,
	}, logger, normalizeAddr(cfg.HTTPPort))

	app := &APIApp{
		server:   server,
		postgres: store.postgres,
		redis:    store.redis,
		logger:   logger,
	}
	if store.memory != nil {
		logger.Warn("running on in-memory storage; data is lost on restart",
			"event", "bootstrap_in_memory_storage",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		if store.redis == nil {
			logger.Warn("no event streams; scores are accepted only on the internal score route",
				"event", "bootstrap_without_event_streams",
				"module", "internal/app/bootstrap",
				"layer", "platform",
			)
			return app, nil
		}
		worker, err := newWorkerApp(cfg, store, module, logger)
		if err != nil {
			store.close()
			return nil, err
		}
		app.worker = worker
	}
	return app, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, errors.New("REDIS_URL is required for the event streams")
	}

	store, err := buildStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	module := leaderboardservice.NewModule(store.deps)
	worker, err := newWorkerApp(cfg, store, module, logger)
	if err != nil {
		store.close()
		return nil, err
	}
	return worker, nil
}

func buildStorage(cfg config.Config, logger *slog.Logger) (storage, error) {
	deps := leaderboardservice.Dependencies{
		SubmissionQuota: cfg.SubmissionQuota,
		ReservePending:  cfg.QuotaReservePending,
		LeaderboardSize: cfg.LeaderboardSize,
		SessionTTL:      cfg.SessionTTL,
		Logger:          logger,
	}
	result := storage{}

	var sessionFallback *memory.Store
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		store := memory.NewStore(nil, logger)
		inMemory := leaderboardservice.InMemoryDependencies(store, logger)
		deps.Teams = inMemory.Teams
		deps.Catalog = inMemory.Catalog
		deps.Ledger = inMemory.Ledger
		deps.Clock = inMemory.Clock
		deps.IDGenerator = inMemory.IDGenerator
		deps.Tokens = inMemory.Tokens
		result.outbox = store
		result.dedup = store
		result.seeder = store
		result.memory = store
		sessionFallback = store
	} else {
		pg, err := db.Connect(cfg.PostgresDSN)
		if err != nil {
			return storage{}, err
		}
		repo := postgresadapter.NewRepository(pg.DB, logger)
		ids := postgresadapter.UUIDGenerator{}
		deps.Teams = repo
		deps.Catalog = repo
		deps.Ledger = repo
		deps.Clock = postgresadapter.SystemClock{}
		deps.IDGenerator = ids
		deps.Tokens = ids
		result.outbox = repo
		result.dedup = repo
		result.seeder = repo
		result.postgres = pg
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		client, err := cache.Connect(cfg.RedisURL)
		if err != nil {
			result.close()
			return storage{}, err
		}
		deps.Sessions = redisadapter.NewSessionStore(client.Client, logger)
		result.redis = client
	} else {
		if sessionFallback == nil {
			sessionFallback = memory.NewStore(nil, logger)
		}
		deps.Sessions = sessionFallback
	}

	result.deps = deps
	return result, nil
}

func newWorkerApp(
	cfg config.Config,
	store storage,
	module leaderboardservice.Module,
	logger *slog.Logger,
) (*WorkerApp, error) {
	if store.redis == nil {
		return nil, errors.New("event streams need a redis connection")
	}
	bus, err := messaging.NewRedisStreams(store.redis.Client, messaging.StreamOptions{
		Consumer:   cfg.EventConsumerName,
		MaxLen:     cfg.EventStreamMaxLen,
		RetryDelay: cfg.EventRetryDelay,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &WorkerApp{
		postgres: store.postgres,
		redis:    store.redis,
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    store.outbox,
			Publisher: bus,
			Clock:     store.deps.Clock,
			BatchSize: 100,
			Logger:    logger,
		},
		scoreConsumer: workerapp.ScoreConsumer{
			Subscriber:    bus,
			Dedup:         store.dedup,
			RecordScore:   module.RecordScore,
			Clock:         store.deps.Clock,
			ConsumerGroup: "leaderboard-service-submission-scored-cg",
			DedupTTL:      7 * 24 * time.Hour,
			Logger:        logger,
		},
		enableRelay:    cfg.EnableOutboxRelay,
		enableConsumer: cfg.EnableScoreConsumer,
		pollInterval:   cfg.WorkerPollInterval,
		logger:         logger,
	}, nil
}

func (s storage) close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.postgres != nil {
		_ = s.postgres.Close()
	}
}

// seedCatalog loads "id|name|source|target" entries as active test sets.
func seedCatalog(ctx context.Context, seeder testSetSeeder, entries []string) error {
	for _, entry := range entries {
		testSet, err := parseTestSetSeed(entry)
		if err != nil {
			return err
		}
		if err := seeder.PutTestSet(ctx, testSet); err != nil {
			return fmt.Errorf("seed test set %q: %w", testSet.TestSetID, err)
		}
	}
	return nil
}

func parseTestSetSeed(entry string) (entities.TestSet, error) {
	parts := strings.Split(entry, "|")
	if len(parts) != 4 {
		return entities.TestSet{}, fmt.Errorf("test set seed %q must look like id|name|source|target", entry)
	}
	for index := range parts {
		parts[index] = strings.TrimSpace(parts[index])
	}
	return entities.TestSet{
		TestSetID:      parts[0],
		Name:           parts[1],
		SourceLanguage: parts[2],
		TargetLanguage: parts[3],
		IsActive:       true,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts the server down.
func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"in_process_worker", a.worker != nil,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(a.server.Start)
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	if a.worker != nil {
		group.Go(func() error {
			return a.worker.Run(groupCtx)
		})
	}
	return group.Wait()
}

func (a *APIApp) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.postgres != nil {
		errs = append(errs, a.postgres.Close())
	}
	return errors.Join(errs...)
}

// Run starts the score consumer and polls the outbox until ctx is cancelled.
func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"outbox_relay", w.enableRelay,
		"score_consumer", w.enableConsumer,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	if w.enableConsumer {
		group.Go(func() error {
			if err := w.scoreConsumer.Start(groupCtx); err != nil {
				return err
			}
			<-groupCtx.Done()
			return nil
		})
	}
	if w.enableRelay {
		group.Go(func() error {
			return w.relayLoop(groupCtx)
		})
	}
	return group.Wait()
}

func (w *WorkerApp) relayLoop(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.outboxRelay.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	var errs []error
	if w.redis != nil {
		errs = append(errs, w.redis.Close())
	}
	if w.postgres != nil {
		errs = append(errs, w.postgres.Close())
	}
	return errors.Join(errs...)
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
