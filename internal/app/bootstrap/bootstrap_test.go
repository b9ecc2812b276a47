package bootstrap

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	leaderboardservice "ocelot/contexts/evaluation/leaderboard-service"
	"ocelot/contexts/evaluation/leaderboard-service/adapters/memory"
	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
	httptransport "ocelot/contexts/evaluation/leaderboard-service/transport/http"
	"ocelot/internal/platform/config"
	"ocelot/internal/platform/messaging"

	"github.com/alicebob/miniredis/v2"
)

func TestParseTestSetSeed(t *testing.T) {
	testSet, err := parseTestSetSeed(" wmt23-en-de | WMT23 | en | de ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if testSet.TestSetID != "wmt23-en-de" || testSet.Name != "WMT23" || testSet.TargetLanguage != "de" || !testSet.IsActive {
		t.Fatalf("unexpected test set %+v", testSet)
	}
	if _, err := parseTestSetSeed("wmt23|en|de"); err == nil {
		t.Fatalf("expected error for short seed entry")
	}
}

func TestSeedCatalogKeepsOrder(t *testing.T) {
	store := memory.NewStore(nil, nil)
	err := seedCatalog(context.Background(), store, []string{
		"wmt23-en-de|WMT23|en|de",
		"wmt22-en-de|WMT22|en|de",
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	items, err := store.ListTestSets(context.Background(), true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].TestSetID != "wmt23-en-de" || items[1].TestSetID != "wmt22-en-de" {
		t.Fatalf("expected seed order, got %+v", items)
	}

	if err := seedCatalog(context.Background(), store, []string{"bad||en|de"}); err == nil {
		t.Fatalf("expected error for seed entry without a name")
	}
}

func TestNormalizeAddr(t *testing.T) {
	cases := map[string]string{
		"":      ":8080",
		"9000":  ":9000",
		":9001": ":9001",
	}
	for input, want := range cases {
		if got := normalizeAddr(input); got != want {
			t.Fatalf("normalizeAddr(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestBuildWorkerRequiresRedis(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://ocelot@127.0.0.1:1/ocelot")
	t.Setenv("REDIS_URL", "")
	_, err := BuildWorker()
	if err == nil || !strings.Contains(err.Error(), "REDIS_URL") {
		t.Fatalf("expected REDIS_URL error, got %v", err)
	}
}

func TestInMemoryWorkerRelaysToRedisStreams(t *testing.T) {
	server := miniredis.RunT(t)
	cfg := config.Config{
		RedisURL:            "redis://" + server.Addr(),
		SubmissionQuota:     7,
		LeaderboardSize:     10,
		QuotaReservePending: true,
		SessionTTL:          time.Hour,
		EnableOutboxRelay:   true,
		WorkerPollInterval:  time.Second,
		EventRetryDelay:     time.Second,
	}
	store, err := buildStorage(cfg, slog.Default())
	if err != nil {
		t.Fatalf("build storage: %v", err)
	}
	defer store.close()
	if store.memory == nil || store.redis == nil {
		t.Fatalf("expected memory storage with redis, got %+v", store)
	}

	ctx := context.Background()
	team := entities.Team{TeamID: "team-1", Name: "One", Email: "one@example.org", Token: "tok-1"}
	if err := store.memory.CreateTeam(ctx, team); err != nil {
		t.Fatalf("seed team: %v", err)
	}
	if err := seedCatalog(ctx, store.seeder, []string{"wmt23-en-de|WMT23|en|de"}); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	module := leaderboardservice.NewModule(store.deps)
	if _, err := module.Handler.SubmitHandler(ctx, entities.IdentityOf(team), httptransport.SubmitRequest{
		TestSetID:   "wmt23-en-de",
		FileName:    "run.sgm",
		ContentSize: 10,
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	worker, err := newWorkerApp(cfg, store, module, slog.Default())
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	published, err := worker.outboxRelay.RunOnce(ctx)
	if err != nil || published != 1 {
		t.Fatalf("expected one relayed event, got %d err=%v", published, err)
	}
	length, err := store.redis.Client.XLen(ctx, messaging.StreamKey("submission.admitted")).Result()
	if err != nil || length != 1 {
		t.Fatalf("expected one stream entry, got %d err=%v", length, err)
	}
}

func TestNewWorkerAppNeedsRedis(t *testing.T) {
	store := storage{memory: memory.NewStore(nil, nil)}
	if _, err := newWorkerApp(config.Config{}, store, leaderboardservice.Module{}, slog.Default()); err == nil {
		t.Fatalf("expected error without redis")
	}
}
