package workers_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	leaderboardservice "ocelot/contexts/evaluation/leaderboard-service"
	"ocelot/contexts/evaluation/leaderboard-service/application/commands"
	"ocelot/contexts/evaluation/leaderboard-service/application/workers"
	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
	domainerrors "ocelot/contexts/evaluation/leaderboard-service/domain/errors"
	"ocelot/contexts/evaluation/leaderboard-service/ports"
	httptransport "ocelot/contexts/evaluation/leaderboard-service/transport/http"
	contractsv1 "ocelot/contracts/gen/events/v1"
	"ocelot/internal/platform/messaging"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func newBus(t *testing.T) *messaging.RedisStreams {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	bus, err := messaging.NewRedisStreams(client, messaging.StreamOptions{
		Consumer: "worker-test",
		Block:    50 * time.Millisecond,
	}, nil)
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}
	return bus
}

func newModuleWithSubmission(t *testing.T) (leaderboardservice.Module, string) {
	t.Helper()
	module := leaderboardservice.NewInMemoryModule([]entities.TestSet{
		{TestSetID: "wmt23-en-de", Name: "WMT23", SourceLanguage: "en", TargetLanguage: "de", IsActive: true},
	}, nil)
	team := entities.Team{TeamID: "team-abc", Name: "ABC", Email: "abc@example.org", Token: "abc123"}
	if err := module.Store.CreateTeam(context.Background(), team); err != nil {
		t.Fatalf("seed team: %v", err)
	}
	resp, err := module.Handler.SubmitHandler(context.Background(), entities.IdentityOf(team), httptransport.SubmitRequest{
		TestSetID:   "wmt23-en-de",
		FileName:    "C:\\runs\\final.sgm",
		ContentSize: 10,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.Submission.FileName != "final.sgm" {
		t.Fatalf("expected base file name, got %q", resp.Submission.FileName)
	}
	return module, resp.Submission.SubmissionID
}

func scoredEvent(t *testing.T, eventID string, submissionID string, score float64) ports.EventEnvelope {
	t.Helper()
	data, err := json.Marshal(contractsv1.SubmissionScoredData{SubmissionID: submissionID, Score: &score})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return ports.EventEnvelope{
		EventID:       eventID,
		EventType:     workers.SubmissionScoredTopic,
		OccurredAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		SourceService: "scorer",
		SchemaVersion: 1,
		PartitionKey:  submissionID,
		Data:          data,
	}
}

func TestOutboxRelayPublishesAdmittedSubmission(t *testing.T) {
	module, submissionID := newModuleWithSubmission(t)
	bus := newBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	received := make(chan contractsv1.Envelope, 1)
	err := bus.Subscribe(ctx, commands.SubmissionAdmittedEventType, "scorer-cg", func(_ context.Context, event contractsv1.Envelope) error {
		received <- event
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	relay := workers.OutboxRelay{
		Outbox:    module.Store,
		Publisher: bus,
		Clock:     fixedClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		BatchSize: 10,
	}
	published, err := relay.RunOnce(ctx)
	if err != nil {
		t.Fatalf("relay: %v", err)
	}
	if published != 1 {
		t.Fatalf("expected one published row, got %d", published)
	}

	select {
	case event := <-received:
		var payload contractsv1.SubmissionAdmittedData
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.SubmissionID != submissionID || payload.TeamID != "team-abc" || event.PartitionKey != submissionID {
			t.Fatalf("unexpected event %+v payload %+v", event, payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected admitted event to be delivered")
	}

	again, err := relay.RunOnce(ctx)
	if err != nil {
		t.Fatalf("second relay run: %v", err)
	}
	if again != 0 {
		t.Fatalf("published rows must not be relayed twice, got %d", again)
	}
}

func TestScoreConsumerIsIdempotentPerEvent(t *testing.T) {
	module, submissionID := newModuleWithSubmission(t)
	consumer := workers.ScoreConsumer{
		Dedup:       module.Store,
		RecordScore: module.RecordScore,
		Clock:       fixedClock{now: time.Now().UTC()},
	}
	ctx := context.Background()

	event := scoredEvent(t, "evt-1", submissionID, 27.4)
	if err := consumer.Handle(ctx, event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := consumer.Handle(ctx, event); err != nil {
		t.Fatalf("replayed event must be acknowledged, got %v", err)
	}

	stored, err := module.Store.GetSubmission(ctx, submissionID)
	if err != nil {
		t.Fatalf("get submission: %v", err)
	}
	if !stored.IsValid() || *stored.Score != 27.4 {
		t.Fatalf("expected valid score 27.4, got %+v", stored)
	}

	conflicting := scoredEvent(t, "evt-1", submissionID, 99)
	if err := consumer.Handle(ctx, conflicting); !errors.Is(err, domainerrors.ErrIdempotencyKeyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}

	rescore := scoredEvent(t, "evt-2", submissionID, 10)
	if err := consumer.Handle(ctx, rescore); err != nil {
		t.Fatalf("rescore of a scored submission must be acknowledged, got %v", err)
	}
	stored, _ = module.Store.GetSubmission(ctx, submissionID)
	if *stored.Score != 27.4 {
		t.Fatalf("score must not change after first record, got %v", *stored.Score)
	}
}

type flakyLedger struct {
	ports.SubmissionLedger
	failures int
}

func (l *flakyLedger) GetSubmission(ctx context.Context, submissionID string) (entities.Submission, error) {
	if l.failures > 0 {
		l.failures--
		return entities.Submission{}, errors.New("connection reset")
	}
	return l.SubmissionLedger.GetSubmission(ctx, submissionID)
}

func TestScoreConsumerRetriesAfterTransientFailure(t *testing.T) {
	module, submissionID := newModuleWithSubmission(t)
	clock := fixedClock{now: time.Now().UTC()}
	consumer := workers.ScoreConsumer{
		Dedup: module.Store,
		RecordScore: commands.RecordScoreUseCase{
			Ledger: &flakyLedger{SubmissionLedger: module.Store, failures: 1},
			Clock:  clock,
		},
		Clock: clock,
	}
	ctx := context.Background()
	event := scoredEvent(t, "evt-retry", submissionID, 21.5)

	if err := consumer.Handle(ctx, event); err == nil {
		t.Fatalf("expected the transient failure to be returned")
	}
	stored, _ := module.Store.GetSubmission(ctx, submissionID)
	if !stored.IsPending() {
		t.Fatalf("expected submission to stay pending after failure, got %s", stored.State)
	}

	if err := consumer.Handle(ctx, event); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	stored, _ = module.Store.GetSubmission(ctx, submissionID)
	if !stored.IsValid() || *stored.Score != 21.5 {
		t.Fatalf("expected redelivered score to be applied, got %+v", stored)
	}
}

func TestScoreConsumerAcknowledgesUnknownSubmission(t *testing.T) {
	module, _ := newModuleWithSubmission(t)
	consumer := workers.ScoreConsumer{
		Dedup:       module.Store,
		RecordScore: module.RecordScore,
	}
	event := scoredEvent(t, "evt-unknown", "missing-submission", 12)
	if err := consumer.Handle(context.Background(), event); err != nil {
		t.Fatalf("unknown submission must be acknowledged, got %v", err)
	}

	broken := event
	broken.EventID = "evt-broken"
	broken.Data = []byte(`{"submission_id":`)
	if err := consumer.Handle(context.Background(), broken); err != nil {
		t.Fatalf("undecodable payload must be acknowledged, got %v", err)
	}
}

func TestScoreConsumerAppliesEventsFromBus(t *testing.T) {
	module, submissionID := newModuleWithSubmission(t)
	bus := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := workers.ScoreConsumer{
		Subscriber:  bus,
		Dedup:       module.Store,
		RecordScore: module.RecordScore,
	}
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start consumer: %v", err)
	}
	if err := bus.Publish(ctx, workers.SubmissionScoredTopic, scoredEvent(t, "evt-bus", submissionID, -1)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		stored, err := module.Store.GetSubmission(ctx, submissionID)
		if err != nil {
			t.Fatalf("get submission: %v", err)
		}
		if !stored.IsPending() {
			if stored.State != entities.ScoreStateInvalid {
				t.Fatalf("negative score must mark the submission invalid, got %s", stored.State)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("score event was not applied")
}

func TestAdmittedSubmissionIsScoredThroughStreams(t *testing.T) {
	module, submissionID := newModuleWithSubmission(t)
	bus := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A scorer reads admitted submissions and answers on submission.scored.
	scored := scoredEvent(t, "scored-1", submissionID, 33.1)
	err := bus.Subscribe(ctx, commands.SubmissionAdmittedEventType, "scorer-cg", func(ctx context.Context, event contractsv1.Envelope) error {
		var admitted contractsv1.SubmissionAdmittedData
		if err := json.Unmarshal(event.Data, &admitted); err != nil {
			return err
		}
		if admitted.SubmissionID != submissionID {
			return errors.New("unexpected submission " + admitted.SubmissionID)
		}
		return bus.Publish(ctx, workers.SubmissionScoredTopic, scored)
	})
	if err != nil {
		t.Fatalf("subscribe scorer: %v", err)
	}

	consumer := workers.ScoreConsumer{
		Subscriber:  bus,
		Dedup:       module.Store,
		RecordScore: module.RecordScore,
	}
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start consumer: %v", err)
	}
	relay := workers.OutboxRelay{Outbox: module.Store, Publisher: bus}
	if published, err := relay.RunOnce(ctx); err != nil || published != 1 {
		t.Fatalf("expected one relayed row, got %d err=%v", published, err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		stored, err := module.Store.GetSubmission(ctx, submissionID)
		if err != nil {
			t.Fatalf("get submission: %v", err)
		}
		if stored.IsValid() {
			if *stored.Score != 33.1 {
				t.Fatalf("unexpected score %v", *stored.Score)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("admitted submission was never scored")
}
