package postgresadapter

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	wrapped := fmt.Errorf("insert team: %w", &pgconn.PgError{Code: "23505"})
	if !isUniqueViolation(wrapped) {
		t.Fatalf("expected wrapped 23505 to be a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("foreign key violation must not be reported as unique")
	}
	if isUniqueViolation(errors.New("boom")) {
		t.Fatalf("plain errors are not unique violations")
	}
}

func TestSubmissionModelRoundTripKeepsScores(t *testing.T) {
	score := 31.2
	chrf := 58.0
	scoredAt := time.Date(2024, 5, 1, 14, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
	model := submissionModelFromEntity(entities.Submission{
		SubmissionID: " sub-1 ",
		TeamID:       "team-1",
		TestSetID:    "ts-1",
		FileName:     "run.sgm",
		State:        entities.ScoreStateValid,
		Score:        &score,
		ScoreChrF:    &chrf,
		CreatedAt:    scoredAt.Add(-time.Hour),
		ScoredAt:     &scoredAt,
	})
	if model.SubmissionID != "sub-1" || model.State != "valid" {
		t.Fatalf("unexpected model %+v", model)
	}
	if model.ScoredAt.Location() != time.UTC {
		t.Fatalf("expected scored_at in UTC")
	}

	model.Sequence = 42
	entity := model.toEntity()
	if entity.Sequence != 42 || !entity.IsValid() || *entity.ScoreChrF != 58.0 {
		t.Fatalf("unexpected entity %+v", entity)
	}
}

func TestStateValues(t *testing.T) {
	got := stateValues([]entities.ScoreState{entities.ScoreStateValid, entities.ScoreStatePending})
	if len(got) != 2 || got[0] != "valid" || got[1] != "pending" {
		t.Fatalf("unexpected state values %v", got)
	}
}

func TestUUIDGeneratorTokenShape(t *testing.T) {
	token, err := UUIDGenerator{}.NewToken(context.Background())
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if len(token) != 32 {
		t.Fatalf("expected 32 char token, got %q", token)
	}
}
