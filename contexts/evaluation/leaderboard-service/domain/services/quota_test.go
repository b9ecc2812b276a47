package services

import (
	"testing"

	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
)

func TestQuotaPolicyCountsPendingOnlyWhenReserving(t *testing.T) {
	pending := entities.Submission{State: entities.ScoreStatePending}
	valid := entities.Submission{State: entities.ScoreStateValid}
	invalid := entities.Submission{State: entities.ScoreStateInvalid}

	reserving := QuotaPolicy{Limit: 7, ReservePending: true}
	if !reserving.Counts(pending) || !reserving.Counts(valid) || reserving.Counts(invalid) {
		t.Fatalf("reserving policy must count pending and valid only")
	}

	literal := QuotaPolicy{Limit: 7}
	if literal.Counts(pending) || !literal.Counts(valid) || literal.Counts(invalid) {
		t.Fatalf("valid-only policy must count valid only")
	}
	if got := literal.CountedStates(); len(got) != 1 || got[0] != entities.ScoreStateValid {
		t.Fatalf("unexpected counted states %v", got)
	}
}

func TestQuotaPolicyAdmitsBelowLimit(t *testing.T) {
	policy := QuotaPolicy{Limit: 3}
	if !policy.Admits(2) {
		t.Fatalf("expected admission with 2 of 3 used")
	}
	if policy.Admits(3) {
		t.Fatalf("expected rejection with 3 of 3 used")
	}
	if policy.Remaining(5) != 0 {
		t.Fatalf("remaining must not go negative")
	}
}

func TestQuotaPolicyDefaultsLimit(t *testing.T) {
	policy := QuotaPolicy{}
	if policy.EffectiveLimit() != DefaultSubmissionQuota {
		t.Fatalf("expected default limit %d, got %d", DefaultSubmissionQuota, policy.EffectiveLimit())
	}
}

func TestQuotaPolicyCountForScopesToTeamAndTestSet(t *testing.T) {
	policy := QuotaPolicy{Limit: 7, ReservePending: true}
	submissions := []entities.Submission{
		{TeamID: "team-a", TestSetID: "ts-1", State: entities.ScoreStateValid},
		{TeamID: "team-a", TestSetID: "ts-1", State: entities.ScoreStatePending},
		{TeamID: "team-a", TestSetID: "ts-1", State: entities.ScoreStateInvalid},
		{TeamID: "team-a", TestSetID: "ts-2", State: entities.ScoreStateValid},
		{TeamID: "team-b", TestSetID: "ts-1", State: entities.ScoreStateValid},
	}
	if got := policy.CountFor(submissions, "team-a", "ts-1"); got != 2 {
		t.Fatalf("expected 2 counted submissions, got %d", got)
	}
}
