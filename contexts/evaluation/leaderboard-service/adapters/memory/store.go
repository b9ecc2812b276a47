package memory

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	application "ocelot/contexts/evaluation/leaderboard-service/application"
	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
	domainerrors "ocelot/contexts/evaluation/leaderboard-service/domain/errors"
	"ocelot/contexts/evaluation/leaderboard-service/domain/services"
	"ocelot/contexts/evaluation/leaderboard-service/ports"
	"ocelot/internal/shared/outbox"

	"github.com/google/uuid"
)

type session struct {
	token     string
	expiresAt time.Time
}

type dedupRecord struct {
	payloadHash string
	expiresAt   time.Time
}

// Store is an in-memory adapter implementing every leaderboard port for local
// runtime and tests. A single write lock covers the admission check and the
// append, which serializes admissions store-wide.
type Store struct {
	mu sync.RWMutex

	teams           map[string]entities.Team
	testSets        map[string]entities.TestSet
	testSetOrder    []string
	submissions     map[string]entities.Submission
	submissionOrder []string
	sequence        int64
	sessions        map[string]session
	outbox          map[string]ports.OutboxMessage
	outboxOrder     []string
	eventDedup      map[string]dedupRecord
	now             func() time.Time
	logger          *slog.Logger
}

func NewStore(testSets []entities.TestSet, logger *slog.Logger) *Store {
	store := &Store{
		teams:       make(map[string]entities.Team),
		testSets:    make(map[string]entities.TestSet, len(testSets)),
		submissions: make(map[string]entities.Submission),
		sessions:    make(map[string]session),
		outbox:      make(map[string]ports.OutboxMessage),
		eventDedup:  make(map[string]dedupRecord),
		now:         func() time.Time { return time.Now().UTC() },
		logger:      application.ResolveLogger(logger),
	}
	for _, testSet := range testSets {
		store.putTestSetLocked(testSet)
	}
	return store
}

// PutTestSet adds or replaces a catalog entry, keeping its original position.
func (s *Store) PutTestSet(_ context.Context, testSet entities.TestSet) error {
	if !testSet.ValidateCreate() {
		return domainerrors.ErrInvalidTestSetInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.putTestSetLocked(testSet)
	return nil
}

func (s *Store) putTestSetLocked(testSet entities.TestSet) {
	if _, exists := s.testSets[testSet.TestSetID]; !exists {
		s.testSetOrder = append(s.testSetOrder, testSet.TestSetID)
	}
	if testSet.CreatedAt.IsZero() {
		testSet.CreatedAt = s.now()
	}
	s.testSets[testSet.TestSetID] = testSet
}

func (s *Store) CreateTeam(_ context.Context, team entities.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.teams {
		if existing.TeamID == team.TeamID ||
			existing.Name == team.Name ||
			existing.Email == team.Email ||
			existing.Token == team.Token {
			return domainerrors.ErrDuplicateTeam
		}
	}
	s.teams[team.TeamID] = team
	return nil
}

func (s *Store) GetTeam(_ context.Context, teamID string) (entities.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	team, exists := s.teams[strings.TrimSpace(teamID)]
	if !exists {
		return entities.Team{}, domainerrors.ErrUnknownTeam
	}
	return team, nil
}

func (s *Store) GetTeamByToken(_ context.Context, token string) (entities.Team, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, team := range s.teams {
		if team.Token == token {
			return team, true, nil
		}
	}
	return entities.Team{}, false, nil
}

func (s *Store) FindTeamByCredentials(_ context.Context, name string, email string, token string) (entities.Team, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, team := range s.teams {
		if team.Name == name && team.Email == email && team.Token == token {
			return team, true, nil
		}
	}
	return entities.Team{}, false, nil
}

func (s *Store) UpdateTeamProfile(
	_ context.Context,
	teamID string,
	description string,
	publicationURL string,
	updatedAt time.Time,
) (entities.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	team, exists := s.teams[teamID]
	if !exists {
		return entities.Team{}, domainerrors.ErrUnknownTeam
	}
	team.Description = description
	team.PublicationURL = publicationURL
	team.UpdatedAt = updatedAt.UTC()
	s.teams[teamID] = team
	return team, nil
}

func (s *Store) TokensByTeamID(_ context.Context, teamIDs []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := make(map[string]string, len(teamIDs))
	for _, teamID := range teamIDs {
		if team, exists := s.teams[teamID]; exists {
			tokens[teamID] = team.Token
		}
	}
	return tokens, nil
}

func (s *Store) GetTestSet(_ context.Context, testSetID string) (entities.TestSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	testSet, exists := s.testSets[strings.TrimSpace(testSetID)]
	if !exists {
		return entities.TestSet{}, domainerrors.ErrUnknownTestSet
	}
	return testSet, nil
}

func (s *Store) ListTestSets(_ context.Context, activeOnly bool) ([]entities.TestSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.TestSet, 0, len(s.testSetOrder))
	for _, testSetID := range s.testSetOrder {
		testSet := s.testSets[testSetID]
		if activeOnly && !testSet.IsActive {
			continue
		}
		items = append(items, testSet)
	}
	return items, nil
}

func (s *Store) SetTestSetActive(_ context.Context, testSetID string, active bool) (entities.TestSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	testSet, exists := s.testSets[testSetID]
	if !exists {
		return entities.TestSet{}, domainerrors.ErrUnknownTestSet
	}
	testSet.IsActive = active
	s.testSets[testSetID] = testSet
	return testSet, nil
}

func (s *Store) AdmitSubmission(
	_ context.Context,
	submission entities.Submission,
	policy services.QuotaPolicy,
	event ports.EventEnvelope,
) (entities.Submission, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return entities.Submission{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.teams[submission.TeamID]; !exists {
		return entities.Submission{}, domainerrors.ErrUnknownTeam
	}
	if _, exists := s.testSets[submission.TestSetID]; !exists {
		return entities.Submission{}, domainerrors.ErrUnknownTestSet
	}
	if _, exists := s.submissions[submission.SubmissionID]; exists {
		return entities.Submission{}, domainerrors.ErrRepositoryInvariantBroke
	}

	counted := 0
	for _, existing := range s.submissions {
		if existing.TeamID == submission.TeamID &&
			existing.TestSetID == submission.TestSetID &&
			policy.Counts(existing) {
			counted++
		}
	}
	if !policy.Admits(counted) {
		return entities.Submission{}, domainerrors.ErrQuotaExceeded
	}

	s.sequence++
	submission.Sequence = s.sequence
	s.submissions[submission.SubmissionID] = submission
	s.submissionOrder = append(s.submissionOrder, submission.SubmissionID)

	s.outbox[event.EventID] = ports.OutboxMessage{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      payload,
		Status:       outbox.StatusPending,
		CreatedAt:    event.OccurredAt.UTC(),
	}
	s.outboxOrder = append(s.outboxOrder, event.EventID)
	return submission, nil
}

func (s *Store) GetSubmission(_ context.Context, submissionID string) (entities.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.submissions[strings.TrimSpace(submissionID)]
	if !exists {
		return entities.Submission{}, domainerrors.ErrSubmissionNotFound
	}
	return item, nil
}

func (s *Store) ListSubmissions(_ context.Context, filter ports.SubmissionFilter) ([]entities.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	testSetIDs := toSet(filter.TestSetIDs)
	states := make(map[entities.ScoreState]struct{}, len(filter.States))
	for _, state := range filter.States {
		states[state] = struct{}{}
	}

	items := make([]entities.Submission, 0, len(s.submissionOrder))
	for _, submissionID := range s.submissionOrder {
		item := s.submissions[submissionID]
		if filter.TeamID != "" && item.TeamID != filter.TeamID {
			continue
		}
		if filter.TestSetIDs != nil {
			if _, ok := testSetIDs[item.TestSetID]; !ok {
				continue
			}
		}
		if len(states) > 0 {
			if _, ok := states[item.State]; !ok {
				continue
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Store) RecordScore(_ context.Context, scored entities.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.submissions[scored.SubmissionID]
	if !exists {
		return domainerrors.ErrSubmissionNotFound
	}
	if !existing.IsPending() {
		return domainerrors.ErrScoreAlreadyRecorded
	}
	existing.State = scored.State
	existing.Score = scored.Score
	existing.ScoreChrF = scored.ScoreChrF
	existing.ScoredAt = scored.ScoredAt
	s.submissions[scored.SubmissionID] = existing
	return nil
}

func (s *Store) CreateSession(_ context.Context, sessionID string, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = session{token: token, expiresAt: s.now().Add(ttl)}
	return nil
}

// GetSessionToken drops an expired session when it is read.
func (s *Store) GetSessionToken(_ context.Context, sessionID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.sessions[sessionID]
	if !exists {
		return "", false, nil
	}
	if !s.now().Before(item.expiresAt) {
		delete(s.sessions, sessionID)
		return "", false, nil
	}
	return item.token, true, nil
}

func (s *Store) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, limit)
	for _, outboxID := range s.outboxOrder {
		row := s.outbox[outboxID]
		if row.Status != outbox.StatusPending {
			continue
		}
		row.Payload = append([]byte(nil), row.Payload...)
		items = append(items, row)
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists := s.outbox[outboxID]
	if !exists {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	row.Status = outbox.StatusPublished
	s.outbox[outboxID] = row
	s.logger.Debug("outbox row published",
		"event", "leaderboard_memory_outbox_published",
		"module", "evaluation/leaderboard-service",
		"layer", "adapter",
		"outbox_id", outboxID,
		"published_at", publishedAt.UTC(),
	)
	return nil
}

func (s *Store) ReserveEvent(_ context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.eventDedup[eventID]
	if exists && s.now().Before(existing.expiresAt) {
		if existing.payloadHash != payloadHash {
			return false, domainerrors.ErrIdempotencyKeyConflict
		}
		return true, nil
	}
	s.eventDedup[eventID] = dedupRecord{payloadHash: payloadHash, expiresAt: expiresAt.UTC()}
	return false, nil
}

func (s *Store) ReleaseEvent(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.eventDedup, eventID)
	return nil
}

func (s *Store) Now() time.Time {
	return s.now()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// NewToken issues a 32 character hex team token backed by a random UUID.
func (s *Store) NewToken(_ context.Context) (string, error) {
	return strings.ReplaceAll(uuid.NewString(), "-", ""), nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[value] = struct{}{}
	}
	return set
}
