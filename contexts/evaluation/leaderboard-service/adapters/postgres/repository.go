package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
	domainerrors "ocelot/contexts/evaluation/leaderboard-service/domain/errors"
	"ocelot/contexts/evaluation/leaderboard-service/domain/services"
	"ocelot/contexts/evaluation/leaderboard-service/ports"
	"ocelot/internal/shared/outbox"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) CreateTeam(ctx context.Context, team entities.Team) error {
	row := teamModelFromEntity(team)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateTeam
		}
		return err
	}
	return nil
}

func (r *Repository) GetTeam(ctx context.Context, teamID string) (entities.Team, error) {
	var row teamModel
	err := r.db.WithContext(ctx).
		Where("team_id = ?", strings.TrimSpace(teamID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Team{}, domainerrors.ErrUnknownTeam
		}
		return entities.Team{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) GetTeamByToken(ctx context.Context, token string) (entities.Team, bool, error) {
	var row teamModel
	err := r.db.WithContext(ctx).
		Where("token = ?", token).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Team{}, false, nil
		}
		return entities.Team{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) FindTeamByCredentials(
	ctx context.Context,
	name string,
	email string,
	token string,
) (entities.Team, bool, error) {
	var row teamModel
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Where("email = ?", email).
		Where("token = ?", token).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Team{}, false, nil
		}
		return entities.Team{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) UpdateTeamProfile(
	ctx context.Context,
	teamID string,
	description string,
	publicationURL string,
	updatedAt time.Time,
) (entities.Team, error) {
	result := r.db.WithContext(ctx).
		Model(&teamModel{}).
		Where("team_id = ?", strings.TrimSpace(teamID)).
		Updates(map[string]any{
			"description":     description,
			"publication_url": publicationURL,
			"updated_at":      updatedAt.UTC(),
		})
	if result.Error != nil {
		return entities.Team{}, result.Error
	}
	if result.RowsAffected == 0 {
		return entities.Team{}, domainerrors.ErrUnknownTeam
	}
	return r.GetTeam(ctx, teamID)
}

func (r *Repository) TokensByTeamID(ctx context.Context, teamIDs []string) (map[string]string, error) {
	tokens := make(map[string]string, len(teamIDs))
	if len(teamIDs) == 0 {
		return tokens, nil
	}

	var rows []teamModel
	if err := r.db.WithContext(ctx).
		Select("team_id", "token").
		Where("team_id IN ?", teamIDs).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		tokens[row.TeamID] = row.Token
	}
	return tokens, nil
}

func (r *Repository) GetTestSet(ctx context.Context, testSetID string) (entities.TestSet, error) {
	var row testSetModel
	err := r.db.WithContext(ctx).
		Where("test_set_id = ?", strings.TrimSpace(testSetID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.TestSet{}, domainerrors.ErrUnknownTestSet
		}
		return entities.TestSet{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListTestSets(ctx context.Context, activeOnly bool) ([]entities.TestSet, error) {
	tx := r.db.WithContext(ctx).Model(&testSetModel{})
	if activeOnly {
		tx = tx.Where("is_active = ?", true)
	}

	var rows []testSetModel
	if err := tx.Order("catalog_position ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.TestSet, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) SetTestSetActive(ctx context.Context, testSetID string, active bool) (entities.TestSet, error) {
	result := r.db.WithContext(ctx).
		Model(&testSetModel{}).
		Where("test_set_id = ?", strings.TrimSpace(testSetID)).
		Update("is_active", active)
	if result.Error != nil {
		return entities.TestSet{}, result.Error
	}
	if result.RowsAffected == 0 {
		return entities.TestSet{}, domainerrors.ErrUnknownTestSet
	}
	return r.GetTestSet(ctx, testSetID)
}

// PutTestSet seeds a catalog entry. Existing entries are left untouched.
func (r *Repository) PutTestSet(ctx context.Context, testSet entities.TestSet) error {
	if !testSet.ValidateCreate() {
		return domainerrors.ErrInvalidTestSetInput
	}
	row := testSetModelFromEntity(testSet)
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "test_set_id"}},
			DoNothing: true,
		}).
		Create(&row).
		Error
}

// AdmitSubmission serializes admissions per team by locking the team row,
// then counts, inserts and enqueues the outbox event in one transaction.
func (r *Repository) AdmitSubmission(
	ctx context.Context,
	submission entities.Submission,
	policy services.QuotaPolicy,
	event ports.EventEnvelope,
) (entities.Submission, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return entities.Submission{}, err
	}

	admitted := submission
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var team teamModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("team_id").
			Where("team_id = ?", strings.TrimSpace(submission.TeamID)).
			First(&team).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrUnknownTeam
			}
			return err
		}

		var testSetCount int64
		if err := tx.Model(&testSetModel{}).
			Where("test_set_id = ?", strings.TrimSpace(submission.TestSetID)).
			Count(&testSetCount).
			Error; err != nil {
			return err
		}
		if testSetCount == 0 {
			return domainerrors.ErrUnknownTestSet
		}

		var counted int64
		if err := tx.Model(&submissionModel{}).
			Where("team_id = ?", submission.TeamID).
			Where("test_set_id = ?", submission.TestSetID).
			Where("state IN ?", stateValues(policy.CountedStates())).
			Count(&counted).
			Error; err != nil {
			return err
		}
		if !policy.Admits(int(counted)) {
			return domainerrors.ErrQuotaExceeded
		}

		row := submissionModelFromEntity(submission)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrRepositoryInvariantBroke
			}
			return err
		}
		var sequence int64
		if err := tx.Model(&submissionModel{}).
			Where("submission_id = ?", row.SubmissionID).
			Pluck("sequence", &sequence).
			Error; err != nil {
			return err
		}
		admitted.Sequence = sequence

		outboxRow := outboxModel{
			OutboxID:     strings.TrimSpace(event.EventID),
			EventType:    strings.TrimSpace(event.EventType),
			PartitionKey: strings.TrimSpace(event.PartitionKey),
			Payload:      payload,
			Status:       outbox.StatusPending,
			CreatedAt:    event.OccurredAt.UTC(),
		}
		return tx.Create(&outboxRow).Error
	})
	if err != nil {
		return entities.Submission{}, err
	}
	return admitted, nil
}

func (r *Repository) GetSubmission(ctx context.Context, submissionID string) (entities.Submission, error) {
	var row submissionModel
	err := r.db.WithContext(ctx).
		Where("submission_id = ?", strings.TrimSpace(submissionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Submission{}, domainerrors.ErrSubmissionNotFound
		}
		return entities.Submission{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListSubmissions(ctx context.Context, filter ports.SubmissionFilter) ([]entities.Submission, error) {
	if filter.TestSetIDs != nil && len(filter.TestSetIDs) == 0 {
		return []entities.Submission{}, nil
	}

	tx := r.db.WithContext(ctx).Model(&submissionModel{})
	if strings.TrimSpace(filter.TeamID) != "" {
		tx = tx.Where("team_id = ?", strings.TrimSpace(filter.TeamID))
	}
	if filter.TestSetIDs != nil {
		tx = tx.Where("test_set_id IN ?", filter.TestSetIDs)
	}
	if len(filter.States) > 0 {
		tx = tx.Where("state IN ?", stateValues(filter.States))
	}

	var rows []submissionModel
	if err := tx.Order("sequence ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.Submission, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) RecordScore(ctx context.Context, scored entities.Submission) error {
	result := r.db.WithContext(ctx).
		Model(&submissionModel{}).
		Where("submission_id = ?", strings.TrimSpace(scored.SubmissionID)).
		Where("state = ?", string(entities.ScoreStatePending)).
		Updates(map[string]any{
			"state":      string(scored.State),
			"score":      scored.Score,
			"score_chrf": scored.ScoreChrF,
			"scored_at":  normalizeOptionalTime(scored.ScoredAt),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	if _, err := r.GetSubmission(ctx, scored.SubmissionID); err != nil {
		return err
	}
	return domainerrors.ErrScoreAlreadyRecorded
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outbox.StatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			Status:       row.Status,
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outbox.StatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	return nil
}

func (r *Repository) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	now := time.Now().UTC()
	row := eventDedupModel{
		EventID:     strings.TrimSpace(eventID),
		PayloadHash: strings.TrimSpace(payloadHash),
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: now,
	}

	createResult := r.db.WithContext(ctx).
		Clauses(reserveEventConflict(now)).
		Create(&row)
	if createResult.Error != nil {
		return false, createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return false, nil
	}

	var existing eventDedupModel
	if err := r.db.WithContext(ctx).
		Select("payload_hash").
		Where("event_id = ?", row.EventID).
		First(&existing).
		Error; err != nil {
		return false, err
	}
	if existing.PayloadHash != row.PayloadHash {
		r.logger.Warn("event id reused with a different payload",
			"event", "leaderboard_event_dedup_conflict",
			"module", "evaluation/leaderboard-service",
			"layer", "adapter",
			"event_id", row.EventID,
		)
		return false, domainerrors.ErrIdempotencyKeyConflict
	}
	return true, nil
}

// reserveEventConflict keeps a live reservation and overwrites an expired one.
func reserveEventConflict(now time.Time) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload_hash", "expires_at", "processed_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "leaderboard_event_dedup.expires_at <= ?", Vars: []interface{}{now}},
		}},
	}
}

func (r *Repository) ReleaseEvent(ctx context.Context, eventID string) error {
	return r.db.WithContext(ctx).
		Where("event_id = ?", strings.TrimSpace(eventID)).
		Delete(&eventDedupModel{}).
		Error
}

func stateValues(states []entities.ScoreState) []string {
	values := make([]string, 0, len(states))
	for _, state := range states {
		values = append(values, string(state))
	}
	return values
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
