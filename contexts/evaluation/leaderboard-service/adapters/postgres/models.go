package postgresadapter

import (
	"strings"
	"time"

	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
)

type teamModel struct {
	TeamID         string    `gorm:"column:team_id;primaryKey"`
	Name           string    `gorm:"column:name"`
	Email          string    `gorm:"column:email"`
	Token          string    `gorm:"column:token"`
	Description    string    `gorm:"column:description"`
	PublicationURL string    `gorm:"column:publication_url"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (teamModel) TableName() string {
	return "teams"
}

func teamModelFromEntity(item entities.Team) teamModel {
	return teamModel{
		TeamID:         strings.TrimSpace(item.TeamID),
		Name:           item.Name,
		Email:          item.Email,
		Token:          item.Token,
		Description:    item.Description,
		PublicationURL: item.PublicationURL,
		CreatedAt:      item.CreatedAt.UTC(),
		UpdatedAt:      item.UpdatedAt.UTC(),
	}
}

func (m teamModel) toEntity() entities.Team {
	return entities.Team{
		TeamID:         m.TeamID,
		Name:           m.Name,
		Email:          m.Email,
		Token:          m.Token,
		Description:    m.Description,
		PublicationURL: m.PublicationURL,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

// catalog_position is a bigserial owned by the database.
type testSetModel struct {
	TestSetID       string    `gorm:"column:test_set_id;primaryKey"`
	Name            string    `gorm:"column:name"`
	SourceLanguage  string    `gorm:"column:source_language"`
	TargetLanguage  string    `gorm:"column:target_language"`
	IsActive        bool      `gorm:"column:is_active"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	CatalogPosition int64     `gorm:"column:catalog_position;->"`
}

func (testSetModel) TableName() string {
	return "test_sets"
}

func testSetModelFromEntity(item entities.TestSet) testSetModel {
	return testSetModel{
		TestSetID:      strings.TrimSpace(item.TestSetID),
		Name:           strings.TrimSpace(item.Name),
		SourceLanguage: strings.TrimSpace(item.SourceLanguage),
		TargetLanguage: strings.TrimSpace(item.TargetLanguage),
		IsActive:       item.IsActive,
		CreatedAt:      item.CreatedAt.UTC(),
	}
}

func (m testSetModel) toEntity() entities.TestSet {
	return entities.TestSet{
		TestSetID:      m.TestSetID,
		Name:           m.Name,
		SourceLanguage: m.SourceLanguage,
		TargetLanguage: m.TargetLanguage,
		IsActive:       m.IsActive,
		CreatedAt:      m.CreatedAt.UTC(),
	}
}

// sequence is a bigserial owned by the database and defines ledger order.
type submissionModel struct {
	SubmissionID string     `gorm:"column:submission_id;primaryKey"`
	TeamID       string     `gorm:"column:team_id"`
	TestSetID    string     `gorm:"column:test_set_id"`
	FileName     string     `gorm:"column:file_name"`
	State        string     `gorm:"column:state"`
	Score        *float64   `gorm:"column:score"`
	ScoreChrF    *float64   `gorm:"column:score_chrf"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	ScoredAt     *time.Time `gorm:"column:scored_at"`
	Sequence     int64      `gorm:"column:sequence;->"`
}

func (submissionModel) TableName() string {
	return "submissions"
}

func submissionModelFromEntity(item entities.Submission) submissionModel {
	return submissionModel{
		SubmissionID: strings.TrimSpace(item.SubmissionID),
		TeamID:       strings.TrimSpace(item.TeamID),
		TestSetID:    strings.TrimSpace(item.TestSetID),
		FileName:     item.FileName,
		State:        string(item.State),
		Score:        item.Score,
		ScoreChrF:    item.ScoreChrF,
		CreatedAt:    item.CreatedAt.UTC(),
		ScoredAt:     normalizeOptionalTime(item.ScoredAt),
	}
}

func (m submissionModel) toEntity() entities.Submission {
	return entities.Submission{
		SubmissionID: m.SubmissionID,
		TeamID:       m.TeamID,
		TestSetID:    m.TestSetID,
		FileName:     m.FileName,
		State:        entities.ScoreState(m.State),
		Score:        m.Score,
		ScoreChrF:    m.ScoreChrF,
		CreatedAt:    m.CreatedAt.UTC(),
		ScoredAt:     normalizeOptionalTime(m.ScoredAt),
		Sequence:     m.Sequence,
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "leaderboard_outbox"
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "leaderboard_event_dedup"
}
