package v1

import (
	"encoding/json"
	"time"
)

// Envelope is the versioned event envelope exchanged with the scoring
// pipeline. Fields may be added but never renamed.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

// SubmissionAdmittedData is the payload of submission.admitted.
type SubmissionAdmittedData struct {
	SubmissionID string `json:"submission_id"`
	TeamID       string `json:"team_id"`
	TestSetID    string `json:"test_set_id"`
	FileName     string `json:"file_name"`
}

// SubmissionScoredData is the payload of submission.scored. A negative Score
// marks the upload as invalid.
type SubmissionScoredData struct {
	SubmissionID string   `json:"submission_id"`
	Score        *float64 `json:"score"`
	ScoreChrF    *float64 `json:"score_chrf,omitempty"`
}
