package httptransport

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type TestSetDTO struct {
	TestSetID      string `json:"test_set_id"`
	Name           string `json:"name"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	Label          string `json:"label"`
	IsActive       bool   `json:"is_active"`
}

type ListTestSetsResponse struct {
	Items []TestSetDTO `json:"items"`
}

type LimitsResponse struct {
	SubmissionQuota int  `json:"submission_quota"`
	LeaderboardSize int  `json:"leaderboard_size"`
	ReservePending  bool `json:"reserve_pending"`
}

// RankedEntryDTO is the public projection of a scored submission. The owning
// team token is never serialized.
type RankedEntryDTO struct {
	Rank         int      `json:"rank"`
	SubmissionID string   `json:"submission_id"`
	FileName     string   `json:"file_name"`
	Score        float64  `json:"score"`
	ScoreChrF    *float64 `json:"score_chrf,omitempty"`
	SubmittedAt  string   `json:"submitted_at"`
	IsOwn        bool     `json:"is_own"`
}

type TestSetRankingDTO struct {
	TestSet TestSetDTO       `json:"test_set"`
	Entries []RankedEntryDTO `json:"entries"`
}

type LeaderboardResponse struct {
	Items []TestSetRankingDTO `json:"items"`
}

type QuotaUsageDTO struct {
	TestSetID string `json:"test_set_id"`
	Label     string `json:"label"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
}

type TeamSubmissionsResponse struct {
	Items []TestSetRankingDTO `json:"items"`
	Quota []QuotaUsageDTO     `json:"quota"`
}

type TeamDTO struct {
	TeamID         string `json:"team_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Description    string `json:"description,omitempty"`
	PublicationURL string `json:"publication_url,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

type RegisterTeamRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Description    string `json:"description,omitempty"`
	PublicationURL string `json:"publication_url,omitempty"`
}

// RegisterTeamResponse returns the token exactly once, to its owner.
type RegisterTeamResponse struct {
	Team  TeamDTO `json:"team"`
	Token string  `json:"token"`
}

type SignInRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

type SignInResponse struct {
	Team TeamDTO `json:"team"`
}

type MeResponse struct {
	Team TeamDTO `json:"team"`
}

type UpdateProfileRequest struct {
	Description    string `json:"description"`
	PublicationURL string `json:"publication_url"`
}

type SubmitRequest struct {
	TestSetID   string
	FileName    string
	ContentSize int64
}

type SubmissionDTO struct {
	SubmissionID string   `json:"submission_id"`
	TestSetID    string   `json:"test_set_id"`
	FileName     string   `json:"file_name"`
	State        string   `json:"state"`
	Score        *float64 `json:"score,omitempty"`
	ScoreChrF    *float64 `json:"score_chrf,omitempty"`
	SubmittedAt  string   `json:"submitted_at"`
	ScoredAt     string   `json:"scored_at,omitempty"`
}

type SubmitResponse struct {
	Submission SubmissionDTO `json:"submission"`
}

type RecordScoreRequest struct {
	Score     *float64 `json:"score"`
	ScoreChrF *float64 `json:"score_chrf,omitempty"`
}

type RecordScoreResponse struct {
	Submission SubmissionDTO `json:"submission"`
}

type SetTestSetActiveRequest struct {
	Active *bool `json:"active"`
}

type SetTestSetActiveResponse struct {
	TestSet TestSetDTO `json:"test_set"`
}
