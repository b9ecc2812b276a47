package httpadapter

import (
	"context"
	"log/slog"
	"time"

	application "ocelot/contexts/evaluation/leaderboard-service/application"
	"ocelot/contexts/evaluation/leaderboard-service/application/commands"
	"ocelot/contexts/evaluation/leaderboard-service/application/queries"
	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
	domainerrors "ocelot/contexts/evaluation/leaderboard-service/domain/errors"
	"ocelot/contexts/evaluation/leaderboard-service/domain/services"
	httptransport "ocelot/contexts/evaluation/leaderboard-service/transport/http"
)

type Handler struct {
	Resolver         queries.SessionResolver
	CurrentTeam      queries.CurrentTeamQuery
	Leaderboard      queries.LeaderboardQuery
	TeamSubmissions  queries.TeamSubmissionsQuery
	Catalog          queries.CatalogQuery
	Limits           queries.LimitsQuery
	RegisterTeam     commands.RegisterTeamUseCase
	SignIn           commands.SignInUseCase
	SignOut          commands.SignOutUseCase
	UpdateProfile    commands.UpdateTeamProfileUseCase
	AdmitSubmission  commands.AdmitSubmissionUseCase
	RecordScore      commands.RecordScoreUseCase
	SetTestSetActive commands.SetTestSetActiveUseCase
	Logger           *slog.Logger
}

// ResolveIdentity resolves the session cookie first and falls back to a
// bearer team token. Unknown credentials yield Anonymous.
func (h Handler) ResolveIdentity(ctx context.Context, sessionID string, bearerToken string) (entities.Identity, error) {
	if sessionID != "" {
		identity, err := h.Resolver.ResolveSession(ctx, sessionID)
		if err != nil || !identity.IsAnonymous() {
			return identity, err
		}
	}
	return h.Resolver.ResolveToken(ctx, bearerToken)
}

// LeaderboardHandler godoc
// @Summary Public leaderboard
// @Description Top scored submissions per active test set. Entries owned by the caller are flagged.
// @Tags leaderboard
// @Produce json
// @Success 200 {object} httptransport.LeaderboardResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /v1/leaderboard [get]
func (h Handler) LeaderboardHandler(ctx context.Context, viewer entities.Identity) (httptransport.LeaderboardResponse, error) {
	rankings, err := h.Leaderboard.Execute(ctx, viewer)
	if err != nil {
		application.ResolveLogger(h.Logger).Error("leaderboard request failed",
			"event", "http_leaderboard_failed",
			"module", "evaluation/leaderboard-service",
			"layer", "transport",
			"error", err.Error(),
		)
		return httptransport.LeaderboardResponse{}, err
	}
	return httptransport.LeaderboardResponse{Items: mapRankings(rankings, viewer)}, nil
}

// ListTestSetsHandler godoc
// @Summary List test sets
// @Tags leaderboard
// @Produce json
// @Param all query bool false "Include inactive test sets"
// @Success 200 {object} httptransport.ListTestSetsResponse
// @Router /v1/test-sets [get]
func (h Handler) ListTestSetsHandler(ctx context.Context, includeInactive bool) (httptransport.ListTestSetsResponse, error) {
	items, err := h.Catalog.ListTestSets(ctx, !includeInactive)
	if err != nil {
		return httptransport.ListTestSetsResponse{}, err
	}
	response := httptransport.ListTestSetsResponse{Items: make([]httptransport.TestSetDTO, 0, len(items))}
	for _, item := range items {
		response.Items = append(response.Items, mapTestSet(item))
	}
	return response, nil
}

// LimitsHandler godoc
// @Summary Submission limits
// @Tags leaderboard
// @Produce json
// @Success 200 {object} httptransport.LimitsResponse
// @Router /v1/limits [get]
func (h Handler) LimitsHandler(_ context.Context) httptransport.LimitsResponse {
	limits := h.Limits.Execute()
	return httptransport.LimitsResponse{
		SubmissionQuota: limits.SubmissionQuota,
		LeaderboardSize: limits.LeaderboardSize,
		ReservePending:  limits.ReservePending,
	}
}

// RegisterTeamHandler godoc
// @Summary Register a team
// @Description Creates a team, returns its token once and opens a session cookie.
// @Tags teams
// @Accept json
// @Produce json
// @Param request body httptransport.RegisterTeamRequest true "Team details"
// @Success 201 {object} httptransport.RegisterTeamResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /v1/teams [post]
func (h Handler) RegisterTeamHandler(
	ctx context.Context,
	caller entities.Identity,
	req httptransport.RegisterTeamRequest,
) (httptransport.RegisterTeamResponse, string, error) {
	result, err := h.RegisterTeam.Execute(ctx, commands.RegisterTeamCommand{
		Caller:         caller,
		Name:           req.Name,
		Email:          req.Email,
		Description:    req.Description,
		PublicationURL: req.PublicationURL,
	})
	if err != nil {
		return httptransport.RegisterTeamResponse{}, "", err
	}
	return httptransport.RegisterTeamResponse{
		Team:  mapTeam(result.Team),
		Token: result.Team.Token,
	}, result.SessionID, nil
}

// SignInHandler godoc
// @Summary Sign in
// @Tags teams
// @Accept json
// @Produce json
// @Param request body httptransport.SignInRequest true "Team name, email and token"
// @Success 200 {object} httptransport.SignInResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /v1/session [post]
func (h Handler) SignInHandler(
	ctx context.Context,
	caller entities.Identity,
	req httptransport.SignInRequest,
) (httptransport.SignInResponse, string, error) {
	result, err := h.SignIn.Execute(ctx, commands.SignInCommand{
		Caller: caller,
		Name:   req.Name,
		Email:  req.Email,
		Token:  req.Token,
	})
	if err != nil {
		return httptransport.SignInResponse{}, "", err
	}
	team, err := h.CurrentTeam.Execute(ctx, result.Identity)
	if err != nil {
		return httptransport.SignInResponse{}, "", err
	}
	return httptransport.SignInResponse{Team: mapTeam(team)}, result.SessionID, nil
}

// SignOutHandler godoc
// @Summary Sign out
// @Tags teams
// @Success 204
// @Router /v1/session [delete]
func (h Handler) SignOutHandler(ctx context.Context, sessionID string) error {
	return h.SignOut.Execute(ctx, sessionID)
}

// MeHandler godoc
// @Summary Current team
// @Tags teams
// @Produce json
// @Security BearerAuth
// @Success 200 {object} httptransport.MeResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Router /v1/me [get]
func (h Handler) MeHandler(ctx context.Context, identity entities.Identity) (httptransport.MeResponse, error) {
	team, err := h.CurrentTeam.Execute(ctx, identity)
	if err != nil {
		return httptransport.MeResponse{}, err
	}
	return httptransport.MeResponse{Team: mapTeam(team)}, nil
}

// UpdateProfileHandler godoc
// @Summary Update team profile
// @Tags teams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body httptransport.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} httptransport.MeResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Router /v1/me [patch]
func (h Handler) UpdateProfileHandler(
	ctx context.Context,
	identity entities.Identity,
	req httptransport.UpdateProfileRequest,
) (httptransport.MeResponse, error) {
	team, err := h.UpdateProfile.Execute(ctx, commands.UpdateTeamProfileCommand{
		Identity:       identity,
		Description:    req.Description,
		PublicationURL: req.PublicationURL,
	})
	if err != nil {
		return httptransport.MeResponse{}, err
	}
	return httptransport.MeResponse{Team: mapTeam(team)}, nil
}

// TeamSubmissionsHandler godoc
// @Summary Own scored submissions
// @Description All valid submissions of the caller across every test set, plus remaining quota.
// @Tags submissions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} httptransport.TeamSubmissionsResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Router /v1/me/submissions [get]
func (h Handler) TeamSubmissionsHandler(ctx context.Context, identity entities.Identity) (httptransport.TeamSubmissionsResponse, error) {
	view, err := h.TeamSubmissions.Execute(ctx, identity)
	if err != nil {
		return httptransport.TeamSubmissionsResponse{}, err
	}
	response := httptransport.TeamSubmissionsResponse{
		Items: mapRankings(view.Rankings, identity),
		Quota: make([]httptransport.QuotaUsageDTO, 0, len(view.Quota)),
	}
	for _, usage := range view.Quota {
		response.Quota = append(response.Quota, httptransport.QuotaUsageDTO{
			TestSetID: usage.TestSet.TestSetID,
			Label:     usage.TestSet.Label(),
			Used:      usage.Used,
			Remaining: usage.Remaining,
		})
	}
	return response, nil
}

// SubmitHandler godoc
// @Summary Upload a submission
// @Tags submissions
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param test_set_id formData string true "Test set id"
// @Param sgml_file formData file true "SGML translation output"
// @Success 201 {object} httptransport.SubmitResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 429 {object} httptransport.ErrorResponse
// @Router /v1/submissions [post]
func (h Handler) SubmitHandler(
	ctx context.Context,
	identity entities.Identity,
	req httptransport.SubmitRequest,
) (httptransport.SubmitResponse, error) {
	submission, err := h.AdmitSubmission.Execute(ctx, commands.AdmitSubmissionCommand{
		Identity:    identity,
		TestSetID:   req.TestSetID,
		FileName:    req.FileName,
		ContentSize: req.ContentSize,
	})
	if err != nil {
		return httptransport.SubmitResponse{}, err
	}
	return httptransport.SubmitResponse{Submission: mapSubmission(submission)}, nil
}

// RecordScoreHandler godoc
// @Summary Record a scorer result
// @Tags internal
// @Accept json
// @Produce json
// @Param X-Scorer-Key header string true "Scorer API key"
// @Param submission_id path string true "Submission id"
// @Param request body httptransport.RecordScoreRequest true "Scores"
// @Success 200 {object} httptransport.RecordScoreResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /internal/submissions/{submission_id}/score [post]
func (h Handler) RecordScoreHandler(
	ctx context.Context,
	submissionID string,
	req httptransport.RecordScoreRequest,
) (httptransport.RecordScoreResponse, error) {
	submission, err := h.RecordScore.Execute(ctx, commands.RecordScoreCommand{
		SubmissionID: submissionID,
		Score:        req.Score,
		ScoreChrF:    req.ScoreChrF,
	})
	if err != nil {
		return httptransport.RecordScoreResponse{}, err
	}
	return httptransport.RecordScoreResponse{Submission: mapSubmission(submission)}, nil
}

// SetTestSetActiveHandler godoc
// @Summary Activate or deactivate a test set
// @Tags internal
// @Accept json
// @Produce json
// @Param X-Admin-Key header string true "Admin API key"
// @Param test_set_id path string true "Test set id"
// @Param request body httptransport.SetTestSetActiveRequest true "Active flag"
// @Success 200 {object} httptransport.SetTestSetActiveResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /internal/test-sets/{test_set_id}/active [put]
func (h Handler) SetTestSetActiveHandler(
	ctx context.Context,
	testSetID string,
	req httptransport.SetTestSetActiveRequest,
) (httptransport.SetTestSetActiveResponse, error) {
	if req.Active == nil {
		return httptransport.SetTestSetActiveResponse{}, domainerrors.ErrInvalidTestSetInput
	}
	testSet, err := h.SetTestSetActive.Execute(ctx, testSetID, *req.Active)
	if err != nil {
		return httptransport.SetTestSetActiveResponse{}, err
	}
	return httptransport.SetTestSetActiveResponse{TestSet: mapTestSet(testSet)}, nil
}

func mapRankings(rankings []services.TestSetRanking, viewer entities.Identity) []httptransport.TestSetRankingDTO {
	items := make([]httptransport.TestSetRankingDTO, 0, len(rankings))
	for _, ranking := range rankings {
		group := httptransport.TestSetRankingDTO{
			TestSet: mapTestSet(ranking.TestSet),
			Entries: make([]httptransport.RankedEntryDTO, 0, len(ranking.Entries)),
		}
		for index, entry := range ranking.Entries {
			group.Entries = append(group.Entries, httptransport.RankedEntryDTO{
				Rank:         index + 1,
				SubmissionID: entry.SubmissionID,
				FileName:     entry.FileName,
				Score:        entry.Score,
				ScoreChrF:    entry.ScoreChrF,
				SubmittedAt:  entry.CreatedAt.UTC().Format(time.RFC3339),
				IsOwn:        viewer.Owns(entry.TeamToken),
			})
		}
		items = append(items, group)
	}
	return items
}

func mapTestSet(item entities.TestSet) httptransport.TestSetDTO {
	return httptransport.TestSetDTO{
		TestSetID:      item.TestSetID,
		Name:           item.Name,
		SourceLanguage: item.SourceLanguage,
		TargetLanguage: item.TargetLanguage,
		Label:          item.Label(),
		IsActive:       item.IsActive,
	}
}

func mapTeam(item entities.Team) httptransport.TeamDTO {
	dto := httptransport.TeamDTO{
		TeamID:         item.TeamID,
		Name:           item.Name,
		Email:          item.Email,
		Description:    item.Description,
		PublicationURL: item.PublicationURL,
	}
	if !item.CreatedAt.IsZero() {
		dto.CreatedAt = item.CreatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func mapSubmission(item entities.Submission) httptransport.SubmissionDTO {
	dto := httptransport.SubmissionDTO{
		SubmissionID: item.SubmissionID,
		TestSetID:    item.TestSetID,
		FileName:     item.FileName,
		State:        string(item.State),
		Score:        item.Score,
		ScoreChrF:    item.ScoreChrF,
		SubmittedAt:  item.CreatedAt.UTC().Format(time.RFC3339),
	}
	if item.ScoredAt != nil {
		dto.ScoredAt = item.ScoredAt.UTC().Format(time.RFC3339)
	}
	return dto
}
