package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "ocelot/contexts/evaluation/leaderboard-service/application"
	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
	domainerrors "ocelot/contexts/evaluation/leaderboard-service/domain/errors"
	"ocelot/contexts/evaluation/leaderboard-service/ports"
)

const defaultSessionTTL = 14 * 24 * time.Hour

type RegisterTeamCommand struct {
	Caller         entities.Identity
	Name           string
	Email          string
	Description    string
	PublicationURL string
}

type RegisterTeamResult struct {
	Team      entities.Team
	SessionID string
}

type RegisterTeamUseCase struct {
	Teams      ports.TeamRepository
	Sessions   ports.SessionStore
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Tokens     ports.TokenGenerator
	SessionTTL time.Duration
	Logger     *slog.Logger
}

// Execute creates the team, issues its token and signs it in.
func (uc RegisterTeamUseCase) Execute(ctx context.Context, cmd RegisterTeamCommand) (RegisterTeamResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if !cmd.Caller.IsAnonymous() {
		return RegisterTeamResult{}, domainerrors.ErrAlreadySignedIn
	}

	teamID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return RegisterTeamResult{}, err
	}
	token, err := uc.Tokens.NewToken(ctx)
	if err != nil {
		return RegisterTeamResult{}, err
	}
	now := uc.Clock.Now().UTC()
	team := entities.Team{
		TeamID:         teamID,
		Name:           strings.TrimSpace(cmd.Name),
		Email:          strings.ToLower(strings.TrimSpace(cmd.Email)),
		Token:          token,
		Description:    strings.TrimSpace(cmd.Description),
		PublicationURL: strings.TrimSpace(cmd.PublicationURL),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if !team.ValidateCreate() {
		return RegisterTeamResult{}, domainerrors.ErrInvalidTeamInput
	}
	if err := uc.Teams.CreateTeam(ctx, team); err != nil {
		logger.Warn("team registration rejected",
			"event", "team_registration_rejected",
			"module", "evaluation/leaderboard-service",
			"layer", "application",
			"team_name", team.Name,
			"error", err.Error(),
		)
		return RegisterTeamResult{}, err
	}

	sessionID, err := openSession(ctx, uc.IDGen, uc.Sessions, team.Token, uc.SessionTTL)
	if err != nil {
		return RegisterTeamResult{}, err
	}

	logger.Info("team registered",
		"event", "team_registered",
		"module", "evaluation/leaderboard-service",
		"layer", "application",
		"team_id", team.TeamID,
		"team_name", team.Name,
	)
	return RegisterTeamResult{Team: team, SessionID: sessionID}, nil
}

func openSession(
	ctx context.Context,
	idGen ports.IDGenerator,
	sessions ports.SessionStore,
	token string,
	ttl time.Duration,
) (string, error) {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	sessionID, err := idGen.NewID(ctx)
	if err != nil {
		return "", err
	}
	if err := sessions.CreateSession(ctx, sessionID, token, ttl); err != nil {
		return "", err
	}
	return sessionID, nil
}
