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

type SignInCommand struct {
	Caller entities.Identity
	Name   string
	Email  string
	Token  string
}

type SignInResult struct {
	Identity  entities.Identity
	SessionID string
}

type SignInUseCase struct {
	Teams      ports.TeamRepository
	Sessions   ports.SessionStore
	IDGen      ports.IDGenerator
	SessionTTL time.Duration
	Logger     *slog.Logger
}

// Execute signs a team in when name, email and token all match one team.
func (uc SignInUseCase) Execute(ctx context.Context, cmd SignInCommand) (SignInResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if !cmd.Caller.IsAnonymous() {
		return SignInResult{}, domainerrors.ErrAlreadySignedIn
	}

	name := strings.TrimSpace(cmd.Name)
	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	token := strings.TrimSpace(cmd.Token)
	if name == "" || email == "" || token == "" {
		return SignInResult{}, domainerrors.ErrInvalidCredentials
	}

	team, found, err := uc.Teams.FindTeamByCredentials(ctx, name, email, token)
	if err != nil {
		return SignInResult{}, err
	}
	if !found {
		logger.Warn("sign in rejected",
			"event", "team_sign_in_rejected",
			"module", "evaluation/leaderboard-service",
			"layer", "application",
			"team_name", name,
		)
		return SignInResult{}, domainerrors.ErrInvalidCredentials
	}

	sessionID, err := openSession(ctx, uc.IDGen, uc.Sessions, team.Token, uc.SessionTTL)
	if err != nil {
		return SignInResult{}, err
	}
	logger.Info("team signed in",
		"event", "team_signed_in",
		"module", "evaluation/leaderboard-service",
		"layer", "application",
		"team_id", team.TeamID,
	)
	return SignInResult{Identity: entities.IdentityOf(team), SessionID: sessionID}, nil
}

type SignOutUseCase struct {
	Sessions ports.SessionStore
	Logger   *slog.Logger
}

// Execute drops the session. Unknown or empty session ids are a no-op.
func (uc SignOutUseCase) Execute(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	if err := uc.Sessions.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	application.ResolveLogger(uc.Logger).Debug("session closed",
		"event", "team_signed_out",
		"module", "evaluation/leaderboard-service",
		"layer", "application",
	)
	return nil
}
