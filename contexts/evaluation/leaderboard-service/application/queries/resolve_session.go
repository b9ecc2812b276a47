package queries

import (
	"context"
	"log/slog"
	"strings"

	application "ocelot/contexts/evaluation/leaderboard-service/application"
	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
	domainerrors "ocelot/contexts/evaluation/leaderboard-service/domain/errors"
	"ocelot/contexts/evaluation/leaderboard-service/ports"
)

// SessionResolver turns request credentials into an Identity. Unknown
// credentials resolve to Anonymous; only storage failures are errors.
type SessionResolver struct {
	Teams    ports.TeamRepository
	Sessions ports.SessionStore
	Logger   *slog.Logger
}

func (r SessionResolver) ResolveToken(ctx context.Context, token string) (entities.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return entities.Anonymous(), nil
	}
	team, found, err := r.Teams.GetTeamByToken(ctx, token)
	if err != nil {
		application.ResolveLogger(r.Logger).Error("team lookup by token failed",
			"event", "session_resolve_failed",
			"module", "evaluation/leaderboard-service",
			"layer", "application",
			"error", err.Error(),
		)
		return entities.Anonymous(), err
	}
	if !found {
		return entities.Anonymous(), nil
	}
	return entities.IdentityOf(team), nil
}

// ResolveSession follows a browser session id to its team token.
func (r SessionResolver) ResolveSession(ctx context.Context, sessionID string) (entities.Identity, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return entities.Anonymous(), nil
	}
	token, found, err := r.Sessions.GetSessionToken(ctx, sessionID)
	if err != nil {
		return entities.Anonymous(), err
	}
	if !found {
		return entities.Anonymous(), nil
	}
	return r.ResolveToken(ctx, token)
}

// CurrentTeamQuery loads the full team record behind a resolved identity.
type CurrentTeamQuery struct {
	Teams ports.TeamRepository
}

func (q CurrentTeamQuery) Execute(ctx context.Context, identity entities.Identity) (entities.Team, error) {
	if identity.IsAnonymous() {
		return entities.Team{}, domainerrors.ErrAuthenticationRequired
	}
	return q.Teams.GetTeam(ctx, identity.TeamID)
}
