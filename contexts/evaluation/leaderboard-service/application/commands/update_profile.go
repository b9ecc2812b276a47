package commands

import (
	"context"
	"log/slog"
	"strings"

	application "ocelot/contexts/evaluation/leaderboard-service/application"
	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
	domainerrors "ocelot/contexts/evaluation/leaderboard-service/domain/errors"
	"ocelot/contexts/evaluation/leaderboard-service/ports"
)

type UpdateTeamProfileCommand struct {
	Identity       entities.Identity
	Description    string
	PublicationURL string
}

type UpdateTeamProfileUseCase struct {
	Teams  ports.TeamRepository
	Clock  ports.Clock
	Logger *slog.Logger
}

func (uc UpdateTeamProfileUseCase) Execute(ctx context.Context, cmd UpdateTeamProfileCommand) (entities.Team, error) {
	if cmd.Identity.IsAnonymous() {
		return entities.Team{}, domainerrors.ErrAuthenticationRequired
	}
	profile := entities.Team{
		Description:    strings.TrimSpace(cmd.Description),
		PublicationURL: strings.TrimSpace(cmd.PublicationURL),
	}
	if !profile.ValidateProfile() {
		return entities.Team{}, domainerrors.ErrInvalidTeamInput
	}

	team, err := uc.Teams.UpdateTeamProfile(
		ctx,
		cmd.Identity.TeamID,
		profile.Description,
		profile.PublicationURL,
		uc.Clock.Now().UTC(),
	)
	if err != nil {
		return entities.Team{}, err
	}
	application.ResolveLogger(uc.Logger).Info("team profile updated",
		"event", "team_profile_updated",
		"module", "evaluation/leaderboard-service",
		"layer", "application",
		"team_id", team.TeamID,
	)
	return team, nil
}
