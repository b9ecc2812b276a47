package postgresadapter

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// UUIDGenerator creates UUIDv4 identifiers for teams, submissions, sessions
// and events, and hex team tokens.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (UUIDGenerator) NewToken(_ context.Context) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}
