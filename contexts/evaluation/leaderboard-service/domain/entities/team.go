package entities

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxTeamNameLength       = 200
	MaxDescriptionLength    = 2000
	MaxPublicationURLLength = 200
)

// Team is a registered participant. Token is the only credential and never
// changes after registration.
type Team struct {
	TeamID         string
	Name           string
	Email          string
	Token          string
	Description    string
	PublicationURL string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (t Team) ValidateCreate() bool {
	name := strings.TrimSpace(t.Name)
	email := strings.TrimSpace(t.Email)
	return strings.TrimSpace(t.TeamID) != "" &&
		name != "" &&
		utf8.RuneCountInString(name) <= MaxTeamNameLength &&
		email != "" &&
		strings.Contains(email, "@") &&
		strings.TrimSpace(t.Token) != "" &&
		t.ValidateProfile()
}

func (t Team) ValidateProfile() bool {
	return utf8.RuneCountInString(t.Description) <= MaxDescriptionLength &&
		utf8.RuneCountInString(t.PublicationURL) <= MaxPublicationURLLength
}
