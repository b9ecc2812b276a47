package entities

import "strings"

// Identity is the resolved caller of a request. The zero value is Anonymous.
type Identity struct {
	TeamID string
	Name   string
	Email  string
	Token  string
}

func Anonymous() Identity {
	return Identity{}
}

func IdentityOf(team Team) Identity {
	return Identity{
		TeamID: team.TeamID,
		Name:   team.Name,
		Email:  team.Email,
		Token:  team.Token,
	}
}

func (i Identity) IsAnonymous() bool {
	return strings.TrimSpace(i.TeamID) == ""
}

// Owns reports whether the identity is the team holding token.
func (i Identity) Owns(token string) bool {
	return !i.IsAnonymous() && token != "" && i.Token == token
}
