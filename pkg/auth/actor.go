package auth

import (
	"strings"

	"github.com/alo17/ilan-backend/pkg/enums"
)

// Actor is the caller identity every lifecycle operation receives. The zero value is
// an anonymous caller.
type Actor struct {
	ID   string
	Role enums.UserRole
}

// Anonymous returns the unauthenticated actor.
func Anonymous() Actor {
	return Actor{}
}

// NewActor resolves claims into an Actor. A caller whose email matches the house
// account is promoted to admin.
func NewActor(userID, email string, role enums.UserRole, houseAccountEmail string) Actor {
	actor := Actor{ID: strings.TrimSpace(userID), Role: role}
	if actor.ID == "" {
		return Anonymous()
	}
	if !actor.Role.IsValid() {
		actor.Role = enums.UserRoleUser
	}
	house := strings.TrimSpace(houseAccountEmail)
	if house != "" && strings.EqualFold(strings.TrimSpace(email), house) {
		actor.Role = enums.UserRoleAdmin
	}
	return actor
}

func (a Actor) IsAuthenticated() bool {
	return a.ID != ""
}

func (a Actor) IsAdmin() bool {
	return a.IsAuthenticated() && a.Role == enums.UserRoleAdmin
}

// CanModerate reports whether the actor may approve or reject listings.
func (a Actor) CanModerate() bool {
	return a.IsAuthenticated() && (a.Role == enums.UserRoleAdmin || a.Role == enums.UserRoleModerator)
}

// Owns reports whether the actor is the given owner.
func (a Actor) Owns(ownerID string) bool {
	return a.IsAuthenticated() && a.ID == ownerID
}
