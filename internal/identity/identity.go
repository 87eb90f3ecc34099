// Package identity assembles the application's user-identity value from the
// backend's session, profile, and membership data.
//
// UserIdentity is the single canonical identity shape consumed by the route
// guard and the UI layer. It is always constructed through Assemble (or the
// orchestrator's fallback path), never as ad hoc literals, and is replaced
// atomically on each resolution cycle rather than mutated field by field.
package identity

import (
	"strings"
	"time"

	"github.com/YodHeVauHe/CallCenterX/internal/backend"
)

// PlaceholderName is used when a profile carries neither a name nor an email.
const PlaceholderName = "Unknown User"

// Organization is a tenant the subject belongs to.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserIdentity is the assembled, display-ready identity.
//
// Invariants: Name is never empty, and Organizations is never nil — a subject
// with no memberships (or a failed membership read) carries an empty slice.
type UserIdentity struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	Avatar        string         `json:"avatar,omitempty"`
	Organizations []Organization `json:"organizations"`
}

// HasOrganization reports whether the subject belongs to at least one
// organization.
func (u *UserIdentity) HasOrganization() bool {
	return u != nil && len(u.Organizations) > 0
}

// Assemble combines a session, its resolved profile, and the subject's
// organizations into a UserIdentity. Pure; the caller guarantees profile is
// non-nil.
func Assemble(sess *backend.Session, profile *backend.ProfileRow, orgs []Organization) UserIdentity {
	if orgs == nil {
		orgs = []Organization{}
	}
	id := UserIdentity{
		ID:            profile.ID,
		Name:          DisplayName(profile.FirstName, profile.LastName, profile.Email),
		Email:         profile.Email,
		Organizations: orgs,
	}
	if sess != nil {
		if id.Email == "" {
			id.Email = sess.Email
		}
		if avatar, ok := sess.UserMetadata["avatar_url"].(string); ok {
			id.Avatar = avatar
		}
	}
	return id
}

// Fallback builds a minimal identity from session-level hints alone. Applied
// when profile resolution fails transiently, so the subject still reaches the
// app in a degraded state instead of a permanent loading screen.
func Fallback(sess *backend.Session) UserIdentity {
	first, _ := sess.UserMetadata["first_name"].(string)
	last, _ := sess.UserMetadata["last_name"].(string)
	id := UserIdentity{
		ID:            sess.Subject,
		Name:          DisplayName(first, last, sess.Email),
		Email:         sess.Email,
		Organizations: []Organization{},
	}
	if avatar, ok := sess.UserMetadata["avatar_url"].(string); ok {
		id.Avatar = avatar
	}
	return id
}

// DisplayName normalizes a first/last name pair, falling back to the email
// and then to a fixed placeholder.
func DisplayName(firstName, lastName, email string) string {
	name := strings.TrimSpace(strings.TrimSpace(firstName) + " " + strings.TrimSpace(lastName))
	if name != "" {
		return name
	}
	if email != "" {
		return email
	}
	return PlaceholderName
}
