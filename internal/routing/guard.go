// Package routing decides where a subject may go based on its assembled
// identity. Pure functions of state; the caller performs the actual
// navigation.
package routing

import "github.com/YodHeVauHe/CallCenterX/internal/identity"

// Route targets.
const (
	LoginRoute     = "/login"
	SetupOrgRoute  = "/setup-organization"
	DashboardRoute = "/dashboard"
)

// Requirement is a route's declared access requirement.
type Requirement int

const (
	// RequireNone allows anonymous access.
	RequireNone Requirement = iota
	// RequireAuthenticated requires a signed-in subject.
	RequireAuthenticated
	// RequireOrganization requires a signed-in subject with at least one
	// organization membership.
	RequireOrganization
)

// Decision is the guard's verdict: either allow, or redirect to Redirect.
type Decision struct {
	Allow    bool
	Redirect string
}

// Decide checks the identity against a route's requirement.
func Decide(id *identity.UserIdentity, req Requirement) Decision {
	switch req {
	case RequireAuthenticated:
		if id == nil {
			return Decision{Redirect: LoginRoute}
		}
	case RequireOrganization:
		if id == nil {
			return Decision{Redirect: LoginRoute}
		}
		if !id.HasOrganization() {
			return Decision{Redirect: SetupOrgRoute}
		}
	}
	return Decision{Allow: true}
}

// Landing returns the route a freshly resolved subject lands on: login when
// nobody is signed in, organization setup when the subject has no
// organization yet, the dashboard otherwise.
func Landing(id *identity.UserIdentity) string {
	switch {
	case id == nil:
		return LoginRoute
	case !id.HasOrganization():
		return SetupOrgRoute
	default:
		return DashboardRoute
	}
}
