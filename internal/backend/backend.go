// Package backend defines the capability surface of the hosted auth and data
// backend consumed by the identity core, together with its error taxonomy and
// an HTTP implementation.
//
// Purpose:
//
//	The application never talks to the managed backend's SDK directly; every
//	call it needs (sign-in, sign-up, sign-out, token refresh, profile reads
//	and upserts, membership reads) is expressed through the AuthClient and
//	DataClient interfaces in this package. The HTTP client implements both
//	against the backend's conventional REST surface (/auth/v1 for identity,
//	/rest/v1 for table access).
//
// Key Responsibilities:
//   - Session, ProfileRow, and MembershipJoinRow wire types
//   - AuthClient and DataClient interfaces consumed by resolvers and stores
//   - Error taxonomy: AuthError, ErrNotFound, TransientError, ErrMissingConfig
//   - HTTPClient implementation with uniform error mapping
//
// Error Handling:
//   - 4xx responses from auth endpoints map to *AuthError
//   - Empty row sets from table reads map to ErrNotFound
//   - Transport failures, timeouts, and 5xx responses map to *TransientError
package backend

import (
	"context"
	"time"
)

// Session is the opaque credential bundle issued by the auth backend. It is
// replaced wholesale on every auth event and never mutated in place.
type Session struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	TokenType    string         `json:"token_type"`
	ExpiresAt    time.Time      `json:"expires_at"`
	Subject      string         `json:"subject"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// Expired reports whether the access token is past its expiry. Sessions with
// no recorded expiry are treated as live.
func (s *Session) Expired(now time.Time) bool {
	return s != nil && !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// ProfileRow is one row of the profiles table: the application-level record
// describing an authenticated subject.
type ProfileRow struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// OrganizationRow is one row of the organizations table.
type OrganizationRow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MembershipJoinRow is a user_organizations row joined with its organization.
// Organization is nil when the foreign key dangles; consumers must tolerate
// that rather than fail the whole read.
type MembershipJoinRow struct {
	OrganizationID string           `json:"organization_id"`
	Organization   *OrganizationRow `json:"organizations"`
}

// ProfileHints carries the identity metadata supplied at sign-up time. The
// backend stores it alongside the credentials and echoes it back in the
// session's user metadata, where the profile bootstrap path picks it up.
type ProfileHints struct {
	FirstName string
	LastName  string
	Role      string
}

// SignUpResult is the outcome of a sign-up call. Session is nil when the
// backend requires email confirmation before issuing credentials; that is a
// normal outcome, not an error.
type SignUpResult struct {
	Session *Session
	Subject string
	Email   string
}

// AuthClient is the identity half of the backend surface.
type AuthClient interface {
	// SignIn exchanges credentials for a session. Invalid credentials and
	// other user-attributable rejections surface as *AuthError.
	SignIn(ctx context.Context, email, password string) (*Session, error)
	// SignUp registers a new subject. See SignUpResult for the
	// confirmation-pending case.
	SignUp(ctx context.Context, email, password string, hints ProfileHints) (*SignUpResult, error)
	// SignOut revokes the session behind the given access token.
	SignOut(ctx context.Context, accessToken string) error
	// Refresh exchanges a refresh token for a fresh session.
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
}

// DataClient is the table-access half of the backend surface.
type DataClient interface {
	// QueryProfileByID returns the profile row for the subject, or
	// ErrNotFound when no row exists.
	QueryProfileByID(ctx context.Context, id string) (*ProfileRow, error)
	// UpsertProfile inserts the row, merging on conflict with an existing
	// row for the same id. Two concurrent writers for one subject both
	// succeed and observe a single row.
	UpsertProfile(ctx context.Context, row ProfileRow) (*ProfileRow, error)
	// QueryMembershipsWithOrganizations returns the subject's membership
	// rows with their organizations embedded.
	QueryMembershipsWithOrganizations(ctx context.Context, subjectID string) ([]MembershipJoinRow, error)
}

// Client is the full backend capability surface.
type Client interface {
	AuthClient
	DataClient
}
