package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/YodHeVauHe/CallCenterX/internal/backend"
)

// ProfileResolver maps a subject to its display-ready profile row, creating
// the row on first sight.
type ProfileResolver struct {
	data   backend.DataClient
	logger zerolog.Logger
}

// NewProfileResolver builds a resolver over the given data client.
func NewProfileResolver(data backend.DataClient, logger zerolog.Logger) *ProfileResolver {
	return &ProfileResolver{data: data, logger: logger.With().Str("component", "profile_resolver").Logger()}
}

// Resolve returns the subject's profile row, bootstrapping one from the
// session's identity hints when no row exists yet. Any failure other than
// not-found is surfaced to the caller; fallback policy belongs to the
// orchestrator, not here.
func (r *ProfileResolver) Resolve(ctx context.Context, sess *backend.Session) (*backend.ProfileRow, error) {
	row, err := r.data.QueryProfileByID(ctx, sess.Subject)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, backend.ErrNotFound) {
		return nil, fmt.Errorf("query profile %s: %w", sess.Subject, err)
	}

	// First successful authentication for this subject: create the row from
	// whatever the auth backend knows. The upsert absorbs the two-tabs race
	// where both observe not-found and both write.
	first, _ := sess.UserMetadata["first_name"].(string)
	last, _ := sess.UserMetadata["last_name"].(string)
	bootstrap := backend.ProfileRow{
		ID:        sess.Subject,
		Email:     sess.Email,
		FirstName: first,
		LastName:  last,
	}
	r.logger.Info().Str("subject", sess.Subject).Msg("profile row missing, bootstrapping")

	created, err := r.data.UpsertProfile(ctx, bootstrap)
	if err != nil {
		return nil, fmt.Errorf("bootstrap profile %s: %w", sess.Subject, err)
	}
	return created, nil
}
