package identity

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/YodHeVauHe/CallCenterX/internal/audit"
	"github.com/YodHeVauHe/CallCenterX/internal/backend"
	"github.com/YodHeVauHe/CallCenterX/internal/metrics"
)

// MembershipResolver maps a subject to the organizations it belongs to.
type MembershipResolver struct {
	data   backend.DataClient
	audit  audit.Emitter
	logger zerolog.Logger
}

// NewMembershipResolver builds a resolver over the given data client.
// emitter may be nil, in which case degradations are not audited.
func NewMembershipResolver(data backend.DataClient, emitter audit.Emitter, logger zerolog.Logger) *MembershipResolver {
	if emitter == nil {
		emitter = audit.NewNoopEmitter()
	}
	return &MembershipResolver{
		data:   data,
		audit:  emitter,
		logger: logger.With().Str("component", "membership_resolver").Logger(),
	}
}

// Resolve returns the subject's organizations. Membership failure never
// blocks sign-in: on any query error the resolver logs a warning and returns
// an empty slice, because the subject's base identity is still valid without
// organizations. The returned slice is never nil.
func (r *MembershipResolver) Resolve(ctx context.Context, subjectID string) []Organization {
	rows, err := r.data.QueryMembershipsWithOrganizations(ctx, subjectID)
	if err != nil {
		r.logger.Warn().Err(err).Str("subject", subjectID).Msg("membership query failed, degrading to no organizations")
		metrics.RecordMembershipDegraded()
		_ = r.audit.Emit(ctx, audit.NewEvent(audit.ActionMembershipDegraded, subjectID))
		return []Organization{}
	}

	orgs := make([]Organization, 0, len(rows))
	for _, row := range rows {
		if row.Organization == nil {
			// Dangling foreign key; skip the row rather than crash.
			r.logger.Warn().Str("subject", subjectID).Str("organization_id", row.OrganizationID).
				Msg("membership row references missing organization")
			continue
		}
		orgs = append(orgs, Organization{
			ID:        row.Organization.ID,
			Name:      row.Organization.Name,
			Slug:      row.Organization.Slug,
			CreatedAt: row.Organization.CreatedAt,
			UpdatedAt: row.Organization.UpdatedAt,
		})
	}
	return orgs
}
