package identity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YodHeVauHe/CallCenterX/internal/audit"
	"github.com/YodHeVauHe/CallCenterX/internal/backend"
)

// fakeData is an in-memory DataClient with injectable failures.
type fakeData struct {
	mu            sync.Mutex
	profiles      map[string]backend.ProfileRow
	memberships   map[string][]backend.MembershipJoinRow
	profileErr    error
	upsertErr     error
	membershipErr error
	upsertCalls   int
}

func newFakeData() *fakeData {
	return &fakeData{
		profiles:    map[string]backend.ProfileRow{},
		memberships: map[string][]backend.MembershipJoinRow{},
	}
}

func (f *fakeData) QueryProfileByID(ctx context.Context, id string) (*backend.ProfileRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	row, ok := f.profiles[id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return &row, nil
}

func (f *fakeData) UpsertProfile(ctx context.Context, row backend.ProfileRow) (*backend.ProfileRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	// Merge semantics: a concurrent writer's row wins once, later writers
	// converge on the stored row.
	if existing, ok := f.profiles[row.ID]; ok {
		return &existing, nil
	}
	f.profiles[row.ID] = row
	return &row, nil
}

func (f *fakeData) QueryMembershipsWithOrganizations(ctx context.Context, subjectID string) ([]backend.MembershipJoinRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.membershipErr != nil {
		return nil, f.membershipErr
	}
	return f.memberships[subjectID], nil
}

func testSession(subject, email string) *backend.Session {
	return &backend.Session{
		AccessToken: "token-" + subject,
		Subject:     subject,
		Email:       email,
	}
}

func TestProfileResolver_ExistingRow(t *testing.T) {
	data := newFakeData()
	data.profiles["u1"] = backend.ProfileRow{ID: "u1", Email: "a@b.com", FirstName: "Jane", LastName: "Doe"}
	resolver := NewProfileResolver(data, zerolog.Nop())

	row, err := resolver.Resolve(context.Background(), testSession("u1", "a@b.com"))
	require.NoError(t, err)
	assert.Equal(t, "Jane", row.FirstName)
	assert.Zero(t, data.upsertCalls)
}

func TestProfileResolver_BootstrapsMissingRow(t *testing.T) {
	data := newFakeData()
	resolver := NewProfileResolver(data, zerolog.Nop())

	sess := testSession("u1", "a@b.com")
	sess.UserMetadata = map[string]any{"first_name": "Jane", "last_name": "Doe"}

	row, err := resolver.Resolve(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "u1", row.ID)
	assert.Equal(t, "a@b.com", row.Email)
	assert.Equal(t, "Jane", row.FirstName)
	assert.Equal(t, 1, data.upsertCalls)
}

func TestProfileResolver_ConcurrentBootstrapConverges(t *testing.T) {
	data := newFakeData()
	resolver := NewProfileResolver(data, zerolog.Nop())
	sess := testSession("u1", "a@b.com")

	var wg sync.WaitGroup
	rows := make([]*backend.ProfileRow, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			row, err := resolver.Resolve(context.Background(), sess)
			require.NoError(t, err)
			rows[i] = row
		}(i)
	}
	wg.Wait()

	// Both writers succeed and observe the same row.
	assert.Equal(t, rows[0].ID, rows[1].ID)
	assert.Equal(t, rows[0].Email, rows[1].Email)
	stored, err := data.QueryProfileByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", stored.ID)
}

func TestProfileResolver_SurfacesQueryFailure(t *testing.T) {
	data := newFakeData()
	data.profileErr = &backend.TransientError{Op: "profile fetch", Err: errors.New("boom")}
	resolver := NewProfileResolver(data, zerolog.Nop())

	_, err := resolver.Resolve(context.Background(), testSession("u1", "a@b.com"))
	require.Error(t, err)
	assert.True(t, backend.IsTransient(err))
	assert.Zero(t, data.upsertCalls, "resolver must not invent data on non-not-found failures")
}

func TestProfileResolver_SurfacesUpsertFailure(t *testing.T) {
	data := newFakeData()
	data.upsertErr = errors.New("permission denied")
	resolver := NewProfileResolver(data, zerolog.Nop())

	_, err := resolver.Resolve(context.Background(), testSession("u1", "a@b.com"))
	require.Error(t, err)
}

func TestProfileResolver_Idempotent(t *testing.T) {
	data := newFakeData()
	data.profiles["u1"] = backend.ProfileRow{ID: "u1", Email: "a@b.com", FirstName: "Jane"}
	resolver := NewProfileResolver(data, zerolog.Nop())
	sess := testSession("u1", "a@b.com")

	first, err := resolver.Resolve(context.Background(), sess)
	require.NoError(t, err)
	second, err := resolver.Resolve(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMembershipResolver_MapsJoinedRows(t *testing.T) {
	data := newFakeData()
	data.memberships["u1"] = []backend.MembershipJoinRow{
		{OrganizationID: "o1", Organization: &backend.OrganizationRow{ID: "o1", Name: "Acme", Slug: "acme"}},
		{OrganizationID: "o2", Organization: &backend.OrganizationRow{ID: "o2", Name: "Globex", Slug: "globex"}},
	}
	resolver := NewMembershipResolver(data, nil, zerolog.Nop())

	orgs := resolver.Resolve(context.Background(), "u1")
	require.Len(t, orgs, 2)
	assert.Equal(t, "acme", orgs[0].Slug)
	assert.Equal(t, "globex", orgs[1].Slug)
}

func TestMembershipResolver_DropsDanglingRows(t *testing.T) {
	data := newFakeData()
	data.memberships["u1"] = []backend.MembershipJoinRow{
		{OrganizationID: "o1", Organization: &backend.OrganizationRow{ID: "o1", Name: "Acme", Slug: "acme"}},
		{OrganizationID: "o-gone", Organization: nil},
	}
	resolver := NewMembershipResolver(data, nil, zerolog.Nop())

	orgs := resolver.Resolve(context.Background(), "u1")
	require.Len(t, orgs, 1)
	assert.Equal(t, "o1", orgs[0].ID)
}

func TestMembershipResolver_DegradesToEmptyOnFailure(t *testing.T) {
	data := newFakeData()
	data.membershipErr = errors.New("connection reset")
	resolver := NewMembershipResolver(data, nil, zerolog.Nop())

	orgs := resolver.Resolve(context.Background(), "u1")
	require.NotNil(t, orgs)
	assert.Empty(t, orgs)
}

// captureEmitter records emitted audit events.
type captureEmitter struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureEmitter) Emit(ctx context.Context, event audit.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func TestMembershipResolver_DegradationEmitsAuditEvent(t *testing.T) {
	data := newFakeData()
	data.membershipErr = errors.New("connection reset")
	emitter := &captureEmitter{}
	resolver := NewMembershipResolver(data, emitter, zerolog.Nop())

	orgs := resolver.Resolve(context.Background(), "u1")
	assert.Empty(t, orgs)

	require.Len(t, emitter.events, 1)
	assert.Equal(t, audit.ActionMembershipDegraded, emitter.events[0].Action)
	assert.Equal(t, "u1", emitter.events[0].SubjectID)
}

func TestMembershipResolver_SuccessEmitsNoAuditEvent(t *testing.T) {
	data := newFakeData()
	data.memberships["u1"] = []backend.MembershipJoinRow{
		{OrganizationID: "o1", Organization: &backend.OrganizationRow{ID: "o1", Name: "Acme", Slug: "acme"}},
	}
	emitter := &captureEmitter{}
	resolver := NewMembershipResolver(data, emitter, zerolog.Nop())

	orgs := resolver.Resolve(context.Background(), "u1")
	require.Len(t, orgs, 1)
	assert.Empty(t, emitter.events)
}

func TestMembershipResolver_NoMembershipsIsEmptyNotNil(t *testing.T) {
	data := newFakeData()
	resolver := NewMembershipResolver(data, nil, zerolog.Nop())

	orgs := resolver.Resolve(context.Background(), "u1")
	require.NotNil(t, orgs)
	assert.Empty(t, orgs)
}
