package tenant

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zenportal/backend/internal/models"
)

type fakeSource struct {
	// memberships maps workspace id to the context returned for it.
	memberships map[uuid.UUID]*Context
	first       *Context
	calls       []string
}

func (f *fakeSource) ContextFor(_ context.Context, _, workspaceID uuid.UUID) (*Context, error) {
	f.calls = append(f.calls, "ContextFor:"+workspaceID.String())
	return f.memberships[workspaceID], nil
}

func (f *fakeSource) FirstContext(_ context.Context, _ uuid.UUID) (*Context, error) {
	f.calls = append(f.calls, "FirstContext")
	return f.first, nil
}

func ctxFor(id uuid.UUID) *Context {
	return &Context{
		Workspace:  &models.Workspace{ID: id},
		Membership: &models.Membership{WorkspaceID: id, Role: models.RoleMember},
	}
}

func TestResolveHeaderHintWins(t *testing.T) {
	hinted := uuid.New()
	defaulted := uuid.New()
	src := &fakeSource{memberships: map[uuid.UUID]*Context{
		hinted:    ctxFor(hinted),
		defaulted: ctxFor(defaulted),
	}}
	user := &models.User{ID: uuid.New(), DefaultWorkspaceID: &defaulted}

	tc, err := NewResolver(src).Resolve(context.Background(), user, hinted.String())
	require.NoError(t, err)
	require.NotNil(t, tc)
	assert.Equal(t, hinted, tc.Workspace.ID)
}

func TestResolveHintNonMemberFallsThrough(t *testing.T) {
	// The hint names a workspace the user does not belong to; the resolver
	// moves on to the default instead of failing.
	stranger := uuid.New()
	defaulted := uuid.New()
	src := &fakeSource{memberships: map[uuid.UUID]*Context{
		defaulted: ctxFor(defaulted),
	}}
	user := &models.User{ID: uuid.New(), DefaultWorkspaceID: &defaulted}

	tc, err := NewResolver(src).Resolve(context.Background(), user, stranger.String())
	require.NoError(t, err)
	require.NotNil(t, tc)
	assert.Equal(t, defaulted, tc.Workspace.ID)
}

func TestResolveMalformedHintIgnored(t *testing.T) {
	first := uuid.New()
	src := &fakeSource{first: ctxFor(first)}
	user := &models.User{ID: uuid.New()}

	tc, err := NewResolver(src).Resolve(context.Background(), user, "not-a-uuid")
	require.NoError(t, err)
	require.NotNil(t, tc)
	assert.Equal(t, first, tc.Workspace.ID)
	// A malformed hint never reaches the store.
	assert.Equal(t, []string{"FirstContext"}, src.calls)
}

func TestResolveUserDefault(t *testing.T) {
	defaulted := uuid.New()
	src := &fakeSource{memberships: map[uuid.UUID]*Context{
		defaulted: ctxFor(defaulted),
	}}
	user := &models.User{ID: uuid.New(), DefaultWorkspaceID: &defaulted}

	tc, err := NewResolver(src).Resolve(context.Background(), user, "")
	require.NoError(t, err)
	require.NotNil(t, tc)
	assert.Equal(t, defaulted, tc.Workspace.ID)
}

func TestResolveStaleDefaultFallsToFirst(t *testing.T) {
	// The default points at a workspace the user has since left.
	stale := uuid.New()
	first := uuid.New()
	src := &fakeSource{first: ctxFor(first)}
	user := &models.User{ID: uuid.New(), DefaultWorkspaceID: &stale}

	tc, err := NewResolver(src).Resolve(context.Background(), user, "")
	require.NoError(t, err)
	require.NotNil(t, tc)
	assert.Equal(t, first, tc.Workspace.ID)
}

func TestResolveNoMemberships(t *testing.T) {
	src := &fakeSource{}
	user := &models.User{ID: uuid.New()}

	tc, err := NewResolver(src).Resolve(context.Background(), user, "")
	require.NoError(t, err)
	assert.Nil(t, tc)
}
