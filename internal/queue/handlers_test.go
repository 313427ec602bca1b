package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExpirer struct {
	ids []uuid.UUID
	err error
}

func (f *fakeExpirer) ExpireLapsed(context.Context) ([]uuid.UUID, error) {
	return f.ids, f.err
}

type fakeEnqueuer struct {
	recaps []uuid.UUID
	emails map[uuid.UUID]string
}

func newFakeEnqueuer() *fakeEnqueuer {
	return &fakeEnqueuer{emails: map[uuid.UUID]string{}}
}

func (f *fakeEnqueuer) EnqueueWeeklyRecap(_ context.Context, workspaceID uuid.UUID) error {
	f.recaps = append(f.recaps, workspaceID)
	return nil
}

func (f *fakeEnqueuer) EnqueueSubscriptionEmail(_ context.Context, workspaceID uuid.UUID, kind string) error {
	f.emails[workspaceID] = kind
	return nil
}

func TestExpireSubscriptionsNotifiesEachDowngrade(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	q := newFakeEnqueuer()
	h := NewHandlers(nil, nil, &fakeExpirer{ids: []uuid.UUID{a, b}}, q, "")

	require.NoError(t, h.HandleExpireSubscriptions(context.Background(), nil))

	assert.Len(t, q.emails, 2)
	assert.Equal(t, SubscriptionExpired, q.emails[a])
	assert.Equal(t, SubscriptionExpired, q.emails[b])
}

func TestExpireSubscriptionsNoLapsedWorkspaces(t *testing.T) {
	q := newFakeEnqueuer()
	h := NewHandlers(nil, nil, &fakeExpirer{}, q, "")

	require.NoError(t, h.HandleExpireSubscriptions(context.Background(), nil))
	assert.Empty(t, q.emails)
}

func TestExpireSubscriptionsPropagatesError(t *testing.T) {
	q := newFakeEnqueuer()
	h := NewHandlers(nil, nil, &fakeExpirer{err: errors.New("db down")}, q, "")

	err := h.HandleExpireSubscriptions(context.Background(), nil)
	require.Error(t, err)
	assert.Empty(t, q.emails)
}
