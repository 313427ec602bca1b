package tier

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zenportal/backend/internal/models"
)

type fakeUsage struct {
	activeClients int
	monthlyLogs   int
	gotPrefix     string
}

func (f *fakeUsage) CountActiveClients(_ context.Context, _ uuid.UUID) (int, error) {
	return f.activeClients, nil
}

func (f *fakeUsage) CountMonthlyLogs(_ context.Context, _ uuid.UUID, prefix string) (int, error) {
	f.gotPrefix = prefix
	return f.monthlyLogs, nil
}

func freeWorkspace() *models.Workspace {
	return &models.Workspace{ID: uuid.New(), Tier: models.TierFree}
}

func proWorkspace() *models.Workspace {
	return &models.Workspace{ID: uuid.New(), Tier: models.TierPro}
}

func TestAllowProBypassesAllChecks(t *testing.T) {
	g := NewGate(&fakeUsage{activeClients: 50, monthlyLogs: 5000})
	ws := proWorkspace()

	for _, op := range []Operation{OpCreateClient, OpCreateLog, OpExport, OpIssueAPIKeys} {
		assert.NoError(t, g.Allow(context.Background(), ws, op), string(op))
	}
}

func TestAllowFreeClientLimit(t *testing.T) {
	g := NewGate(&fakeUsage{activeClients: 0})
	require.NoError(t, g.Allow(context.Background(), freeWorkspace(), OpCreateClient))

	g = NewGate(&fakeUsage{activeClients: 1})
	err := g.Allow(context.Background(), freeWorkspace(), OpCreateClient)
	require.Error(t, err)

	de, ok := IsDenied(err)
	require.True(t, ok)
	assert.Equal(t, CodeLimitReached, de.Code)
}

func TestAllowFreeMonthlyLogLimit(t *testing.T) {
	usage := &fakeUsage{monthlyLogs: 99}
	g := NewGate(usage)
	g.now = func() time.Time { return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC) }

	require.NoError(t, g.Allow(context.Background(), freeWorkspace(), OpCreateLog))
	assert.Equal(t, "2026-03", usage.gotPrefix)

	usage.monthlyLogs = 100
	err := g.Allow(context.Background(), freeWorkspace(), OpCreateLog)
	require.Error(t, err)

	de, ok := IsDenied(err)
	require.True(t, ok)
	assert.Equal(t, CodeLimitReached, de.Code)
}

func TestAllowFreeProOnlyOperations(t *testing.T) {
	g := NewGate(&fakeUsage{})

	for _, op := range []Operation{OpExport, OpIssueAPIKeys} {
		err := g.Allow(context.Background(), freeWorkspace(), op)
		require.Error(t, err, string(op))

		de, ok := IsDenied(err)
		require.True(t, ok)
		assert.Equal(t, CodeProRequired, de.Code)
	}
}

func TestFilterProofLinks(t *testing.T) {
	g := NewGate(&fakeUsage{})
	video := "https://loom.com/v/abc"
	attachment := "https://files.example.com/doc.pdf"

	v, a := g.FilterProofLinks(freeWorkspace(), &video, &attachment)
	assert.Nil(t, v)
	assert.Nil(t, a)

	v, a = g.FilterProofLinks(proWorkspace(), &video, &attachment)
	require.NotNil(t, v)
	require.NotNil(t, a)
	assert.Equal(t, video, *v)
	assert.Equal(t, attachment, *a)
}

func TestMonthPrefixUsesCalendarBoundaries(t *testing.T) {
	assert.Equal(t, "2026-01", MonthPrefix(time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)))
	assert.Equal(t, "2026-02", MonthPrefix(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)))
}
