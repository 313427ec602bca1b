package tier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zenportal/backend/internal/models"
)

// Free-plan quotas. The monthly log limit counts every member of the
// workspace, not just the caller.
const (
	FreeActiveClientLimit = 1
	FreeMonthlyLogLimit   = 100
)

type Operation string

const (
	OpCreateClient Operation = "clients:create"
	OpCreateLog    Operation = "logs:create"
	OpExport       Operation = "stats:export"
	OpIssueAPIKeys Operation = "apikeys:issue"
)

const (
	CodeLimitReached = "LIMIT_REACHED"
	CodeProRequired  = "PRO_REQUIRED"
)

// DeniedError carries a machine-readable code so clients can tell a quota
// denial from a plain forbidden.
type DeniedError struct {
	Code    string
	Message string
}

func (e *DeniedError) Error() string { return e.Message }

func IsDenied(err error) (*DeniedError, bool) {
	var de *DeniedError
	ok := errors.As(err, &de)
	return de, ok
}

func limitExceeded(msg string) error {
	return &DeniedError{Code: CodeLimitReached, Message: msg}
}

func proRequired(msg string) error {
	return &DeniedError{Code: CodeProRequired, Message: msg}
}

// UsageSource supplies the counters the gate compares against quotas.
// *UsageStore implements it; tests use fakes.
type UsageSource interface {
	CountActiveClients(ctx context.Context, workspaceID uuid.UUID) (int, error)
	CountMonthlyLogs(ctx context.Context, workspaceID uuid.UUID, monthPrefix string) (int, error)
}

// Gate decides whether an operation is permitted under a workspace's
// subscription tier. It only ever reads the tier; mutations happen solely
// through payment webhooks.
type Gate struct {
	usage UsageSource
	now   func() time.Time
}

func NewGate(usage UsageSource) *Gate {
	return &Gate{usage: usage, now: time.Now}
}

func (g *Gate) Allow(ctx context.Context, ws *models.Workspace, op Operation) error {
	if ws.IsPro() {
		return nil
	}

	switch op {
	case OpCreateClient:
		n, err := g.usage.CountActiveClients(ctx, ws.ID)
		if err != nil {
			return fmt.Errorf("count active clients: %w", err)
		}
		if n >= FreeActiveClientLimit {
			return limitExceeded(fmt.Sprintf(
				"free plan allows %d active client; archive existing clients or upgrade to Pro", FreeActiveClientLimit))
		}
	case OpCreateLog:
		n, err := g.usage.CountMonthlyLogs(ctx, ws.ID, MonthPrefix(g.now()))
		if err != nil {
			return fmt.Errorf("count monthly logs: %w", err)
		}
		if n >= FreeMonthlyLogLimit {
			return limitExceeded(fmt.Sprintf(
				"monthly workspace limit reached (%d logs); upgrade to Pro", FreeMonthlyLogLimit))
		}
	case OpExport:
		return proRequired("export is a Pro feature")
	case OpIssueAPIKeys:
		return proRequired("API access is a Pro feature")
	}
	return nil
}

// FilterProofLinks strips video and attachment links for free workspaces
// instead of rejecting the request.
func (g *Gate) FilterProofLinks(ws *models.Workspace, video, attachment *string) (*string, *string) {
	if ws.IsPro() {
		return video, attachment
	}
	return nil, nil
}

// MonthPrefix formats the calendar-month key (YYYY-MM) used for prefix
// matching against stored log dates. Calendar boundaries, not a rolling
// 30-day window: logs on the 1st reset the counter.
func MonthPrefix(t time.Time) string {
	return t.UTC().Format("2006-01")
}
