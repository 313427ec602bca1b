package tier

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zenportal/backend/internal/models"
)

// UsageStore reads the counters the gate needs. Counting happens at
// request time without any lock: a concurrent burst near the monthly limit
// can land slightly past it, which is accepted.
type UsageStore struct {
	db *pgxpool.Pool
}

func NewUsageStore(db *pgxpool.Pool) *UsageStore {
	return &UsageStore{db: db}
}

func (s *UsageStore) CountActiveClients(ctx context.Context, workspaceID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM clients WHERE workspace_id = $1 AND status = $2`,
		workspaceID, models.ClientActive).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active clients: %w", err)
	}
	return n, nil
}

func (s *UsageStore) CountMonthlyLogs(ctx context.Context, workspaceID uuid.UUID, monthPrefix string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM work_logs l
		 JOIN clients c ON c.id = l.client_id
		 WHERE c.workspace_id = $1 AND l.date LIKE $2 || '%'`,
		workspaceID, monthPrefix).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count monthly logs: %w", err)
	}
	return n, nil
}
