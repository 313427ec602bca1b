package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zenportal/backend/internal/tier"
)

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// Overview is the dashboard headline block. Revenue is derived at read time
// from each client's current hourly rate; historical rate changes reprice
// old logs, which is the intended behavior.
type Overview struct {
	MonthHours     float64 `json:"month_hours"`
	MonthRevenue   float64 `json:"month_revenue"`
	MonthLogs      int     `json:"month_logs"`
	ActiveClients  int     `json:"active_clients"`
	BlockedLogs    int     `json:"blocked_logs"`
	BlockedRevenue float64 `json:"blocked_revenue"`
}

func (s *Service) Overview(ctx context.Context, workspaceID uuid.UUID) (*Overview, error) {
	prefix := tier.MonthPrefix(time.Now())

	var o Overview
	err := s.db.QueryRow(ctx,
		`SELECT
			COALESCE(SUM(l.hours_worked), 0),
			COALESCE(SUM(l.hours_worked * c.hourly_rate), 0),
			COUNT(l.id),
			COUNT(l.id) FILTER (WHERE l.is_blocked),
			COALESCE(SUM(l.hours_worked * c.hourly_rate) FILTER (WHERE l.is_blocked), 0)
		 FROM work_logs l
		 JOIN clients c ON c.id = l.client_id
		 WHERE c.workspace_id = $1 AND l.date LIKE $2 || '%'`,
		workspaceID, prefix,
	).Scan(&o.MonthHours, &o.MonthRevenue, &o.MonthLogs, &o.BlockedLogs, &o.BlockedRevenue)
	if err != nil {
		return nil, fmt.Errorf("overview aggregates: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM clients WHERE workspace_id = $1 AND status = 'active'`,
		workspaceID).Scan(&o.ActiveClients)
	if err != nil {
		return nil, fmt.Errorf("overview client count: %w", err)
	}
	return &o, nil
}

type MonthlyRevenue struct {
	Month   string  `json:"month"` // YYYY-MM
	Hours   float64 `json:"hours"`
	Revenue float64 `json:"revenue"`
}

// RevenueHistory groups by the date column's YYYY-MM prefix, the same key
// the quota counter uses.
func (s *Service) RevenueHistory(ctx context.Context, workspaceID uuid.UUID, months int) ([]MonthlyRevenue, error) {
	if months <= 0 || months > 24 {
		months = 6
	}

	rows, err := s.db.Query(ctx,
		`SELECT substr(l.date, 1, 7) AS month,
		        COALESCE(SUM(l.hours_worked), 0),
		        COALESCE(SUM(l.hours_worked * c.hourly_rate), 0)
		 FROM work_logs l
		 JOIN clients c ON c.id = l.client_id
		 WHERE c.workspace_id = $1
		 GROUP BY month
		 ORDER BY month DESC
		 LIMIT $2`, workspaceID, months)
	if err != nil {
		return nil, fmt.Errorf("revenue history: %w", err)
	}
	defer rows.Close()

	history := []MonthlyRevenue{}
	for rows.Next() {
		var m MonthlyRevenue
		if err := rows.Scan(&m.Month, &m.Hours, &m.Revenue); err != nil {
			return nil, fmt.Errorf("scan revenue row: %w", err)
		}
		history = append(history, m)
	}
	return history, rows.Err()
}

type ClientStanding struct {
	ClientID    uuid.UUID `json:"client_id"`
	CompanyName string    `json:"company_name"`
	Hours       float64   `json:"hours"`
	Revenue     float64   `json:"revenue"`
	LogCount    int       `json:"log_count"`
}

func (s *Service) TopClients(ctx context.Context, workspaceID uuid.UUID, limit int) ([]ClientStanding, error) {
	if limit <= 0 || limit > 50 {
		limit = 5
	}

	rows, err := s.db.Query(ctx,
		`SELECT c.id, c.company_name,
		        COALESCE(SUM(l.hours_worked), 0),
		        COALESCE(SUM(l.hours_worked * c.hourly_rate), 0),
		        COUNT(l.id)
		 FROM clients c
		 LEFT JOIN work_logs l ON l.client_id = c.id
		 WHERE c.workspace_id = $1
		 GROUP BY c.id, c.company_name
		 ORDER BY 4 DESC
		 LIMIT $2`, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("top clients: %w", err)
	}
	defer rows.Close()

	standings := []ClientStanding{}
	for rows.Next() {
		var cs ClientStanding
		if err := rows.Scan(&cs.ClientID, &cs.CompanyName, &cs.Hours, &cs.Revenue, &cs.LogCount); err != nil {
			return nil, fmt.Errorf("scan client standing: %w", err)
		}
		standings = append(standings, cs)
	}
	return standings, rows.Err()
}

// Usage reports current consumption against the free-plan quotas, so the
// frontend can surface "97/100 logs this month" before the gate starts
// rejecting.
type Usage struct {
	ActiveClients     int    `json:"active_clients"`
	ActiveClientLimit int    `json:"active_client_limit"`
	MonthlyLogs       int    `json:"monthly_logs"`
	MonthlyLogLimit   int    `json:"monthly_log_limit"`
	Month             string `json:"month"`
	LimitsApply       bool   `json:"limits_apply"`
}

func (s *Service) Usage(ctx context.Context, usage tier.UsageSource, workspaceID uuid.UUID, isPro bool) (*Usage, error) {
	month := tier.MonthPrefix(time.Now())

	clients, err := usage.CountActiveClients(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	logs, err := usage.CountMonthlyLogs(ctx, workspaceID, month)
	if err != nil {
		return nil, err
	}

	return &Usage{
		ActiveClients:     clients,
		ActiveClientLimit: tier.FreeActiveClientLimit,
		MonthlyLogs:       logs,
		MonthlyLogLimit:   tier.FreeMonthlyLogLimit,
		Month:             month,
		LimitsApply:       !isPro,
	}, nil
}
