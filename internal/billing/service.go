package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/zenportal/backend/internal/config"
	"github.com/zenportal/backend/internal/models"
)

// subscriptionPeriod is the paid window opened by one checkout. Renewal is
// another checkout; the expiry worker downgrades workspaces that lapse.
const subscriptionPeriod = 30 * 24 * time.Hour

var ErrAlreadyProcessed = errors.New("webhook event already processed")

// DB is the slice of pgxpool.Pool the billing service uses. Tests swap in a
// fake to exercise webhook processing without Postgres.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Service struct {
	db       DB
	paymongo *PayMongoClient
	cfg      config.PayMongoConfig
	frontend string
}

func NewService(db DB, pm *PayMongoClient, cfg config.PayMongoConfig, frontendURL string) *Service {
	return &Service{db: db, paymongo: pm, cfg: cfg, frontend: frontendURL}
}

// CreateCheckout opens a Pro-plan checkout for the workspace. The workspace
// id rides in the session metadata so the paid webhook can find it again.
func (s *Service) CreateCheckout(ctx context.Context, ws *models.Workspace) (*CheckoutSession, error) {
	if ws.IsPro() {
		return nil, errors.New("workspace is already on the Pro plan")
	}
	return s.paymongo.CreateCheckoutSession(ctx,
		s.cfg.ProAmount,
		"ZenPortal Pro (30 days)",
		s.frontend+"/settings/billing?status=success",
		s.frontend+"/settings/billing?status=cancelled",
		map[string]string{"workspace_id": ws.ID.String()},
	)
}

// GetSubscription returns the workspace's latest subscription, or nil when
// it has never paid. Active means the paid period has not ended yet.
func (s *Service) GetSubscription(ctx context.Context, workspaceID uuid.UUID) (*models.Subscription, bool, error) {
	var sub models.Subscription
	err := s.db.QueryRow(ctx,
		`SELECT id, workspace_id, plan, status, period_start, period_end, created_at
		 FROM subscriptions
		 WHERE workspace_id = $1
		 ORDER BY period_end DESC
		 LIMIT 1`, workspaceID,
	).Scan(&sub.ID, &sub.WorkspaceID, &sub.Plan, &sub.Status,
		&sub.PeriodStart, &sub.PeriodEnd, &sub.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get subscription: %w", err)
	}
	active := sub.PeriodEnd != nil && sub.PeriodEnd.After(time.Now())
	return &sub, active, nil
}

// ProcessEvent applies a verified webhook event exactly once. The dedup
// check, the tier mutation and the event record commit in one transaction,
// so a redelivery either sees the recorded event and stops, or the first
// attempt rolled back entirely and this one retries cleanly.
//
// A paid event whose metadata carries no usable workspace id is recorded and
// acknowledged without any mutation; erroring would make the provider
// redeliver it forever.
func (s *Service) ProcessEvent(ctx context.Context, ev *Event) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin webhook tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var seen string
	err = tx.QueryRow(ctx,
		`SELECT id FROM webhook_events WHERE id = $1`, ev.ID).Scan(&seen)
	if err == nil {
		return ErrAlreadyProcessed
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check webhook event: %w", err)
	}

	status := "processed"
	if ev.CheckoutPaid != nil {
		workspaceID, perr := uuid.Parse(ev.CheckoutPaid.WorkspaceID)
		if perr != nil {
			slog.Warn("checkout event has no usable workspace metadata",
				"event_id", ev.ID, "workspace_id", ev.CheckoutPaid.WorkspaceID)
			status = "skipped"
		} else if err := s.applyCheckoutPaid(ctx, tx, workspaceID, ev.CheckoutPaid); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO webhook_events (id, type, status, processed_at)
		 VALUES ($1, $2, $3, now())`, ev.ID, ev.Type, status)
	if err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit webhook tx: %w", err)
	}
	return nil
}

func (s *Service) applyCheckoutPaid(ctx context.Context, tx pgx.Tx, workspaceID uuid.UUID, ev *CheckoutPaidEvent) error {
	now := time.Now()
	_, err := tx.Exec(ctx,
		`INSERT INTO subscriptions (id, workspace_id, plan, status, period_start, period_end)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		ev.SessionID, workspaceID, models.TierPro, "active", now, now.Add(subscriptionPeriod))
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE workspaces SET
			tier = $2,
			paymongo_customer_id = COALESCE(NULLIF($3, ''), paymongo_customer_id),
			updated_at = now()
		 WHERE id = $1`,
		workspaceID, models.TierPro, ev.CustomerID)
	if err != nil {
		return fmt.Errorf("upgrade workspace: %w", err)
	}
	return nil
}

// ExpireLapsed downgrades every Pro workspace whose latest paid period has
// ended and returns their ids so the caller can notify each owner. Run
// daily by the worker.
func (s *Service) ExpireLapsed(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx,
		`UPDATE workspaces w SET tier = $1, updated_at = now()
		 WHERE w.tier = $2
		   AND NOT EXISTS (
			 SELECT 1 FROM subscriptions s
			 WHERE s.workspace_id = w.id AND s.period_end > now()
		   )
		 RETURNING w.id`,
		models.TierFree, models.TierPro)
	if err != nil {
		return nil, fmt.Errorf("expire lapsed subscriptions: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired workspace: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
