package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zenportal/backend/internal/email"
	"github.com/zenportal/backend/internal/models"
)

// SubscriptionExpirer is implemented by the billing service.
type SubscriptionExpirer interface {
	ExpireLapsed(ctx context.Context) ([]uuid.UUID, error)
}

// Enqueuer is the slice of Client the handlers use to fan out follow-up
// tasks of their own.
type Enqueuer interface {
	EnqueueWeeklyRecap(ctx context.Context, workspaceID uuid.UUID) error
	EnqueueSubscriptionEmail(ctx context.Context, workspaceID uuid.UUID, kind string) error
}

// Handlers processes background tasks. Notification preferences are checked
// here, at delivery time, so flipping a setting off cancels anything still
// sitting in the queue.
type Handlers struct {
	db      *pgxpool.Pool
	sender  email.Sender
	billing SubscriptionExpirer
	queue   Enqueuer
	// frontendURL builds the magic report links embedded in emails.
	frontendURL string
}

func NewHandlers(db *pgxpool.Pool, sender email.Sender, billing SubscriptionExpirer, queue Enqueuer, frontendURL string) *Handlers {
	return &Handlers{db: db, sender: sender, billing: billing, queue: queue, frontendURL: frontendURL}
}

// Register wires every task type into the asynq mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeLogNotification, h.HandleLogNotification)
	mux.HandleFunc(TypeClientViewed, h.HandleClientViewed)
	mux.HandleFunc(TypeSubscriptionEmail, h.HandleSubscriptionEmail)
	mux.HandleFunc(TypeWeeklyRecap, h.HandleWeeklyRecap)
	mux.HandleFunc(TypeRecapFanout, h.HandleRecapFanout)
	mux.HandleFunc(TypeExpireSubscriptions, h.HandleExpireSubscriptions)
}

func (h *Handlers) HandleLogNotification(ctx context.Context, t *asynq.Task) error {
	var p LogNotificationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	var log models.WorkLog
	var client models.Client
	var ws models.Workspace
	err := h.db.QueryRow(ctx,
		`SELECT l.id, l.date, l.summary, l.hours_worked, l.is_blocked, l.blocker_details,
		        c.id, c.company_name, c.contact_email, c.access_token,
		        w.id, w.name, w.notify_client_on_log
		 FROM work_logs l
		 JOIN clients c ON c.id = l.client_id
		 JOIN workspaces w ON w.id = c.workspace_id
		 WHERE l.id = $1`, p.LogID,
	).Scan(&log.ID, &log.Date, &log.Summary, &log.HoursWorked, &log.IsBlocked, &log.BlockerDetails,
		&client.ID, &client.CompanyName, &client.ContactEmail, &client.AccessToken,
		&ws.ID, &ws.Name, &ws.NotifyClientOnLog)
	if errors.Is(err, pgx.ErrNoRows) {
		// Log deleted before the task ran; nothing to notify about.
		return nil
	}
	if err != nil {
		return fmt.Errorf("load log for notification: %w", err)
	}

	if !ws.NotifyClientOnLog || client.ContactEmail == nil || *client.ContactEmail == "" {
		return nil
	}

	reportURL := h.frontendURL + "/report/" + client.AccessToken
	return h.sender.Send(ctx, email.LogNotification(&client, &ws, &log, reportURL))
}

func (h *Handlers) HandleClientViewed(ctx context.Context, t *asynq.Task) error {
	var p ClientViewedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	var client models.Client
	var ws models.Workspace
	var ownerEmail string
	err := h.db.QueryRow(ctx,
		`SELECT c.id, c.company_name, w.id, w.name, w.notify_client_view, u.email
		 FROM clients c
		 JOIN workspaces w ON w.id = c.workspace_id
		 JOIN workspace_members m ON m.workspace_id = w.id AND m.role = $2
		 JOIN users u ON u.id = m.user_id
		 WHERE c.id = $1`, p.ClientID, models.RoleOwner,
	).Scan(&client.ID, &client.CompanyName, &ws.ID, &ws.Name, &ws.NotifyClientView, &ownerEmail)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load client for view notification: %w", err)
	}

	if !ws.NotifyClientView {
		return nil
	}
	return h.sender.Send(ctx, email.ClientViewedNotification(ownerEmail, &client, &ws))
}

func (h *Handlers) HandleSubscriptionEmail(ctx context.Context, t *asynq.Task) error {
	var p SubscriptionEmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	ws, ownerEmail, err := h.workspaceOwner(ctx, p.WorkspaceID)
	if err != nil || ws == nil {
		return err
	}

	switch p.Kind {
	case SubscriptionActivated:
		return h.sender.Send(ctx, email.SubscriptionActivated(ownerEmail, ws))
	case SubscriptionExpired:
		return h.sender.Send(ctx, email.SubscriptionExpired(ownerEmail, ws))
	default:
		slog.Warn("unknown subscription email kind", "kind", p.Kind)
		return nil
	}
}

func (h *Handlers) HandleWeeklyRecap(ctx context.Context, t *asynq.Task) error {
	var p WeeklyRecapPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	ws, ownerEmail, err := h.workspaceOwner(ctx, p.WorkspaceID)
	if err != nil || ws == nil {
		return err
	}
	if !ws.NotifyWeeklyRecap {
		return nil
	}

	rows, err := h.db.Query(ctx,
		`SELECT c.company_name, COALESCE(SUM(l.hours_worked), 0), COUNT(l.id)
		 FROM clients c
		 JOIN work_logs l ON l.client_id = c.id
		 WHERE c.workspace_id = $1
		   AND l.created_at > now() - interval '7 days'
		 GROUP BY c.company_name
		 ORDER BY 2 DESC`, p.WorkspaceID)
	if err != nil {
		return fmt.Errorf("weekly recap query: %w", err)
	}
	defer rows.Close()

	var entries []email.RecapEntry
	for rows.Next() {
		var e email.RecapEntry
		if err := rows.Scan(&e.CompanyName, &e.Hours, &e.LogCount); err != nil {
			return fmt.Errorf("scan recap entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("recap rows: %w", err)
	}

	return h.sender.Send(ctx, email.WeeklyRecap(ownerEmail, ws, entries))
}

// HandleExpireSubscriptions downgrades lapsed workspaces and queues an
// expiry email to each downgraded owner. Scheduled daily.
func (h *Handlers) HandleExpireSubscriptions(ctx context.Context, _ *asynq.Task) error {
	ids, err := h.billing.ExpireLapsed(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := h.queue.EnqueueSubscriptionEmail(ctx, id, SubscriptionExpired); err != nil {
			slog.Error("enqueue expiry email failed", "workspace_id", id, "error", err)
		}
	}
	if len(ids) > 0 {
		slog.Info("downgraded lapsed workspaces", "count", len(ids))
	}
	return nil
}

// HandleRecapFanout fans one weekly-recap task out per opted-in workspace.
// The scheduler fires it once a week.
func (h *Handlers) HandleRecapFanout(ctx context.Context, _ *asynq.Task) error {
	rows, err := h.db.Query(ctx,
		`SELECT id FROM workspaces WHERE notify_weekly_recap`)
	if err != nil {
		return fmt.Errorf("list recap workspaces: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan workspace id: %w", err)
		}
		if err := h.queue.EnqueueWeeklyRecap(ctx, id); err != nil {
			slog.Error("enqueue weekly recap failed", "workspace_id", id, "error", err)
		}
	}
	return rows.Err()
}

func (h *Handlers) workspaceOwner(ctx context.Context, workspaceID uuid.UUID) (*models.Workspace, string, error) {
	var ws models.Workspace
	var ownerEmail string
	err := h.db.QueryRow(ctx,
		`SELECT w.id, w.name, w.notify_weekly_recap, u.email
		 FROM workspaces w
		 JOIN workspace_members m ON m.workspace_id = w.id AND m.role = $2
		 JOIN users u ON u.id = m.user_id
		 WHERE w.id = $1`, workspaceID, models.RoleOwner,
	).Scan(&ws.ID, &ws.Name, &ws.NotifyWeeklyRecap, &ownerEmail)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("load workspace owner: %w", err)
	}
	return &ws, ownerEmail, nil
}
