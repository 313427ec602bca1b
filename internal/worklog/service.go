package worklog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zenportal/backend/internal/models"
)

var (
	ErrNotFound      = errors.New("work log not found")
	ErrClientInvalid = errors.New("client does not belong to this workspace")
	ErrNotAuthor     = errors.New("only the author can modify a log")
)

const logCols = `l.id, l.user_id, l.client_id, l.date, l.summary, l.hours_worked,
	l.video_url, l.attachment_url, l.is_blocked, l.blocker_details, l.created_at`

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

func scanLog(row pgx.Row) (*models.WorkLog, error) {
	var l models.WorkLog
	err := row.Scan(&l.ID, &l.UserID, &l.ClientID, &l.Date, &l.Summary, &l.HoursWorked,
		&l.VideoURL, &l.AttachmentURL, &l.IsBlocked, &l.BlockerDetails, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

type ListFilter struct {
	ClientID *uuid.UUID
	Limit    int
	Offset   int
}

// normalize bounds the paging fields before they reach the query. Both end
// up interpolated into LIMIT/OFFSET, so out-of-range values are corrected
// rather than rejected.
func (f *ListFilter) normalize(defaultLimit int) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = defaultLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// List returns the workspace's logs newest-date-first. Scoping goes through
// the clients table: a log belongs to whatever workspace owns its client.
func (s *Service) List(ctx context.Context, workspaceID uuid.UUID, f ListFilter) ([]models.WorkLog, error) {
	f.normalize(50)

	query := `SELECT ` + logCols + `
		FROM work_logs l
		JOIN clients c ON c.id = l.client_id
		WHERE c.workspace_id = $1`
	args := []interface{}{workspaceID}

	if f.ClientID != nil {
		query += ` AND l.client_id = $2`
		args = append(args, *f.ClientID)
	}
	query += fmt.Sprintf(` ORDER BY l.date DESC, l.created_at DESC LIMIT %d OFFSET %d`, f.Limit, f.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list work logs: %w", err)
	}
	defer rows.Close()

	logs := []models.WorkLog{}
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

// LogWithClient is the programmatic-API row shape: a log plus the owning
// client's display name.
type LogWithClient struct {
	models.WorkLog
	ClientName string `json:"client_name"`
}

// ListWithClient returns the workspace's most recent logs with client
// names, for the key-authenticated surface.
func (s *Service) ListWithClient(ctx context.Context, workspaceID uuid.UUID, f ListFilter) ([]LogWithClient, error) {
	f.normalize(100)

	query := `SELECT ` + logCols + `, c.company_name
		FROM work_logs l
		JOIN clients c ON c.id = l.client_id
		WHERE c.workspace_id = $1`
	args := []interface{}{workspaceID}

	if f.ClientID != nil {
		query += ` AND l.client_id = $2`
		args = append(args, *f.ClientID)
	}
	query += fmt.Sprintf(` ORDER BY l.date DESC, l.created_at DESC LIMIT %d OFFSET %d`, f.Limit, f.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list logs with client: %w", err)
	}
	defer rows.Close()

	logs := []LogWithClient{}
	for rows.Next() {
		var l LogWithClient
		err := rows.Scan(&l.ID, &l.UserID, &l.ClientID, &l.Date, &l.Summary, &l.HoursWorked,
			&l.VideoURL, &l.AttachmentURL, &l.IsBlocked, &l.BlockerDetails, &l.CreatedAt,
			&l.ClientName)
		if err != nil {
			return nil, fmt.Errorf("scan log with client: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// ListForClient returns one client's most recent logs for the public
// report, newest first.
func (s *Service) ListForClient(ctx context.Context, clientID uuid.UUID, limit int) ([]models.WorkLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+logCols+` FROM work_logs l
		 WHERE l.client_id = $1
		 ORDER BY l.date DESC, l.created_at DESC
		 LIMIT $2`, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list client logs: %w", err)
	}
	defer rows.Close()

	logs := []models.WorkLog{}
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

type CreateRequest struct {
	ClientID       uuid.UUID `json:"client_id"`
	Date           string    `json:"date"`
	Summary        string    `json:"summary"`
	HoursWorked    float64   `json:"hours_worked"`
	VideoURL       *string   `json:"video_url,omitempty"`
	AttachmentURL  *string   `json:"attachment_url,omitempty"`
	IsBlocked      bool      `json:"is_blocked"`
	BlockerDetails string    `json:"blocker_details"`
}

// Create inserts a log after confirming the target client belongs to the
// caller's workspace. Proof links arrive already filtered by the tier gate.
func (s *Service) Create(ctx context.Context, workspaceID, userID uuid.UUID, req CreateRequest) (*models.WorkLog, error) {
	var owner uuid.UUID
	err := s.db.QueryRow(ctx,
		`SELECT workspace_id FROM clients WHERE id = $1`, req.ClientID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && owner != workspaceID) {
		return nil, ErrClientInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("check client ownership: %w", err)
	}

	l, err := scanLog(s.db.QueryRow(ctx,
		`INSERT INTO work_logs AS l
			(user_id, client_id, date, summary, hours_worked,
			 video_url, attachment_url, is_blocked, blocker_details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+logCols,
		userID, req.ClientID, req.Date, req.Summary, req.HoursWorked,
		req.VideoURL, req.AttachmentURL, req.IsBlocked, req.BlockerDetails))
	if err != nil {
		return nil, fmt.Errorf("insert work log: %w", err)
	}
	return l, nil
}

func (s *Service) Get(ctx context.Context, workspaceID, logID uuid.UUID) (*models.WorkLog, error) {
	l, err := scanLog(s.db.QueryRow(ctx,
		`SELECT `+logCols+` FROM work_logs l
		 JOIN clients c ON c.id = l.client_id
		 WHERE l.id = $1 AND c.workspace_id = $2`, logID, workspaceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get work log: %w", err)
	}
	return l, nil
}

type UpdateRequest struct {
	Date           *string  `json:"date,omitempty"`
	Summary        *string  `json:"summary,omitempty"`
	HoursWorked    *float64 `json:"hours_worked,omitempty"`
	VideoURL       *string  `json:"video_url,omitempty"`
	AttachmentURL  *string  `json:"attachment_url,omitempty"`
	IsBlocked      *bool    `json:"is_blocked,omitempty"`
	BlockerDetails *string  `json:"blocker_details,omitempty"`
	// ClearVideo distinguishes "leave alone" from "remove" for the link
	// fields, which a bare nil pointer can't express.
	ClearVideo      bool `json:"clear_video,omitempty"`
	ClearAttachment bool `json:"clear_attachment,omitempty"`
}

// Update patches a log. Only the author may edit, even within the workspace.
func (s *Service) Update(ctx context.Context, workspaceID, userID, logID uuid.UUID, req UpdateRequest) (*models.WorkLog, error) {
	existing, err := s.Get(ctx, workspaceID, logID)
	if err != nil {
		return nil, err
	}
	if existing.UserID != userID {
		return nil, ErrNotAuthor
	}

	video := existing.VideoURL
	if req.VideoURL != nil {
		video = req.VideoURL
	}
	if req.ClearVideo {
		video = nil
	}
	attachment := existing.AttachmentURL
	if req.AttachmentURL != nil {
		attachment = req.AttachmentURL
	}
	if req.ClearAttachment {
		attachment = nil
	}

	l, err := scanLog(s.db.QueryRow(ctx,
		`UPDATE work_logs AS l SET
			date = COALESCE($2, date),
			summary = COALESCE($3, summary),
			hours_worked = COALESCE($4, hours_worked),
			video_url = $5,
			attachment_url = $6,
			is_blocked = COALESCE($7, is_blocked),
			blocker_details = COALESCE($8, blocker_details)
		 WHERE id = $1
		 RETURNING `+logCols,
		logID, req.Date, req.Summary, req.HoursWorked,
		video, attachment, req.IsBlocked, req.BlockerDetails))
	if err != nil {
		return nil, fmt.Errorf("update work log: %w", err)
	}
	return l, nil
}
