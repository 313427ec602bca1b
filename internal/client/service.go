package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zenportal/backend/internal/models"
)

var ErrNotFound = errors.New("client not found")

const clientCols = `id, workspace_id, company_name, contact_name, contact_email,
	access_token, status, hourly_rate, currency, last_viewed_at, created_at`

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

func scanClient(row pgx.Row) (*models.Client, error) {
	var c models.Client
	err := row.Scan(&c.ID, &c.WorkspaceID, &c.CompanyName, &c.ContactName, &c.ContactEmail,
		&c.AccessToken, &c.Status, &c.HourlyRate, &c.Currency, &c.LastViewedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) List(ctx context.Context, workspaceID uuid.UUID) ([]models.Client, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+clientCols+` FROM clients WHERE workspace_id = $1 ORDER BY created_at DESC`,
		workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := []models.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

type CreateRequest struct {
	CompanyName  string  `json:"company_name"`
	ContactName  *string `json:"contact_name,omitempty"`
	ContactEmail *string `json:"contact_email,omitempty"`
	HourlyRate   float64 `json:"hourly_rate"`
	Currency     string  `json:"currency"`
}

func (s *Service) Create(ctx context.Context, workspaceID uuid.UUID, req CreateRequest) (*models.Client, error) {
	if req.Currency == "" {
		req.Currency = "PHP"
	}
	// The access token doubles as the client's magic report link; a UUID is
	// unguessable enough for read-only report access.
	c, err := scanClient(s.db.QueryRow(ctx,
		`INSERT INTO clients (workspace_id, company_name, contact_name, contact_email,
		                      access_token, status, hourly_rate, currency)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+clientCols,
		workspaceID, req.CompanyName, req.ContactName, req.ContactEmail,
		uuid.NewString(), models.ClientActive, req.HourlyRate, req.Currency))
	if err != nil {
		return nil, fmt.Errorf("insert client: %w", err)
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, workspaceID, clientID uuid.UUID) (*models.Client, error) {
	c, err := scanClient(s.db.QueryRow(ctx,
		`SELECT `+clientCols+` FROM clients WHERE id = $1 AND workspace_id = $2`,
		clientID, workspaceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

// GetByAccessToken powers the public magic-link report. Returns ErrNotFound
// for unknown tokens so handlers cannot distinguish missing from revoked.
func (s *Service) GetByAccessToken(ctx context.Context, token string) (*models.Client, error) {
	c, err := scanClient(s.db.QueryRow(ctx,
		`SELECT `+clientCols+` FROM clients WHERE access_token = $1`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client by token: %w", err)
	}
	return c, nil
}

type UpdateRequest struct {
	CompanyName  *string  `json:"company_name,omitempty"`
	ContactName  *string  `json:"contact_name,omitempty"`
	ContactEmail *string  `json:"contact_email,omitempty"`
	HourlyRate   *float64 `json:"hourly_rate,omitempty"`
	Currency     *string  `json:"currency,omitempty"`
	Status       *string  `json:"status,omitempty"`
}

func (s *Service) Update(ctx context.Context, workspaceID, clientID uuid.UUID, req UpdateRequest) (*models.Client, error) {
	c, err := scanClient(s.db.QueryRow(ctx,
		`UPDATE clients SET
			company_name = COALESCE($3, company_name),
			contact_name = COALESCE($4, contact_name),
			contact_email = COALESCE($5, contact_email),
			hourly_rate = COALESCE($6, hourly_rate),
			currency = COALESCE($7, currency),
			status = COALESCE($8, status)
		 WHERE id = $1 AND workspace_id = $2
		 RETURNING `+clientCols,
		clientID, workspaceID, req.CompanyName, req.ContactName, req.ContactEmail,
		req.HourlyRate, req.Currency, req.Status))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	return c, nil
}

// RotateAccessToken invalidates the previous magic link immediately.
func (s *Service) RotateAccessToken(ctx context.Context, workspaceID, clientID uuid.UUID) (*models.Client, error) {
	c, err := scanClient(s.db.QueryRow(ctx,
		`UPDATE clients SET access_token = $3
		 WHERE id = $1 AND workspace_id = $2
		 RETURNING `+clientCols,
		clientID, workspaceID, uuid.NewString()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("rotate access token: %w", err)
	}
	return c, nil
}

// TouchLastViewed records a magic-link visit. Best effort: report rendering
// never fails because of it.
func (s *Service) TouchLastViewed(ctx context.Context, clientID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE clients SET last_viewed_at = now() WHERE id = $1`, clientID)
	if err != nil {
		return fmt.Errorf("touch last viewed: %w", err)
	}
	return nil
}
