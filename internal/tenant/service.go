package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zenportal/backend/internal/models"
)

var ErrSlugTaken = errors.New("workspace slug already taken")
var ErrAlreadyMember = errors.New("user is already a member")

const workspaceCols = `id, name, slug, kind, logo, accent_color, portal_slug, tier,
	paymongo_customer_id, notify_client_view, notify_client_on_log, notify_weekly_recap,
	api_key_read_hash, api_key_write_hash, created_at, updated_at`

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

func scanWorkspace(row pgx.Row) (*models.Workspace, error) {
	var w models.Workspace
	err := row.Scan(&w.ID, &w.Name, &w.Slug, &w.Kind, &w.Logo, &w.AccentColor,
		&w.PortalSlug, &w.Tier, &w.PayMongoCustomerID, &w.NotifyClientView,
		&w.NotifyClientOnLog, &w.NotifyWeeklyRecap, &w.APIKeyReadHash,
		&w.APIKeyWriteHash, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *Service) GetWorkspaceByID(ctx context.Context, id uuid.UUID) (*models.Workspace, error) {
	w, err := scanWorkspace(s.db.QueryRow(ctx,
		"SELECT "+workspaceCols+" FROM workspaces WHERE id = $1", id))
	if err != nil {
		return nil, fmt.Errorf("get workspace: %w", err)
	}
	return w, nil
}

func (s *Service) GetWorkspaceBySlug(ctx context.Context, slug string) (*models.Workspace, error) {
	w, err := scanWorkspace(s.db.QueryRow(ctx,
		"SELECT "+workspaceCols+" FROM workspaces WHERE slug = $1", slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workspace by slug: %w", err)
	}
	return w, nil
}

func (s *Service) GetWorkspaceByPortalSlug(ctx context.Context, slug string) (*models.Workspace, error) {
	w, err := scanWorkspace(s.db.QueryRow(ctx,
		"SELECT "+workspaceCols+" FROM workspaces WHERE portal_slug = $1", slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workspace by portal slug: %w", err)
	}
	return w, nil
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx,
		`SELECT id, email, name, password_hash, image, headline, bio, website_url,
		        default_workspace_id, created_at, updated_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Image, &u.Headline,
		&u.Bio, &u.WebsiteURL, &u.DefaultWorkspaceID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx,
		`SELECT id, email, name, password_hash, image, headline, bio, website_url,
		        default_workspace_id, created_at, updated_at
		 FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Image, &u.Headline,
		&u.Bio, &u.WebsiteURL, &u.DefaultWorkspaceID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// ContextFor implements Source.
func (s *Service) ContextFor(ctx context.Context, userID, workspaceID uuid.UUID) (*Context, error) {
	var m models.Membership
	err := s.db.QueryRow(ctx,
		`SELECT id, workspace_id, user_id, role, joined_at
		 FROM workspace_members WHERE user_id = $1 AND workspace_id = $2`,
		userID, workspaceID,
	).Scan(&m.ID, &m.WorkspaceID, &m.UserID, &m.Role, &m.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}

	w, err := s.GetWorkspaceByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return &Context{Workspace: w, Membership: &m}, nil
}

// FirstContext implements Source.
func (s *Service) FirstContext(ctx context.Context, userID uuid.UUID) (*Context, error) {
	var m models.Membership
	err := s.db.QueryRow(ctx,
		`SELECT id, workspace_id, user_id, role, joined_at
		 FROM workspace_members WHERE user_id = $1 ORDER BY joined_at LIMIT 1`,
		userID,
	).Scan(&m.ID, &m.WorkspaceID, &m.UserID, &m.Role, &m.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get first membership: %w", err)
	}

	w, err := s.GetWorkspaceByID(ctx, m.WorkspaceID)
	if err != nil {
		return nil, err
	}
	return &Context{Workspace: w, Membership: &m}, nil
}

type WorkspaceListing struct {
	models.Workspace
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

func (s *Service) ListWorkspaces(ctx context.Context, userID uuid.UUID) ([]WorkspaceListing, error) {
	rows, err := s.db.Query(ctx,
		`SELECT w.id, w.name, w.slug, w.kind, w.logo, w.accent_color, w.portal_slug, w.tier,
		        w.paymongo_customer_id, w.notify_client_view, w.notify_client_on_log,
		        w.notify_weekly_recap, w.api_key_read_hash, w.api_key_write_hash,
		        w.created_at, w.updated_at, m.role, m.joined_at
		 FROM workspace_members m
		 JOIN workspaces w ON w.id = m.workspace_id
		 WHERE m.user_id = $1
		 ORDER BY m.joined_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	var out []WorkspaceListing
	for rows.Next() {
		var l WorkspaceListing
		if err := rows.Scan(&l.ID, &l.Name, &l.Slug, &l.Kind, &l.Logo, &l.AccentColor,
			&l.PortalSlug, &l.Tier, &l.PayMongoCustomerID, &l.NotifyClientView,
			&l.NotifyClientOnLog, &l.NotifyWeeklyRecap, &l.APIKeyReadHash,
			&l.APIKeyWriteHash, &l.CreatedAt, &l.UpdatedAt, &l.Role, &l.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type CreateWorkspaceRequest struct {
	Name string  `json:"name"`
	Slug string  `json:"slug"`
	Kind string  `json:"kind"`
	Logo *string `json:"logo,omitempty"`
}

// CreateWorkspace inserts the workspace and its owner membership in one
// transaction, and makes it the user's default when they have none.
func (s *Service) CreateWorkspace(ctx context.Context, userID uuid.UUID, req CreateWorkspaceRequest) (*models.Workspace, error) {
	existing, err := s.GetWorkspaceBySlug(ctx, req.Slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrSlugTaken
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	w, err := scanWorkspace(tx.QueryRow(ctx,
		`INSERT INTO workspaces (name, slug, kind, logo)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+workspaceCols,
		req.Name, req.Slug, req.Kind, req.Logo))
	if err != nil {
		// The slug pre-check can race a concurrent insert of the same slug.
		if isUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("insert workspace: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO workspace_members (workspace_id, user_id, role) VALUES ($1, $2, $3)`,
		w.ID, userID, models.RoleOwner)
	if err != nil {
		return nil, fmt.Errorf("insert owner membership: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET default_workspace_id = $1, updated_at = now()
		 WHERE id = $2 AND default_workspace_id IS NULL`,
		w.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("set default workspace: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return w, nil
}

type MemberListing struct {
	models.Membership
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Image *string `json:"image,omitempty"`
}

func (s *Service) ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]MemberListing, error) {
	rows, err := s.db.Query(ctx,
		`SELECT m.id, m.workspace_id, m.user_id, m.role, m.joined_at, u.name, u.email, u.image
		 FROM workspace_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.workspace_id = $1
		 ORDER BY m.joined_at`,
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []MemberListing
	for rows.Next() {
		var m MemberListing
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.UserID, &m.Role, &m.JoinedAt,
			&m.Name, &m.Email, &m.Image); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddMember attaches an existing user to the workspace.
func (s *Service) AddMember(ctx context.Context, workspaceID, userID uuid.UUID, role string) error {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM workspace_members WHERE workspace_id = $1 AND user_id = $2)`,
		workspaceID, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if exists {
		return ErrAlreadyMember
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO workspace_members (workspace_id, user_id, role) VALUES ($1, $2, $3)`,
		workspaceID, userID, role)
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

type SettingsUpdate struct {
	Name              *string `json:"name,omitempty"`
	Logo              *string `json:"logo,omitempty"`
	AccentColor       *string `json:"accent_color,omitempty"`
	PortalSlug        *string `json:"portal_slug,omitempty"`
	NotifyClientView  *bool   `json:"notify_client_view,omitempty"`
	NotifyClientOnLog *bool   `json:"notify_client_on_log,omitempty"`
	NotifyWeeklyRecap *bool   `json:"notify_weekly_recap,omitempty"`
}

func (s *Service) UpdateSettings(ctx context.Context, workspaceID uuid.UUID, upd SettingsUpdate) (*models.Workspace, error) {
	w, err := scanWorkspace(s.db.QueryRow(ctx,
		`UPDATE workspaces SET
			name = COALESCE($2, name),
			logo = COALESCE($3, logo),
			accent_color = COALESCE($4, accent_color),
			portal_slug = COALESCE($5, portal_slug),
			notify_client_view = COALESCE($6, notify_client_view),
			notify_client_on_log = COALESCE($7, notify_client_on_log),
			notify_weekly_recap = COALESCE($8, notify_weekly_recap),
			updated_at = now()
		 WHERE id = $1
		 RETURNING `+workspaceCols,
		workspaceID, upd.Name, upd.Logo, upd.AccentColor, upd.PortalSlug,
		upd.NotifyClientView, upd.NotifyClientOnLog, upd.NotifyWeeklyRecap))
	if err != nil {
		return nil, fmt.Errorf("update workspace settings: %w", err)
	}
	return w, nil
}

// RotateAPIKeys overwrites both key digests; any previously issued keys
// stop verifying the moment this commits.
func (s *Service) RotateAPIKeys(ctx context.Context, workspaceID uuid.UUID, readHash, writeHash string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE workspaces SET api_key_read_hash = $2, api_key_write_hash = $3, updated_at = now()
		 WHERE id = $1`,
		workspaceID, readHash, writeHash)
	if err != nil {
		return fmt.Errorf("rotate api keys: %w", err)
	}
	return nil
}

// FindWorkspaceByKeyDigest locates the workspace owning a programmatic key
// digest, matching either key class. The returned bool reports whether the
// digest was the write key.
func (s *Service) FindWorkspaceByKeyDigest(ctx context.Context, digest string) (*models.Workspace, bool, error) {
	w, err := scanWorkspace(s.db.QueryRow(ctx,
		"SELECT "+workspaceCols+" FROM workspaces WHERE api_key_write_hash = $1 OR api_key_read_hash = $1",
		digest))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find workspace by key digest: %w", err)
	}

	isWrite := w.APIKeyWriteHash != nil && *w.APIKeyWriteHash == digest
	return w, isWrite, nil
}

// GetOwnerID returns the workspace owner's user id. Programmatic writes are
// attributed to the owner since API keys carry no user identity.
func (s *Service) GetOwnerID(ctx context.Context, workspaceID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx,
		`SELECT user_id FROM workspace_members
		 WHERE workspace_id = $1 AND role = $2
		 ORDER BY joined_at LIMIT 1`,
		workspaceID, models.RoleOwner).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("get workspace owner: %w", err)
	}
	return id, nil
}

func (s *Service) CreateInvitation(ctx context.Context, workspaceID, inviterID uuid.UUID, email, role string) (*models.Invitation, error) {
	var inv models.Invitation
	err := s.db.QueryRow(ctx,
		`INSERT INTO invitations (workspace_id, inviter_id, email, role, token, status, expires_at)
		 VALUES ($1, $2, $3, $4, $5, 'pending', now() + interval '7 days')
		 RETURNING id, workspace_id, inviter_id, email, role, token, status, expires_at, created_at`,
		workspaceID, inviterID, email, role, uuid.NewString(),
	).Scan(&inv.ID, &inv.WorkspaceID, &inv.InviterID, &inv.Email, &inv.Role,
		&inv.Token, &inv.Status, &inv.ExpiresAt, &inv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert invitation: %w", err)
	}
	return &inv, nil
}

var ErrInvitationInvalid = errors.New("invitation is invalid or expired")

// AcceptInvitation turns a pending invitation into a membership. The
// invitation is addressed to an email, not a user id, so whoever presents
// the token must be logged in with that address.
func (s *Service) AcceptInvitation(ctx context.Context, token string, user *models.User) (*models.Workspace, error) {
	var inv models.Invitation
	err := s.db.QueryRow(ctx,
		`SELECT id, workspace_id, inviter_id, email, role, token, status, expires_at, created_at
		 FROM invitations
		 WHERE token = $1 AND status = 'pending' AND expires_at > now()`, token,
	).Scan(&inv.ID, &inv.WorkspaceID, &inv.InviterID, &inv.Email, &inv.Role,
		&inv.Token, &inv.Status, &inv.ExpiresAt, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvitationInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	if inv.Email != user.Email {
		return nil, ErrInvitationInvalid
	}

	if err := s.AddMember(ctx, inv.WorkspaceID, user.ID, inv.Role); err != nil && !errors.Is(err, ErrAlreadyMember) {
		return nil, err
	}

	_, err = s.db.Exec(ctx,
		`UPDATE invitations SET status = 'accepted' WHERE id = $1`, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("mark invitation accepted: %w", err)
	}
	return s.GetWorkspaceByID(ctx, inv.WorkspaceID)
}

func isUniqueViolation(err error) bool {
	// 23505 is Postgres unique_violation.
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr) && pgErr.SQLState() == "23505"
}

func (s *Service) SetDefaultWorkspace(ctx context.Context, userID, workspaceID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE users SET default_workspace_id = $2, updated_at = now() WHERE id = $1`,
		userID, workspaceID)
	if err != nil {
		return fmt.Errorf("set default workspace: %w", err)
	}
	return nil
}
