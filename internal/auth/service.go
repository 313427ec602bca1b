package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zenportal/backend/internal/config"
	"github.com/zenportal/backend/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password is not strong enough: use at least 8 characters, 2 capital letters and a number")
)

type Claims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Sid   string `json:"sid"`
	jwt.RegisteredClaims
}

type Service struct {
	db     *pgxpool.Pool
	secret []byte
	ttl    time.Duration
}

func NewService(db *pgxpool.Pool, cfg config.AuthConfig) *Service {
	return &Service{
		db:     db,
		secret: []byte(cfg.JWTSecret),
		ttl:    time.Duration(cfg.SessionTTLDays) * 24 * time.Hour,
	}
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (s *Service) Signup(ctx context.Context, req SignupRequest, ip, userAgent string) (*models.User, string, error) {
	if !passwordStrong(req.Password) {
		return nil, "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	var u models.User
	err = s.db.QueryRow(ctx,
		`INSERT INTO users (email, name, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, email, name, password_hash, image, headline, bio, website_url,
		           default_workspace_id, created_at, updated_at`,
		req.Email, req.Name, string(hash),
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Image, &u.Headline,
		&u.Bio, &u.WebsiteURL, &u.DefaultWorkspaceID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", fmt.Errorf("insert user: %w", err)
	}

	token, err := s.openSession(ctx, &u, ip, userAgent)
	if err != nil {
		return nil, "", err
	}
	return &u, token, nil
}

func (s *Service) Login(ctx context.Context, email, password, ip, userAgent string) (*models.User, string, error) {
	var u models.User
	err := s.db.QueryRow(ctx,
		`SELECT id, email, name, password_hash, image, headline, bio, website_url,
		        default_workspace_id, created_at, updated_at
		 FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Image, &u.Headline,
		&u.Bio, &u.WebsiteURL, &u.DefaultWorkspaceID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("get user by email: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.openSession(ctx, &u, ip, userAgent)
	if err != nil {
		return nil, "", err
	}
	return &u, token, nil
}

// Logout deletes the session row. The cached identity entry is left to age
// out on its own TTL, so the token may keep verifying for a few minutes.
func (s *Service) Logout(ctx context.Context, sessionID uuid.UUID) error {
	_, err := s.db.Exec(ctx, "DELETE FROM sessions WHERE id = $1", sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// GetSession returns the active session or nil when missing/expired.
func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var sess models.Session
	var ip, ua *string
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, expires_at, ip_address, user_agent, created_at
		 FROM sessions WHERE id = $1 AND expires_at > now()`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.ExpiresAt, &ip, &ua, &sess.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if ip != nil {
		sess.IPAddress = *ip
	}
	if ua != nil {
		sess.UserAgent = *ua
	}
	return &sess, nil
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

type ProfileUpdate struct {
	Name       *string `json:"name,omitempty"`
	Image      *string `json:"image,omitempty"`
	Headline   *string `json:"headline,omitempty"`
	Bio        *string `json:"bio,omitempty"`
	WebsiteURL *string `json:"website_url,omitempty"`
}

func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, upd ProfileUpdate) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx,
		`UPDATE users SET
			name = COALESCE($2, name),
			image = COALESCE($3, image),
			headline = COALESCE($4, headline),
			bio = COALESCE($5, bio),
			website_url = COALESCE($6, website_url),
			updated_at = now()
		 WHERE id = $1
		 RETURNING id, email, name, password_hash, image, headline, bio, website_url,
		           default_workspace_id, created_at, updated_at`,
		userID, upd.Name, upd.Image, upd.Headline, upd.Bio, upd.WebsiteURL,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Image, &u.Headline,
		&u.Bio, &u.WebsiteURL, &u.DefaultWorkspaceID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return &u, nil
}

func (s *Service) openSession(ctx context.Context, u *models.User, ip, userAgent string) (string, error) {
	expiresAt := time.Now().Add(s.ttl)

	var sid uuid.UUID
	err := s.db.QueryRow(ctx,
		`INSERT INTO sessions (user_id, expires_at, ip_address, user_agent)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		u.ID, expiresAt, ip, userAgent).Scan(&sid)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}

	claims := Claims{
		Sub:   u.ID.String(),
		Email: u.Email,
		Sid:   sid.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// ParseSessionID extracts the session id from a signed token without any
// store lookup. Logout uses it to know which row to delete.
func (s *Service) ParseSessionID(token string) (uuid.UUID, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, fmt.Errorf("parse token: %w", err)
	}
	return uuid.Parse(claims.Sid)
}

// Passwords need 8+ characters, at least 2 capitals and a digit.
func passwordStrong(pw string) bool {
	if len(pw) < 8 {
		return false
	}
	capitals, digits := 0, 0
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			capitals++
		case unicode.IsDigit(r):
			digits++
		}
	}
	return capitals >= 2 && digits >= 1
}

func isUniqueViolation(err error) bool {
	// 23505 is Postgres unique_violation.
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr) && pgErr.SQLState() == "23505"
}
