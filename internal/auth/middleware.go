package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/zenportal/backend/internal/models"
	"github.com/zenportal/backend/internal/tenant"
)

const (
	// WorkspaceHintHeader lets clients pin a request to one of their
	// workspaces instead of the resolver's default chain.
	WorkspaceHintHeader = "X-Workspace-Id"

	sessionCacheTTL = 5 * time.Minute
)

// SessionStore is what the verifier needs from the auth service.
type SessionStore interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// identityCache matches cache.Cache. Cache failures are never fatal: the
// store remains authoritative and the request simply pays a lookup.
type identityCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type cachedIdentity struct {
	User      models.User `json:"user"`
	SessionID uuid.UUID   `json:"session_id"`
}

// SessionMiddleware verifies session tokens (cookie or bearer) and attaches
// the identity plus resolved workspace context to the request.
type SessionMiddleware struct {
	secret     []byte
	cookieName string
	store      SessionStore
	cache      identityCache
	resolver   *tenant.Resolver
}

func NewSessionMiddleware(secret, cookieName string, store SessionStore, cache identityCache, resolver *tenant.Resolver) *SessionMiddleware {
	return &SessionMiddleware{
		secret:     []byte(secret),
		cookieName: cookieName,
		store:      store,
		cache:      cache,
		resolver:   resolver,
	}
}

func (m *SessionMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.extractToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing session token")
			return
		}

		ctx := r.Context()
		cacheKey := "session:" + digest(token)

		var user *models.User
		var cached cachedIdentity
		if err := m.cache.Get(ctx, cacheKey, &cached); err == nil {
			user = &cached.User
		} else {
			sid, uid, err := m.validateToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid session token")
				return
			}

			sess, err := m.store.GetSession(ctx, sid)
			if err != nil || sess == nil || sess.UserID != uid {
				writeError(w, http.StatusUnauthorized, "session expired")
				return
			}

			user, err = m.store.GetUserByID(ctx, uid)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "user not found")
				return
			}

			if err := m.cache.Set(ctx, cacheKey, cachedIdentity{User: *user, SessionID: sid}, sessionCacheTTL); err != nil {
				slog.Warn("session cache set failed", "error", err)
			}
		}

		ctx = tenant.WithUser(ctx, user)

		tc, err := m.resolver.Resolve(ctx, user, r.Header.Get(WorkspaceHintHeader))
		if err != nil {
			slog.Error("workspace resolution failed", "error", err, "user_id", user.ID)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if tc != nil {
			ctx = tenant.WithContext(ctx, tc)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireWorkspace rejects requests whose identity resolved to no workspace.
func RequireWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tenant.FromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "no active workspace")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *SessionMiddleware) extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if c, err := r.Cookie(m.cookieName); err == nil {
		return c.Value
	}
	return ""
}

func (m *SessionMiddleware) validateToken(token string) (sessionID, userID uuid.UUID, err error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, uuid.Nil, fmt.Errorf("parse token: %w", err)
	}

	sessionID, err = uuid.Parse(claims.Sid)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid session id: %w", err)
	}
	userID, err = uuid.Parse(claims.Sub)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid user id: %w", err)
	}
	return sessionID, userID, nil
}

func digest(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
