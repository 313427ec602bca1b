package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zenportal/backend/internal/models"
	"github.com/zenportal/backend/internal/tenant"
)

// Access is the capability granted by a programmatic key. A write key
// grants both levels; a read key grants read only.
type Access string

const (
	AccessRead  Access = "read"
	AccessWrite Access = "write"
)

const apiKeyCacheTTL = 60 * time.Second

type accessKeyType struct{}

var accessKey accessKeyType

func WithAccess(ctx context.Context, a Access) context.Context {
	return context.WithValue(ctx, accessKey, a)
}

func AccessFromContext(ctx context.Context) Access {
	a, _ := ctx.Value(accessKey).(Access)
	return a
}

// HashAPIKey computes the stored digest of a programmatic key. A fast
// unsalted hash is enough here: keys are high-entropy random tokens, not
// user-chosen secrets.
func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// GenerateKeyPair mints a fresh read/write key pair. The raw keys are
// returned exactly once; only their digests are persisted.
func GenerateKeyPair() (read, write string) {
	return "zen_read_" + uuid.NewString(), "zen_write_" + uuid.NewString()
}

// KeySource locates the workspace owning a key digest. tenant.Service
// implements it.
type KeySource interface {
	FindWorkspaceByKeyDigest(ctx context.Context, digest string) (*models.Workspace, bool, error)
}

type cachedKeyOwner struct {
	Workspace models.Workspace `json:"workspace"`
	IsWrite   bool             `json:"is_write"`
}

// APIKeyMiddleware authenticates `Authorization: Bearer zen_*` keys for the
// programmatic API, attaching the owning workspace and access level.
type APIKeyMiddleware struct {
	src   KeySource
	cache identityCache
}

func NewAPIKeyMiddleware(src KeySource, cache identityCache) *APIKeyMiddleware {
	return &APIKeyMiddleware{src: src, cache: cache}
}

func (m *APIKeyMiddleware) RequireRead(next http.Handler) http.Handler {
	return m.require(AccessRead, next)
}

func (m *APIKeyMiddleware) RequireWrite(next http.Handler) http.Handler {
	return m.require(AccessWrite, next)
}

func (m *APIKeyMiddleware) require(required Access, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing API key")
			return
		}
		key := strings.TrimPrefix(auth, "Bearer ")

		ctx := r.Context()
		d := HashAPIKey(key)
		cacheKey := "auth:api-key:" + d

		var ws *models.Workspace
		var isWrite bool

		var cached cachedKeyOwner
		if err := m.cache.Get(ctx, cacheKey, &cached); err == nil {
			ws, isWrite = &cached.Workspace, cached.IsWrite
		} else {
			found, write, err := m.src.FindWorkspaceByKeyDigest(ctx, d)
			if err != nil {
				slog.Error("api key lookup failed", "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if found == nil {
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}
			ws, isWrite = found, write

			if err := m.cache.Set(ctx, cacheKey, cachedKeyOwner{Workspace: *ws, IsWrite: isWrite}, apiKeyCacheTTL); err != nil {
				slog.Warn("api key cache set failed", "error", err)
			}
		}

		if required == AccessWrite && !isWrite {
			writeError(w, http.StatusUnauthorized, "write access required")
			return
		}

		access := AccessRead
		if isWrite {
			access = AccessWrite
		}

		ctx = tenant.WithContext(ctx, &tenant.Context{Workspace: ws})
		ctx = WithAccess(ctx, access)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
