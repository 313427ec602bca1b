package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zenportal/backend/internal/models"
	"github.com/zenportal/backend/internal/tenant"
)

type fakeKeySource struct {
	byDigest map[string]*models.Workspace
	writeSet map[string]bool
	lookups  int
}

func (f *fakeKeySource) FindWorkspaceByKeyDigest(_ context.Context, digest string) (*models.Workspace, bool, error) {
	f.lookups++
	return f.byDigest[digest], f.writeSet[digest], nil
}

type memCache struct {
	entries map[string][]byte
}

func (m *memCache) Get(_ context.Context, key string, dest interface{}) error {
	data, ok := m.entries[key]
	if !ok {
		return errors.New("cache miss")
	}
	return json.Unmarshal(data, dest)
}

func (m *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if m.entries == nil {
		m.entries = map[string][]byte{}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = data
	return nil
}

func TestHashAPIKeyIsStableHex(t *testing.T) {
	d := HashAPIKey("zen_read_abc")
	assert.Len(t, d, 64)
	assert.Equal(t, d, HashAPIKey("zen_read_abc"))
	assert.NotEqual(t, d, HashAPIKey("zen_read_abd"))
}

func TestGenerateKeyPairPrefixes(t *testing.T) {
	read, write := GenerateKeyPair()
	assert.True(t, strings.HasPrefix(read, "zen_read_"))
	assert.True(t, strings.HasPrefix(write, "zen_write_"))
	assert.NotEqual(t, read, write)
}

func keyRequest(key string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	return req
}

func captureWorkspace(got **tenant.Context, access *Access) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = tenant.FromContext(r.Context())
		*access = AccessFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyMiddlewareReadKey(t *testing.T) {
	ws := &models.Workspace{Tier: models.TierPro}
	key := "zen_read_k1"
	src := &fakeKeySource{
		byDigest: map[string]*models.Workspace{HashAPIKey(key): ws},
		writeSet: map[string]bool{},
	}
	mw := NewAPIKeyMiddleware(src, &memCache{})

	var tc *tenant.Context
	var access Access
	rec := httptest.NewRecorder()
	mw.RequireRead(captureWorkspace(&tc, &access)).ServeHTTP(rec, keyRequest(key))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, tc)
	assert.Nil(t, tc.Membership, "key auth carries no user membership")
	assert.Equal(t, AccessRead, access)
}

func TestAPIKeyMiddlewareReadKeyCannotWrite(t *testing.T) {
	ws := &models.Workspace{Tier: models.TierPro}
	key := "zen_read_k2"
	src := &fakeKeySource{
		byDigest: map[string]*models.Workspace{HashAPIKey(key): ws},
		writeSet: map[string]bool{},
	}
	mw := NewAPIKeyMiddleware(src, &memCache{})

	rec := httptest.NewRecorder()
	mw.RequireWrite(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, keyRequest(key))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyMiddlewareWriteKeyGrantsRead(t *testing.T) {
	ws := &models.Workspace{Tier: models.TierPro}
	key := "zen_write_k3"
	d := HashAPIKey(key)
	src := &fakeKeySource{
		byDigest: map[string]*models.Workspace{d: ws},
		writeSet: map[string]bool{d: true},
	}
	mw := NewAPIKeyMiddleware(src, &memCache{})

	var tc *tenant.Context
	var access Access
	rec := httptest.NewRecorder()
	mw.RequireRead(captureWorkspace(&tc, &access)).ServeHTTP(rec, keyRequest(key))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, AccessWrite, access)
}

func TestAPIKeyMiddlewareUnknownKey(t *testing.T) {
	mw := NewAPIKeyMiddleware(&fakeKeySource{}, &memCache{})

	rec := httptest.NewRecorder()
	mw.RequireRead(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, keyRequest("zen_read_bogus"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyMiddlewareMissingHeader(t *testing.T) {
	mw := NewAPIKeyMiddleware(&fakeKeySource{}, &memCache{})

	rec := httptest.NewRecorder()
	mw.RequireRead(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, keyRequest(""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyMiddlewareCachesLookup(t *testing.T) {
	ws := &models.Workspace{Tier: models.TierPro}
	key := "zen_read_k4"
	src := &fakeKeySource{
		byDigest: map[string]*models.Workspace{HashAPIKey(key): ws},
		writeSet: map[string]bool{},
	}
	mw := NewAPIKeyMiddleware(src, &memCache{})

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := mw.RequireRead(ok)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, keyRequest(key))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 1, src.lookups, "subsequent requests must hit the cache")
}
