package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zenportal/backend/internal/models"
	"github.com/zenportal/backend/internal/tenant"
)

const testSecret = "test-signing-secret"

type fakeStore struct {
	session      *models.Session
	user         *models.User
	sessionCalls int
}

func (f *fakeStore) GetSession(_ context.Context, id uuid.UUID) (*models.Session, error) {
	f.sessionCalls++
	if f.session != nil && f.session.ID == id {
		return f.session, nil
	}
	return nil, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return f.user, nil
}

type fakeTenantSource struct {
	first *tenant.Context
}

func (f *fakeTenantSource) ContextFor(_ context.Context, _, _ uuid.UUID) (*tenant.Context, error) {
	return nil, nil
}

func (f *fakeTenantSource) FirstContext(_ context.Context, _ uuid.UUID) (*tenant.Context, error) {
	return f.first, nil
}

func signTestToken(t *testing.T, userID, sessionID uuid.UUID) string {
	t.Helper()
	claims := Claims{
		Sub: userID.String(),
		Sid: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func testMiddleware(store *fakeStore, cache identityCache) *SessionMiddleware {
	wsID := uuid.New()
	resolver := tenant.NewResolver(&fakeTenantSource{first: &tenant.Context{
		Workspace:  &models.Workspace{ID: wsID},
		Membership: &models.Membership{WorkspaceID: wsID},
	}})
	return NewSessionMiddleware(testSecret, "zenportal_session", store, cache, resolver)
}

func authedRequest(token string, asCookie bool) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if asCookie {
		req.AddCookie(&http.Cookie{Name: "zenportal_session", Value: token})
	} else {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAuthenticateAttachesUserAndWorkspace(t *testing.T) {
	userID, sessionID := uuid.New(), uuid.New()
	store := &fakeStore{
		session: &models.Session{ID: sessionID, UserID: userID, ExpiresAt: time.Now().Add(time.Hour)},
		user:    &models.User{ID: userID, Email: "ana@example.com"},
	}
	mw := testMiddleware(store, &memCache{})

	var gotUser *models.User
	var gotTC *tenant.Context
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = tenant.UserFromContext(r.Context())
		gotTC = tenant.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(signTestToken(t, userID, sessionID), false))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotUser)
	assert.Equal(t, userID, gotUser.ID)
	require.NotNil(t, gotTC, "workspace must resolve through the fallback chain")
}

func TestAuthenticateAcceptsCookie(t *testing.T) {
	userID, sessionID := uuid.New(), uuid.New()
	store := &fakeStore{
		session: &models.Session{ID: sessionID, UserID: userID, ExpiresAt: time.Now().Add(time.Hour)},
		user:    &models.User{ID: userID},
	}
	mw := testMiddleware(store, &memCache{})

	rec := httptest.NewRecorder()
	mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, authedRequest(signTestToken(t, userID, sessionID), true))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticateCacheSkipsStore(t *testing.T) {
	userID, sessionID := uuid.New(), uuid.New()
	store := &fakeStore{
		session: &models.Session{ID: sessionID, UserID: userID, ExpiresAt: time.Now().Add(time.Hour)},
		user:    &models.User{ID: userID},
	}
	mw := testMiddleware(store, &memCache{})
	token := signTestToken(t, userID, sessionID)

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := mw.Authenticate(ok)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(token, false))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 1, store.sessionCalls, "verified tokens must be served from cache inside the TTL")
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	mw := testMiddleware(&fakeStore{}, &memCache{})

	rec := httptest.NewRecorder()
	mw.Authenticate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateRejectsForgedToken(t *testing.T) {
	userID, sessionID := uuid.New(), uuid.New()
	claims := Claims{
		Sub: userID.String(),
		Sid: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	mw := testMiddleware(&fakeStore{}, &memCache{})
	rec := httptest.NewRecorder()
	mw.Authenticate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, authedRequest(forged, false))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateRejectsRevokedSession(t *testing.T) {
	userID, sessionID := uuid.New(), uuid.New()
	// Store has no such session: it was deleted by logout.
	store := &fakeStore{user: &models.User{ID: userID}}
	mw := testMiddleware(store, &memCache{})

	rec := httptest.NewRecorder()
	mw.Authenticate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, authedRequest(signTestToken(t, userID, sessionID), false))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireWorkspace(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireWorkspace(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clients", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	wsID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/clients", nil)
	req = req.WithContext(tenant.WithContext(req.Context(),
		&tenant.Context{Workspace: &models.Workspace{ID: wsID}}))

	rec = httptest.NewRecorder()
	RequireWorkspace(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
