package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/zenportal/backend/internal/auth"
	"github.com/zenportal/backend/internal/models"
)

type AuthHandler struct {
	svc        *auth.Service
	cookieName string
	ttl        time.Duration
	secure     bool
}

func NewAuthHandler(svc *auth.Service, cookieName string, ttlDays int, secure bool) *AuthHandler {
	return &AuthHandler{
		svc:        svc,
		cookieName: cookieName,
		ttl:        time.Duration(ttlDays) * 24 * time.Hour,
		secure:     secure,
	}
}

type sessionResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "email and name are required")
		return
	}

	user, token, err := h.svc.Signup(r.Context(), req, clientAddr(r), r.UserAgent())
	if errors.Is(err, auth.ErrWeakPassword) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, auth.ErrEmailTaken) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeInternal(w, err)
		return
	}

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, sessionResponse{User: user, Token: token})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	user, token, err := h.svc.Login(r.Context(),
		strings.ToLower(strings.TrimSpace(req.Email)), req.Password,
		clientAddr(r), r.UserAgent())
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		writeInternal(w, err)
		return
	}

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, sessionResponse{User: user, Token: token})
}

// Logout revokes the session row. The cached verification entry is not
// touched and ages out within its TTL.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.extractToken(r)
	if token != "" {
		if sid, err := h.svc.ParseSessionID(token); err == nil {
			if err := h.svc.Logout(r.Context(), sid); err != nil {
				writeInternal(w, err)
				return
			}
		}
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.ttl),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) extractToken(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(a, "Bearer ") {
		return strings.TrimPrefix(a, "Bearer ")
	}
	if c, err := r.Cookie(h.cookieName); err == nil {
		return c.Value
	}
	return ""
}

func clientAddr(r *http.Request) string {
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		return host[:i]
	}
	return host
}
