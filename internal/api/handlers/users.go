package handlers

import (
	"net/http"

	"github.com/zenportal/backend/internal/auth"
	"github.com/zenportal/backend/internal/models"
	"github.com/zenportal/backend/internal/tenant"
)

type UserHandler struct {
	svc *auth.Service
}

func NewUserHandler(svc *auth.Service) *UserHandler {
	return &UserHandler{svc: svc}
}

type meResponse struct {
	User      *models.User    `json:"user"`
	Workspace *tenant.Context `json:"workspace,omitempty"`
}

// Me returns the authenticated identity plus the workspace the request
// resolved to, so the frontend learns both in one round trip.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := tenant.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		User:      user,
		Workspace: tenant.FromContext(r.Context()),
	})
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := tenant.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var upd auth.ProfileUpdate
	if !decodeBody(w, r, &upd) {
		return
	}

	updated, err := h.svc.UpdateProfile(r.Context(), user.ID, upd)
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
