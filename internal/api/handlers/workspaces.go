package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/zenportal/backend/internal/auth"
	"github.com/zenportal/backend/internal/models"
	"github.com/zenportal/backend/internal/tenant"
	"github.com/zenportal/backend/internal/tier"
)

type WorkspaceHandler struct {
	svc  *tenant.Service
	gate *tier.Gate
}

func NewWorkspaceHandler(svc *tenant.Service, gate *tier.Gate) *WorkspaceHandler {
	return &WorkspaceHandler{svc: svc, gate: gate}
}

func (h *WorkspaceHandler) List(w http.ResponseWriter, r *http.Request) {
	user := tenant.UserFromContext(r.Context())
	listings, err := h.svc.ListWorkspaces(r.Context(), user.ID)
	if err != nil {
		writeInternal(w, err)
		return
	}
	if listings == nil {
		listings = []tenant.WorkspaceListing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *WorkspaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := tenant.UserFromContext(r.Context())

	var req tenant.CreateWorkspaceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if req.Name == "" || req.Slug == "" {
		writeError(w, http.StatusBadRequest, "name and slug are required")
		return
	}
	if req.Kind != "freelancer" && req.Kind != "agency" {
		writeError(w, http.StatusBadRequest, "kind must be freelancer or agency")
		return
	}

	ws, err := h.svc.CreateWorkspace(r.Context(), user.ID, req)
	if errors.Is(err, tenant.ErrSlugTaken) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

func (h *WorkspaceHandler) Current(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tenant.FromContext(r.Context()))
}

func (h *WorkspaceHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	if !canManage(tc) {
		writeError(w, http.StatusForbidden, "owner or admin role required")
		return
	}

	var upd tenant.SettingsUpdate
	if !decodeBody(w, r, &upd) {
		return
	}

	ws, err := h.svc.UpdateSettings(r.Context(), tc.Workspace.ID, upd)
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (h *WorkspaceHandler) Members(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.ListMembers(r.Context(), tenant.IDFromContext(r.Context()))
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// Invite adds an existing account directly, or records an invitation for an
// email with no account yet.
func (h *WorkspaceHandler) Invite(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	user := tenant.UserFromContext(r.Context())
	if !canManage(tc) {
		writeError(w, http.StatusForbidden, "owner or admin role required")
		return
	}

	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleMember
	}
	if req.Role != models.RoleAdmin && req.Role != models.RoleMember {
		writeError(w, http.StatusBadRequest, "role must be admin or member")
		return
	}

	existing, err := h.svc.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		writeInternal(w, err)
		return
	}

	if existing != nil {
		err := h.svc.AddMember(r.Context(), tc.Workspace.ID, existing.ID, req.Role)
		if errors.Is(err, tenant.ErrAlreadyMember) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		if err != nil {
			writeInternal(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"status": "member added"})
		return
	}

	inv, err := h.svc.CreateInvitation(r.Context(), tc.Workspace.ID, user.ID, req.Email, req.Role)
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *WorkspaceHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	user := tenant.UserFromContext(r.Context())
	token := chi.URLParam(r, "token")

	ws, err := h.svc.AcceptInvitation(r.Context(), token, user)
	if errors.Is(err, tenant.ErrInvitationInvalid) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

// RotateAPIKeys mints a fresh key pair and returns the raw keys exactly
// once. Pro only; previously issued keys stop working immediately.
func (h *WorkspaceHandler) RotateAPIKeys(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	if !canManage(tc) {
		writeError(w, http.StatusForbidden, "owner or admin role required")
		return
	}

	if err := h.gate.Allow(r.Context(), tc.Workspace, tier.OpIssueAPIKeys); err != nil {
		writeDenied(w, err)
		return
	}

	readKey, writeKey := auth.GenerateKeyPair()
	err := h.svc.RotateAPIKeys(r.Context(), tc.Workspace.ID,
		auth.HashAPIKey(readKey), auth.HashAPIKey(writeKey))
	if err != nil {
		writeInternal(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"read_key":  readKey,
		"write_key": writeKey,
	})
}

func (h *WorkspaceHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	user := tenant.UserFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "workspaceID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid workspace id")
		return
	}

	// Only memberships can become the default.
	tc, err := h.svc.ContextFor(r.Context(), user.ID, id)
	if err != nil {
		writeInternal(w, err)
		return
	}
	if tc == nil {
		writeError(w, http.StatusNotFound, "workspace not found")
		return
	}

	if err := h.svc.SetDefaultWorkspace(r.Context(), user.ID, id); err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "default updated"})
}

func canManage(tc *tenant.Context) bool {
	return tc != nil && tc.Membership != nil &&
		(tc.Membership.Role == models.RoleOwner || tc.Membership.Role == models.RoleAdmin)
}
