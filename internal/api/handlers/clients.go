package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/zenportal/backend/internal/client"
	"github.com/zenportal/backend/internal/tenant"
	"github.com/zenportal/backend/internal/tier"
)

type ClientHandler struct {
	svc  *client.Service
	gate *tier.Gate
}

func NewClientHandler(svc *client.Service, gate *tier.Gate) *ClientHandler {
	return &ClientHandler{svc: svc, gate: gate}
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.svc.List(r.Context(), tenant.IDFromContext(r.Context()))
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())

	var req client.CreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	if req.CompanyName == "" {
		writeError(w, http.StatusBadRequest, "company_name is required")
		return
	}

	if err := h.gate.Allow(r.Context(), tc.Workspace, tier.OpCreateClient); err != nil {
		writeDenied(w, err)
		return
	}

	c, err := h.svc.Create(r.Context(), tc.Workspace.ID, req)
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "clientID")
	if !ok {
		return
	}

	c, err := h.svc.Get(r.Context(), tenant.IDFromContext(r.Context()), id)
	if errors.Is(err, client.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "clientID")
	if !ok {
		return
	}

	var req client.UpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Status != nil && *req.Status != "active" && *req.Status != "archived" {
		writeError(w, http.StatusBadRequest, "status must be active or archived")
		return
	}

	// Unarchiving counts as activating a client, so it passes the gate.
	if req.Status != nil && *req.Status == "active" {
		tc := tenant.FromContext(r.Context())
		existing, err := h.svc.Get(r.Context(), tc.Workspace.ID, id)
		if errors.Is(err, client.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			writeInternal(w, err)
			return
		}
		if existing.Status == "archived" {
			if err := h.gate.Allow(r.Context(), tc.Workspace, tier.OpCreateClient); err != nil {
				writeDenied(w, err)
				return
			}
		}
	}

	c, err := h.svc.Update(r.Context(), tenant.IDFromContext(r.Context()), id, req)
	if errors.Is(err, client.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ClientHandler) RotateToken(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "clientID")
	if !ok {
		return
	}

	c, err := h.svc.RotateAccessToken(r.Context(), tenant.IDFromContext(r.Context()), id)
	if errors.Is(err, client.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}
