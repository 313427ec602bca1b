package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/zenportal/backend/internal/queue"
	"github.com/zenportal/backend/internal/tenant"
	"github.com/zenportal/backend/internal/tier"
	"github.com/zenportal/backend/internal/worklog"
)

// ProgrammaticHandler serves /api/v1, the key-authenticated surface. The
// key middleware has already attached the owning workspace; there is no
// user identity, so writes are attributed to the workspace owner.
type ProgrammaticHandler struct {
	logs    *worklog.Service
	tenants *tenant.Service
	gate    *tier.Gate
	queue   *queue.Client
}

func NewProgrammaticHandler(logs *worklog.Service, tenants *tenant.Service, gate *tier.Gate, q *queue.Client) *ProgrammaticHandler {
	return &ProgrammaticHandler{logs: logs, tenants: tenants, gate: gate, queue: q}
}

func (h *ProgrammaticHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	f := worklog.ListFilter{}
	if v := r.URL.Query().Get("client_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid client_id")
			return
		}
		f.ClientID = &id
	}
	f.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	f.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	logs, err := h.logs.ListWithClient(r.Context(), tenant.IDFromContext(r.Context()), f)
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *ProgrammaticHandler) CreateLog(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())

	var req worklog.CreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validCreate(w, &req) {
		return
	}

	if err := h.gate.Allow(r.Context(), tc.Workspace, tier.OpCreateLog); err != nil {
		writeDenied(w, err)
		return
	}
	req.VideoURL, req.AttachmentURL = h.gate.FilterProofLinks(tc.Workspace, req.VideoURL, req.AttachmentURL)

	ownerID, err := h.tenants.GetOwnerID(r.Context(), tc.Workspace.ID)
	if err != nil {
		writeInternal(w, err)
		return
	}

	log, err := h.logs.Create(r.Context(), tc.Workspace.ID, ownerID, req)
	if errors.Is(err, worklog.ErrClientInvalid) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeInternal(w, err)
		return
	}

	if err := h.queue.EnqueueLogNotification(r.Context(), log.ID); err != nil {
		slog.Error("enqueue log notification failed", "log_id", log.ID, "error", err)
	}

	writeJSON(w, http.StatusCreated, log)
}
