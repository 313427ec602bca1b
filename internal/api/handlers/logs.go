package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"github.com/google/uuid"
	"github.com/zenportal/backend/internal/queue"
	"github.com/zenportal/backend/internal/tenant"
	"github.com/zenportal/backend/internal/tier"
	"github.com/zenportal/backend/internal/worklog"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type LogHandler struct {
	svc   *worklog.Service
	gate  *tier.Gate
	queue *queue.Client
}

func NewLogHandler(svc *worklog.Service, gate *tier.Gate, q *queue.Client) *LogHandler {
	return &LogHandler{svc: svc, gate: gate, queue: q}
}

func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
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

	logs, err := h.svc.List(r.Context(), tenant.IDFromContext(r.Context()), f)
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *LogHandler) Create(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	user := tenant.UserFromContext(r.Context())

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

	log, err := h.svc.Create(r.Context(), tc.Workspace.ID, user.ID, req)
	if errors.Is(err, worklog.ErrClientInvalid) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeInternal(w, err)
		return
	}

	// Notification delivery is best effort; the log is already committed.
	if err := h.queue.EnqueueLogNotification(r.Context(), log.ID); err != nil {
		slog.Error("enqueue log notification failed", "log_id", log.ID, "error", err)
	}

	writeJSON(w, http.StatusCreated, log)
}

func (h *LogHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "logID")
	if !ok {
		return
	}

	log, err := h.svc.Get(r.Context(), tenant.IDFromContext(r.Context()), id)
	if errors.Is(err, worklog.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, log)
}

func (h *LogHandler) Update(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	user := tenant.UserFromContext(r.Context())

	id, ok := pathID(w, r, "logID")
	if !ok {
		return
	}

	var req worklog.UpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Date != nil && !datePattern.MatchString(*req.Date) {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	// Free workspaces cannot attach proof links through edits either.
	if !tc.Workspace.IsPro() {
		req.VideoURL, req.AttachmentURL = nil, nil
	}

	log, err := h.svc.Update(r.Context(), tc.Workspace.ID, user.ID, id, req)
	if errors.Is(err, worklog.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if errors.Is(err, worklog.ErrNotAuthor) {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, log)
}

func validCreate(w http.ResponseWriter, req *worklog.CreateRequest) bool {
	switch {
	case req.ClientID == uuid.Nil:
		writeError(w, http.StatusBadRequest, "client_id is required")
	case !datePattern.MatchString(req.Date):
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
	case req.Summary == "":
		writeError(w, http.StatusBadRequest, "summary is required")
	case req.HoursWorked <= 0 || req.HoursWorked > 24:
		writeError(w, http.StatusBadRequest, "hours_worked must be between 0 and 24")
	default:
		return true
	}
	return false
}
