package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/zenportal/backend/internal/stats"
	"github.com/zenportal/backend/internal/tenant"
	"github.com/zenportal/backend/internal/tier"
)

type StatsHandler struct {
	svc   *stats.Service
	usage tier.UsageSource
	gate  *tier.Gate
}

func NewStatsHandler(svc *stats.Service, usage tier.UsageSource, gate *tier.Gate) *StatsHandler {
	return &StatsHandler{svc: svc, usage: usage, gate: gate}
}

func (h *StatsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Overview(r.Context(), tenant.IDFromContext(r.Context()))
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *StatsHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	months, _ := strconv.Atoi(r.URL.Query().Get("months"))
	history, err := h.svc.RevenueHistory(r.Context(), tenant.IDFromContext(r.Context()), months)
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *StatsHandler) TopClients(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	standings, err := h.svc.TopClients(r.Context(), tenant.IDFromContext(r.Context()), limit)
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, standings)
}

func (h *StatsHandler) Usage(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	u, err := h.svc.Usage(r.Context(), h.usage, tc.Workspace.ID, tc.Workspace.IsPro())
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Export streams the full log history as CSV. Pro only.
func (h *StatsHandler) Export(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())

	if err := h.gate.Allow(r.Context(), tc.Workspace, tier.OpExport); err != nil {
		writeDenied(w, err)
		return
	}

	filename := fmt.Sprintf("%s-worklogs-%s.csv", tc.Workspace.Slug, time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	flusher, _ := w.(stats.Flusher)
	if err := h.svc.ExportCSV(r.Context(), tc.Workspace.ID, w, flusher); err != nil {
		// Headers are gone; the truncated body is the only signal left.
		writeInternal(w, err)
	}
}
