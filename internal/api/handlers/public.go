package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/zenportal/backend/internal/client"
	"github.com/zenportal/backend/internal/models"
	"github.com/zenportal/backend/internal/queue"
	"github.com/zenportal/backend/internal/tenant"
	"github.com/zenportal/backend/internal/worklog"
)

// PublicHandler serves the unauthenticated surfaces: the magic-link client
// report and the agency portal page.
type PublicHandler struct {
	clients *client.Service
	logs    *worklog.Service
	tenants *tenant.Service
	queue   *queue.Client
}

func NewPublicHandler(clients *client.Service, logs *worklog.Service, tenants *tenant.Service, q *queue.Client) *PublicHandler {
	return &PublicHandler{clients: clients, logs: logs, tenants: tenants, queue: q}
}

type reportBranding struct {
	Name        string  `json:"name"`
	Logo        *string `json:"logo,omitempty"`
	AccentColor string  `json:"accent_color"`
}

type reportClient struct {
	CompanyName string  `json:"company_name"`
	ContactName *string `json:"contact_name,omitempty"`
	HourlyRate  float64 `json:"hourly_rate"`
	Currency    string  `json:"currency"`
}

type reportResponse struct {
	Workspace reportBranding   `json:"workspace"`
	Client    reportClient     `json:"client"`
	Logs      []models.WorkLog `json:"logs"`
}

const reportLogLimit = 10

// Report renders a client's recent work given only their access token. The
// token is the sole credential; an unknown one is a plain 404.
func (h *PublicHandler) Report(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	c, err := h.clients.GetByAccessToken(r.Context(), token)
	if errors.Is(err, client.ErrNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		writeInternal(w, err)
		return
	}

	ws, err := h.tenants.GetWorkspaceByID(r.Context(), c.WorkspaceID)
	if err != nil {
		writeInternal(w, err)
		return
	}

	logs, err := h.logs.ListForClient(r.Context(), c.ID, reportLogLimit)
	if err != nil {
		writeInternal(w, err)
		return
	}

	// View tracking must never break the report itself.
	if err := h.clients.TouchLastViewed(r.Context(), c.ID); err != nil {
		slog.Warn("touch last viewed failed", "client_id", c.ID, "error", err)
	}
	if err := h.queue.EnqueueClientViewed(r.Context(), c.ID); err != nil {
		slog.Warn("enqueue client viewed failed", "client_id", c.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, reportResponse{
		Workspace: reportBranding{Name: ws.Name, Logo: ws.Logo, AccentColor: ws.AccentColor},
		Client: reportClient{
			CompanyName: c.CompanyName,
			ContactName: c.ContactName,
			HourlyRate:  c.HourlyRate,
			Currency:    c.Currency,
		},
		Logs: logs,
	})
}

// AgencyPortal exposes an agency's public branding page by portal slug.
func (h *PublicHandler) AgencyPortal(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	ws, err := h.tenants.GetWorkspaceByPortalSlug(r.Context(), slug)
	if err != nil {
		writeInternal(w, err)
		return
	}
	if ws == nil || ws.Kind != "agency" {
		writeError(w, http.StatusNotFound, "portal not found")
		return
	}

	writeJSON(w, http.StatusOK, reportBranding{
		Name:        ws.Name,
		Logo:        ws.Logo,
		AccentColor: ws.AccentColor,
	})
}
