package handlers

import (
	"net/http"

	"github.com/zenportal/backend/internal/billing"
	"github.com/zenportal/backend/internal/tenant"
)

type BillingHandler struct {
	svc *billing.Service
}

func NewBillingHandler(svc *billing.Service) *BillingHandler {
	return &BillingHandler{svc: svc}
}

// CreateCheckout opens a PayMongo hosted checkout for the Pro plan and
// returns its URL for the frontend to redirect to.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	if !canManage(tc) {
		writeError(w, http.StatusForbidden, "owner or admin role required")
		return
	}
	if tc.Workspace.IsPro() {
		writeError(w, http.StatusConflict, "workspace is already on the Pro plan")
		return
	}

	session, err := h.svc.CreateCheckout(r.Context(), tc.Workspace)
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *BillingHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())

	sub, active, err := h.svc.GetSubscription(r.Context(), tc.Workspace.ID)
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tier":         tc.Workspace.Tier,
		"subscription": sub,
		"active":       active,
	})
}
