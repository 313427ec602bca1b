package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/zenportal/backend/internal/billing"
	"github.com/zenportal/backend/internal/config"
	"github.com/zenportal/backend/internal/queue"
)

type WebhookHandler struct {
	svc   *billing.Service
	queue *queue.Client
	cfg   config.PayMongoConfig
}

func NewWebhookHandler(svc *billing.Service, q *queue.Client, cfg config.PayMongoConfig) *WebhookHandler {
	return &WebhookHandler{svc: svc, queue: q, cfg: cfg}
}

// PayMongo receives payment-provider events. Signature verification runs
// against the raw body before any decoding; replays are acknowledged with
// 200 so the provider stops retrying.
func (h *WebhookHandler) PayMongo(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	err = billing.VerifySignature(h.cfg.WebhookSecret, r.Header.Get(billing.SignatureHeader), body, h.cfg.LiveMode())
	if err != nil {
		slog.Warn("webhook signature rejected", "error", err)
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	ev, err := billing.DecodeEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	if err := h.svc.ProcessEvent(r.Context(), ev); err != nil {
		if errors.Is(err, billing.ErrAlreadyProcessed) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "already processed"})
			return
		}
		// 500 makes the provider redeliver; the transaction rolled back so
		// the retry starts clean.
		writeInternal(w, err)
		return
	}

	if ev.CheckoutPaid != nil {
		if wsID, perr := uuid.Parse(ev.CheckoutPaid.WorkspaceID); perr == nil {
			if qerr := h.queue.EnqueueSubscriptionEmail(r.Context(), wsID, queue.SubscriptionActivated); qerr != nil {
				slog.Error("enqueue subscription email failed", "workspace_id", wsID, "error", qerr)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}
