package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/clearcheck/dossier-api/internal/model"
	"github.com/clearcheck/dossier-api/internal/store"
	"github.com/clearcheck/dossier-api/pkg/payment"
)

// Fulfiller launches fulfillment for a paid job. Satisfied by the
// orchestrator.
type Fulfiller interface {
	Fulfill(ctx context.Context, jobID string) (*model.Report, error)
}

// Handler is the payment webhook endpoint. It acknowledges every
// authenticated delivery with 200 so the provider stops redelivering;
// whether fulfillment actually launches is decided by the Guard.
type Handler struct {
	guard     *Guard
	store     store.Store
	fulfiller Fulfiller
	secret    string
}

// NewHandler creates the webhook handler. secret is the shared value the
// provider sends in the X-Webhook-Secret header; empty disables the check
// (local development only).
func NewHandler(guard *Guard, st store.Store, fulfiller Fulfiller, secret string) *Handler {
	return &Handler{guard: guard, store: st, fulfiller: fulfiller, secret: secret}
}

type ack struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// ServeHTTP handles POST /webhooks/payment.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	var event payment.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	if event.EventType == "" || event.PaymentID == "" {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	log := zap.L().With(
		zap.String("event_type", event.EventType),
		zap.String("payment_id", event.PaymentID),
		zap.String("job_id", event.ExternalReference),
	)

	if event.EventType != payment.EventPaymentConfirmed {
		log.Debug("webhook: ignoring event type")
		writeAck(w, ack{Received: true})
		return
	}

	if !h.guard.ShouldProcess(r.Context(), event.EventType, event.PaymentID) {
		log.Info("webhook: duplicate delivery short-circuited")
		writeAck(w, ack{Received: true, Duplicate: true})
		return
	}

	if err := h.markPaid(r.Context(), event); err != nil {
		log.Error("webhook: could not mark job paid", zap.Error(err))
		// Still acknowledged: the job stays pending and the payment marker
		// is burned, so the operator resolves it via the fulfill fallback.
		writeAck(w, ack{Received: true})
		return
	}

	log.Info("webhook: payment confirmed, launching fulfillment")
	go func(jobID string) {
		if _, err := h.fulfiller.Fulfill(context.Background(), jobID); err != nil {
			zap.L().Error("webhook: background fulfillment failed",
				zap.String("job_id", jobID),
				zap.Error(err))
		}
	}(event.ExternalReference)

	writeAck(w, ack{Received: true})
}

func (h *Handler) markPaid(ctx context.Context, event payment.WebhookEvent) error {
	job, err := h.store.GetJob(ctx, event.ExternalReference)
	if err != nil {
		return err
	}
	patch := model.StatusPatch(model.JobStatusPaid)
	if job.PaymentID == "" {
		patch.PaymentID = &event.PaymentID
	}
	return h.store.UpdateJob(ctx, job.ID, patch)
}

func writeAck(w http.ResponseWriter, a ack) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(a) //nolint:errcheck
}
