package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/lrz80/chatbot-backend-sub000/internal/booking"
	"github.com/lrz80/chatbot-backend-sub000/internal/schedule"
	"github.com/lrz80/chatbot-backend-sub000/internal/tenant"
	"github.com/lrz80/chatbot-backend-sub000/pkg/logging"
)

// BookingService is the engine surface the webhook needs.
type BookingService interface {
	StepBooking(ctx context.Context, msg booking.Message) (booking.Reply, error)
	SearchSlots(ctx context.Context, tenantID string, target time.Time) ([]schedule.Slot, bool, error)
}

// WebhookHandler receives inbound channel messages and steps the booking
// conversation. Channel adapters (WhatsApp, SMS, webchat) all post the
// same normalized payload here.
type WebhookHandler struct {
	svc    BookingService
	logger *logging.Logger
}

// NewWebhookHandler creates the inbound message handler.
func NewWebhookHandler(svc BookingService, logger *logging.Logger) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{svc: svc, logger: logger}
}

// InboundMessage is the normalized payload channel adapters post.
type InboundMessage struct {
	TenantID  string `json:"tenant_id"`
	Channel   string `json:"channel"`
	ThreadKey string `json:"thread_key"`
	From      string `json:"from"`
	Text      string `json:"text"`
}

// MessageReply is the step result returned to the channel adapter.
// Handled false means the engine has nothing to say and the caller's own
// fallback (FAQ bot, human handoff) should answer.
type MessageReply struct {
	Handled bool   `json:"handled"`
	Reply   string `json:"reply,omitempty"`
	Step    string `json:"step"`
}

// HandleMessage processes one inbound message.
// POST /webhook/message
func (h *WebhookHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var in InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	in.TenantID = strings.TrimSpace(in.TenantID)
	in.Channel = strings.TrimSpace(strings.ToLower(in.Channel))
	if in.TenantID == "" || in.Channel == "" || strings.TrimSpace(in.Text) == "" {
		writeError(w, http.StatusBadRequest, "tenant_id, channel, and text are required")
		return
	}
	if in.ThreadKey == "" {
		if in.From == "" {
			writeError(w, http.StatusBadRequest, "thread_key or from is required")
			return
		}
		in.ThreadKey = in.Channel + ":" + in.TenantID + ":" + in.From
	}

	reply, err := h.svc.StepBooking(r.Context(), booking.Message{
		TenantID:  in.TenantID,
		Channel:   in.Channel,
		ThreadKey: in.ThreadKey,
		From:      in.From,
		Text:      in.Text,
	})
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown tenant")
			return
		}
		h.logger.Error("booking step failed",
			"tenant_id", in.TenantID,
			"channel", in.Channel,
			"error", err.Error(),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, MessageReply{
		Handled: reply.Handled,
		Reply:   reply.Text,
		Step:    string(reply.Step),
	})
}

// AvailabilityResponse lists open slots near a requested time.
type AvailabilityResponse struct {
	Slots    []schedule.Slot `json:"slots"`
	Degraded bool            `json:"degraded"`
}

// HandleAvailability returns open slots around a target time.
// GET /availability?tenant_id=...&at=RFC3339
func (h *WebhookHandler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	at, err := time.Parse(time.RFC3339, r.URL.Query().Get("at"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "at must be RFC3339")
		return
	}

	slots, degraded, err := h.svc.SearchSlots(r.Context(), tenantID, at)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown tenant")
			return
		}
		h.logger.Error("availability search failed", "tenant_id", tenantID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if slots == nil {
		slots = []schedule.Slot{}
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{Slots: slots, Degraded: degraded})
}
