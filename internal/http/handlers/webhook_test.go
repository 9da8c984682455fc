package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lrz80/chatbot-backend-sub000/internal/booking"
	"github.com/lrz80/chatbot-backend-sub000/internal/schedule"
	"github.com/lrz80/chatbot-backend-sub000/internal/tenant"
)

type fakeBookingService struct {
	lastMsg   booking.Message
	reply     booking.Reply
	stepErr   error
	slots     []schedule.Slot
	degraded  bool
	searchErr error
}

func (f *fakeBookingService) StepBooking(_ context.Context, msg booking.Message) (booking.Reply, error) {
	f.lastMsg = msg
	return f.reply, f.stepErr
}

func (f *fakeBookingService) SearchSlots(_ context.Context, _ string, _ time.Time) ([]schedule.Slot, bool, error) {
	return f.slots, f.degraded, f.searchErr
}

func postMessage(t *testing.T, h *WebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/message", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleMessage(rec, req)
	return rec
}

func TestHandleMessageRejectsBadInput(t *testing.T) {
	h := NewWebhookHandler(&fakeBookingService{}, nil)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{not json"},
		{"missing tenant", `{"channel":"sms","text":"hi","from":"+15551234567"}`},
		{"missing channel", `{"tenant_id":"t1","text":"hi","from":"+15551234567"}`},
		{"blank text", `{"tenant_id":"t1","channel":"sms","text":"  ","from":"+15551234567"}`},
		{"no thread or from", `{"tenant_id":"t1","channel":"sms","text":"hi"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := postMessage(t, h, tt.body); rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandleMessageDerivesThreadKey(t *testing.T) {
	svc := &fakeBookingService{reply: booking.Reply{Handled: true, Text: "ok", Step: booking.StepAskDaypart}}
	h := NewWebhookHandler(svc, nil)

	rec := postMessage(t, h, `{"tenant_id":"t1","channel":"WhatsApp","from":"+15551234567","text":"book me"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.lastMsg.ThreadKey != "whatsapp:t1:+15551234567" {
		t.Fatalf("thread key = %q", svc.lastMsg.ThreadKey)
	}
	if svc.lastMsg.Channel != "whatsapp" {
		t.Fatalf("channel = %q, want lowercased", svc.lastMsg.Channel)
	}

	var out MessageReply
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Handled || out.Reply != "ok" || out.Step != string(booking.StepAskDaypart) {
		t.Fatalf("reply = %+v", out)
	}
}

func TestHandleMessageUnknownTenant(t *testing.T) {
	svc := &fakeBookingService{stepErr: tenant.ErrNotFound}
	h := NewWebhookHandler(svc, nil)

	rec := postMessage(t, h, `{"tenant_id":"ghost","channel":"sms","thread_key":"k","text":"hi"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleAvailability(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, loc)
	svc := &fakeBookingService{slots: []schedule.Slot{{Start: start, End: start.Add(45 * time.Minute)}}}
	h := NewWebhookHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/availability?tenant_id=t1&at=2026-03-02T10:00:00-05:00", nil)
	rec := httptest.NewRecorder()
	h.HandleAvailability(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out AvailabilityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Slots) != 1 || out.Degraded {
		t.Fatalf("response = %+v", out)
	}
}

func TestHandleAvailabilityValidation(t *testing.T) {
	h := NewWebhookHandler(&fakeBookingService{}, nil)

	for _, target := range []string{
		"/availability?at=2026-03-02T10:00:00Z",
		"/availability?tenant_id=t1&at=tomorrow",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		h.HandleAvailability(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

func TestHandleAvailabilityEmptySlots(t *testing.T) {
	h := NewWebhookHandler(&fakeBookingService{degraded: true}, nil)

	req := httptest.NewRequest(http.MethodGet, "/availability?tenant_id=t1&at=2026-03-02T10:00:00Z", nil)
	rec := httptest.NewRecorder()
	h.HandleAvailability(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, `"slots":[]`) {
		t.Fatalf("slots should encode as empty array, got %s", body)
	}
	if !strings.Contains(body, `"degraded":true`) {
		t.Fatalf("degraded flag missing, got %s", body)
	}
}
