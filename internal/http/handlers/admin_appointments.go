package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lrz80/chatbot-backend-sub000/internal/booking"
	"github.com/lrz80/chatbot-backend-sub000/pkg/logging"
)

// AdminAppointmentsHandler exposes stored appointment records to the
// admin API.
type AdminAppointmentsHandler struct {
	repo   *booking.PostgresRepository
	logger *logging.Logger
}

// NewAdminAppointmentsHandler creates the appointments admin handler.
func NewAdminAppointmentsHandler(repo *booking.PostgresRepository, logger *logging.Logger) *AdminAppointmentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminAppointmentsHandler{repo: repo, logger: logger}
}

// AppointmentItem is one appointment in admin responses.
type AppointmentItem struct {
	ID            string  `json:"id"`
	TenantID      string  `json:"tenant_id"`
	Channel       string  `json:"channel"`
	CustomerName  string  `json:"customer_name"`
	CustomerEmail string  `json:"customer_email,omitempty"`
	CustomerPhone string  `json:"customer_phone,omitempty"`
	Purpose       string  `json:"purpose,omitempty"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	TimeZone      string  `json:"time_zone"`
	Status        string  `json:"status"`
	FailureReason string  `json:"failure_reason,omitempty"`
	EventID       string  `json:"event_id,omitempty"`
	EventLink     string  `json:"event_link,omitempty"`
	CreatedAt     string  `json:"created_at"`
	ConfirmedAt   *string `json:"confirmed_at,omitempty"`
}

func appointmentItem(a booking.Appointment) AppointmentItem {
	item := AppointmentItem{
		ID:            a.ID.String(),
		TenantID:      a.TenantID,
		Channel:       a.Channel,
		CustomerName:  a.CustomerName,
		CustomerEmail: a.CustomerEmail,
		CustomerPhone: a.CustomerPhone,
		Purpose:       a.Purpose,
		StartTime:     a.StartTime.Format(time.RFC3339),
		EndTime:       a.EndTime.Format(time.RFC3339),
		TimeZone:      a.TimeZone,
		Status:        string(a.Status),
		FailureReason: a.FailureReason,
		EventID:       a.EventID,
		EventLink:     a.EventLink,
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
	if a.ConfirmedAt != nil {
		confirmed := a.ConfirmedAt.Format(time.RFC3339)
		item.ConfirmedAt = &confirmed
	}
	return item
}

// AppointmentsListResponse is the list payload.
type AppointmentsListResponse struct {
	Appointments []AppointmentItem `json:"appointments"`
	Count        int               `json:"count"`
}

// List returns a tenant's appointments, newest start time first.
// GET /admin/tenants/{tenantID}/appointments?status=&limit=
func (h *AdminAppointmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "missing tenantID")
		return
	}

	status := booking.AppointmentStatus(r.URL.Query().Get("status"))
	switch status {
	case "", booking.StatusPending, booking.StatusConfirmed, booking.StatusFailed, booking.StatusCanceled:
	default:
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	appts, err := h.repo.ListByTenant(r.Context(), tenantID, status, limit)
	if err != nil {
		h.logger.Error("failed to list appointments", "tenant_id", tenantID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]AppointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, appointmentItem(a))
	}
	writeJSON(w, http.StatusOK, AppointmentsListResponse{Appointments: items, Count: len(items)})
}

// Get returns one appointment by ID, tenant scoped.
// GET /admin/tenants/{tenantID}/appointments/{appointmentID}
func (h *AdminAppointmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if tenantID == "" || err != nil {
		writeError(w, http.StatusBadRequest, "missing tenantID or invalid appointmentID")
		return
	}

	appt, err := h.repo.GetByID(r.Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, booking.ErrAppointmentNotFound) {
			writeError(w, http.StatusNotFound, "appointment not found")
			return
		}
		h.logger.Error("failed to load appointment", "tenant_id", tenantID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, appointmentItem(appt))
}
