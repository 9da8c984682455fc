package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lrz80/chatbot-backend-sub000/internal/schedule"
	"github.com/lrz80/chatbot-backend-sub000/internal/tenant"
	"github.com/lrz80/chatbot-backend-sub000/pkg/logging"
)

// AdminTenantsHandler reads and writes per-tenant scheduling settings.
type AdminTenantsHandler struct {
	store  *tenant.Store
	logger *logging.Logger
}

// NewAdminTenantsHandler creates the tenant settings admin handler.
func NewAdminTenantsHandler(store *tenant.Store, logger *logging.Logger) *AdminTenantsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminTenantsHandler{store: store, logger: logger}
}

// SettingsPayload is the wire shape of tenant settings. Hours are keyed
// by lowercase weekday name; a missing day means closed.
type SettingsPayload struct {
	TenantID          string                        `json:"tenant_id"`
	TimeZone          string                        `json:"time_zone"`
	Language          string                        `json:"language"`
	PurposeRequired   bool                          `json:"purpose_required"`
	SlotDurationMin   int                           `json:"slot_duration_min"`
	BufferMin         int                           `json:"buffer_min"`
	MinLeadMin        int                           `json:"min_lead_min"`
	Hours             map[string]*schedule.DayHours `json:"hours"`
	CalendarID        string                        `json:"calendar_id"`
	CalendarConnected bool                          `json:"calendar_connected"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func settingsPayload(s tenant.Settings) SettingsPayload {
	hours := make(map[string]*schedule.DayHours, len(s.Hours))
	for day, h := range s.Hours {
		if h != nil {
			hours[strings.ToLower(day.String())] = h
		}
	}
	return SettingsPayload{
		TenantID:          s.TenantID,
		TimeZone:          s.TimeZone,
		Language:          s.Language,
		PurposeRequired:   s.PurposeRequired,
		SlotDurationMin:   s.SlotDurationMin,
		BufferMin:         s.BufferMin,
		MinLeadMin:        s.MinLeadMin,
		Hours:             hours,
		CalendarID:        s.CalendarID,
		CalendarConnected: s.CalendarConnected,
	}
}

func (p SettingsPayload) settings(tenantID string) (tenant.Settings, error) {
	hours := make(schedule.WeeklyHours, len(p.Hours))
	for name, h := range p.Hours {
		day, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			return tenant.Settings{}, errors.New("unknown weekday " + name)
		}
		hours[day] = h
	}
	return tenant.Settings{
		TenantID:          tenantID,
		TimeZone:          p.TimeZone,
		Language:          p.Language,
		PurposeRequired:   p.PurposeRequired,
		SlotDurationMin:   p.SlotDurationMin,
		BufferMin:         p.BufferMin,
		MinLeadMin:        p.MinLeadMin,
		Hours:             hours,
		CalendarID:        p.CalendarID,
		CalendarConnected: p.CalendarConnected,
	}, nil
}

// Get returns a tenant's stored settings.
// GET /admin/tenants/{tenantID}/settings
func (h *AdminTenantsHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "missing tenantID")
		return
	}

	set, err := h.store.Get(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			writeError(w, http.StatusNotFound, "tenant not found")
			return
		}
		h.logger.Error("failed to load tenant settings", "tenant_id", tenantID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, settingsPayload(set))
}

// Upsert creates or replaces a tenant's settings.
// PUT /admin/tenants/{tenantID}/settings
func (h *AdminTenantsHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "missing tenantID")
		return
	}

	var payload SettingsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	set, err := payload.settings(tenantID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := set.Hours.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Upsert(r.Context(), set); err != nil {
		h.logger.Error("failed to save tenant settings", "tenant_id", tenantID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, settingsPayload(set))
}
