package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lrz80/chatbot-backend-sub000/internal/transcript"
	"github.com/lrz80/chatbot-backend-sub000/pkg/logging"
)

// AdminTranscriptsHandler exposes conversation transcripts to the admin
// API for auditing engine replies.
type AdminTranscriptsHandler struct {
	store  *transcript.Store
	logger *logging.Logger
}

// NewAdminTranscriptsHandler creates the transcripts admin handler.
func NewAdminTranscriptsHandler(store *transcript.Store, logger *logging.Logger) *AdminTranscriptsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminTranscriptsHandler{store: store, logger: logger}
}

// ThreadsResponse lists a tenant's conversation threads.
type ThreadsResponse struct {
	Threads []transcript.Thread `json:"threads"`
	Count   int                 `json:"count"`
}

// MessagesResponse lists one thread's messages, oldest first.
type MessagesResponse struct {
	Messages []transcript.Message `json:"messages"`
	Count    int                  `json:"count"`
}

// ListThreads returns the most recently active threads.
// GET /admin/tenants/{tenantID}/threads?limit=
func (h *AdminTranscriptsHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "missing tenantID")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	threads, err := h.store.Threads(r.Context(), tenantID, limit)
	if err != nil {
		h.logger.Error("failed to list threads", "tenant_id", tenantID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, ThreadsResponse{Threads: threads, Count: len(threads)})
}

// ListMessages returns one thread's transcript. The thread key arrives as
// a query parameter because keys contain colons.
// GET /admin/tenants/{tenantID}/messages?thread_key=&limit=
func (h *AdminTranscriptsHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	threadKey := r.URL.Query().Get("thread_key")
	if tenantID == "" || threadKey == "" {
		writeError(w, http.StatusBadRequest, "missing tenantID or thread_key")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	messages, err := h.store.List(r.Context(), tenantID, threadKey, limit)
	if err != nil {
		h.logger.Error("failed to list messages", "tenant_id", tenantID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, MessagesResponse{Messages: messages, Count: len(messages)})
}
