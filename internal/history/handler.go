package history

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/explorerhq/webhook-relay/internal/httputil"
)

// Handler exposes the store over HTTP. Routes mirror the store interface:
// whole-list reads and whole-list replacements, plus export/import of the
// full history.
type Handler struct {
	store   Store
	version string
}

func NewHandler(store Store, version string) *Handler {
	return &Handler{store: store, version: version}
}

// Mount registers the history routes on the given router.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/api/conversations", h.ListConversations)
	r.Put("/api/conversations", h.ReplaceConversations)
	r.Get("/api/conversations/{id}/messages", h.ListMessages)
	r.Put("/api/conversations/{id}/messages", h.ReplaceMessages)
	r.Delete("/api/conversations/{id}", h.DeleteConversation)
	r.Get("/api/export", h.ExportHistory)
	r.Post("/api/import", h.ImportHistory)
}

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.store.Conversations(r.Context())
	if err != nil {
		h.storeError(w, r, "load conversations", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, conversations)
}

func (h *Handler) ReplaceConversations(w http.ResponseWriter, r *http.Request) {
	var conversations []Conversation
	if err := json.NewDecoder(r.Body).Decode(&conversations); err != nil {
		httputil.WriteBadRequestError(w, requestID(w), "Invalid payload")
		return
	}
	if err := h.store.SaveConversations(r.Context(), conversations); err != nil {
		h.storeError(w, r, "save conversations", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.store.Messages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, r, "load messages", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messages)
}

func (h *Handler) ReplaceMessages(w http.ResponseWriter, r *http.Request) {
	var messages []Message
	if err := json.NewDecoder(r.Body).Decode(&messages); err != nil {
		httputil.WriteBadRequestError(w, requestID(w), "Invalid payload")
		return
	}
	if err := h.store.SaveMessages(r.Context(), chi.URLParam(r, "id"), messages); err != nil {
		h.storeError(w, r, "save messages", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteConversation(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.storeError(w, r, "delete conversation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	export, err := ExportAll(r.Context(), h.store, h.version)
	if err != nil {
		h.storeError(w, r, "export history", err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="chat-history.json"`)
	httputil.WriteJSON(w, http.StatusOK, export)
}

func (h *Handler) ImportHistory(w http.ResponseWriter, r *http.Request) {
	var data Export
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		httputil.WriteBadRequestError(w, requestID(w), "Invalid payload")
		return
	}
	if err := ImportAll(r.Context(), h.store, &data); err != nil {
		h.storeError(w, r, "import history", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	slog.Error("history store failure",
		"op", op,
		"path", r.URL.Path,
		"error", err)
	httputil.WriteError(w, requestID(w), http.StatusInternalServerError, "History store unavailable")
}

func requestID(w http.ResponseWriter) string {
	return w.Header().Get("X-Request-ID")
}
