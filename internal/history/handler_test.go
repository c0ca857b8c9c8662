package history

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestRouter(store Store) chi.Router {
	r := chi.NewRouter()
	NewHandler(store, "test").Mount(r)
	return r
}

func TestHandler_ConversationsRoundTrip(t *testing.T) {
	r := newTestRouter(NewMemoryStore())

	body := `[{"id":"c1","title":"First chat"},{"id":"c2","title":"Second chat"}]`
	req := httptest.NewRequest(http.MethodPut, "/api/conversations", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("PUT expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/conversations", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET expected 200, got %d", rec.Code)
	}
	var conversations []Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &conversations); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(conversations) != 2 || conversations[0].Title != "First chat" {
		t.Errorf("unexpected conversations: %+v", conversations)
	}
}

func TestHandler_MessagesRoundTrip(t *testing.T) {
	r := newTestRouter(NewMemoryStore())

	body := `[{"id":"m1","role":"user","content":"hello"}]`
	req := httptest.NewRequest(http.MethodPut, "/api/conversations/c1/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("PUT expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/conversations/c1/messages", nil))
	var messages []Message
	if err := json.Unmarshal(rec.Body.Bytes(), &messages); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(messages) != 1 || messages[0].Content != "hello" {
		t.Errorf("unexpected messages: %+v", messages)
	}
}

func TestHandler_DeleteConversation(t *testing.T) {
	store := NewMemoryStore()
	store.SaveConversations(context.Background(), []Conversation{{ID: "c1"}, {ID: "c2"}})
	r := newTestRouter(store)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/conversations/c1", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE expected 204, got %d", rec.Code)
	}

	remaining, _ := store.Conversations(context.Background())
	if len(remaining) != 1 || remaining[0].ID != "c2" {
		t.Errorf("expected c2 only, got %+v", remaining)
	}
}

func TestHandler_InvalidBodyIs400(t *testing.T) {
	r := newTestRouter(NewMemoryStore())

	for _, path := range []string{"/api/conversations", "/api/conversations/c1/messages"} {
		req := httptest.NewRequest(http.MethodPut, path, strings.NewReader("not json"))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Invalid payload") {
			t.Errorf("%s: expected error envelope, got %s", path, rec.Body.String())
		}
	}
}

func TestHandler_ExportImport(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.SaveConversations(ctx, []Conversation{{ID: "c1", Title: "Chat"}})
	store.SaveMessages(ctx, "c1", []Message{{ID: "m1", Role: "user", Content: "hello"}})
	r := newTestRouter(store)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/export", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("export expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "chat-history.json") {
		t.Errorf("expected attachment disposition, got %q", got)
	}
	var export Export
	if err := json.Unmarshal(rec.Body.Bytes(), &export); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if export.Version != "test" || len(export.Conversations) != 1 {
		t.Errorf("unexpected export: %+v", export)
	}

	// Feed the export into a fresh store through the import route.
	fresh := NewMemoryStore()
	r2 := newTestRouter(fresh)
	raw, _ := json.Marshal(export)
	rec = httptest.NewRecorder()
	r2.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader(string(raw))))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("import expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	messages, _ := fresh.Messages(ctx, "c1")
	if len(messages) != 1 || messages[0].Content != "hello" {
		t.Errorf("imported messages don't match: %+v", messages)
	}
}

// failingStore errors on every operation.
type failingStore struct{}

var errStore = errors.New("store down")

func (failingStore) Conversations(context.Context) ([]Conversation, error) { return nil, errStore }
func (failingStore) SaveConversations(context.Context, []Conversation) error {
	return errStore
}
func (failingStore) Messages(context.Context, string) ([]Message, error) { return nil, errStore }
func (failingStore) SaveMessages(context.Context, string, []Message) error {
	return errStore
}
func (failingStore) DeleteConversation(context.Context, string) error { return errStore }
func (failingStore) Close() error                                     { return nil }

func TestHandler_StoreFailureIs500(t *testing.T) {
	r := newTestRouter(failingStore{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/conversations", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "History store unavailable") {
		t.Errorf("expected error envelope, got %s", rec.Body.String())
	}
}
