package relay

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/explorerhq/webhook-relay/internal/httputil"
)

func upstreamResponse(status int, contentType, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {contentType}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestBridge_JSONReEmit(t *testing.T) {
	w := httptest.NewRecorder()
	mode := bridge(w, "req-1", upstreamResponse(200, "application/json", `{"reply":"ok"}`), false)

	if mode != "json" {
		t.Errorf("expected mode json, got %q", mode)
	}
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
	if w.Body.String() != `{"reply":"ok"}` {
		t.Errorf("unexpected body %q", w.Body.String())
	}
}

func TestBridge_JSONEvenWhenCallerWantsStream(t *testing.T) {
	// A JSON reply is re-emitted as JSON regardless of the stream flag.
	w := httptest.NewRecorder()
	mode := bridge(w, "req-1", upstreamResponse(200, "application/json", `{"reply":"ok"}`), true)

	if mode != "json" {
		t.Errorf("expected mode json, got %q", mode)
	}
}

func TestBridge_PlainTextFallbackSynthesizesSSE(t *testing.T) {
	w := httptest.NewRecorder()
	mode := bridge(w, "req-1", upstreamResponse(200, "text/plain", "hello"), true)

	if mode != "fallback" {
		t.Errorf("expected mode fallback, got %q", mode)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}

	expected := "event: message\ndata: {\"content\":\"hello\"}\n\nevent: done\n\n"
	if w.Body.String() != expected {
		t.Errorf("unexpected SSE framing:\ngot  %q\nwant %q", w.Body.String(), expected)
	}
}

func TestBridge_EmptyBody(t *testing.T) {
	w := httptest.NewRecorder()
	mode := bridge(w, "req-1", upstreamResponse(200, "application/json", ""), false)

	if mode != "error" {
		t.Errorf("expected mode error, got %q", mode)
	}
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
	var resp httputil.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error != "Empty response from webhook" {
		t.Errorf("unexpected error %q", resp.Error)
	}
}

func TestBridge_SSEPassthrough(t *testing.T) {
	stream := "event: token\ndata: {\"content\":\"he\"}\n\nevent: token\ndata: {\"content\":\"llo\"}\n\nevent: done\n\n"
	w := httptest.NewRecorder()
	mode := bridge(w, "req-1", upstreamResponse(200, "text/event-stream", stream), true)

	if mode != "stream" {
		t.Errorf("expected mode stream, got %q", mode)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("expected no-cache, got %q", cc)
	}
	if w.Body.String() != stream {
		t.Errorf("passthrough must be byte-for-byte:\ngot  %q\nwant %q", w.Body.String(), stream)
	}
}

func TestBridge_StreamIgnoredWhenCallerDidNotAsk(t *testing.T) {
	// Without the stream flag, an SSE body is treated like any other text:
	// non-JSON, so it falls back to a synthesized frame.
	stream := "event: done\n\n"
	w := httptest.NewRecorder()
	mode := bridge(w, "req-1", upstreamResponse(200, "text/event-stream", stream), false)

	if mode != "fallback" {
		t.Errorf("expected mode fallback, got %q", mode)
	}
}

func TestClassifyBody(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected responseKind
	}{
		{"empty", "", kindEmpty},
		{"json object", `{"a":1}`, kindJSON},
		{"json array", `[1,2]`, kindJSON},
		{"json string", `"hello"`, kindJSON},
		{"plain text", "hello", kindPlainTextFallback},
		{"truncated json", `{"a":`, kindPlainTextFallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyBody([]byte(tt.body)); got != tt.expected {
				t.Errorf("classifyBody(%q) = %v, want %v", tt.body, got, tt.expected)
			}
		})
	}
}

func TestFormatEvent(t *testing.T) {
	if got := string(formatEvent(EventMessage, `{"content":"hi"}`)); got != "event: message\ndata: {\"content\":\"hi\"}\n\n" {
		t.Errorf("unexpected framing %q", got)
	}
	if got := string(formatEvent(EventDone, "")); got != "event: done\n\n" {
		t.Errorf("expected no data line for empty payload, got %q", got)
	}
}
