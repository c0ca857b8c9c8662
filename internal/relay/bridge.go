package relay

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/explorerhq/webhook-relay/internal/httputil"
)

// responseKind classifies how an upstream reply maps onto the caller's
// expected protocol. The decision is made once, up front.
type responseKind int

const (
	kindStream responseKind = iota
	kindJSON
	kindPlainTextFallback
	kindEmpty
)

// isUpstreamStream reports whether the reply should be passed through as an
// SSE byte stream: the caller asked to stream and the upstream obliged.
// Classification of the remaining kinds needs the body and happens after
// the full read.
func isUpstreamStream(contentType string, wantStream bool) bool {
	return wantStream && strings.Contains(contentType, "text/event-stream")
}

// classifyBody decides between JSON re-emit, plain-text fallback and the
// empty terminal error.
func classifyBody(body []byte) responseKind {
	if len(body) == 0 {
		return kindEmpty
	}
	if json.Valid(body) {
		return kindJSON
	}
	return kindPlainTextFallback
}

// bridge relays the upstream response to the caller in whatever protocol
// shape the caller expects. Returns the outcome mode for logging/metrics.
func bridge(w http.ResponseWriter, reqID string, upstream *http.Response, wantStream bool) string {
	if isUpstreamStream(upstream.Header.Get("Content-Type"), wantStream) {
		passthroughSSE(w, reqID, upstream)
		return "stream"
	}

	body, err := io.ReadAll(upstream.Body)
	if err != nil {
		httputil.WriteBadGatewayError(w, reqID, "Proxy request failed")
		return "error"
	}

	switch classifyBody(body) {
	case kindEmpty:
		httputil.WriteBadGatewayError(w, reqID, "Empty response from webhook")
		return "error"
	case kindJSON:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(upstream.StatusCode)
		w.Write(body)
		return "json"
	default:
		// Upstream webhooks vary: some always return a single text blob no
		// matter what the caller asked for. Frame it as an SSE message so
		// the caller's protocol expectation still holds.
		slog.Info("upstream returned non-JSON response, synthesizing SSE",
			"request_id", reqID,
			"bytes", len(body),
		)
		synthesizeSSE(w, reqID, string(body))
		return "fallback"
	}
}

func writeSSEHeaders(w http.ResponseWriter, reqID string, status int) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if reqID != "" {
		w.Header().Set("X-Request-ID", reqID)
	}
	w.WriteHeader(status)
}

// passthroughSSE forwards the upstream SSE byte stream unmodified until the
// upstream closes. A failed downstream write stops the loop; the caller's
// deferred cancel then aborts the upstream read.
func passthroughSSE(w http.ResponseWriter, reqID string, upstream *http.Response) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, reqID, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	writeSSEHeaders(w, reqID, upstream.StatusCode)
	flusher.Flush()

	buf := make([]byte, 32*1024)
	for {
		n, err := upstream.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				slog.Error("error reading upstream stream", "request_id", reqID, "error", err)
			}
			return
		}
	}
}

// synthesizeSSE frames a single text reply as a message event followed by
// done.
func synthesizeSSE(w http.ResponseWriter, reqID, text string) {
	writeSSEHeaders(w, reqID, http.StatusOK)

	data, err := json.Marshal(struct {
		Content string `json:"content"`
	}{Content: text})
	if err != nil {
		w.Write(formatEvent(EventError, ""))
		return
	}
	w.Write(formatEvent(EventMessage, string(data)))
	w.Write(formatEvent(EventDone, ""))
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
