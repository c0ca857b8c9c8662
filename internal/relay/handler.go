// Package relay implements the webhook proxy pipeline: decode and sanitize
// the inbound chat request, resolve the allow-listed upstream, dispatch
// with a bounded timeout, and bridge the reply back in the protocol shape
// the caller expects.
package relay

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/explorerhq/webhook-relay/internal/config"
	"github.com/explorerhq/webhook-relay/internal/httputil"
	"github.com/explorerhq/webhook-relay/internal/proxy"
	"github.com/explorerhq/webhook-relay/internal/telemetry"
)

// Handler holds dependencies for the relay HTTP handlers.
type Handler struct {
	cfg        func() *config.Config
	dispatcher *dispatcher
	metrics    *telemetry.Metrics
}

func NewHandler(cfg func() *config.Config, client *http.Client, metrics *telemetry.Metrics) *Handler {
	if client == nil {
		client = http.DefaultClient
	}
	return &Handler{
		cfg:        cfg,
		dispatcher: &dispatcher{client: client},
		metrics:    metrics,
	}
}

// Chat handles POST /api/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	started := time.Now()
	cfg := h.cfg()
	maxBytes := cfg.Relay.MaxRequestBytes

	if r.ContentLength > maxBytes {
		httputil.WritePayloadTooLargeError(w, reqID, "Payload too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	decoded, err := decodeRequest(r, maxBytes)
	if err != nil {
		var derr *decodeError
		if errors.As(err, &derr) {
			slog.Warn("failed to decode request", "request_id", reqID, "error", derr.message)
			httputil.WriteError(w, reqID, derr.status, derr.message)
			return
		}
		slog.Error("failed to decode request", "request_id", reqID, "error", err)
		httputil.WriteBadRequestError(w, reqID, "Invalid payload")
		return
	}
	payload := decoded.payload

	allowlist := proxy.NewAllowlist(cfg.Relay.AllowedHosts())
	target, err := allowlist.ResolveTarget(payload.UserWebhook, cfg.Relay.DefaultWebhook)
	if err != nil {
		slog.Warn("webhook target rejected",
			"request_id", reqID,
			"conversation_id", payload.ConversationID,
			"error", err,
		)
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	}

	upstream, cancel, err := h.dispatcher.send(
		r.Context(),
		target,
		decoded.forwardContentType,
		decoded.forwardBody,
		payload.ExtraHeaders,
		cfg.Relay.RequestTimeout(),
	)
	if err != nil {
		if errors.Is(err, errUpstreamTimeout) {
			slog.Error("upstream request timed out", "request_id", reqID, "target", target)
			if h.metrics != nil {
				h.metrics.RecordUpstreamError("timeout")
			}
			httputil.WriteGatewayTimeoutError(w, reqID, errUpstreamTimeout.Error())
		} else {
			slog.Error("upstream request failed", "request_id", reqID, "target", target, "error", err)
			if h.metrics != nil {
				h.metrics.RecordUpstreamError("network")
			}
			httputil.WriteBadGatewayError(w, reqID, errUpstreamNetwork.Error())
		}
		h.record(strconvStatus(err), "error", started)
		return
	}
	defer cancel()
	defer upstream.Body.Close()

	var mode string
	status := upstream.StatusCode
	if status < 200 || status > 299 {
		// Pass the upstream status through so callers can tell a webhook
		// 4xx from a 5xx.
		body, _ := io.ReadAll(upstream.Body)
		message := string(body)
		if message == "" {
			message = "Upstream webhook responded with an error"
		}
		slog.Error("upstream returned error",
			"request_id", reqID,
			"status", status,
			"target", target,
		)
		if h.metrics != nil {
			h.metrics.RecordUpstreamError("status")
		}
		httputil.WriteError(w, reqID, status, message)
		mode = "error"
	} else {
		mode = bridge(w, reqID, upstream, payload.WantsStream())
		status = http.StatusOK
	}

	duration := time.Since(started)
	slog.Info("request completed",
		"request_id", reqID,
		"conversation_id", payload.ConversationID,
		"status", status,
		"mode", mode,
		"stream", payload.WantsStream(),
		"duration_ms", duration.Milliseconds(),
	)
	h.record(strconv.Itoa(status), mode, started)
}

func (h *Handler) record(status, mode string, started time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordRequest(status, mode, float64(time.Since(started).Milliseconds()))
}

func strconvStatus(err error) string {
	if errors.Is(err, errUpstreamTimeout) {
		return "504"
	}
	return "502"
}
