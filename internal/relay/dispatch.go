package relay

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/explorerhq/webhook-relay/internal/proxy"
)

var (
	errUpstreamTimeout = errors.New("Upstream request timed out")
	errUpstreamNetwork = errors.New("Proxy request failed")
)

// dispatcher issues the forwarded POST to the resolved upstream URL.
type dispatcher struct {
	client *http.Client
}

// send arms a cancellation timer at dispatch time and disarms it once
// response headers arrive, so the timeout bounds obtaining the response
// but not a long-lived streaming body. The returned CancelFunc must be
// called after the response body is fully consumed; it also fires when the
// caller's own context is done, propagating client disconnects to the
// upstream connection.
func (d *dispatcher) send(ctx context.Context, target, contentType string, body []byte, extraHeaders map[string]string, timeout time.Duration) (*http.Response, context.CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)

	var timedOut atomic.Bool
	timer := time.AfterFunc(timeout, func() {
		timedOut.Store(true)
		cancel()
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		timer.Stop()
		cancel()
		return nil, nil, errUpstreamNetwork
	}
	base := make(http.Header)
	base.Set("Content-Type", contentType)
	req.Header = proxy.BuildForwardHeaders(base, extraHeaders)

	resp, err := d.client.Do(req)
	timer.Stop()
	if err != nil {
		cancel()
		if timedOut.Load() || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, errUpstreamTimeout
		}
		return nil, nil, errUpstreamNetwork
	}
	return resp, cancel, nil
}
