package proxy

import (
	"net/http"
	"strings"

	"github.com/explorerhq/webhook-relay/internal/sanitize"
)

// safeExtraHeaders is the fixed set of caller-supplied header names the
// relay will forward upstream.
var safeExtraHeaders = map[string]struct{}{
	"x-api-key":     {},
	"x-workflow-id": {},
	"x-session-id":  {},
	"x-client-id":   {},
	"x-request-id":  {},
}

// blockedHeaders are hop-by-hop and identity headers that are never
// forwarded, regardless of caller intent. The check is redundant with
// safeExtraHeaders membership; both are kept.
var blockedHeaders = map[string]struct{}{
	"host":           {},
	"origin":         {},
	"referer":        {},
	"content-length": {},
	"connection":     {},
}

// FilterExtraHeaders whitelists caller-requested extra headers. Names must
// start with "x-" and be in the safe set; values are sanitized and dropped
// when empty. Returns nil (not an empty map) when nothing survives.
func FilterExtraHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	filtered := make(map[string]string)
	for key, rawValue := range headers {
		lower := strings.ToLower(key)
		if !strings.HasPrefix(lower, "x-") {
			continue
		}
		if _, ok := safeExtraHeaders[lower]; !ok {
			continue
		}
		if _, ok := blockedHeaders[lower]; ok {
			continue
		}
		value := sanitize.String(rawValue)
		if value == "" {
			continue
		}
		filtered[lower] = value
	}
	if len(filtered) == 0 {
		return nil
	}
	return filtered
}

// BuildForwardHeaders assembles the headers for the upstream request: base
// headers minus the blocked set, plus filtered extra headers, with accept
// and cache-control forced.
func BuildForwardHeaders(base http.Header, extra map[string]string) http.Header {
	headers := make(http.Header, len(base)+len(extra)+2)
	for key, values := range base {
		if _, ok := blockedHeaders[strings.ToLower(key)]; ok {
			continue
		}
		for _, v := range values {
			headers.Add(key, v)
		}
	}
	for key, value := range extra {
		headers.Set(key, value)
	}
	headers.Set("Accept", "application/json, text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	return headers
}
