package relay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/explorerhq/webhook-relay/internal/config"
)

func getHealth(t *testing.T, h *Handler) HealthResponse {
	t.Helper()
	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal health response: %v", err)
	}
	return resp
}

func TestHealth_OK(t *testing.T) {
	t.Setenv(config.EnvMaxRequestBytes, "5000000")
	t.Setenv(config.EnvRequestTimeout, "30000")

	h := testHandler("", func(cfg *config.Config) {
		cfg.Relay.Allowlist = "hooks.example.com"
		cfg.Relay.DefaultWebhook = "https://hooks.example.com/webhook/default"
	})
	resp := getHealth(t, h)

	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %q (%s)", resp.Status, resp.Message)
	}
	if resp.DefaultWebhook != "https://hooks.example.com/webhook/default" {
		t.Errorf("unexpected defaultWebhook %q", resp.DefaultWebhook)
	}
	if !strings.Contains(resp.Message, "Default webhook configured") {
		t.Errorf("unexpected message %q", resp.Message)
	}
	if len(resp.Allowlist) != 1 || resp.Allowlist[0] != "hooks.example.com" {
		t.Errorf("unexpected allowlist %v", resp.Allowlist)
	}
}

func TestHealth_OKWithoutDefaultWebhook(t *testing.T) {
	t.Setenv(config.EnvMaxRequestBytes, "5000000")
	t.Setenv(config.EnvRequestTimeout, "30000")

	h := testHandler("", func(cfg *config.Config) {
		cfg.Relay.Allowlist = "hooks.example.com"
	})
	resp := getHealth(t, h)

	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %q", resp.Status)
	}
	if resp.Message != "Ready to accept requests." {
		t.Errorf("unexpected message %q", resp.Message)
	}
}

func TestHealth_ReportsMissingConfiguration(t *testing.T) {
	// No allowlist and no env contract set.
	h := testHandler("", nil)
	resp := getHealth(t, h)

	if resp.Status != "error" {
		t.Errorf("expected status error, got %q", resp.Status)
	}
	for _, name := range []string{config.EnvAllowlist, config.EnvMaxRequestBytes, config.EnvRequestTimeout} {
		if !strings.Contains(resp.Message, name) {
			t.Errorf("expected message to name %s, got %q", name, resp.Message)
		}
	}
	if resp.Allowlist == nil || len(resp.Allowlist) != 0 {
		t.Errorf("expected empty allowlist array, got %v", resp.Allowlist)
	}
}
