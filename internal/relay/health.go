package relay

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/explorerhq/webhook-relay/internal/config"
	"github.com/explorerhq/webhook-relay/internal/httputil"
)

// HealthResponse reports whether the required deployment configuration is
// present.
type HealthResponse struct {
	Status         string   `json:"status"`
	Allowlist      []string `json:"allowlist"`
	Message        string   `json:"message"`
	DefaultWebhook string   `json:"defaultWebhook,omitempty"`
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	cfg := h.cfg()
	hosts := cfg.Relay.AllowedHosts()
	sort.Strings(hosts)
	if hosts == nil {
		hosts = []string{}
	}

	var missing []string
	if len(hosts) == 0 {
		missing = append(missing, config.EnvAllowlist)
	}
	if _, ok := os.LookupEnv(config.EnvMaxRequestBytes); !ok {
		missing = append(missing, config.EnvMaxRequestBytes)
	}
	if _, ok := os.LookupEnv(config.EnvRequestTimeout); !ok {
		missing = append(missing, config.EnvRequestTimeout)
	}

	status := "ok"
	var message string
	switch {
	case len(missing) > 0:
		status = "error"
		message = "Missing configuration: " + strings.Join(missing, ", ")
	case cfg.Relay.DefaultWebhook != "":
		message = fmt.Sprintf("Default webhook configured: %s", cfg.Relay.DefaultWebhook)
	default:
		message = "Ready to accept requests."
	}

	httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:         status,
		Allowlist:      hosts,
		Message:        message,
		DefaultWebhook: cfg.Relay.DefaultWebhook,
	})
}
