// Package proxy holds the guards applied to every forwarded request: the
// upstream host allowlist and the extra-header filter.
package proxy

import (
	"errors"
	"net/url"
	"strings"
)

var (
	// ErrWebhookRequired is returned when neither the caller nor the
	// configuration supplies a webhook URL.
	ErrWebhookRequired = errors.New("Webhook URL is required")

	// ErrWebhookNotAllowed is returned when the resolved URL does not parse
	// or its host is not in the configured allowlist.
	ErrWebhookNotAllowed = errors.New("Webhook URL is not in the allowlist")
)

// Allowlist is the configured set of permitted upstream hosts.
type Allowlist struct {
	hosts map[string]struct{}
}

// NewAllowlist builds an allowlist from raw host entries. Entries are
// trimmed and lowercased; empty entries are dropped.
func NewAllowlist(hosts []string) *Allowlist {
	set := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		set[h] = struct{}{}
	}
	return &Allowlist{hosts: set}
}

// Empty reports whether no hosts are configured. An empty allowlist skips
// the host check entirely; deployments running this way are warned at
// startup and flagged by the health endpoint.
func (a *Allowlist) Empty() bool {
	return len(a.hosts) == 0
}

// Hosts returns the configured hosts in no particular order.
func (a *Allowlist) Hosts() []string {
	out := make([]string, 0, len(a.hosts))
	for h := range a.hosts {
		out = append(out, h)
	}
	return out
}

// IsAllowed reports whether the URL parses and its host (including any
// port, matched case-insensitively) is in the allowlist.
func (a *Allowlist) IsAllowed(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	if a.Empty() {
		return true
	}
	_, ok := a.hosts[strings.ToLower(u.Host)]
	return ok
}

// ResolveTarget picks the upstream URL for a request: the caller-supplied
// webhook if present, otherwise the configured default. The resolved URL
// must pass IsAllowed.
func (a *Allowlist) ResolveTarget(requested, defaultWebhook string) (string, error) {
	target := requested
	if target == "" {
		target = defaultWebhook
	}
	if target == "" {
		return "", ErrWebhookRequired
	}
	if !a.IsAllowed(target) {
		return "", ErrWebhookNotAllowed
	}
	return target, nil
}
