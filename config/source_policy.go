package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// SourcePolicy filters search hits before they are fetched or reported.
type SourcePolicy struct {
	Blocked []string `mapstructure:"blocked_domains" json:"blocked_domains"`
}

// Normalize cleans entries and removes duplicates.
func (p SourcePolicy) Normalize() SourcePolicy {
	return SourcePolicy{Blocked: sanitizeDomainList(p.Blocked)}
}

// Validate rejects entries that cannot be reduced to a host.
func (p SourcePolicy) Validate() error {
	for _, raw := range p.Blocked {
		if normalizeHost(raw) == "" {
			return fmt.Errorf("search.blocked_domains entry %q is not a host", raw)
		}
	}
	return nil
}

// Allows reports whether rawURL is outside every blocked domain. Subdomains of
// a blocked domain are blocked too.
func (p SourcePolicy) Allows(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return false
	}
	host := normalizeHost(u.Hostname())
	for _, blocked := range p.Blocked {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return false
		}
	}
	return true
}

func sanitizeDomainList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	for _, raw := range values {
		host := normalizeHost(raw)
		if host == "" {
			continue
		}
		seen[host] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for host := range seen {
		out = append(out, host)
	}
	sort.Strings(out)
	return out
}

func normalizeHost(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return ""
	}
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		if u, err := url.Parse(value); err == nil && u.Host != "" {
			return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		}
		return ""
	}
	return strings.TrimPrefix(value, "www.")
}
