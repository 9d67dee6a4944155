package discord

import (
	"net"
	"strings"
)

// DomainSet is the list of hosts trusted with the credential. A host is
// trusted when it equals a domain in the set or is a subdomain of one.
type DomainSet []string

// DefaultDomains returns the backend's own domains
func DefaultDomains() DomainSet {
	return DomainSet{"discord.com", "discordapp.net"}
}

// NewDomainSet normalizes the given domains
func NewDomainSet(domains ...string) DomainSet {
	set := make(DomainSet, 0, len(domains))
	for _, d := range domains {
		d = normalizeHost(d)
		if d != "" {
			set = append(set, d)
		}
	}
	return set
}

// IsSafe reports whether host (optionally with a port) is trusted
func (s DomainSet) IsSafe(host string) bool {
	host = normalizeHost(host)
	if host == "" {
		return false
	}
	for _, d := range s {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func normalizeHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
}
