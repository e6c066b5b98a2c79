package reverse

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/victorgomez09/interceptor/internal/cerr"
)

// Resolver picks the upstream origin for a request Host.
// An exact host entry wins over the default upstream.
type Resolver struct {
	fallback *url.URL
	hosts    map[string]*url.URL
}

// NewResolver parses the default upstream and the per-host origins.
// Either may be empty.
func NewResolver(defaultUpstream string, hosts map[string]string) (*Resolver, error) {
	r := &Resolver{hosts: make(map[string]*url.URL, len(hosts))}

	if defaultUpstream != "" {
		u, err := parseOrigin(defaultUpstream)
		if err != nil {
			return nil, fmt.Errorf("default upstream: %w", err)
		}
		r.fallback = u
	}

	for host, origin := range hosts {
		u, err := parseOrigin(origin)
		if err != nil {
			return nil, fmt.Errorf("upstream for %s: %w", host, err)
		}
		r.hosts[strings.ToLower(host)] = u
	}
	return r, nil
}

// Resolve returns the origin for host. The port is ignored when the host
// with port has no entry of its own.
func (r *Resolver) Resolve(host string) (*url.URL, error) {
	host = strings.ToLower(host)
	if u, ok := r.hosts[host]; ok {
		return u, nil
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		if u, ok := r.hosts[h]; ok {
			return u, nil
		}
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, cerr.ErrNoUpstream
}

func parseOrigin(origin string) (*url.URL, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", origin)
	}
	return u, nil
}
