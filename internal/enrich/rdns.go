// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package enrich

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/phersys/loginsight/internal/clock"
)

const rdnsCacheTTL = 24 * time.Hour

// RDNSResolver does a synchronous PTR lookup per ip, wrapped in a TTL
// cache that also caches a failed lookup (empty answer) for the same
// TTL, so a run of unresolvable IPs doesn't re-query every pass.
type RDNSResolver struct {
	server  string
	timeout time.Duration
	clock   clock.Clock

	mu    sync.Mutex
	cache map[string]rdnsEntry
}

type rdnsEntry struct {
	name    string
	cachedAt time.Time
}

// NewRDNSResolver targets a single resolver address (host:port), per
// lookup timeout. An empty server selects the first nameserver listed in
// /etc/resolv.conf.
func NewRDNSResolver(server string, timeout time.Duration) *RDNSResolver {
	if server == "" {
		if conf, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil && len(conf.Servers) > 0 {
			server = net.JoinHostPort(conf.Servers[0], conf.Port)
		}
	}
	return &RDNSResolver{
		server:  server,
		timeout: timeout,
		clock:   clock.Default,
		cache:   make(map[string]rdnsEntry),
	}
}

// Lookup returns the PTR name for ip, or "" if none resolves. Both
// outcomes are cached for rdnsCacheTTL.
func (r *RDNSResolver) Lookup(ip string) string {
	now := r.clock.Now()

	r.mu.Lock()
	if e, ok := r.cache[ip]; ok && now.Sub(e.cachedAt) < rdnsCacheTTL {
		r.mu.Unlock()
		return e.name
	}
	r.mu.Unlock()

	name := r.resolve(ip)

	r.mu.Lock()
	r.cache[ip] = rdnsEntry{name: name, cachedAt: now}
	r.mu.Unlock()
	return name
}

func (r *RDNSResolver) resolve(ip string) string {
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return ""
	}

	msg := new(dns.Msg)
	msg.SetQuestion(arpa, dns.TypePTR)
	msg.RecursionDesired = true

	c := &dns.Client{Timeout: r.timeout}
	resp, _, err := c.Exchange(msg, r.server)
	if err != nil || resp == nil || resp.Rcode != dns.RcodeSuccess {
		return ""
	}
	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, ".")
		}
	}
	return ""
}
