// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package enrich

import (
	"testing"
	"time"
)

func TestRDNSResolverCachesPositiveAndNegativeAnswers(t *testing.T) {
	r := NewRDNSResolver("127.0.0.1:1", time.Millisecond)
	frozen := &mutableClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r.clock = frozen

	r.cache["198.51.100.1"] = rdnsEntry{name: "host.example.com", cachedAt: frozen.t}
	r.cache["198.51.100.2"] = rdnsEntry{name: "", cachedAt: frozen.t}

	if got := r.Lookup("198.51.100.1"); got != "host.example.com" {
		t.Errorf("Lookup = %q, want cached positive answer", got)
	}
	if got := r.Lookup("198.51.100.2"); got != "" {
		t.Errorf("Lookup = %q, want cached negative answer to stay empty", got)
	}
}

func TestRDNSResolverExpiresCacheEntryAfterTTL(t *testing.T) {
	r := NewRDNSResolver("127.0.0.1:1", time.Millisecond)
	frozen := &mutableClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r.clock = frozen
	r.cache["198.51.100.1"] = rdnsEntry{name: "stale.example.com", cachedAt: frozen.t}

	frozen.t = frozen.t.Add(rdnsCacheTTL + time.Second)
	// Past TTL, Lookup must re-resolve rather than return the stale name;
	// against an unreachable resolver that resolves to "".
	if got := r.Lookup("198.51.100.1"); got != "" {
		t.Errorf("Lookup = %q, want a fresh (failed) resolution past TTL", got)
	}
}
