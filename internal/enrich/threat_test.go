// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package enrich

import (
	"context"
	"testing"
	"time"

	"github.com/phersys/loginsight/internal/netaddr"
	"github.com/phersys/loginsight/internal/store"
)

type fakeThreatStore struct {
	entries map[string]store.ThreatEntry
	fresh   map[string]bool
	upserts []store.ThreatEntry
}

func (f *fakeThreatStore) GetThreat(ctx context.Context, ip string, maxAge time.Duration) (store.ThreatEntry, bool, error) {
	e, ok := f.entries[ip]
	if !ok {
		return store.ThreatEntry{}, false, nil
	}
	return e, f.fresh[ip], nil
}

func (f *fakeThreatStore) UpsertThreat(ctx context.Context, e store.ThreatEntry, exclusion netaddr.ExclusionSet) error {
	f.upserts = append(f.upserts, e)
	return nil
}

func TestThreatClientExclusionShortCircuitsBeforeAnyLookup(t *testing.T) {
	db := &fakeThreatStore{
		entries: map[string]store.ThreatEntry{"203.0.113.5": {IP: "203.0.113.5"}},
		fresh:   map[string]bool{"203.0.113.5": true},
	}
	c := NewThreatClient("key", "https://example.invalid", nil, nil, db, nil)
	c.SetExclusion(netaddr.ExclusionSet{WANIPs: []string{"203.0.113.5"}})

	_, found := c.Lookup(context.Background(), "203.0.113.5")
	if found {
		t.Fatal("expected exclusion set to short-circuit even a fresh cache hit")
	}
}

func TestThreatClientPersistentCacheHit(t *testing.T) {
	score := 80
	db := &fakeThreatStore{
		entries: map[string]store.ThreatEntry{"198.51.100.9": {IP: "198.51.100.9", Score: &score}},
		fresh:   map[string]bool{"198.51.100.9": true},
	}
	c := NewThreatClient("key", "https://example.invalid", nil, nil, db, nil)
	c.SetExclusion(netaddr.ExclusionSet{})

	e, found := c.Lookup(context.Background(), "198.51.100.9")
	if !found {
		t.Fatal("expected persistent cache hit")
	}
	if e.Score == nil || *e.Score != 80 {
		t.Errorf("score = %v, want 80", e.Score)
	}
}

func TestThreatClientStaleCacheWithNoGateYieldsNoResult(t *testing.T) {
	db := &fakeThreatStore{
		entries: map[string]store.ThreatEntry{"198.51.100.9": {IP: "198.51.100.9"}},
		fresh:   map[string]bool{"198.51.100.9": false},
	}
	c := NewThreatClient("key", "https://example.invalid", nil, nil, db, nil)
	c.SetExclusion(netaddr.ExclusionSet{})

	_, found := c.Lookup(context.Background(), "198.51.100.9")
	if found {
		t.Fatal("expected a stale entry with no rate gate to yield no result rather than fetch remotely")
	}
}

func TestThreatClientMemoryCacheAvoidsStoreRoundTrip(t *testing.T) {
	score := 10
	db := &fakeThreatStore{}
	c := NewThreatClient("key", "https://example.invalid", nil, nil, db, nil)
	c.SetExclusion(netaddr.ExclusionSet{})
	c.remember("198.51.100.9", store.ThreatEntry{IP: "198.51.100.9", Score: &score}, c.clock.Now())

	e, found := c.Lookup(context.Background(), "198.51.100.9")
	if !found || e.Score == nil || *e.Score != 10 {
		t.Fatalf("expected memory cache hit with score 10, got found=%v e=%+v", found, e)
	}
	if len(db.upserts) != 0 {
		t.Error("memory cache hit should not touch the backing store")
	}
}

func TestNormalizeAbuseResponseAggregatesAndSortsCategories(t *testing.T) {
	var parsed abuseCheckResponse
	parsed.Data.AbuseConfidenceScore = 55
	parsed.Data.TotalReports = 3
	parsed.Data.Reports = []abuseReport{
		{Categories: []int{18, 15}},
		{Categories: []int{15, 4}},
	}
	e := normalizeAbuseResponse("203.0.113.9", parsed)

	want := []string{"brute_force", "ddos_attack", "hacking"}
	if len(e.Categories) != len(want) {
		t.Fatalf("categories = %v, want %v", e.Categories, want)
	}
	for i, c := range want {
		if e.Categories[i] != c {
			t.Errorf("categories[%d] = %q, want %q", i, e.Categories[i], c)
		}
	}
	if e.Score == nil || *e.Score != 55 {
		t.Errorf("score = %v, want 55", e.Score)
	}
}
