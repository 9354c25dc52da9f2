// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phersys/loginsight/internal/netaddr"
	"github.com/phersys/loginsight/internal/store"
)

// fakeBulkThreatStore additionally implements BulkUpsertThreat, the
// interface PullBlacklist type-asserts its backing store against.
type fakeBulkThreatStore struct {
	entries []store.ThreatEntry
}

func (f *fakeBulkThreatStore) GetThreat(ctx context.Context, ip string, maxAge time.Duration) (store.ThreatEntry, bool, error) {
	return store.ThreatEntry{}, false, nil
}

func (f *fakeBulkThreatStore) UpsertThreat(ctx context.Context, e store.ThreatEntry, exclusion netaddr.ExclusionSet) error {
	return nil
}

func (f *fakeBulkThreatStore) BulkUpsertThreat(ctx context.Context, entries []store.ThreatEntry, exclusion netaddr.ExclusionSet) (int, error) {
	f.entries = append(f.entries, entries...)
	return len(entries), nil
}

func TestPullBlacklistBulkUpsertsParsedEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"ipAddress":"203.0.113.5","abuseConfidenceScore":90},{"ipAddress":"203.0.113.6","abuseConfidenceScore":80}]}`))
	}))
	defer srv.Close()

	db := &fakeBulkThreatStore{}
	c := NewThreatClient("key", srv.URL, srv.Client(), nil, db, nil)

	n, err := c.PullBlacklist(context.Background(), netaddr.ExclusionSet{})
	if err != nil {
		t.Fatalf("PullBlacklist: %v", err)
	}
	if n != 2 {
		t.Errorf("upserted = %d, want 2", n)
	}
	if len(db.entries) != 2 {
		t.Fatalf("entries = %v", db.entries)
	}
	if db.entries[0].Categories[0] != "blacklist" {
		t.Errorf("category = %v, want [blacklist]", db.entries[0].Categories)
	}
}

func TestPullBlacklistNonOKStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	db := &fakeBulkThreatStore{}
	c := NewThreatClient("key", srv.URL, srv.Client(), nil, db, nil)
	if _, err := c.PullBlacklist(context.Background(), netaddr.ExclusionSet{}); err == nil {
		t.Fatal("expected an error for a non-200 blacklist response")
	}
}
