// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phersys/loginsight/internal/store"
)

type fakePollStore struct {
	clients  []store.ClientEntry
	devices  []store.DeviceEntry
	nameMaps store.NameMaps
}

func (f *fakePollStore) BulkUpsertClients(ctx context.Context, entries []store.ClientEntry) error {
	f.clients = entries
	return nil
}

func (f *fakePollStore) BulkUpsertDevices(ctx context.Context, entries []store.DeviceEntry) error {
	f.devices = entries
	return nil
}

func (f *fakePollStore) LoadNameMaps(ctx context.Context) (store.NameMaps, error) {
	return f.nameMaps, nil
}

func TestMergeClientsByMACActiveWinsOnConflict(t *testing.T) {
	active := []store.ClientEntry{{MAC: "aa", Hostname: "live-host"}}
	historical := []store.ClientEntry{{MAC: "aa", Hostname: "stale-host"}, {MAC: "bb", Hostname: "only-historical"}}

	merged := mergeClientsByMAC(active, historical)
	if len(merged) != 2 {
		t.Fatalf("len(merged) = %d, want 2", len(merged))
	}
	byMAC := map[string]store.ClientEntry{}
	for _, c := range merged {
		byMAC[c.MAC] = c
	}
	if byMAC["aa"].Hostname != "live-host" {
		t.Errorf("aa.Hostname = %q, want live-host (active must win)", byMAC["aa"].Hostname)
	}
	if byMAC["bb"].Hostname != "only-historical" {
		t.Errorf("bb.Hostname = %q, want only-historical", byMAC["bb"].Hostname)
	}
}

func TestPollerTickMergesAndUpserts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/proxy/network/api/s/default/stat/sta":
			w.Write([]byte(`{"data":[{"mac":"aa","ip":"10.0.0.5","is_wired":true,"last_seen":1700000000}]}`))
		case "/proxy/network/api/s/default/rest/user":
			w.Write([]byte(`{"data":[{"mac":"bb","ip":"10.0.0.6","last_seen":1700000000}]}`))
		case "/proxy/network/api/s/default/stat/device":
			w.Write([]byte(`{"data":[{"mac":"cc","model":"USW-Lite","name":"Switch"}]}`))
		default:
			w.Write([]byte(`{"data":[]}`))
		}
	}))
	defer srv.Close()

	client := New(Config{Host: srv.URL, Mode: AuthModern, APIKey: "k", Site: "default"}, nil)
	db := &fakePollStore{}
	p := NewPoller(client, db, nil, time.Minute, nil)

	if err := p.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(db.clients) != 2 {
		t.Errorf("len(clients upserted) = %d, want 2", len(db.clients))
	}
	if len(db.devices) != 1 {
		t.Errorf("len(devices upserted) = %d, want 1", len(db.devices))
	}
}

func TestPollerPrimeLoadsNameMapsWithoutPolling(t *testing.T) {
	db := &fakePollStore{nameMaps: store.NameMaps{ByIP: map[string]string{"10.0.0.1": "router"}}}
	p := NewPoller(New(Config{Host: "https://h", Mode: AuthModern, APIKey: "k"}, nil), db, nil, time.Minute, nil)

	if err := p.Prime(context.Background()); err != nil {
		t.Fatalf("Prime: %v", err)
	}
	if p.NameMaps().ByIP["10.0.0.1"] != "router" {
		t.Errorf("NameMaps not primed from the backing store")
	}
}
