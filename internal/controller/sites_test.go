// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolveSiteModernMatchesInternalReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"uuid-1","internalReference":"default","name":"Default"}]}`))
	}))
	defer srv.Close()

	c := New(Config{Host: srv.URL, Mode: AuthModern, APIKey: "k", Site: "default"}, nil)
	if err := c.ResolveSite(context.Background()); err != nil {
		t.Fatalf("ResolveSite: %v", err)
	}
	if c.siteUUID != "uuid-1" {
		t.Errorf("siteUUID = %q, want uuid-1", c.siteUUID)
	}
}

func TestResolveSiteLegacyMatchesNameOrDesc(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"_id":"id-1","name":"default","desc":"Default Site"}]}`))
	}))
	defer srv.Close()

	c := New(Config{Host: srv.URL, Mode: AuthLegacy, Site: "Default Site"}, nil)
	c.loggedIn = true
	if err := c.ResolveSite(context.Background()); err != nil {
		t.Fatalf("ResolveSite: %v", err)
	}
	if c.siteID != "id-1" {
		t.Errorf("siteID = %q, want id-1", c.siteID)
	}
}

func TestResolveSiteNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := New(Config{Host: srv.URL, Mode: AuthModern, APIKey: "k", Site: "missing"}, nil)
	if err := c.ResolveSite(context.Background()); err == nil {
		t.Fatal("expected a not-found error for an unmatched site")
	}
}

func TestResolveSiteIsCachedAfterFirstCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"data":[{"id":"uuid-1","internalReference":"default"}]}`))
	}))
	defer srv.Close()

	c := New(Config{Host: srv.URL, Mode: AuthModern, APIKey: "k", Site: "default"}, nil)
	if err := c.ResolveSite(context.Background()); err != nil {
		t.Fatalf("ResolveSite: %v", err)
	}
	if err := c.ResolveSite(context.Background()); err != nil {
		t.Fatalf("ResolveSite (second): %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (second ResolveSite should hit the cache)", calls)
	}
}
