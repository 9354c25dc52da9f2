// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConnectionSuccessModern(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/proxy/network/integration/v1/sites":
			w.Write([]byte(`{"data":[{"id":"uuid-1","internalReference":"default"}]}`))
		case r.URL.Path == "/proxy/network/api/s/default/stat/sysinfo":
			w.Write([]byte(`{"data":[{"version":"8.0.0","name":"Home Gateway"}]}`))
		default:
			w.Write([]byte(`{"data":[]}`))
		}
	}))
	defer srv.Close()

	result := TestConnection(context.Background(), Config{Host: srv.URL, Mode: AuthModern, APIKey: "k", Site: "default"})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.ControllerName != "Home Gateway" || result.Version != "8.0.0" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestConnectionEmptySysinfoIsInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/proxy/network/integration/v1/sites" {
			w.Write([]byte(`{"data":[{"id":"uuid-1","internalReference":"default"}]}`))
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	result := TestConnection(context.Background(), Config{Host: srv.URL, Mode: AuthModern, APIKey: "k", Site: "default"})
	if result.Success {
		t.Fatal("expected failure for an empty sysinfo response")
	}
	if result.ErrorCode != ErrorCodeInvalid {
		t.Errorf("ErrorCode = %q, want %q", result.ErrorCode, ErrorCodeInvalid)
	}
}

func TestConnectionAuthFailureIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := TestConnection(context.Background(), Config{Host: srv.URL, Mode: AuthLegacy, Username: "u", Password: "bad"})
	if result.Success {
		t.Fatal("expected failure for a rejected login")
	}
	if result.ErrorCode != ErrorCodeAuth {
		t.Errorf("ErrorCode = %q, want %q", result.ErrorCode, ErrorCodeAuth)
	}
}

func TestConnectionUnreachableHostIsConnectionError(t *testing.T) {
	result := TestConnection(context.Background(), Config{Host: "http://127.0.0.1:1", Mode: AuthModern, APIKey: "k", Site: "default"})
	if result.Success {
		t.Fatal("expected failure for an unreachable host")
	}
	if result.ErrorCode != ErrorCodeConnection {
		t.Errorf("ErrorCode = %q, want %q", result.ErrorCode, ErrorCodeConnection)
	}
}
