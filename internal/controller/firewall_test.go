// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controller

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListPoliciesPagesUntilTotalCount(t *testing.T) {
	pages := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		offset := r.URL.Query().Get("offset")
		switch offset {
		case "0":
			fmt.Fprint(w, `{"offset":0,"limit":100,"totalCount":150,"data":[{"id":"a"}]}`)
		default:
			fmt.Fprint(w, `{"offset":100,"limit":100,"totalCount":150,"data":[{"id":"b"}]}`)
		}
	}))
	defer srv.Close()

	c := New(Config{Host: srv.URL, Mode: AuthModern, APIKey: "k", Site: "default"}, nil)
	c.siteUUID = "uuid-1"

	policies, err := c.ListPolicies(context.Background())
	if err != nil {
		t.Fatalf("ListPolicies: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("len(policies) = %d, want 2", len(policies))
	}
	if pages != 2 {
		t.Errorf("pages fetched = %d, want 2", pages)
	}
}

func TestListPoliciesRejectsLegacyMode(t *testing.T) {
	c := New(Config{Host: "https://h", Mode: AuthLegacy}, nil)
	if _, err := c.ListPolicies(context.Background()); err != errNotImplementedOnLegacy {
		t.Errorf("err = %v, want errNotImplementedOnLegacy", err)
	}
}

func TestBulkPatchLoggingCountsSuccessAndFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/proxy/network/integration/v1/sites/uuid-1/firewall-policies/bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(Config{Host: srv.URL, Mode: AuthModern, APIKey: "k", Site: "default"}, nil)
	c.siteUUID = "uuid-1"

	result := c.BulkPatchLogging(context.Background(), []string{"good1", "bad", "good2"}, true)
	if result.Total != 3 || result.Success != 2 || result.Failed != 1 {
		t.Errorf("unexpected result %+v", result)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %v, want exactly one entry", result.Errors)
	}
}

func TestBulkPatchLoggingCapsErrorList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{Host: srv.URL, Mode: AuthModern, APIKey: "k", Site: "default"}, nil)
	c.siteUUID = "uuid-1"

	ids := make([]string, 30)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%d", i)
	}
	result := c.BulkPatchLogging(context.Background(), ids, false)
	if result.Failed != 30 {
		t.Errorf("Failed = %d, want 30", result.Failed)
	}
	if len(result.Errors) != bulkPatchErrorCap {
		t.Errorf("len(Errors) = %d, want %d", len(result.Errors), bulkPatchErrorCap)
	}
}
