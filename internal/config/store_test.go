// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"context"
	"testing"
)

// fakeQuerier is an in-memory stand-in for the system_config table.
type fakeQuerier struct {
	rows map[string]string
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{rows: make(map[string]string)}
}

func (f *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) row {
	key, _ := args[0].(string)
	v, ok := f.rows[key]
	return &fakeRow{value: v, found: ok}
}

func (f *fakeQuerier) Exec(ctx context.Context, sql string, args ...any) error {
	key, _ := args[0].(string)
	value, _ := args[1].(string)
	f.rows[key] = value
	return nil
}

type fakeRow struct {
	value string
	found bool
}

func (r *fakeRow) Scan(dest ...any) error {
	if !r.found {
		return errNoRows
	}
	ptr := dest[0].(*string)
	*ptr = r.value
	return nil
}

func TestSetGetString(t *testing.T) {
	s := New(newFakeQuerier(), "db-pass")
	ctx := context.Background()

	if err := s.SetString(ctx, "wizard_path", "/setup/network"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	v, ok, err := s.GetString(ctx, "wizard_path")
	if err != nil || !ok {
		t.Fatalf("GetString: v=%q ok=%v err=%v", v, ok, err)
	}
	if v != "/setup/network" {
		t.Errorf("v = %q, want /setup/network", v)
	}
}

func TestGetStringUnsetKey(t *testing.T) {
	s := New(newFakeQuerier(), "db-pass")
	_, ok, err := s.GetString(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected ok=false for unset key")
	}
}

func TestSetGetStringSlice(t *testing.T) {
	s := New(newFakeQuerier(), "db-pass")
	ctx := context.Background()
	want := []string{"ppp0", "eth1"}
	if err := s.SetStringSlice(ctx, "wan_interfaces", want); err != nil {
		t.Fatalf("SetStringSlice: %v", err)
	}
	got, err := s.GetStringSlice(ctx, "wan_interfaces")
	if err != nil {
		t.Fatalf("GetStringSlice: %v", err)
	}
	if len(got) != 2 || got[0] != "ppp0" || got[1] != "eth1" {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCacheInvalidation(t *testing.T) {
	q := newFakeQuerier()
	s := New(q, "db-pass")
	ctx := context.Background()

	s.SetBool(ctx, "unifi_enabled", true)
	v, _ := s.GetBool(ctx, "unifi_enabled")
	if !v {
		t.Fatal("expected true before external mutation")
	}

	// Simulate another process writing directly to the table.
	q.rows["unifi_enabled"] = "false"
	v2, _ := s.GetBool(ctx, "unifi_enabled")
	if !v2 {
		t.Fatal("expected cached true to still be returned before invalidation")
	}

	s.Invalidate()
	v3, _ := s.GetBool(ctx, "unifi_enabled")
	if v3 {
		t.Fatal("expected false to be visible after Invalidate")
	}
}

func TestCredentialRoundTrip(t *testing.T) {
	s := New(newFakeQuerier(), "the-db-password")
	ctx := context.Background()

	if err := s.SetCredential(ctx, "unifi_api_key", "abc123"); err != nil {
		t.Fatalf("SetCredential: %v", err)
	}
	v, ok, err := s.GetCredential(ctx, "unifi_api_key")
	if err != nil || !ok {
		t.Fatalf("GetCredential: v=%q ok=%v err=%v", v, ok, err)
	}
	if v != "abc123" {
		t.Errorf("v = %q, want abc123", v)
	}
}

func TestGetCredentialRejectsNonCredentialKey(t *testing.T) {
	s := New(newFakeQuerier(), "pw")
	_, _, err := s.GetCredential(context.Background(), "wan_interfaces")
	if err == nil {
		t.Error("expected error for non-credential key")
	}
}

func TestGetCredentialDecryptFailureYieldsEmpty(t *testing.T) {
	q := newFakeQuerier()
	s1 := New(q, "password-one")
	ctx := context.Background()
	if err := s1.SetCredential(ctx, "unifi_password", "topsecret"); err != nil {
		t.Fatalf("SetCredential: %v", err)
	}

	// A different store instance (e.g. after a DB password rotation) can't
	// decrypt what the old key sealed; this must not be a hard error.
	s2 := New(q, "password-two")
	v, ok, err := s2.GetCredential(ctx, "unifi_password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || v != "" {
		t.Errorf("expected silent failure, got (%q, %v)", v, ok)
	}
}
