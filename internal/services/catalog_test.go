// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package services

import "testing"

func TestLookup(t *testing.T) {
	if got := Lookup(22, "tcp"); got != "ssh" {
		t.Errorf("Lookup(22, tcp) = %q, want ssh", got)
	}
	if got := Lookup(53, "UDP"); got != "dns" {
		t.Errorf("Lookup(53, UDP) = %q, want dns (override, case-insensitive)", got)
	}
	if got := Lookup(0, "tcp"); got != "" {
		t.Errorf("Lookup(0, tcp) = %q, want empty", got)
	}
	if got := Lookup(65000, "tcp"); got != "" {
		t.Errorf("Lookup(65000, tcp) = %q, want empty for unknown port", got)
	}
}

func TestNamesSortedAndDeduped(t *testing.T) {
	names := Names()
	for i := 1; i < len(names); i++ {
		if names[i] <= names[i-1] {
			t.Fatalf("Names() not sorted/deduped at index %d: %q then %q", i, names[i-1], names[i])
		}
	}
}

func TestEntriesAppliesOverridesAndSorts(t *testing.T) {
	entries := Entries()
	for _, e := range entries {
		if e.Port == 53 && e.Protocol == "tcp" && e.Name != "dns" {
			t.Errorf("53/tcp entry = %q, want override dns", e.Name)
		}
	}
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		if cur.Port < prev.Port || (cur.Port == prev.Port && cur.Protocol < prev.Protocol) {
			t.Fatalf("Entries() not sorted at index %d", i)
		}
	}
}
