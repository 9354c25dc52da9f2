// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import "testing"

func TestHasVPNIfacePrefixOrderingMatchesLongestFirst(t *testing.T) {
	prefixes := []string{"tunovpnc", "tun"}
	if !hasVPNIfacePrefix("tunovpnc0", prefixes) {
		t.Error("expected tunovpnc0 to match the tunovpnc prefix")
	}
	if !hasVPNIfacePrefix("tun1", prefixes) {
		t.Error("expected tun1 to match the tun prefix")
	}
	if hasVPNIfacePrefix("br0", prefixes) {
		t.Error("br0 should not match any vpn prefix")
	}
}

func TestHasVPNIfacePrefixEmptyList(t *testing.T) {
	if hasVPNIfacePrefix("tun0", nil) {
		t.Error("expected no match against an empty prefix list")
	}
}
