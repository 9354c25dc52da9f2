// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netaddr

import (
	"net/netip"
	"testing"
)

func TestIsGlobal(t *testing.T) {
	cases := []struct {
		ip   string
		want bool
	}{
		{"8.8.8.8", true},
		{"198.51.100.7", true},
		{"192.168.1.1", false},
		{"10.0.0.1", false},
		{"127.0.0.1", false},
		{"169.254.1.1", false},
		{"224.0.0.1", false},
		{"255.255.255.255", false},
	}
	for _, c := range cases {
		addr, err := netip.ParseAddr(c.ip)
		if err != nil {
			t.Fatalf("parse %s: %v", c.ip, err)
		}
		if got := IsGlobal(addr); got != c.want {
			t.Errorf("IsGlobal(%s) = %v, want %v", c.ip, got, c.want)
		}
	}
}

func TestIsRemoteExcludesWANAndGateway(t *testing.T) {
	wan := []string{"203.0.113.4"}
	gw := []string{"192.0.2.1"}

	if IsRemote("203.0.113.4", wan, gw) {
		t.Error("WAN IP must not be considered remote")
	}
	if !IsRemote("198.51.100.7", wan, gw) {
		t.Error("public IP outside WAN/gateway set should be remote")
	}
	if IsRemote("192.168.1.5", wan, gw) {
		t.Error("private IP must not be considered remote")
	}
}

func TestIsBroadcastOrMulticast(t *testing.T) {
	if !IsBroadcastOrMulticast("255.255.255.255") {
		t.Error("expected limited broadcast to match")
	}
	if !IsBroadcastOrMulticast("224.0.0.251") {
		t.Error("expected multicast to match")
	}
	if IsBroadcastOrMulticast("198.51.100.7") {
		t.Error("ordinary unicast must not match")
	}
}

func TestExclusionSetPreferredEnrichTarget(t *testing.T) {
	e := ExclusionSet{WANIPs: []string{"203.0.113.4"}, GatewayIPs: []string{"192.0.2.1"}}

	if ip, ok := e.PreferredEnrichTarget("203.0.113.4", "198.51.100.7"); !ok || ip != "198.51.100.7" {
		t.Errorf("expected fallback to remote dst_ip, got %q, %v", ip, ok)
	}
	if ip, ok := e.PreferredEnrichTarget("198.51.100.7", "203.0.113.4"); !ok || ip != "198.51.100.7" {
		t.Errorf("expected remote src_ip preferred, got %q, %v", ip, ok)
	}
	if _, ok := e.PreferredEnrichTarget("192.168.1.1", "10.0.0.5"); ok {
		t.Error("expected no enrichable target for two private IPs")
	}
}
