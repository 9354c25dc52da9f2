// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controller

import "testing"

func TestDeriveWANConfigAssignsSequentialInterfaceNames(t *testing.T) {
	vlan := 10
	networks := []wanNetworkConfig{
		{Purpose: "wan", Name: "WAN 1", WANIP: "203.0.113.10"},
		{Purpose: "wan", Name: "WAN 2", WANIP: "203.0.113.11"},
		{Purpose: "corporate", Name: "LAN", WANIP: "192.168.1.1", VLAN: &vlan},
		{Purpose: "guest", Name: "Guest", WANIP: "192.168.2.1"},
	}

	got := deriveWANConfig(networks)

	if got.byIface["wan"] != "203.0.113.10" || got.byIface["wan2"] != "203.0.113.11" {
		t.Errorf("byIface = %v", got.byIface)
	}
	if got.names["203.0.113.10"] != "WAN 1" || got.names["203.0.113.11"] != "WAN 2" {
		t.Errorf("names = %v", got.names)
	}
	if len(got.ips) != 2 || got.ips[0] != "203.0.113.10" {
		t.Errorf("ips = %v", got.ips)
	}
	if len(got.gatewayIPs) != 2 {
		t.Errorf("gatewayIPs = %v, want 2 entries", got.gatewayIPs)
	}
	if got.gatewayVLANs["192.168.1.1"] != 10 {
		t.Errorf("gatewayVLANs[192.168.1.1] = %d, want 10", got.gatewayVLANs["192.168.1.1"])
	}
	if _, ok := got.gatewayVLANs["192.168.2.1"]; ok {
		t.Error("guest network without a vlan tag should not appear in gatewayVLANs")
	}
}

func TestDeriveWANConfigSkipsNetworksWithoutAnIP(t *testing.T) {
	networks := []wanNetworkConfig{
		{Purpose: "wan", Name: "WAN 1", WANIP: ""},
		{Purpose: "vlan-only", Name: "IoT", WANIP: ""},
	}
	got := deriveWANConfig(networks)
	if len(got.ips) != 0 || len(got.gatewayIPs) != 0 {
		t.Errorf("expected no IPs derived, got ips=%v gatewayIPs=%v", got.ips, got.gatewayIPs)
	}
}

func TestDeriveWANConfigIgnoresUnrecognisedPurposes(t *testing.T) {
	networks := []wanNetworkConfig{{Purpose: "vpn", Name: "VPN", WANIP: "10.0.0.1"}}
	got := deriveWANConfig(networks)
	if len(got.ips) != 0 || len(got.gatewayIPs) != 0 {
		t.Errorf("vpn purpose should not populate wan or gateway sets, got %+v", got)
	}
}
