// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDiscoverVPNNetworksDerivesInterfaceNames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[
			{"purpose":"vpn","vpn_type":"wireguard","wireguard_id":2},
			{"purpose":"vpn","vpn_type":"openvpn-client","tunnel_id":1},
			{"purpose":"vpn","vpn_type":"openvpn-server","x_openvpn_tunnel_id":3},
			{"purpose":"corporate"}
		]}`))
	}))
	defer srv.Close()

	c := New(Config{Host: srv.URL, Mode: AuthModern, APIKey: "k", Site: "default"}, nil)
	nets, err := c.DiscoverVPNNetworks(context.Background())
	if err != nil {
		t.Fatalf("DiscoverVPNNetworks: %v", err)
	}
	if len(nets) != 3 {
		t.Fatalf("len(nets) = %d, want 3 (corporate purpose should be skipped)", len(nets))
	}
	want := map[string]string{"wg2": "WireGuard", "tunovpnc1": "OpenVPN Client", "tun3": "OpenVPN Server"}
	for _, n := range nets {
		if badge, ok := want[n.Interface]; !ok || badge != n.Badge {
			t.Errorf("unexpected network %+v", n)
		}
	}
}

func TestVPNInterfacePrefixesOrdersTunovpncBeforeTun(t *testing.T) {
	prefixes := VPNInterfacePrefixes()
	tunovpncIdx, tunIdx := -1, -1
	for i, p := range prefixes {
		if p == "tunovpnc" {
			tunovpncIdx = i
		}
		if p == "tun" {
			tunIdx = i
		}
	}
	if tunovpncIdx == -1 || tunIdx == -1 || tunovpncIdx > tunIdx {
		t.Errorf("prefixes = %v, want tunovpnc to appear before tun", prefixes)
	}
}

func TestVPNInterfaceIDFallsBackThroughTunnelFields(t *testing.T) {
	three := 3
	n := networkConfig{XOpenVPNTunnelID: &three}
	if got := vpnInterfaceID(n, "tun"); got != 3 {
		t.Errorf("vpnInterfaceID = %d, want 3 (fallback to x_openvpn_tunnel_id)", got)
	}
	if got := vpnInterfaceID(networkConfig{}, "tun"); got != 0 {
		t.Errorf("vpnInterfaceID = %d, want 0 when no tunnel id is set", got)
	}
}
