// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controller

import (
	"context"
	"strconv"

	"github.com/phersys/loginsight/internal/errors"
)

// vpnKindInfo is the (interface prefix, display badge) pair a recognised
// vpn_type maps to.
type vpnKindInfo struct {
	prefix string
	badge  string
}

// vpnKinds is looked up by vpn_type only and has no order. Prefix scans
// use VPNInterfacePrefixes, which lists the longer, more specific
// OpenVPN-client prefix first so that an OpenVPN-client interface
// (tunovpnc0) does not misclassify as an OpenVPN-server interface (tun0).
var vpnKinds = map[string]vpnKindInfo{
	"wireguard":  {prefix: "wg", badge: "WireGuard"},
	"site-magic": {prefix: "wg", badge: "Site Magic"},
	"ipsec":      {prefix: "ipsec", badge: "IPsec"},
	"l2tp":       {prefix: "l2tp", badge: "L2TP"},
	"openvpn-client": {prefix: "tunovpnc", badge: "OpenVPN Client"},
	"openvpn-server": {prefix: "tun", badge: "OpenVPN Server"},
}

// VPNInterfacePrefixes returns the full set of recognised VPN interface
// prefixes in the mandated tunovpnc-before-tun order, for callers (the
// direction deriver, the filter compiler) that need a stable scan order.
func VPNInterfacePrefixes() []string {
	return []string{"tunovpnc", "wg", "ipsec", "l2tp", "tun"}
}

// networkConfig is the subset of a UniFi network config this client
// needs to derive a VPN interface name.
type networkConfig struct {
	Purpose           string `json:"purpose"`
	VPNType           string `json:"vpn_type"`
	WireguardID       *int   `json:"wireguard_id"`
	TunnelID          *int   `json:"tunnel_id"`
	XOpenVPNTunnelID  *int   `json:"x_openvpn_tunnel_id"`
}

type networkConfigsResponse struct {
	Data []networkConfig `json:"data"`
}

// VPNNetwork is one discovered VPN network, ready to match against
// observed interface names.
type VPNNetwork struct {
	Interface string
	Badge     string
}

// DiscoverVPNNetworks enumerates network configs and derives the
// interface name UniFi would assign each recognised VPN network.
func (c *Client) DiscoverVPNNetworks(ctx context.Context) ([]VPNNetwork, error) {
	var resp networkConfigsResponse
	if err := c.doJSON(ctx, "GET", c.classicURL("/rest/networkconf"), nil, &resp); err != nil {
		return nil, errors.Wrap(err, errors.KindBadGateway, "controller: list network configs")
	}

	var out []VPNNetwork
	for _, n := range resp.Data {
		if n.Purpose != "vpn" {
			continue
		}
		info, ok := vpnKinds[n.VPNType]
		if !ok {
			continue
		}
		id := vpnInterfaceID(n, info.prefix)
		out = append(out, VPNNetwork{Interface: info.prefix + strconv.Itoa(id), Badge: info.badge})
	}
	return out, nil
}

// vpnInterfaceID picks wireguard_id for everything but OpenVPN, which
// uses tunnel_id, falling back to x_openvpn_tunnel_id, falling back to 0.
func vpnInterfaceID(n networkConfig, prefix string) int {
	if prefix == "tunovpnc" || prefix == "tun" {
		if n.TunnelID != nil {
			return *n.TunnelID
		}
		if n.XOpenVPNTunnelID != nil {
			return *n.XOpenVPNTunnelID
		}
		return 0
	}
	if n.WireguardID != nil {
		return *n.WireguardID
	}
	return 0
}
