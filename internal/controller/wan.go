// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controller

import (
	"context"
	"strconv"

	"github.com/phersys/loginsight/internal/config"
)

type wanNetworkConfig struct {
	Purpose string `json:"purpose"`
	Name    string `json:"name"`
	WANIP   string `json:"wan_ip"`
	VLAN    *int   `json:"vlan"`
}

// RefreshWANConfig walks the controller's WAN network configs and writes
// back the config keys the rest of the pipeline reads: wan_ip_by_iface,
// wan_ips, wan_ip (the primary), wan_ip_names, gateway_ip_vlans, and
// gateway_ips. iface is assigned in controller-reported order (wan, wan2,
// ...), matching how the teacher-side device names its uplinks.
func (p *Poller) RefreshWANConfig(ctx context.Context, cfg *config.Store) error {
	var resp dataResponse[wanNetworkConfig]
	if err := p.client.doJSON(ctx, "GET", p.client.classicURL("/rest/networkconf"), nil, &resp); err != nil {
		return err
	}

	wan := deriveWANConfig(resp.Data)

	if err := config.SetJSON(ctx, cfg, "wan_ip_by_iface", wan.byIface); err != nil {
		return err
	}
	if err := config.SetJSON(ctx, cfg, "wan_ip_names", wan.names); err != nil {
		return err
	}
	if err := cfg.SetStringSlice(ctx, "wan_ips", wan.ips); err != nil {
		return err
	}
	if len(wan.ips) > 0 {
		if err := cfg.SetString(ctx, "wan_ip", wan.ips[0]); err != nil {
			return err
		}
	}
	if err := config.SetJSON(ctx, cfg, "gateway_ip_vlans", wan.gatewayVLANs); err != nil {
		return err
	}
	return cfg.SetStringSlice(ctx, "gateway_ips", wan.gatewayIPs)
}

// derivedWANConfig is the pure-computation result of walking a
// controller's network config list, kept separate from RefreshWANConfig
// so it can be tested without a live config store.
type derivedWANConfig struct {
	byIface      map[string]string
	names        map[string]string
	ips          []string
	gatewayVLANs map[string]int
	gatewayIPs   []string
}

// deriveWANConfig assigns iface names in controller-reported order (wan,
// wan2, ...), matching how the teacher-side device names its uplinks.
func deriveWANConfig(networks []wanNetworkConfig) derivedWANConfig {
	out := derivedWANConfig{
		byIface:      map[string]string{},
		names:        map[string]string{},
		gatewayVLANs: map[string]int{},
	}

	wanIdx := 0
	for _, n := range networks {
		switch n.Purpose {
		case "wan":
			iface := "wan"
			if wanIdx > 0 {
				iface = "wan" + strconv.Itoa(wanIdx+1)
			}
			wanIdx++
			if n.WANIP != "" {
				out.byIface[iface] = n.WANIP
				out.names[n.WANIP] = n.Name
				out.ips = append(out.ips, n.WANIP)
			}
		case "corporate", "guest", "vlan-only":
			if n.WANIP != "" {
				out.gatewayIPs = append(out.gatewayIPs, n.WANIP)
				if n.VLAN != nil {
					out.gatewayVLANs[n.WANIP] = *n.VLAN
				}
			}
		}
	}
	return out
}
