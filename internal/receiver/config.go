// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package receiver runs the UDP syslog listener: one socket bound
// dual-stack, a bounded batch guarded by a lock, and a recv-with-timeout
// loop that flushes on size or age. Every accepted line is parsed,
// enriched, and appended before the next recv.
package receiver

import (
	"context"
	"encoding/json"

	"github.com/phersys/loginsight/internal/netaddr"
	"github.com/phersys/loginsight/internal/parser"
)

// configStore is the narrow slice of internal/config.Store the receiver
// needs to rebuild its WAN context on a config-reload signal.
type configStore interface {
	GetString(ctx context.Context, key string) (string, bool, error)
	GetStringSlice(ctx context.Context, key string) ([]string, error)
	SetStringSlice(ctx context.Context, key string, values []string) error
}

// wanState is the receiver's own copy of the installation's WAN/gateway
// addresses, rebuilt wholesale on every reload so readers never observe
// a half-updated map.
type wanState struct {
	interfaces []string
	ips        []string
	gatewayIPs []string
	exclusion  netaddr.ExclusionSet
}

// loadWANState reads the keys internal/controller.Poller.RefreshWANConfig
// writes back: wan_ip_by_iface's keys give the interface list, wan_ips and
// gateway_ips give the address lists.
func loadWANState(ctx context.Context, cfg configStore) (wanState, error) {
	var st wanState

	ips, err := cfg.GetStringSlice(ctx, "wan_ips")
	if err != nil {
		return st, err
	}
	st.ips = ips

	gatewayIPs, err := cfg.GetStringSlice(ctx, "gateway_ips")
	if err != nil {
		return st, err
	}
	st.gatewayIPs = gatewayIPs

	if raw, ok, err := cfg.GetString(ctx, "wan_ip_by_iface"); err != nil {
		return st, err
	} else if ok {
		var byIface map[string]string
		if err := json.Unmarshal([]byte(raw), &byIface); err == nil {
			for iface := range byIface {
				st.interfaces = append(st.interfaces, iface)
			}
		}
	}

	st.exclusion = netaddr.ExclusionSet{WANIPs: st.ips, GatewayIPs: st.gatewayIPs}
	return st, nil
}

// wanContext adapts the current state into the shape parser.Parse wants.
// autoLearn is invoked when the parser discovers a WAN IP the config
// store hasn't authoritatively recorded yet; the receiver persists it
// back to wan_ips so the next reload picks it up.
func (st wanState) wanContext(autoLearn func(ip string)) parser.WANContext {
	return parser.WANContext{
		Interfaces:           st.interfaces,
		IPs:                  st.ips,
		AuthoritativeIPByIfc: len(st.ips) > 0,
		AutoLearn:            autoLearn,
	}
}
