// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"context"
	"net/netip"

	"github.com/phersys/loginsight/internal/config"
	"github.com/phersys/loginsight/internal/netaddr"
	"github.com/phersys/loginsight/internal/store"
)

// vpnNetworkCfg is one entry of the vpn_networks config map: iface ->
// {cidr, badge}. Only the CIDR and badge are needed here; the interface
// key is how the setup wizard groups them, not how logs are annotated.
type vpnNetworkCfg struct {
	CIDR  string `json:"cidr"`
	Badge string `json:"badge"`
}

type vpnPrefix struct {
	prefix netip.Prefix
	badge  string
}

// annotationContext is the configured topology the post-fetch pass
// consults: WAN/gateway exclusion, per-IP WAN display labels, per-IP
// gateway VLANs, and VPN network CIDRs.
type annotationContext struct {
	wanIPs       []string
	gatewayIPs   []string
	wanNames     map[string]string
	gatewayVLANs map[string]int
	vpnPrefixes  []vpnPrefix
}

// loadAnnotationContext reads every config key the post-fetch annotation
// pass needs in one pass, so a page of a hundred rows doesn't each read
// the config store independently.
func (s *Server) loadAnnotationContext(ctx context.Context) annotationContext {
	var ac annotationContext
	ac.wanIPs, _ = s.cfg.GetStringSlice(ctx, "wan_ips")
	ac.gatewayIPs, _ = s.cfg.GetStringSlice(ctx, "gateway_ips")

	if names, ok, err := config.GetJSON[map[string]string](ctx, s.cfg, "wan_ip_names"); err == nil && ok {
		ac.wanNames = names
	}
	if vlans, ok, err := config.GetJSON[map[string]int](ctx, s.cfg, "gateway_ip_vlans"); err == nil && ok {
		ac.gatewayVLANs = vlans
	}
	if nets, ok, err := config.GetJSON[map[string]vpnNetworkCfg](ctx, s.cfg, "vpn_networks"); err == nil && ok {
		for _, n := range nets {
			if n.CIDR == "" {
				continue
			}
			if p, err := netip.ParsePrefix(n.CIDR); err == nil {
				ac.vpnPrefixes = append(ac.vpnPrefixes, vpnPrefix{prefix: p, badge: n.Badge})
			}
		}
	}
	return ac
}

func (ac annotationContext) excluded(ip string) bool {
	return netaddr.Contains(ac.wanIPs, ip) || netaddr.Contains(ac.gatewayIPs, ip)
}

func (ac annotationContext) badgeFor(ip string) (string, bool) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "", false
	}
	for _, n := range ac.vpnPrefixes {
		if n.prefix.Contains(addr) {
			return n.badge, true
		}
	}
	return "", false
}

// annotate derives the WAN label, gateway VLAN, and VPN badge for one
// record's src/dst pair. IPs already carrying a WAN or gateway label are
// excluded from VPN badge matching, per §4.8.2.
func (ac annotationContext) annotate(srcIP, dstIP string) (wanLabel string, gatewayVLAN *int, vpnBadge string) {
	for _, ip := range [2]string{dstIP, srcIP} {
		if ip == "" {
			continue
		}
		if wanLabel == "" {
			if name, ok := ac.wanNames[ip]; ok {
				wanLabel = name
			}
		}
		if gatewayVLAN == nil {
			if v, ok := ac.gatewayVLANs[ip]; ok {
				vlan := v
				gatewayVLAN = &vlan
			}
		}
	}

	for _, ip := range [2]string{srcIP, dstIP} {
		if ip == "" || ac.excluded(ip) {
			continue
		}
		if b, ok := ac.badgeFor(ip); ok {
			vpnBadge = b
			break
		}
	}
	return wanLabel, gatewayVLAN, vpnBadge
}

// AnnotatedRecord is a store.Record plus the topology metadata the HTTP
// API layers on after the database query returns.
type AnnotatedRecord struct {
	store.Record
	GatewayVLAN *int   `json:"gateway_vlan,omitempty"`
	WANLabel    string `json:"wan_label,omitempty"`
	VPNBadge    string `json:"vpn_badge,omitempty"`
}

func (s *Server) annotateRecords(ctx context.Context, records []store.Record) []AnnotatedRecord {
	ac := s.loadAnnotationContext(ctx)
	out := make([]AnnotatedRecord, len(records))
	for i, r := range records {
		wanLabel, vlan, badge := ac.annotate(r.SrcIP, r.DstIP)
		out[i] = AnnotatedRecord{Record: r, GatewayVLAN: vlan, WANLabel: wanLabel, VPNBadge: badge}
	}
	return out
}
