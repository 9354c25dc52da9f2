// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package parser

import (
	"strings"

	"github.com/phersys/loginsight/internal/controller"
	"github.com/phersys/loginsight/internal/netaddr"
)

// hasVPNPrefix uses controller.VPNInterfacePrefixes() so ingest-time
// direction derivation and query-time vpn_only filtering/badging agree on
// exactly the same set of interface prefixes, in the same tunovpnc-before-
// tun order.
func hasVPNPrefix(iface string) bool {
	for _, p := range controller.VPNInterfacePrefixes() {
		if strings.HasPrefix(iface, p) {
			return true
		}
	}
	return false
}

// DeriveDirection classifies a firewall event's traversal direction.
// wanInterfaces and wanIPs are the current config-store values; the
// caller supplies them so this stays a pure function of its inputs.
func DeriveDirection(ifaceIn, ifaceOut, ruleName, srcIP, dstIP string, wanInterfaces, wanIPs []string) Direction {
	if netaddr.IsBroadcastOrMulticast(dstIP) {
		return DirectionLocal
	}
	if srcIP != "" && contains(wanIPs, srcIP) && !contains(wanInterfaces, ifaceOut) {
		return DirectionLocal
	}
	if strings.Contains(ruleName, "DNAT") || strings.Contains(ruleName, "PREROUTING") {
		return DirectionNAT
	}

	inIsWAN := contains(wanInterfaces, ifaceIn)
	outIsWAN := contains(wanInterfaces, ifaceOut)

	if ifaceOut == "" {
		if inIsWAN {
			return DirectionInbound
		}
		return DirectionLocal
	}

	if inIsWAN != outIsWAN {
		if inIsWAN {
			return DirectionInbound
		}
		return DirectionOutbound
	}

	if !inIsWAN && !outIsWAN && ifaceIn != ifaceOut {
		if hasVPNPrefix(ifaceIn) || hasVPNPrefix(ifaceOut) {
			return DirectionVPN
		}
		return DirectionInterVLAN
	}

	return DirectionLocal
}

// deriveAction infers a disposition from the firewall rule-name convention.
func deriveAction(ruleName string) RuleAction {
	if ruleName == "" {
		return ActionAllow
	}
	if strings.Contains(ruleName, "DNAT") || strings.Contains(ruleName, "PREROUTING") {
		return ActionRedirect
	}
	if strings.Contains(ruleName, "-A-") {
		return ActionAllow
	}
	if strings.Contains(ruleName, "-B-") || strings.Contains(ruleName, "-D-") || strings.Contains(ruleName, "-R-") {
		return ActionBlock
	}
	return ActionAllow
}

func contains(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
