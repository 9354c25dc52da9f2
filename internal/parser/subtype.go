// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package parser

import "strings"

// detectSubtype classifies the syslog body; first match wins.
func detectSubtype(body string) Subtype {
	if strings.Contains(body, "SRC=") && strings.Contains(body, "DST=") && strings.Contains(body, "PROTO=") {
		return SubtypeFirewall
	}
	if strings.HasPrefix(body, "[") && strings.Contains(body, "DESCR=") {
		return SubtypeFirewall
	}
	if strings.Contains(body, "dnsmasq-dhcp") || containsDHCPVerb(body) {
		return SubtypeDHCP
	}
	if strings.Contains(body, "dnsmasq") && (strings.Contains(body, "query[") ||
		strings.Contains(body, "reply ") || strings.Contains(body, "forwarded ") || strings.Contains(body, "cached ")) {
		return SubtypeDNS
	}
	if strings.Contains(body, "stamgr") || strings.Contains(body, "hostapd") || strings.Contains(body, "stahtd") {
		return SubtypeWifi
	}
	if strings.Contains(body, "STA ") && (strings.Contains(body, "associated") || strings.Contains(body, "authenticated")) {
		return SubtypeWifi
	}
	return SubtypeSystem
}

func containsDHCPVerb(body string) bool {
	for _, verb := range []string{"DHCPACK", "DHCPDISCOVER", "DHCPREQUEST", "DHCPOFFER"} {
		if strings.Contains(body, verb) {
			return true
		}
	}
	return false
}
