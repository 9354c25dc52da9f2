// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/phersys/loginsight/internal/netaddr"
	"github.com/phersys/loginsight/internal/services"
)

var (
	reRuleName = regexp.MustCompile(`\[([^\]]+)\]`)
	reDescr    = regexp.MustCompile(`DESCR="([^"]*)"`)
	reIn       = regexp.MustCompile(`IN=(\S*)`)
	reOut      = regexp.MustCompile(`OUT=(\S*)`)
	reSrc      = regexp.MustCompile(`SRC=([0-9a-fA-F:.]+)`)
	reDst      = regexp.MustCompile(`DST=([0-9a-fA-F:.]+)`)
	reProto    = regexp.MustCompile(`PROTO=([A-Za-z]+)`)
	reSPT      = regexp.MustCompile(`SPT=(\d+)`)
	reDPT      = regexp.MustCompile(`DPT=(\d+)`)
	reMAC      = regexp.MustCompile(`MAC=([0-9a-fA-F:]+)`)

	reDNSQuery   = regexp.MustCompile(`query\[([A-Za-z]+)\]\s+(\S+)\s+from\s+([0-9a-fA-F:.]+)`)
	reDNSReply   = regexp.MustCompile(`reply\s+(\S+)\s+is\s+(.+)`)
	reDNSForward = regexp.MustCompile(`forwarded\s+(\S+)\s+to\s+([0-9a-fA-F:.]+)`)
	reDNSCached  = regexp.MustCompile(`cached\s+(\S+)\s+is\s+(.+)`)

	reDHCPAck = regexp.MustCompile(`DHCPACK\((\S+)\)\s+([0-9a-fA-F:.]+)\s+([0-9a-f:]+)\s*(\S*)`)
	reDHCPReq = regexp.MustCompile(`DHCPREQUEST\((\S+)\)\s+([0-9a-fA-F:.]+)\s+([0-9a-f:]+)`)
	reDHCPOff = regexp.MustCompile(`DHCPOFFER\((\S+)\)\s+([0-9a-fA-F:.]+)\s+([0-9a-f:]+)`)
	reDHCPDis = regexp.MustCompile(`DHCPDISCOVER\((\S+)\)\s+([0-9a-f:]+)`)

	reWifiAssoc = regexp.MustCompile(`STA\s+([0-9a-f:]+)\s+.*?(associated|disassociated|deauthenticated|authenticated)`)
	reWifiEvent = regexp.MustCompile(`(\w+):\s+STA\s+([0-9a-f:]+)`)
)

func match1(re *regexp.Regexp, body string) (string, bool) {
	m := re.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// extractMAC returns the source MAC from an iptables MAC field shaped
// "dest:src:ethertype" (6+6+2 bytes, colon-separated): bytes 7..12 are
// the source address.
func extractMAC(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, ":")
	if len(parts) >= 12 {
		return strings.Join(parts[6:12], ":")
	}
	return raw
}

func parseFirewall(body string) Record {
	r := Record{Subtype: SubtypeFirewall}
	if v, ok := match1(reRuleName, body); ok {
		r.RuleName = v
	}
	if v, ok := match1(reDescr, body); ok {
		r.RuleDesc = v
	}
	if v, ok := match1(reIn, body); ok && v != "" {
		r.InterfaceIn = v
	}
	if v, ok := match1(reOut, body); ok && v != "" {
		r.InterfaceOut = v
	}
	if v, ok := match1(reSrc, body); ok {
		r.SrcIP = v
	}
	if v, ok := match1(reDst, body); ok {
		r.DstIP = v
	}
	if v, ok := match1(reProto, body); ok {
		r.Protocol = strings.ToLower(v)
	}
	if v, ok := match1(reSPT, body); ok {
		if n, err := strconv.Atoi(v); err == nil {
			r.SrcPort = n
		}
	}
	if v, ok := match1(reDPT, body); ok {
		if n, err := strconv.Atoi(v); err == nil {
			r.DstPort = n
		}
	}
	r.ServiceName = services.Lookup(r.DstPort, r.Protocol)
	if v, ok := match1(reMAC, body); ok {
		r.MACAddress = extractMAC(v)
	}
	r.RuleAction = deriveAction(r.RuleName)
	return r
}

func parseDNS(body string) Record {
	r := Record{Subtype: SubtypeDNS}
	if m := reDNSQuery.FindStringSubmatch(body); m != nil {
		r.DNSType = m[1]
		r.DNSQuery = m[2]
		r.SrcIP = m[3]
		return r
	}
	if m := reDNSReply.FindStringSubmatch(body); m != nil {
		r.DNSQuery = m[1]
		r.DNSAnswer = strings.TrimSpace(m[2])
		return r
	}
	if m := reDNSForward.FindStringSubmatch(body); m != nil {
		r.DNSQuery = m[1]
		r.DstIP = m[2]
		return r
	}
	if m := reDNSCached.FindStringSubmatch(body); m != nil {
		r.DNSQuery = m[1]
		r.DNSAnswer = strings.TrimSpace(m[2])
		return r
	}
	return r
}

func parseDHCP(body string) Record {
	r := Record{Subtype: SubtypeDHCP}
	if m := reDHCPAck.FindStringSubmatch(body); m != nil {
		r.InterfaceIn = m[1]
		r.SrcIP = m[2]
		r.MACAddress = m[3]
		r.Hostname = m[4]
		r.DHCPEvent = "DHCPACK"
		return r
	}
	if m := reDHCPReq.FindStringSubmatch(body); m != nil {
		r.InterfaceIn = m[1]
		r.SrcIP = m[2]
		r.MACAddress = m[3]
		r.DHCPEvent = "DHCPREQUEST"
		return r
	}
	if m := reDHCPOff.FindStringSubmatch(body); m != nil {
		r.InterfaceIn = m[1]
		r.SrcIP = m[2]
		r.MACAddress = m[3]
		r.DHCPEvent = "DHCPOFFER"
		return r
	}
	if m := reDHCPDis.FindStringSubmatch(body); m != nil {
		r.InterfaceIn = m[1]
		r.MACAddress = m[2]
		r.DHCPEvent = "DHCPDISCOVER"
		return r
	}
	return r
}

func parseWifi(body string) Record {
	r := Record{Subtype: SubtypeWifi}
	if m := reWifiAssoc.FindStringSubmatch(body); m != nil {
		r.MACAddress = m[1]
		r.WifiEvent = m[2]
		return r
	}
	if m := reWifiEvent.FindStringSubmatch(body); m != nil {
		r.WifiEvent = m[1]
		r.MACAddress = m[2]
		return r
	}
	return r
}

// validateIPFields nulls any IP field that fails to parse, preserving
// the rest of the record.
func validateIPFields(r *Record) {
	if r.SrcIP != "" && !netaddr.IsValid(r.SrcIP) {
		r.SrcIP = ""
	}
	if r.DstIP != "" && !netaddr.IsValid(r.DstIP) {
		r.DstIP = ""
	}
}
