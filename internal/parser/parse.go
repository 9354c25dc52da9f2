// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package parser

import (
	"net/netip"
	"strings"
	"time"

	"github.com/phersys/loginsight/internal/netaddr"
)

// WANContext carries the mutable config the parser needs to derive
// direction and to auto-learn a WAN IP when the authoritative
// wan_ip_by_iface map hasn't been populated yet. AutoLearn is invoked
// (if non-nil) when a WAN_LOCAL firewall rule reveals a WAN IP; the
// parser itself holds no state across calls.
type WANContext struct {
	Interfaces           []string
	IPs                  []string
	AuthoritativeIPByIfc bool
	AutoLearn            func(ip string)
}

// Parse converts a raw syslog line into a Record. It returns (Record{},
// false) if the header cannot be matched even after stripping a leading
// priority tag — the caller is expected to drop the line and bump a
// failure counter, never to stall the pipeline.
//
// now and loc resolve the syslog header's missing year/zone; wan
// supplies the config needed for direction derivation.
func Parse(raw string, now time.Time, loc *time.Location, wan WANContext) (Record, bool) {
	h, ok := parseHeader(raw)
	if !ok {
		return Record{}, false
	}

	subtype := detectSubtype(h.body)

	var r Record
	switch subtype {
	case SubtypeFirewall:
		r = parseFirewall(h.body)
	case SubtypeDNS:
		r = parseDNS(h.body)
	case SubtypeDHCP:
		r = parseDHCP(h.body)
	case SubtypeWifi:
		r = parseWifi(h.body)
	default:
		r = Record{Subtype: SubtypeSystem}
	}

	r.OriginTimestamp = resolveTimestamp(h, now, loc)
	r.RawLog = raw

	validateIPFields(&r)

	if r.Subtype == SubtypeFirewall {
		maybeAutoLearnWAN(r, wan)
		r.Direction = DeriveDirection(r.InterfaceIn, r.InterfaceOut, r.RuleName, r.SrcIP, r.DstIP, wan.Interfaces, wan.IPs)
	}

	return r, true
}

// maybeAutoLearnWAN implements the fallback WAN-IP learning path: only
// runs when the authoritative wan_ip_by_iface map is absent, the rule
// fired on a configured WAN interface, and the rule name follows the
// WAN_LOCAL convention.
func maybeAutoLearnWAN(r Record, wan WANContext) {
	if wan.AuthoritativeIPByIfc || wan.AutoLearn == nil {
		return
	}
	if !contains(wan.Interfaces, r.InterfaceIn) {
		return
	}
	if !strings.Contains(r.RuleName, "WAN_LOCAL") {
		return
	}
	if r.DstIP == "" {
		return
	}
	addr, err := netip.ParseAddr(r.DstIP)
	if err != nil {
		return
	}
	if netaddr.IsGlobal(addr) {
		wan.AutoLearn(addr.String())
	}
}
