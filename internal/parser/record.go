// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package parser converts raw syslog lines from the router/firewall into
// structured Record values. Every function here is pure — no I/O, no
// clock reads beyond the process's "now" for year disambiguation — so
// the same raw line always parses to the same Record.
package parser

import "time"

// Subtype classifies the syslog body.
type Subtype string

const (
	SubtypeFirewall Subtype = "firewall"
	SubtypeDNS      Subtype = "dns"
	SubtypeDHCP     Subtype = "dhcp"
	SubtypeWifi     Subtype = "wifi"
	SubtypeSystem   Subtype = "system"
	SubtypeUnknown  Subtype = "unknown"
)

// Direction classifies packet traversal relative to the router.
type Direction string

const (
	DirectionInbound   Direction = "inbound"
	DirectionOutbound  Direction = "outbound"
	DirectionInterVLAN Direction = "inter_vlan"
	DirectionNAT       Direction = "nat"
	DirectionVPN       Direction = "vpn"
	DirectionLocal     Direction = "local"
)

// RuleAction is the firewall disposition.
type RuleAction string

const (
	ActionAllow    RuleAction = "allow"
	ActionBlock    RuleAction = "block"
	ActionRedirect RuleAction = "redirect"
)

// Record is one parsed syslog line, prior to enrichment.
type Record struct {
	OriginTimestamp time.Time
	Subtype         Subtype

	SrcIP, DstIP         string
	SrcPort, DstPort     int
	Protocol             string
	ServiceName          string
	RuleName, RuleDesc   string
	RuleAction           RuleAction
	Direction            Direction
	InterfaceIn, InterfaceOut string
	MACAddress, Hostname string
	DHCPEvent            string
	DNSQuery, DNSType, DNSAnswer string
	WifiEvent            string
	RawLog               string
}

// HasDirection reports whether d is non-empty.
func (r Record) HasDirection() bool { return r.Direction != "" }
