// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package services holds the static IANA port/protocol → service-name
// catalog used to annotate log records, with a small set of
// display-name overrides for services the bare IANA name renders
// poorly (e.g. "domain" → "dns").
package services

import (
	"sort"
	"strings"
)

// iana maps (port, protocol) to its IANA assigned name.
var iana = map[portProto]string{
	{20, "tcp"}: "ftp-data", {21, "tcp"}: "ftp",
	{22, "tcp"}: "ssh",
	{23, "tcp"}: "telnet",
	{25, "tcp"}: "smtp",
	{53, "tcp"}: "domain", {53, "udp"}: "domain",
	{67, "udp"}: "bootps", {68, "udp"}: "bootpc",
	{69, "udp"}: "tftp",
	{80, "tcp"}: "http", {80, "udp"}: "http",
	{110, "tcp"}: "pop3",
	{119, "tcp"}: "nntp",
	{123, "udp"}: "ntp",
	{137, "udp"}: "netbios-ns", {138, "udp"}: "netbios-dgm", {139, "tcp"}: "netbios-ssn",
	{143, "tcp"}: "imap",
	{161, "udp"}: "snmp", {162, "udp"}: "snmptrap",
	{179, "tcp"}: "bgp",
	{194, "tcp"}: "irc",
	{389, "tcp"}: "ldap", {389, "udp"}: "ldap",
	{443, "tcp"}: "https", {443, "udp"}: "https",
	{445, "tcp"}: "microsoft-ds",
	{465, "tcp"}: "smtps",
	{500, "udp"}: "isakmp",
	{514, "udp"}: "syslog",
	{515, "tcp"}: "printer",
	{587, "tcp"}: "submission",
	{636, "tcp"}: "ldaps",
	{853, "tcp"}: "domain-s", {853, "udp"}: "domain-s",
	{873, "tcp"}: "rsync",
	{993, "tcp"}: "imaps",
	{995, "tcp"}: "pop3s",
	{1194, "udp"}: "openvpn", {1194, "tcp"}: "openvpn",
	{1433, "tcp"}: "ms-sql-s",
	{1701, "udp"}: "l2tp",
	{1723, "tcp"}: "pptp",
	{1883, "tcp"}: "mqtt",
	{2049, "tcp"}: "nfs", {2049, "udp"}: "nfs",
	{3128, "tcp"}: "squid-http",
	{3306, "tcp"}: "mysql",
	{3389, "tcp"}: "ms-wbt-server",
	{3478, "udp"}: "stun",
	{4500, "udp"}: "ipsec-nat-t",
	{5060, "tcp"}: "sip", {5060, "udp"}: "sip",
	{5432, "tcp"}: "postgresql",
	{5900, "tcp"}: "vnc",
	{6379, "tcp"}: "redis",
	{8080, "tcp"}: "http-alt",
	{8443, "tcp"}: "https-alt",
	{8096, "tcp"}: "jellyfin",
	{9000, "tcp"}: "cslistener",
	{51820, "udp"}: "wireguard",
}

// overrides take precedence over the IANA table for display purposes —
// the IANA name for a port is technically correct but not what a
// dashboard reader expects (e.g. IANA calls 53/tcp "domain").
var overrides = map[portProto]string{
	{53, "tcp"}: "dns", {53, "udp"}: "dns",
	{67, "udp"}: "dhcp", {68, "udp"}: "dhcp",
	{123, "udp"}: "ntp",
	{443, "udp"}: "https (quic)",
}

type portProto struct {
	port     int
	protocol string
}

// Lookup returns the display service name for (port, protocol), or ""
// if the pair is unknown. protocol is matched case-insensitively and
// normalized to lowercase before the table lookup: protocol is always
// stored lowercase.
func Lookup(port int, protocol string) string {
	if port <= 0 || protocol == "" {
		return ""
	}
	key := portProto{port, strings.ToLower(protocol)}
	if name, ok := overrides[key]; ok {
		return name
	}
	if name, ok := iana[key]; ok {
		return name
	}
	return ""
}

// Entry is one (port, protocol) -> display name catalog row, exported so
// the store package can batch-apply the whole catalog as a VALUES join
// rather than one UPDATE per port.
type Entry struct {
	Port     int
	Protocol string
	Name     string
}

// Entries returns every catalog row, overrides taking precedence over
// the IANA name for a shared (port, protocol) key.
func Entries() []Entry {
	merged := make(map[portProto]string, len(iana))
	for k, v := range iana {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	out := make([]Entry, 0, len(merged))
	for k, name := range merged {
		out = append(out, Entry{Port: k.port, Protocol: k.protocol, Name: name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Port != out[j].Port {
			return out[i].Port < out[j].Port
		}
		return out[i].Protocol < out[j].Protocol
	})
	return out
}

// Names returns every distinct service name in the catalog, sorted, for
// the /api/services endpoint's static fallback listing.
func Names() []string {
	seen := make(map[string]bool)
	for _, name := range overrides {
		seen[name] = true
	}
	for _, name := range iana {
		if _, ok := seen[name]; !ok {
			seen[name] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
