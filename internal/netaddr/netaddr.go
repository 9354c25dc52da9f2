// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package netaddr provides the IP-classification primitives shared by the
// persistent store and the enrichment engine, so "is this our own WAN/
// gateway IP" and "is this a remote, enrichable IP" are answered exactly
// the same way everywhere.
package netaddr

import "net/netip"

// IsValid reports whether s parses as an IP literal. Parsers use this to
// decide whether to null a field rather than reject a whole record.
func IsValid(s string) bool {
	_, err := netip.ParseAddr(s)
	return err == nil
}

// IsGlobal reports whether addr is a globally routable unicast address:
// not private, loopback, link-local, multicast, or otherwise special-use.
func IsGlobal(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	a := addr.Unmap()
	switch {
	case a.IsPrivate(),
		a.IsLoopback(),
		a.IsLinkLocalUnicast(),
		a.IsLinkLocalMulticast(),
		a.IsMulticast(),
		a.IsUnspecified(),
		a.IsInterfaceLocalMulticast():
		return false
	}
	return a.IsGlobalUnicast()
}

// IsRemote reports whether s is a syntactically valid, globally routable
// IP that is not among the installation's own WAN or gateway addresses.
// This is the "which IP to enrich" predicate.
func IsRemote(s string, wanIPs, gatewayIPs []string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	if !IsGlobal(addr) {
		return false
	}
	return !Contains(wanIPs, s) && !Contains(gatewayIPs, s)
}

// IsBroadcastOrMulticast reports whether s is the limited broadcast
// address (255.255.255.255), a subnet broadcast heuristic is not
// attempted without a mask, or a multicast address.
func IsBroadcastOrMulticast(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	a := addr.Unmap()
	if a == netip.AddrFrom4([4]byte{255, 255, 255, 255}) {
		return true
	}
	return a.IsMulticast() || a.IsLinkLocalMulticast() || a.IsInterfaceLocalMulticast()
}

// Contains reports whether s (case-sensitive, exact match) is present in
// ips. IPs in config are stored as their canonical string form.
func Contains(ips []string, s string) bool {
	for _, ip := range ips {
		if ip == s {
			return true
		}
	}
	return false
}

// Normalize returns the canonical string form of an IP literal, or ("",
// false) if s does not parse.
func Normalize(s string) (string, bool) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return "", false
	}
	return addr.String(), true
}

// ExclusionSet is the installation's own addresses: a record or cache
// entry about one of these must never carry a remote party's enrichment,
// and vice versa.
type ExclusionSet struct {
	WANIPs     []string
	GatewayIPs []string
}

// Contains reports whether ip is a WAN or gateway address of this
// installation.
func (e ExclusionSet) Contains(ip string) bool {
	return Contains(e.WANIPs, ip) || Contains(e.GatewayIPs, ip)
}

// PreferredEnrichTarget picks which IP to enrich: prefer src_ip when
// remote, else dst_ip when remote, else ("", false).
func (e ExclusionSet) PreferredEnrichTarget(srcIP, dstIP string) (string, bool) {
	if srcIP != "" && IsRemote(srcIP, e.WANIPs, e.GatewayIPs) {
		return srcIP, true
	}
	if dstIP != "" && IsRemote(dstIP, e.WANIPs, e.GatewayIPs) {
		return dstIP, true
	}
	return "", false
}
