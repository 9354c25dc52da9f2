// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package parser

import (
	"testing"
	"time"
)

var utc = time.UTC

func TestInboundDropClassification(t *testing.T) {
	line := `Feb 8 16:43:49 router-host [WAN_IN-D-123] DESCR="Drop" IN=ppp0 OUT= MAC=aa:bb:cc:dd:ee:ff:11:22:33:44:55:66 SRC=198.51.100.7 DST=203.0.113.4 PROTO=TCP SPT=54321 DPT=22`
	now := time.Date(2026, time.February, 9, 0, 0, 0, 0, utc)
	wan := WANContext{Interfaces: []string{"ppp0"}}

	r, ok := Parse(line, now, utc, wan)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if r.Subtype != SubtypeFirewall {
		t.Errorf("subtype = %s, want firewall", r.Subtype)
	}
	if r.Direction != DirectionInbound {
		t.Errorf("direction = %s, want inbound", r.Direction)
	}
	if r.RuleAction != ActionBlock {
		t.Errorf("rule_action = %s, want block", r.RuleAction)
	}
	if r.ServiceName != "ssh" {
		t.Errorf("service_name = %s, want ssh", r.ServiceName)
	}
	if r.SrcIP != "198.51.100.7" {
		t.Errorf("src_ip = %s", r.SrcIP)
	}
	if r.MACAddress != "11:22:33:44:55:66" {
		t.Errorf("mac_address = %s, want source MAC bytes 7..12", r.MACAddress)
	}
}

func TestNATRedirectClassification(t *testing.T) {
	line := `Feb 8 16:43:49 router-host [USR_PREROUTING-R-1] DESCR="Port fwd" IN=ppp0 OUT=br0 SRC=198.51.100.9 DST=203.0.113.4 PROTO=TCP SPT=49152 DPT=443`
	now := time.Date(2026, time.February, 9, 0, 0, 0, 0, utc)
	wan := WANContext{Interfaces: []string{"ppp0"}}

	r, ok := Parse(line, now, utc, wan)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if r.Direction != DirectionNAT {
		t.Errorf("direction = %s, want nat", r.Direction)
	}
	if r.RuleAction != ActionRedirect {
		t.Errorf("rule_action = %s, want redirect", r.RuleAction)
	}
}

func TestNoOutInterfaceWANInIsInbound(t *testing.T) {
	line := `Feb 8 16:43:49 host [X-A-1] IN=ppp0 OUT= SRC=198.51.100.7 DST=203.0.113.4 PROTO=TCP SPT=1 DPT=2`
	now := time.Date(2026, time.February, 9, 0, 0, 0, 0, utc)
	r, ok := Parse(line, now, utc, WANContext{Interfaces: []string{"ppp0"}})
	if !ok {
		t.Fatal("parse failed")
	}
	if r.Direction != DirectionInbound {
		t.Errorf("direction = %s, want inbound", r.Direction)
	}
}

func TestBroadcastDestinationIsLocal(t *testing.T) {
	line := `Feb 8 16:43:49 host [X-A-1] IN=br0 OUT=ppp0 SRC=192.168.1.5 DST=255.255.255.255 PROTO=UDP SPT=1 DPT=2`
	now := time.Date(2026, time.February, 9, 0, 0, 0, 0, utc)
	r, ok := Parse(line, now, utc, WANContext{Interfaces: []string{"ppp0"}})
	if !ok {
		t.Fatal("parse failed")
	}
	if r.Direction != DirectionLocal {
		t.Errorf("direction = %s, want local", r.Direction)
	}
}

func TestInterVLANVsVPN(t *testing.T) {
	now := time.Date(2026, time.February, 9, 0, 0, 0, 0, utc)
	wan := WANContext{Interfaces: []string{"ppp0"}}

	vlanLine := `Feb 8 16:43:49 host [X-A-1] IN=br0 OUT=br1 SRC=192.168.1.5 DST=192.168.2.5 PROTO=TCP SPT=1 DPT=2`
	r, ok := Parse(vlanLine, now, utc, wan)
	if !ok || r.Direction != DirectionInterVLAN {
		t.Errorf("expected inter_vlan, got %s (ok=%v)", r.Direction, ok)
	}

	vpnLine := `Feb 8 16:43:49 host [X-A-1] IN=tunovpnc0 OUT=br0 SRC=10.8.0.5 DST=192.168.2.5 PROTO=TCP SPT=1 DPT=2`
	r2, ok := Parse(vpnLine, now, utc, wan)
	if !ok || r2.Direction != DirectionVPN {
		t.Errorf("expected vpn for tunovpnc interface, got %s (ok=%v)", r2.Direction, ok)
	}
}

func TestYearWrapDecember(t *testing.T) {
	line := `Dec 31 23:59:59 host system message here`
	now := time.Date(2027, time.January, 1, 0, 0, 1, 0, utc)
	r, ok := Parse(line, now, utc, WANContext{})
	if !ok {
		t.Fatal("parse failed")
	}
	if r.OriginTimestamp.Year() != 2026 {
		t.Errorf("year = %d, want 2026 (previous year)", r.OriginTimestamp.Year())
	}
}

func TestClockSkewSameMonthNoYearRollback(t *testing.T) {
	// Sender clock 5s ahead of receiver, same day/month: must NOT roll
	// back a year just because the timestamp is slightly in the future.
	line := `Jul 31 23:59:59 host system message here`
	now := time.Date(2026, time.July, 31, 23, 59, 54, 0, utc)
	r, ok := Parse(line, now, utc, WANContext{})
	if !ok {
		t.Fatal("parse failed")
	}
	if r.OriginTimestamp.Year() != 2026 {
		t.Errorf("year = %d, want 2026 (no rollback for small clock skew)", r.OriginTimestamp.Year())
	}
}

func TestPriorityPrefixStripped(t *testing.T) {
	line := `<13>Feb 8 16:43:49 host some system message`
	now := time.Date(2026, time.February, 9, 0, 0, 0, 0, utc)
	r, ok := Parse(line, now, utc, WANContext{})
	if !ok {
		t.Fatal("expected priority-prefixed line to parse")
	}
	if r.Subtype != SubtypeSystem {
		t.Errorf("subtype = %s, want system", r.Subtype)
	}
}

func TestUnparsableHeaderReturnsFalse(t *testing.T) {
	_, ok := Parse("not a syslog line at all", time.Now(), utc, WANContext{})
	if ok {
		t.Error("expected parse failure for garbage input")
	}
}

func TestInvalidIPFieldIsNulledNotRejected(t *testing.T) {
	line := `Feb 8 16:43:49 host [X-A-1] IN=br0 OUT=ppp0 SRC=not.an.ip PROTO=TCP DST=203.0.113.4 SPT=1 DPT=2`
	now := time.Date(2026, time.February, 9, 0, 0, 0, 0, utc)
	r, ok := Parse(line, now, utc, WANContext{Interfaces: []string{"ppp0"}})
	if !ok {
		t.Fatal("parse must still succeed with one bad IP field")
	}
	if r.SrcIP != "" {
		t.Errorf("src_ip = %q, want nulled", r.SrcIP)
	}
	if r.RawLog != line {
		t.Error("raw_log must be preserved intact")
	}
}

func TestParseIsPureAndIdempotent(t *testing.T) {
	line := `Feb 8 16:43:49 host [WAN_IN-A-1] IN=ppp0 OUT=br0 SRC=198.51.100.7 DST=192.168.1.5 PROTO=TCP SPT=1 DPT=443`
	now := time.Date(2026, time.February, 9, 0, 0, 0, 0, utc)
	wan := WANContext{Interfaces: []string{"ppp0"}}

	r1, ok1 := Parse(line, now, utc, wan)
	r2, ok2 := Parse(line, now, utc, wan)
	if !ok1 || !ok2 {
		t.Fatal("parse failed")
	}
	r1.RawLog, r2.RawLog = "", ""
	if r1 != r2 {
		t.Errorf("parse is not deterministic: %+v != %+v", r1, r2)
	}
}

func TestDNSQueryParsing(t *testing.T) {
	line := `Feb 8 16:43:49 host dnsmasq[123]: query[A] example.com from 192.168.1.5`
	now := time.Date(2026, time.February, 9, 0, 0, 0, 0, utc)
	r, ok := Parse(line, now, utc, WANContext{})
	if !ok {
		t.Fatal("parse failed")
	}
	if r.Subtype != SubtypeDNS || r.DNSQuery != "example.com" || r.DNSType != "A" || r.SrcIP != "192.168.1.5" {
		t.Errorf("unexpected dns record: %+v", r)
	}
}

func TestDHCPAckParsing(t *testing.T) {
	line := `Feb 8 16:43:49 host dnsmasq-dhcp[123]: DHCPACK(br0) 192.168.1.50 aa:bb:cc:dd:ee:ff laptop`
	now := time.Date(2026, time.February, 9, 0, 0, 0, 0, utc)
	r, ok := Parse(line, now, utc, WANContext{})
	if !ok {
		t.Fatal("parse failed")
	}
	if r.DHCPEvent != "DHCPACK" || r.SrcIP != "192.168.1.50" || r.Hostname != "laptop" {
		t.Errorf("unexpected dhcp record: %+v", r)
	}
}

func TestWANIPAutoLearnFallback(t *testing.T) {
	line := `Feb 8 16:43:49 host [WAN_LOCAL-A-1] IN=ppp0 OUT= SRC=198.51.100.7 DST=203.0.113.9 PROTO=TCP SPT=1 DPT=443`
	now := time.Date(2026, time.February, 9, 0, 0, 0, 0, utc)
	var learned string
	wan := WANContext{
		Interfaces: []string{"ppp0"},
		AutoLearn:  func(ip string) { learned = ip },
	}
	_, ok := Parse(line, now, utc, wan)
	if !ok {
		t.Fatal("parse failed")
	}
	if learned != "203.0.113.9" {
		t.Errorf("learned = %q, want 203.0.113.9", learned)
	}
}

func TestWANIPAutoLearnSkippedWhenAuthoritative(t *testing.T) {
	line := `Feb 8 16:43:49 host [WAN_LOCAL-A-1] IN=ppp0 OUT= SRC=198.51.100.7 DST=203.0.113.9 PROTO=TCP SPT=1 DPT=443`
	now := time.Date(2026, time.February, 9, 0, 0, 0, 0, utc)
	var learned string
	wan := WANContext{
		Interfaces:           []string{"ppp0"},
		AuthoritativeIPByIfc: true,
		AutoLearn:            func(ip string) { learned = ip },
	}
	_, ok := Parse(line, now, utc, wan)
	if !ok {
		t.Fatal("parse failed")
	}
	if learned != "" {
		t.Errorf("expected no auto-learn when wan_ip_by_iface is authoritative, got %q", learned)
	}
}
