// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package enrich

import (
	"context"
	"testing"

	"github.com/phersys/loginsight/internal/netaddr"
	"github.com/phersys/loginsight/internal/parser"
)

func TestEngineEnrichPrefersRemoteSrcIP(t *testing.T) {
	e := NewEngine(nil, nil, nil)
	e.SetExclusion(netaddr.ExclusionSet{WANIPs: []string{"203.0.113.1"}})

	rec := parser.Record{SrcIP: "198.51.100.7", DstIP: "203.0.113.1"}
	res, ok := e.Enrich(context.Background(), rec)
	if !ok {
		t.Fatal("expected a target to be chosen")
	}
	if res.TargetIP != "198.51.100.7" {
		t.Errorf("target = %q, want remote src_ip", res.TargetIP)
	}
}

func TestEngineEnrichFallsBackToDstIPWhenSrcIsLocal(t *testing.T) {
	e := NewEngine(nil, nil, nil)
	e.SetExclusion(netaddr.ExclusionSet{})

	rec := parser.Record{SrcIP: "192.168.1.50", DstIP: "198.51.100.7"}
	res, ok := e.Enrich(context.Background(), rec)
	if !ok {
		t.Fatal("expected a target to be chosen")
	}
	if res.TargetIP != "198.51.100.7" {
		t.Errorf("target = %q, want remote dst_ip", res.TargetIP)
	}
}

func TestEngineEnrichNoneWhenBothLocal(t *testing.T) {
	e := NewEngine(nil, nil, nil)
	e.SetExclusion(netaddr.ExclusionSet{})

	rec := parser.Record{SrcIP: "192.168.1.50", DstIP: "10.0.0.1"}
	if _, ok := e.Enrich(context.Background(), rec); ok {
		t.Fatal("expected no target for two local IPs")
	}
}

func TestEngineEnrichSkipsThreatClientForNonBlockedRows(t *testing.T) {
	e := NewEngine(nil, nil, nil)
	e.SetExclusion(netaddr.ExclusionSet{})

	rec := parser.Record{SrcIP: "198.51.100.7", DstIP: "192.168.1.1", Subtype: parser.SubtypeFirewall, RuleAction: parser.ActionAllow}
	res, ok := e.Enrich(context.Background(), rec)
	if !ok {
		t.Fatal("expected a target to be chosen")
	}
	if res.HasThreat {
		t.Error("expected no threat lookup for a non-block rule action")
	}
}
