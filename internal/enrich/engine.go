// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package enrich

import (
	"context"
	"sync"

	"github.com/phersys/loginsight/internal/netaddr"
	"github.com/phersys/loginsight/internal/parser"
	"github.com/phersys/loginsight/internal/store"
)

// Result holds everything the three collaborators produced for one
// record's chosen target IP.
type Result struct {
	TargetIP string
	Geo      GeoResult
	RDNS     string
	Threat   store.ThreatEntry
	HasThreat bool
}

// Engine is the orchestrator combining GeoIP/ASN, rDNS, and the threat
// client, holding the exclusion set every lookup is checked against.
type Engine struct {
	Geo    *GeoLookup
	RDNS   *RDNSResolver
	Threat *ThreatClient

	mu        sync.RWMutex
	exclusion netaddr.ExclusionSet
}

// NewEngine wires the three collaborators together.
func NewEngine(geo *GeoLookup, rdns *RDNSResolver, threat *ThreatClient) *Engine {
	return &Engine{Geo: geo, RDNS: rdns, Threat: threat}
}

// SetExclusion injects the current WAN/gateway IP set; called at receiver
// startup and on every config reload.
func (e *Engine) SetExclusion(ex netaddr.ExclusionSet) {
	e.mu.Lock()
	e.exclusion = ex
	e.mu.Unlock()
	if e.Threat != nil {
		e.Threat.SetExclusion(ex)
	}
}

// Enrich picks the target IP per the "prefer remote src_ip, else remote
// dst_ip, else none" rule, runs GeoIP/ASN and rDNS whenever a target was
// chosen, and runs the threat client only for a blocked firewall row.
func (e *Engine) Enrich(ctx context.Context, rec parser.Record) (Result, bool) {
	e.mu.RLock()
	ex := e.exclusion
	e.mu.RUnlock()

	target, ok := ex.PreferredEnrichTarget(rec.SrcIP, rec.DstIP)
	if !ok {
		return Result{}, false
	}

	res := Result{TargetIP: target}
	if e.Geo != nil {
		res.Geo = e.Geo.Lookup(target)
	}
	if e.RDNS != nil {
		res.RDNS = e.RDNS.Lookup(target)
	}
	if e.Threat != nil && rec.Subtype == parser.SubtypeFirewall && rec.RuleAction == parser.ActionBlock {
		if entry, found := e.Threat.Lookup(ctx, target); found {
			res.Threat, res.HasThreat = entry, true
		}
	}
	return res, true
}
