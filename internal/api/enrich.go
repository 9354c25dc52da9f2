// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"net/http"
	"net/netip"

	"github.com/gorilla/mux"

	pkgerrors "github.com/phersys/loginsight/internal/errors"
	"github.com/phersys/loginsight/internal/netaddr"
)

func (s *Server) registerEnrichRoutes(r *mux.Router) {
	r.HandleFunc("/abuseipdb/status", s.handleAbuseStatus).Methods(http.MethodGet)
	r.HandleFunc("/enrich/{ip}", s.handleManualEnrich).Methods(http.MethodPost)
}

func (s *Server) handleAbuseStatus(w http.ResponseWriter, r *http.Request) {
	if s.gate == nil {
		writeJSON(w, http.StatusOK, rateLimitInfo{})
		return
	}
	writeJSON(w, http.StatusOK, rateLimitInfoFrom(s.gate.Stats()))
}

// handleManualEnrich runs the four ordered validations of the manual
// threat-lookup route, then invalidates both cache tiers, performs a
// fresh lookup, and patches historical log rows to match.
func (s *Server) handleManualEnrich(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ip := mux.Vars(r)["ip"]

	norm, ok := netaddr.Normalize(ip)
	if !ok {
		writeError(w, pkgerrors.New(pkgerrors.KindValidation, "invalid ip"))
		return
	}
	addr, err := netip.ParseAddr(norm)
	if err != nil || !netaddr.IsGlobal(addr) {
		writeError(w, pkgerrors.New(pkgerrors.KindValidation, "ip is not publicly routable"))
		return
	}

	wanIPs, _ := s.cfg.GetStringSlice(ctx, "wan_ips")
	gatewayIPs, _ := s.cfg.GetStringSlice(ctx, "gateway_ips")
	exclusion := netaddr.ExclusionSet{WANIPs: wanIPs, GatewayIPs: gatewayIPs}
	if exclusion.Contains(norm) {
		writeError(w, pkgerrors.New(pkgerrors.KindValidation, "ip is a WAN or gateway address"))
		return
	}

	if s.threat == nil {
		writeError(w, pkgerrors.New(pkgerrors.KindUnavailable, "threat client is not enabled"))
		return
	}

	if s.gate != nil {
		stats := s.gate.Stats()
		if stats.Paused {
			writeError(w, pkgerrors.New(pkgerrors.KindRateLimited, "threat api is paused"))
			return
		}
		if stats.Remaining != nil && *stats.Remaining <= 0 && !stats.QuotaResetPending {
			writeError(w, pkgerrors.New(pkgerrors.KindRateLimited, "threat api budget exhausted"))
			return
		}
	}

	if err := s.db.InvalidateThreat(ctx, norm); err != nil {
		writeError(w, err)
		return
	}
	s.threat.Forget(norm)

	entry, found := s.threat.Lookup(ctx, norm)
	if !found {
		writeError(w, pkgerrors.New(pkgerrors.KindBadGateway, "threat lookup failed"))
		return
	}

	patched, err := s.db.PatchThreatForIP(ctx, norm, entry, wanIPs, gatewayIPs)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{
		"ip":           norm,
		"entry":        entry,
		"rows_patched": patched,
	}
	if s.gate != nil {
		resp["remaining"] = s.gate.Stats().Remaining
	}
	writeJSON(w, http.StatusOK, resp)
}
