// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/phersys/loginsight/internal/store"
)

func (s *Server) registerStatsRoutes(r *mux.Router) {
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
}

// AnnotatedIPCount is an store.IPCount plus the same WAN/gateway/VPN
// labelling the log list applies, so a dashboard's top-IP panels read
// consistently with the log table.
type AnnotatedIPCount struct {
	store.IPCount
	WANLabel string `json:"wan_label,omitempty"`
	VPNBadge string `json:"vpn_badge,omitempty"`
}

type statsResponse struct {
	Total          int64                    `json:"total"`
	BySubtype      map[string]int64         `json:"by_subtype"`
	Blocked        int64                    `json:"blocked"`
	ThreatHits     int64                    `json:"threat_hits"`
	ByDirection    map[string]int64         `json:"by_direction"`
	TopBlockedIPs  []AnnotatedIPCount       `json:"top_blocked_ips"`
	TopThreatIPs   []AnnotatedIPCount       `json:"top_threat_ips"`
	TopInternalIPs []AnnotatedIPCount       `json:"top_internal_ips"`
	TopCountries   []store.StringCount      `json:"top_countries"`
	TopServices    []store.StringCount      `json:"top_services"`
	TopDNSQueries  []store.StringCount      `json:"top_dns_queries"`
	Series         []store.SeriesPoint      `json:"series"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := s.now()

	cutoff, ok := store.ResolveTimeRange(r.URL.Query().Get("time_range"), now)
	if !ok {
		cutoff = now.Add(-24 * time.Hour)
	}

	wanIPs, _ := s.cfg.GetStringSlice(ctx, "wan_ips")
	gatewayIPs, _ := s.cfg.GetStringSlice(ctx, "gateway_ips")

	stats, err := s.db.DashboardStats(ctx, cutoff, now, wanIPs, gatewayIPs)
	if err != nil {
		writeError(w, err)
		return
	}

	ac := s.loadAnnotationContext(ctx)
	writeJSON(w, http.StatusOK, statsResponse{
		Total:          stats.Total,
		BySubtype:      stats.BySubtype,
		Blocked:        stats.Blocked,
		ThreatHits:     stats.ThreatHits,
		ByDirection:    stats.ByDirection,
		TopBlockedIPs:  annotateIPCounts(ac, stats.TopBlockedIPs),
		TopThreatIPs:   annotateIPCounts(ac, stats.TopThreatIPs),
		TopInternalIPs: annotateIPCounts(ac, stats.TopInternalIPs),
		TopCountries:   stats.TopCountries,
		TopServices:    stats.TopServices,
		TopDNSQueries:  stats.TopDNSQueries,
		Series:         stats.Series,
	})
}

func annotateIPCounts(ac annotationContext, counts []store.IPCount) []AnnotatedIPCount {
	out := make([]AnnotatedIPCount, len(counts))
	for i, c := range counts {
		wanLabel, _, badge := ac.annotate(c.IP, "")
		out[i] = AnnotatedIPCount{IPCount: c, WANLabel: wanLabel, VPNBadge: badge}
	}
	return out
}
