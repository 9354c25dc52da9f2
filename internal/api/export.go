// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/phersys/loginsight/internal/store"
)

// No third-party CSV writer appears anywhere in the retrieval pack; the
// standard library's encoding/csv is the only grounded choice here.
func (s *Server) registerExportRoutes(r *mux.Router) {
	r.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)
}

var exportColumns = []string{
	"id", "timestamp", "log_type", "direction", "src_ip", "src_port", "dst_ip", "dst_port",
	"protocol", "service", "rule_name", "rule_action", "interface_in", "interface_out",
	"country", "asn", "threat_score", "wan_label", "vpn_badge",
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f := parseFilter(r)
	f.SortColumn = store.ResolveSortColumn(f.SortColumn)
	f.Page = 1

	limit, _ := parseInt(r.URL.Query().Get("limit"))
	f.PageSize = store.ClampExportLimit(limit)

	now := s.now()
	vpnPrefixes := s.vpnInterfacePrefixes(ctx)

	records, err := s.db.ListLogs(ctx, f, now, vpnPrefixes)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="logs-export.csv"`)
	cw := csv.NewWriter(w)
	if err := cw.Write(exportColumns); err != nil {
		return
	}

	ac := s.loadAnnotationContext(ctx)
	for _, rec := range records {
		wanLabel, _, vpnBadge := ac.annotate(rec.SrcIP, rec.DstIP)
		row := []string{
			strconv.FormatInt(rec.ID, 10),
			rec.OriginTimestamp.Format("2006-01-02T15:04:05Z07:00"),
			string(rec.Subtype),
			string(rec.Direction),
			rec.SrcIP,
			portString(rec.SrcPort),
			rec.DstIP,
			portString(rec.DstPort),
			rec.Protocol,
			rec.ServiceName,
			rec.RuleName,
			string(rec.RuleAction),
			rec.InterfaceIn,
			rec.InterfaceOut,
			rec.GeoCountry,
			rec.ASNName,
			threatScoreString(rec.ThreatScore),
			wanLabel,
			vpnBadge,
		}
		if err := cw.Write(row); err != nil {
			return
		}
	}
	cw.Flush()
}

func portString(p int) string {
	if p == 0 {
		return ""
	}
	return strconv.Itoa(p)
}

func threatScoreString(n *int) string {
	if n == nil {
		return ""
	}
	return fmt.Sprintf("%d", *n)
}
