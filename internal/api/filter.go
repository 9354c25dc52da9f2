// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/phersys/loginsight/internal/controller"
	"github.com/phersys/loginsight/internal/store"
)

// parseFilter translates the flat query-parameter set §4.8.1 defines
// into a store.Filter. Unknown or malformed values are ignored rather
// than rejected: a typo'd time_from just falls back to no lower bound.
func parseFilter(r *http.Request) store.Filter {
	q := r.URL.Query()
	var f store.Filter

	f.LogTypes = splitCSV(q.Get("log_type"))
	f.TimeRange = q.Get("time_range")
	if t, ok := parseRFC3339(q.Get("time_from")); ok {
		f.TimeFrom = &t
	}
	if t, ok := parseRFC3339(q.Get("time_to")); ok {
		f.TimeTo = &t
	}
	f.SrcIP = q.Get("src_ip")
	f.DstIP = q.Get("dst_ip")
	f.IP = q.Get("ip")
	f.Directions = splitCSV(q.Get("direction"))
	f.VPNOnly = parseBool(q.Get("vpn_only"))
	f.RuleActions = splitCSV(q.Get("rule_action"))
	f.RuleName = q.Get("rule_name")
	f.Countries = splitCSV(q.Get("country"))
	if n, ok := parseInt(q.Get("threat_min")); ok {
		f.ThreatMin = &n
	}
	f.Search = q.Get("search")
	f.Services = splitCSV(q.Get("service"))
	f.Interfaces = splitCSV(q.Get("interface"))

	f.SortColumn = q.Get("sort")
	f.SortDesc = q.Get("order") != "asc"
	page, _ := parseInt(q.Get("page"))
	pageSize, _ := parseInt(q.Get("page_size"))
	f.Page = page
	f.PageSize = store.ClampPageSize(pageSize)

	return f
}

// vpnInterfacePrefixes returns the configured VPN interface-name prefixes
// used to mark a log row's direction as VPN. Falls back to the built-in
// controller list if nothing has been persisted yet (a fresh install
// before the setup wizard has run).
func (s *Server) vpnInterfacePrefixes(ctx context.Context) []string {
	prefixes, err := s.cfg.GetStringSlice(ctx, "vpn_prefixes")
	if err != nil || len(prefixes) == 0 {
		return controller.VPNInterfacePrefixes()
	}
	return prefixes
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func parseInt(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseRFC3339(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
