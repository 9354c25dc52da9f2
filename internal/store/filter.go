// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"fmt"
	"strings"
	"time"
)

// Filter is the parsed form of the flat query-parameter set every
// filter-accepting HTTP endpoint shares. The zero value matches every row.
type Filter struct {
	LogTypes    []string
	TimeRange   string // one of the tokens in timeRangeDurations
	TimeFrom    *time.Time
	TimeTo      *time.Time
	SrcIP       string
	DstIP       string
	IP          string // matches either side
	Directions  []string
	VPNOnly     bool
	RuleActions []string
	RuleName    string
	Countries   []string
	ThreatMin   *int
	Search      string
	Services    []string
	Interfaces  []string

	SortColumn string
	SortDesc   bool
	Page       int
	PageSize   int
}

var timeRangeDurations = map[string]time.Duration{
	"1h": time.Hour, "6h": 6 * time.Hour, "24h": 24 * time.Hour,
	"7d": 7 * 24 * time.Hour, "30d": 30 * 24 * time.Hour, "60d": 60 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour, "180d": 180 * 24 * time.Hour, "365d": 365 * 24 * time.Hour,
}

// sortColumnWhitelist maps an API-facing sort key to its trusted SQL
// column name; anything else is rejected rather than interpolated.
var sortColumnWhitelist = map[string]string{
	"origin_timestamp": "origin_timestamp",
	"ingested_at":       "ingested_at",
	"threat_score":      "threat_score",
	"src_ip":            "src_ip",
	"dst_ip":            "dst_ip",
}

// ResolveTimeRange converts a time_range token to its cutoff relative to
// now, or (zero, false) if the token is unrecognized.
func ResolveTimeRange(token string, now time.Time) (time.Time, bool) {
	d, ok := timeRangeDurations[token]
	if !ok {
		return time.Time{}, false
	}
	return now.Add(-d), true
}

// ResolveSortColumn validates a requested sort key against the
// whitelist, falling back to origin_timestamp.
func ResolveSortColumn(requested string) string {
	if col, ok := sortColumnWhitelist[requested]; ok {
		return col
	}
	return "origin_timestamp"
}

// ClampPageSize enforces the 1..200 page-size bound.
func ClampPageSize(n int) int {
	if n < 1 {
		return 50
	}
	if n > 200 {
		return 200
	}
	return n
}

// ClampExportLimit enforces the 1..100000 export-row bound.
func ClampExportLimit(n int) int {
	if n < 1 {
		return 10000
	}
	if n > 100000 {
		return 100000
	}
	return n
}

// likeEscape escapes the LIKE metacharacters \, %, and _ so a user search
// term is matched literally.
func likeEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// compiled is a WHERE fragment (without the leading "WHERE") plus its
// positional arguments, numbered from $1.
type compiled struct {
	clause string
	args   []any
}

// compile builds the WHERE fragment for f. vpnInterfacePrefixes is the
// configured set of VPN interface name prefixes, needed for vpn_only.
func (f Filter) compile(now time.Time, vpnInterfacePrefixes []string) compiled {
	var clauses []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.LogTypes) > 0 {
		clauses = append(clauses, fmt.Sprintf("subtype = ANY(%s)", arg(f.LogTypes)))
	}
	if f.TimeFrom != nil {
		clauses = append(clauses, fmt.Sprintf("origin_timestamp >= %s", arg(*f.TimeFrom)))
	} else if f.TimeRange != "" {
		if cutoff, ok := ResolveTimeRange(f.TimeRange, now); ok {
			clauses = append(clauses, fmt.Sprintf("origin_timestamp >= %s", arg(cutoff)))
		}
	}
	if f.TimeTo != nil {
		clauses = append(clauses, fmt.Sprintf("origin_timestamp <= %s", arg(*f.TimeTo)))
	}
	if f.SrcIP != "" {
		clauses = append(clauses, fmt.Sprintf("src_ip::text LIKE %s ESCAPE '\\'", arg("%"+likeEscape(f.SrcIP)+"%")))
	}
	if f.DstIP != "" {
		clauses = append(clauses, fmt.Sprintf("dst_ip::text LIKE %s ESCAPE '\\'", arg("%"+likeEscape(f.DstIP)+"%")))
	}
	if f.IP != "" {
		pat := arg("%" + likeEscape(f.IP) + "%")
		clauses = append(clauses, fmt.Sprintf("(src_ip::text LIKE %s ESCAPE '\\' OR dst_ip::text LIKE %s ESCAPE '\\')", pat, pat))
	}

	directions := f.Directions
	if f.VPNOnly && !contains(directions, "vpn") {
		directions = append(append([]string{}, directions...), "vpn")
	}
	if len(directions) > 0 {
		clauses = append(clauses, fmt.Sprintf("direction = ANY(%s)", arg(directions)))
	}
	if f.VPNOnly && len(vpnInterfacePrefixes) > 0 {
		var disjuncts []string
		for _, p := range vpnInterfacePrefixes {
			pat := arg(p + "%")
			disjuncts = append(disjuncts, fmt.Sprintf("(interface_in LIKE %s OR interface_out LIKE %s)", pat, pat))
		}
		clauses = append(clauses, "("+strings.Join(disjuncts, " OR ")+")")
	}

	if len(f.RuleActions) > 0 {
		clauses = append(clauses, fmt.Sprintf("rule_action = ANY(%s)", arg(f.RuleActions)))
	}
	if f.RuleName != "" {
		pat := arg("%" + likeEscape(f.RuleName) + "%")
		clauses = append(clauses, fmt.Sprintf("(rule_name ILIKE %s ESCAPE '\\' OR rule_desc ILIKE %s ESCAPE '\\')", pat, pat))
	}
	if len(f.Countries) > 0 {
		upper := make([]string, len(f.Countries))
		for i, c := range f.Countries {
			upper[i] = strings.ToUpper(c)
		}
		clauses = append(clauses, fmt.Sprintf("geo_country = ANY(%s)", arg(upper)))
	}
	if f.ThreatMin != nil {
		clauses = append(clauses, fmt.Sprintf("threat_score >= %s", arg(*f.ThreatMin)))
	}
	if f.Search != "" {
		clauses = append(clauses, fmt.Sprintf("raw_log ILIKE %s ESCAPE '\\'", arg("%"+likeEscape(f.Search)+"%")))
	}
	if len(f.Services) > 0 {
		clauses = append(clauses, fmt.Sprintf("service_name = ANY(%s)", arg(f.Services)))
	}
	if len(f.Interfaces) > 0 {
		clauses = append(clauses, fmt.Sprintf("(interface_in = ANY(%s) OR interface_out = ANY(%s))", arg(f.Interfaces), arg(f.Interfaces)))
	}

	if len(clauses) == 0 {
		return compiled{clause: "TRUE", args: args}
	}
	return compiled{clause: strings.Join(clauses, " AND "), args: args}
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
