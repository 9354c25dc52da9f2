// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"time"

	"github.com/phersys/loginsight/internal/errors"
)

// DashboardStats is the full response of the stats endpoint: totals,
// breakdowns, and a time-bucketed series, all scoped to a single cutoff.
type DashboardStats struct {
	Total        int64
	BySubtype    map[string]int64
	Blocked      int64
	ThreatHits   int64
	ByDirection  map[string]int64
	TopBlockedIPs []IPCount
	TopThreatIPs  []IPCount
	TopInternalIPs []IPCount
	TopCountries  []StringCount
	TopServices   []StringCount
	TopDNSQueries []StringCount
	Series        []SeriesPoint
}

type IPCount struct {
	IP    string
	Count int64
}

type StringCount struct {
	Value string
	Count int64
}

type SeriesPoint struct {
	Bucket time.Time
	Count  int64
}

// bucketWidth picks the date_trunc granularity for a dashboard time
// range: fine enough to show shape, coarse enough to keep the series
// short. Hour for anything up to a day, day out to 60 days, week out to
// 90 days, month beyond.
func bucketWidth(cutoff, now time.Time) string {
	span := now.Sub(cutoff)
	switch {
	case span <= 24*time.Hour:
		return "hour"
	case span <= 60*24*time.Hour:
		return "day"
	case span <= 90*24*time.Hour:
		return "week"
	default:
		return "month"
	}
}

// DashboardStats computes the full stats payload for rows at or after
// cutoff, excluding WAN/gateway IPs from the internal-IP ranking (they'd
// otherwise dominate it by virtue of terminating every flow).
func (s *Store) DashboardStats(ctx context.Context, cutoff, now time.Time, wanIPs, gatewayIPs []string) (DashboardStats, error) {
	var d DashboardStats
	d.BySubtype = map[string]int64{}
	d.ByDirection = map[string]int64{}

	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM logs WHERE origin_timestamp >= $1`, cutoff).Scan(&d.Total); err != nil {
		return d, errors.Wrap(err, errors.KindInternal, "store: stats total")
	}

	if rows, err := s.pool.Query(ctx, `
		SELECT subtype, count(*) FROM logs WHERE origin_timestamp >= $1 GROUP BY subtype
	`, cutoff); err != nil {
		return d, errors.Wrap(err, errors.KindInternal, "store: stats by subtype")
	} else {
		for rows.Next() {
			var subtype string
			var n int64
			if err := rows.Scan(&subtype, &n); err != nil {
				rows.Close()
				return d, errors.Wrap(err, errors.KindInternal, "store: scan stats by subtype")
			}
			d.BySubtype[subtype] = n
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return d, errors.Wrap(err, errors.KindInternal, "store: iterate stats by subtype")
		}
	}

	if err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM logs WHERE origin_timestamp >= $1 AND rule_action = 'block'
	`, cutoff).Scan(&d.Blocked); err != nil {
		return d, errors.Wrap(err, errors.KindInternal, "store: stats blocked")
	}

	if err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM logs WHERE origin_timestamp >= $1 AND threat_score IS NOT NULL AND threat_score > 0
	`, cutoff).Scan(&d.ThreatHits); err != nil {
		return d, errors.Wrap(err, errors.KindInternal, "store: stats threat hits")
	}

	if rows, err := s.pool.Query(ctx, `
		SELECT direction, count(*) FROM logs WHERE origin_timestamp >= $1 GROUP BY direction
	`, cutoff); err != nil {
		return d, errors.Wrap(err, errors.KindInternal, "store: stats by direction")
	} else {
		for rows.Next() {
			var dir string
			var n int64
			if err := rows.Scan(&dir, &n); err != nil {
				rows.Close()
				return d, errors.Wrap(err, errors.KindInternal, "store: scan stats by direction")
			}
			d.ByDirection[dir] = n
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return d, errors.Wrap(err, errors.KindInternal, "store: iterate stats by direction")
		}
	}

	var err error
	if d.TopBlockedIPs, err = s.topIPs(ctx, cutoff, `rule_action = 'block'`, "dst_ip", 10); err != nil {
		return d, err
	}
	if d.TopThreatIPs, err = s.topIPs(ctx, cutoff, `threat_score IS NOT NULL AND threat_score > 0`, "src_ip", 10); err != nil {
		return d, err
	}
	if d.TopInternalIPs, err = s.topInternalIPs(ctx, cutoff, wanIPs, gatewayIPs, 10); err != nil {
		return d, err
	}
	if d.TopCountries, err = s.topStrings(ctx, cutoff, "geo_country", `geo_country IS NOT NULL AND geo_country <> ''`, 10); err != nil {
		return d, err
	}
	if d.TopServices, err = s.topStrings(ctx, cutoff, "service_name", `service_name IS NOT NULL AND service_name <> ''`, 10); err != nil {
		return d, err
	}
	if d.TopDNSQueries, err = s.topStrings(ctx, cutoff, "dns_query", `subtype = 'dns' AND dns_query IS NOT NULL AND dns_query <> ''`, 10); err != nil {
		return d, err
	}

	d.Series, err = s.series(ctx, cutoff, now)
	if err != nil {
		return d, err
	}
	return d, nil
}

// LogHorizon is the total row count and the oldest/newest origin
// timestamp in the store, for the health endpoint.
type LogHorizon struct {
	Total  int64
	Oldest time.Time
	Newest time.Time
}

// Horizon computes LogHorizon. Oldest/Newest are the zero time when the
// store holds no rows.
func (s *Store) Horizon(ctx context.Context) (LogHorizon, error) {
	var h LogHorizon
	var oldest, newest *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT count(*), min(origin_timestamp), max(origin_timestamp) FROM logs
	`).Scan(&h.Total, &oldest, &newest)
	if err != nil {
		return h, errors.Wrap(err, errors.KindInternal, "store: log horizon")
	}
	if oldest != nil {
		h.Oldest = *oldest
	}
	if newest != nil {
		h.Newest = *newest
	}
	return h, nil
}

func (s *Store) topIPs(ctx context.Context, cutoff time.Time, predicate, column string, limit int) ([]IPCount, error) {
	sql := `
	SELECT ` + column + `::text, count(*) AS c
	FROM logs
	WHERE origin_timestamp >= $1 AND ` + column + ` IS NOT NULL AND ` + predicate + `
	GROUP BY ` + column + `
	ORDER BY c DESC
	LIMIT $` + placeholder(2)
	rows, err := s.pool.Query(ctx, sql, cutoff, limit)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindInternal, "store: top ips (%s)", column)
	}
	defer rows.Close()

	var out []IPCount
	for rows.Next() {
		var c IPCount
		if err := rows.Scan(&c.IP, &c.Count); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "store: scan top ips")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// topInternalIPs ranks private-scope source IPs by event volume within
// the window, anchored to cutoff rather than "now" so a 7-day dashboard
// reflects last-seen-in-window activity, not last-seen-ever. WAN and
// gateway addresses are excluded; they terminate nearly every flow and
// would otherwise crowd out real clients.
func (s *Store) topInternalIPs(ctx context.Context, cutoff time.Time, wanIPs, gatewayIPs []string, limit int) ([]IPCount, error) {
	const sql = `
	SELECT ranked.ip, ranked.c
	FROM (
		SELECT src_ip::text AS ip, count(*) AS c
		FROM logs
		WHERE origin_timestamp >= $1
		  AND src_ip IS NOT NULL
		  AND src_ip <> ALL($2::inet[])
		  AND src_ip <> ALL($3::inet[])
		  AND (src_ip << '10.0.0.0/8'::cidr OR src_ip << '172.16.0.0/12'::cidr OR src_ip << '192.168.0.0/16'::cidr)
		GROUP BY src_ip
	) ranked
	ORDER BY ranked.c DESC
	LIMIT $4
	`
	rows, err := s.pool.Query(ctx, sql, cutoff, pgInetArray(wanIPs), pgInetArray(gatewayIPs), limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "store: top internal ips")
	}
	defer rows.Close()

	var out []IPCount
	for rows.Next() {
		var c IPCount
		if err := rows.Scan(&c.IP, &c.Count); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "store: scan top internal ips")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) topStrings(ctx context.Context, cutoff time.Time, column, predicate string, limit int) ([]StringCount, error) {
	sql := `
	SELECT ` + column + `, count(*) AS c
	FROM logs
	WHERE origin_timestamp >= $1 AND ` + predicate + `
	GROUP BY ` + column + `
	ORDER BY c DESC
	LIMIT $` + placeholder(2)
	rows, err := s.pool.Query(ctx, sql, cutoff, limit)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindInternal, "store: top strings (%s)", column)
	}
	defer rows.Close()

	var out []StringCount
	for rows.Next() {
		var c StringCount
		if err := rows.Scan(&c.Value, &c.Count); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "store: scan top strings")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) series(ctx context.Context, cutoff, now time.Time) ([]SeriesPoint, error) {
	width := bucketWidth(cutoff, now)
	rows, err := s.pool.Query(ctx, `
		SELECT date_trunc($1, origin_timestamp) AS bucket, count(*)
		FROM logs
		WHERE origin_timestamp >= $2
		GROUP BY bucket
		ORDER BY bucket
	`, width, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "store: series")
	}
	defer rows.Close()

	var out []SeriesPoint
	for rows.Next() {
		var p SeriesPoint
		if err := rows.Scan(&p.Bucket, &p.Count); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "store: scan series")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
