// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/phersys/loginsight/internal/errors"
	"github.com/phersys/loginsight/internal/parser"
	"github.com/phersys/loginsight/internal/services"
)

const directionBackfillBatchSize = 500

const (
	directionBackfillLockID int64 = 0x6c6f6762 // "logb", arbitrary but stable
	abuseHostnameFixLockID  int64 = 0x6c6f6763 // "logc"
)

// RunDirectionBackfill re-derives direction for every firewall row using
// the current WAN interface/IP sets, gated by direction_backfill_pending
// so it only runs after something actually changed the WAN topology.
// Clears the flag once every row has been walked.
func (s *Store) RunDirectionBackfill(ctx context.Context, cfg configFlag, wanInterfaces, wanIPs []string) (int64, error) {
	pending, err := cfg.GetBool(ctx, "direction_backfill_pending")
	if err != nil {
		return 0, errors.Wrap(err, errors.KindInternal, "store: read direction_backfill_pending")
	}
	if !pending {
		return 0, nil
	}

	var total int64
	_, err = s.withAdvisoryLock(ctx, directionBackfillLockID, func(ctx context.Context) error {
		total, err = s.runDirectionBackfillLocked(ctx, cfg, wanInterfaces, wanIPs)
		return err
	})
	return total, err
}

func (s *Store) runDirectionBackfillLocked(ctx context.Context, cfg configFlag, wanInterfaces, wanIPs []string) (int64, error) {
	var total int64
	var cursor int64
	for {
		rows, err := s.pool.Query(ctx, `
			SELECT id, interface_in, interface_out, rule_name, src_ip::text, dst_ip::text
			FROM logs
			WHERE subtype = 'firewall' AND id > $1
			ORDER BY id
			LIMIT $2
		`, cursor, directionBackfillBatchSize)
		if err != nil {
			return total, errors.Wrap(err, errors.KindInternal, "store: query direction backfill page")
		}

		type row struct {
			id                          int64
			ifaceIn, ifaceOut, ruleName string
			srcIP, dstIP                string
		}
		var page []row
		for rows.Next() {
			var r row
			var ifaceIn, ifaceOut, ruleName, srcIP, dstIP *string
			if err := rows.Scan(&r.id, &ifaceIn, &ifaceOut, &ruleName, &srcIP, &dstIP); err != nil {
				rows.Close()
				return total, errors.Wrap(err, errors.KindInternal, "store: scan direction backfill row")
			}
			r.ifaceIn = deref(ifaceIn)
			r.ifaceOut = deref(ifaceOut)
			r.ruleName = deref(ruleName)
			r.srcIP = deref(srcIP)
			r.dstIP = deref(dstIP)
			page = append(page, r)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return total, errors.Wrap(err, errors.KindInternal, "store: iterate direction backfill page")
		}
		if len(page) == 0 {
			break
		}

		batch := &pgx.Batch{}
		for _, r := range page {
			dir := parser.DeriveDirection(r.ifaceIn, r.ifaceOut, r.ruleName, r.srcIP, r.dstIP, wanInterfaces, wanIPs)
			batch.Queue(`UPDATE logs SET direction = $1 WHERE id = $2`, string(dir), r.id)
		}
		br := s.pool.SendBatch(ctx, batch)
		if err := drainBatch(br, len(page)); err != nil {
			return total, errors.Wrap(err, errors.KindInternal, "store: apply direction backfill batch")
		}

		total += int64(len(page))
		cursor = page[len(page)-1].id
		if len(page) < directionBackfillBatchSize {
			break
		}
	}

	if err := cfg.SetBool(ctx, "direction_backfill_pending", false); err != nil {
		return total, errors.Wrap(err, errors.KindInternal, "store: clear direction_backfill_pending")
	}
	return total, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// WANFixCandidate is one firewall row step 2 found contaminated: enriched
// as though dst_ip were the remote party when src_ip (our own WAN
// address) was enriched instead.
type WANFixCandidate struct {
	ID    int64
	DstIP string
}

// PendingWANFix reports whether the one-shot WAN-IP re-enrichment fix is
// still outstanding.
func (s *Store) PendingWANFix(ctx context.Context, cfg configFlag) (bool, error) {
	pending, err := cfg.GetBool(ctx, "enrichment_wan_fix_pending")
	if err != nil {
		return false, errors.Wrap(err, errors.KindInternal, "store: read enrichment_wan_fix_pending")
	}
	return pending, nil
}

// ListWANContaminatedRows finds firewall rows whose src_ip is one of our
// own WAN addresses yet still carry geo data — the fingerprint of having
// been enriched against the wrong side before the exclusion set existed.
func (s *Store) ListWANContaminatedRows(ctx context.Context, wanIPs []string, limit int) ([]WANFixCandidate, error) {
	if len(wanIPs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, dst_ip::text
		FROM logs
		WHERE subtype = 'firewall' AND src_ip = ANY($1::inet[]) AND geo_country IS NOT NULL
		ORDER BY id
		LIMIT $2
	`, pgInetArray(wanIPs), limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "store: list wan-contaminated rows")
	}
	defer rows.Close()

	var out []WANFixCandidate
	for rows.Next() {
		var c WANFixCandidate
		var dstIP *string
		if err := rows.Scan(&c.ID, &dstIP); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "store: scan wan-contaminated row")
		}
		c.DstIP = deref(dstIP)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ApplyWANFix rewrites one row's geo/ASN/rDNS fields to describe dst_ip
// and nulls its threat/abuse fields so the null-score patch step re-fills
// them against the correct remote party.
func (s *Store) ApplyWANFix(ctx context.Context, id int64, geoCountry, geoCity string, geoLat, geoLon *float64, asnNumber *int, asnName, rdns string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE logs SET
			geo_country = $1, geo_city = $2, geo_lat = $3, geo_lon = $4,
			asn_number = $5, asn_name = $6, rdns = $7,
			threat_score = NULL, threat_categories = NULL, abuse_usage_type = NULL,
			abuse_hostnames = NULL, abuse_total_reports = NULL, abuse_last_reported = NULL,
			abuse_is_whitelisted = NULL, abuse_is_tor = NULL
		WHERE id = $8
	`, nullableString(geoCountry), nullableString(geoCity), geoLat, geoLon,
		asnNumber, nullableString(asnName), nullableString(rdns), id)
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "store: apply wan fix")
	}
	return nil
}

// ClearWANFixPending marks the one-shot WAN-IP fix complete.
func (s *Store) ClearWANFixPending(ctx context.Context, cfg configFlag) error {
	if err := cfg.SetBool(ctx, "enrichment_wan_fix_pending", false); err != nil {
		return errors.Wrap(err, errors.KindInternal, "store: clear enrichment_wan_fix_pending")
	}
	return nil
}

// AbuseHostnameFixDone reports whether the one-shot abuse-hostname repair
// has already run.
func (s *Store) AbuseHostnameFixDone(ctx context.Context, cfg configFlag) (bool, error) {
	done, err := cfg.GetBool(ctx, "abuse_hostname_fix_done")
	if err != nil {
		return false, errors.Wrap(err, errors.KindInternal, "store: read abuse_hostname_fix_done")
	}
	return done, nil
}

// RepairAbuseHostnames runs the one-shot fix: purge any WAN/gateway
// address that slipped into the threat cache before the exclusion set
// existed, then for every inbound row addressed to one of our WAN IPs
// that still carries abuse fields, replace those fields with the remote
// src_ip's threat entry (or null them if the cache has nothing).
func (s *Store) RepairAbuseHostnames(ctx context.Context, cfg configFlag, wanIPs, gatewayIPs []string) (int64, error) {
	done, err := s.AbuseHostnameFixDone(ctx, cfg)
	if err != nil {
		return 0, err
	}
	if done {
		return 0, nil
	}

	var total int64
	_, err = s.withAdvisoryLock(ctx, abuseHostnameFixLockID, func(ctx context.Context) error {
		done, err := s.AbuseHostnameFixDone(ctx, cfg)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		total, err = s.repairAbuseHostnamesLocked(ctx, cfg, wanIPs, gatewayIPs)
		return err
	})
	return total, err
}

func (s *Store) repairAbuseHostnamesLocked(ctx context.Context, cfg configFlag, wanIPs, gatewayIPs []string) (int64, error) {
	own := append(append([]string{}, wanIPs...), gatewayIPs...)
	if len(own) > 0 {
		if _, err := s.pool.Exec(ctx, `DELETE FROM ip_threats WHERE ip = ANY($1::inet[])`, pgInetArray(own)); err != nil {
			return 0, errors.Wrap(err, errors.KindInternal, "store: purge wan/gateway threat entries")
		}
	}

	wanIPArg := pgInetArray(wanIPs)

	tag, err := s.pool.Exec(ctx, `
		UPDATE logs l SET
			threat_score = t.score, threat_categories = t.categories, abuse_usage_type = t.usage_type,
			abuse_hostnames = t.hostnames, abuse_total_reports = t.total_reports,
			abuse_last_reported = t.last_reported, abuse_is_whitelisted = t.is_whitelisted, abuse_is_tor = t.is_tor
		FROM ip_threats t
		WHERE l.subtype = 'firewall' AND l.dst_ip = ANY($1::inet[]) AND l.src_ip = t.ip
		  AND (l.abuse_usage_type IS NOT NULL OR l.abuse_hostnames IS NOT NULL)
	`, wanIPArg)
	if err != nil {
		return 0, errors.Wrap(err, errors.KindInternal, "store: repair abuse hostnames from cache")
	}

	cleared, err := s.pool.Exec(ctx, `
		UPDATE logs l SET
			threat_score = NULL, threat_categories = NULL, abuse_usage_type = NULL,
			abuse_hostnames = NULL, abuse_total_reports = NULL, abuse_last_reported = NULL,
			abuse_is_whitelisted = NULL, abuse_is_tor = NULL
		WHERE l.subtype = 'firewall' AND l.dst_ip = ANY($1::inet[])
		  AND (l.abuse_usage_type IS NOT NULL OR l.abuse_hostnames IS NOT NULL)
		  AND NOT EXISTS (SELECT 1 FROM ip_threats t WHERE t.ip = l.src_ip)
	`, wanIPArg)
	if err != nil {
		return 0, errors.Wrap(err, errors.KindInternal, "store: null unmatched abuse hostnames")
	}

	if err := cfg.SetBool(ctx, "abuse_hostname_fix_done", true); err != nil {
		return 0, errors.Wrap(err, errors.KindInternal, "store: mark abuse_hostname_fix_done")
	}
	return tag.RowsAffected() + cleared.RowsAffected(), nil
}

// BackfillServiceNames batch-applies the static port/protocol catalog to
// every firewall row carrying a destination port but no service name, via
// a single VALUES(...) join rather than one UPDATE per port.
func (s *Store) BackfillServiceNames(ctx context.Context) (int64, error) {
	entries := services.Entries()
	if len(entries) == 0 {
		return 0, nil
	}

	var b strings.Builder
	args := make([]any, 0, len(entries)*3)
	for i, e := range entries {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "($%d,$%d,$%d)", i*3+1, i*3+2, i*3+3)
		args = append(args, e.Port, e.Protocol, e.Name)
	}

	sql := `
		UPDATE logs l SET service_name = c.name
		FROM (VALUES ` + b.String() + `) AS c(port, protocol, name)
		WHERE l.subtype = 'firewall' AND l.service_name IS NULL
		  AND l.dst_port = c.port AND l.protocol = c.protocol
	`
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, errors.Wrap(err, errors.KindInternal, "store: backfill service names")
	}
	return tag.RowsAffected(), nil
}

// PatchNullScores fills threat_score (and every detail field, via
// COALESCE so an existing non-null value is never clobbered) from the
// threat cache for rows with no score yet. Two passes — first joining on
// src_ip, then dst_ip — since either side of a firewall event may be the
// remote party; WAN/gateway addresses are excluded from both joins so an
// installation's own address never donates its "clean" cache entry.
func (s *Store) PatchNullScores(ctx context.Context, wanIPs, gatewayIPs []string) (int64, error) {
	own := append(append([]string{}, wanIPs...), gatewayIPs...)
	var total int64
	for _, col := range []string{"src_ip", "dst_ip"} {
		sql := fmt.Sprintf(`
			UPDATE logs l SET
				threat_score = COALESCE(l.threat_score, t.score),
				threat_categories = COALESCE(l.threat_categories, t.categories),
				abuse_usage_type = COALESCE(l.abuse_usage_type, t.usage_type),
				abuse_hostnames = COALESCE(l.abuse_hostnames, t.hostnames),
				abuse_total_reports = COALESCE(l.abuse_total_reports, t.total_reports),
				abuse_last_reported = COALESCE(l.abuse_last_reported, t.last_reported),
				abuse_is_whitelisted = COALESCE(l.abuse_is_whitelisted, t.is_whitelisted),
				abuse_is_tor = COALESCE(l.abuse_is_tor, t.is_tor)
			FROM ip_threats t
			WHERE l.subtype = 'firewall' AND l.threat_score IS NULL AND l.%s = t.ip
			  AND NOT (l.%s = ANY($1::inet[]))
		`, col, col)
		tag, err := s.pool.Exec(ctx, sql, pgInetArray(own))
		if err != nil {
			return total, errors.Wrap(err, errors.KindInternal, "store: patch null scores ("+col+")")
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

// PatchThreatForIP force-overwrites every detail field (no COALESCE —
// a manual re-lookup supersedes whatever the row already carried) for
// every row with ip on either side, the same two-pass src/dst shape as
// PatchNullScores, with the same WAN/gateway exclusion.
func (s *Store) PatchThreatForIP(ctx context.Context, ip string, e ThreatEntry, wanIPs, gatewayIPs []string) (int64, error) {
	own := append(append([]string{}, wanIPs...), gatewayIPs...)
	var total int64
	for _, col := range []string{"src_ip", "dst_ip"} {
		sql := fmt.Sprintf(`
			UPDATE logs SET
				threat_score = $2, threat_categories = $3, abuse_usage_type = $4,
				abuse_hostnames = $5, abuse_total_reports = $6, abuse_last_reported = $7,
				abuse_is_whitelisted = $8, abuse_is_tor = $9
			WHERE subtype = 'firewall' AND %s = $1::inet
			  AND NOT (%s = ANY($10::inet[]))
		`, col, col)
		tag, err := s.pool.Exec(ctx, sql, ip, e.Score, e.Categories, nullableString(e.UsageType),
			e.Hostnames, e.TotalReports, e.LastReported, e.IsWhitelisted, e.IsTor, pgInetArray(own))
		if err != nil {
			return total, errors.Wrap(err, errors.KindInternal, "store: patch threat for ip ("+col+")")
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

// PatchMissingDetails is PatchNullScores' counterpart for rows that
// already carry a score but no detail fields: same two-pass shape, but
// overwriting rather than COALESCE-preserving, since a present score with
// absent detail means the cache simply hadn't been enriched yet when the
// score was first copied.
func (s *Store) PatchMissingDetails(ctx context.Context, wanIPs, gatewayIPs []string) (int64, error) {
	own := append(append([]string{}, wanIPs...), gatewayIPs...)
	var total int64
	for _, col := range []string{"src_ip", "dst_ip"} {
		sql := fmt.Sprintf(`
			UPDATE logs l SET
				threat_categories = t.categories, abuse_usage_type = t.usage_type,
				abuse_hostnames = t.hostnames, abuse_total_reports = t.total_reports,
				abuse_last_reported = t.last_reported, abuse_is_whitelisted = t.is_whitelisted,
				abuse_is_tor = t.is_tor
			FROM ip_threats t
			WHERE l.subtype = 'firewall' AND l.threat_score IS NOT NULL
			  AND l.abuse_usage_type IS NULL AND l.abuse_hostnames IS NULL
			  AND l.%s = t.ip AND NOT (l.%s = ANY($1::inet[]))
		`, col, col)
		tag, err := s.pool.Exec(ctx, sql, pgInetArray(own))
		if err != nil {
			return total, errors.Wrap(err, errors.KindInternal, "store: patch missing details ("+col+")")
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

// ListStaleThreatEntries returns up to limit cache entries that carry a
// score but lack detail fields and still appear on recently-seen logs —
// candidates for step 7's throttled re-lookup.
func (s *Store) ListStaleThreatEntries(ctx context.Context, since time.Time, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT t.ip::text
		FROM ip_threats t
		JOIN logs l ON (l.src_ip = t.ip OR l.dst_ip = t.ip)
		WHERE t.score IS NOT NULL AND t.usage_type IS NULL AND t.hostnames IS NULL
		  AND l.origin_timestamp >= $1
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "store: list stale threat entries")
	}
	defer rows.Close()

	var ips []string
	for rows.Next() {
		var ip string
		if err := rows.Scan(&ip); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "store: scan stale threat entry")
		}
		ips = append(ips, ip)
	}
	return ips, rows.Err()
}

// BackdateThreatLookup rewinds an entry's looked_up_at so the next read
// treats it as stale without discarding its cached detail, identical in
// shape to InvalidateThreat but parameterised on how far back to backdate.
func (s *Store) BackdateThreatLookup(ctx context.Context, ip string, age time.Duration) error {
	_, err := s.pool.Exec(ctx, `UPDATE ip_threats SET looked_up_at = now() - $2::interval WHERE ip = $1::inet`,
		ip, fmt.Sprintf("%d seconds", int64(age.Seconds())))
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "store: backdate threat lookup")
	}
	return nil
}

// ListOrphanIPs finds remote IPs that appear on a NULL-score firewall
// block row and are absent from the threat cache entirely, capped at
// limit — step 8's candidates for a first-time lookup.
func (s *Store) ListOrphanIPs(ctx context.Context, wanIPs, gatewayIPs []string, limit int) ([]string, error) {
	own := append(append([]string{}, wanIPs...), gatewayIPs...)
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ip::text FROM (
			SELECT src_ip AS ip FROM logs WHERE subtype = 'firewall' AND rule_action = 'block' AND threat_score IS NULL AND src_ip IS NOT NULL
			UNION
			SELECT dst_ip AS ip FROM logs WHERE subtype = 'firewall' AND rule_action = 'block' AND threat_score IS NULL AND dst_ip IS NOT NULL
		) AS candidates
		WHERE NOT (ip = ANY($1::inet[]))
		  AND NOT EXISTS (SELECT 1 FROM ip_threats t WHERE t.ip = candidates.ip)
		LIMIT $2
	`, pgInetArray(own), limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "store: list orphan ips")
	}
	defer rows.Close()

	var ips []string
	for rows.Next() {
		var ip string
		if err := rows.Scan(&ip); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "store: scan orphan ip")
		}
		ips = append(ips, ip)
	}
	return ips, rows.Err()
}
