// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/phersys/loginsight/internal/errors"
	"github.com/phersys/loginsight/internal/netaddr"
)

// ThreatEntry is one ip_threats row.
type ThreatEntry struct {
	IP            string
	Score         *int
	Categories    []string
	UsageType     string
	Hostnames     []string
	TotalReports  *int
	LastReported  *time.Time
	IsWhitelisted *bool
	IsTor         *bool
	LookedUpAt    time.Time
}

// GetThreat returns the cached entry for ip, or (zero, false) if absent
// or stale relative to maxAge (default 4 days, per the freshness input
// to reads).
func (s *Store) GetThreat(ctx context.Context, ip string, maxAge time.Duration) (ThreatEntry, bool, error) {
	const sql = `
	SELECT ip::text, score, categories, usage_type, hostnames, total_reports,
	       last_reported, is_whitelisted, is_tor, looked_up_at
	FROM ip_threats WHERE ip = $1::inet
	`
	var e ThreatEntry
	err := s.pool.QueryRow(ctx, sql, ip).Scan(
		&e.IP, &e.Score, &e.Categories, &e.UsageType, &e.Hostnames, &e.TotalReports,
		&e.LastReported, &e.IsWhitelisted, &e.IsTor, &e.LookedUpAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ThreatEntry{}, false, nil
		}
		return ThreatEntry{}, false, errors.Wrap(err, errors.KindInternal, "store: get threat")
	}
	if time.Since(e.LookedUpAt) > maxAge {
		return e, false, nil
	}
	return e, true, nil
}

// UpsertThreat implements the threat-cache write contract: normalise,
// reject WAN/gateway IPs, and COALESCE each detail field so a refresh
// never clobbers a prior non-null value with a null one.
func (s *Store) UpsertThreat(ctx context.Context, e ThreatEntry, exclusion netaddr.ExclusionSet) error {
	norm, ok := netaddr.Normalize(e.IP)
	if !ok {
		return errors.New(errors.KindValidation, "store: invalid threat ip "+e.IP)
	}
	if exclusion.Contains(norm) {
		return errors.New(errors.KindValidation, "store: refusing to cache WAN/gateway ip "+norm)
	}

	const sql = `
	INSERT INTO ip_threats (ip, score, categories, usage_type, hostnames, total_reports,
	                         last_reported, is_whitelisted, is_tor, looked_up_at)
	VALUES ($1::inet, $2, $3, $4, $5, $6, $7, $8, $9, now())
	ON CONFLICT (ip) DO UPDATE SET
		score          = COALESCE(EXCLUDED.score, ip_threats.score),
		categories     = COALESCE(EXCLUDED.categories, ip_threats.categories),
		usage_type     = COALESCE(EXCLUDED.usage_type, ip_threats.usage_type),
		hostnames      = COALESCE(EXCLUDED.hostnames, ip_threats.hostnames),
		total_reports  = COALESCE(EXCLUDED.total_reports, ip_threats.total_reports),
		last_reported  = COALESCE(EXCLUDED.last_reported, ip_threats.last_reported),
		is_whitelisted = COALESCE(EXCLUDED.is_whitelisted, ip_threats.is_whitelisted),
		is_tor         = COALESCE(EXCLUDED.is_tor, ip_threats.is_tor),
		looked_up_at   = now()
	`
	_, err := s.pool.Exec(ctx, sql, norm, e.Score, e.Categories, nullableString(e.UsageType),
		e.Hostnames, e.TotalReports, e.LastReported, e.IsWhitelisted, e.IsTor)
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "store: upsert threat")
	}
	return nil
}

// InvalidateThreat backdates looked_up_at so the next read treats the
// entry as stale, without discarding the cached detail fields.
func (s *Store) InvalidateThreat(ctx context.Context, ip string) error {
	_, err := s.pool.Exec(ctx, `UPDATE ip_threats SET looked_up_at = 'epoch'::timestamptz WHERE ip = $1::inet`, ip)
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "store: invalidate threat")
	}
	return nil
}

// BulkUpsertThreat merges a blacklist import batch: the new score
// becomes max(old, new); categories keep whichever set is longer
// (blacklist rows carry one category, API lookups may carry many).
func (s *Store) BulkUpsertThreat(ctx context.Context, entries []ThreatEntry, exclusion netaddr.ExclusionSet) (int, error) {
	var upserted int
	for _, e := range entries {
		norm, ok := netaddr.Normalize(e.IP)
		if !ok || exclusion.Contains(norm) {
			continue
		}
		const sql = `
		INSERT INTO ip_threats (ip, score, categories, looked_up_at)
		VALUES ($1::inet, $2, $3, now())
		ON CONFLICT (ip) DO UPDATE SET
			score = GREATEST(COALESCE(ip_threats.score, 0), COALESCE(EXCLUDED.score, 0)),
			categories = CASE
				WHEN array_length(EXCLUDED.categories, 1) > COALESCE(array_length(ip_threats.categories, 1), 0)
				THEN EXCLUDED.categories ELSE ip_threats.categories
			END,
			looked_up_at = now()
		`
		if _, err := s.pool.Exec(ctx, sql, norm, e.Score, e.Categories); err != nil {
			return upserted, errors.Wrap(err, errors.KindInternal, "store: bulk upsert threat")
		}
		upserted++
	}
	return upserted, nil
}
