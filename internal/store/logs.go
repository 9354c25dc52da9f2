// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/phersys/loginsight/internal/errors"
	"github.com/phersys/loginsight/internal/parser"
)

// Record is one persisted log row: a parsed Record plus its assigned id,
// ingestion timestamp, and any enrichment fields filled in at ingest or
// by the backfill worker.
type Record struct {
	ID          int64
	IngestedAt  time.Time
	parser.Record

	GeoCountry string
	GeoCity    string
	GeoLat     *float64
	GeoLon     *float64
	ASNNumber  *int
	ASNName    string
	RDNS       string

	ThreatScore        *int
	ThreatCategories   []string
	AbuseUsageType     string
	AbuseHostnames     []string
	AbuseTotalReports  *int
	AbuseLastReported  *time.Time
	AbuseIsWhitelisted *bool
	AbuseIsTor         *bool

	SrcDeviceName string
	DstDeviceName string
}

const insertColumns = `
	origin_timestamp, subtype, direction, src_ip, src_port, dst_ip, dst_port, protocol,
	service_name, rule_name, rule_desc, rule_action, interface_in, interface_out,
	mac_address, hostname, dhcp_event, dns_query, dns_type, dns_answer, wifi_event, raw_log
`

// InsertBatch sends the whole batch in one round trip as a pgx.Batch of
// single-row inserts; on any failure it falls back to per-row inserts, dropping (and counting)
// individual rows that still fail rather than stalling the pipeline.
func (s *Store) InsertBatch(ctx context.Context, records []parser.Record) (inserted, dropped int, err error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(insertOneSQL(), insertArgs(r)...)
	}
	br := s.pool.SendBatch(ctx, batch)
	batchErr := drainBatch(br, len(records))
	if batchErr == nil {
		return len(records), 0, nil
	}
	if s.log != nil {
		s.log.Warn("batch insert failed, falling back to per-row", "error", batchErr.Error(), "count", len(records))
	}

	for _, r := range records {
		if _, execErr := s.pool.Exec(ctx, insertOneSQL(), insertArgs(r)...); execErr != nil {
			dropped++
			if s.log != nil {
				s.log.Warn("dropping row after insert failure", "error", execErr.Error())
			}
			continue
		}
		inserted++
	}
	return inserted, dropped, nil
}

func insertOneSQL() string {
	return `INSERT INTO logs (` + insertColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`
}

// EnrichedRecord is a parsed Record plus whatever the enrichment engine
// resolved for it at ingest time. Fields left zero-valued because no
// enrichment target was chosen (or because the lookup missed) persist
// as NULL, matching what the backfill worker would later write for an
// unenriched row.
type EnrichedRecord struct {
	parser.Record

	GeoCountry string
	GeoCity    string
	GeoLat     *float64
	GeoLon     *float64
	ASNNumber  *int
	ASNName    string
	RDNS       string

	ThreatScore        *int
	ThreatCategories   []string
	AbuseUsageType     string
	AbuseHostnames     []string
	AbuseTotalReports  *int
	AbuseLastReported  *time.Time
	AbuseIsWhitelisted *bool
	AbuseIsTor         *bool
}

const enrichedInsertColumns = insertColumns + `,
	geo_country, geo_city, geo_lat, geo_lon, asn_number, asn_name, rdns,
	threat_score, threat_categories, abuse_usage_type, abuse_hostnames,
	abuse_total_reports, abuse_last_reported, abuse_is_whitelisted, abuse_is_tor
`

// InsertEnrichedBatch is InsertBatch's counterpart for rows the receiver
// already ran through the enrichment engine before persisting: same
// whole-batch-then-per-row-fallback strategy, with the fifteen
// enrichment columns appended to every row.
func (s *Store) InsertEnrichedBatch(ctx context.Context, records []EnrichedRecord) (inserted, dropped int, err error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(enrichedInsertOneSQL(), enrichedInsertArgs(r)...)
	}
	br := s.pool.SendBatch(ctx, batch)
	batchErr := drainBatch(br, len(records))
	if batchErr == nil {
		return len(records), 0, nil
	}
	if s.log != nil {
		s.log.Warn("enriched batch insert failed, falling back to per-row", "error", batchErr.Error(), "count", len(records))
	}

	for _, r := range records {
		if _, execErr := s.pool.Exec(ctx, enrichedInsertOneSQL(), enrichedInsertArgs(r)...); execErr != nil {
			dropped++
			if s.log != nil {
				s.log.Warn("dropping enriched row after insert failure", "error", execErr.Error())
			}
			continue
		}
		inserted++
	}
	return inserted, dropped, nil
}

func enrichedInsertOneSQL() string {
	return `INSERT INTO logs (` + enrichedInsertColumns + `) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,
		$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34,$35,$36,$37
	)`
}

func enrichedInsertArgs(r EnrichedRecord) []any {
	args := insertArgs(r.Record)
	return append(args,
		nullableString(r.GeoCountry), nullableString(r.GeoCity), r.GeoLat, r.GeoLon,
		r.ASNNumber, nullableString(r.ASNName), nullableString(r.RDNS),
		r.ThreatScore, nullableStringSlice(r.ThreatCategories), nullableString(r.AbuseUsageType),
		nullableStringSlice(r.AbuseHostnames), r.AbuseTotalReports, r.AbuseLastReported,
		r.AbuseIsWhitelisted, r.AbuseIsTor,
	)
}

func nullableStringSlice(v []string) any {
	if len(v) == 0 {
		return nil
	}
	return v
}

func insertArgs(r parser.Record) []any {
	return []any{
		r.OriginTimestamp, string(r.Subtype), nullableString(string(r.Direction)),
		nullableString(r.SrcIP), nullableInt(r.SrcPort), nullableString(r.DstIP), nullableInt(r.DstPort), nullableString(r.Protocol),
		nullableString(r.ServiceName), nullableString(r.RuleName), nullableString(r.RuleDesc), nullableString(string(r.RuleAction)),
		nullableString(r.InterfaceIn), nullableString(r.InterfaceOut),
		nullableString(r.MACAddress), nullableString(r.Hostname), nullableString(r.DHCPEvent),
		nullableString(r.DNSQuery), nullableString(r.DNSType), nullableString(r.DNSAnswer),
		nullableString(r.WifiEvent), r.RawLog,
	}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func drainBatch(br pgx.BatchResults, n int) error {
	defer br.Close()
	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// RunRetention invokes the run_retention(general_days, dns_days) stored
// procedure and returns the number of rows deleted.
func (s *Store) RunRetention(ctx context.Context, generalDays, dnsDays int) (int64, error) {
	var deleted int64
	err := s.pool.QueryRow(ctx, `SELECT run_retention($1, $2)`, generalDays, dnsDays).Scan(&deleted)
	if err != nil {
		return 0, errors.Wrap(err, errors.KindInternal, "store: run retention")
	}
	return deleted, nil
}

// CountFiltered returns COUNT(*) of logs matching f.
func (s *Store) CountFiltered(ctx context.Context, f Filter, now time.Time, vpnPrefixes []string) (int64, error) {
	c := f.compile(now, vpnPrefixes)
	var count int64
	sql := `SELECT count(*) FROM logs WHERE ` + c.clause
	if err := s.pool.QueryRow(ctx, sql, c.args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, errors.KindInternal, "store: count filtered logs")
	}
	return count, nil
}

// ListLogs runs the filtered, sorted, paginated page query. The device-
// name projection is resolved with a LATERAL join against both name
// caches, preferring an explicit column over client/device fallbacks.
func (s *Store) ListLogs(ctx context.Context, f Filter, now time.Time, vpnPrefixes []string) ([]Record, error) {
	c := f.compile(now, vpnPrefixes)
	sortCol := ResolveSortColumn(f.SortColumn)
	dir := "DESC"
	if !f.SortDesc {
		dir = "ASC"
	}
	pageSize := ClampPageSize(f.PageSize)
	page := f.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	sql := `
	WITH filtered AS (
		SELECT * FROM logs WHERE ` + c.clause + `
		ORDER BY ` + sortCol + ` ` + dir + `
		LIMIT $` + placeholder(len(c.args)+1) + ` OFFSET $` + placeholder(len(c.args)+2) + `
	)
	SELECT
		f.id, f.ingested_at, f.origin_timestamp, f.subtype, f.direction,
		f.src_ip, f.src_port, f.dst_ip, f.dst_port, f.protocol, f.service_name,
		f.rule_name, f.rule_desc, f.rule_action, f.interface_in, f.interface_out,
		f.mac_address, f.hostname, f.dhcp_event, f.dns_query, f.dns_type, f.dns_answer,
		f.wifi_event, f.geo_country, f.geo_city, f.geo_lat, f.geo_lon, f.asn_number, f.asn_name,
		f.rdns, f.threat_score, f.threat_categories,
		f.abuse_usage_type, f.abuse_hostnames, f.abuse_total_reports, f.abuse_last_reported,
		f.abuse_is_whitelisted, f.abuse_is_tor,
		COALESCE(f.src_device_name, src_c.device_name, src_c.hostname, src_c.oui, src_d.device_name, src_d.model),
		COALESCE(f.dst_device_name, dst_c.device_name, dst_c.hostname, dst_c.oui, dst_d.device_name, dst_d.model),
		f.raw_log
	FROM filtered f
	LEFT JOIN LATERAL (
		SELECT device_name, hostname, oui FROM unifi_clients c WHERE c.mac = f.mac_address LIMIT 1
	) src_c ON true
	LEFT JOIN LATERAL (
		SELECT device_name, model FROM unifi_devices d WHERE d.mac = f.mac_address LIMIT 1
	) src_d ON true
	LEFT JOIN LATERAL (
		SELECT device_name, hostname, oui FROM unifi_clients c WHERE c.ip = f.dst_ip LIMIT 1
	) dst_c ON true
	LEFT JOIN LATERAL (
		SELECT device_name, model FROM unifi_devices d WHERE d.ip = f.dst_ip LIMIT 1
	) dst_d ON true
	ORDER BY f.` + sortCol + ` ` + dir

	args := append(append([]any{}, c.args...), pageSize, offset)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "store: list logs")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "store: scan log row")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetLogDetail fetches one row by id with its threat-cache join selected
// by direction: inbound favours the src-ip side, outbound the dst-ip
// side, otherwise src if present else dst. WAN/gateway IPs never
// contribute their own threat metadata.
func (s *Store) GetLogDetail(ctx context.Context, id int64, wanIPs, gatewayIPs []string) (Record, bool, error) {
	const sql = `
	SELECT
		l.id, l.ingested_at, l.origin_timestamp, l.subtype, l.direction,
		l.src_ip, l.src_port, l.dst_ip, l.dst_port, l.protocol, l.service_name,
		l.rule_name, l.rule_desc, l.rule_action, l.interface_in, l.interface_out,
		l.mac_address, l.hostname, l.dhcp_event, l.dns_query, l.dns_type, l.dns_answer,
		l.wifi_event, l.geo_country,
		l.geo_city, l.geo_lat, l.geo_lon, l.asn_number, l.asn_name, l.rdns,
		COALESCE(l.threat_score, t.score),
		COALESCE(l.threat_categories, t.categories),
		COALESCE(l.abuse_usage_type, t.usage_type),
		COALESCE(l.abuse_hostnames, t.hostnames),
		COALESCE(l.abuse_total_reports, t.total_reports),
		COALESCE(l.abuse_last_reported, t.last_reported),
		COALESCE(l.abuse_is_whitelisted, t.is_whitelisted),
		COALESCE(l.abuse_is_tor, t.is_tor),
		l.src_device_name, l.dst_device_name, l.raw_log
	FROM logs l
	LEFT JOIN ip_threats t ON t.ip = (CASE
		WHEN l.direction = 'inbound' THEN l.src_ip
		WHEN l.direction = 'outbound' THEN l.dst_ip
		WHEN l.src_ip IS NOT NULL THEN l.src_ip
		ELSE l.dst_ip
	END) AND t.ip <> ALL($2::inet[]) AND t.ip <> ALL($3::inet[])
	WHERE l.id = $1
	`
	row := s.pool.QueryRow(ctx, sql, id, pgInetArray(wanIPs), pgInetArray(gatewayIPs))
	r, err := scanRecord(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Record{}, false, nil
		}
		return Record{}, false, errors.Wrap(err, errors.KindInternal, "store: get log detail")
	}
	return r, true, nil
}

func pgInetArray(ips []string) []string {
	if ips == nil {
		return []string{}
	}
	return ips
}

func placeholder(n int) string {
	return strconv.Itoa(n)
}

// scannable abstracts pgx.Row and pgx.Rows, both of which expose Scan.
type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (Record, error) {
	var r Record
	err := row.Scan(
		&r.ID, &r.IngestedAt, &r.OriginTimestamp, &r.Record.Subtype, &r.Record.Direction,
		&r.Record.SrcIP, &r.Record.SrcPort, &r.Record.DstIP, &r.Record.DstPort, &r.Record.Protocol, &r.Record.ServiceName,
		&r.Record.RuleName, &r.Record.RuleDesc, &r.Record.RuleAction, &r.Record.InterfaceIn, &r.Record.InterfaceOut,
		&r.Record.MACAddress, &r.Record.Hostname, &r.Record.DHCPEvent, &r.Record.DNSQuery, &r.Record.DNSType, &r.Record.DNSAnswer,
		&r.Record.WifiEvent, &r.GeoCountry, &r.GeoCity, &r.GeoLat, &r.GeoLon, &r.ASNNumber, &r.ASNName,
		&r.RDNS, &r.ThreatScore, &r.ThreatCategories,
		&r.AbuseUsageType, &r.AbuseHostnames, &r.AbuseTotalReports, &r.AbuseLastReported,
		&r.AbuseIsWhitelisted, &r.AbuseIsTor,
		&r.SrcDeviceName, &r.DstDeviceName, &r.RawLog,
	)
	return r, err
}
