// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// migrationStep is one schema-evolution statement. Each runs inside its
// own savepoint so a privilege denial on one step (commonly an ALTER
// that needs a role this process doesn't have) doesn't abort the whole
// migration run — it's logged and stepped over.
type migrationStep struct {
	name string
	sql  string
}

var migrationSteps = []migrationStep{
	{
		name: "create_logs",
		sql: `
		CREATE TABLE IF NOT EXISTS logs (
			id BIGSERIAL PRIMARY KEY,
			ingested_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			origin_timestamp TIMESTAMPTZ NOT NULL,
			subtype TEXT NOT NULL,
			direction TEXT,
			src_ip INET,
			src_port INTEGER,
			dst_ip INET,
			dst_port INTEGER,
			protocol TEXT,
			service_name TEXT,
			rule_name TEXT,
			rule_desc TEXT,
			rule_action TEXT,
			interface_in TEXT,
			interface_out TEXT,
			mac_address TEXT,
			hostname TEXT,
			dhcp_event TEXT,
			dns_query TEXT,
			dns_type TEXT,
			dns_answer TEXT,
			wifi_event TEXT,
			geo_country TEXT,
			geo_city TEXT,
			geo_lat DOUBLE PRECISION,
			geo_lon DOUBLE PRECISION,
			asn_number INTEGER,
			asn_name TEXT,
			rdns TEXT,
			threat_score SMALLINT,
			threat_categories TEXT[],
			abuse_usage_type TEXT,
			abuse_hostnames TEXT[],
			abuse_total_reports INTEGER,
			abuse_last_reported TIMESTAMPTZ,
			abuse_is_whitelisted BOOLEAN,
			abuse_is_tor BOOLEAN,
			src_device_name TEXT,
			dst_device_name TEXT,
			raw_log TEXT NOT NULL
		)`,
	},
	{name: "logs_idx_origin_timestamp", sql: `CREATE INDEX IF NOT EXISTS idx_logs_origin_timestamp ON logs (origin_timestamp DESC)`},
	{name: "logs_idx_subtype", sql: `CREATE INDEX IF NOT EXISTS idx_logs_subtype ON logs (subtype)`},
	{name: "logs_idx_src_ip", sql: `CREATE INDEX IF NOT EXISTS idx_logs_src_ip ON logs (src_ip)`},
	{name: "logs_idx_dst_ip", sql: `CREATE INDEX IF NOT EXISTS idx_logs_dst_ip ON logs (dst_ip)`},
	{name: "logs_idx_rule_action", sql: `CREATE INDEX IF NOT EXISTS idx_logs_rule_action ON logs (rule_action)`},

	{
		name: "create_ip_threats",
		sql: `
		CREATE TABLE IF NOT EXISTS ip_threats (
			ip INET PRIMARY KEY,
			score SMALLINT,
			categories TEXT[],
			usage_type TEXT,
			hostnames TEXT[],
			total_reports INTEGER,
			last_reported TIMESTAMPTZ,
			is_whitelisted BOOLEAN,
			is_tor BOOLEAN,
			looked_up_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},

	{
		name: "create_unifi_clients",
		sql: `
		CREATE TABLE IF NOT EXISTS unifi_clients (
			mac TEXT PRIMARY KEY,
			ip INET,
			hostname TEXT,
			device_name TEXT,
			oui TEXT,
			ssid TEXT,
			vlan INTEGER,
			is_wired BOOLEAN,
			last_seen TIMESTAMPTZ
		)`,
	},
	{
		name: "create_unifi_devices",
		sql: `
		CREATE TABLE IF NOT EXISTS unifi_devices (
			mac TEXT PRIMARY KEY,
			ip INET,
			device_name TEXT,
			model TEXT,
			firmware TEXT,
			device_type TEXT,
			uptime_seconds BIGINT,
			last_seen TIMESTAMPTZ
		)`,
	},

	{
		name: "create_system_config",
		sql: `
		CREATE TABLE IF NOT EXISTS system_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},

	{
		name: "create_retention_function",
		sql: `
		CREATE OR REPLACE FUNCTION run_retention(general_days INTEGER, dns_days INTEGER)
		RETURNS BIGINT AS $$
		DECLARE
			deleted BIGINT;
		BEGIN
			WITH del AS (
				DELETE FROM logs
				WHERE (subtype <> 'dns' AND origin_timestamp < now() - (general_days || ' days')::interval)
				   OR (subtype = 'dns' AND origin_timestamp < now() - (dns_days || ' days')::interval)
				RETURNING 1
			)
			SELECT count(*) INTO deleted FROM del;
			RETURN deleted;
		END;
		$$ LANGUAGE plpgsql`,
	},
}

// migrate runs every step in order inside its own savepoint, logging and
// continuing past privilege-denied failures instead of aborting.
func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return rowsAffectedErr("begin migration transaction", err)
	}
	defer tx.Rollback(ctx)

	for _, step := range migrationSteps {
		if err := s.runStepInSavepoint(ctx, tx, step); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) runStepInSavepoint(ctx context.Context, tx pgx.Tx, step migrationStep) error {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return rowsAffectedErr("begin savepoint "+step.name, err)
	}
	if _, err := sp.Exec(ctx, step.sql); err != nil {
		rbErr := sp.Rollback(ctx)
		if s.log != nil {
			s.log.Warn("migration step failed, skipping", "step", step.name, "error", err.Error())
		}
		if rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return rowsAffectedErr("rollback savepoint "+step.name, rbErr)
		}
		return nil
	}
	return sp.Commit(ctx)
}
