// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"time"

	"github.com/phersys/loginsight/internal/errors"
)

// ClientEntry is one unifi_clients row: an end-user device.
type ClientEntry struct {
	MAC        string
	IP         string
	Hostname   string
	DeviceName string
	OUI        string
	SSID       string
	VLAN       *int
	IsWired    *bool
	LastSeen   time.Time
}

// DeviceEntry is one unifi_devices row: infrastructure (AP, switch, gateway).
type DeviceEntry struct {
	MAC           string
	IP            string
	DeviceName    string
	Model         string
	Firmware      string
	DeviceType    string
	UptimeSeconds *int64
	LastSeen      time.Time
}

// BulkUpsertClients applies "last writer with non-null wins" semantics
// per field: a poll that only refreshed last_seen must not blank out a
// device_name learned on a previous poll.
func (s *Store) BulkUpsertClients(ctx context.Context, entries []ClientEntry) error {
	const sql = `
	INSERT INTO unifi_clients (mac, ip, hostname, device_name, oui, ssid, vlan, is_wired, last_seen)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (mac) DO UPDATE SET
		ip          = COALESCE(EXCLUDED.ip, unifi_clients.ip),
		hostname    = COALESCE(EXCLUDED.hostname, unifi_clients.hostname),
		device_name = COALESCE(EXCLUDED.device_name, unifi_clients.device_name),
		oui         = COALESCE(EXCLUDED.oui, unifi_clients.oui),
		ssid        = COALESCE(EXCLUDED.ssid, unifi_clients.ssid),
		vlan        = COALESCE(EXCLUDED.vlan, unifi_clients.vlan),
		is_wired    = COALESCE(EXCLUDED.is_wired, unifi_clients.is_wired),
		last_seen   = COALESCE(EXCLUDED.last_seen, unifi_clients.last_seen)
	`
	for _, c := range entries {
		if _, err := s.pool.Exec(ctx, sql, c.MAC, nullableString(c.IP), nullableString(c.Hostname),
			nullableString(c.DeviceName), nullableString(c.OUI), nullableString(c.SSID), c.VLAN, c.IsWired, c.LastSeen); err != nil {
			return errors.Wrap(err, errors.KindInternal, "store: bulk upsert clients")
		}
	}
	return nil
}

// BulkUpsertDevices is the infrastructure-device analogue of
// BulkUpsertClients.
func (s *Store) BulkUpsertDevices(ctx context.Context, entries []DeviceEntry) error {
	const sql = `
	INSERT INTO unifi_devices (mac, ip, device_name, model, firmware, device_type, uptime_seconds, last_seen)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (mac) DO UPDATE SET
		ip             = COALESCE(EXCLUDED.ip, unifi_devices.ip),
		device_name    = COALESCE(EXCLUDED.device_name, unifi_devices.device_name),
		model          = COALESCE(EXCLUDED.model, unifi_devices.model),
		firmware       = COALESCE(EXCLUDED.firmware, unifi_devices.firmware),
		device_type    = COALESCE(EXCLUDED.device_type, unifi_devices.device_type),
		uptime_seconds = COALESCE(EXCLUDED.uptime_seconds, unifi_devices.uptime_seconds),
		last_seen      = COALESCE(EXCLUDED.last_seen, unifi_devices.last_seen)
	`
	for _, d := range entries {
		if _, err := s.pool.Exec(ctx, sql, d.MAC, nullableString(d.IP), nullableString(d.DeviceName),
			nullableString(d.Model), nullableString(d.Firmware), nullableString(d.DeviceType), d.UptimeSeconds, d.LastSeen); err != nil {
			return errors.Wrap(err, errors.KindInternal, "store: bulk upsert devices")
		}
	}
	return nil
}

// ListClients returns every cached client, most recently seen first.
func (s *Store) ListClients(ctx context.Context) ([]ClientEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT mac, COALESCE(ip::text, ''), COALESCE(hostname, ''), COALESCE(device_name, ''),
		       COALESCE(oui, ''), COALESCE(ssid, ''), vlan, is_wired, last_seen
		FROM unifi_clients ORDER BY last_seen DESC
	`)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "store: list clients")
	}
	defer rows.Close()

	var out []ClientEntry
	for rows.Next() {
		var c ClientEntry
		if err := rows.Scan(&c.MAC, &c.IP, &c.Hostname, &c.DeviceName, &c.OUI, &c.SSID, &c.VLAN, &c.IsWired, &c.LastSeen); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "store: scan client")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListDevices returns every cached infrastructure device, most recently
// seen first.
func (s *Store) ListDevices(ctx context.Context) ([]DeviceEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT mac, COALESCE(ip::text, ''), COALESCE(device_name, ''), COALESCE(model, ''),
		       COALESCE(firmware, ''), COALESCE(device_type, ''), uptime_seconds, last_seen
		FROM unifi_devices ORDER BY last_seen DESC
	`)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "store: list devices")
	}
	defer rows.Close()

	var out []DeviceEntry
	for rows.Next() {
		var d DeviceEntry
		if err := rows.Scan(&d.MAC, &d.IP, &d.DeviceName, &d.Model, &d.Firmware, &d.DeviceType, &d.UptimeSeconds, &d.LastSeen); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "store: scan device")
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// BackfillDeviceNames re-derives src_device_name/dst_device_name on
// existing log rows from the current client/device caches, for rows
// ingested before a MAC's name was known.
func (s *Store) BackfillDeviceNames(ctx context.Context) (int64, error) {
	const sql = `
	UPDATE logs l SET
		src_device_name = COALESCE(src_c.device_name, src_c.hostname, src_c.oui, src_d.device_name, src_d.model),
		dst_device_name = COALESCE(dst_c.device_name, dst_c.hostname, dst_c.oui, dst_d.device_name, dst_d.model)
	FROM logs f
	LEFT JOIN unifi_clients src_c ON src_c.mac = f.mac_address
	LEFT JOIN unifi_devices src_d ON src_d.mac = f.mac_address
	LEFT JOIN unifi_clients dst_c ON dst_c.ip = f.dst_ip
	LEFT JOIN unifi_devices dst_d ON dst_d.ip = f.dst_ip
	WHERE l.id = f.id
	  AND (l.src_device_name IS NULL OR l.dst_device_name IS NULL)
	  AND (src_c.mac IS NOT NULL OR src_d.mac IS NOT NULL OR dst_c.mac IS NOT NULL OR dst_d.mac IS NOT NULL)
	`
	tag, err := s.pool.Exec(ctx, sql)
	if err != nil {
		return 0, errors.Wrap(err, errors.KindInternal, "store: backfill device names")
	}
	return tag.RowsAffected(), nil
}

// NameMaps is the in-memory ip→name and mac→name projection the
// controller client holds, rebuilt periodically from both caches.
type NameMaps struct {
	ByIP  map[string]string
	ByMAC map[string]string
}

// LoadNameMaps rebuilds the ip/mac → display-name maps from both
// caches, preferring a client's device_name/hostname/oui chain, falling
// back to a device's device_name/model.
func (s *Store) LoadNameMaps(ctx context.Context) (NameMaps, error) {
	maps := NameMaps{ByIP: map[string]string{}, ByMAC: map[string]string{}}

	rows, err := s.pool.Query(ctx, `
		SELECT mac, ip::text, COALESCE(device_name, hostname, oui, '') FROM unifi_clients
	`)
	if err != nil {
		return maps, errors.Wrap(err, errors.KindInternal, "store: load client name map")
	}
	for rows.Next() {
		var mac, ip, name string
		if err := rows.Scan(&mac, &ip, &name); err != nil {
			rows.Close()
			return maps, errors.Wrap(err, errors.KindInternal, "store: scan client name map")
		}
		if name == "" {
			continue
		}
		maps.ByMAC[mac] = name
		if ip != "" {
			maps.ByIP[ip] = name
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return maps, errors.Wrap(err, errors.KindInternal, "store: iterate client name map")
	}

	drows, err := s.pool.Query(ctx, `
		SELECT mac, ip::text, COALESCE(device_name, model, '') FROM unifi_devices
	`)
	if err != nil {
		return maps, errors.Wrap(err, errors.KindInternal, "store: load device name map")
	}
	defer drows.Close()
	for drows.Next() {
		var mac, ip, name string
		if err := drows.Scan(&mac, &ip, &name); err != nil {
			return maps, errors.Wrap(err, errors.KindInternal, "store: scan device name map")
		}
		if name == "" {
			continue
		}
		if _, ok := maps.ByMAC[mac]; !ok {
			maps.ByMAC[mac] = name
		}
		if ip != "" {
			if _, ok := maps.ByIP[ip]; !ok {
				maps.ByIP[ip] = name
			}
		}
	}
	return maps, drows.Err()
}
