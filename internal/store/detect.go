// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"

	"github.com/phersys/loginsight/internal/errors"
)

// WANCandidate is one row of wan_ip_candidates()/wan_ips_by_interface():
// the statistical mode of the destination IP seen on an interface,
// restricted to global-scope addresses.
type WANCandidate struct {
	Interface  string
	EventCount int64
	WANIP      string
}

// WANIPCandidates returns, for every non-bridge non-VPN interface, the
// modal global-scope destination IP ordered by event volume.
func (s *Store) WANIPCandidates(ctx context.Context, bridgePrefix string, vpnPrefixes []string) ([]WANCandidate, error) {
	return s.wanIPCandidatesFiltered(ctx, nil, bridgePrefix, vpnPrefixes)
}

// WANIPsByInterface is WANIPCandidates restricted to the given interfaces.
func (s *Store) WANIPsByInterface(ctx context.Context, ifaces []string) ([]WANCandidate, error) {
	return s.wanIPCandidatesFiltered(ctx, ifaces, "", nil)
}

func (s *Store) wanIPCandidatesFiltered(ctx context.Context, onlyIfaces []string, bridgePrefix string, vpnPrefixes []string) ([]WANCandidate, error) {
	sql := `
	SELECT interface_in,
	       count(*) AS event_count,
	       (MODE() WITHIN GROUP (ORDER BY dst_ip)) ::text AS wan_ip
	FROM logs
	WHERE subtype = 'firewall'
	  AND dst_ip IS NOT NULL
	  AND family(dst_ip) IS NOT NULL
	  AND NOT (dst_ip << '10.0.0.0/8'::cidr OR dst_ip << '172.16.0.0/12'::cidr
	           OR dst_ip << '192.168.0.0/16'::cidr OR dst_ip << '127.0.0.0/8'::cidr)
	`
	var args []any
	if len(onlyIfaces) > 0 {
		sql += ` AND interface_in = ANY($1)`
		args = append(args, onlyIfaces)
	} else if bridgePrefix != "" {
		sql += ` AND interface_in NOT LIKE $1`
		args = append(args, bridgePrefix+"%")
	}
	sql += ` GROUP BY interface_in ORDER BY event_count DESC`

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "store: wan ip candidates")
	}
	defer rows.Close()

	var out []WANCandidate
	for rows.Next() {
		var c WANCandidate
		if err := rows.Scan(&c.Interface, &c.EventCount, &c.WANIP); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "store: scan wan ip candidate")
		}
		if hasVPNIfacePrefix(c.Interface, vpnPrefixes) {
			continue
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DistinctInterfaces returns every interface name seen on either side of
// a logged flow, for the /interfaces discovery endpoint.
func (s *Store) DistinctInterfaces(ctx context.Context) ([]string, error) {
	const sql = `
	SELECT DISTINCT iface FROM (
		SELECT interface_in AS iface FROM logs WHERE interface_in IS NOT NULL AND interface_in <> ''
		UNION
		SELECT interface_out AS iface FROM logs WHERE interface_out IS NOT NULL AND interface_out <> ''
	) ifaces
	ORDER BY iface
	`
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "store: distinct interfaces")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var iface string
		if err := rows.Scan(&iface); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "store: scan distinct interface")
		}
		out = append(out, iface)
	}
	return out, rows.Err()
}

// InterfaceSample is one interface's distinct private-scope sample IPs
// seen on either side of a firewall row, for the setup wizard's network
// segment discovery.
type InterfaceSample struct {
	Interface string
	SampleIPs []string
}

// NetworkSegments returns every interface with at least one private-
// scope sample IP, up to 30 interfaces, sample IPs sorted and distinct.
func (s *Store) NetworkSegments(ctx context.Context) ([]InterfaceSample, error) {
	const sql = `
	WITH interface_ips AS (
		SELECT interface_in AS iface, src_ip AS ip
		FROM logs
		WHERE subtype = 'firewall'
		  AND interface_in IS NOT NULL
		  AND (src_ip << '10.0.0.0/8'::cidr OR src_ip << '172.16.0.0/12'::cidr
		       OR src_ip << '192.168.0.0/16'::cidr OR src_ip << 'fc00::/7'::cidr OR src_ip << 'fe80::/10'::cidr)
		UNION
		SELECT interface_out AS iface, dst_ip AS ip
		FROM logs
		WHERE subtype = 'firewall'
		  AND interface_out IS NOT NULL
		  AND (dst_ip << '10.0.0.0/8'::cidr OR dst_ip << '172.16.0.0/12'::cidr
		       OR dst_ip << '192.168.0.0/16'::cidr OR dst_ip << 'fc00::/7'::cidr OR dst_ip << 'fe80::/10'::cidr)
	)
	SELECT iface, ARRAY_AGG(DISTINCT host(ip) ORDER BY host(ip))
	FROM interface_ips
	GROUP BY iface
	ORDER BY iface
	LIMIT 30
	`
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "store: network segments")
	}
	defer rows.Close()

	var out []InterfaceSample
	for rows.Next() {
		var seg InterfaceSample
		if err := rows.Scan(&seg.Interface, &seg.SampleIPs); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "store: scan network segment")
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

func hasVPNIfacePrefix(iface string, prefixes []string) bool {
	for _, p := range prefixes {
		if len(iface) >= len(p) && iface[:len(p)] == p {
			return true
		}
	}
	return false
}

// GatewayCandidate is one row extracted by DetectGatewayIPs: a private-
// scope destination IP seen on a rule matching the _LOCAL suffix
// convention, grouped by interface.
type GatewayCandidate struct {
	Interface string
	IP        string
}

// DetectGatewayIPs scans firewall rules with names matching the _LOCAL
// suffix convention and extracts private-scope destination IPs.
func (s *Store) DetectGatewayIPs(ctx context.Context) ([]GatewayCandidate, error) {
	const sql = `
	SELECT DISTINCT interface_in, dst_ip::text
	FROM logs
	WHERE subtype = 'firewall'
	  AND rule_name LIKE '%_LOCAL%'
	  AND dst_ip IS NOT NULL
	  AND (dst_ip << '10.0.0.0/8'::cidr OR dst_ip << '172.16.0.0/12'::cidr OR dst_ip << '192.168.0.0/16'::cidr)
	`
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "store: detect gateway ips")
	}
	defer rows.Close()

	var out []GatewayCandidate
	for rows.Next() {
		var c GatewayCandidate
		if err := rows.Scan(&c.Interface, &c.IP); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "store: scan gateway candidate")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
