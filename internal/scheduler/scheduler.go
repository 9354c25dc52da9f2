// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package scheduler runs the cron-like dispatcher: a single goroutine
// that wakes every dispatchInterval, asks each job whether it's due, and
// runs the ones that are. There is no external cron dependency — jobs
// are cheap and few enough that a plain ticker plus a "due since" check
// per job is simpler than wiring a cron expression parser.
package scheduler

import (
	"context"
	"time"

	"github.com/phersys/loginsight/internal/clock"
	"github.com/phersys/loginsight/internal/config"
	"github.com/phersys/loginsight/internal/enrich"
	"github.com/phersys/loginsight/internal/logging"
	"github.com/phersys/loginsight/internal/netaddr"
	"github.com/phersys/loginsight/internal/store"
)

const (
	dispatchInterval     = 10 * time.Second
	statsInterval        = 15 * time.Minute
	rediscoveryInterval  = 15 * time.Minute
	blacklistStartupWait = 30 * time.Second
)

// Scheduler holds concrete store/config/enrich handles for the same
// reason internal/backfill.Worker does: its jobs collectively touch
// enough of each package's surface that a narrow interface would just
// restate the whole type.
type Scheduler struct {
	db     *store.Store
	cfg    *config.Store
	threat *enrich.ThreatClient
	log    *logging.Logger
	clock  clock.Clock
	loc    *time.Location

	generalRetentionDays int
	dnsRetentionDays     int
	retentionHour        int
	blacklistHour        int

	lastStats       time.Time
	lastRediscovery time.Time
	lastRetention   time.Time
	lastBlacklist   time.Time
	ranStartupPull  bool
	startedAt       time.Time
}

// New wires a Scheduler. loc is the installation's local zone, used to
// decide when the fixed daily jobs are due. log may be nil.
func New(db *store.Store, cfg *config.Store, threat *enrich.ThreatClient, loc *time.Location, generalRetentionDays, dnsRetentionDays, retentionHour, blacklistHour int, log *logging.Logger) *Scheduler {
	if log == nil {
		log = logging.Nop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		db: db, cfg: cfg, threat: threat, log: log, clock: clock.Default, loc: loc,
		generalRetentionDays: generalRetentionDays, dnsRetentionDays: dnsRetentionDays,
		retentionHour: retentionHour, blacklistHour: blacklistHour,
	}
}

// Run blocks, dispatching due jobs every dispatchInterval until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	now := s.clock.Now()
	s.startedAt = now
	s.lastStats = now
	s.lastRediscovery = now
	s.lastRetention = now
	s.lastBlacklist = now

	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatch(ctx)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context) {
	now := s.clock.Now()

	if dueEvery(s.lastStats, now, statsInterval) {
		s.logStats(ctx)
		s.lastStats = now
	}

	if dueEvery(s.lastRediscovery, now, rediscoveryInterval) {
		s.rediscoverWAN(ctx)
		s.lastRediscovery = now
	}

	if dueDailyAt(s.lastRetention, now, s.retentionHour, s.loc) {
		s.runRetention(ctx)
		s.lastRetention = now
	}

	if !s.ranStartupPull && now.Sub(s.startedAt) >= blacklistStartupWait {
		s.pullBlacklist(ctx)
		s.ranStartupPull = true
		s.lastBlacklist = now
	} else if dueDailyAt(s.lastBlacklist, now, s.blacklistHour, s.loc) {
		s.pullBlacklist(ctx)
		s.lastBlacklist = now
	}
}

// dueEvery reports whether interval has elapsed since last.
func dueEvery(last, now time.Time, interval time.Duration) bool {
	return now.Sub(last) >= interval
}

// dueDailyAt reports whether the most recent occurrence of hour:00 in
// loc falls strictly after last and at or before now — i.e. the
// scheduled moment was crossed since the job last ran.
func dueDailyAt(last, now time.Time, hour int, loc *time.Location) bool {
	localNow := now.In(loc)
	scheduled := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), hour, 0, 0, 0, loc)
	if scheduled.After(localNow) {
		scheduled = scheduled.AddDate(0, 0, -1)
	}
	return scheduled.After(last) && !scheduled.After(now)
}

func (s *Scheduler) logStats(ctx context.Context) {
	now := s.clock.Now()
	cutoff := now.Add(-24 * time.Hour)
	wanIPs, _ := s.cfg.GetStringSlice(ctx, "wan_ips")
	gatewayIPs, _ := s.cfg.GetStringSlice(ctx, "gateway_ips")
	stats, err := s.db.DashboardStats(ctx, cutoff, now, wanIPs, gatewayIPs)
	if err != nil {
		s.log.Warn("scheduler: stats log failed", "err", err)
		return
	}
	s.log.Info("periodic stats", "total_24h", stats.Total, "blocked_24h", stats.Blocked)
}

func (s *Scheduler) rediscoverWAN(ctx context.Context) {
	vpnPrefixes, _ := s.cfg.GetStringSlice(ctx, "vpn_prefixes")
	bridgePrefix, _, _ := s.cfg.GetString(ctx, "bridge_prefix")

	candidates, err := s.db.WANIPCandidates(ctx, bridgePrefix, vpnPrefixes)
	if err != nil {
		s.log.Warn("scheduler: wan rediscovery failed", "err", err)
		return
	}
	gateways, err := s.db.DetectGatewayIPs(ctx)
	if err != nil {
		s.log.Warn("scheduler: gateway rediscovery failed", "err", err)
		return
	}

	if len(candidates) > 0 {
		ips := make([]string, len(candidates))
		for i, c := range candidates {
			ips[i] = c.WANIP
		}
		if err := s.cfg.SetStringSlice(ctx, "wan_ips", dedupStrings(ips)); err != nil {
			s.log.Warn("scheduler: persist rediscovered wan_ips failed", "err", err)
		}
	}
	if len(gateways) > 0 {
		ips := make([]string, len(gateways))
		for i, g := range gateways {
			ips[i] = g.IP
		}
		if err := s.cfg.SetStringSlice(ctx, "gateway_ips", dedupStrings(ips)); err != nil {
			s.log.Warn("scheduler: persist rediscovered gateway_ips failed", "err", err)
		}
	}
	s.log.Info("wan/gateway rediscovery complete", "wan_candidates", len(candidates), "gateways", len(gateways))
}

func (s *Scheduler) runRetention(ctx context.Context) {
	deleted, err := s.db.RunRetention(ctx, s.generalRetentionDays, s.dnsRetentionDays)
	if err != nil {
		s.log.Warn("scheduler: retention failed", "err", err)
		return
	}
	s.log.Info("retention complete", "rows_deleted", deleted)
}

func (s *Scheduler) pullBlacklist(ctx context.Context) {
	if s.threat == nil {
		return
	}
	wanIPs, _ := s.cfg.GetStringSlice(ctx, "wan_ips")
	gatewayIPs, _ := s.cfg.GetStringSlice(ctx, "gateway_ips")
	ex := netaddr.ExclusionSet{WANIPs: wanIPs, GatewayIPs: gatewayIPs}
	n, err := s.threat.PullBlacklist(ctx, ex)
	if err != nil {
		s.log.Warn("scheduler: blacklist pull failed", "err", err)
		return
	}
	s.log.Info("blacklist pull complete", "entries", n)
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
