// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package backfill runs the one-shot and recurring maintenance passes
// that repair history after a WAN topology change, a code fix, or a
// transient API outage: re-deriving direction, re-enriching rows that
// were enriched against the wrong side, purging contaminated cache
// entries, applying the service catalog in bulk, and patching threat
// data for rows the original enrichment pass missed or left stale.
package backfill

import (
	"context"
	"time"

	"github.com/phersys/loginsight/internal/clock"
	"github.com/phersys/loginsight/internal/config"
	"github.com/phersys/loginsight/internal/enrich"
	"github.com/phersys/loginsight/internal/logging"
	"github.com/phersys/loginsight/internal/parser"
	"github.com/phersys/loginsight/internal/store"
)

const (
	settleDelay = 60 * time.Second
	cyclePeriod = 30 * time.Minute

	lookupInterval  = time.Second
	staleListLimit  = 200
	orphanListLimit = 200
	wanFixLimit     = 500
)

// Worker runs the maintenance cycle on a timer. It holds concrete store
// and config handles rather than narrow interfaces: unlike the receiver
// and controller, every step here either needs the full breadth of
// *store.Store's backfill methods or touches config keys no single
// narrow interface usefully captures.
type Worker struct {
	db     *store.Store
	cfg    *config.Store
	engine *enrich.Engine
	log    *logging.Logger
	clock  clock.Clock

	settle time.Duration
	period time.Duration
}

// New wires a Worker. log may be nil (treated as a no-op logger).
func New(db *store.Store, cfg *config.Store, engine *enrich.Engine, log *logging.Logger) *Worker {
	if log == nil {
		log = logging.Nop()
	}
	return &Worker{
		db: db, cfg: cfg, engine: engine, log: log,
		clock: clock.Default, settle: settleDelay, period: cyclePeriod,
	}
}

// Run blocks, sleeping settle before the first cycle and then running
// one cycle every period until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	select {
	case <-time.After(w.settle):
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(w.period)
	defer ticker.Stop()
	for {
		w.runCycle(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// wanTopology reads the WAN/gateway addresses internal/controller.Poller
// keeps current, the same keys internal/receiver reloads on signal.
func (w *Worker) wanTopology(ctx context.Context) (interfaces, wanIPs, gatewayIPs []string) {
	wanIPs, err := w.cfg.GetStringSlice(ctx, "wan_ips")
	if err != nil {
		w.log.Warn("backfill: read wan_ips failed", "err", err)
	}
	gatewayIPs, err = w.cfg.GetStringSlice(ctx, "gateway_ips")
	if err != nil {
		w.log.Warn("backfill: read gateway_ips failed", "err", err)
	}
	if byIface, ok, err := config.GetJSON[map[string]string](ctx, w.cfg, "wan_ip_by_iface"); err != nil {
		w.log.Warn("backfill: read wan_ip_by_iface failed", "err", err)
	} else if ok {
		for iface := range byIface {
			interfaces = append(interfaces, iface)
		}
	}
	return interfaces, wanIPs, gatewayIPs
}

func (w *Worker) runCycle(ctx context.Context) {
	interfaces, wanIPs, gatewayIPs := w.wanTopology(ctx)

	directionRows, err := w.db.RunDirectionBackfill(ctx, w.cfg, interfaces, wanIPs)
	if err != nil {
		w.log.Warn("backfill: direction re-derivation failed", "err", err)
	}

	wanFixRows, err := w.fixWANEnrichment(ctx, wanIPs)
	if err != nil {
		w.log.Warn("backfill: wan re-enrichment failed", "err", err)
	}

	abuseRows, err := w.db.RepairAbuseHostnames(ctx, w.cfg, wanIPs, gatewayIPs)
	if err != nil {
		w.log.Warn("backfill: abuse hostname repair failed", "err", err)
	}

	serviceRows, err := w.db.BackfillServiceNames(ctx)
	if err != nil {
		w.log.Warn("backfill: service name backfill failed", "err", err)
	}

	scoreRows, err := w.db.PatchNullScores(ctx, wanIPs, gatewayIPs)
	if err != nil {
		w.log.Warn("backfill: null score patch failed", "err", err)
	}

	detailRows, err := w.db.PatchMissingDetails(ctx, wanIPs, gatewayIPs)
	if err != nil {
		w.log.Warn("backfill: detail patch failed", "err", err)
	}

	staleRefreshed, err := w.refreshStaleThreatEntries(ctx)
	if err != nil {
		w.log.Warn("backfill: stale threat refresh failed", "err", err)
	}

	orphansLookedUp, err := w.lookupOrphanIPs(ctx, wanIPs, gatewayIPs)
	if err != nil {
		w.log.Warn("backfill: orphan ip lookup failed", "err", err)
	}
	if orphansLookedUp > 0 {
		if _, err := w.db.PatchNullScores(ctx, wanIPs, gatewayIPs); err != nil {
			w.log.Warn("backfill: post-orphan score patch failed", "err", err)
		}
	}

	w.log.Info("backfill cycle complete",
		"direction_rows", directionRows, "wan_fix_rows", wanFixRows, "abuse_rows", abuseRows,
		"service_rows", serviceRows, "score_rows", scoreRows, "detail_rows", detailRows,
		"stale_refreshed", staleRefreshed, "orphans_looked_up", orphansLookedUp,
	)
}

// fixWANEnrichment re-runs GeoIP/ASN/rDNS against the correct remote
// party for every row step 2 finds contaminated, throttled at one
// lookup per second since it drives the same GeoIP/rDNS collaborators
// the live receiver uses.
func (w *Worker) fixWANEnrichment(ctx context.Context, wanIPs []string) (int64, error) {
	pending, err := w.db.PendingWANFix(ctx, w.cfg)
	if err != nil || !pending {
		return 0, err
	}

	candidates, err := w.db.ListWANContaminatedRows(ctx, wanIPs, wanFixLimit)
	if err != nil {
		return 0, err
	}

	var fixed int64
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return fixed, err
		}
		res, ok := w.engine.Enrich(ctx, parser.Record{DstIP: c.DstIP})
		if ok && res.TargetIP == c.DstIP {
			if err := w.db.ApplyWANFix(ctx, c.ID, res.Geo.Country, res.Geo.City, res.Geo.Lat, res.Geo.Lon,
				res.Geo.ASNNumber, res.Geo.ASNName, res.RDNS); err != nil {
				w.log.Warn("backfill: apply wan fix failed", "id", c.ID, "err", err)
				continue
			}
			fixed++
		}
		w.sleep(ctx, lookupInterval)
	}

	if len(candidates) < wanFixLimit {
		if err := w.db.ClearWANFixPending(ctx, w.cfg); err != nil {
			return fixed, err
		}
	}
	return fixed, nil
}

// refreshStaleThreatEntries re-looks-up cache entries that carry a score
// but no detail, one per second, forgetting the in-memory tier first so
// the lookup actually reaches the remote API instead of replaying the
// stale entry back to itself.
func (w *Worker) refreshStaleThreatEntries(ctx context.Context) (int, error) {
	if w.engine == nil || w.engine.Threat == nil {
		return 0, nil
	}
	ips, err := w.db.ListStaleThreatEntries(ctx, w.clock.Now().Add(-30*24*time.Hour), staleListLimit)
	if err != nil {
		return 0, err
	}

	var refreshed int
	for _, ip := range ips {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		if err := w.db.BackdateThreatLookup(ctx, ip, 30*24*time.Hour); err != nil {
			w.log.Warn("backfill: backdate threat lookup failed", "ip", ip, "err", err)
			w.sleep(ctx, lookupInterval)
			continue
		}
		w.engine.Threat.Forget(ip)
		if _, found := w.engine.Threat.Lookup(ctx, ip); found {
			refreshed++
		}
		w.sleep(ctx, lookupInterval)
	}
	return refreshed, nil
}

// lookupOrphanIPs runs a first-time threat lookup for remote IPs that
// have never been cached at all, throttled identically to the stale
// refresh pass.
func (w *Worker) lookupOrphanIPs(ctx context.Context, wanIPs, gatewayIPs []string) (int, error) {
	if w.engine == nil || w.engine.Threat == nil {
		return 0, nil
	}
	ips, err := w.db.ListOrphanIPs(ctx, wanIPs, gatewayIPs, orphanListLimit)
	if err != nil {
		return 0, err
	}

	var looked int
	for _, ip := range ips {
		if err := ctx.Err(); err != nil {
			return looked, err
		}
		if _, found := w.engine.Threat.Lookup(ctx, ip); found {
			looked++
		}
		w.sleep(ctx, lookupInterval)
	}
	return looked, nil
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
