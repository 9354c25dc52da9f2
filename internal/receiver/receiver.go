// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package receiver

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/phersys/loginsight/internal/clock"
	"github.com/phersys/loginsight/internal/enrich"
	"github.com/phersys/loginsight/internal/logging"
	"github.com/phersys/loginsight/internal/metrics"
	"github.com/phersys/loginsight/internal/parser"
	"github.com/phersys/loginsight/internal/store"
)

// recvBufferBytes is the UDP socket receive buffer, raised well above the
// OS default so a burst of firewall log lines doesn't overrun the kernel
// queue while a flush is in flight.
const recvBufferBytes = 1 << 20 // ~1 MiB

const recvTimeout = 250 * time.Millisecond

// logStore is the narrow slice of internal/store.Store the receiver
// needs to persist a flushed batch.
type logStore interface {
	InsertEnrichedBatch(ctx context.Context, records []store.EnrichedRecord) (inserted, dropped int, err error)
}

// Receiver owns the UDP socket and the batch it feeds.
type Receiver struct {
	conn *net.UDPConn

	db     logStore
	engine *enrich.Engine
	geo    *enrich.GeoLookup
	cfg    configStore
	metrics *metrics.Registry
	log    *logging.Logger
	clock  clock.Clock
	loc    *time.Location

	batch *batch

	wanMu sync.RWMutex
	wan   wanState

	ctx    context.Context
	cancel context.CancelFunc
}

// New binds the dual-stack UDP listener and wires the receiver's
// collaborators. cfg may be nil, in which case WAN/gateway direction
// derivation runs with an empty context and ReloadConfig is a no-op.
func New(listenAddr string, db logStore, engine *enrich.Engine, geo *enrich.GeoLookup, cfg configStore, loc *time.Location, log *logging.Logger) (*Receiver, error) {
	addr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	if err := conn.SetReadBuffer(recvBufferBytes); err != nil && log != nil {
		log.Warn("receiver: failed to raise socket receive buffer", "err", err)
	}

	if loc == nil {
		loc = time.UTC
	}

	r := &Receiver{
		conn:    conn,
		db:      db,
		engine:  engine,
		geo:     geo,
		cfg:     cfg,
		metrics: metrics.Get(),
		log:     log,
		clock:   clock.Default,
		loc:     loc,
		batch:   newBatch(clock.Default.Now()),
	}

	if cfg != nil {
		if st, err := loadWANState(context.Background(), cfg); err == nil {
			r.wanMu.Lock()
			r.wan = st
			r.wanMu.Unlock()
			if engine != nil {
				engine.SetExclusion(st.exclusion)
			}
		} else if log != nil {
			log.Warn("receiver: initial WAN state load failed", "err", err)
		}
	}

	return r, nil
}

// Run blocks until ctx is cancelled, receiving datagrams and flushing the
// batch on size or age, then flushes whatever remains and closes the
// socket before returning.
func (r *Receiver) Run(ctx context.Context) {
	r.ctx, r.cancel = context.WithCancel(ctx)

	buf := make([]byte, 8*1024)
	for {
		select {
		case <-r.ctx.Done():
			r.flush(context.Background())
			r.conn.Close()
			if r.log != nil {
				r.log.Info("receiver: stopped")
			}
			return
		default:
		}

		r.conn.SetReadDeadline(r.clock.Now().Add(recvTimeout))
		n, _, err := r.conn.ReadFromUDP(buf)
		now := r.clock.Now()

		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				if r.batch.due(now) {
					r.flush(r.ctx)
				}
				continue
			}
			select {
			case <-r.ctx.Done():
				continue
			default:
				if r.log != nil {
					r.log.Warn("receiver: read error", "err", err)
				}
			}
			continue
		}

		r.ingest(string(buf[:n]), now)
		if r.batch.due(now) {
			r.flush(r.ctx)
		}
	}
}

// Stop signals Run to exit; it does not wait for Run to return.
func (r *Receiver) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Receiver) ingest(raw string, now time.Time) {
	wan := r.wanContext()

	rec, ok := parser.Parse(raw, now, r.loc, wan)
	if !ok {
		if r.metrics != nil {
			r.metrics.ParseFailures.Inc()
		}
		if r.log != nil {
			r.log.Warn("receiver: failed to parse syslog line", "raw", raw)
		}
		return
	}

	enriched := store.EnrichedRecord{Record: rec}
	if r.engine != nil {
		if res, found := r.engine.Enrich(r.ctx, rec); found {
			enriched.GeoCountry = res.Geo.Country
			enriched.GeoCity = res.Geo.City
			enriched.GeoLat = res.Geo.Lat
			enriched.GeoLon = res.Geo.Lon
			enriched.ASNNumber = res.Geo.ASNNumber
			enriched.ASNName = res.Geo.ASNName
			enriched.RDNS = res.RDNS
			if res.HasThreat {
				enriched.ThreatScore = res.Threat.Score
				enriched.ThreatCategories = res.Threat.Categories
				enriched.AbuseUsageType = res.Threat.UsageType
				enriched.AbuseHostnames = res.Threat.Hostnames
				enriched.AbuseTotalReports = res.Threat.TotalReports
				enriched.AbuseLastReported = res.Threat.LastReported
				enriched.AbuseIsWhitelisted = res.Threat.IsWhitelisted
				enriched.AbuseIsTor = res.Threat.IsTor
			}
		}
	}

	if r.metrics != nil {
		r.metrics.IngestedTotal.Inc()
	}

	if r.batch.append(enriched, now) {
		r.flush(r.ctx)
	}
}

func (r *Receiver) wanContext() parser.WANContext {
	r.wanMu.RLock()
	st := r.wan
	r.wanMu.RUnlock()
	return st.wanContext(r.autoLearnWANIP)
}

// autoLearnWANIP persists a freshly discovered WAN IP so the next config
// reload (and RefreshWANConfig's own write-back) sees it.
func (r *Receiver) autoLearnWANIP(ip string) {
	if r.cfg == nil {
		return
	}
	r.wanMu.Lock()
	for _, existing := range r.wan.ips {
		if existing == ip {
			r.wanMu.Unlock()
			return
		}
	}
	ips := append(append([]string{}, r.wan.ips...), ip)
	r.wan.ips = ips
	r.wan.exclusion.WANIPs = ips
	r.wanMu.Unlock()

	if err := r.cfg.SetStringSlice(context.Background(), "wan_ips", ips); err != nil && r.log != nil {
		r.log.Warn("receiver: failed to persist auto-learned WAN IP", "ip", ip, "err", err)
	}
}

func (r *Receiver) flush(ctx context.Context) {
	rows := r.batch.drain(r.clock.Now())
	if len(rows) == 0 {
		return
	}

	if r.metrics != nil {
		r.metrics.BatchFlushes.Inc()
		r.metrics.BatchSize.Observe(float64(len(rows)))
	}

	if r.db == nil {
		return
	}

	inserted, dropped, err := r.db.InsertEnrichedBatch(ctx, rows)
	if err != nil {
		if r.metrics != nil {
			r.metrics.BatchFlushFails.Inc()
			r.metrics.DroppedTotal.Add(float64(len(rows)))
		}
		if r.log != nil {
			r.log.Warn("receiver: batch flush failed, dropping batch", "err", err, "size", len(rows))
		}
		return
	}

	if r.metrics != nil && dropped > 0 {
		r.metrics.DroppedTotal.Add(float64(dropped))
	}
	if r.log != nil {
		r.log.Info("receiver: batch flushed", "inserted", inserted, "dropped", dropped)
	}
}

// ReloadGeo asks the GeoIP/ASN readers to re-open their database files.
func (r *Receiver) ReloadGeo() error {
	if r.geo == nil {
		return nil
	}
	if err := r.geo.Reload(); err != nil {
		if r.log != nil {
			r.log.Warn("receiver: geoip reload failed", "err", err)
		}
		return err
	}
	if r.log != nil {
		r.log.Info("receiver: geoip databases reloaded")
	}
	return nil
}

// ReloadConfig re-reads the WAN/gateway addresses and interface list from
// the config store and swaps the engine's exclusion set.
func (r *Receiver) ReloadConfig(ctx context.Context) error {
	if r.cfg == nil {
		return nil
	}
	st, err := loadWANState(ctx, r.cfg)
	if err != nil {
		if r.metrics != nil {
			r.metrics.ConfigReload.WithLabelValues("error").Inc()
		}
		return err
	}
	r.wanMu.Lock()
	r.wan = st
	r.wanMu.Unlock()
	if r.engine != nil {
		r.engine.SetExclusion(st.exclusion)
	}
	if r.metrics != nil {
		r.metrics.ConfigReload.WithLabelValues("ok").Inc()
	}
	if r.log != nil {
		r.log.Info("receiver: config reloaded", "wan_ips", st.ips, "gateway_ips", st.gatewayIPs)
	}
	return nil
}
