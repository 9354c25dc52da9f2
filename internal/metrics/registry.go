// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes the ingestion/enrichment pipeline's Prometheus
// counters and gauges: ingest throughput, batch flush outcomes,
// enrichment cache hit/miss rates, and the threat service's rate-limit
// state. Unlike a polled OS-counter collector, every metric here is
// updated inline by the component that observed the event.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every metric this process exports. The zero value is
// not usable; construct with New or use the process-wide singleton
// returned by Get.
type Registry struct {
	IngestedTotal prometheus.Counter
	ParseFailures prometheus.Counter
	DroppedTotal  prometheus.Counter

	BatchFlushes    prometheus.Counter
	BatchFlushFails prometheus.Counter
	BatchSize       prometheus.Histogram

	EnrichCacheHits   *prometheus.CounterVec
	EnrichCacheMisses *prometheus.CounterVec

	ThreatRateLimitState prometheus.Gauge
	ThreatRateRemaining  prometheus.Gauge

	ConfigReload *prometheus.CounterVec

	ControllerPollSuccess prometheus.Counter
	ControllerPollFailure prometheus.Counter
}

// New constructs a Registry and registers every metric against reg.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		IngestedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loginsight", Subsystem: "receiver", Name: "ingested_total",
			Help: "Total syslog lines successfully parsed and appended to a batch.",
		}),
		ParseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loginsight", Subsystem: "receiver", Name: "parse_failures_total",
			Help: "Total syslog lines that failed to parse.",
		}),
		DroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loginsight", Subsystem: "receiver", Name: "dropped_total",
			Help: "Total rows dropped because a batch flush failed.",
		}),
		BatchFlushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loginsight", Subsystem: "receiver", Name: "batch_flushes_total",
			Help: "Total batch flush attempts.",
		}),
		BatchFlushFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loginsight", Subsystem: "receiver", Name: "batch_flush_failures_total",
			Help: "Total batch flushes that failed outright.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "loginsight", Subsystem: "receiver", Name: "batch_size",
			Help:    "Size of each flushed batch.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 200},
		}),
		EnrichCacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loginsight", Subsystem: "enrich", Name: "cache_hits_total",
			Help: "Enrichment cache hits by source (memory, persistent, remote).",
		}, []string{"source"}),
		EnrichCacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loginsight", Subsystem: "enrich", Name: "cache_misses_total",
			Help: "Enrichment cache misses by source (memory, persistent, remote).",
		}, []string{"source"}),
		ThreatRateLimitState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "loginsight", Subsystem: "enrich", Name: "threat_rate_limit_state",
			Help: "Threat API rate gate state: 0=unknown, 1=known, 2=paused.",
		}),
		ThreatRateRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "loginsight", Subsystem: "enrich", Name: "threat_rate_remaining",
			Help: "Last observed Remaining value from the threat API's rate headers.",
		}),
		ConfigReload: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loginsight", Subsystem: "receiver", Name: "config_reload_total",
			Help: "Config-reload signal handling outcomes.",
		}, []string{"status"}),
		ControllerPollSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loginsight", Subsystem: "controller", Name: "poll_success_total",
			Help: "Total successful controller poll ticks.",
		}),
		ControllerPollFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loginsight", Subsystem: "controller", Name: "poll_failure_total",
			Help: "Total failed controller poll ticks.",
		}),
	}

	for _, c := range []prometheus.Collector{
		r.IngestedTotal, r.ParseFailures, r.DroppedTotal,
		r.BatchFlushes, r.BatchFlushFails, r.BatchSize,
		r.EnrichCacheHits, r.EnrichCacheMisses,
		r.ThreatRateLimitState, r.ThreatRateRemaining, r.ConfigReload,
		r.ControllerPollSuccess, r.ControllerPollFailure,
	} {
		reg.MustRegister(c)
	}
	return r
}

var (
	once     sync.Once
	instance *Registry
)

// Get returns the process-wide Registry, registered against the default
// Prometheus registerer on first use.
func Get() *Registry {
	once.Do(func() {
		instance = New(prometheus.DefaultRegisterer)
	})
	return instance
}
