// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/phersys/loginsight/internal/clock"
	"github.com/phersys/loginsight/internal/config"
	"github.com/phersys/loginsight/internal/logging"
	"github.com/phersys/loginsight/internal/metrics"
)

// rateLimitState is learned entirely from response headers; it never
// carries a safety margin beyond the provider's own quota.
type rateLimitState struct {
	Limit       *int      `json:"limit,omitempty"`
	Remaining   *int      `json:"remaining,omitempty"`
	ResetAt     time.Time `json:"reset_at,omitempty"`
	PausedUntil time.Time `json:"paused_until,omitempty"`
}

type gateDecision int

const (
	gateUnknown gateDecision = iota // bootstrap / post-reset: allow just enough to re-learn
	gateKnown                      // remaining known: allow while remaining > safety buffer
	gatePaused                      // closed until PausedUntil
)

// rateLimitConfig is the narrow slice of internal/config.Store this
// package needs for durable rate-limit persistence.
type rateLimitConfig interface {
	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key string, value string) error
}

// RateGate implements the threat API's three-state admission gate:
// Unknown, Known, Paused. State is serialised after every call both to a
// RAM-backed file (for low-latency reads by the HTTP API) and to the
// config store (durable across restart); readers prefer the file and
// fall back to the config store.
type RateGate struct {
	path         string
	cfg          rateLimitConfig
	safetyBuffer int
	clock        clock.Clock
	log          *logging.Logger

	metrics *metrics.Registry

	mu    sync.Mutex
	state rateLimitState
	// unknownSpent tracks whether the one re-learning probe of the
	// current Unknown episode has already been spent.
	unknownSpent bool
}

// SetMetrics wires a Registry the gate reports its state and remaining
// quota to on every Allow/Observe call. Optional; nil is a no-op.
func (g *RateGate) SetMetrics(m *metrics.Registry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.metrics = m
}

func (g *RateGate) reportMetrics(decision gateDecision) {
	if g.metrics == nil {
		return
	}
	g.metrics.ThreatRateLimitState.Set(float64(decision))
	if g.state.Remaining != nil {
		g.metrics.ThreatRateRemaining.Set(float64(*g.state.Remaining))
	}
}

const rateLimitConfigKey = "threat_rate_limit_state"

// NewRateGate loads any persisted state (file first, config store as
// fallback) and starts fresh Unknown otherwise.
func NewRateGate(ctx context.Context, path string, cfg rateLimitConfig, safetyBuffer int, log *logging.Logger) *RateGate {
	g := &RateGate{path: path, cfg: cfg, safetyBuffer: safetyBuffer, clock: clock.Default, log: log}
	g.state = g.load(ctx)
	return g
}

func (g *RateGate) load(ctx context.Context) rateLimitState {
	if raw, err := config.SecureReadFile(g.path); err == nil {
		var s rateLimitState
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
	}
	if g.cfg != nil {
		if raw, ok, err := g.cfg.GetString(ctx, rateLimitConfigKey); err == nil && ok {
			var s rateLimitState
			if json.Unmarshal([]byte(raw), &s) == nil {
				return s
			}
		}
	}
	return rateLimitState{}
}

func (g *RateGate) persist(ctx context.Context) {
	raw, err := json.Marshal(g.state)
	if err != nil {
		return
	}
	if err := config.SecureWriteFile(g.path, raw); err != nil && g.log != nil {
		g.log.Warn("rate gate: write state file failed", "err", err)
	}
	if g.cfg != nil {
		if err := g.cfg.SetString(ctx, rateLimitConfigKey, string(raw)); err != nil && g.log != nil {
			g.log.Warn("rate gate: persist state to config store failed", "err", err)
		}
	}
}

// decide classifies the current state, clearing a stale reset/pause as
// it goes.
func (g *RateGate) decide(now time.Time) gateDecision {
	if !g.state.PausedUntil.IsZero() && now.Before(g.state.PausedUntil) {
		return gatePaused
	}
	if !g.state.PausedUntil.IsZero() && !now.Before(g.state.PausedUntil) {
		g.state.PausedUntil = time.Time{}
	}
	if !g.state.ResetAt.IsZero() && now.After(g.state.ResetAt) {
		g.state.Remaining = nil
		g.state.ResetAt = time.Time{}
		g.unknownSpent = false
	}
	if g.state.Remaining == nil {
		return gateUnknown
	}
	return gateKnown
}

// Allow reports whether a remote call may be attempted right now.
func (g *RateGate) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	decision := g.decide(now)
	g.reportMetrics(decision)
	switch decision {
	case gatePaused:
		return false
	case gateUnknown:
		if g.unknownSpent {
			return false
		}
		g.unknownSpent = true
		return true
	default: // gateKnown
		return *g.state.Remaining > g.safetyBuffer
	}
}

// Observe updates gate state from a response's rate-limit headers (or a
// 429 status) and persists the result.
func (g *RateGate) Observe(ctx context.Context, statusCode int, h http.Header) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()

	if statusCode == http.StatusTooManyRequests {
		g.state.PausedUntil = now.Add(pausedDuration(h, now))
		g.reportMetrics(gatePaused)
		g.persist(ctx)
		return
	}

	if v, ok := parseIntHeader(h, "Limit"); ok {
		g.state.Limit = &v
	}
	if v, ok := parseIntHeader(h, "Remaining"); ok {
		g.state.Remaining = &v
		g.unknownSpent = false
	}
	if v, ok := parseIntHeader(h, "Reset"); ok {
		g.state.ResetAt = now.Add(time.Duration(v) * time.Second)
	}
	g.reportMetrics(g.decide(now))
	g.persist(ctx)
}

// Stats is the read-only snapshot the HTTP API surfaces on the health
// endpoint and consults for the manual-lookup budget gate.
type Stats struct {
	Limit             *int
	Remaining         *int
	ResetAt           time.Time
	PausedUntil       time.Time
	Paused            bool
	QuotaResetPending bool
}

// Stats snapshots the gate's current state without mutating it.
func (g *RateGate) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	s := Stats{
		Limit: g.state.Limit, Remaining: g.state.Remaining,
		ResetAt: g.state.ResetAt, PausedUntil: g.state.PausedUntil,
	}
	s.Paused = !g.state.PausedUntil.IsZero() && now.Before(g.state.PausedUntil)
	s.QuotaResetPending = !g.state.ResetAt.IsZero() && now.After(g.state.ResetAt) &&
		g.state.Remaining != nil && *g.state.Remaining <= 0
	return s
}

// pausedDuration derives a pause window from Retry-After, falling back
// to Reset, falling back to one hour.
func pausedDuration(h http.Header, now time.Time) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if v, ok := parseIntHeader(h, "Reset"); ok && v > 0 {
		return time.Duration(v) * time.Second
	}
	return time.Hour
}

func parseIntHeader(h http.Header, key string) (int, bool) {
	v := h.Get(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
