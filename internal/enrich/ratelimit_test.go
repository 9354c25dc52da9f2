// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package enrich

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phersys/loginsight/internal/clock"
)

type fakeRateLimitConfig struct {
	values map[string]string
}

func (f *fakeRateLimitConfig) GetString(ctx context.Context, key string) (string, bool, error) {
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeRateLimitConfig) SetString(ctx context.Context, key string, value string) error {
	if f.values == nil {
		f.values = map[string]string{}
	}
	f.values[key] = value
	return nil
}

func newTestGate(t *testing.T) *RateGate {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ratelimit.json")
	g := NewRateGate(context.Background(), path, &fakeRateLimitConfig{}, 0, nil)
	return g
}

func TestRateGateUnknownAllowsExactlyOneProbe(t *testing.T) {
	g := newTestGate(t)
	if !g.Allow() {
		t.Fatal("expected first call to be allowed in Unknown state")
	}
	if g.Allow() {
		t.Fatal("expected second call to be refused until the probe's response is observed")
	}
}

func TestRateGateKnownAllowsAboveSafetyBuffer(t *testing.T) {
	g := newTestGate(t)
	h := http.Header{}
	h.Set("Limit", "1000")
	h.Set("Remaining", "5")
	h.Set("Reset", "3600")
	g.Observe(context.Background(), 200, h)

	if !g.Allow() {
		t.Fatal("expected Allow when remaining > safety buffer")
	}
}

func TestRateGateKnownDeniesAtOrBelowSafetyBuffer(t *testing.T) {
	g := newTestGate(t)
	h := http.Header{}
	h.Set("Remaining", "0")
	g.Observe(context.Background(), 200, h)

	if g.Allow() {
		t.Fatal("expected Allow to refuse when remaining is at the safety buffer")
	}
}

func TestRateGate429EntersPausedUsingRetryAfter(t *testing.T) {
	frozen := clock.Frozen{T: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	g := newTestGate(t)
	g.clock = frozen

	h := http.Header{}
	h.Set("Retry-After", "120")
	g.Observe(context.Background(), 429, h)

	if g.Allow() {
		t.Fatal("expected Paused state to refuse")
	}
	if !g.state.PausedUntil.Equal(frozen.T.Add(120 * time.Second)) {
		t.Errorf("PausedUntil = %v, want %v", g.state.PausedUntil, frozen.T.Add(120*time.Second))
	}
}

func TestRateGate429FallsBackToOneHourWithNoHeaders(t *testing.T) {
	frozen := clock.Frozen{T: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	g := newTestGate(t)
	g.clock = frozen
	g.Observe(context.Background(), 429, http.Header{})

	if !g.state.PausedUntil.Equal(frozen.T.Add(time.Hour)) {
		t.Errorf("PausedUntil = %v, want one hour out", g.state.PausedUntil)
	}
}

func TestRateGatePastResetClearsToUnknown(t *testing.T) {
	frozen := &mutableClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	g := newTestGate(t)
	g.clock = frozen

	h := http.Header{}
	h.Set("Remaining", "0")
	h.Set("Reset", "60")
	g.Observe(context.Background(), 200, h)
	if g.Allow() {
		t.Fatal("expected refusal immediately after Reset observed with remaining=0")
	}

	frozen.t = frozen.t.Add(2 * time.Minute)
	if !g.Allow() {
		t.Fatal("expected a single re-learning probe once reset_at is in the past")
	}
}

func TestRateGatePersistsToFileAndConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratelimit.json")
	cfg := &fakeRateLimitConfig{}
	g := NewRateGate(context.Background(), path, cfg, 0, nil)

	h := http.Header{}
	h.Set("Remaining", "42")
	g.Observe(context.Background(), 200, h)

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected state file to exist: %v", err)
	}
	if _, ok := cfg.values[rateLimitConfigKey]; !ok {
		t.Error("expected state to be persisted to the config store too")
	}
}

type mutableClock struct {
	t time.Time
}

func (m *mutableClock) Now() time.Time { return m.t }

func TestRateGateStatsReflectsPausedAndQuotaResetPending(t *testing.T) {
	frozen := &mutableClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	g := newTestGate(t)
	g.clock = frozen

	h := http.Header{}
	h.Set("Retry-After", "120")
	g.Observe(context.Background(), http.StatusTooManyRequests, h)

	s := g.Stats()
	if !s.Paused {
		t.Error("expected Stats().Paused true immediately after a 429")
	}
	if s.QuotaResetPending {
		t.Error("expected QuotaResetPending false while still paused")
	}

	frozen.t = frozen.t.Add(3 * time.Minute)
	s = g.Stats()
	if s.Paused {
		t.Error("expected Stats().Paused false once PausedUntil has passed")
	}
}

func TestRateGateStatsQuotaResetPendingWhenResetPassedWithZeroRemaining(t *testing.T) {
	frozen := &mutableClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	g := newTestGate(t)
	g.clock = frozen

	h := http.Header{}
	h.Set("Remaining", "0")
	h.Set("Reset", "60")
	g.Observe(context.Background(), 200, h)

	frozen.t = frozen.t.Add(2 * time.Minute)
	s := g.Stats()
	if !s.QuotaResetPending {
		t.Error("expected QuotaResetPending true once reset_at is in the past with remaining=0")
	}
}

func TestRateGateStatsDoesNotMutateState(t *testing.T) {
	g := newTestGate(t)
	h := http.Header{}
	h.Set("Remaining", "42")
	g.Observe(context.Background(), 200, h)

	_ = g.Stats()
	if !g.Allow() {
		t.Error("expected Allow to still see remaining=42 after a Stats() call")
	}
}
