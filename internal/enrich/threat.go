// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/phersys/loginsight/internal/clock"
	"github.com/phersys/loginsight/internal/errors"
	"github.com/phersys/loginsight/internal/logging"
	"github.com/phersys/loginsight/internal/metrics"
	"github.com/phersys/loginsight/internal/netaddr"
	"github.com/phersys/loginsight/internal/store"
)

const (
	threatMemoryCacheTTL     = 24 * time.Hour
	threatPersistentFreshness = 4 * 24 * time.Hour
)

// threatStore is the narrow slice of internal/store.Store the threat
// client needs, so enrich can be unit tested without a database.
type threatStore interface {
	GetThreat(ctx context.Context, ip string, maxAge time.Duration) (store.ThreatEntry, bool, error)
	UpsertThreat(ctx context.Context, e store.ThreatEntry, exclusion netaddr.ExclusionSet) error
}

// ThreatClient implements the lookup(ip) contract: in-memory TTL cache,
// then the persistent cache, then the remote API if the rate gate
// permits. The exclusion set is swapped in by the orchestrator on every
// enrichment pass so a WAN/gateway IP can never reach the cache.
type ThreatClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	gate    *RateGate
	db      threatStore
	clock   clock.Clock
	log     *logging.Logger
	metrics *metrics.Registry

	mu        sync.Mutex
	memory    map[string]memEntry
	exclusion netaddr.ExclusionSet
}

type memEntry struct {
	entry    store.ThreatEntry
	cachedAt time.Time
}

// NewThreatClient wires the client against its backing store and gate.
func NewThreatClient(apiKey, baseURL string, httpClient *http.Client, gate *RateGate, db threatStore, log *logging.Logger) *ThreatClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &ThreatClient{
		apiKey: apiKey, baseURL: baseURL, http: httpClient, gate: gate, db: db,
		clock: clock.Default, log: log, memory: make(map[string]memEntry),
	}
}

// SetExclusion swaps the current WAN/gateway exclusion set.
func (t *ThreatClient) SetExclusion(ex netaddr.ExclusionSet) {
	t.mu.Lock()
	t.exclusion = ex
	t.mu.Unlock()
}

// SetMetrics wires a Registry the client reports cache hits and misses
// to. Optional; nil is a no-op.
func (t *ThreatClient) SetMetrics(m *metrics.Registry) {
	t.mu.Lock()
	t.metrics = m
	t.mu.Unlock()
}

func (t *ThreatClient) countCache(hit bool, source string) {
	if t.metrics == nil {
		return
	}
	if hit {
		t.metrics.EnrichCacheHits.WithLabelValues(source).Inc()
	} else {
		t.metrics.EnrichCacheMisses.WithLabelValues(source).Inc()
	}
}

// Lookup implements the three-tier consultation order. A zero-value
// result means "no information", never an error path a caller must
// special-case.
func (t *ThreatClient) Lookup(ctx context.Context, ip string) (store.ThreatEntry, bool) {
	norm, ok := netaddr.Normalize(ip)
	if !ok {
		return store.ThreatEntry{}, false
	}

	t.mu.Lock()
	excluded := t.exclusion.Contains(norm)
	t.mu.Unlock()
	if excluded {
		return store.ThreatEntry{}, false
	}

	now := t.clock.Now()

	t.mu.Lock()
	if m, ok := t.memory[norm]; ok && now.Sub(m.cachedAt) < threatMemoryCacheTTL {
		t.mu.Unlock()
		t.countCache(true, "memory")
		return m.entry, true
	}
	t.mu.Unlock()
	t.countCache(false, "memory")

	if t.db != nil {
		if e, fresh, err := t.db.GetThreat(ctx, norm, threatPersistentFreshness); err == nil && fresh {
			t.countCache(true, "persistent")
			t.remember(norm, e, now)
			return e, true
		}
		t.countCache(false, "persistent")
	}

	if t.gate == nil || !t.gate.Allow() {
		return store.ThreatEntry{}, false
	}

	e, err := t.fetch(ctx, norm)
	if err != nil {
		if t.log != nil {
			t.log.Warn("threat api lookup failed", "ip", norm, "err", err)
		}
		t.countCache(false, "remote")
		return store.ThreatEntry{}, false
	}
	t.countCache(true, "remote")

	t.remember(norm, e, now)
	if t.db != nil {
		t.mu.Lock()
		ex := t.exclusion
		t.mu.Unlock()
		if err := t.db.UpsertThreat(ctx, e, ex); err != nil && t.log != nil {
			t.log.Warn("threat cache upsert failed", "ip", norm, "err", err)
		}
	}
	return e, true
}

// Forget evicts ip from the in-memory tier so the next Lookup consults
// the persistent cache (and, if that's also stale, the remote API)
// instead of returning an entry known to be outdated.
func (t *ThreatClient) Forget(ip string) {
	norm, ok := netaddr.Normalize(ip)
	if !ok {
		return
	}
	t.mu.Lock()
	delete(t.memory, norm)
	t.mu.Unlock()
}

func (t *ThreatClient) remember(ip string, e store.ThreatEntry, now time.Time) {
	t.mu.Lock()
	t.memory[ip] = memEntry{entry: e, cachedAt: now}
	t.mu.Unlock()
}

// abuseReport mirrors one element of the provider's "reports" array.
type abuseReport struct {
	Categories []int `json:"categories"`
}

type abuseCheckResponse struct {
	Data struct {
		IPAddress            string        `json:"ipAddress"`
		AbuseConfidenceScore int           `json:"abuseConfidenceScore"`
		CountryCode          string        `json:"countryCode"`
		UsageType            string        `json:"usageType"`
		Domain               string        `json:"domain"`
		Hostnames            []string      `json:"hostnames"`
		IsWhitelisted        bool          `json:"isWhitelisted"`
		TotalReports         int           `json:"totalReports"`
		LastReportedAt       string        `json:"lastReportedAt"`
		IsTor                bool          `json:"isTor"`
		Reports              []abuseReport `json:"reports"`
	} `json:"data"`
}

var categoryNames = map[int]string{
	3: "fraud_orders", 4: "ddos_attack", 9: "open_proxy", 10: "web_spam",
	11: "email_spam", 14: "port_scan", 15: "hacking", 18: "brute_force",
	19: "bad_web_bot", 20: "exploited_host", 21: "web_app_attack", 22: "ssh", 23: "iot_targeted",
}

func (t *ThreatClient) fetch(ctx context.Context, ip string) (store.ThreatEntry, error) {
	url := fmt.Sprintf("%s/check?ipAddress=%s&maxAgeInDays=90&verbose", t.baseURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return store.ThreatEntry{}, errors.Wrap(err, errors.KindInternal, "enrich: build threat request")
	}
	req.Header.Set("Key", t.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return store.ThreatEntry{}, errors.Wrap(err, errors.KindBadGateway, "enrich: threat api request")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	t.gate.Observe(ctx, resp.StatusCode, resp.Header)

	if resp.StatusCode == http.StatusTooManyRequests {
		return store.ThreatEntry{}, errors.New(errors.KindRateLimited, "enrich: threat api rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return store.ThreatEntry{}, errors.Errorf(errors.KindBadGateway, "enrich: threat api status %d", resp.StatusCode)
	}

	var parsed abuseCheckResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return store.ThreatEntry{}, errors.Wrap(err, errors.KindBadGateway, "enrich: decode threat response")
	}

	return normalizeAbuseResponse(ip, parsed), nil
}

// normalizeAbuseResponse aggregates every report's categories into a
// sorted deduplicated set. Hostnames are kept as the provider's list;
// they are not joined into one string.
func normalizeAbuseResponse(ip string, parsed abuseCheckResponse) store.ThreatEntry {
	d := parsed.Data
	score := d.AbuseConfidenceScore
	total := d.TotalReports
	whitelisted := d.IsWhitelisted
	isTor := d.IsTor

	seen := map[string]struct{}{}
	for _, r := range d.Reports {
		for _, c := range r.Categories {
			name, ok := categoryNames[c]
			if !ok {
				name = strconv.Itoa(c)
			}
			seen[name] = struct{}{}
		}
	}
	categories := make([]string, 0, len(seen))
	for name := range seen {
		categories = append(categories, name)
	}
	sort.Strings(categories)

	e := store.ThreatEntry{
		IP:            ip,
		Score:         &score,
		Categories:    categories,
		UsageType:     d.UsageType,
		Hostnames:     d.Hostnames,
		TotalReports:  &total,
		IsWhitelisted: &whitelisted,
		IsTor:         &isTor,
	}
	if d.LastReportedAt != "" {
		if ts, err := time.Parse(time.RFC3339, d.LastReportedAt); err == nil {
			e.LastReported = &ts
		}
	}
	if len(d.Hostnames) > 0 {
		e.UsageType = strings.TrimSpace(e.UsageType)
	}
	return e
}
