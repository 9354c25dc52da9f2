// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controller

import (
	"context"
	"sync"
	"time"

	"github.com/phersys/loginsight/internal/config"
	"github.com/phersys/loginsight/internal/logging"
	"github.com/phersys/loginsight/internal/store"
)

const defaultPollInterval = 300 * time.Second

// pollBackingStore is the narrow slice of internal/store.Store the
// poller needs.
type pollBackingStore interface {
	BulkUpsertClients(ctx context.Context, entries []store.ClientEntry) error
	BulkUpsertDevices(ctx context.Context, entries []store.DeviceEntry) error
	LoadNameMaps(ctx context.Context) (store.NameMaps, error)
}

type rawClient struct {
	MAC      string `json:"mac"`
	IP       string `json:"ip"`
	Hostname string `json:"hostname"`
	Name     string `json:"name"`
	OUI      string `json:"oui"`
	Essid    string `json:"essid"`
	VLAN     *int   `json:"vlan"`
	IsWired  bool   `json:"is_wired"`
	LastSeen int64  `json:"last_seen"`
}

type rawDevice struct {
	MAC        string `json:"mac"`
	IP         string `json:"ip"`
	Name       string `json:"name"`
	Model      string `json:"model"`
	Version    string `json:"version"`
	Type       string `json:"type"`
	Uptime     *int64 `json:"uptime"`
}

type dataResponse[T any] struct {
	Data []T `json:"data"`
}

// Poller is the background daemon that keeps client/device caches, the
// ip/mac name maps, and the WAN/gateway config keys current.
type Poller struct {
	client   *Client
	db       pollBackingStore
	cfg      *config.Store
	interval time.Duration
	log      *logging.Logger

	mu         sync.RWMutex
	nameMaps   store.NameMaps
	lastPollAt time.Time
	lastErr    string
}

// Status is the poller's last-tick outcome, for the /unifi/status route.
type Status struct {
	LastPollAt time.Time
	LastError  string
	Interval   time.Duration
}

// Status returns the poller's most recent tick outcome.
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Status{LastPollAt: p.lastPollAt, LastError: p.lastErr, Interval: p.interval}
}

// NewPoller wires a Poller; a zero/negative interval falls back to the
// default 300s period. cfg may be nil, in which case the WAN/gateway
// config write-back is skipped.
func NewPoller(client *Client, db pollBackingStore, cfg *config.Store, interval time.Duration, log *logging.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{client: client, db: db, cfg: cfg, interval: interval, log: log}
}

// NameMaps returns the most recently built ip/mac → name projection.
func (p *Poller) NameMaps() store.NameMaps {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.nameMaps
}

// Prime loads the previous name maps from the device-cache tables before
// the first live poll, so a cold-started process doesn't serve unnamed
// clients until the first tick completes.
func (p *Poller) Prime(ctx context.Context) error {
	maps, err := p.db.LoadNameMaps(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.nameMaps = maps
	p.mu.Unlock()
	return nil
}

// Run blocks, ticking every interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := p.tick(ctx)
			p.mu.Lock()
			p.lastPollAt = time.Now().UTC()
			if err != nil {
				p.lastErr = err.Error()
			} else {
				p.lastErr = ""
			}
			p.mu.Unlock()
			if err != nil && p.log != nil {
				p.log.Warn("controller poll failed", "err", err)
			}
		}
	}
}

func (p *Poller) tick(ctx context.Context) error {
	active, err := p.fetchClients(ctx, "/stat/sta")
	if err != nil {
		return err
	}
	historical, err := p.fetchClients(ctx, "/rest/user")
	if err != nil {
		return err
	}
	merged := mergeClientsByMAC(active, historical)

	devices, err := p.fetchDevices(ctx)
	if err != nil {
		return err
	}

	if err := p.db.BulkUpsertClients(ctx, merged); err != nil {
		return err
	}
	if err := p.db.BulkUpsertDevices(ctx, devices); err != nil {
		return err
	}

	maps, err := p.db.LoadNameMaps(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.nameMaps = maps
	p.mu.Unlock()

	if p.cfg != nil {
		if err := p.RefreshWANConfig(ctx, p.cfg); err != nil && p.log != nil {
			p.log.Warn("wan config refresh failed", "err", err)
		}
	}

	if p.log != nil {
		p.log.Info("controller poll complete", "clients", len(merged), "devices", len(devices))
	}
	return nil
}

func (p *Poller) fetchClients(ctx context.Context, path string) ([]store.ClientEntry, error) {
	var resp dataResponse[rawClient]
	if err := p.client.doJSON(ctx, "GET", p.client.classicURL(path), nil, &resp); err != nil {
		return nil, err
	}
	entries := make([]store.ClientEntry, 0, len(resp.Data))
	for _, c := range resp.Data {
		isWired := c.IsWired
		entries = append(entries, store.ClientEntry{
			MAC: c.MAC, IP: c.IP, Hostname: c.Hostname, DeviceName: c.Name,
			OUI: c.OUI, SSID: c.Essid, VLAN: c.VLAN, IsWired: &isWired,
			LastSeen: time.Unix(c.LastSeen, 0).UTC(),
		})
	}
	return entries, nil
}

func (p *Poller) fetchDevices(ctx context.Context) ([]store.DeviceEntry, error) {
	var resp dataResponse[rawDevice]
	if err := p.client.doJSON(ctx, "GET", p.client.classicURL("/stat/device"), nil, &resp); err != nil {
		return nil, err
	}
	entries := make([]store.DeviceEntry, 0, len(resp.Data))
	for _, d := range resp.Data {
		entries = append(entries, store.DeviceEntry{
			MAC: d.MAC, IP: d.IP, DeviceName: d.Name, Model: d.Model,
			Firmware: d.Version, DeviceType: d.Type, UptimeSeconds: d.Uptime,
			LastSeen: time.Now().UTC(),
		})
	}
	return entries, nil
}

// mergeClientsByMAC merges active and historical client lists, active
// winning any field conflict since it reflects the live session.
func mergeClientsByMAC(active, historical []store.ClientEntry) []store.ClientEntry {
	byMAC := make(map[string]store.ClientEntry, len(active)+len(historical))
	for _, c := range historical {
		byMAC[c.MAC] = c
	}
	for _, c := range active {
		byMAC[c.MAC] = c
	}
	out := make([]store.ClientEntry, 0, len(byMAC))
	for _, c := range byMAC {
		out = append(out, c)
	}
	return out
}
