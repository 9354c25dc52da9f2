// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/phersys/loginsight/internal/config"
	"github.com/phersys/loginsight/internal/enrich"
)

func (s *Server) registerHealthRoutes(r *mux.Router) {
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

type retentionInfo struct {
	Days   int    `json:"days"`
	Source string `json:"source"` // ui, env, default
}

type rateLimitInfo struct {
	Limit             *int       `json:"limit,omitempty"`
	Remaining         *int       `json:"remaining,omitempty"`
	ResetAt           *time.Time `json:"reset_at,omitempty"`
	PausedUntil       *time.Time `json:"paused_until,omitempty"`
	Paused            bool       `json:"paused"`
	QuotaResetPending bool       `json:"quota_reset_pending"`
}

type healthResponse struct {
	Version            string        `json:"version"`
	TotalLogs          int64         `json:"total_logs"`
	OldestLog          *time.Time    `json:"oldest_log,omitempty"`
	NewestLog          *time.Time    `json:"newest_log,omitempty"`
	Retention          retentionInfo `json:"retention"`
	DNSRetention       retentionInfo `json:"dns_retention"`
	ThreatRateLimit    rateLimitInfo `json:"threat_rate_limit"`
	GeoCityDBModTime   *time.Time    `json:"geo_city_db_mtime,omitempty"`
	GeoASNDBModTime    *time.Time    `json:"geo_asn_db_mtime,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	horizon, err := s.db.Horizon(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := healthResponse{
		Version:      s.version,
		TotalLogs:    horizon.Total,
		Retention:    s.resolveRetention(ctx, "retention_days", s.retentionEnv),
		DNSRetention: s.resolveRetention(ctx, "dns_retention_days", s.dnsRetentionEnv),
	}
	if !horizon.Oldest.IsZero() {
		resp.OldestLog = &horizon.Oldest
	}
	if !horizon.Newest.IsZero() {
		resp.NewestLog = &horizon.Newest
	}

	if s.gate != nil {
		resp.ThreatRateLimit = rateLimitInfoFrom(s.gate.Stats())
	}

	if s.geoCityPath != "" {
		if mt, ok := fileModTime(s.geoCityPath); ok {
			resp.GeoCityDBModTime = &mt
		}
	}
	if s.geoASNPath != "" {
		if mt, ok := fileModTime(s.geoASNPath); ok {
			resp.GeoASNDBModTime = &mt
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// resolveRetention prefers a UI-set override in the config store, then
// the process's env-derived default, then falls back to source
// "default" when neither is known.
func (s *Server) resolveRetention(ctx context.Context, key string, fallback retentionDefault) retentionInfo {
	if days, ok, err := config.GetJSON[int](ctx, s.cfg, key); err == nil && ok && days > 0 {
		return retentionInfo{Days: days, Source: "ui"}
	}
	if fallback.days > 0 {
		source := fallback.source
		if source == "" {
			source = "default"
		}
		return retentionInfo{Days: fallback.days, Source: source}
	}
	return retentionInfo{Days: 0, Source: "default"}
}

func rateLimitInfoFrom(stats enrich.Stats) rateLimitInfo {
	info := rateLimitInfo{
		Limit:             stats.Limit,
		Remaining:         stats.Remaining,
		Paused:            stats.Paused,
		QuotaResetPending: stats.QuotaResetPending,
	}
	if !stats.ResetAt.IsZero() {
		resetAt := stats.ResetAt
		info.ResetAt = &resetAt
	}
	if !stats.PausedUntil.IsZero() {
		pausedUntil := stats.PausedUntil
		info.PausedUntil = &pausedUntil
	}
	return info
}

func fileModTime(path string) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}
