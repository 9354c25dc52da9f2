// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"

	"github.com/phersys/loginsight/internal/config"
)

// exportableKeys is the declared allowlist of config keys that round-trip
// through export/import; every other key (including credentials unless
// explicitly requested) is excluded from the bundle.
var exportableKeys = []string{
	"wan_interfaces", "interface_labels", "setup_complete", "config_version",
	"wizard_path", "unifi_enabled", "unifi_host", "unifi_site",
	"unifi_verify_ssl", "unifi_poll_interval", "unifi_features",
	"unifi_controller_name", "retention_days", "dns_retention_days",
}

const apiKeyConfigKey = "unifi_api_key"

func (s *Server) registerConfigRoutes(r *mux.Router) {
	r.HandleFunc("/config", s.handleGetConfig).Methods(http.MethodGet)
	r.HandleFunc("/config/export", s.handleConfigExport).Methods(http.MethodGet)
	r.HandleFunc("/config/import", s.handleConfigImport).Methods(http.MethodPost)
	r.HandleFunc("/config/retention", s.handleGetRetention).Methods(http.MethodGet)
	r.HandleFunc("/config/retention", s.handleSetRetention).Methods(http.MethodPost)
	r.HandleFunc("/config/retention/cleanup", s.handleRetentionCleanup).Methods(http.MethodPost)
	r.HandleFunc("/config/vpn-networks", s.handleSetVPNNetworks).Methods(http.MethodPost)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := make(map[string]any, len(exportableKeys))
	for _, key := range exportableKeys {
		if v, ok, err := config.GetJSON[any](ctx, s.cfg, key); err == nil && ok {
			out[key] = v
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"config": out})
}

func (s *Server) handleConfigExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	includeAPIKey := parseBool(r.URL.Query().Get("include_api_key"))

	bundle := make(map[string]any, len(exportableKeys)+1)
	for _, key := range exportableKeys {
		if v, ok, err := config.GetJSON[any](ctx, s.cfg, key); err == nil && ok {
			bundle[key] = v
		}
	}

	includesAPIKey := false
	if includeAPIKey {
		if plain, ok, err := s.cfg.GetCredential(ctx, apiKeyConfigKey); err == nil && ok && plain != "" {
			bundle[apiKeyConfigKey] = plain
			includesAPIKey = true
		}
	}

	encoded, err := yaml.Marshal(bundle)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"version":          s.version,
		"exported_at":      s.now().UTC().Format(time.RFC3339),
		"includes_api_key": includesAPIKey,
		"config_yaml":      string(encoded),
	})
}

type configImportRequest struct {
	ConfigYAML string `json:"config_yaml"`
}

func (s *Server) handleConfigImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "could not read request body")
		return
	}

	var req configImportRequest
	if err := json.Unmarshal(body, &req); err != nil || req.ConfigYAML == "" {
		writeErrorStatus(w, http.StatusBadRequest, "invalid config format, expected {config_yaml: \"...\"}")
		return
	}

	var bundle map[string]any
	if err := yaml.Unmarshal([]byte(req.ConfigYAML), &bundle); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "could not parse config_yaml")
		return
	}

	var imported []string
	var failed []string
	unifiChanged := false
	for _, key := range exportableKeys {
		v, ok := bundle[key]
		if !ok {
			continue
		}
		if err := config.SetJSON(ctx, s.cfg, key, v); err != nil {
			failed = append(failed, key)
			continue
		}
		imported = append(imported, key)
		if len(key) >= 6 && key[:6] == "unifi_" {
			unifiChanged = true
		}
	}

	if plain, ok := bundle[apiKeyConfigKey]; ok {
		if str, ok := plain.(string); ok && str != "" {
			if err := s.cfg.SetCredential(ctx, apiKeyConfigKey, str); err != nil {
				failed = append(failed, apiKeyConfigKey)
			} else {
				imported = append(imported, apiKeyConfigKey)
				unifiChanged = true
			}
		}
	}

	s.cfg.Invalidate()
	if s.receiver != nil {
		_ = s.receiver.ReloadConfig(ctx)
	}
	_ = unifiChanged // the running controller client is not rebuilt; it keeps the settings it started with

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       len(failed) == 0,
		"imported_keys": imported,
		"failed_keys":   failed,
	})
}

func (s *Server) handleGetRetention(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(w, http.StatusOK, map[string]any{
		"retention":     s.resolveRetention(ctx, "retention_days", s.retentionEnv),
		"dns_retention": s.resolveRetention(ctx, "dns_retention_days", s.dnsRetentionEnv),
	})
}

type setRetentionRequest struct {
	RetentionDays    *int `json:"retention_days"`
	DNSRetentionDays *int `json:"dns_retention_days"`
}

func (s *Server) handleSetRetention(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req setRetentionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RetentionDays != nil {
		if *req.RetentionDays < 1 {
			writeErrorStatus(w, http.StatusBadRequest, "retention_days must be positive")
			return
		}
		if err := config.SetJSON(ctx, s.cfg, "retention_days", *req.RetentionDays); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.DNSRetentionDays != nil {
		if *req.DNSRetentionDays < 1 {
			writeErrorStatus(w, http.StatusBadRequest, "dns_retention_days must be positive")
			return
		}
		if err := config.SetJSON(ctx, s.cfg, "dns_retention_days", *req.DNSRetentionDays); err != nil {
			writeError(w, err)
			return
		}
	}
	s.handleGetRetention(w, r)
}

func (s *Server) handleRetentionCleanup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	general := s.resolveRetention(ctx, "retention_days", s.retentionEnv)
	dns := s.resolveRetention(ctx, "dns_retention_days", s.dnsRetentionEnv)

	deleted, err := s.db.RunRetention(ctx, general.Days, dns.Days)
	if err != nil {
		writeError(w, err)
		return
	}
	if s.audit != nil {
		s.audit.Record(ctx, "retention.cleanup", map[string]any{"rows_deleted": deleted})
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows_deleted": deleted})
}

type setVPNNetworksRequest struct {
	Networks map[string]vpnNetworkCfg `json:"networks"`
}

func (s *Server) handleSetVPNNetworks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req setVPNNetworksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := config.SetJSON(ctx, s.cfg, "vpn_networks", req.Networks); err != nil {
		writeError(w, err)
		return
	}
	if s.audit != nil {
		s.audit.Record(ctx, "config.vpn_networks", map[string]any{"count": len(req.Networks)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
