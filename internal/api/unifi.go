// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/phersys/loginsight/internal/config"
	"github.com/phersys/loginsight/internal/controller"
)

func (s *Server) registerUnifiRoutes(r *mux.Router) {
	r.HandleFunc("/settings/unifi", s.handleGetUnifiSettings).Methods(http.MethodGet)
	r.HandleFunc("/settings/unifi", s.handleUpdateUnifiSettings).Methods(http.MethodPut)
	r.HandleFunc("/settings/unifi/test", s.handleTestUnifiConnection).Methods(http.MethodPost)
	r.HandleFunc("/settings/unifi/dismiss-upgrade", s.handleDismissUpgrade).Methods(http.MethodPost)
	r.HandleFunc("/settings/unifi/dismiss-vpn-toast", s.handleDismissVPNToast).Methods(http.MethodPost)

	r.HandleFunc("/firewall/policies", s.handleListFirewallPolicies).Methods(http.MethodGet)
	r.HandleFunc("/firewall/policies/{id}", s.handlePatchFirewallPolicy).Methods(http.MethodPatch)
	r.HandleFunc("/firewall/policies/bulk-logging", s.handleBulkPatchLogging).Methods(http.MethodPost)

	r.HandleFunc("/unifi/clients", s.handleListUnifiClients).Methods(http.MethodGet)
	r.HandleFunc("/unifi/devices", s.handleListUnifiDevices).Methods(http.MethodGet)
	r.HandleFunc("/unifi/status", s.handleUnifiStatus).Methods(http.MethodGet)
	r.HandleFunc("/unifi/backfill-device-names", s.handleBackfillDeviceNames).Methods(http.MethodPost)
}

// controllerTypeModern/Legacy are the config-level spellings of the two
// auth modes, kept distinct from controller.AuthMode's internal spelling
// so the wire format survives a controller package refactor untouched.
const (
	controllerTypeModern = "unifi_os"
	controllerTypeLegacy = "self_hosted"
)

func authModeFromControllerType(t string) controller.AuthMode {
	if t == controllerTypeLegacy {
		return controller.AuthLegacy
	}
	return controller.AuthModern
}

type unifiSettings struct {
	Enabled         bool           `json:"enabled"`
	Host            string         `json:"host"`
	ControllerType  string         `json:"controller_type"`
	Site            string         `json:"site"`
	VerifySSL       bool           `json:"verify_ssl"`
	PollInterval    int            `json:"poll_interval"`
	Features        map[string]bool `json:"features"`
	ControllerName  string         `json:"controller_name"`
	HasAPIKey       bool           `json:"has_api_key"`
	HasCredentials  bool           `json:"has_credentials"`
	UpgradeDismissed bool          `json:"upgrade_v2_dismissed"`
	VPNToastDismissed bool         `json:"vpn_toast_dismissed"`
}

func (s *Server) loadUnifiSettings(ctx context.Context) unifiSettings {
	var st unifiSettings
	st.Enabled, _ = s.cfg.GetBool(ctx, "unifi_enabled")
	st.Host, _, _ = s.cfg.GetString(ctx, "unifi_host")
	st.ControllerType, _, _ = s.cfg.GetString(ctx, "unifi_controller_type")
	if st.ControllerType == "" {
		st.ControllerType = controllerTypeModern
	}
	st.Site, _, _ = s.cfg.GetString(ctx, "unifi_site")
	st.VerifySSL, _ = s.cfg.GetBool(ctx, "unifi_verify_ssl")
	if days, ok, err := config.GetJSON[int](ctx, s.cfg, "unifi_poll_interval"); err == nil && ok {
		st.PollInterval = days
	}
	if features, ok, err := config.GetJSON[map[string]bool](ctx, s.cfg, "unifi_features"); err == nil && ok {
		st.Features = features
	}
	st.ControllerName, _, _ = s.cfg.GetString(ctx, "unifi_controller_name")
	if _, ok, _ := s.cfg.GetCredential(ctx, "unifi_api_key"); ok {
		st.HasAPIKey = true
	}
	if _, ok, _ := s.cfg.GetCredential(ctx, "unifi_username"); ok {
		st.HasCredentials = true
	}
	st.UpgradeDismissed, _ = s.cfg.GetBool(ctx, "upgrade_v2_dismissed")
	st.VPNToastDismissed, _ = s.cfg.GetBool(ctx, "vpn_toast_dismissed")
	return st
}

func (s *Server) featureEnabled(ctx context.Context, feature string) bool {
	features, ok, err := config.GetJSON[map[string]bool](ctx, s.cfg, "unifi_features")
	if err != nil || !ok {
		return true
	}
	enabled, present := features[feature]
	return !present || enabled
}

func (s *Server) handleGetUnifiSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.loadUnifiSettings(r.Context()))
}

type unifiSettingsRequest struct {
	Enabled        *bool            `json:"enabled"`
	Host           *string          `json:"host"`
	ControllerType *string          `json:"controller_type"`
	APIKey         *string          `json:"api_key"`
	Username       *string          `json:"username"`
	Password       *string          `json:"password"`
	Site           *string          `json:"site"`
	VerifySSL      *bool            `json:"verify_ssl"`
	PollInterval   *int             `json:"poll_interval"`
	Features       map[string]bool  `json:"features"`
}

func (s *Server) handleUpdateUnifiSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req unifiSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	setters := []func() error{}
	if req.Enabled != nil {
		v := *req.Enabled
		setters = append(setters, func() error { return s.cfg.SetBool(ctx, "unifi_enabled", v) })
	}
	if req.Host != nil {
		v := *req.Host
		setters = append(setters, func() error { return s.cfg.SetString(ctx, "unifi_host", v) })
	}
	if req.ControllerType != nil {
		v := *req.ControllerType
		setters = append(setters, func() error { return s.cfg.SetString(ctx, "unifi_controller_type", v) })
	}
	if req.APIKey != nil {
		v := *req.APIKey
		setters = append(setters, func() error { return s.cfg.SetCredential(ctx, "unifi_api_key", v) })
	}
	if req.Username != nil {
		v := *req.Username
		setters = append(setters, func() error { return s.cfg.SetCredential(ctx, "unifi_username", v) })
	}
	if req.Password != nil {
		v := *req.Password
		setters = append(setters, func() error { return s.cfg.SetCredential(ctx, "unifi_password", v) })
	}
	if req.Site != nil {
		v := *req.Site
		setters = append(setters, func() error { return s.cfg.SetString(ctx, "unifi_site", v) })
	}
	if req.VerifySSL != nil {
		v := *req.VerifySSL
		setters = append(setters, func() error { return s.cfg.SetBool(ctx, "unifi_verify_ssl", v) })
	}
	if req.PollInterval != nil {
		v := *req.PollInterval
		setters = append(setters, func() error { return config.SetJSON(ctx, s.cfg, "unifi_poll_interval", v) })
	}
	if req.Features != nil {
		v := req.Features
		setters = append(setters, func() error { return config.SetJSON(ctx, s.cfg, "unifi_features", v) })
	}

	for _, set := range setters {
		if err := set(); err != nil {
			writeError(w, err)
			return
		}
	}

	s.cfg.Invalidate()
	if s.receiver != nil {
		_ = s.receiver.ReloadConfig(ctx)
	}
	if s.audit != nil {
		s.audit.Record(ctx, "settings.unifi.update", map[string]any{"fields": len(setters)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type testUnifiConnectionRequest struct {
	Host           string `json:"host"`
	Site           string `json:"site"`
	VerifySSL      bool   `json:"verify_ssl"`
	ControllerType string `json:"controller_type"`
	APIKey         string `json:"api_key"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	UseSavedKey    bool   `json:"use_saved_key"`
}

// handleTestUnifiConnection builds a throwaway session via
// controller.TestConnection and only persists the settings it was given
// once that probe reports success.
func (s *Server) handleTestUnifiConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req testUnifiConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Site == "" {
		req.Site = "default"
	}
	if req.ControllerType == "" {
		req.ControllerType = controllerTypeModern
	}

	cfg := controller.Config{
		Host:      req.Host,
		Mode:      authModeFromControllerType(req.ControllerType),
		Site:      req.Site,
		VerifySSL: req.VerifySSL,
		Username:  req.Username,
		Password:  req.Password,
	}

	if cfg.Mode == controller.AuthModern {
		apiKey := req.APIKey
		if req.UseSavedKey || apiKey == "" {
			if saved, ok, _ := s.cfg.GetCredential(ctx, "unifi_api_key"); ok {
				apiKey = saved
			}
		}
		cfg.APIKey = apiKey
		if cfg.Host == "" || cfg.APIKey == "" {
			writeErrorStatus(w, http.StatusBadRequest, "host and api_key are required")
			return
		}
	} else {
		if cfg.Username == "" || cfg.Password == "" {
			if saved, ok, _ := s.cfg.GetCredential(ctx, "unifi_username"); ok {
				cfg.Username = saved
			}
			if saved, ok, _ := s.cfg.GetCredential(ctx, "unifi_password"); ok {
				cfg.Password = saved
			}
		}
		if cfg.Host == "" || cfg.Username == "" || cfg.Password == "" {
			writeErrorStatus(w, http.StatusBadRequest, "host, username, and password are required")
			return
		}
	}

	result := controller.TestConnection(ctx, cfg)
	if result.Success {
		_ = s.cfg.SetString(ctx, "unifi_host", cfg.Host)
		_ = s.cfg.SetString(ctx, "unifi_controller_type", req.ControllerType)
		_ = s.cfg.SetString(ctx, "unifi_site", cfg.Site)
		_ = s.cfg.SetBool(ctx, "unifi_verify_ssl", cfg.VerifySSL)
		_ = s.cfg.SetString(ctx, "unifi_controller_name", result.ControllerName)
		_ = s.cfg.SetBool(ctx, "unifi_enabled", true)
		if cfg.Mode == controller.AuthModern && req.APIKey != "" && !req.UseSavedKey {
			_ = s.cfg.SetCredential(ctx, "unifi_api_key", cfg.APIKey)
		}
		if cfg.Mode == controller.AuthLegacy {
			_ = s.cfg.SetCredential(ctx, "unifi_username", cfg.Username)
			_ = s.cfg.SetCredential(ctx, "unifi_password", cfg.Password)
		}
		s.cfg.Invalidate()
		if s.receiver != nil {
			_ = s.receiver.ReloadConfig(ctx)
		}
		if s.audit != nil {
			s.audit.Record(ctx, "settings.unifi.test_success", map[string]any{"host": cfg.Host})
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDismissUpgrade(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.SetBool(r.Context(), "upgrade_v2_dismissed", true); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleDismissVPNToast(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.SetBool(r.Context(), "vpn_toast_dismissed", true); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) requireFirewallManagement(w http.ResponseWriter, r *http.Request) bool {
	if s.ctrl == nil {
		writeErrorStatus(w, http.StatusBadRequest, "unifi api not configured")
		return false
	}
	if !s.featureEnabled(r.Context(), "firewall_management") {
		writeErrorStatus(w, http.StatusBadRequest,
			"firewall management requires a unifi os gateway (not available on self-hosted controllers)")
		return false
	}
	return true
}

func (s *Server) handleListFirewallPolicies(w http.ResponseWriter, r *http.Request) {
	if !s.requireFirewallManagement(w, r) {
		return
	}
	policies, err := s.ctrl.ListPolicies(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	zones, err := s.ctrl.ListZones(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"policies": policies, "zones": zones})
}

type patchFirewallPolicyRequest struct {
	Origin         string `json:"origin"`
	LoggingEnabled *bool  `json:"loggingEnabled"`
}

func (s *Server) handlePatchFirewallPolicy(w http.ResponseWriter, r *http.Request) {
	if !s.requireFirewallManagement(w, r) {
		return
	}
	policyID := mux.Vars(r)["id"]

	var req patchFirewallPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Origin == "DERIVED" {
		writeErrorStatus(w, http.StatusBadRequest,
			"this rule is auto-generated and cannot be modified through the integration api")
		return
	}
	if req.LoggingEnabled == nil {
		writeErrorStatus(w, http.StatusBadRequest, "loggingEnabled is required")
		return
	}

	if err := s.ctrl.PatchPolicyLogging(r.Context(), policyID, *req.LoggingEnabled); err != nil {
		writeError(w, err)
		return
	}
	if s.audit != nil {
		s.audit.Record(r.Context(), "firewall.policy.patch",
			map[string]any{"policy_id": policyID, "logging_enabled": *req.LoggingEnabled})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type bulkPatchLoggingRequest struct {
	PolicyIDs      []string `json:"policy_ids"`
	LoggingEnabled bool     `json:"logging_enabled"`
}

func (s *Server) handleBulkPatchLogging(w http.ResponseWriter, r *http.Request) {
	if !s.requireFirewallManagement(w, r) {
		return
	}
	var req bulkPatchLoggingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.PolicyIDs) == 0 {
		writeErrorStatus(w, http.StatusBadRequest, "policy_ids is required")
		return
	}

	result := s.ctrl.BulkPatchLogging(r.Context(), req.PolicyIDs, req.LoggingEnabled)
	if s.audit != nil {
		s.audit.Record(r.Context(), "firewall.policy.bulk_patch", map[string]any{
			"total": result.Total, "success": result.Success, "failed": result.Failed,
		})
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListUnifiClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.db.ListClients(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": clients, "total": len(clients)})
}

func (s *Server) handleListUnifiDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.db.ListDevices(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "total": len(devices)})
}

// handleUnifiStatus reports the poller's last-tick outcome, distinct from
// the overall /health endpoint: a controller can be enabled and reachable
// while the wider system is otherwise degraded, and vice versa.
func (s *Server) handleUnifiStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	settings := s.loadUnifiSettings(ctx)
	resp := map[string]any{
		"enabled":       settings.Enabled,
		"controller_name": settings.ControllerName,
		"poll_interval": settings.PollInterval,
		"features":      settings.Features,
	}
	if s.poller != nil {
		status := s.poller.Status()
		resp["last_poll_at"] = status.LastPollAt
		resp["last_error"] = status.LastError
		if status.LastPollAt.IsZero() {
			resp["status"] = "pending"
		} else if status.LastError == "" {
			resp["status"] = "ok"
		} else {
			resp["status"] = "error"
		}
	} else {
		resp["status"] = "disabled"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBackfillDeviceNames(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patched, err := s.db.BackfillDeviceNames(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	if s.audit != nil {
		s.audit.Record(ctx, "unifi.backfill_device_names", map[string]any{"rows_patched": patched})
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows_patched": patched})
}
