// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/phersys/loginsight/internal/config"
	"github.com/phersys/loginsight/internal/store"
)

func (s *Server) registerSetupRoutes(r *mux.Router) {
	r.HandleFunc("/setup/status", s.handleSetupStatus).Methods(http.MethodGet)
	r.HandleFunc("/setup/wan-candidates", s.handleWANCandidates).Methods(http.MethodGet)
	r.HandleFunc("/setup/network-segments", s.handleNetworkSegments).Methods(http.MethodGet)
	r.HandleFunc("/setup/complete", s.handleSetupComplete).Methods(http.MethodPost)
}

func (s *Server) handleSetupStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	setupComplete, _ := s.cfg.GetBool(ctx, "setup_complete")

	count, err := s.db.CountFiltered(ctx, store.Filter{LogTypes: []string{"firewall"}}, s.now(), nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"setup_complete": setupComplete, "logs_count": count})
}

func (s *Server) handleWANCandidates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bridgePrefix, _, _ := s.cfg.GetString(ctx, "bridge_prefix")
	vpnPrefixes := s.vpnInterfacePrefixes(ctx)

	candidates, err := s.db.WANIPCandidates(ctx, bridgePrefix, vpnPrefixes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

type networkSegment struct {
	Interface      string `json:"interface"`
	SampleLocalIP  string `json:"sample_local_ip"`
	SuggestedLabel string `json:"suggested_label"`
	IsWAN          bool   `json:"is_wan"`
	VPNBadge       string `json:"vpn_badge,omitempty"`
	VPNCIDR        string `json:"vpn_cidr,omitempty"`
}

func (s *Server) handleNetworkSegments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wanList := splitCSV(r.URL.Query().Get("wan_interfaces"))

	rows, err := s.db.NetworkSegments(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	var wanIPs map[string]string
	if len(wanList) > 0 {
		wanIPs = make(map[string]string, len(wanList))
		if candidates, err := s.db.WANIPsByInterface(ctx, wanList); err == nil {
			for _, c := range candidates {
				wanIPs[c.Interface] = c.WANIP
			}
		}
	}

	var discoveredVPN map[string]vpnNetworkCfg
	if s.ctrl != nil {
		if nets, err := s.ctrl.DiscoverVPNNetworks(ctx); err == nil {
			discoveredVPN = make(map[string]vpnNetworkCfg, len(nets))
			for _, n := range nets {
				discoveredVPN[n.Interface] = vpnNetworkCfg{Badge: n.Badge}
			}
		}
	}

	segments := make([]networkSegment, 0, len(rows))
	for _, row := range rows {
		seg := networkSegment{Interface: row.Interface}
		isWAN := contains(wanList, row.Interface)
		seg.IsWAN = isWAN

		switch {
		case isWAN:
			seg.SuggestedLabel = wanLabel(wanList, row.Interface)
			seg.SampleLocalIP = wanIPs[row.Interface]
		default:
			seg.SuggestedLabel = suggestInterfaceLabel(row.Interface)
			if len(row.SampleIPs) > 0 {
				seg.SampleLocalIP = row.SampleIPs[0]
			}
		}

		if v, ok := discoveredVPN[row.Interface]; ok {
			seg.VPNBadge = v.Badge
			seg.VPNCIDR = v.CIDR
		}
		segments = append(segments, seg)
	}

	writeJSON(w, http.StatusOK, map[string]any{"segments": segments})
}

func wanLabel(wanList []string, iface string) string {
	if len(wanList) == 1 {
		return "WAN"
	}
	for i, w := range wanList {
		if w == iface {
			return "WAN" + strconv.Itoa(i+1)
		}
	}
	return "WAN"
}

func suggestInterfaceLabel(iface string) string {
	switch {
	case iface == "br0":
		return "Main LAN"
	case strings.HasPrefix(iface, "br"):
		return vlanLabel(iface, "br")
	case strings.HasPrefix(iface, "vlan"):
		return vlanLabel(iface, "vlan")
	case strings.HasPrefix(iface, "eth"):
		if num := iface[3:]; isDigits(num) {
			return "Ethernet " + num
		}
		return iface
	default:
		return ""
	}
}

func vlanLabel(iface, prefix string) string {
	num := iface[len(prefix):]
	if isDigits(num) {
		return "VLAN " + num
	}
	return iface
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

type setupCompleteRequest struct {
	WANInterfaces   []string                 `json:"wan_interfaces"`
	InterfaceLabels map[string]string        `json:"interface_labels"`
	VPNNetworks     map[string]vpnNetworkCfg `json:"vpn_networks"`
	WizardPath      string                   `json:"wizard_path"`
}

func (s *Server) handleSetupComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req setupCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.WANInterfaces) == 0 {
		writeErrorStatus(w, http.StatusBadRequest, "wan_interfaces required")
		return
	}

	currentWAN, _ := s.cfg.GetStringSlice(ctx, "wan_interfaces")

	if err := s.cfg.SetStringSlice(ctx, "wan_interfaces", req.WANInterfaces); err != nil {
		writeError(w, err)
		return
	}
	if req.InterfaceLabels != nil {
		if err := config.SetJSON(ctx, s.cfg, "interface_labels", req.InterfaceLabels); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.VPNNetworks != nil {
		if err := config.SetJSON(ctx, s.cfg, "vpn_networks", req.VPNNetworks); err != nil {
			writeError(w, err)
			return
		}
	}
	if err := s.cfg.SetBool(ctx, "setup_complete", true); err != nil {
		writeError(w, err)
		return
	}
	if err := config.SetJSON(ctx, s.cfg, "config_version", 2); err != nil {
		writeError(w, err)
		return
	}

	wizardPath := req.WizardPath
	if wizardPath == "" {
		wizardPath = "log_detection"
	}
	if err := s.cfg.SetString(ctx, "wizard_path", wizardPath); err != nil {
		writeError(w, err)
		return
	}
	if wizardPath == "unifi_api" {
		if err := s.cfg.SetBool(ctx, "unifi_enabled", true); err != nil {
			writeError(w, err)
			return
		}
	}

	if wanChanged(currentWAN, req.WANInterfaces) {
		if err := s.cfg.SetBool(ctx, "direction_backfill_pending", true); err != nil {
			writeError(w, err)
			return
		}
	}

	s.cfg.Invalidate()
	if s.receiver != nil {
		_ = s.receiver.ReloadConfig(ctx)
	}
	if s.audit != nil {
		s.audit.Record(ctx, "setup.complete", map[string]any{"wan_interfaces": req.WANInterfaces, "wizard_path": wizardPath})
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func wanChanged(oldSet, newSet []string) bool {
	if len(oldSet) != len(newSet) {
		return true
	}
	seen := make(map[string]bool, len(oldSet))
	for _, v := range oldSet {
		seen[v] = true
	}
	for _, v := range newSet {
		if !seen[v] {
			return true
		}
	}
	return false
}
