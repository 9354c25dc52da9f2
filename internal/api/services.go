// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gorilla/mux"

	"github.com/phersys/loginsight/internal/services"
)

func (s *Server) registerServiceRoutes(r *mux.Router) {
	r.HandleFunc("/services", s.handleServices).Methods(http.MethodGet)
	r.HandleFunc("/interfaces", s.handleInterfaces).Methods(http.MethodGet)
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"services": services.Names()})
}

type interfaceEntry struct {
	Name string `json:"name"`
	Kind string `json:"kind"` // wan, vpn, vlan, eth
}

var vlanIfacePattern = regexp.MustCompile(`^(br|vlan)\d+$`)

func (s *Server) handleInterfaces(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ifaces, err := s.db.DistinctInterfaces(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	wanInterfaces, _ := s.cfg.GetStringSlice(ctx, "wan_interfaces")
	vpnPrefixes := s.vpnInterfacePrefixes(ctx)

	out := make([]interfaceEntry, len(ifaces))
	for i, name := range ifaces {
		out[i] = interfaceEntry{Name: name, Kind: classifyInterface(name, wanInterfaces, vpnPrefixes)}
	}
	writeJSON(w, http.StatusOK, map[string]any{"interfaces": out})
}

func classifyInterface(name string, wanInterfaces, vpnPrefixes []string) string {
	for _, w := range wanInterfaces {
		if w == name {
			return "wan"
		}
	}
	for _, p := range vpnPrefixes {
		if strings.HasPrefix(name, p) {
			return "vpn"
		}
	}
	if vlanIfacePattern.MatchString(name) {
		return "vlan"
	}
	return "eth"
}
