// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package api is the HTTP surface: log search/export, dashboard stats,
// the setup wizard, controller/firewall settings, and health/config
// endpoints. Every handler checks out a connection from the store's pool
// for its own duration and never holds one across a request boundary.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/phersys/loginsight/internal/audit"
	"github.com/phersys/loginsight/internal/clock"
	"github.com/phersys/loginsight/internal/config"
	"github.com/phersys/loginsight/internal/controller"
	"github.com/phersys/loginsight/internal/enrich"
	"github.com/phersys/loginsight/internal/logging"
	"github.com/phersys/loginsight/internal/store"
)

// reloader is the narrow slice of internal/receiver.Receiver the setup
// wizard uses to push a completed WAN topology live without a restart.
type reloader interface {
	ReloadConfig(ctx context.Context) error
}

// retentionDefault records where a retention horizon's effective value
// came from, for the health endpoint's "source" annotation.
type retentionDefault struct {
	days   int
	source string // "env" or "default"
}

// Server holds every collaborator a handler might need. Construct with
// New; the zero value is not usable.
type Server struct {
	db       *store.Store
	cfg      *config.Store
	threat   *enrich.ThreatClient
	gate     *enrich.RateGate
	ctrl     *controller.Client
	poller   *controller.Poller
	receiver reloader
	audit    *audit.Logger
	log      *logging.Logger
	clock    clock.Clock

	version     string
	geoCityPath string
	geoASNPath  string

	retentionEnv    retentionDefault
	dnsRetentionEnv retentionDefault
}

// Deps bundles every collaborator New needs; fields beyond Store are
// optional and may be left zero when the feature they back is disabled.
type Deps struct {
	Store      *store.Store
	Config     *config.Store
	Threat     *enrich.ThreatClient
	RateGate   *enrich.RateGate
	Controller *controller.Client
	Poller     *controller.Poller
	Receiver   reloader
	Audit      *audit.Logger
	Log        *logging.Logger
	Version    string

	GeoCityPath string
	GeoASNPath  string

	RetentionDays      int
	RetentionSource    string
	DNSRetentionDays   int
	DNSRetentionSource string
}

// New wires a Server over deps.
func New(deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = logging.Nop()
	}
	return &Server{
		db: deps.Store, cfg: deps.Config, threat: deps.Threat, gate: deps.RateGate,
		ctrl: deps.Controller, poller: deps.Poller, receiver: deps.Receiver, audit: deps.Audit,
		log: log, clock: clock.Default, version: deps.Version,
		geoCityPath: deps.GeoCityPath, geoASNPath: deps.GeoASNPath,
		retentionEnv:    retentionDefault{days: deps.RetentionDays, source: deps.RetentionSource},
		dnsRetentionEnv: retentionDefault{days: deps.DNSRetentionDays, source: deps.DNSRetentionSource},
	}
}

// Router builds the full /api route tree.
func (s *Server) Router() *mux.Router {
	root := mux.NewRouter()
	apiRouter := root.PathPrefix("/api").Subrouter()

	s.registerLogRoutes(apiRouter)
	s.registerStatsRoutes(apiRouter)
	s.registerExportRoutes(apiRouter)
	s.registerServiceRoutes(apiRouter)
	s.registerHealthRoutes(apiRouter)
	s.registerConfigRoutes(apiRouter)
	s.registerSetupRoutes(apiRouter)
	s.registerEnrichRoutes(apiRouter)
	s.registerUnifiRoutes(apiRouter)

	return root
}

// now returns the server clock's current instant.
func (s *Server) now() time.Time { return s.clock.Now() }

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps err's Kind to an HTTP status per the taxonomy in §7:
// 400/403/404/409/429/502/503/504 when the error says which, 500 otherwise.
func writeError(w http.ResponseWriter, err error) {
	status, msg := errStatus(err)
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeErrorStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
