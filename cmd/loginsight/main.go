// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command loginsight runs the syslog ingestion, enrichment, and HTTP
// serving pipeline: a UDP receiver, a background backfill worker, a
// scheduler for stats/retention/blacklist jobs, an optional UniFi-like
// controller poller, and the HTTP API, all sharing one store connection
// pool and one durable config store.
package main

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phersys/loginsight/internal/api"
	"github.com/phersys/loginsight/internal/audit"
	"github.com/phersys/loginsight/internal/backfill"
	"github.com/phersys/loginsight/internal/config"
	"github.com/phersys/loginsight/internal/controller"
	"github.com/phersys/loginsight/internal/enrich"
	"github.com/phersys/loginsight/internal/logging"
	"github.com/phersys/loginsight/internal/metrics"
	"github.com/phersys/loginsight/internal/procconfig"
	"github.com/phersys/loginsight/internal/receiver"
	"github.com/phersys/loginsight/internal/scheduler"
	"github.com/phersys/loginsight/internal/store"
	"github.com/phersys/loginsight/internal/supervisor"
)

const rateLimitStatePath = "/tmp/loginsight-threat-ratelimit.json"

func main() {
	cfg := procconfig.Load()
	log := logging.New(cfg.LogLevel)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warn("unknown timezone, falling back to UTC", "timezone", cfg.Timezone, "err", err)
		loc = time.UTC
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Open(ctx, cfg.DatabaseDSN, log)
	if err != nil {
		log.Error("failed to open store", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	cfgStore := config.NewPgx(db.Pool(), dsnPassword(cfg.DatabaseDSN))
	reg := metrics.Get()

	geo, err := enrich.NewGeoLookup(cfg.GeoCityMMDBPath, cfg.GeoASNMMDBPath, log)
	if err != nil {
		log.Warn("geoip databases unavailable at startup", "err", err)
	}
	rdns := enrich.NewRDNSResolver("", 2*time.Second)

	gate := enrich.NewRateGate(ctx, rateLimitStatePath, cfgStore, 0, log)
	gate.SetMetrics(reg)

	threat := enrich.NewThreatClient(cfg.ThreatAPIKey, cfg.ThreatServiceURL, &http.Client{Timeout: 10 * time.Second}, gate, db, log)
	threat.SetMetrics(reg)

	engine := enrich.NewEngine(geo, rdns, threat)

	var ctrl *controller.Client
	var poller *controller.Poller
	if cfg.ControllerEnabled && cfg.ControllerHost != "" {
		ctrlCfg := controllerConfigFromConfigStore(ctx, cfgStore, cfg)
		ctrl = controller.New(ctrlCfg, log)
		poller = controller.NewPoller(ctrl, db, cfgStore, cfg.ControllerPollInterval, log)
		if err := poller.Prime(ctx); err != nil {
			log.Warn("failed to prime controller name maps", "err", err)
		}
		go poller.Run(ctx)
	}

	recv, err := receiver.New(cfg.SyslogListenAddr, db, engine, geo, cfgStore, loc, log)
	if err != nil {
		log.Error("failed to start syslog receiver", "err", err)
		os.Exit(1)
	}
	go recv.Run(ctx)

	backfillWorker := backfill.New(db, cfgStore, engine, log)
	go backfillWorker.Run(ctx)

	sched := scheduler.New(db, cfgStore, threat, loc, cfg.RetentionDays, cfg.DNSRetentionDays,
		cfg.RetentionHourLocal, cfg.BlacklistHourLocal, log)
	go sched.Run(ctx)

	auditLog := audit.New(log)

	server := api.New(api.Deps{
		Store: db, Config: cfgStore, Threat: threat, RateGate: gate,
		Controller: ctrl, Poller: poller, Receiver: recv, Audit: auditLog, Log: log,
		Version:     "1.0.0",
		GeoCityPath: cfg.GeoCityMMDBPath, GeoASNPath: cfg.GeoASNMMDBPath,
		RetentionDays: cfg.RetentionDays, RetentionSource: "env",
		DNSRetentionDays: cfg.DNSRetentionDays, DNSRetentionSource: "env",
	})

	mux := server.Router()
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{Addr: cfg.HTTPListenAddr, Handler: mux}
	go func() {
		log.Info("http api listening", "addr", cfg.HTTPListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "err", err)
		}
	}()

	sig := supervisor.DispatchSignals(ctx, recv, log)
	log.Info("shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	recv.Stop()
	cancel()
}

// dsnPassword extracts the password component of a postgres:// DSN; the
// config store derives its credential-encryption key from it so the
// encrypted blobs are unreadable without the same database access the
// rest of the process already requires.
func dsnPassword(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if pw, ok := u.User.Password(); ok {
		return pw
	}
	return dsn
}

// controllerConfigFromConfigStore prefers durable settings saved through
// the setup wizard/settings UI over the process-level env defaults, so a
// controller reconfigured at runtime doesn't require a restart to take
// effect on the poller's own long-lived client.
func controllerConfigFromConfigStore(ctx context.Context, cfgStore *config.Store, proc procconfig.Config) controller.Config {
	host, ok, _ := cfgStore.GetString(ctx, "unifi_host")
	if !ok || host == "" {
		host = proc.ControllerHost
	}
	site, ok, _ := cfgStore.GetString(ctx, "unifi_site")
	if !ok || site == "" {
		site = proc.ControllerSite
	}
	controllerType, _, _ := cfgStore.GetString(ctx, "unifi_controller_type")
	mode := controller.AuthModern
	if controllerType == "self_hosted" {
		mode = controller.AuthLegacy
	}

	verifySSL := proc.ControllerVerifySSL
	if v, ok, err := config.GetJSON[bool](ctx, cfgStore, "unifi_verify_ssl"); err == nil && ok {
		verifySSL = v
	}

	apiKey := proc.ControllerAPIKey
	if saved, ok, _ := cfgStore.GetCredential(ctx, "unifi_api_key"); ok && saved != "" {
		apiKey = saved
	}
	username, _, _ := cfgStore.GetCredential(ctx, "unifi_username")
	password, _, _ := cfgStore.GetCredential(ctx, "unifi_password")

	return controller.Config{
		Host: host, Mode: mode, Site: site, APIKey: apiKey,
		Username: username, Password: password, VerifySSL: verifySSL,
	}
}
