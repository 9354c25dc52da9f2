// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package supervisor

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/phersys/loginsight/internal/logging"
)

// Reloadable is anything that can reload its GeoIP databases or its
// WAN/gateway config on SIGUSR1/SIGUSR2 without a process restart.
type Reloadable interface {
	ReloadGeo() error
	ReloadConfig(ctx context.Context) error
}

// DispatchSignals blocks until ctx is cancelled or a terminating signal
// (SIGTERM/SIGINT) arrives, running reload hooks inline for SIGUSR1 (GeoIP
// database reopen) and SIGUSR2 (WAN/gateway config reload) in the
// meantime. It returns the signal that stopped it, or nil if ctx was
// cancelled first.
func DispatchSignals(ctx context.Context, target Reloadable, log *logging.Logger) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGUSR1:
				if err := target.ReloadGeo(); err != nil && log != nil {
					log.Warn("geoip reload failed", "err", err)
				} else if log != nil {
					log.Info("geoip databases reloaded")
				}
			case syscall.SIGUSR2:
				if err := target.ReloadConfig(ctx); err != nil && log != nil {
					log.Warn("config reload failed", "err", err)
				} else if log != nil {
					log.Info("wan/gateway config reloaded")
				}
			default:
				return sig
			}
		}
	}
}
