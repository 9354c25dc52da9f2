// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package procconfig

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.SyslogListenAddr != ":514" {
		t.Errorf("SyslogListenAddr = %q, want :514", cfg.SyslogListenAddr)
	}
	if cfg.RetentionDays != 90 {
		t.Errorf("RetentionDays = %d, want 90", cfg.RetentionDays)
	}
	if cfg.ControllerPollInterval != 60*time.Second {
		t.Errorf("ControllerPollInterval = %v, want 60s", cfg.ControllerPollInterval)
	}
	if cfg.RetentionHourLocal != 3 {
		t.Errorf("RetentionHourLocal = %d, want 3", cfg.RetentionHourLocal)
	}
	if cfg.BlacklistHourLocal != 4 {
		t.Errorf("BlacklistHourLocal = %d, want 4", cfg.BlacklistHourLocal)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LOGINSIGHT_SYSLOG_ADDR", ":5140")
	t.Setenv("LOGINSIGHT_RETENTION_DAYS", "30")
	t.Setenv("LOGINSIGHT_UNIFI_ENABLED", "true")

	cfg := Load()
	if cfg.SyslogListenAddr != ":5140" {
		t.Errorf("SyslogListenAddr = %q, want :5140", cfg.SyslogListenAddr)
	}
	if cfg.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want 30", cfg.RetentionDays)
	}
	if !cfg.ControllerEnabled {
		t.Error("ControllerEnabled = false, want true")
	}
}

func TestLoadInvalidIntFallsBackToDefault(t *testing.T) {
	t.Setenv("LOGINSIGHT_RETENTION_DAYS", "not-a-number")
	cfg := Load()
	if cfg.RetentionDays != 90 {
		t.Errorf("RetentionDays = %d, want fallback 90", cfg.RetentionDays)
	}
}
