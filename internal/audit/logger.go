// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package audit is the admin-action trail for config changes, firewall
// policy patches, retention cleanup, and setup completion. There is no
// session/user layer in this system — every mutating HTTP handler runs
// as the single configured operator — so entries carry an action name
// and a detail bag, not a user/session identity.
package audit

import (
	"context"

	"github.com/phersys/loginsight/internal/logging"
)

// Logger appends audit entries to the structured application log under
// a dedicated "audit" subsystem tag, so they can be filtered out of the
// ordinary operational log stream without a separate sink.
type Logger struct {
	log *logging.Logger
}

// New constructs a Logger over log. A nil log is not valid; callers that
// want auditing disabled should leave the *Logger field nil instead.
func New(log *logging.Logger) *Logger {
	return &Logger{log: log.With("subsystem", "audit")}
}

// Record logs one admin action with its associated detail bag.
func (l *Logger) Record(ctx context.Context, action string, details map[string]any) {
	if l == nil || l.log == nil {
		return
	}
	l.log.InfoContext(ctx, "audit event", "action", action, "details", details)
}
