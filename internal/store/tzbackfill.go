// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"

	"github.com/phersys/loginsight/internal/errors"
	"github.com/phersys/loginsight/internal/logging"
)

const tzBackfillLockID int64 = 0x6c6f6769 // "logi", arbitrary but stable

// configFlag is the narrow slice of internal/config.Store this package
// needs, kept local so store never imports config.
type configFlag interface {
	GetBool(ctx context.Context, key string) (bool, error)
	SetBool(ctx context.Context, key string, value bool) error
}

// BackfillTimezone rewrites origin_timestamp for every existing row once,
// the first time the process boots with a non-UTC, non-empty zone
// configured. It is coordinated by an advisory lock so a fleet of
// processes booting simultaneously only runs it once, and it is gated by
// the tz_backfill_done flag so it never reruns after success.
//
// zone == "" or zone == "UTC" is a no-op: rows are already in the zone
// they were ingested in.
func (s *Store) BackfillTimezone(ctx context.Context, cfg configFlag, zone string, log *logging.Logger) error {
	if zone == "" || zone == "UTC" {
		return nil
	}

	done, err := cfg.GetBool(ctx, "tz_backfill_done")
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "store: read tz_backfill_done")
	}
	if done {
		return nil
	}

	ran, err := s.withAdvisoryLock(ctx, tzBackfillLockID, func(ctx context.Context) error {
		done, err := cfg.GetBool(ctx, "tz_backfill_done")
		if err != nil {
			return errors.Wrap(err, errors.KindInternal, "store: recheck tz_backfill_done")
		}
		if done {
			return nil
		}

		tag, err := s.pool.Exec(ctx, `
			UPDATE logs
			SET origin_timestamp = origin_timestamp AT TIME ZONE 'UTC' AT TIME ZONE $1
		`, zone)
		if err != nil {
			return errors.Wrap(err, errors.KindInternal, "store: backfill timezone")
		}
		if log != nil {
			log.Info("timezone backfill complete", "zone", zone, "rows", tag.RowsAffected())
		}
		return cfg.SetBool(ctx, "tz_backfill_done", true)
	})
	if err != nil {
		return err
	}
	if !ran && log != nil {
		log.Debug("timezone backfill skipped, lock held elsewhere")
	}
	return nil
}
