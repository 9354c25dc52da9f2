// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package store is the persistent layer: the logs table, the threat
// cache, the client/device name-resolution caches, and the config
// store's backing table, all against a relational engine that exposes
// INET/CIDR types, advisory locks, LATERAL joins, and MODE() WITHIN
// GROUP — a PostgreSQL-shaped store, reached through jackc/pgx/v5.
package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phersys/loginsight/internal/errors"
	"github.com/phersys/loginsight/internal/logging"
)

// Store wraps a pgx connection pool with the queries the receiver, the
// backfill worker, the scheduler, and the HTTP API all share.
type Store struct {
	pool *pgxpool.Pool
	log  *logging.Logger
}

// Open connects to dsn and runs schema migrations.
func Open(ctx context.Context, dsn string, log *logging.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "store: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.KindUnavailable, "store: ping")
	}
	s := &Store{pool: pool, log: log}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Pool exposes the underlying connection pool for packages (such as
// internal/config) that need direct access to a shared table.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

// withAdvisoryLock runs fn while holding a session-scoped advisory lock
// keyed by lockID, so a fleet of receiver/API processes never race on a
// one-shot migration step. Returns (ran, err): ran is false if another
// holder already has the lock.
func (s *Store) withAdvisoryLock(ctx context.Context, lockID int64, fn func(ctx context.Context) error) (bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, errors.Wrap(err, errors.KindUnavailable, "store: acquire connection")
	}
	defer conn.Release()

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired); err != nil {
		return false, errors.Wrap(err, errors.KindInternal, "store: try advisory lock")
	}
	if !acquired {
		return false, nil
	}
	defer conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, lockID).Scan(new(bool))

	if err := fn(ctx); err != nil {
		return true, err
	}
	return true, nil
}

func rowsAffectedErr(action string, err error) error {
	return errors.Wrapf(err, errors.KindInternal, "store: %s", action)
}
