// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// errNoRows is the sentinel the store checks for "key not set"; it is
// mapped from pgx.ErrNoRows at the boundary so the rest of the package
// has no direct pgx dependency.
var errNoRows = errors.New("config: no such key")

// pgxPool adapts *pgxpool.Pool to the querier interface.
type pgxPool struct {
	pool *pgxpool.Pool
}

// NewPgx builds a Store backed by a live pgx connection pool.
func NewPgx(pool *pgxpool.Pool, dbPassword string) *Store {
	return New(&pgxPool{pool: pool}, dbPassword)
}

func (p *pgxPool) QueryRow(ctx context.Context, sql string, args ...any) row {
	return &pgxRow{r: p.pool.QueryRow(ctx, sql, args...)}
}

func (p *pgxPool) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := p.pool.Exec(ctx, sql, args...)
	return err
}

type pgxRow struct {
	r pgx.Row
}

func (r *pgxRow) Scan(dest ...any) error {
	err := r.r.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return errNoRows
	}
	return err
}
