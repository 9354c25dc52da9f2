// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package receiver

import (
	"sync"
	"time"

	"github.com/phersys/loginsight/internal/store"
)

const (
	batchMaxSize = 50
	batchMaxAge  = 2 * time.Second
)

// batch accumulates enriched rows under a single lock, held only for
// the duration of an append or a drain.
type batch struct {
	mu        sync.Mutex
	rows      []store.EnrichedRecord
	lastFlush time.Time
}

func newBatch(now time.Time) *batch {
	return &batch{lastFlush: now}
}

// append adds a row and reports whether the batch is now due a flush.
func (b *batch) append(r store.EnrichedRecord, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows = append(b.rows, r)
	return len(b.rows) >= batchMaxSize || now.Sub(b.lastFlush) >= batchMaxAge
}

// due reports whether the batch should flush purely on age, with no new
// row having arrived (the recv-timeout tick).
func (b *batch) due(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rows) > 0 && now.Sub(b.lastFlush) >= batchMaxAge
}

// drain empties the batch and returns what it held, resetting lastFlush
// regardless of what the caller does with the rows.
func (b *batch) drain(now time.Time) []store.EnrichedRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	rows := b.rows
	b.rows = nil
	b.lastFlush = now
	return rows
}
