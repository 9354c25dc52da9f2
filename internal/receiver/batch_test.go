// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package receiver

import (
	"testing"
	"time"

	"github.com/phersys/loginsight/internal/store"
)

func TestBatchAppendTriggersFlushAtMaxSize(t *testing.T) {
	now := time.Now()
	b := newBatch(now)

	var due bool
	for i := 0; i < batchMaxSize; i++ {
		due = b.append(store.EnrichedRecord{}, now)
	}
	if !due {
		t.Fatal("expected flush to be due once batch reaches batchMaxSize")
	}
}

func TestBatchAppendTriggersFlushOnAge(t *testing.T) {
	start := time.Now()
	b := newBatch(start)

	due := b.append(store.EnrichedRecord{}, start.Add(batchMaxAge+time.Second))
	if !due {
		t.Fatal("expected flush to be due once batch age exceeds batchMaxAge")
	}
}

func TestBatchDueIgnoresEmptyBatch(t *testing.T) {
	start := time.Now()
	b := newBatch(start)

	if b.due(start.Add(time.Hour)) {
		t.Error("an empty batch should never be due for a flush")
	}
}

func TestBatchDrainResetsState(t *testing.T) {
	start := time.Now()
	b := newBatch(start)
	b.append(store.EnrichedRecord{}, start)

	later := start.Add(time.Second)
	rows := b.drain(later)
	if len(rows) != 1 {
		t.Fatalf("drain returned %d rows, want 1", len(rows))
	}
	if len(b.rows) != 0 {
		t.Error("drain should empty the batch")
	}
	if b.due(later.Add(batchMaxAge + time.Second)) {
		t.Error("a freshly drained batch should not be due")
	}
}
