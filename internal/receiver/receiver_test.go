// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package receiver

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/phersys/loginsight/internal/clock"
	"github.com/phersys/loginsight/internal/logging"
	"github.com/phersys/loginsight/internal/metrics"
	"github.com/phersys/loginsight/internal/store"
)

const sampleLine = `Feb 8 16:43:49 router-host [WAN_IN-D-123] DESCR="Drop" IN=ppp0 OUT= MAC=aa:bb:cc:dd:ee:ff:11:22:33:44:55:66 SRC=198.51.100.7 DST=203.0.113.4 PROTO=TCP SPT=54321 DPT=22`

type fakeLogStore struct {
	batches [][]store.EnrichedRecord
	err     error
}

func (f *fakeLogStore) InsertEnrichedBatch(ctx context.Context, records []store.EnrichedRecord) (int, int, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	f.batches = append(f.batches, records)
	return len(records), 0, nil
}

type fakeConfigStore struct {
	values  map[string][]string
	sets    map[string][]string
	strings map[string]string
}

func newFakeConfigStore() *fakeConfigStore {
	return &fakeConfigStore{
		values:  map[string][]string{},
		sets:    map[string][]string{},
		strings: map[string]string{},
	}
}

func (f *fakeConfigStore) GetString(ctx context.Context, key string) (string, bool, error) {
	v, ok := f.strings[key]
	return v, ok, nil
}

func (f *fakeConfigStore) GetStringSlice(ctx context.Context, key string) ([]string, error) {
	return f.values[key], nil
}

func (f *fakeConfigStore) SetStringSlice(ctx context.Context, key string, values []string) error {
	f.sets[key] = values
	f.values[key] = values
	return nil
}

func newTestReceiver(db logStore, cfg configStore) *Receiver {
	return &Receiver{
		db:      db,
		cfg:     cfg,
		metrics: metrics.New(prometheus.NewRegistry()),
		log:     logging.Nop(),
		clock:   clock.Frozen{T: time.Date(2026, time.February, 9, 0, 0, 0, 0, time.UTC)},
		loc:     time.UTC,
		batch:   newBatch(time.Date(2026, time.February, 9, 0, 0, 0, 0, time.UTC)),
	}
}

func TestIngestParsesAndAppendsToBatch(t *testing.T) {
	r := newTestReceiver(&fakeLogStore{}, nil)
	r.ctx = context.Background()

	r.ingest(sampleLine, r.clock.Now())

	rows := r.batch.drain(r.clock.Now())
	if len(rows) != 1 {
		t.Fatalf("batch has %d rows, want 1", len(rows))
	}
	if rows[0].SrcIP != "198.51.100.7" {
		t.Errorf("src_ip = %q", rows[0].SrcIP)
	}
}

func TestIngestParseFailureDoesNotAppend(t *testing.T) {
	r := newTestReceiver(&fakeLogStore{}, nil)
	r.ctx = context.Background()

	r.ingest("not a syslog line at all", r.clock.Now())

	rows := r.batch.drain(r.clock.Now())
	if len(rows) != 0 {
		t.Fatalf("batch has %d rows, want 0 after a parse failure", len(rows))
	}
}

func TestFlushInsertsBatchAndResetsState(t *testing.T) {
	db := &fakeLogStore{}
	r := newTestReceiver(db, nil)
	r.ctx = context.Background()

	r.batch.append(store.EnrichedRecord{}, r.clock.Now())
	r.flush(r.ctx)

	if len(db.batches) != 1 || len(db.batches[0]) != 1 {
		t.Fatalf("db.batches = %+v, want one batch of one row", db.batches)
	}
	if len(r.batch.rows) != 0 {
		t.Error("flush should have emptied the batch")
	}
}

func TestFlushOnEmptyBatchIsNoop(t *testing.T) {
	db := &fakeLogStore{}
	r := newTestReceiver(db, nil)
	r.ctx = context.Background()

	r.flush(r.ctx)

	if len(db.batches) != 0 {
		t.Error("flushing an empty batch should not call the store")
	}
}

func TestAutoLearnWANIPPersistsOnceAndDeduplicates(t *testing.T) {
	cfg := newFakeConfigStore()
	r := newTestReceiver(&fakeLogStore{}, cfg)

	r.autoLearnWANIP("203.0.113.9")
	r.autoLearnWANIP("203.0.113.9")

	if got := cfg.values["wan_ips"]; len(got) != 1 || got[0] != "203.0.113.9" {
		t.Errorf("wan_ips = %v, want [203.0.113.9] exactly once", got)
	}
}

func TestReloadConfigSwapsWANState(t *testing.T) {
	cfg := newFakeConfigStore()
	cfg.values["wan_ips"] = []string{"203.0.113.10"}
	cfg.values["gateway_ips"] = []string{"192.168.1.1"}
	cfg.strings["wan_ip_by_iface"] = `{"ppp0":"203.0.113.10"}`

	r := newTestReceiver(&fakeLogStore{}, cfg)

	if err := r.ReloadConfig(context.Background()); err != nil {
		t.Fatalf("ReloadConfig: %v", err)
	}

	wan := r.wanContext()
	if len(wan.IPs) != 1 || wan.IPs[0] != "203.0.113.10" {
		t.Errorf("wan.IPs = %v", wan.IPs)
	}
	if !wan.AuthoritativeIPByIfc {
		t.Error("AuthoritativeIPByIfc should be true once wan_ips is non-empty")
	}
}
