// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package history

import (
	"context"
	"time"

	"github.com/nadavby/reclaim/internal/logging"
	"github.com/nadavby/reclaim/internal/metrics"
)

const (
	defaultRecorderBuffer = 256
	recorderSaveTimeout   = 5 * time.Second
)

// Recorder decouples run record persistence from the scoring hot path.
// Record enqueues without blocking; a single worker drains the buffer
// into the store. When the buffer is full the oldest record is dropped
// so a slow store can never stall a match run.
type Recorder struct {
	store Store
	ch    chan RunRecord
}

// NewRecorder creates a recorder in front of the given store.
func NewRecorder(store Store, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = defaultRecorderBuffer
	}
	return &Recorder{
		store: store,
		ch:    make(chan RunRecord, buffer),
	}
}

// Record enqueues a run record for asynchronous persistence. It never
// blocks; on overflow the oldest buffered record is discarded.
func (r *Recorder) Record(rec RunRecord) {
	select {
	case r.ch <- rec:
		return
	default:
	}

	select {
	case dropped := <-r.ch:
		logging.Warn().
			Str("run_id", dropped.RunID).
			Msg("Run history buffer full, dropping oldest record")
	default:
	}

	select {
	case r.ch <- rec:
	default:
	}
}

// Run drains the buffer into the store until the context is canceled,
// then flushes whatever is still queued.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case rec := <-r.ch:
			r.save(&rec)
		case <-ctx.Done():
			r.flush()
			return ctx.Err()
		}
	}
}

// Pending returns the number of records waiting to be persisted.
func (r *Recorder) Pending() int {
	return len(r.ch)
}

// flush persists everything still buffered. Called on shutdown so short
// runs do not lose their trailing records.
func (r *Recorder) flush() {
	for {
		select {
		case rec := <-r.ch:
			r.save(&rec)
		default:
			return
		}
	}
}

func (r *Recorder) save(rec *RunRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), recorderSaveTimeout)
	defer cancel()

	err := r.store.Save(ctx, rec)
	metrics.RecordHistoryWrite(err)
	if err != nil {
		logging.Error().Err(err).Str("run_id", rec.RunID).Msg("Run record persistence failed")
	}
}
