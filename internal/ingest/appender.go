// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shamikatamazon/cmcd/internal/fetch"
	"github.com/shamikatamazon/cmcd/internal/logging"
	"github.com/shamikatamazon/cmcd/internal/metrics"
	"github.com/shamikatamazon/cmcd/internal/models"
)

// Sink is a named destination for flushed samples. The InfluxDB point
// writer and the DuckDB store both satisfy it.
type Sink interface {
	fetch.SampleWriter
	Name() string
}

const flushTimeout = 30 * time.Second

// AppenderStats holds runtime counters.
type AppenderStats struct {
	SamplesReceived int64
	SamplesFlushed  int64
	SamplesDropped  int64
	FlushCount      int64
	ErrorCount      int64
	LastFlushTime   time.Time
	LastError       string
	BufferSize      int
	Pending         map[string]int
}

// Appender buffers samples and writes them to every sink in batches, when
// the batch size is reached or the flush interval elapses.
//
// Each sink keeps its own pending queue: a failing sink retains its samples
// for the next flush without making the healthy sinks write them twice.
// Flushes are serialized so samples reach each sink in append order.
type Appender struct {
	sinks  []Sink
	config AppenderConfig
	log    *logging.IngestLogger

	mu     sync.Mutex
	buffer []models.Sample

	flushMu sync.Mutex
	pending map[string][]models.Sample

	closed   atomic.Bool
	started  atomic.Bool
	stopChan chan struct{}
	doneChan chan struct{}
	flushWg  sync.WaitGroup

	received      atomic.Int64
	flushed       atomic.Int64
	dropped       atomic.Int64
	flushCount    atomic.Int64
	errorCount    atomic.Int64
	lastFlushTime atomic.Value // time.Time
	lastError     atomic.Value // string
}

var _ Forwarder = (*Appender)(nil)

// NewAppender returns an appender writing to sinks.
func NewAppender(cfg AppenderConfig, sinks ...Sink) (*Appender, error) {
	if len(sinks) == 0 {
		return nil, ErrNoSink
	}
	if cfg.BatchSize <= 0 {
		return nil, errors.New("batch size must be positive")
	}
	if cfg.FlushInterval <= 0 {
		return nil, errors.New("flush interval must be positive")
	}
	if cfg.MaxPending < cfg.BatchSize {
		cfg.MaxPending = cfg.BatchSize
	}

	a := &Appender{
		sinks:    sinks,
		config:   cfg,
		log:      logging.NewIngestLogger(),
		buffer:   make([]models.Sample, 0, cfg.BatchSize),
		pending:  make(map[string][]models.Sample, len(sinks)),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	a.lastFlushTime.Store(time.Time{})
	a.lastError.Store("")
	return a, nil
}

// Start begins interval flushing. It is idempotent.
func (a *Appender) Start(ctx context.Context) error {
	if a.closed.Load() {
		return ErrAppenderClosed
	}
	if a.started.Swap(true) {
		return nil
	}
	go a.flushLoop(ctx)
	return nil
}

// Forward buffers s. It implements Forwarder for direct ingest when the
// broker is disabled.
func (a *Appender) Forward(ctx context.Context, _ string, s models.Sample) error {
	return a.Append(ctx, s)
}

// Append buffers s and triggers an asynchronous flush at batch size.
func (a *Appender) Append(_ context.Context, s models.Sample) error {
	if a.closed.Load() {
		return ErrAppenderClosed
	}

	a.mu.Lock()
	a.buffer = append(a.buffer, s)
	size := len(a.buffer)
	a.mu.Unlock()
	a.received.Add(1)
	metrics.IngestBufferedSamples.Set(float64(size))

	if size >= a.config.BatchSize {
		a.flushWg.Add(1)
		go func() {
			defer a.flushWg.Done()
			// Detached from the caller: the message or request context ends
			// before the write completes.
			ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			defer cancel()
			a.flushAsync(ctx)
		}()
	}
	return nil
}

// Flush writes everything buffered, waiting for in-flight flushes first.
func (a *Appender) Flush(ctx context.Context) error {
	a.flushWg.Wait()
	return a.flush(ctx)
}

// Close stops the flush loop and performs a final flush. It is idempotent.
func (a *Appender) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	if a.started.Load() {
		close(a.stopChan)
		<-a.doneChan
	}
	a.flushWg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	return a.flush(ctx)
}

// Stats returns a snapshot of the counters.
func (a *Appender) Stats() AppenderStats {
	a.mu.Lock()
	size := len(a.buffer)
	a.mu.Unlock()

	a.flushMu.Lock()
	pending := make(map[string]int, len(a.pending))
	for name, p := range a.pending {
		pending[name] = len(p)
	}
	a.flushMu.Unlock()

	last, _ := a.lastFlushTime.Load().(time.Time)
	lastErr, _ := a.lastError.Load().(string)

	return AppenderStats{
		SamplesReceived: a.received.Load(),
		SamplesFlushed:  a.flushed.Load(),
		SamplesDropped:  a.dropped.Load(),
		FlushCount:      a.flushCount.Load(),
		ErrorCount:      a.errorCount.Load(),
		LastFlushTime:   last,
		LastError:       lastErr,
		BufferSize:      size,
		Pending:         pending,
	}
}

// flushLoop uses a fresh timeout per flush; ctx only signals shutdown.
func (a *Appender) flushLoop(ctx context.Context) {
	defer close(a.doneChan)

	ticker := time.NewTicker(a.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopChan:
			return
		case <-ticker.C:
			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			a.flushAsync(flushCtx)
			cancel()
		}
	}
}

func (a *Appender) flushAsync(ctx context.Context) {
	if err := a.flush(ctx); err != nil {
		logging.Debug().Err(err).Msg("Async sample flush failed")
	}
}

func (a *Appender) flush(ctx context.Context) error {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	a.mu.Lock()
	batch := a.buffer
	a.buffer = make([]models.Sample, 0, a.config.BatchSize)
	a.mu.Unlock()
	metrics.IngestBufferedSamples.Set(0)

	var errs []error
	for _, sink := range a.sinks {
		name := sink.Name()
		queue := append(a.pending[name], batch...)
		if over := len(queue) - a.config.MaxPending; over > 0 {
			a.dropped.Add(int64(over))
			logging.Warn().Str("sink", name).Int("dropped", over).Msg("Sink backlog over limit, dropping oldest samples")
			queue = queue[over:]
		}
		if len(queue) == 0 {
			continue
		}

		rest, err := a.writeChunks(ctx, sink, queue)
		if len(rest) > 0 {
			a.pending[name] = rest
		} else {
			delete(a.pending, name)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		a.errorCount.Add(1)
		a.lastError.Store(err.Error())
		return err
	}
	if len(batch) > 0 {
		a.flushCount.Add(1)
		a.lastFlushTime.Store(time.Now())
	}
	return nil
}

// writeChunks writes queue in batch-sized chunks and returns what is left
// after the first failure.
func (a *Appender) writeChunks(ctx context.Context, sink Sink, queue []models.Sample) ([]models.Sample, error) {
	for start := 0; start < len(queue); start += a.config.BatchSize {
		end := start + a.config.BatchSize
		if end > len(queue) {
			end = len(queue)
		}
		chunk := queue[start:end]

		began := time.Now()
		err := sink.WriteSamples(ctx, chunk)
		elapsed := time.Since(began)
		metrics.RecordIngestFlush(sink.Name(), elapsed, len(chunk), err)
		a.log.LogBatchFlush(sink.Name(), len(chunk), elapsed, err)
		if err != nil {
			return queue[start:], err
		}
		a.flushed.Add(int64(len(chunk)))
	}
	return nil, nil
}
