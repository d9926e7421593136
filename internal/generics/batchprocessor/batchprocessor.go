package batchprocessor

import (
	"context"
	"errors"
	"sync"
	"time"

	applogger "github.com/outofoffice3/aws-samples/hermes/internal/logger"
)

// ErrSkip tells the processor to drop an item without logging it as a failure.
var ErrSkip = errors.New("skip item")

// Stats counts what a processor did.
type Stats struct {
	Added   int
	Skipped int
	Flushed int
	Batches int
}

// GenericBatchProcessor buffers converted items O until one of:
//   - MaxBatchSize items,
//   - FlushInterval elapses,
//   - the input is closed by Wait,
//
// at which point FlushFunc is invoked with the O-typed batch.
type GenericBatchProcessor[I any, O any] struct {
	MaxBatchSize  int
	FlushInterval time.Duration

	MapFunc   func(I) (O, error)
	FlushFunc func(ctx context.Context, batch []O) error

	in     chan I
	wg     *sync.WaitGroup
	mu     sync.Mutex
	errs   []error
	stats  Stats
	Logger applogger.Logger
}

// Config configures a GenericBatchProcessor.
type Config[I any, O any] struct {
	MaxBatchSize  int
	FlushInterval time.Duration
	// MapFunc may return ErrSkip (or an error wrapping it) to drop an item quietly.
	MapFunc   func(I) (O, error)
	FlushFunc func(ctx context.Context, batch []O) error
	Logger    applogger.Logger
}

// NewGenericBatchProcessor creates and starts a GenericBatchProcessor.
// It returns immediately; processing happens in the background.
func NewGenericBatchProcessor[I any, O any](ctx context.Context, cfg Config[I, O]) *GenericBatchProcessor[I, O] {
	if cfg.Logger == nil {
		cfg.Logger = &applogger.NoopLogger{}
	}
	p := &GenericBatchProcessor[I, O]{
		MaxBatchSize:  cfg.MaxBatchSize,
		FlushInterval: cfg.FlushInterval,
		MapFunc:       cfg.MapFunc,
		FlushFunc:     cfg.FlushFunc,
		in:            make(chan I, 100),
		wg:            &sync.WaitGroup{},
		Logger:        cfg.Logger,
	}
	p.wg.Add(1)
	go p.start(ctx)
	cfg.Logger.Debug("batch processor started (max batch size %d)", cfg.MaxBatchSize)
	return p
}

func (p *GenericBatchProcessor[I, O]) start(ctx context.Context) {
	defer p.wg.Done()

	var batch []O

	var tick <-chan time.Time
	if p.FlushInterval > 0 {
		t := time.NewTicker(p.FlushInterval)
		defer t.Stop()
		tick = t.C
	}

	flush := func() {
		if len(batch) == 0 {
			return
		}
		err := p.FlushFunc(ctx, batch)
		p.mu.Lock()
		p.stats.Batches++
		if err != nil {
			p.errs = append(p.errs, err)
		} else {
			p.stats.Flushed += len(batch)
		}
		p.mu.Unlock()
		if err != nil {
			p.Logger.Warn("batch of %d failed to flush: %v", len(batch), err)
		}
		batch = make([]O, 0, p.MaxBatchSize)
	}

	for {
		select {
		case <-ctx.Done():
			p.Logger.Info("context done. flushing buffer")
			flush()
			// drain so Add never blocks after cancellation
			for range p.in {
			}
			return

		case item, ok := <-p.in:
			if !ok {
				flush()
				return
			}
			out, err := p.MapFunc(item)
			if err != nil {
				p.mu.Lock()
				p.stats.Skipped++
				p.mu.Unlock()
				if !errors.Is(err, ErrSkip) {
					p.Logger.Warn("item skipped: %v", err)
				}
				continue
			}
			batch = append(batch, out)
			if p.MaxBatchSize > 0 && len(batch) >= p.MaxBatchSize {
				flush()
			}

		case <-tick:
			flush()
		}
	}
}

// Add enqueues one item of type I.
func (p *GenericBatchProcessor[I, O]) Add(item I) {
	p.mu.Lock()
	p.stats.Added++
	p.mu.Unlock()
	p.in <- item
}

// Wait closes the input, blocks until the final flush has completed and
// returns every flush error joined.
func (p *GenericBatchProcessor[I, O]) Wait() (Stats, error) {
	close(p.in)
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats, errors.Join(p.errs...)
}
