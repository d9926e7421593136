package batchprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flushRecorder records every batch handed to it.
type flushRecorder struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (r *flushRecorder) Fn(_ context.Context, batch []string) error {
	cp := make([]string, len(batch))
	copy(cp, batch)
	r.mu.Lock()
	r.calls = append(r.calls, cp)
	r.mu.Unlock()
	return r.err
}

func uidOf(n int) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("user %d: %w", n, ErrSkip)
	}
	return fmt.Sprintf("uid-%d", n), nil
}

func newProcessor(rec *flushRecorder, size int, interval time.Duration, log logger.Logger) *GenericBatchProcessor[int, string] {
	return NewGenericBatchProcessor(context.Background(), Config[int, string]{
		MaxBatchSize:  size,
		FlushInterval: interval,
		MapFunc:       uidOf,
		FlushFunc:     rec.Fn,
		Logger:        log,
	})
}

func TestEmpty(t *testing.T) {
	rec := &flushRecorder{}
	p := newProcessor(rec, 10, 0, logger.Get())
	stats, err := p.Wait()
	require.NoError(t, err)
	assert.Empty(t, rec.calls)
	assert.Equal(t, Stats{}, stats)
}

func TestCountFlush(t *testing.T) {
	rec := &flushRecorder{}
	p := newProcessor(rec, 2, 0, &logger.NoopLogger{})
	for i := 0; i < 5; i++ {
		p.Add(i)
	}
	stats, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"uid-0", "uid-1"}, {"uid-2", "uid-3"}, {"uid-4"}}, rec.calls)
	assert.Equal(t, Stats{Added: 5, Flushed: 5, Batches: 3}, stats)
}

func TestSkip(t *testing.T) {
	rec := &flushRecorder{}
	log := &logger.Recorder{}
	p := newProcessor(rec, 10, 0, log)
	p.Add(1)
	p.Add(-1)
	p.Add(2)
	stats, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"uid-1", "uid-2"}}, rec.calls)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, log.Count(logger.WARN))
}

func TestMapErrorWarns(t *testing.T) {
	rec := &flushRecorder{}
	log := &logger.Recorder{}
	p := NewGenericBatchProcessor(context.Background(), Config[int, string]{
		MaxBatchSize: 10,
		MapFunc:      func(int) (string, error) { return "", errors.New("bad") },
		FlushFunc:    rec.Fn,
		Logger:       log,
	})
	p.Add(1)
	stats, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, log.Count(logger.WARN))
}

func TestTimerFlush(t *testing.T) {
	rec := &flushRecorder{}
	p := newProcessor(rec, 100, 10*time.Millisecond, &logger.NoopLogger{})
	p.Add(1)
	assert.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.calls) == 1
	}, time.Second, 5*time.Millisecond)
	_, err := p.Wait()
	require.NoError(t, err)
}

func TestFlushError(t *testing.T) {
	rec := &flushRecorder{err: errors.New("delete failed")}
	p := newProcessor(rec, 1, 0, &logger.NoopLogger{})
	p.Add(1)
	p.Add(2)
	stats, err := p.Wait()
	assert.ErrorContains(t, err, "delete failed")
	assert.Equal(t, 2, stats.Batches)
	assert.Equal(t, 0, stats.Flushed)
}

func TestNilLogger(t *testing.T) {
	rec := &flushRecorder{}
	p := newProcessor(rec, 1, 0, nil)
	p.Add(1)
	_, err := p.Wait()
	assert.NoError(t, err)
}
