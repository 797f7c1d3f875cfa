package healthcheck

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobRunOnce(t *testing.T) {
	store := newFakeStore(
		Record{ID: 1, URL: "https://example.com/ok"},
		Record{ID: 2, URL: "https://example.com/gone"},
		Record{ID: 3, URL: "/relative/path"},
		Record{ID: 4, URL: "https://example.com/later"},
	)
	prober := &fakeProber{codes: map[string]int{"https://example.com/gone": http.StatusNotFound}}

	job := NewJob(store, NewChecker(prober), NewReconciler(store), WithBatchLimit(3))
	summary, err := job.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Summary{Touched: 1, Deleted: 2}, summary)
	assert.ElementsMatch(t, []int64{2, 3}, store.deleted)
	assert.Contains(t, store.touched, int64(1))
	assert.NotContains(t, store.touched, int64(4))
	assert.Equal(t, int32(2), prober.calls.Load())
}

func TestJobCompletionHook(t *testing.T) {
	store := newFakeStore(Record{ID: 1, URL: "https://example.com/ok"})

	var calls []Summary
	hook := func(_ context.Context, s Summary) { calls = append(calls, s) }
	job := NewJob(store, NewChecker(&fakeProber{}), NewReconciler(store), WithCompletionHook(hook))

	_, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, Summary{Touched: 1}, calls[0])

	store.loadErr = errors.New("database is locked")
	_, err = job.RunOnce(context.Background())
	require.Error(t, err)
	assert.Len(t, calls, 1)
}

func TestJobRunOnceLoadError(t *testing.T) {
	store := newFakeStore()
	store.loadErr = errors.New("database is locked")

	job := NewJob(store, NewChecker(&fakeProber{}), NewReconciler(store))
	_, err := job.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, store.txCount)
}

func TestJobRunOnceEmptyStore(t *testing.T) {
	store := newFakeStore()

	job := NewJob(store, NewChecker(&fakeProber{}), NewReconciler(store), WithBatchFraction(0.5))
	summary, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)
	assert.Equal(t, 0, store.txCount)
}

func TestJobBatchSize(t *testing.T) {
	tests := []struct {
		name     string
		opts     []JobOption
		total    int
		expected int
	}{
		{"default limit", nil, 1000, 200},
		{"custom limit", []JobOption{WithBatchLimit(50)}, 1000, 50},
		{"fraction rounds up", []JobOption{WithBatchFraction(0.1)}, 15, 2},
		{"fraction capped by limit", []JobOption{WithBatchFraction(0.5)}, 1000, 200},
		{"fraction of nothing", []JobOption{WithBatchFraction(0.5)}, 0, 0},
		{"invalid fraction ignored", []JobOption{WithBatchFraction(2)}, 10, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewJob(newFakeStore(), nil, nil, tt.opts...)
			assert.Equal(t, tt.expected, job.BatchSize(tt.total))
		})
	}
}

func TestJobRunStopsOnCancel(t *testing.T) {
	store := newFakeStore(Record{ID: 1, URL: "https://example.com/"})
	job := NewJob(store, NewChecker(&fakeProber{}), NewReconciler(store))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- job.Run(ctx, 10*time.Millisecond)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.GreaterOrEqual(t, store.txCount, 2)
}
