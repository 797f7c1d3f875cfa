package healthcheck

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hnm/search/internal/fetch"
)

type fakeProber struct {
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
	codes    map[string]int
	errs     map[string]error
}

func (p *fakeProber) Head(ctx context.Context, url string) (int, error) {
	p.calls.Add(1)
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		seen := p.maxSeen.Load()
		if n <= seen || p.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if err := p.errs[url]; err != nil {
		return 0, err
	}
	if code, ok := p.codes[url]; ok {
		return code, nil
	}
	return http.StatusOK, nil
}

type fakeMutator struct {
	touched  map[int64]time.Time
	deleted  []int64
	failOnID int64
}

func (m *fakeMutator) TouchLastChecked(_ context.Context, id int64, checkedAt time.Time) error {
	if id == m.failOnID {
		return errors.New("touch failed")
	}
	m.touched[id] = checkedAt
	return nil
}

func (m *fakeMutator) Delete(_ context.Context, id int64) error {
	if id == m.failOnID {
		return errors.New("delete failed")
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type fakeStore struct {
	mu       sync.Mutex
	records  []Record
	txCount  int
	touched  map[int64]time.Time
	deleted  []int64
	failOnID int64
	loadErr  error
}

func newFakeStore(records ...Record) *fakeStore {
	return &fakeStore{records: records, touched: make(map[int64]time.Time)}
}

func (s *fakeStore) InTx(_ context.Context, fn func(Mutator) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txCount++
	tx := &fakeMutator{touched: make(map[int64]time.Time), failOnID: s.failOnID}
	if err := fn(tx); err != nil {
		return err
	}
	for id, at := range tx.touched {
		s.touched[id] = at
	}
	s.deleted = append(s.deleted, tx.deleted...)
	return nil
}

func (s *fakeStore) CountEntries(context.Context) (int, error) {
	return len(s.records), nil
}

func (s *fakeStore) EntriesByLastChecked(_ context.Context, limit int) ([]Record, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if limit > len(s.records) {
		limit = len(s.records)
	}
	return s.records[:limit], nil
}

func TestCheckAndReconcileMixedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gone-1", "/gone-2":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	records := []Record{
		{ID: 1, URL: server.URL + "/a"},
		{ID: 2, URL: server.URL + "/gone-1"},
		{ID: 3, URL: server.URL + "/b"},
		{ID: 4, URL: server.URL + "/gone-2"},
		{ID: 5, URL: server.URL + "/c"},
	}

	prober := fetch.NewProber("SiteSearchBot/1.0", 2*time.Second, nil)
	defer prober.Close()

	outcomes, err := NewChecker(prober).Check(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, outcomes, 5)

	byURL := outcomes.ByURL()
	require.Len(t, byURL, 5)
	for _, path := range []string{"/a", "/b", "/c"} {
		assert.Equal(t, StatusHealthy, byURL[server.URL+path].Status, path)
		assert.Equal(t, http.StatusOK, byURL[server.URL+path].StatusCode, path)
	}
	for _, path := range []string{"/gone-1", "/gone-2"} {
		assert.Equal(t, StatusDead, byURL[server.URL+path].Status, path)
		assert.Equal(t, http.StatusNotFound, byURL[server.URL+path].StatusCode, path)
	}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	summary, err := NewReconciler(store, WithClock(func() time.Time { return now })).Reconcile(context.Background(), outcomes)
	require.NoError(t, err)

	assert.Equal(t, 1, store.txCount)
	assert.Equal(t, Summary{Touched: 3, Deleted: 2}, summary)
	assert.ElementsMatch(t, []int64{2, 4}, store.deleted)
	assert.Equal(t, map[int64]time.Time{1: now, 3: now, 5: now}, store.touched)
}

func TestCheckMalformedWithoutNetwork(t *testing.T) {
	prober := &fakeProber{}
	records := []Record{
		{ID: 1, URL: "/relative/path"},
		{ID: 2, URL: ""},
		{ID: 3, URL: "mailto:someone@example.com"},
		{ID: 4, URL: "ftp://example.com/file"},
		{ID: 5, URL: "http://"},
		{ID: 6, URL: "http://[::1"},
		{ID: 7, URL: "example.com/no-scheme"},
	}

	outcomes, err := NewChecker(prober).Check(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, int32(0), prober.calls.Load())
	for _, outcome := range outcomes {
		assert.Equal(t, StatusMalformed, outcome.Status, outcome.URL)
	}

	store := newFakeStore()
	summary, err := NewReconciler(store).Reconcile(context.Background(), outcomes)
	require.NoError(t, err)
	assert.Equal(t, len(records), summary.Deleted)
	assert.Empty(t, store.touched)
}

func TestCheckPreservesOrderAndDeduplicates(t *testing.T) {
	prober := &fakeProber{codes: map[string]int{"https://example.com/x": http.StatusGone}}
	records := []Record{
		{ID: 10, URL: "https://example.com/x"},
		{ID: 11, URL: "https://example.com/y"},
		{ID: 12, URL: "https://example.com/x"},
	}

	outcomes, err := NewChecker(prober).Check(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, int32(2), prober.calls.Load())
	require.Len(t, outcomes, 3)
	assert.Equal(t, int64(10), outcomes[0].ID)
	assert.Equal(t, StatusDead, outcomes[0].Status)
	assert.Equal(t, int64(11), outcomes[1].ID)
	assert.Equal(t, StatusHealthy, outcomes[1].Status)
	assert.Equal(t, int64(12), outcomes[2].ID)
	assert.Equal(t, StatusDead, outcomes[2].Status)
}

func TestCheckConcurrencyLimit(t *testing.T) {
	prober := &fakeProber{delay: 20 * time.Millisecond}
	records := make([]Record, 20)
	for i := range records {
		records[i] = Record{ID: int64(i), URL: "https://example.com/" + string(rune('a'+i))}
	}

	outcomes, err := NewChecker(prober, WithConcurrency(3)).Check(context.Background(), records)
	require.NoError(t, err)

	assert.Len(t, outcomes, 20)
	assert.Equal(t, int32(20), prober.calls.Load())
	assert.LessOrEqual(t, prober.maxSeen.Load(), int32(3))
}

func TestCheckProbeFailureIsDead(t *testing.T) {
	probeErr := errors.New("connection refused")
	prober := &fakeProber{errs: map[string]error{"https://down.example.com/": probeErr}}

	outcomes, err := NewChecker(prober).Check(context.Background(), []Record{{ID: 1, URL: "https://down.example.com/"}})
	require.NoError(t, err)

	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusDead, outcomes[0].Status)
	assert.Equal(t, 0, outcomes[0].StatusCode)
	assert.ErrorIs(t, outcomes[0].Err, probeErr)
}

func TestCheckCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := NewChecker(&fakeProber{}).Check(ctx, []Record{{ID: 1, URL: "https://example.com/"}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, outcomes)
}

func TestReconcileRollsBackOnFailure(t *testing.T) {
	store := newFakeStore()
	store.failOnID = 3
	outcomes := Outcomes{
		{Record: Record{ID: 1, URL: "https://example.com/1"}, Status: StatusHealthy},
		{Record: Record{ID: 2, URL: "https://example.com/2"}, Status: StatusDead},
		{Record: Record{ID: 3, URL: "https://example.com/3"}, Status: StatusDead},
	}

	_, err := NewReconciler(store).Reconcile(context.Background(), outcomes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete entry 3")

	assert.Equal(t, 1, store.txCount)
	assert.Empty(t, store.touched)
	assert.Empty(t, store.deleted)
}

func TestReconcileUnclassifiedOutcome(t *testing.T) {
	store := newFakeStore()
	_, err := NewReconciler(store).Reconcile(context.Background(), Outcomes{{Record: Record{ID: 1}}})
	require.Error(t, err)
	assert.Empty(t, store.deleted)
}

func TestReconcileEmpty(t *testing.T) {
	store := newFakeStore()
	summary, err := NewReconciler(store).Reconcile(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)
	assert.Equal(t, 0, store.txCount)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		code int
		err  error
		want Status
	}{
		{200, nil, StatusHealthy},
		{204, nil, StatusHealthy},
		{301, nil, StatusHealthy},
		{399, nil, StatusHealthy},
		{199, nil, StatusDead},
		{400, nil, StatusDead},
		{404, nil, StatusDead},
		{500, nil, StatusDead},
		{0, errors.New("timeout"), StatusDead},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.code, tt.err), "code %d", tt.code)
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "healthy", StatusHealthy.String())
	assert.Equal(t, "dead", StatusDead.String())
	assert.Equal(t, "malformed", StatusMalformed.String())
	assert.Equal(t, "status(0)", Status(0).String())
}
