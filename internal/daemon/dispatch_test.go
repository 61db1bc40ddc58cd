package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"github.com/omgd/omgd/internal/audit"
	"github.com/omgd/omgd/internal/backend"
	"github.com/omgd/omgd/internal/cache"
	"github.com/omgd/omgd/internal/index"
	"github.com/omgd/omgd/internal/metrics"
	"github.com/omgd/omgd/internal/protocol"
	"github.com/omgd/omgd/internal/ratelimit"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	dir := t.TempDir()
	auditLog, err := audit.Open(filepath.Join(dir, "audit.jsonl"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { auditLog.Close() })

	fx := backend.NewFixture("generic")
	pkgs, err := fx.ListAvailable(context.Background())
	require.NoError(t, err)

	deps := Deps{
		Backend:    fx,
		BackendTag: "generic",
		Index:      index.NewHandle(index.Build(pkgs)),
		Cache:      cache.NewStore(cache.New(1000)),
		Metrics:    metrics.New(),
		Audit:      auditLog,
		AuditPath:  filepath.Join(dir, "audit.jsonl"),
		Limiter:    ratelimit.NewDefault(),
		Log:        zerolog.Nop(),
	}
	return NewDispatcher(deps)
}

func TestDispatchPing(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), protocol.Request{ID: 42, Type: protocol.TypePing})

	assert.True(t, resp.OK)
	assert.True(t, resp.Pong)
	assert.Equal(t, uint64(1), d.deps.Metrics.Snapshot().RequestsTotal)
	assert.Equal(t, uint64(0), d.deps.Metrics.Snapshot().RequestsFailed)
}

func TestDispatchInvalidInfoName(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), protocol.Request{ID: 7, Type: protocol.TypeInfo, Name: "vim; rm -rf /"})

	require.False(t, resp.OK)
	assert.Equal(t, protocol.CodeInvalidInput, resp.Code)
	assert.Contains(t, resp.Message, "Invalid character")

	snap := d.deps.Metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.RequestsTotal)
	assert.Equal(t, uint64(1), snap.RequestsFailed)
	assert.Equal(t, uint64(1), snap.ValidationFailures)

	result, err := audit.Verify(d.deps.AuditPath)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Entries)
	assert.True(t, result.OK)
}

func TestDispatchSearchCacheHitSkipsIndex(t *testing.T) {
	d := newTestDispatcher(t)
	want := []backend.PackageInfo{{Name: "vim", Version: "9.9.9", Source: "generic"}}
	d.deps.Cache.PutSearch("generic", "vim", 20, want)

	resp := d.Dispatch(context.Background(), protocol.Request{ID: 1, Type: protocol.TypeSearch, Query: "vim", Limit: 20})
	require.True(t, resp.OK)
	assert.Equal(t, want, resp.Search)
}

// countingBackend wraps the fixture and counts ExactInfo calls.
type countingBackend struct {
	*backend.Fixture
	exactCalls int
}

func (c *countingBackend) ExactInfo(ctx context.Context, name string) (backend.DetailedPackageInfo, error) {
	c.exactCalls++
	return c.Fixture.ExactInfo(ctx, name)
}

func TestDispatchInfoNegativeMissCoalescesBackendCalls(t *testing.T) {
	d := newTestDispatcher(t)
	counter := &countingBackend{Fixture: backend.NewFixture("generic")}
	d.deps.Backend = counter

	first := d.Dispatch(context.Background(), protocol.Request{ID: 3, Type: protocol.TypeInfo, Name: "doesnotexist"})
	require.False(t, first.OK)
	assert.Equal(t, protocol.CodeNotFound, first.Code)

	second := d.Dispatch(context.Background(), protocol.Request{ID: 4, Type: protocol.TypeInfo, Name: "doesnotexist"})
	require.False(t, second.OK)
	assert.Equal(t, protocol.CodeNotFound, second.Code)
	assert.True(t, d.deps.Cache.IsMiss("generic", "doesnotexist"))
	assert.Equal(t, 1, counter.exactCalls)
}

func TestDispatchOversizeBatchRejected(t *testing.T) {
	d := newTestDispatcher(t)
	batch := make([]protocol.Request, 150)
	for i := range batch {
		batch[i] = protocol.Request{Type: protocol.TypePing}
	}

	resp := d.Dispatch(context.Background(), protocol.Request{ID: 9, Type: protocol.TypeBatch, Batch: batch})
	require.False(t, resp.OK)
	assert.Equal(t, protocol.CodeInvalidInput, resp.Code)
	assert.Contains(t, resp.Message, "Batch size")
	assert.Nil(t, resp.BatchResults)
}

func TestDispatchBatchRunsSubrequestsInOrder(t *testing.T) {
	d := newTestDispatcher(t)
	req := protocol.Request{
		ID:   10,
		Type: protocol.TypeBatch,
		Batch: []protocol.Request{
			{ID: 1, Type: protocol.TypePing},
			{ID: 2, Type: protocol.TypeInfo, Name: "bad name!"},
		},
	}
	resp := d.Dispatch(context.Background(), req)
	require.True(t, resp.OK)
	require.Len(t, resp.BatchResults, 2)
	assert.True(t, resp.BatchResults[0].OK)
	assert.False(t, resp.BatchResults[1].OK)
	assert.Equal(t, protocol.CodeInvalidInput, resp.BatchResults[1].Code)
}

func TestDispatchBatchSubrequestsDoNotDoubleCountRequestsTotal(t *testing.T) {
	d := newTestDispatcher(t)
	req := protocol.Request{
		ID:   11,
		Type: protocol.TypeBatch,
		Batch: []protocol.Request{
			{Type: protocol.TypePing},
			{Type: protocol.TypePing},
			{Type: protocol.TypePing},
		},
	}
	d.Dispatch(context.Background(), req)
	assert.Equal(t, uint64(1), d.deps.Metrics.Snapshot().RequestsTotal)
}

func TestDispatchRateLimitExhaustion(t *testing.T) {
	d := newTestDispatcher(t)
	d.deps.Limiter = ratelimit.New(5, 0)

	var rejected int
	for i := 0; i < 10; i++ {
		resp := d.Dispatch(context.Background(), protocol.Request{ID: uint64(i), Type: protocol.TypePing})
		if !resp.OK {
			rejected++
			assert.Equal(t, protocol.CodeRateLimited, resp.Code)
		}
	}
	assert.Equal(t, 5, rejected)
	assert.Equal(t, uint64(5), d.deps.Metrics.Snapshot().RateLimitHits)
}

func TestDispatchMetricsSnapshot(t *testing.T) {
	d := newTestDispatcher(t)
	d.Dispatch(context.Background(), protocol.Request{ID: 1, Type: protocol.TypePing})

	resp := d.Dispatch(context.Background(), protocol.Request{ID: 2, Type: protocol.TypeMetrics})
	require.True(t, resp.OK)
	require.NotNil(t, resp.Metrics)
	assert.Equal(t, uint64(2), resp.Metrics.RequestsTotal) // the ping above, plus this metrics request itself
}

func TestDispatchSecurityAuditReportsChainHealth(t *testing.T) {
	d := newTestDispatcher(t)
	d.Dispatch(context.Background(), protocol.Request{ID: 1, Type: protocol.TypeInfo, Name: "bad name"})

	resp := d.Dispatch(context.Background(), protocol.Request{ID: 2, Type: protocol.TypeSecurityAudit})
	require.True(t, resp.OK)
	require.NotNil(t, resp.SecurityAudit)
	assert.True(t, resp.SecurityAudit.ChainOK)
	assert.Equal(t, 1, resp.SecurityAudit.EntryCount)
}

func TestDispatchStatusColdStartBlocksThenCachesIt(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), protocol.Request{ID: 1, Type: protocol.TypeStatus})
	require.True(t, resp.OK)
	require.NotNil(t, resp.Status)
	assert.True(t, resp.Status.TotalPackages > 0)

	_, ok := d.deps.Cache.GetStatus()
	assert.True(t, ok)
}

func TestDispatchExplicitCountIsCached(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), protocol.Request{ID: 1, Type: protocol.TypeExplicit})
	require.True(t, resp.OK)
	assert.True(t, resp.Explicit > 0)

	n, ok := d.deps.Cache.GetExplicitCount()
	require.True(t, ok)
	assert.Equal(t, resp.Explicit, n)
}

func TestDispatchSuggestReturnsNamesWithinEditDistance(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), protocol.Request{ID: 1, Type: protocol.TypeSuggest, Query: "vi", Limit: 5})
	require.True(t, resp.OK)
	assert.Contains(t, resp.Suggestions, "vim")
}

func TestDispatchSearchLimitRejectedAboveMax(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), protocol.Request{ID: 1, Type: protocol.TypeSearch, Query: "vim", Limit: 5000})
	require.False(t, resp.OK)
	assert.Equal(t, protocol.CodeInvalidInput, resp.Code)
}

func TestDispatchNestedBatchRejected(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), protocol.Request{
		ID:   1,
		Type: protocol.TypeBatch,
		Batch: []protocol.Request{
			{Type: protocol.TypeBatch, Batch: []protocol.Request{{Type: protocol.TypePing}}},
		},
	})
	require.False(t, resp.OK)
	assert.Equal(t, protocol.CodeInvalidInput, resp.Code)
}

// TestCallBackendBoundsConcurrency holds the only available semaphore slot
// and confirms a second callBackend call blocks until it is released,
// rather than running unbounded.
func TestCallBackendBoundsConcurrency(t *testing.T) {
	d := newTestDispatcher(t)
	d.backendSem = semaphore.NewWeighted(1)

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _ = callBackend(context.Background(), d, func() (struct{}, error) {
			close(holding)
			<-release
			return struct{}{}, nil
		})
	}()
	<-holding

	second := make(chan struct{})
	go func() {
		_, _ = callBackend(context.Background(), d, func() (struct{}, error) {
			return struct{}{}, nil
		})
		close(second)
	}()

	select {
	case <-second:
		t.Fatal("second callBackend ran while the single semaphore slot was held")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("second callBackend did not run after the slot was released")
	}
}

// TestCallBackendUnblocksOnContextCancel confirms a caller blocked waiting
// for a semaphore slot returns promptly when its context is cancelled,
// instead of waiting for the slot to free up.
func TestCallBackendUnblocksOnContextCancel(t *testing.T) {
	d := newTestDispatcher(t)
	d.backendSem = semaphore.NewWeighted(1)

	release := make(chan struct{})
	defer close(release)
	go func() {
		_, _ = callBackend(context.Background(), d, func() (struct{}, error) {
			<-release
			return struct{}{}, nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := callBackend(ctx, d, func() (struct{}, error) {
			return struct{}{}, nil
		})
		errCh <- err
	}()
	cancel()

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("callBackend did not return after context cancellation")
	}
}
