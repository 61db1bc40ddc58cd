package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/omgd/omgd/internal/audit"
	"github.com/omgd/omgd/internal/backend"
	"github.com/omgd/omgd/internal/cache"
	"github.com/omgd/omgd/internal/index"
	"github.com/omgd/omgd/internal/protocol"
	"github.com/omgd/omgd/internal/validate"
)

// DefaultSearchLimit is used for Search/Suggest requests that omit a limit.
const DefaultSearchLimit = 20

// DefaultMaxBackendConcurrency bounds how many Backend calls may be in
// flight at once. The backend may shell out to the system package manager
// and is potentially serialising internally; this keeps a burst of
// requests from piling up blocking-pool work against it.
const DefaultMaxBackendConcurrency = 8

// Dispatcher routes decoded requests through validation, rate limiting, and
// the matching handler, updating metrics and the audit log as it goes. One
// Dispatcher serves every connection; it holds no per-connection state.
type Dispatcher struct {
	deps Deps

	sf         singleflight.Group
	backendSem *semaphore.Weighted

	statusMu  sync.Mutex
	lastKnown *protocol.StatusResult
}

// NewDispatcher builds a Dispatcher over deps. It panics if any required
// dependency is nil, since there is no safe way to serve requests without
// one.
func NewDispatcher(deps Deps) *Dispatcher {
	switch {
	case deps.Backend == nil:
		panic("daemon: NewDispatcher: nil Backend")
	case deps.Index == nil:
		panic("daemon: NewDispatcher: nil Index")
	case deps.Cache == nil:
		panic("daemon: NewDispatcher: nil Cache")
	case deps.Metrics == nil:
		panic("daemon: NewDispatcher: nil Metrics")
	case deps.Audit == nil:
		panic("daemon: NewDispatcher: nil Audit")
	case deps.Limiter == nil:
		panic("daemon: NewDispatcher: nil Limiter")
	}
	if deps.MaxBatchSize <= 0 {
		deps.MaxBatchSize = 100
	}
	if deps.MaxLimit <= 0 {
		deps.MaxLimit = 1000
	}
	if deps.MaxBackendConcurrency <= 0 {
		deps.MaxBackendConcurrency = DefaultMaxBackendConcurrency
	}
	return &Dispatcher{
		deps:       deps,
		backendSem: semaphore.NewWeighted(int64(deps.MaxBackendConcurrency)),
	}
}

// callBackend runs fn with at most MaxBackendConcurrency other Backend
// calls in flight, per the backend's potentially-serialising, potentially-
// blocking contract.
func callBackend[T any](ctx context.Context, d *Dispatcher, fn func() (T, error)) (T, error) {
	var zero T
	if err := d.backendSem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	defer d.backendSem.Release(1)
	return fn()
}

// Dispatch runs the full per-request pipeline for one top-level request:
// count it, spend a rate-limit token, then validate and route. Batch
// sub-requests are routed directly (see handleBatch) and do not spend a
// second token — the batch as a whole is the billable unit.
func (d *Dispatcher) Dispatch(ctx context.Context, req protocol.Request) protocol.Response {
	d.deps.Metrics.IncRequestsTotal()

	if !d.deps.Limiter.Allow("") {
		d.deps.Metrics.IncRequestsFailed()
		d.deps.Metrics.IncRateLimitHits()
		if d.deps.Audit.IsDegraded() {
			return protocol.Error(req.ID, protocol.CodeDegraded, "daemon is in degraded mode, cannot record policy violation")
		}
		d.auditAppend(audit.KindRateLimited, fmt.Sprintf("rate limit exceeded for request type %q", req.Type))
		return protocol.Error(req.ID, protocol.CodeRateLimited, "rate limit exceeded")
	}

	return d.route(ctx, req)
}

// route validates and executes a single request without touching the rate
// limiter or requests_total; Dispatch calls it for the top-level request,
// and the batch handler calls it again for each sub-request.
func (d *Dispatcher) route(ctx context.Context, req protocol.Request) protocol.Response {
	if err := d.validate(req); err != nil {
		d.deps.Metrics.IncRequestsFailed()
		d.deps.Metrics.IncValidationFailures()
		if d.deps.Audit.IsDegraded() {
			return protocol.Error(req.ID, protocol.CodeDegraded, "daemon is in degraded mode, cannot record policy violation")
		}
		d.auditAppend(audit.KindValidationFailure, fmt.Sprintf("type=%s field=%s fingerprint=%s", req.Type, err.field, validate.Fingerprint(err.value)))
		return protocol.Error(req.ID, protocol.CodeInvalidInput, err.Error())
	}

	resp, err := d.handle(ctx, req)
	if err != nil {
		d.deps.Metrics.IncRequestsFailed()
		return d.errorResponse(req.ID, err)
	}
	return resp
}

type fieldError struct {
	field string
	value string
	err   error
}

func (e *fieldError) Error() string { return e.err.Error() }

func (d *Dispatcher) validate(req protocol.Request) *fieldError {
	switch req.Type {
	case protocol.TypeInfo:
		if err := validate.ValidatePackageName(req.Name); err != nil {
			return &fieldError{field: "name", value: req.Name, err: err}
		}
	case protocol.TypeSearch, protocol.TypeDebianSearch, protocol.TypeArchSearch, protocol.TypeSuggest:
		if req.Limit < 0 || req.Limit > d.deps.MaxLimit {
			return &fieldError{field: "limit", value: fmt.Sprintf("%d", req.Limit), err: fmt.Errorf("%w: limit exceeds maximum", validate.ErrInvalidInput)}
		}
	case protocol.TypeBatch:
		if len(req.Batch) > d.deps.MaxBatchSize {
			return &fieldError{field: "batch", value: fmt.Sprintf("%d", len(req.Batch)), err: fmt.Errorf("%w: Batch size exceeds maximum of %d", validate.ErrInvalidInput, d.deps.MaxBatchSize)}
		}
		for _, sub := range req.Batch {
			if sub.Type == protocol.TypeBatch {
				return &fieldError{field: "batch", value: "nested", err: fmt.Errorf("%w: nested batch requests are not allowed", validate.ErrInvalidInput)}
			}
		}
	}
	return nil
}

func (d *Dispatcher) handle(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	switch req.Type {
	case protocol.TypePing:
		resp := protocol.Success(req.ID)
		resp.Pong = true
		return resp, nil
	case protocol.TypeSearch, protocol.TypeDebianSearch, protocol.TypeArchSearch:
		return d.handleSearch(req)
	case protocol.TypeInfo:
		return d.handleInfo(ctx, req)
	case protocol.TypeSuggest:
		return d.handleSuggest(req)
	case protocol.TypeStatus:
		return d.handleStatus(ctx, req)
	case protocol.TypeExplicit:
		return d.handleExplicit(ctx, req)
	case protocol.TypeUpdates:
		return d.handleUpdates(ctx, req)
	case protocol.TypeMetrics:
		resp := protocol.Success(req.ID)
		snap := d.deps.Metrics.Snapshot()
		resp.Metrics = &snap
		return resp, nil
	case protocol.TypeSecurityAudit:
		return d.handleSecurityAudit(req)
	case protocol.TypeBatch:
		return d.handleBatch(ctx, req), nil
	default:
		return protocol.Response{}, fmt.Errorf("%w: unknown request type %q", errProtocol, req.Type)
	}
}

func (d *Dispatcher) limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	return limit
}

func (d *Dispatcher) handleSearch(req protocol.Request) (protocol.Response, error) {
	limit := d.limitOrDefault(req.Limit)
	if hits, ok := d.deps.Cache.GetSearch(d.deps.BackendTag, req.Query, limit); ok {
		resp := protocol.Success(req.ID)
		resp.Search = hits
		return resp, nil
	}
	hits := d.deps.Index.Load().Search(req.Query, limit)
	d.deps.Cache.PutSearch(d.deps.BackendTag, req.Query, limit, hits)
	resp := protocol.Success(req.ID)
	resp.Search = hits
	return resp, nil
}

func (d *Dispatcher) handleInfo(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if info, ok := d.deps.Cache.GetInfo(d.deps.BackendTag, req.Name); ok {
		resp := protocol.Success(req.ID)
		resp.Info = &info
		return resp, nil
	}
	if d.deps.Cache.IsMiss(d.deps.BackendTag, req.Name) {
		return protocol.Response{}, errNotFound
	}

	info, err := callBackend(ctx, d, func() (backend.DetailedPackageInfo, error) {
		return d.deps.Backend.ExactInfo(ctx, req.Name)
	})
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			d.deps.Cache.RecordMiss(d.deps.BackendTag, req.Name)
			return protocol.Response{}, errNotFound
		}
		return protocol.Response{}, fmt.Errorf("%w: %v", errInternal, err)
	}
	d.deps.Cache.PutInfo(d.deps.BackendTag, req.Name, info)
	resp := protocol.Success(req.ID)
	resp.Info = &info
	return resp, nil
}

func (d *Dispatcher) handleSuggest(req protocol.Request) (protocol.Response, error) {
	k := d.limitOrDefault(req.Limit)
	suggestions := d.deps.Index.Load().Suggest(req.Query, k)
	resp := protocol.Success(req.ID)
	resp.Suggestions = suggestions
	return resp, nil
}

func (d *Dispatcher) handleExplicit(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if n, ok := d.deps.Cache.GetExplicitCount(); ok {
		resp := protocol.Success(req.ID)
		resp.Explicit = n
		return resp, nil
	}
	installed, err := callBackend(ctx, d, func() ([]backend.DetailedPackageInfo, error) {
		return d.deps.Backend.ListInstalled(ctx)
	})
	if err != nil {
		return protocol.Response{}, fmt.Errorf("%w: %v", errInternal, err)
	}
	n := 0
	for _, p := range installed {
		if p.Reason == backend.ReasonExplicit {
			n++
		}
	}
	d.deps.Cache.PutExplicitCount(n)
	resp := protocol.Success(req.ID)
	resp.Explicit = n
	return resp, nil
}

func (d *Dispatcher) handleUpdates(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if updates, ok := d.deps.Cache.GetUpdates(); ok {
		resp := protocol.Success(req.ID)
		resp.Updates = updates
		return resp, nil
	}
	updates, err := callBackend(ctx, d, func() ([]backend.UpdateInfo, error) {
		return d.deps.Backend.QueryUpdates(ctx)
	})
	if err != nil {
		return protocol.Response{}, fmt.Errorf("%w: %v", errInternal, err)
	}
	d.deps.Cache.PutUpdates(updates)
	resp := protocol.Success(req.ID)
	resp.Updates = updates
	return resp, nil
}

func (d *Dispatcher) handleSecurityAudit(req protocol.Request) (protocol.Response, error) {
	d.deps.Metrics.IncSecurityAuditRequests()
	result, err := audit.Verify(d.deps.AuditPath)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("%w: %v", errInternal, err)
	}
	resp := protocol.Success(req.ID)
	resp.SecurityAudit = &protocol.SecurityAuditResult{
		ChainOK:    result.OK,
		EntryCount: result.Entries,
		HeadHash:   result.LastHash,
	}
	return resp, nil
}

func (d *Dispatcher) handleBatch(ctx context.Context, req protocol.Request) protocol.Response {
	results := make([]protocol.Response, len(req.Batch))
	for i, sub := range req.Batch {
		results[i] = d.route(ctx, sub)
	}
	resp := protocol.Success(req.ID)
	resp.BatchResults = results
	return resp
}

// handleStatus serves a cached snapshot when fresh, otherwise serves the
// last known snapshot (if any) while a singleflight-coalesced refresh runs
// in the background; only a cold start with nothing cached yet blocks on
// the refresh.
func (d *Dispatcher) handleStatus(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if snap, ok := d.deps.Cache.GetStatus(); ok {
		result := statusResultFromSnapshot(snap)
		d.setLastKnown(&result)
		resp := protocol.Success(req.ID)
		resp.Status = &result
		return resp, nil
	}

	if known := d.getLastKnown(); known != nil {
		go d.refreshStatus(context.Background())
		resp := protocol.Success(req.ID)
		resp.Status = known
		return resp, nil
	}

	snap, err := d.refreshStatus(ctx)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("%w: %v", errInternal, err)
	}
	result := statusResultFromSnapshot(snap)
	resp := protocol.Success(req.ID)
	resp.Status = &result
	return resp, nil
}

// refreshStatus rebuilds the status snapshot from the backend, coalescing
// concurrent callers behind a single in-flight computation.
func (d *Dispatcher) refreshStatus(ctx context.Context) (cache.StatusSnapshot, error) {
	v, err, _ := d.sf.Do("status-refresh", func() (any, error) {
		available, err := callBackend(ctx, d, func() ([]backend.DetailedPackageInfo, error) {
			return d.deps.Backend.ListAvailable(ctx)
		})
		if err != nil {
			return nil, err
		}
		orphans, err := callBackend(ctx, d, func() (int, error) {
			return d.deps.Backend.CountOrphans(ctx)
		})
		if err != nil {
			return nil, err
		}
		installed, err := callBackend(ctx, d, func() ([]backend.DetailedPackageInfo, error) {
			return d.deps.Backend.ListInstalled(ctx)
		})
		if err != nil {
			return nil, err
		}
		explicit := 0
		for _, p := range installed {
			if p.Reason == backend.ReasonExplicit {
				explicit++
			}
		}
		updates, err := callBackend(ctx, d, func() ([]backend.UpdateInfo, error) {
			return d.deps.Backend.QueryUpdates(ctx)
		})
		if err != nil {
			return nil, err
		}
		runtimes, err := callBackend(ctx, d, func() ([]backend.RuntimeVersion, error) {
			return d.deps.Backend.RuntimeVersions(ctx)
		})
		if err != nil {
			return nil, err
		}
		snap := cache.StatusSnapshot{
			TotalPackages:           len(available),
			ExplicitPackages:        explicit,
			OrphanPackages:          orphans,
			UpdatesAvailable:        len(updates),
			SecurityVulnerabilities: 0,
			RuntimeVersions:         runtimes,
		}
		d.deps.Cache.UpdateStatus(snap)
		return snap, nil
	})
	if err != nil {
		return cache.StatusSnapshot{}, err
	}
	snap := v.(cache.StatusSnapshot)
	result := statusResultFromSnapshot(snap)
	d.setLastKnown(&result)
	return snap, nil
}

// RefreshIndex rebuilds the package index from the backend and publishes
// the new generation, coalescing concurrent callers.
func (d *Dispatcher) RefreshIndex(ctx context.Context) error {
	_, err, _ := d.sf.Do("index-refresh", func() (any, error) {
		pkgs, err := callBackend(ctx, d, func() ([]backend.DetailedPackageInfo, error) {
			return d.deps.Backend.ListAvailable(ctx)
		})
		if err != nil {
			return nil, err
		}
		d.deps.Index.Publish(index.Build(pkgs))
		return nil, nil
	})
	return err
}

// LastStatus returns the cached status snapshot, or a zero value and false
// if no refresh has completed yet or the cached snapshot has outlived
// cache.StatusTTL.
func (d *Dispatcher) LastStatus() (cache.StatusSnapshot, bool) {
	return d.deps.Cache.GetStatus()
}

func (d *Dispatcher) setLastKnown(r *protocol.StatusResult) {
	d.statusMu.Lock()
	d.lastKnown = r
	d.statusMu.Unlock()
}

func (d *Dispatcher) getLastKnown() *protocol.StatusResult {
	d.statusMu.Lock()
	defer d.statusMu.Unlock()
	return d.lastKnown
}

func statusResultFromSnapshot(snap cache.StatusSnapshot) protocol.StatusResult {
	return protocol.StatusResult{
		TotalPackages:           snap.TotalPackages,
		ExplicitPackages:        snap.ExplicitPackages,
		OrphanPackages:          snap.OrphanPackages,
		UpdatesAvailable:        snap.UpdatesAvailable,
		SecurityVulnerabilities: snap.SecurityVulnerabilities,
		RuntimeVersions:         snap.RuntimeVersions,
	}
}

func (d *Dispatcher) auditAppend(kind audit.Kind, message string) {
	if err := d.deps.Audit.Append(kind, message); err != nil {
		d.deps.Log.Warn().Err(err).Msg("daemon: audit append failed")
	}
}
