package daemon

import (
	"github.com/rs/zerolog"

	"github.com/omgd/omgd/internal/audit"
	"github.com/omgd/omgd/internal/backend"
	"github.com/omgd/omgd/internal/cache"
	"github.com/omgd/omgd/internal/index"
	"github.com/omgd/omgd/internal/metrics"
	"github.com/omgd/omgd/internal/ratelimit"
)

// Deps bundles the core subsystems a Dispatcher routes requests through.
// Backend, Index, Cache, Metrics, Audit, and Limiter are required;
// NewDispatcher panics if any of them is nil, since a half-wired dispatcher
// has no safe degraded behavior to fall back to. MaxBatchSize, MaxLimit,
// and MaxBackendConcurrency fall back to defaults when zero or negative.
type Deps struct {
	Backend    backend.Backend
	BackendTag string
	Index      *index.Handle
	Cache      *cache.Store
	Metrics    *metrics.Registry
	Audit      *audit.Logger
	AuditPath  string
	Limiter    *ratelimit.Limiter
	Log        zerolog.Logger

	MaxBatchSize          int
	MaxLimit              int
	MaxBackendConcurrency int
}
