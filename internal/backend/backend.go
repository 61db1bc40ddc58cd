package backend

import (
	"context"
	"errors"
)

// ErrNotFound is returned by ExactInfo when the name is not present in the
// backend's package universe.
var ErrNotFound = errors.New("backend: package not found")

// Backend is the core's uniform, read-only view of the underlying
// distribution's package universe. Implementations may or may not be
// internally thread-safe; callers in internal/daemon treat every method as
// potentially blocking and dispatch it to a bounded worker pool.
type Backend interface {
	// ListInstalled returns every package currently installed, including
	// its InstallReason (explicit vs dependency).
	ListInstalled(ctx context.Context) ([]DetailedPackageInfo, error)

	// ListAvailable returns every package the distribution knows about,
	// installed or not. This is the seed for the package index.
	ListAvailable(ctx context.Context) ([]DetailedPackageInfo, error)

	// QueryUpdates returns the set of pending upgrades.
	QueryUpdates(ctx context.Context) ([]UpdateInfo, error)

	// ExactInfo returns the canonical record for name, or a wrapped
	// ErrNotFound if name is unknown to the backend.
	ExactInfo(ctx context.Context, name string) (DetailedPackageInfo, error)

	// CountOrphans returns the number of installed packages that are
	// neither explicitly installed nor depended upon by anything else.
	CountOrphans(ctx context.Context) (int, error)

	// RuntimeVersions best-effort resolves a small fixed set of language
	// runtime versions (node, python, go, rustc, …) present on the host.
	// Runtimes that cannot be resolved are omitted, never erred.
	RuntimeVersions(ctx context.Context) ([]RuntimeVersion, error)
}
