package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/omgd/omgd/internal/backend"
)

// Default TTLs per key class, as named in the data model.
const (
	SearchTTL = 60 * time.Second
	InfoTTL   = 60 * time.Second
	MissTTL   = 5 * time.Second
	StatusTTL = 300 * time.Second
)

// StatusSnapshot is the logical, fully-replaced system status record cached
// under the "status" key.
type StatusSnapshot struct {
	TotalPackages           int
	ExplicitPackages        int
	OrphanPackages          int
	UpdatesAvailable        int
	SecurityVulnerabilities int
	RuntimeVersions         []backend.RuntimeVersion
}

// Store layers the five named key classes over a single Cache, enforcing
// the info/info-miss mutual-exclusion invariant. Search and info keys are
// namespaced by an opaque backend tag (the implementers' choice documented
// in DESIGN.md for the spec's open question on cache-key sharing across
// backends).
type Store struct {
	c *Cache
}

// NewStore wraps an existing Cache. Pass cache.New(0) for the default
// capacity.
func NewStore(c *Cache) *Store { return &Store{c: c} }

func searchKey(backendTag, query string, limit int) string {
	return fmt.Sprintf("search:%s:%s:%d", backendTag, strings.ToLower(query), limit)
}

func infoKey(backendTag, name string) string { return "info:" + backendTag + ":" + name }
func missKey(backendTag, name string) string { return "info-miss:" + backendTag + ":" + name }

// GetSearch returns a cached search result list, if present and fresh.
func (s *Store) GetSearch(backendTag, query string, limit int) ([]backend.PackageInfo, bool) {
	v, ok := s.c.Get(searchKey(backendTag, query, limit))
	if !ok {
		return nil, false
	}
	return v.([]backend.PackageInfo), true
}

// PutSearch caches a search result list.
func (s *Store) PutSearch(backendTag, query string, limit int, results []backend.PackageInfo) {
	s.c.Insert(searchKey(backendTag, query, limit), results, SearchTTL)
}

// GetInfo returns a cached detailed package record, if present and fresh.
func (s *Store) GetInfo(backendTag, name string) (backend.DetailedPackageInfo, bool) {
	v, ok := s.c.Get(infoKey(backendTag, name))
	if !ok {
		return backend.DetailedPackageInfo{}, false
	}
	return v.(backend.DetailedPackageInfo), true
}

// PutInfo caches a detailed package record and atomically clears any
// negative-miss entry for the same name (invariants I2/I3).
func (s *Store) PutInfo(backendTag, name string, info backend.DetailedPackageInfo) {
	s.c.InsertAndInvalidate(infoKey(backendTag, name), info, InfoTTL, missKey(backendTag, name))
}

// RecordMiss marks name as known-absent from the backend for MissTTL.
func (s *Store) RecordMiss(backendTag, name string) {
	s.c.Insert(missKey(backendTag, name), struct{}{}, MissTTL)
}

// IsMiss reports whether name currently carries a fresh negative-miss
// marker.
func (s *Store) IsMiss(backendTag, name string) bool {
	_, ok := s.c.Get(missKey(backendTag, name))
	return ok
}

// GetStatus returns the cached status snapshot, if present and fresh.
func (s *Store) GetStatus() (StatusSnapshot, bool) {
	v, ok := s.c.Get("status")
	if !ok {
		return StatusSnapshot{}, false
	}
	return v.(StatusSnapshot), true
}

// UpdateStatus fully replaces the cached status snapshot.
func (s *Store) UpdateStatus(snap StatusSnapshot) {
	s.c.Insert("status", snap, StatusTTL)
}

// GetUpdates returns the cached pending-upgrade list.
func (s *Store) GetUpdates() ([]backend.UpdateInfo, bool) {
	v, ok := s.c.Get("updates")
	if !ok {
		return nil, false
	}
	return v.([]backend.UpdateInfo), true
}

// PutUpdates caches the pending-upgrade list.
func (s *Store) PutUpdates(updates []backend.UpdateInfo) {
	s.c.Insert("updates", updates, SearchTTL)
}

// GetExplicitCount returns the cached explicit-package count.
func (s *Store) GetExplicitCount() (int, bool) {
	v, ok := s.c.Get("explicit-count")
	if !ok {
		return 0, false
	}
	return v.(int), true
}

// PutExplicitCount caches the explicit-package count.
func (s *Store) PutExplicitCount(n int) {
	s.c.Insert("explicit-count", n, SearchTTL)
}

// Invalidate clears every cached entry; used on an administrative reset.
func (s *Store) Invalidate() {
	s.c.Clear()
}
