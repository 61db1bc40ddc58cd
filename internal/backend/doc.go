// Package backend defines the read-only capability the daemon core depends
// on to answer questions about the underlying distribution's package
// universe, plus a deterministic fixture implementation used under
// OMG_TEST_MODE and by the test suite.
//
// # Contract
//
// Backend never mutates system state: every method is a read. Concrete
// per-distro implementations (pacman, apt/dpkg, …) are out of scope for the
// core and are expected to be supplied by an external collaborator at
// construction time; this package only ships the interface and the fixture.
//
// # Selection
//
// cmd/omgd always constructs Fixture, seeded by the family internal/config
// reads from OMG_TEST_DISTRO ("arch", "debian", or the default "generic"
// family). OMG_TEST_MODE does not change which Backend is built; when it
// is unset the daemon logs a warning and still serves the fixture.
package backend
