package config

import (
	"flag"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFallsBackToTmpWithoutXDGRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	t.Setenv("OMG_SOCKET_PATH", "")

	cfg := Load()
	assert.Equal(t, "/tmp/omg.sock", cfg.SocketPath)
	assert.Equal(t, "/tmp/omg.status", cfg.StatusPath)
}

func TestLoadPrefersXDGRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	t.Setenv("OMG_SOCKET_PATH", "")

	cfg := Load()
	assert.Equal(t, "/run/user/1000/omg.sock", cfg.SocketPath)
	assert.Equal(t, "/run/user/1000/omg.status", cfg.StatusPath)
}

func TestOMGSocketPathOverridesXDGDefault(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	t.Setenv("OMG_SOCKET_PATH", "/custom/omg.sock")

	cfg := Load()
	assert.Equal(t, "/custom/omg.sock", cfg.SocketPath)
	// Status path has no dedicated override and still follows XDG_RUNTIME_DIR.
	assert.Equal(t, "/run/user/1000/omg.status", cfg.StatusPath)
}

func TestDaemonDataDirDefaultsToDataDir(t *testing.T) {
	t.Setenv("OMG_DATA_DIR", "/srv/omg")
	t.Setenv("OMG_DAEMON_DATA_DIR", "")

	cfg := Load()
	assert.Equal(t, "/srv/omg", cfg.DataDir)
	assert.Equal(t, "/srv/omg", cfg.DaemonDataDir)
	assert.Equal(t, filepath.Join("/srv/omg", "audit", "audit.jsonl"), cfg.AuditLogPath())
}

func TestDaemonDataDirOverrideIsIndependent(t *testing.T) {
	t.Setenv("OMG_DATA_DIR", "/srv/omg")
	t.Setenv("OMG_DAEMON_DATA_DIR", "/var/lib/omgd")

	cfg := Load()
	assert.Equal(t, "/srv/omg", cfg.DataDir)
	assert.Equal(t, "/var/lib/omgd", cfg.DaemonDataDir)
}

func TestTestModeAndDistroFromEnv(t *testing.T) {
	t.Setenv("OMG_TEST_MODE", "1")
	t.Setenv("OMG_TEST_DISTRO", "arch")

	cfg := Load()
	assert.True(t, cfg.TestMode)
	assert.Equal(t, "arch", cfg.TestDistro)
}

func TestTestModeDefaultsOffWithGenericDistro(t *testing.T) {
	t.Setenv("OMG_TEST_MODE", "")
	t.Setenv("OMG_TEST_DISTRO", "")

	cfg := Load()
	assert.False(t, cfg.TestMode)
	assert.Equal(t, "generic", cfg.TestDistro)
}

func TestResourceBoundsDefaultToSpecValues(t *testing.T) {
	cfg := Load()
	assert.Equal(t, DefaultMaxConnections, cfg.MaxConnections)
	assert.Equal(t, DefaultMaxBatchSize, cfg.MaxBatchSize)
	assert.Equal(t, DefaultMaxFrameSize, cfg.MaxFrameSize)
	assert.Equal(t, DefaultCacheCapacity, cfg.CacheCapacity)
}

func TestRegisterFlagsOverridesEnvironmentDefault(t *testing.T) {
	t.Setenv("OMG_SOCKET_PATH", "/env/omg.sock")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-socket=/flag/omg.sock", "-cache-capacity=500"}))

	assert.Equal(t, "/flag/omg.sock", cfg.SocketPath)
	assert.Equal(t, 500, cfg.CacheCapacity)
}

func TestRegisterFlagsWithoutOverridesKeepsEnvironmentDefault(t *testing.T) {
	t.Setenv("OMG_SOCKET_PATH", "/env/omg.sock")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := RegisterFlags(fs)
	require.NoError(t, fs.Parse(nil))

	assert.Equal(t, "/env/omg.sock", cfg.SocketPath)
}
