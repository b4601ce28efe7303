package looper

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DefaultCycleInterval, time.Duration(cfg.CycleInterval))
	assert.False(t, cfg.StrictConflicts)
	assert.Equal(t, 2, cfg.AsyncWorkers)
	assert.Equal(t, 2, cfg.ComputeWorkers)
}

func TestLoadConfigFileYAML(t *testing.T) {
	path := writeConfigFile(t, "looper.yaml", `
cycle_interval: 20ms
strict_conflicts: true
async_workers: 4
`)

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, time.Duration(cfg.CycleInterval))
	assert.True(t, cfg.StrictConflicts)
	assert.Equal(t, 4, cfg.AsyncWorkers)
	// Fields absent from the file keep their defaults.
	assert.Equal(t, 2, cfg.ComputeWorkers)
}

func TestLoadConfigFileTOML(t *testing.T) {
	path := writeConfigFile(t, "looper.toml", `
cycle_interval = "12.5ms"
compute_workers = 8
`)

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 12500*time.Microsecond, time.Duration(cfg.CycleInterval))
	assert.Equal(t, 8, cfg.ComputeWorkers)
}

func TestLoadConfigFileUnsupportedExtension(t *testing.T) {
	path := writeConfigFile(t, "looper.ini", "cycle_interval=20ms")

	_, err := LoadConfigFile(path)
	assert.Error(t, err)
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigFileInvalidDuration(t *testing.T) {
	path := writeConfigFile(t, "looper.yaml", "cycle_interval: fast\n")

	_, err := LoadConfigFile(path)
	assert.Error(t, err)
}

func TestEnvOverridesConfigFile(t *testing.T) {
	path := writeConfigFile(t, "looper.yaml", `
cycle_interval: 20ms
async_workers: 4
`)

	t.Setenv("LOOPER_CYCLE_INTERVAL", "5ms")
	t.Setenv("LOOPER_COMPUTE_WORKERS", "16")
	t.Setenv("LOOPER_STRICT_CONFLICTS", "true")

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Millisecond, time.Duration(cfg.CycleInterval))
	assert.Equal(t, 4, cfg.AsyncWorkers)
	assert.Equal(t, 16, cfg.ComputeWorkers)
	assert.True(t, cfg.StrictConflicts)
}

func TestEnvOverrideInvalidValue(t *testing.T) {
	path := writeConfigFile(t, "looper.yaml", "cycle_interval: 20ms\n")

	t.Setenv("LOOPER_ASYNC_WORKERS", "many")

	_, err := LoadConfigFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOOPER_ASYNC_WORKERS")
}
