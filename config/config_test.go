package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tests to ensure the built-in configs are properly specified and parse.
func TestGettingConfigurations(t *testing.T) {
	for _, name := range ConfigNames() {
		_, err := Load(name)
		assert.Nil(t, err, "error loading config %s: %v", name, err)
	}

	_, err := Load("invalid.selector")
	assert.NotNil(t, err)
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.Nil(t, err)
	assert.Equal(t, Defaults(), *cfg)
	assert.Equal(t, uint64(10000), cfg.MaxQueueSize)
	assert.Equal(t, 16*time.Millisecond, cfg.LatencyThreshold.Std())
	assert.Equal(t, 100*time.Millisecond, cfg.ShutdownPollInterval.Std())
	assert.False(t, cfg.EnableOuroboros)
}

// Overriding default values with values from a named config.
func TestNamedConfigOverlaysDefaults(t *testing.T) {
	cfg, err := Load("local.small")
	require.Nil(t, err)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 2, cfg.WorkerCount())
	assert.Equal(t, uint64(100), cfg.MaxQueueSize)
	assert.Equal(t, "localhost:9091", cfg.HTTP.Addr)
	assert.Equal(t, float64(100), cfg.HTTP.SubmitRate)
	assert.Equal(t, 5*time.Minute, cfg.DreamThreshold.Std())
}

func TestInlineJSONAndYAML(t *testing.T) {
	cfg, err := Load(`{"workers": 3, "task_timeout": "2s"}`)
	require.Nil(t, err)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 2*time.Second, cfg.TaskTimeout.Std())

	cfg, err = Load("max_queue_size: 7\nidle_backoff_max: 5ms\n")
	require.Nil(t, err)
	assert.Equal(t, uint64(7), cfg.MaxQueueSize)
	assert.Equal(t, 5*time.Millisecond, cfg.IdleBackoffMax.Std())
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conductor.yaml")
	require.Nil(t, os.WriteFile(path, []byte("workers: 5\nsearch_root: /srv\n"), 0644))

	cfg, err := Load(path)
	require.Nil(t, err)
	assert.Equal(t, 5, cfg.Workers)
	assert.Equal(t, "/srv", cfg.SearchRoot)
}

func TestInvalidConfigs(t *testing.T) {
	for _, text := range []string{
		`{"max_queue_size": 0}`,
		`{"workers": -1}`,
		`{"dream_threshold": "soon"}`,
		`{"blocking_pool_size": 0}`,
		`{"task_timeout": "-1s"}`,
	} {
		_, err := Parse([]byte(text))
		assert.NotNil(t, err, "expected %s to be rejected", text)
	}
}

func TestDurationRoundTrip(t *testing.T) {
	b, err := Duration(1500 * time.Millisecond).MarshalJSON()
	require.Nil(t, err)
	assert.Equal(t, `"1.5s"`, string(b))

	var d Duration
	require.Nil(t, d.UnmarshalJSON([]byte("1000")))
	assert.Equal(t, time.Microsecond, d.Std())
}
