// Package config holds the conductor configuration: defaults, named built-in
// configurations and parsing of YAML or JSON text.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/luci/go-render/render"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"sigs.k8s.io/yaml"
)

// Duration is a time.Duration that marshals as a Go duration string ("16ms").
// Bare numbers are accepted as nanoseconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return errors.Wrapf(err, "invalid duration %q", s)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.Errorf("invalid duration %s", string(b))
	}
	*d = Duration(n)
	return nil
}

// Config is the full conductor configuration. Worker count and max queue
// size are fixed once the orchestrator is constructed.
type Config struct {
	Workers              int      `json:"workers"`        // 0 means runtime.NumCPU()
	MaxQueueSize         uint64   `json:"max_queue_size"` // approximate pending limit
	EnableGPU            bool     `json:"enable_gpu"`
	DreamThreshold       Duration `json:"dream_threshold"`
	DreamCheckInterval   Duration `json:"dream_check_interval"`
	LatencyThreshold     Duration `json:"latency_threshold"`
	EnableOuroboros      bool     `json:"enable_ouroboros"`
	MetricsInterval      Duration `json:"metrics_interval"`
	ShutdownPollInterval Duration `json:"shutdown_poll_interval"`
	IdleBackoffMax       Duration `json:"idle_backoff_max"`
	TaskTimeout          Duration `json:"task_timeout"` // 0 disables
	SearchRoot           string   `json:"search_root"`
	BlockingPoolSize     int      `json:"blocking_pool_size"`

	HTTP HTTPConfig `json:"http"`
}

type HTTPConfig struct {
	Addr        string  `json:"addr"`
	SubmitRate  float64 `json:"submit_rate"` // submissions per second
	SubmitBurst int     `json:"submit_burst"`
}

func (c Config) String() string {
	return render.Render(c)
}

// WorkerCount resolves the configured worker count.
func (c Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// Validate rejects values the runtime cannot operate with.
func (c Config) Validate() error {
	switch {
	case c.Workers < 0:
		return errors.Errorf("workers must be >= 0, got %d", c.Workers)
	case c.MaxQueueSize == 0:
		return errors.New("max_queue_size must be > 0")
	case c.DreamThreshold <= 0:
		return errors.New("dream_threshold must be > 0")
	case c.DreamCheckInterval <= 0:
		return errors.New("dream_check_interval must be > 0")
	case c.LatencyThreshold <= 0:
		return errors.New("latency_threshold must be > 0")
	case c.MetricsInterval <= 0:
		return errors.New("metrics_interval must be > 0")
	case c.ShutdownPollInterval <= 0:
		return errors.New("shutdown_poll_interval must be > 0")
	case c.IdleBackoffMax <= 0:
		return errors.New("idle_backoff_max must be > 0")
	case c.TaskTimeout < 0:
		return errors.New("task_timeout must be >= 0")
	case c.BlockingPoolSize <= 0:
		return errors.Errorf("blocking_pool_size must be > 0, got %d", c.BlockingPoolSize)
	case c.HTTP.SubmitRate <= 0 || c.HTTP.SubmitBurst <= 0:
		return errors.New("http.submit_rate and http.submit_burst must be > 0")
	}
	return nil
}

// Parse overlays YAML or JSON text on the defaults. Empty text yields the defaults.
func Parse(text []byte) (*Config, error) {
	cfg := Defaults()
	if len(strings.TrimSpace(string(text))) == 0 {
		return &cfg, nil
	}
	if err := yaml.Unmarshal(text, &cfg); err != nil {
		return nil, errors.Wrap(err, "couldn't parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetConfigText finds the right text for a config selector.
// The empty selector and the names in Configs resolve to built-in text; an
// existing file is read; anything else is assumed to be literal YAML or JSON.
func GetConfigText(configSelector string) ([]byte, error) {
	if configSelector == "" {
		configSelector = DefaultConfigName
	}
	if text, ok := Configs[configSelector]; ok {
		return []byte(text), nil
	}
	if _, err := os.Stat(configSelector); err == nil {
		log.WithFields(log.Fields{"file": configSelector}).Info("reading config file")
		text, err := os.ReadFile(configSelector)
		if err != nil {
			return nil, errors.Wrapf(err, "error loading config file %s", configSelector)
		}
		return text, nil
	}
	if looksLikeName(configSelector) {
		return nil, fmt.Errorf("invalid configuration %s, supported values are %v or a file path", configSelector, ConfigNames())
	}
	return []byte(configSelector), nil
}

// Load resolves the selector, parses it and logs the effective config.
func Load(configSelector string) (*Config, error) {
	text, err := GetConfigText(configSelector)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(text)
	if err != nil {
		return nil, errors.Wrapf(err, "config %q", configSelector)
	}
	log.Infof("using config: %s", cfg)
	return cfg, nil
}

func ConfigNames() []string {
	keys := make([]string, 0, len(Configs))
	for k := range Configs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// A bare dotted word like "local.bogus" is a mistyped name, not inline config.
func looksLikeName(s string) bool {
	return !strings.ContainsAny(s, ":{}\n ")
}
