package config

import (
	"time"
)

const DefaultConfigName = "local.default"

// Configs maps the built-in configuration names to their text.
// Every field left out falls back to Defaults().
var Configs = map[string]string{
	DefaultConfigName: "{}",
	"local.small": `
workers: 2
max_queue_size: 100
blocking_pool_size: 2
http:
  addr: "localhost:9091"
`,
	"local.dream": `
dream_threshold: 30s
dream_check_interval: 5s
enable_ouroboros: true
metrics_interval: 10s
`,
}

// Defaults returns the configuration used for every unset field.
func Defaults() Config {
	return Config{
		Workers:              0,
		MaxQueueSize:         10000,
		EnableGPU:            false,
		DreamThreshold:       Duration(5 * time.Minute),
		DreamCheckInterval:   Duration(10 * time.Second),
		LatencyThreshold:     Duration(16 * time.Millisecond),
		EnableOuroboros:      false,
		MetricsInterval:      Duration(60 * time.Second),
		ShutdownPollInterval: Duration(100 * time.Millisecond),
		IdleBackoffMax:       Duration(time.Millisecond),
		TaskTimeout:          0,
		SearchRoot:           "",
		BlockingPoolSize:     4,
		HTTP: HTTPConfig{
			Addr:        ":9091",
			SubmitRate:  100,
			SubmitBurst: 200,
		},
	}
}
