package pipeline

import (
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/akoshelev/metric-proto/internal/core/metrics"
	"github.com/akoshelev/metric-proto/internal/core/snapshot"
)

// Configuration errors
var (
	ErrInvalidConfig = errors.New("pipeline: invalid configuration")
)

// Config holds every recognized pipeline option.
type Config struct {
	// PackInterval is the period between snapshot captures.
	PackInterval time.Duration `yaml:"pack_interval"`
	// ChannelCapacity is the handoff queue depth K.
	ChannelCapacity int `yaml:"channel_capacity"`
	// Backpressure selects the packer's full-channel behavior.
	Backpressure BackpressureConfig `yaml:"backpressure"`
	// Overflow is the counter overflow policy: "wrap" or "fatal".
	Overflow string `yaml:"overflow"`
	// LogLevel is the minimum log severity.
	LogLevel string `yaml:"log_level"`
	// Stream configures the optional websocket snapshot streamer.
	Stream StreamConfig `yaml:"stream"`
}

// BackpressureConfig selects the policy applied when the handoff channel is
// full.
type BackpressureConfig struct {
	// Policy is "drop" or "wait".
	Policy string `yaml:"policy"`
	// WaitTimeout bounds the send wait under the "wait" policy.
	WaitTimeout time.Duration `yaml:"wait_timeout"`
}

// StreamConfig configures the websocket snapshot streamer.
type StreamConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DefaultConfig returns the options used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		PackInterval:    100 * time.Millisecond,
		ChannelCapacity: 8,
		Backpressure: BackpressureConfig{
			Policy:      "drop",
			WaitTimeout: 5 * time.Millisecond,
		},
		Overflow: "wrap",
		LogLevel: "info",
		Stream: StreamConfig{
			Enabled: false,
			Addr:    ":8090",
		},
	}
}

// LoadYAML reads a Config from YAML, applying defaults for absent fields.
func LoadYAML(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks option values and ranges.
func (c Config) Validate() error {
	if c.PackInterval <= 0 {
		return fmt.Errorf("%w: pack_interval must be positive", ErrInvalidConfig)
	}
	if c.ChannelCapacity < 1 {
		return fmt.Errorf("%w: channel_capacity must be at least 1", ErrInvalidConfig)
	}
	switch c.Backpressure.Policy {
	case "drop":
	case "wait":
		if c.Backpressure.WaitTimeout <= 0 {
			return fmt.Errorf("%w: wait_timeout must be positive under the wait policy", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown backpressure policy %q", ErrInvalidConfig, c.Backpressure.Policy)
	}
	switch c.Overflow {
	case "wrap", "fatal":
	default:
		return fmt.Errorf("%w: unknown overflow policy %q", ErrInvalidConfig, c.Overflow)
	}
	if c.Stream.Enabled && c.Stream.Addr == "" {
		return fmt.Errorf("%w: stream.addr is required when streaming is enabled", ErrInvalidConfig)
	}
	return nil
}

func (c Config) overflowPolicy() metrics.OverflowPolicy {
	if c.Overflow == "fatal" {
		return metrics.OverflowFatal
	}
	return metrics.OverflowWrap
}

func (c Config) backpressurePolicy() snapshot.BackpressurePolicy {
	if c.Backpressure.Policy == "wait" {
		return snapshot.BoundedWait
	}
	return snapshot.DropOnFull
}
