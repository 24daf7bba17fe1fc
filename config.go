package rendergraph

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file form of the graph options.
//
//	multi_queue: true
//	host_passes: true
//	wait_timeout: 500ms
//	frames_in_flight: 3
type Config struct {
	MultiQueue     bool   `yaml:"multi_queue"`
	HostPasses     bool   `yaml:"host_passes"`
	Timestamps     bool   `yaml:"timestamps"`
	Statistics     bool   `yaml:"statistics"`
	WaitTimeout    string `yaml:"wait_timeout,omitempty"`
	FramesInFlight int    `yaml:"frames_in_flight,omitempty"`
	EvictAfter     int    `yaml:"evict_after,omitempty"`
}

// DefaultConfig returns the configuration matching the zero options.
func DefaultConfig() Config {
	return Config{
		WaitTimeout:    DefaultWaitTimeout.String(),
		FramesInFlight: DefaultFramesInFlight,
		EvictAfter:     DefaultEvictAfter,
	}
}

// Timeout parses WaitTimeout. An empty value yields DefaultWaitTimeout.
func (c Config) Timeout() (time.Duration, error) {
	if c.WaitTimeout == "" {
		return DefaultWaitTimeout, nil
	}
	d, err := time.ParseDuration(c.WaitTimeout)
	if err != nil {
		return 0, fmt.Errorf("wait_timeout: %w", err)
	}
	return d, nil
}

// ParseConfig decodes YAML. Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if _, err := cfg.Timeout(); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.FramesInFlight < 0 || cfg.EvictAfter < 0 {
		return Config{}, errors.New("parse config: frame counts must not be negative")
	}
	return cfg, nil
}

// LoadConfig reads and decodes a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return ParseConfig(data)
}
