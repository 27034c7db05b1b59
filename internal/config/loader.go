package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// supportedSampleRates lists the PCM rates the platform accepts.
var supportedSampleRates = []int{8000, 24000}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills unset fields with their documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.Platform.Transport == "" {
		cfg.Platform.Transport = TransportSocket
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 24000
	}
	if cfg.Diagnostics.LogLevel == "" {
		cfg.Diagnostics.LogLevel = LogInfo
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Platform
	if cfg.Platform.BaseURL == "" {
		errs = append(errs, errors.New("platform.base_url is required"))
	} else if u, err := url.Parse(cfg.Platform.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("platform.base_url %q must be an http(s) URL", cfg.Platform.BaseURL))
	}
	if cfg.Platform.AgentID == "" {
		errs = append(errs, errors.New("platform.agent_id is required"))
	}
	if !cfg.Platform.Transport.IsValid() {
		errs = append(errs, fmt.Errorf("platform.transport %q is invalid; valid values: socket, peer", cfg.Platform.Transport))
	}

	// Audio
	validRate := false
	for _, rate := range supportedSampleRates {
		if cfg.Audio.SampleRate == rate {
			validRate = true
			break
		}
	}
	if !validRate {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is unsupported; valid values: %v", cfg.Audio.SampleRate, supportedSampleRates))
	}
	if cfg.Audio.FrameSize < 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d must not be negative", cfg.Audio.FrameSize))
	}

	// Call
	if cfg.Call.GraceWindowSeconds < 0 {
		errs = append(errs, fmt.Errorf("call.grace_window_seconds %d must not be negative", cfg.Call.GraceWindowSeconds))
	}

	// Diagnostics
	if !cfg.Diagnostics.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("diagnostics.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Diagnostics.LogLevel))
	}

	return errors.Join(errs...)
}
