package config_test

import (
	"strings"
	"testing"

	"github.com/voxwire/voxwire/internal/config"
)

const validYAML = `
platform:
  base_url: "https://api.example.com"
  auth_token: "tok"
  agent_id: "agent-1"
  transport: peer
audio:
  sample_rate: 8000
  frame_size: 1024
call:
  grace_window_seconds: 20
diagnostics:
  listen_addr: "127.0.0.1:9090"
  log_level: debug
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Platform.BaseURL != "https://api.example.com" {
		t.Errorf("base_url = %q", cfg.Platform.BaseURL)
	}
	if cfg.Platform.Transport != config.TransportPeer {
		t.Errorf("transport = %q; want peer", cfg.Platform.Transport)
	}
	if cfg.Audio.SampleRate != 8000 {
		t.Errorf("sample_rate = %d; want 8000", cfg.Audio.SampleRate)
	}
	if cfg.Audio.FrameSize != 1024 {
		t.Errorf("frame_size = %d; want 1024", cfg.Audio.FrameSize)
	}
	if cfg.Call.GraceWindowSeconds != 20 {
		t.Errorf("grace_window_seconds = %d; want 20", cfg.Call.GraceWindowSeconds)
	}
	if cfg.Diagnostics.LogLevel != config.LogDebug {
		t.Errorf("log_level = %q; want debug", cfg.Diagnostics.LogLevel)
	}
}

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(`
platform:
  base_url: "http://localhost:8080"
  agent_id: "agent-1"
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Platform.Transport != config.TransportSocket {
		t.Errorf("default transport = %q; want socket", cfg.Platform.Transport)
	}
	if cfg.Audio.SampleRate != 24000 {
		t.Errorf("default sample_rate = %d; want 24000", cfg.Audio.SampleRate)
	}
	if cfg.Diagnostics.LogLevel != config.LogInfo {
		t.Errorf("default log_level = %q; want info", cfg.Diagnostics.LogLevel)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(`
platform:
  base_url: "http://localhost:8080"
  agent_id: "agent-1"
  mystery_field: true
`))
	if err == nil {
		t.Fatal("unknown field accepted; want decode error")
	}
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(`
platform:
  base_url: ""
  agent_id: ""
  transport: carrier-pigeon
audio:
  sample_rate: 44100
  frame_size: -1
call:
  grace_window_seconds: -5
`))
	if err == nil {
		t.Fatal("invalid config accepted")
	}

	for _, want := range []string{
		"platform.base_url",
		"platform.agent_id",
		"platform.transport",
		"audio.sample_rate",
		"audio.frame_size",
		"call.grace_window_seconds",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %s:\n%v", want, err)
		}
	}
}

func TestValidate_RejectsNonHTTPBaseURL(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(`
platform:
  base_url: "ftp://api.example.com"
  agent_id: "agent-1"
`))
	if err == nil || !strings.Contains(err.Error(), "platform.base_url") {
		t.Errorf("ftp base_url accepted; err = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := config.Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("loading a missing file should fail")
	}
}
