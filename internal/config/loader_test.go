package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soundpilot/soundpilot/internal/config"
)

func TestLoadFromReader_DefaultsApply(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":9090"
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q, want :9090", cfg.Server.ListenAddr)
	}
	def := config.Default()
	if cfg.Audio.SampleRate != def.Audio.SampleRate {
		t.Errorf("sample_rate = %d, want default %d", cfg.Audio.SampleRate, def.Audio.SampleRate)
	}
	if cfg.Decision.MinProba != def.Decision.MinProba {
		t.Errorf("min_proba = %v, want default %v", cfg.Decision.MinProba, def.Decision.MinProba)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_adress: ":9090"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: chatty
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
audio:
  sample_rate: -1
decision:
  min_proba: 1.5
trainer:
  trees: 0
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	for _, want := range []string{"sample_rate", "min_proba", "trees"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_HopExceedsFrame(t *testing.T) {
	t.Parallel()
	yaml := `
features:
  frame_length: 100
  hop_length: 200
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for hop > frame, got nil")
	}
	if !strings.Contains(err.Error(), "hop_length") {
		t.Errorf("error should mention hop_length, got: %v", err)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != config.Default().Server.ListenAddr {
		t.Errorf("listen_addr = %q, want default", cfg.Server.ListenAddr)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  listen_addr: ":6000"
storage:
  data_dir: /var/lib/soundpilot
home_assistant:
  base_url: http://ha.local:8123
  token: abc123
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.DataDir != "/var/lib/soundpilot" {
		t.Errorf("data_dir = %q", cfg.Storage.DataDir)
	}
	if cfg.HomeAssistant.Token != "abc123" {
		t.Errorf("token = %q", cfg.HomeAssistant.Token)
	}
}

func TestEnvOverridesToken(t *testing.T) {
	t.Setenv(config.EnvHAToken, "env-token")
	yaml := `
home_assistant:
  base_url: http://ha.local:8123
  token: file-token
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HomeAssistant.Token != "env-token" {
		t.Errorf("token = %q, want env-token", cfg.HomeAssistant.Token)
	}
}

func TestConversionHelpers(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Trainer.Trees = 42
	cfg.Decision.MinProba = 0.7

	if got := cfg.ForestConfig().NumTrees; got != 42 {
		t.Errorf("ForestConfig().NumTrees = %d, want 42", got)
	}
	if got := cfg.ClassifyConfig().Decider.MinProba; got != 0.7 {
		t.Errorf("ClassifyConfig().Decider.MinProba = %v, want 0.7", got)
	}
	fc := cfg.FeatureConfig()
	if fc.SampleRate != cfg.Audio.SampleRate || fc.NumCepstra != cfg.Features.NumCepstra {
		t.Errorf("FeatureConfig() mismatch: %+v", fc)
	}
}
