package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// EnvHAToken is the environment variable that overrides
// home_assistant.token so the secret can stay out of the config file.
const EnvHAToken = "SOUNDPILOT_HA_TOKEN"

// Load reads the YAML configuration file at path and returns a validated
// [Config]. Missing fields keep their [Default] values. A missing file is
// not an error; the defaults are returned as-is.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		applyEnv(cfg)
		return cfg, Validate(cfg)
	}
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

// LoadFromReader decodes a YAML config from r over the defaults and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if tok := os.Getenv(EnvHAToken); tok != "" {
		cfg.HomeAssistant.Token = tok
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout %v must not be negative", cfg.Server.ShutdownTimeout))
	}

	// Storage
	if cfg.Storage.DataDir == "" {
		errs = append(errs, errors.New("storage.data_dir is required"))
	}

	// Audio
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.WindowSec <= 0 {
		errs = append(errs, fmt.Errorf("audio.window_sec %.3f must be positive", cfg.Audio.WindowSec))
	}
	if cfg.Audio.RMSGate < 0 {
		errs = append(errs, fmt.Errorf("audio.rms_gate %.6f must not be negative", cfg.Audio.RMSGate))
	}

	// Features
	if cfg.Features.NumCepstra <= 0 {
		errs = append(errs, fmt.Errorf("features.num_cepstra %d must be positive", cfg.Features.NumCepstra))
	}
	if cfg.Features.FrameLength <= 0 {
		errs = append(errs, fmt.Errorf("features.frame_length %d must be positive", cfg.Features.FrameLength))
	}
	if cfg.Features.HopLength <= 0 {
		errs = append(errs, fmt.Errorf("features.hop_length %d must be positive", cfg.Features.HopLength))
	} else if cfg.Features.HopLength > cfg.Features.FrameLength {
		errs = append(errs, fmt.Errorf("features.hop_length %d must not exceed features.frame_length %d", cfg.Features.HopLength, cfg.Features.FrameLength))
	}
	if cfg.Features.NumMelFilters < cfg.Features.NumCepstra {
		errs = append(errs, fmt.Errorf("features.num_mel_filters %d must be at least features.num_cepstra %d", cfg.Features.NumMelFilters, cfg.Features.NumCepstra))
	}
	if cfg.Features.TrimThresholdDB <= 0 {
		errs = append(errs, fmt.Errorf("features.trim_threshold_db %.1f must be positive", cfg.Features.TrimThresholdDB))
	}

	// Decision
	if cfg.Decision.MinProba < 0 || cfg.Decision.MinProba > 1 {
		errs = append(errs, fmt.Errorf("decision.min_proba %.2f is out of range [0, 1]", cfg.Decision.MinProba))
	}
	if cfg.Decision.MarginProba < 0 || cfg.Decision.MarginProba > 1 {
		errs = append(errs, fmt.Errorf("decision.margin_proba %.2f is out of range [0, 1]", cfg.Decision.MarginProba))
	}

	// Trainer
	if cfg.Trainer.Trees <= 0 {
		errs = append(errs, fmt.Errorf("trainer.trees %d must be positive", cfg.Trainer.Trees))
	}
	if cfg.Trainer.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("trainer.max_depth %d must not be negative", cfg.Trainer.MaxDepth))
	}
	if cfg.Trainer.MinLeaf < 1 {
		errs = append(errs, fmt.Errorf("trainer.min_leaf %d must be at least 1", cfg.Trainer.MinLeaf))
	}

	// Home Assistant availability warnings
	if cfg.HomeAssistant.BaseURL != "" && cfg.HomeAssistant.Token == "" {
		slog.Warn("home_assistant.base_url is set but no token is configured; trigger calls will be unauthenticated",
			"env", EnvHAToken,
		)
	}
	if cfg.HomeAssistant.BaseURL == "" && cfg.HomeAssistant.Token != "" {
		slog.Warn("home_assistant.token is set but base_url is empty; triggers will only be logged")
	}
	if cfg.HomeAssistant.Timeout < 0 {
		errs = append(errs, fmt.Errorf("home_assistant.timeout %v must not be negative", cfg.HomeAssistant.Timeout))
	}

	return errors.Join(errs...)
}
