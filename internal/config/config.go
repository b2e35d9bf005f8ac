// Package config provides the configuration schema and loader for the
// Soundpilot command recognition server.
package config

import (
	"time"

	"github.com/soundpilot/soundpilot/internal/classify"
	"github.com/soundpilot/soundpilot/internal/dsp"
	"github.com/soundpilot/soundpilot/internal/model"
)

// LogLevel controls log verbosity for the Soundpilot server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Soundpilot.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Audio         AudioConfig         `yaml:"audio"`
	Features      FeaturesConfig      `yaml:"features"`
	Decision      DecisionConfig      `yaml:"decision"`
	Trainer       TrainerConfig       `yaml:"trainer"`
	HomeAssistant HomeAssistantConfig `yaml:"home_assistant"`
}

// ServerConfig holds network and logging settings for the Soundpilot server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":5005").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig locates the on-disk data root holding profiles, audio
// examples, and trained model bundles.
type StorageConfig struct {
	// DataDir is the directory under which profiles/, audio/, and models/
	// are created.
	DataDir string `yaml:"data_dir"`
}

// AudioConfig holds capture parameters shared by enrollment and
// classification.
type AudioConfig struct {
	// SampleRate is the processing rate in Hz; uploads at other rates are
	// resampled to it.
	SampleRate int `yaml:"sample_rate"`

	// WindowSec is the fixed analysis window in seconds. Captures are
	// padded or cropped to this length before feature extraction.
	WindowSec float64 `yaml:"window_sec"`

	// RMSGate is the energy floor below which a capture is treated as
	// silence and never reaches the model.
	RMSGate float64 `yaml:"rms_gate"`
}

// FeaturesConfig tunes the cepstral feature extractor.
type FeaturesConfig struct {
	// NumCepstra is the number of cepstral coefficients per frame.
	NumCepstra int `yaml:"num_cepstra"`

	// FrameLength is the analysis frame size in samples.
	FrameLength int `yaml:"frame_length"`

	// HopLength is the stride between frames in samples.
	HopLength int `yaml:"hop_length"`

	// NumMelFilters is the size of the mel filterbank.
	NumMelFilters int `yaml:"num_mel_filters"`

	// TrimThresholdDB is the threshold, in dB below peak, used to trim
	// leading and trailing silence.
	TrimThresholdDB float64 `yaml:"trim_threshold_db"`
}

// DecisionConfig holds the confidence gate applied to model output.
type DecisionConfig struct {
	// MinProba is the minimum top-class probability required to accept.
	MinProba float64 `yaml:"min_proba"`

	// MarginProba is the minimum lead the top class must have over the
	// runner-up.
	MarginProba float64 `yaml:"margin_proba"`
}

// TrainerConfig tunes the random forest fitted per user.
type TrainerConfig struct {
	// Trees is the number of trees in the forest.
	Trees int `yaml:"trees"`

	// MaxDepth limits tree depth; 0 means unlimited.
	MaxDepth int `yaml:"max_depth"`

	// MinLeaf is the minimum number of samples per leaf.
	MinLeaf int `yaml:"min_leaf"`

	// Seed makes training deterministic for a fixed example set.
	Seed int64 `yaml:"seed"`
}

// HomeAssistantConfig connects recognised commands to Home Assistant
// scripts. When BaseURL is empty, triggers are logged instead of sent.
type HomeAssistantConfig struct {
	// BaseURL is the Home Assistant API root (e.g., "http://homeassistant.local:8123").
	BaseURL string `yaml:"base_url"`

	// Token is a long-lived access token. Prefer setting it via the
	// SOUNDPILOT_HA_TOKEN environment variable instead of the config file.
	Token string `yaml:"token"`

	// Timeout bounds each trigger call.
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when a field (or the whole file)
// is absent.
func Default() *Config {
	fc := dsp.DefaultConfig()
	dc := classify.DefaultDeciderConfig()
	tc := model.DefaultForestConfig()
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":5005",
			LogLevel:        LogInfo,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			DataDir: "data",
		},
		Audio: AudioConfig{
			SampleRate: fc.SampleRate,
			WindowSec:  fc.WindowSec,
			RMSGate:    classify.DefaultConfig().RMSGate,
		},
		Features: FeaturesConfig{
			NumCepstra:      fc.NumCepstra,
			FrameLength:     fc.FrameLength,
			HopLength:       fc.HopLength,
			NumMelFilters:   fc.NumMelFilters,
			TrimThresholdDB: fc.TrimThresholdDB,
		},
		Decision: DecisionConfig{
			MinProba:    dc.MinProba,
			MarginProba: dc.MarginProba,
		},
		Trainer: TrainerConfig{
			Trees:    tc.NumTrees,
			MaxDepth: tc.MaxDepth,
			MinLeaf:  tc.MinLeaf,
			Seed:     tc.Seed,
		},
		HomeAssistant: HomeAssistantConfig{
			Timeout: 5 * time.Second,
		},
	}
}

// FeatureConfig converts the features section into the extractor's config.
func (c *Config) FeatureConfig() dsp.Config {
	return dsp.Config{
		SampleRate:      c.Audio.SampleRate,
		WindowSec:       c.Audio.WindowSec,
		NumCepstra:      c.Features.NumCepstra,
		FrameLength:     c.Features.FrameLength,
		HopLength:       c.Features.HopLength,
		NumMelFilters:   c.Features.NumMelFilters,
		TrimThresholdDB: c.Features.TrimThresholdDB,
	}
}

// ForestConfig converts the trainer section into the model's config.
func (c *Config) ForestConfig() model.ForestConfig {
	return model.ForestConfig{
		NumTrees: c.Trainer.Trees,
		MaxDepth: c.Trainer.MaxDepth,
		MinLeaf:  c.Trainer.MinLeaf,
		Seed:     c.Trainer.Seed,
	}
}

// ClassifyConfig converts the audio and decision sections into the
// classification service's config.
func (c *Config) ClassifyConfig() classify.Config {
	return classify.Config{
		RMSGate: c.Audio.RMSGate,
		Decider: classify.DeciderConfig{
			MinProba:    c.Decision.MinProba,
			MarginProba: c.Decision.MarginProba,
		},
	}
}
