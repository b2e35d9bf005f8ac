// Package commands implements the soundpilot CLI.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/soundpilot/soundpilot/internal/classify"
	"github.com/soundpilot/soundpilot/internal/config"
	"github.com/soundpilot/soundpilot/internal/dsp"
	"github.com/soundpilot/soundpilot/internal/model"
	"github.com/soundpilot/soundpilot/internal/observe"
	"github.com/soundpilot/soundpilot/internal/profile"
)

var (
	flagConfig  string
	flagDataDir string
)

var rootCmd = &cobra.Command{
	Use:   "soundpilot",
	Short: "Per-user spoken command enrollment and recognition",
	Long: `Soundpilot learns short spoken commands per user and maps them to
actions. Enroll a handful of WAV examples per command, and the trained
model decides which command an uploaded capture contains, with an
UNKNOWN fallback when confidence is too low.

Data lives under the configured data directory:
  profiles/<user>.json  enrolled examples and action bindings
  audio/<user>/...      stored WAV captures
  models/<user>.model   trained model bundle`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI, loading .env first so secrets like the Home
// Assistant token can come from the environment.
func Execute() error {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleErr.Render("error: ")+err.Error())
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "soundpilot.yaml", "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "override the configured data directory")
}

// runtime bundles everything a command needs, built from the config file.
type runtime struct {
	cfg       *config.Config
	profiles  *profile.FileStore
	models    *model.FileStore
	extractor *dsp.Extractor
	svc       *classify.Service
	metrics   *observe.Metrics
}

func buildRuntime() (*runtime, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDataDir != "" {
		cfg.Storage.DataDir = flagDataDir
	}

	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	profiles, err := profile.NewFileStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}
	models, err := model.NewFileStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}

	metrics := observe.DefaultMetrics()
	extractor := dsp.NewExtractor(cfg.FeatureConfig())
	trainer := classify.NewTrainer(profiles, models, extractor, cfg.ForestConfig(), metrics)
	svc := classify.NewService(profiles, models, trainer, extractor, cfg.ClassifyConfig(), metrics)

	return &runtime{
		cfg:       cfg,
		profiles:  profiles,
		models:    models,
		extractor: extractor,
		svc:       svc,
		metrics:   metrics,
	}, nil
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
