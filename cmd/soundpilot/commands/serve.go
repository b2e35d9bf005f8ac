package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundpilot/soundpilot/internal/health"
	"github.com/soundpilot/soundpilot/internal/observe"
	"github.com/soundpilot/soundpilot/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Run the HTTP API server.

Routes:
  POST   /v1/users/{user}/labels/{label}/examples   enroll WAV uploads
  POST   /v1/users/{user}/classify                  classify one capture
  POST   /v1/users/{user}/train                     retrain
  GET    /v1/users                                  list users
  GET    /v1/users/{user}/labels                    list labels
  DELETE /v1/users/{user}/labels/{label}            delete a label
  DELETE /v1/users/{user}                           reset a user
  GET    /healthz /readyz /status /metrics          operational`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "soundpilot"})
		if err != nil {
			return err
		}
		defer func() {
			sc, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownMetrics(sc); err != nil {
				slog.Warn("metrics shutdown", "err", err)
			}
		}()

		rt, err := buildRuntime()
		if err != nil {
			return err
		}

		srv, err := server.New(server.Options{
			Service:         rt.svc,
			Trigger:         buildTrigger(rt),
			SampleRate:      rt.extractor.SampleRate(),
			Metrics:         rt.metrics,
			ShutdownTimeout: rt.cfg.Server.ShutdownTimeout,
			ReadyChecks: map[string]health.Check{
				"profiles": func(ctx context.Context) error {
					_, err := rt.profiles.Users(ctx)
					return err
				},
			},
		})
		if err != nil {
			return err
		}

		slog.Info("soundpilot starting",
			"config", flagConfig,
			"listen_addr", rt.cfg.Server.ListenAddr,
			"data_dir", rt.cfg.Storage.DataDir,
		)
		return srv.Run(ctx, rt.cfg.Server.ListenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
