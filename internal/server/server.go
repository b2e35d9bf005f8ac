// Package server exposes the enrollment and classification pipeline over
// HTTP. Routes are versioned under /v1; operational endpoints (/healthz,
// /readyz, /status, /metrics) live at the root.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soundpilot/soundpilot/internal/classify"
	"github.com/soundpilot/soundpilot/internal/health"
	"github.com/soundpilot/soundpilot/internal/observe"
	"github.com/soundpilot/soundpilot/internal/trigger"
)

// maxUploadBytes caps the memory-resident part of a multipart upload.
// 3 s of 16 kHz 16-bit mono is under 100 KiB, so this is generous even for
// batches of high-rate stereo captures.
const maxUploadBytes = 32 << 20

// Server routes HTTP requests to the classification service.
type Server struct {
	svc      *classify.Service
	trig     trigger.Trigger
	health   *health.Handler
	metrics  *observe.Metrics
	status   *statusTracker
	rate     int
	shutdown time.Duration
}

// Options configures a [Server].
type Options struct {
	// Service handles enrollment, training, and classification.
	Service *classify.Service

	// Trigger fires bound actions after a confident classification. When
	// nil, [trigger.LogOnly] is used.
	Trigger trigger.Trigger

	// SampleRate is the processing rate uploads are converted to.
	SampleRate int

	// Metrics instruments request handling. When nil the package default
	// is used.
	Metrics *observe.Metrics

	// ShutdownTimeout bounds graceful shutdown in [Server.Run].
	ShutdownTimeout time.Duration

	// ReadyChecks are evaluated by /readyz, keyed by check name.
	ReadyChecks map[string]health.Check
}

// New creates a [Server] from opts. Options.Service is required.
func New(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, errors.New("server: Options.Service is required")
	}
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("server: sample rate %d must be positive", opts.SampleRate)
	}
	trig := opts.Trigger
	if trig == nil {
		trig = trigger.LogOnly{}
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	shutdown := opts.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = 10 * time.Second
	}
	hh := health.New()
	for name, chk := range opts.ReadyChecks {
		hh.AddCheck(name, chk)
	}
	return &Server{
		svc:      opts.Service,
		trig:     trig,
		health:   hh,
		metrics:  metrics,
		status:   newStatusTracker(),
		rate:     opts.SampleRate,
		shutdown: shutdown,
	}, nil
}

// Router builds the full route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(observe.Middleware(s.metrics))

	s.health.Register(r)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/users", s.handleUsers).Methods(http.MethodGet)
	v1.HandleFunc("/users/{user}/labels", s.handleLabels).Methods(http.MethodGet)
	v1.HandleFunc("/users/{user}/labels/{label}/examples", s.handleEnroll).Methods(http.MethodPost)
	v1.HandleFunc("/users/{user}/labels/{label}", s.handleDeleteLabel).Methods(http.MethodDelete)
	v1.HandleFunc("/users/{user}/classify", s.handleClassify).Methods(http.MethodPost)
	v1.HandleFunc("/users/{user}/train", s.handleTrain).Methods(http.MethodPost)
	v1.HandleFunc("/users/{user}", s.handleReset).Methods(http.MethodDelete)
	return r
}

// Run serves the API on addr until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: listen on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	slog.Info("http server stopped")
	return nil
}
