// Package health implements the operational probes of the soundpilot API:
// /healthz reports liveness and process uptime, /readyz probes the storage
// dependencies the pipeline needs before it can enroll or classify.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds a single readiness probe.
const checkTimeout = 5 * time.Second

// Check probes one dependency. It returns nil when the dependency is usable
// and must respect context cancellation.
type Check func(ctx context.Context) error

// probeResult is the per-dependency entry in the /readyz response.
type probeResult struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

// Handler serves /healthz and /readyz. Checks are registered before
// [Handler.Register] is called and the set is fixed afterwards.
type Handler struct {
	started time.Time
	names   []string
	checks  map[string]Check
}

// New creates an empty [Handler]. The process start is taken as now, so
// construct the handler once at startup.
func New() *Handler {
	return &Handler{
		started: time.Now(),
		checks:  make(map[string]Check),
	}
}

// AddCheck registers a named readiness probe. Registering the same name
// twice replaces the earlier check.
func (h *Handler) AddCheck(name string, c Check) {
	if _, ok := h.checks[name]; !ok {
		h.names = append(h.names, name)
		sort.Strings(h.names)
	}
	h.checks[name] = c
}

// Healthz reports liveness. A process that can serve this request is alive;
// the body carries the uptime for quick inspection.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}{"ok", time.Since(h.started).Round(time.Second).String()})
}

// Readyz runs every registered check concurrently and returns 200 only when
// all of them pass, 503 otherwise. Each probe gets its own timeout and
// reports its duration, so a slow store is visible before it becomes a
// failing one.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	results := make([]probeResult, len(h.names))

	g, gctx := errgroup.WithContext(r.Context())
	for i, name := range h.names {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(gctx, checkTimeout)
			defer cancel()

			start := time.Now()
			err := h.checks[name](ctx)
			res := probeResult{
				Name:     name,
				Status:   "ok",
				Duration: time.Since(start).Round(time.Microsecond).String(),
			}
			if err != nil {
				res.Status = "fail"
				res.Error = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	// Workers only report nil; Wait is for completion.
	_ = g.Wait()

	status := http.StatusOK
	overall := "ok"
	for _, res := range results {
		if res.Status != "ok" {
			status = http.StatusServiceUnavailable
			overall = "fail"
		}
	}

	writeJSON(w, status, struct {
		Status string        `json:"status"`
		Checks []probeResult `json:"checks,omitempty"`
	}{overall, results})
}

// Register adds the /healthz and /readyz routes to r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.Readyz).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
