package trigger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/soundpilot/soundpilot/internal/observe"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(t.Context()) })

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func TestHomeAssistantFire(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth, gotEntity string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		var body struct {
			EntityID string `json:"entity_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		gotEntity = body.EntityID
	}))
	t.Cleanup(srv.Close)

	ha := NewHomeAssistant(srv.URL, "secret-token", time.Second, testMetrics(t))
	if err := ha.Fire(context.Background(), "alice", "lights_on", "script.lights_on"); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if gotPath != "/api/services/script/turn_on" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotEntity != "script.lights_on" {
		t.Errorf("entity_id = %q", gotEntity)
	}
}

func TestHomeAssistantFireServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	ha := NewHomeAssistant(srv.URL, "secret-token", time.Second, testMetrics(t))
	err := ha.Fire(context.Background(), "alice", "lights_on", "script.lights_on")
	if err == nil {
		t.Fatal("expected error for 500 response, got nil")
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Errorf("error should mention status 500, got: %v", err)
	}
}

func TestHomeAssistantTrailingSlash(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	t.Cleanup(srv.Close)

	ha := NewHomeAssistant(srv.URL+"/", "", time.Second, testMetrics(t))
	if err := ha.Fire(context.Background(), "u", "l", "script.x"); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if gotPath != "/api/services/script/turn_on" {
		t.Errorf("path = %q, want no doubled slash", gotPath)
	}
}

func TestLogOnlyNeverFails(t *testing.T) {
	t.Parallel()
	if err := (LogOnly{}).Fire(context.Background(), "alice", "lights_on", "script.x"); err != nil {
		t.Fatalf("LogOnly.Fire: %v", err)
	}
}
