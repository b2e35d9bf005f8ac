package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
)

// readyBody mirrors the /readyz response for decoding in tests.
type readyBody struct {
	Status string        `json:"status"`
	Checks []probeResult `json:"checks"`
}

func checkByName(t *testing.T, body readyBody, name string) probeResult {
	t.Helper()
	for _, c := range body.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %q missing from response %+v", name, body)
	return probeResult{}
}

func TestHealthz_AlwaysReturns200(t *testing.T) {
	h := New()

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	if body.Uptime == "" {
		t.Error("uptime missing from liveness response")
	}
}

func TestHealthz_ContentType(t *testing.T) {
	h := New()
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	ct := rec.Header().Get("Content-Type")
	if ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestReadyz_AllChecksPass(t *testing.T) {
	h := New()
	h.AddCheck("profiles", func(_ context.Context) error { return nil })
	h.AddCheck("models", func(_ context.Context) error { return nil })

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body readyBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	for _, name := range []string{"profiles", "models"} {
		c := checkByName(t, body, name)
		if c.Status != "ok" {
			t.Errorf("%s check = %q, want %q", name, c.Status, "ok")
		}
		if c.Duration == "" {
			t.Errorf("%s check has no duration", name)
		}
	}
}

func TestReadyz_CheckFails(t *testing.T) {
	h := New()
	h.AddCheck("profiles", func(_ context.Context) error {
		return errors.New("store unavailable")
	})
	h.AddCheck("models", func(_ context.Context) error { return nil })

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var body readyBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want %q", body.Status, "fail")
	}
	profiles := checkByName(t, body, "profiles")
	if profiles.Status != "fail" || profiles.Error != "store unavailable" {
		t.Errorf("profiles check = %+v, want fail with error", profiles)
	}
	models := checkByName(t, body, "models")
	if models.Status != "ok" {
		t.Errorf("models check = %q, want %q", models.Status, "ok")
	}
}

func TestReadyz_NoChecks(t *testing.T) {
	h := New()

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body readyBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestReadyz_ChecksOrderedByName(t *testing.T) {
	h := New()
	h.AddCheck("models", func(_ context.Context) error { return nil })
	h.AddCheck("audio", func(_ context.Context) error { return nil })
	h.AddCheck("profiles", func(_ context.Context) error { return nil })

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	var body readyBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	want := []string{"audio", "models", "profiles"}
	if len(body.Checks) != len(want) {
		t.Fatalf("got %d checks, want %d", len(body.Checks), len(want))
	}
	for i, name := range want {
		if body.Checks[i].Name != name {
			t.Errorf("check %d = %q, want %q", i, body.Checks[i].Name, name)
		}
	}
}

func TestAddCheck_ReplacesByName(t *testing.T) {
	h := New()
	h.AddCheck("profiles", func(_ context.Context) error {
		return errors.New("stale check")
	})
	h.AddCheck("profiles", func(_ context.Context) error { return nil })

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d: replacement check should win", rec.Code, http.StatusOK)
	}
}

func TestRegister_RoutesWork(t *testing.T) {
	h := New()
	h.AddCheck("test", func(_ context.Context) error { return nil })

	r := mux.NewRouter()
	h.Register(r)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	h := New()
	h.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	req := httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
