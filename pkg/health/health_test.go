package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestFileCheck(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "index.txt")
	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(full, []byte("2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want Status
	}{
		{"present", full, StatusUp},
		{"empty", empty, StatusDown},
		{"missing", filepath.Join(dir, "nope.txt"), StatusDown},
		{"directory", dir, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileCheck(tt.path)(context.Background()); got.Status != tt.want {
				t.Errorf("status = %s, want %s (%s)", got.Status, tt.want, got.Message)
			}
		})
	}
}

func TestRunAggregates(t *testing.T) {
	fail := func(context.Context) error { return errors.New("connection refused") }
	ok := func(context.Context) error { return nil }

	tests := []struct {
		name   string
		checks map[string]Check
		want   Status
	}{
		{"all up", map[string]Check{"corpus": PingCheck(ok, StatusDown)}, StatusUp},
		{"degraded cache", map[string]Check{
			"corpus": PingCheck(ok, StatusDown),
			"cache":  PingCheck(fail, StatusDegraded),
		}, StatusDegraded},
		{"down wins", map[string]Check{
			"corpus": PingCheck(fail, StatusDown),
			"cache":  PingCheck(fail, StatusDegraded),
		}, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for name, check := range tt.checks {
				c.Register(name, check)
			}
			report := c.Run(context.Background())
			if report.Status != tt.want {
				t.Errorf("status = %s, want %s", report.Status, tt.want)
			}
			if len(report.Components) != len(tt.checks) {
				t.Errorf("components = %d, want %d", len(report.Components), len(tt.checks))
			}
		})
	}
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("index", FileCheck(filepath.Join(t.TempDir(), "missing.txt")))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var report Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Components["index"].Status != StatusDown {
		t.Errorf("index component = %+v", report.Components["index"])
	}

	rec = httptest.NewRecorder()
	c.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("live status = %d", rec.Code)
	}
}
