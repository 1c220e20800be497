package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		verbosity string
		count     int
		want      slog.Level
	}{
		{"", 0, slog.LevelInfo},
		{"", 1, slog.LevelDebug},
		{"", 3, LevelTrace},
		{"warn", 2, slog.LevelWarn},
		{"DEBUG", 0, slog.LevelDebug},
		{"trace", 0, LevelTrace},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.verbosity, tt.count)
		if err != nil {
			t.Errorf("ParseLevel(%q, %d) error = %v", tt.verbosity, tt.count, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q, %d) = %v, want %v", tt.verbosity, tt.count, got, tt.want)
		}
	}

	if _, err := ParseLevel("loud", 0); err == nil {
		t.Error("Expected error for unknown verbosity")
	}
}

func TestCompactHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, &slog.HandlerOptions{Level: LevelTrace}))

	log.Warn("solve done", "node", 7, "network", 3, "durationMs", 12, "error", errors.New("boom"), "mode", "pinned")
	log.Log(context.Background(), LevelTrace, "pass")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d: %q", len(lines), buf.String())
	}

	first := lines[0]
	if !strings.HasPrefix(first, "[WARN]  ") {
		t.Errorf("Expected warn prefix, got %q", first)
	}
	for _, want := range []string{"solve done |", "#7", "net#3", "duration=12ms", `error="boom"`, "mode=pinned"} {
		if !strings.Contains(first, want) {
			t.Errorf("Expected %q in %q", want, first)
		}
	}
	if !strings.HasPrefix(lines[1], "[TRACE] ") {
		t.Errorf("Expected trace prefix, got %q", lines[1])
	}
}

func TestCompactHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, nil)).With("plan", "main").WithGroup("solver")

	log.Info("hello", "steps", 4)
	log.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "plan=main") || !strings.Contains(out, "solver.steps=4") {
		t.Errorf("Unexpected output %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected debug to be filtered at default level, got %q", out)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/plan", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "abc" {
		t.Errorf("Expected caller request id, got %q", seen)
	}
	if rec.Header().Get(RequestIDHeader) != "abc" {
		t.Errorf("Expected request id echoed, got %q", rec.Header().Get(RequestIDHeader))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(seen) != 36 {
		t.Errorf("Expected generated UUID, got %q", seen)
	}
}
