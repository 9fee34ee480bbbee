package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_StderrOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "warn", Stderr: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("sync failed", "reason", "Unauthorized")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %s", out)
	}
	if !strings.Contains(out, "reason=Unauthorized") {
		t.Errorf("warn record missing: %s", out)
	}
}

func TestNew_File(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "opsctl.log")

	logger, closer, err := New(Options{Level: "debug", File: path, Stderr: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.With("component", "sync").Debug("fetching", "id", "aaaaaaaaaabbbbbbbbbb")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &rec); err != nil {
		t.Fatalf("log file is not JSON lines: %v\n%s", err, data)
	}
	if rec["msg"] != "fetching" || rec["component"] != "sync" {
		t.Errorf("file record = %v", rec)
	}
	if !strings.Contains(buf.String(), "component=sync") {
		t.Errorf("stderr record missing: %s", buf.String())
	}
}

func TestNew_StderrLevel(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "opsctl.log")

	logger, closer, err := New(Options{Level: "info", StderrLevel: "warn", File: path, Stderr: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("task created")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if buf.Len() != 0 {
		t.Errorf("stderr got info record: %s", buf.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "task created") {
		t.Errorf("file missing info record: %s", data)
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, _, err := New(Options{Level: "verbose"}); err == nil {
		t.Error("New should reject an unknown level")
	}
}

func TestDiscard(t *testing.T) {
	if Discard().Enabled(context.Background(), slog.LevelError) {
		t.Error("Discard logger should not be enabled at error level")
	}
}
