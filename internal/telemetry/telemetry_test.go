package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" DEBUG ": slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitLogger_Text(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger, closer, err := InitLogger(LogConfig{Level: "warn"}, &buf)
	if err != nil {
		t.Fatalf("InitLogger: %v", err)
	}
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown", "session", "s1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record logged at warn level: %q", out)
	}
	if !strings.Contains(out, "session=s1") {
		t.Errorf("missing warn record: %q", out)
	}
}

func TestInitLogger_File(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "logs", "jobhunter.log")
	var buf bytes.Buffer
	logger, closer, err := InitLogger(LogConfig{File: path}, &buf)
	if err != nil {
		t.Fatalf("InitLogger: %v", err)
	}
	logger.Info("exchange completed", "session", "s1")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &rec); err != nil {
		t.Fatalf("log file is not JSON: %v (%q)", err, data)
	}
	if rec["msg"] != "exchange completed" || rec["session"] != "s1" {
		t.Errorf("record = %v", rec)
	}
	if !strings.Contains(buf.String(), "exchange completed") {
		t.Error("record not mirrored to the writer")
	}
}

func TestInitTelemetry_Disabled(t *testing.T) {
	before := otel.GetTracerProvider()
	shutdown, err := InitTelemetry(context.Background(), "")
	if err != nil {
		t.Fatalf("InitTelemetry: %v", err)
	}
	shutdown()
	if otel.GetTracerProvider() != before {
		t.Error("tracer provider replaced although telemetry is disabled")
	}
}

func TestInitTelemetry_WritesTraces(t *testing.T) {
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})

	dir := t.TempDir()
	shutdown, err := InitTelemetry(context.Background(), dir)
	if err != nil {
		t.Fatalf("InitTelemetry: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "chat.Handle")
	span.End()
	shutdown()

	data, err := os.ReadFile(filepath.Join(dir, "traces.log"))
	if err != nil {
		t.Fatalf("reading traces: %v", err)
	}
	if !strings.Contains(string(data), "chat.Handle") {
		t.Errorf("span not exported: %q", data)
	}
}
