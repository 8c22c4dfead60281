package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWriter(&buf); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	ctx := context.Background()
	Get().Info(ctx, "test message", String("k", "v"), Error(errors.New("boom")))

	out := buf.String()
	if !strings.Contains(out, "test message") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "k=v") {
		t.Errorf("expected field in output, got %q", out)
	}
	if !strings.Contains(out, "error=boom") {
		t.Errorf("expected error text in output, got %q", out)
	}
	if !strings.Contains(out, "source=") {
		t.Errorf("expected caller source in output, got %q", out)
	}
}

func TestLoggerNamed(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWriter(&buf); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	Named("cache").Info(context.Background(), "hello")
	if !strings.Contains(buf.String(), "component=cache") {
		t.Errorf("expected component attribute, got %q", buf.String())
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWriter(&buf); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = SetLevelString("info") }()

	ctx := context.Background()
	Get().Debug(ctx, "hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("debug should be filtered at info level")
	}

	if err := SetLevelString("DEBUG"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Get().Debug(ctx, "visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug should be written at debug level")
	}

	if err := SetLevelString("verbose"); err == nil {
		t.Errorf("expected error for unknown level")
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error(context.Background(), "discarded")
	if l.Named("x") == nil {
		t.Fatal("named nop logger is nil")
	}
}
