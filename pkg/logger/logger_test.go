package logger

import (
	"context"
	"log/slog"
	"testing"
)

func TestLoggerLifecycle(t *testing.T) {
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

	// Re-initialization replaces the handler without error.
	if err := Init(); err != nil {
		t.Fatalf("failed to re-initialize logger: %v", err)
	}
	if Get() == nil {
		t.Fatal("logger is nil after re-initialization")
	}
}

func TestLoggerFields(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	ctx := context.Background()
	log := Get()
	log.Info(ctx, "scored submission",
		String("user_id", "u1"),
		Int("positives", 3),
		Float64("public_score", 110),
		Bool("duplicate", false))
	log.Debug(ctx, "suppressed at default level")
}

func TestLoggerNamed(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	named := Named("engine")
	if named == nil {
		t.Fatal("named logger is nil")
	}
	named.Info(context.Background(), "group message", Int("n", 1))
}

func TestSetLevelString(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer SetLevel(slog.LevelInfo)

	cases := map[string]bool{
		"debug":   true,
		"INFO":    true,
		" warn ":  true,
		"warning": true,
		"error":   true,
		"":        true,
		"trace":   false,
	}
	for in, ok := range cases {
		err := SetLevelString(in)
		if ok && err != nil {
			t.Errorf("SetLevelString(%q): unexpected error %v", in, err)
		}
		if !ok && err == nil {
			t.Errorf("SetLevelString(%q): expected error", in)
		}
	}
}
