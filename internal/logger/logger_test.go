package logger

import (
	"context"
	"log/slog"
	"testing"
)

func Test_CustomHandler_SetLevel(t *testing.T) {
	handler := NewHandler("test")

	if !handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be enabled before configuration is applied")
	}

	handler.SetLevel(slog.LevelWarn)

	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should stay enabled at warn level")
	}

	// Derived handlers share the configured level.
	derived := handler.WithAttrs([]slog.Attr{slog.String("k", "v")})
	if derived.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("derived handler should inherit the configured level")
	}
}
