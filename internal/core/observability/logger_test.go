package observability

import (
	"context"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		format      string
		wantEnabled zapcore.Level
		wantMuted   zapcore.Level
	}{
		{
			name:        "json at info",
			level:       "info",
			format:      "json",
			wantEnabled: zapcore.InfoLevel,
			wantMuted:   zapcore.DebugLevel,
		},
		{
			name:        "text format accepted",
			level:       "warn",
			format:      "text",
			wantEnabled: zapcore.WarnLevel,
			wantMuted:   zapcore.InfoLevel,
		},
		{
			name:        "unknown level falls back to info",
			level:       "loud",
			format:      "json",
			wantEnabled: zapcore.InfoLevel,
			wantMuted:   zapcore.DebugLevel,
		},
		{
			name:        "unknown format falls back to json",
			level:       "debug",
			format:      "yaml",
			wantEnabled: zapcore.DebugLevel,
			wantMuted:   zapcore.DebugLevel - 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.level, tt.format)
			if err != nil {
				t.Fatalf("NewLogger(%q, %q) failed: %v", tt.level, tt.format, err)
			}
			defer logger.Sync()

			if !logger.Core().Enabled(tt.wantEnabled) {
				t.Errorf("level %v disabled, want enabled", tt.wantEnabled)
			}
			if logger.Core().Enabled(tt.wantMuted) {
				t.Errorf("level %v enabled, want disabled", tt.wantMuted)
			}
		})
	}
}

func TestLoggerContext(t *testing.T) {
	ctx := context.Background()

	if got := FromContext(ctx); got == nil {
		t.Fatal("FromContext on empty context returned nil, want no-op logger")
	}

	logger, err := NewLogger("info", "json")
	if err != nil {
		t.Fatal(err)
	}
	ctx = WithLogger(ctx, logger)
	if got := FromContext(ctx); got != logger {
		t.Error("FromContext did not return the injected logger")
	}
}
