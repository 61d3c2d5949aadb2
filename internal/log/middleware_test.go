package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(Config{
		Component: ComponentHTTP,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestFromContextRoundTrip(t *testing.T) {
	logger := newBufferLogger(&bytes.Buffer{})
	ctx := IntoContext(context.Background(), logger)

	if got := FromContext(ctx); got != logger {
		t.Errorf("FromContext = %v, want the stored logger", got)
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	got := FromContext(context.Background())
	if got == nil || got.Component() != ComponentApp {
		t.Errorf("fallback logger component = %v, want %q", got, ComponentApp)
	}
}

func TestLogHTTPEndEscalatesLevel(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"success", 200, "level=INFO"},
		{"client error", 422, "level=WARN"},
		{"server error", 500, "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			sl := NewStructuredLogger(newBufferLogger(&buf))
			req := httptest.NewRequest("GET", "/api/transactions", nil)

			sl.LogHTTPEnd(context.Background(), req, tt.status, 3, "1.2.3.4")

			out := buf.String()
			if !strings.Contains(out, tt.wantLevel) {
				t.Errorf("log output %q, want level %q", out, tt.wantLevel)
			}
			if !strings.Contains(out, "status_code="+strconv.Itoa(tt.status)) {
				t.Errorf("log output %q missing status code", out)
			}
		})
	}
}

func TestLogHTTPStartRecordsRequest(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf))
	req := httptest.NewRequest("GET", "/api/statistics/series?accounts=all", nil)

	sl.LogHTTPStart(context.Background(), req, "1.2.3.4")

	out := buf.String()
	for _, want := range []string{"method=GET", "path=/api/statistics/series", "client_ip=1.2.3.4", "component=http"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}
