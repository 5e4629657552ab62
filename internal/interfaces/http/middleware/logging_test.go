package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/molregistry/internal/testutil"
)

func statusHandler(code int, delay time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(delay)
		w.WriteHeader(code)
	})
}

func TestRequestLogging_Levels(t *testing.T) {
	tests := []struct {
		name  string
		code  int
		delay time.Duration
		level string
		msg   string
	}{
		{"ok", http.StatusOK, 0, "info", "HTTP request completed"},
		{"client error", http.StatusNotFound, 0, "warn", "HTTP request completed with client error"},
		{"server error", http.StatusInternalServerError, 0, "error", "HTTP request completed with server error"},
		{"slow", http.StatusOK, 20 * time.Millisecond, "warn", "HTTP request completed (slow)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := testutil.NewMockLogger()
			mw := RequestLogging(logger, LoggingConfig{SlowThreshold: 10 * time.Millisecond})
			mw(statusHandler(tt.code, tt.delay)).ServeHTTP(httptest.NewRecorder(),
				httptest.NewRequest(http.MethodGet, "/molecules/x?verbose=1", nil))

			assert.True(t, logger.HasMessage(tt.level, tt.msg))
			status, ok := logger.FieldValue(tt.msg, "status")
			assert.True(t, ok)
			assert.Equal(t, tt.code, status)
		})
	}
}

func TestRequestLogging_SkipPaths(t *testing.T) {
	logger := testutil.NewMockLogger()
	mw := RequestLogging(logger, DefaultLoggingConfig())
	mw(statusHandler(http.StatusOK, 0)).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, logger.GetMessages())
}

func TestRequestLogging_ImplicitOK(t *testing.T) {
	logger := testutil.NewMockLogger()
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("hi")) })
	RequestLogging(logger, LoggingConfig{})(h).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	bytes, ok := logger.FieldValue("HTTP request completed", "bytes")
	assert.True(t, ok)
	assert.Equal(t, 2, bytes)
}
