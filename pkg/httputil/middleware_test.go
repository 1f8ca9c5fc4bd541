package httputil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stewardhq/steward/pkg/observability"
)

func TestLoggingMiddleware_AttachesRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.InfoLevel, &buf)

	handler := RequestIDMiddleware(LoggingMiddleware(logger)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			observability.GetLogger(r.Context()).Info("from handler")
			w.WriteHeader(http.StatusNoContent)
		})))

	req := httptest.NewRequest("GET", "/api/system/online-users", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	out := buf.String()
	if !strings.Contains(out, "from handler") {
		t.Error("handler log line missing")
	}
	if !strings.Contains(out, `"request_id":"req-42"`) {
		t.Errorf("request id not carried by the context logger: %s", out)
	}
	if !strings.Contains(out, "request completed") {
		t.Error("completion log line missing")
	}
	if !strings.Contains(out, `"status":204`) {
		t.Errorf("status not recorded: %s", out)
	}
}

func TestRecoveryMiddleware_LogsThroughContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.InfoLevel, &buf)

	handler := RequestIDMiddleware(LoggingMiddleware(logger)(RecoveryMiddleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))))

	req := httptest.NewRequest("GET", "/api/files", nil)
	req.Header.Set("X-Request-ID", "req-99")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	res := decodeResult(t, rec)
	if res.Code != CodeSystemError {
		t.Errorf("code = %d, want %d", res.Code, CodeSystemError)
	}

	out := buf.String()
	if !strings.Contains(out, "handler panicked") {
		t.Error("panic log line missing")
	}
	if !strings.Contains(out, `"request_id":"req-99"`) {
		t.Errorf("panic log not tied to the request: %s", out)
	}
}
