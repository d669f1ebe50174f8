package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"gradex/pkg/utils/contextkey"
)

func newTraceRouter(capture *map[string]string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(TraceContextMiddleware())
	router.GET("/ping", func(c *gin.Context) {
		seen := map[string]string{
			"gin_trace":   c.GetString("trace_id"),
			"gin_request": c.GetString("request_id"),
		}
		if v := c.Request.Context().Value(contextkey.TraceID); v != nil {
			seen["ctx_trace"] = v.(string)
		}
		if v := c.Request.Context().Value(contextkey.RequestID); v != nil {
			seen["ctx_request"] = v.(string)
		}
		*capture = seen
		c.Status(http.StatusOK)
	})
	return router
}

func TestTraceContextMiddlewarePropagatesIncomingIDs(t *testing.T) {
	var seen map[string]string
	router := newTraceRouter(&seen)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Trace-Id", "trace-123")
	req.Header.Set("X-Request-Id", "req-456")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Trace-Id"); got != "trace-123" {
		t.Fatalf("expected trace header to round trip, got %q", got)
	}
	if got := w.Header().Get("X-Request-Id"); got != "req-456" {
		t.Fatalf("expected request header to round trip, got %q", got)
	}
	if seen["gin_trace"] != "trace-123" || seen["ctx_trace"] != "trace-123" {
		t.Fatalf("trace id not propagated: %v", seen)
	}
	if seen["gin_request"] != "req-456" || seen["ctx_request"] != "req-456" {
		t.Fatalf("request id not propagated: %v", seen)
	}
}

func TestTraceContextMiddlewareGeneratesMissingIDs(t *testing.T) {
	var seen map[string]string
	router := newTraceRouter(&seen)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	traceID := w.Header().Get("X-Trace-Id")
	requestID := w.Header().Get("X-Request-Id")
	if traceID == "" || requestID == "" {
		t.Fatalf("expected generated ids, got trace=%q request=%q", traceID, requestID)
	}
	if seen["ctx_trace"] != traceID || seen["ctx_request"] != requestID {
		t.Fatalf("generated ids not propagated: %v", seen)
	}
}
