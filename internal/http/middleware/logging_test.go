package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

// logLines decodes every JSON line written to buf.
func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func ridEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/rid", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })
	return r
}

func TestRequestID(t *testing.T) {
	r := ridEngine()
	cases := []struct {
		name, header, in string
		keep             bool
	}{
		{"generated when absent", "", "", false},
		{"canonical header reused", requestIDHeader, "Z-REQ-123", true},
		{"lowercase header reused", strings.ToLower(requestIDHeader), "abc-123", true},
		{"colons and dots allowed", requestIDHeader, "lb:7f.01_a", true},
		{"space rejected", requestIDHeader, "has space", false},
		{"json rejected", requestIDHeader, `{"x":1}`, false},
		{"too long rejected", requestIDHeader, strings.Repeat("a", maxRequestIDLength+1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/rid", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.in)
			}
			r.ServeHTTP(w, req)

			got := w.Header().Get(requestIDHeader)
			if tc.keep && got != tc.in {
				t.Fatalf("id = %q; want %q", got, tc.in)
			}
			if !tc.keep && (got == tc.in || len(got) != 36) {
				t.Fatalf("expected a fresh uuid, got %q", got)
			}
			if w.Body.String() != got {
				t.Fatalf("RequestIDFrom = %q; header = %q", w.Body.String(), got)
			}
		})
	}
}

func TestRequestIDFrom_EmptyWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := RequestIDFrom(c); got != "" {
		t.Fatalf("RequestIDFrom = %q; want empty", got)
	}
}

func recoveryEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}), Recovery())
	r.POST("/api/send-message", func(c *gin.Context) { panic("relay exploded") })
	r.GET("/api/get-messages/:sessionId", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late kaboom")
	})
	return r
}

func TestRecovery_PanicBecomesEnvelope(t *testing.T) {
	buf := captureLogger(t)
	r := recoveryEngine()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/send-message", nil)
	req.Header.Set(requestIDHeader, "rid-panic")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d; want 500", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json body: %v", err)
	}
	if body["request_id"] != "rid-panic" || body["code"] != "internal_error" || body["error"] != "internal server error" {
		t.Fatalf("unexpected envelope: %v", body)
	}

	var found bool
	for _, m := range logLines(t, buf) {
		if m["message"] == "panic recovered" {
			found = true
			if m["panic"] != "relay exploded" || m["request_id"] != "rid-panic" || m["stack"] == nil {
				t.Fatalf("panic line incomplete: %v", m)
			}
		}
	}
	if !found {
		t.Fatalf("no panic log in:\n%s", buf.String())
	}
}

func TestRecovery_PanicAfterWriteKeepsBody(t *testing.T) {
	buf := captureLogger(t)
	r := recoveryEngine()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/get-messages/1700000000000", nil))

	if strings.Contains(w.Body.String(), "internal_error") || strings.Contains(w.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("no envelope expected after the body started; CT=%q body=%q", w.Header().Get("Content-Type"), w.Body.String())
	}
	if !strings.Contains(buf.String(), "late kaboom") {
		t.Fatalf("expected panic log, got:\n%s", buf.String())
	}
}

func TestLoggerFrom(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("global fallback", func(t *testing.T) {
		buf := captureLogger(t)
		r := gin.New()
		r.Use(RequestID())
		r.GET("/use", func(c *gin.Context) {
			LoggerFrom(c).Info().Msg("fallback")
			c.Status(http.StatusOK)
		})
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/use", nil))

		lines := logLines(t, buf)
		if len(lines) != 1 || lines[0]["message"] != "fallback" {
			t.Fatalf("unexpected logs: %v", lines)
		}
		if _, ok := lines[0]["request_id"]; ok {
			t.Fatalf("fallback logger should not carry request fields")
		}
	})

	t.Run("request scoped and shared with context", func(t *testing.T) {
		buf := captureLogger(t)
		r := gin.New()
		r.Use(RequestID(), RedactingLogger(RedactOptions{}))
		r.GET("/api/get-messages/:sessionId", func(c *gin.Context) {
			LoggerFrom(c).Info().Msg("from gin")
			zerolog.Ctx(c.Request.Context()).Info().Msg("from service")
			c.Status(http.StatusOK)
		})
		req := httptest.NewRequest(http.MethodGet, "/api/get-messages/1700000000001", nil)
		req.Header.Set(requestIDHeader, "rid-scope")
		r.ServeHTTP(httptest.NewRecorder(), req)

		seen := map[string]bool{}
		for _, m := range logLines(t, buf) {
			msg, _ := m["message"].(string)
			if msg != "from gin" && msg != "from service" {
				continue
			}
			seen[msg] = true
			if m["request_id"] != "rid-scope" || m["session_id"] != "1700000000001" {
				t.Fatalf("%q lacks request fields: %v", msg, m)
			}
		}
		if !seen["from gin"] || !seen["from service"] {
			t.Fatalf("missing scoped lines:\n%s", buf.String())
		}
	})
}

func TestHelpers_asString_and_truncate(t *testing.T) {
	if asString("x") != "x" || asString(123) != "" || asString(nil) != "" {
		t.Fatalf("asString failed")
	}
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"abcdefgh", 5, "abcde…"},
		{"abc", 0, "abc"},
		{"abc", -1, "abc"},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.max); got != tc.want {
			t.Fatalf("truncate(%q, %d) = %q; want %q", tc.in, tc.max, got, tc.want)
		}
	}
}
