// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// RedactingLogger writes one structured access line per request and hands a
// request-scoped logger to handlers (LoggerFrom) and services (zerolog.Ctx).
// Bodies are never logged: order forms carry customer names and addresses.
// Query strings and header values are scrubbed of webhook URLs, bot tokens,
// uuids, emails and phone numbers.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// loggerKey is the Gin context key of the request-scoped logger.
const loggerKey = "logger"

// RedactOptions configures RedactingLogger.
//
// MaskHeaders lists extra headers whose values are replaced wholesale with
// "[REDACTED]", on top of Authorization, Cookie and Set-Cookie.
type RedactOptions struct {
	MaskHeaders []string
}

type redactRule struct {
	re   *regexp.Regexp
	repl string
}

// Order matters: the specific Discord secrets first, then uuids before
// phones so the phone pattern cannot eat uuid segments.
var redactRules = []redactRule{
	{regexp.MustCompile(`(?i)https?://[a-z0-9.\-]*discord(?:app)?\.com/api(?:/v\d+)?/webhooks/\d+/[A-Za-z0-9_\-]+`), "[REDACTED:webhook]"},
	{regexp.MustCompile(`\b[A-Za-z0-9_\-]{24,}\.[A-Za-z0-9_\-]{6}\.[A-Za-z0-9_\-]{27,}\b`), "[REDACTED:token]"},
	{regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`), "[REDACTED:id]"},
	{regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`), "[REDACTED:email]"},
	{regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`), "[REDACTED:phone]"},
}

func redact(s string) string {
	if s == "" {
		return s
	}
	for _, r := range redactRules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return s
}

// RedactingLogger returns the access logging middleware.
//
// Levels: info for 2xx/3xx, warn for 4xx, error for 5xx or when handlers
// recorded gin errors. Websocket streams log once when they close, with
// the stream lifetime as latency.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	mask := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			mask[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		rid := RequestIDFrom(c)
		if rid == "" {
			rid = c.GetHeader(requestIDHeader)
		}

		lc := log.With().
			Str("request_id", rid).
			Str("method", c.Request.Method).
			Str("path", route)
		if sid := c.Param("sessionId"); sid != "" {
			lc = lc.Str("session_id", sid)
		}
		l := lc.Logger()
		c.Set(loggerKey, &l)
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))

		stream := c.IsWebsocket()

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case len(c.Errors) > 0:
			ev = l.Error().Str("errors", c.Errors.String())
		case status >= 500:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		default:
			ev = l.Info()
		}

		msg := "http_request"
		if stream {
			msg = "ws_stream"
		}
		ev.
			Str("query", truncate(redact(c.Request.URL.RawQuery), maxQueryLogLength)).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", scrubHeaders(c.Request.Header, mask)).
			Msg(msg)
	}
}

func scrubHeaders(h map[string][]string, mask map[string]struct{}) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := mask[strings.ToLower(k)]; ok {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = redact(strings.Join(vv, ", "))
	}
	return out
}
