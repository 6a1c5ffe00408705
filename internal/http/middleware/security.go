package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// apiCSP forbids everything: JSON and websocket responses never render.
const apiCSP = "default-src 'none'; frame-ancestors 'none'"

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	EnableHSTS   bool          // only when traffic is HTTPS end-to-end
	HSTSMaxAge   time.Duration // defaults to 180 days
	NoStore      bool          // Cache-Control: no-store on every response
	EnablePolicy bool          // Permissions-Policy and cross-domain policy

	// Expose lists response headers the order form may read cross-origin.
	// X-Request-ID is always exposed.
	Expose []string

	// DocsPrefix marks the Swagger UI. Responses under it may be framed by
	// the same origin and carry no CSP, since the UI loads its own scripts.
	DocsPrefix string
}

// SecurityHeaders hardens every response of the bridge API.
//
// Ticket chat content is private to one customer, so with NoStore set no
// intermediary may cache it. HSTS is emitted only for HTTPS requests, either
// direct TLS or X-Forwarded-Proto: https from the fronting proxy.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = 180 * 24 * time.Hour
	}
	hsts := "max-age=" + strconv.Itoa(int(maxAge.Seconds())) + "; includeSubDomains; preload"
	expose := append([]string{"X-Request-ID"}, opt.Expose...)

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.DocsPrefix != "" && strings.HasPrefix(c.Request.URL.Path, opt.DocsPrefix) {
			h.Set("X-Frame-Options", "SAMEORIGIN")
		} else {
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", apiCSP)
		}

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		const hdr = "Access-Control-Expose-Headers"
		if merged := mergeHeaderList(h.Get(hdr), expose...); merged != "" {
			h.Set(hdr, merged)
		}

		c.Next()
	}
}

// isHTTPS reports whether the request arrived over TLS, directly or through
// a proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// mergeHeaderList appends names missing from the comma-separated list cur,
// comparing case-insensitively and keeping the existing order.
func mergeHeaderList(cur string, names ...string) string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range strings.Split(cur, ",") {
		if p = strings.TrimSpace(p); p != "" {
			seen[strings.ToLower(p)] = struct{}{}
			out = append(out, p)
		}
	}
	for _, n := range names {
		k := strings.ToLower(n)
		if _, ok := seen[k]; ok || n == "" {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, n)
	}
	return strings.Join(out, ", ")
}
