// Package handlers implements the bridge's public HTTP endpoints.
//
// Every failure leaves through fail or failErr and produces the same
// envelope, so the website can show err.error and support can grep the
// request id:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "error": "Session not found"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-ticket-bridge/internal/discord"
	"github.com/tbourn/go-ticket-bridge/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message. For Discord failures it names the failing call and status.
	Error string `json:"error" example:"Session not found"`
}

// fail aborts with the envelope. 5xx responses are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: requestID(c),
		Code:      code,
		Error:     msg,
	})
}

// failErr is fail for a service error: the error text becomes the message,
// the error is attached to the gin context for the access log, and Discord
// rejections are logged with their operation and upstream status.
func failErr(c *gin.Context, status int, code string, err error) {
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		ev := middleware.LoggerFrom(c).Error().Err(err).Int("status", status).Str("code", code)
		var apiErr *discord.APIError
		if errors.As(err, &apiErr) {
			ev = ev.Str("discord_op", apiErr.Op).Int("discord_status", apiErr.Status)
		}
		ev.Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: requestID(c),
		Code:      code,
		Error:     err.Error(),
	})
}

// Fail lets the router emit the envelope for fallbacks (404, 405).
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// requestID prefers the id assigned by middleware and falls back to the
// response header for handlers mounted without it.
func requestID(c *gin.Context) string {
	if rid := middleware.RequestIDFrom(c); rid != "" {
		return rid
	}
	return c.Writer.Header().Get("X-Request-ID")
}
