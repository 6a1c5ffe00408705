// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package). These codes provide clients with a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Domain-specific codes (e.g., order_failed, poll_failed) name the bridge
//     operation that failed upstream.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "order_failed",
//	  "error": "discord request failed: failed to create channel: discord status 403"
//	}
package handlers

const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeRateLimited = "too_many_requests"
	ErrCodeInternal    = "internal_error"

	// Domain-specific:
	ErrCodeOrderFailed      = "order_failed"
	ErrCodeTicketExists     = "ticket_exists"
	ErrCodeRelayFailed      = "relay_failed"
	ErrCodePollFailed       = "poll_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
