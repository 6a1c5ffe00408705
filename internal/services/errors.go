// Package services defines the business logic of the ticket bridge: turning
// website orders into Discord ticket channels, relaying customer messages
// into those channels, and polling staff replies back out.
//
// This file centralizes service-level error values. Translation into HTTP
// status codes is performed at the handler layer.
package services

import "errors"

var (
	// ErrSessionNotFound indicates that no live session has the given id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidOrder is returned when an order lacks the customer name or
	// the Discord username.
	ErrInvalidOrder = errors.New("customerName and discordUsername are required")

	// ErrUpstream wraps any failed Discord API call. The wrapped error keeps
	// the operation and, for rejections, the upstream status.
	ErrUpstream = errors.New("discord request failed")
)
