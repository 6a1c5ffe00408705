package domain

import "time"

// Session links one website customer to the Discord ticket channel created
// for their order. Sessions live in memory only and are owned by the session
// registry; callers receive copies.
type Session struct {
	ID           string
	ChannelID    string
	WebhookURL   string
	CustomerName string
	// LastMessageID is the newest channel message already delivered to the
	// customer. Empty until the first non-empty poll.
	LastMessageID string
	CreatedAt     time.Time
}
