package domain

// ChatMessage is a ticket-channel message in the shape returned to the
// website. Timestamp is passed through from Discord untouched (ISO-8601).
type ChatMessage struct {
	ID        string `json:"id" example:"1300000000000000001"`
	Author    string `json:"author" example:"staff-member"`
	Content   string `json:"content" example:"On our way!"`
	Timestamp string `json:"timestamp" example:"2025-01-01T12:00:00.000000+00:00"`
	IsBot     bool   `json:"isBot"`
}
