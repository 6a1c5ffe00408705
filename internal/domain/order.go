package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Order is the customer-submitted order form. It is never stored as-is; it is
// only projected into the ticket announcement.
type Order struct {
	CustomerName    string `json:"customerName" binding:"required" example:"Alice"`
	DiscordUsername string `json:"discordUsername" binding:"required" example:"alice#1"`
	GroupLink       string `json:"groupLink" example:"https://example.com/group/123"`
	DeliveryNotes   string `json:"deliveryNotes,omitempty" example:"Leave at the door"`
	AptInstructions string `json:"aptInstructions,omitempty" example:"Buzz 4B"`
	TipAmount       Amount `json:"tipAmount,omitempty" swaggertype:"string" example:"5"`
}

// OrderReceipt identifies the session and channel created for an order.
type OrderReceipt struct {
	SessionID string `json:"sessionId"`
	ChannelID string `json:"channelId"`
}

// Amount is a money value accepted either as a JSON number or a JSON string.
// Numbers are rendered in their shortest form (5.0 becomes "5"). Zero
// numbers, empty strings, false and null decode to the empty Amount; strings
// are kept verbatim, so "0" is an amount.
type Amount string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte("false")) {
		*a = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return err
	}
	if f == 0 {
		*a = ""
		return nil
	}
	*a = Amount(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// IsZero reports whether no amount was supplied.
func (a Amount) IsZero() bool { return a == "" }
