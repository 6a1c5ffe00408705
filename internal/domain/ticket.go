// Package domain defines the core types of the ticket bridge: the in-memory
// session, the order form and chat message shapes, and the GORM models of the
// ticket ledger.
package domain

import "time"

// Ticket is the ledger row written for every order that reached Discord.
// It is an audit record; sessions are never rebuilt from it.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - SessionID: the in-memory session id handed to the customer (unique).
//   - ChannelID: Discord channel snowflake of the ticket.
//   - CustomerName / DiscordUsername: copied from the order form.
type Ticket struct {
	ID              string    `json:"id"               gorm:"type:char(36);primaryKey"`
	SessionID       string    `json:"session_id"       gorm:"type:varchar(32);not null;uniqueIndex:ux_ticket_session"`
	ChannelID       string    `json:"channel_id"       gorm:"type:varchar(32);not null;index"`
	CustomerName    string    `json:"customer_name"    gorm:"type:varchar(255);not null"`
	DiscordUsername string    `json:"discord_username" gorm:"type:varchar(255);not null"`
	CreatedAt       time.Time `json:"created_at"       gorm:"index"`
}

// TableName returns the database table name for Ticket.
func (Ticket) TableName() string { return "tickets" }
