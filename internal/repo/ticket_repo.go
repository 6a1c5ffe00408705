// Package repo implements the persistence layer of the ticket ledger, backed
// by GORM. This file provides repository functions for the Ticket model.
//
// Functions are context-aware and follow the "thin repository" approach: no
// business logic, only inserts and lookups. A missing row is reported as
// ErrNotFound (an alias of gorm.ErrRecordNotFound).
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-ticket-bridge/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateTicket records a ticket that reached Discord.
func CreateTicket(ctx context.Context, db *gorm.DB, sessionID, channelID, customerName, discordUsername string) (*domain.Ticket, error) {
	t := &domain.Ticket{
		ID:              uuid.NewString(),
		SessionID:       sessionID,
		ChannelID:       channelID,
		CustomerName:    customerName,
		DiscordUsername: discordUsername,
		CreatedAt:       time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// GetTicketBySession returns the ticket recorded for sessionID.
func GetTicketBySession(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Ticket, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrNotFound
	}
	var t domain.Ticket
	if err := db.WithContext(ctx).Where("session_id = ?", sessionID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// CountTickets returns the number of tickets recorded since the given time.
// A zero since counts every ticket.
func CountTickets(ctx context.Context, db *gorm.DB, since time.Time) (int64, error) {
	var n int64
	q := db.WithContext(ctx).Model(&domain.Ticket{})
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since.UTC())
	}
	err := q.Count(&n).Error
	return n, err
}
