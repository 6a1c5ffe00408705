// Package services – OrderService
//
// OrderService turns a website order into a Discord ticket: it creates a text
// channel under the tickets category, creates a webhook on it, posts the order
// announcement through that webhook and registers a session for the customer.
// The steps run in order and the first failure aborts the intake; side effects
// of earlier steps are left in place.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-ticket-bridge/internal/discord"
	"github.com/tbourn/go-ticket-bridge/internal/domain"
	"github.com/tbourn/go-ticket-bridge/internal/metrics"
	"github.com/tbourn/go-ticket-bridge/internal/repo"
	"github.com/tbourn/go-ticket-bridge/internal/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	channelPrefix     = "ticket-"
	maxChannelNameLen = 100

	announceContent = "@everyone **New website order!**"
	announceTitle   = "🍔 New Order from Website"
	announceColor   = 0xdc2626
	// noValue stands in for a blank Group Link.
	noValue = "-"

	// isoMillis matches the ISO-8601 form Discord and browsers emit.
	isoMillis = "2006-01-02T15:04:05.000Z07:00"
)

// DiscordAPI is the subset of the Discord client the services depend on.
type DiscordAPI interface {
	CreateChannel(ctx context.Context, guildID string, p discord.CreateChannelParams) (*discord.Channel, error)
	CreateWebhook(ctx context.Context, channelID, name string) (*discord.Webhook, error)
	WebhookURL(w *discord.Webhook) string
	ExecuteWebhook(ctx context.Context, webhookURL string, p discord.WebhookParams) error
	ListMessages(ctx context.Context, channelID, after string, limit int) ([]discord.Message, error)
}

// OrderService creates ticket channels and sessions for incoming orders.
type OrderService struct {
	API      DiscordAPI
	Sessions *session.Registry
	// DB is the ticket ledger. Nil disables ledger writes.
	DB *gorm.DB

	GuildID           string
	TicketsCategoryID string
	WebhookName       string

	Now func() time.Time
}

// NewOrderService wires an OrderService with the default webhook name.
func NewOrderService(api DiscordAPI, sessions *session.Registry, db *gorm.DB, guildID, categoryID string) *OrderService {
	return &OrderService{
		API:               api,
		Sessions:          sessions,
		DB:                db,
		GuildID:           guildID,
		TicketsCategoryID: categoryID,
		WebhookName:       "Website Chat Bridge",
		Now:               time.Now,
	}
}

// Create runs the intake for o and returns the new session and channel ids.
func (s *OrderService) Create(ctx context.Context, o domain.Order) (domain.OrderReceipt, error) {
	ctx, span := otel.Tracer("services/OrderService").Start(ctx, "Create",
		trace.WithAttributes(attribute.String("order.customer", o.CustomerName)),
	)
	defer span.End()

	if strings.TrimSpace(o.CustomerName) == "" || strings.TrimSpace(o.DiscordUsername) == "" {
		return domain.OrderReceipt{}, ErrInvalidOrder
	}
	lg := zerolog.Ctx(ctx)

	ch, err := s.API.CreateChannel(ctx, s.GuildID, discord.CreateChannelParams{
		Name:     ChannelName(o.CustomerName),
		Type:     discord.ChannelTypeGuildText,
		ParentID: s.TicketsCategoryID,
		Topic:    "Order ticket for " + o.CustomerName,
	})
	if err != nil {
		return domain.OrderReceipt{}, s.fail(span, metrics.OpCreateChannel, err)
	}
	lg.Info().Str("channel_id", ch.ID).Msg("ticket channel created")

	wh, err := s.API.CreateWebhook(ctx, ch.ID, s.WebhookName)
	if err != nil {
		return domain.OrderReceipt{}, s.fail(span, metrics.OpCreateWebhook, err)
	}
	webhookURL := s.API.WebhookURL(wh)

	if err := s.API.ExecuteWebhook(ctx, webhookURL, discord.WebhookParams{
		Content: announceContent,
		Embeds:  []discord.Embed{s.announcement(o)},
	}); err != nil {
		return domain.OrderReceipt{}, s.fail(span, metrics.OpAnnounce, err)
	}

	sess := s.Sessions.Create(ch.ID, webhookURL, o.CustomerName)
	metrics.TicketsCreated.Inc()
	span.SetAttributes(
		attribute.String("session.id", sess.ID),
		attribute.String("discord.channel_id", ch.ID),
	)

	if s.DB != nil {
		if _, err := repo.CreateTicket(ctx, s.DB, sess.ID, ch.ID, o.CustomerName, o.DiscordUsername); err != nil {
			lg.Warn().Err(err).Str("session_id", sess.ID).Msg("ticket ledger write failed")
		}
	}

	lg.Info().Str("session_id", sess.ID).Str("channel_id", ch.ID).Msg("order ticket opened")
	return domain.OrderReceipt{SessionID: sess.ID, ChannelID: ch.ID}, nil
}

// Replay returns the receipt of a session created earlier, provided the
// session is still live in this process.
func (s *OrderService) Replay(sessionID string) (domain.OrderReceipt, bool) {
	sess, ok := s.Sessions.Get(sessionID)
	if !ok {
		return domain.OrderReceipt{}, false
	}
	return domain.OrderReceipt{SessionID: sess.ID, ChannelID: sess.ChannelID}, true
}

func (s *OrderService) announcement(o domain.Order) discord.Embed {
	// Discord rejects embed fields with an empty value.
	group := strings.TrimSpace(o.GroupLink)
	if group == "" {
		group = noValue
	}
	fields := []discord.EmbedField{
		{Name: "👤 Customer", Value: o.CustomerName, Inline: true},
		{Name: "💬 Discord", Value: o.DiscordUsername, Inline: true},
		{Name: "🔗 Group Link", Value: group},
	}
	if o.DeliveryNotes != "" {
		fields = append(fields, discord.EmbedField{Name: "📝 Notes", Value: o.DeliveryNotes})
	}
	if o.AptInstructions != "" {
		fields = append(fields, discord.EmbedField{Name: "🏠 Instructions", Value: o.AptInstructions})
	}
	if !o.TipAmount.IsZero() {
		fields = append(fields, discord.EmbedField{Name: "💵 Tip", Value: "$" + string(o.TipAmount), Inline: true})
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return discord.Embed{
		Title:     announceTitle,
		Color:     announceColor,
		Fields:    fields,
		Timestamp: now().UTC().Format(isoMillis),
	}
}

func (s *OrderService) fail(span trace.Span, op string, err error) error {
	metrics.UpstreamErrors.WithLabelValues(op).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}

// ChannelName derives the ticket channel name for a customer: "ticket-"
// followed by the lower-cased name with every character outside [a-z0-9]
// replaced by '-', capped at 100 characters.
func ChannelName(customerName string) string {
	var b strings.Builder
	b.WriteString(channelPrefix)
	for _, r := range cases.Lower(language.Und).String(customerName) {
		if b.Len() >= maxChannelNameLen {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}
