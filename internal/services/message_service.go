// Package services – MessageService
//
// MessageService moves conversation in both directions between a website
// customer and their ticket channel. Send posts the customer's text through
// the session webhook under the customer's name; Poll reads channel messages
// newer than the session cursor, drops the customer's own echoes and returns
// the rest oldest first.
//
// Observability: public methods are OpenTelemetry-instrumented with the
// session id.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-ticket-bridge/internal/discord"
	"github.com/tbourn/go-ticket-bridge/internal/domain"
	"github.com/tbourn/go-ticket-bridge/internal/metrics"
	"github.com/tbourn/go-ticket-bridge/internal/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PollLimit is the page size of one channel read.
const PollLimit = 50

// DefaultAvatarURL is shown next to relayed customer messages.
const DefaultAvatarURL = "https://cdn.discordapp.com/embed/avatars/0.png"

// MessageService relays messages for existing sessions.
type MessageService struct {
	API      DiscordAPI
	Sessions *session.Registry
	// Hub receives every non-empty poll result. Nil disables fan-out.
	Hub *Hub

	AvatarURL string
}

// NewMessageService wires a MessageService with the default avatar.
func NewMessageService(api DiscordAPI, sessions *session.Registry, hub *Hub) *MessageService {
	return &MessageService{API: api, Sessions: sessions, Hub: hub, AvatarURL: DefaultAvatarURL}
}

// Send posts text to the session's ticket channel as the customer.
//
// Only transport failures are reported. A rejection by Discord is logged and
// the relay still counts as accepted.
func (s *MessageService) Send(ctx context.Context, sessionID, text string) error {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "Send",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	defer span.End()

	sess, ok := s.Sessions.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	err := s.API.ExecuteWebhook(ctx, sess.WebhookURL, discord.WebhookParams{
		Content:   text,
		Username:  sess.CustomerName,
		AvatarURL: s.AvatarURL,
	})
	switch {
	case err == nil:
		metrics.MessagesRelayed.Inc()
		return nil
	case discord.IsAPIError(err):
		metrics.UpstreamErrors.WithLabelValues(metrics.OpExecuteWebhook).Inc()
		zerolog.Ctx(ctx).Warn().Err(err).Str("session_id", sessionID).Msg("discord rejected relayed message")
		return nil
	default:
		metrics.UpstreamErrors.WithLabelValues(metrics.OpExecuteWebhook).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
}

// Poll returns the channel messages posted since the previous poll of the
// session, oldest first, without the customer's own relayed messages.
//
// The session stays locked from the read until the cursor moves, so
// concurrent polls of one session never return the same message twice. A
// failed read leaves the cursor where it was.
func (s *MessageService) Poll(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "Poll",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	defer span.End()

	var out []domain.ChatMessage
	err := s.Sessions.Update(sessionID, func(sess *domain.Session) error {
		msgs, err := s.API.ListMessages(ctx, sess.ChannelID, sess.LastMessageID, PollLimit)
		if err != nil {
			return err
		}
		if len(msgs) > 0 {
			sess.LastMessageID = msgs[0].ID
		}
		out = visibleMessages(msgs, sess.CustomerName)
		return nil
	})
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		metrics.Polls.WithLabelValues("error").Inc()
		metrics.UpstreamErrors.WithLabelValues(metrics.OpListMessages).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	span.SetAttributes(attribute.Int("messages", len(out)))
	if len(out) == 0 {
		metrics.Polls.WithLabelValues("empty").Inc()
		return out, nil
	}
	metrics.Polls.WithLabelValues("messages").Inc()
	metrics.MessagesDelivered.Add(float64(len(out)))
	s.Hub.Publish(sessionID, out)
	return out, nil
}

// visibleMessages converts a newest-first page into the customer's view:
// webhook posts carrying the customer's name are treated as their own echoes
// and dropped, and the order is flipped to oldest first.
func visibleMessages(msgs []discord.Message, customerName string) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.WebhookID != "" && m.Author.Username == customerName {
			continue
		}
		out = append(out, domain.ChatMessage{
			ID:        m.ID,
			Author:    m.Author.Username,
			Content:   m.Content,
			Timestamp: m.Timestamp,
			IsBot:     m.Author.Bot,
		})
	}
	return out
}

// Exists reports whether sessionID names a live session.
func (s *MessageService) Exists(sessionID string) bool {
	_, ok := s.Sessions.Get(sessionID)
	return ok
}
