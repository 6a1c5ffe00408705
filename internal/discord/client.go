// Package discord is a small client for the parts of the Discord REST API the
// ticket bridge needs: creating ticket channels and webhooks, executing
// webhooks, and listing channel messages.
//
// Every call is a single request. There are no retries and no client-side
// rate limiting; a non-2xx response is returned as *APIError so callers can
// tell upstream rejections apart from transport failures.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxErrorBody caps how much of an error response is kept in APIError.Body.
const maxErrorBody = 4 << 10

// APIError is returned when Discord answers with a non-2xx status.
type APIError struct {
	Op     string // e.g. "create channel"
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("failed to %s: discord status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("failed to %s: discord status %d: %s", e.Op, e.Status, e.Body)
}

// IsAPIError reports whether err carries an upstream rejection.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// Client talks to the Discord REST API with a bot token.
//
// It is safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a Client rooted at baseURL (e.g.
// "https://discord.com/api/v10"). A timeout <= 0 leaves the transport default.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	hc := &http.Client{}
	if timeout > 0 {
		hc.Timeout = timeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    hc,
	}
}

// WebhookURL returns the execute URL of w. The URL embeds the webhook token
// and must be treated as a secret.
func (c *Client) WebhookURL(w *Webhook) string {
	return c.baseURL + "/webhooks/" + url.PathEscape(w.ID) + "/" + url.PathEscape(w.Token)
}

// CreateChannel creates a channel in guildID.
func (c *Client) CreateChannel(ctx context.Context, guildID string, p CreateChannelParams) (*Channel, error) {
	ctx, span := tracer().Start(ctx, "CreateChannel", trace.WithAttributes(
		attribute.String("discord.guild_id", guildID),
		attribute.String("discord.channel_name", p.Name),
	))
	defer span.End()

	var ch Channel
	err := c.do(ctx, "create channel", http.MethodPost, c.baseURL+"/guilds/"+url.PathEscape(guildID)+"/channels", true, p, &ch)
	if err != nil {
		recordErr(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("discord.channel_id", ch.ID))
	return &ch, nil
}

// CreateWebhook creates a webhook named name on channelID.
func (c *Client) CreateWebhook(ctx context.Context, channelID, name string) (*Webhook, error) {
	ctx, span := tracer().Start(ctx, "CreateWebhook", trace.WithAttributes(
		attribute.String("discord.channel_id", channelID),
	))
	defer span.End()

	var wh Webhook
	body := map[string]string{"name": name}
	if err := c.do(ctx, "create webhook", http.MethodPost, c.baseURL+"/channels/"+url.PathEscape(channelID)+"/webhooks", true, body, &wh); err != nil {
		recordErr(span, err)
		return nil, err
	}
	if wh.ID == "" || wh.Token == "" {
		err := errors.New("failed to create webhook: response missing id or token")
		recordErr(span, err)
		return nil, err
	}
	return &wh, nil
}

// ExecuteWebhook posts p through the webhook at webhookURL. No bot token is
// sent; the webhook URL authenticates itself.
func (c *Client) ExecuteWebhook(ctx context.Context, webhookURL string, p WebhookParams) error {
	ctx, span := tracer().Start(ctx, "ExecuteWebhook", trace.WithAttributes(
		attribute.Int("discord.embeds", len(p.Embeds)),
	))
	defer span.End()

	if err := c.do(ctx, "execute webhook", http.MethodPost, webhookURL, false, p, nil); err != nil {
		recordErr(span, err)
		return err
	}
	return nil
}

// ListMessages returns up to limit messages of channelID, newest first. When
// after is non-empty only messages with a larger snowflake are returned.
func (c *Client) ListMessages(ctx context.Context, channelID, after string, limit int) ([]Message, error) {
	ctx, span := tracer().Start(ctx, "ListMessages", trace.WithAttributes(
		attribute.String("discord.channel_id", channelID),
		attribute.String("discord.after", after),
		attribute.Int("discord.limit", limit),
	))
	defer span.End()

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if after != "" {
		q.Set("after", after)
	}
	u := c.baseURL + "/channels/" + url.PathEscape(channelID) + "/messages?" + q.Encode()

	var out []Message
	if err := c.do(ctx, "fetch messages", http.MethodGet, u, true, nil, &out); err != nil {
		recordErr(span, err)
		return nil, err
	}
	if out == nil {
		out = []Message{}
	}
	span.SetAttributes(attribute.Int("discord.count", len(out)))
	return out, nil
}

// do sends one JSON request. in is marshaled when non-nil; out is decoded
// when non-nil and the response has a body.
func (c *Client) do(ctx context.Context, op, method, u string, auth bool, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bot "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func tracer() trace.Tracer { return otel.Tracer("discord/Client") }

func recordErr(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
