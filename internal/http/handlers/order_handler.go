// Order HTTP handlers.
//
// This file exposes the order intake endpoint:
//   - POST /create-order
//
// and the Handlers wiring shared by all endpoints. Handlers are
// transport-thin: they validate input, call application services, and
// translate results into HTTP responses.
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous order with
// the same key opened a session that is still live, the original receipt is
// returned with `Idempotency-Replayed: true` and no new ticket is opened.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-ticket-bridge/internal/domain"
	"github.com/tbourn/go-ticket-bridge/internal/http/middleware"
	"github.com/tbourn/go-ticket-bridge/internal/repo"
	"github.com/tbourn/go-ticket-bridge/internal/services"
)

//
// Service contracts (context-aware)
//

// OrderService opens ticket channels for orders.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type OrderService interface {
	// Create runs the intake and returns the new session and channel ids.
	Create(ctx context.Context, o domain.Order) (domain.OrderReceipt, error)
	// Replay returns the receipt of a live session created earlier.
	Replay(sessionID string) (domain.OrderReceipt, bool)
}

// MessageService relays conversation for existing sessions.
type MessageService interface {
	// Send posts text to the session's ticket channel as the customer.
	Send(ctx context.Context, sessionID, text string) error
	// Poll returns channel messages newer than the session cursor.
	Poll(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
	// Exists reports whether sessionID names a live session.
	Exists(sessionID string) bool
}

// StreamHub hands out per-session subscriptions to poll results.
type StreamHub interface {
	Subscribe(sessionID string, buf int) (<-chan services.Batch, func())
}

//
// Handler wiring
//

// Options carries the optional collaborators of Handlers.
type Options struct {
	// DB stores idempotency records. Nil disables idempotent replays.
	DB             *gorm.DB
	IdempotencyTTL time.Duration

	// Hub and StreamPollInterval drive the websocket stream.
	Hub                StreamHub
	StreamPollInterval time.Duration
	// AllowedOrigins restricts websocket upgrades; empty allows any origin.
	AllowedOrigins []string
	// Shutdown is closed when the server stops accepting requests. Open
	// streams end with a going-away close frame. Nil never fires.
	Shutdown <-chan struct{}
}

// Handlers groups the HTTP endpoints of the bridge.
type Handlers struct {
	orderSvc OrderService
	msgSvc   MessageService
	opts     Options
}

// New constructs and returns a Handlers instance bound to the given services.
func New(orderSvc OrderService, msgSvc MessageService, opts Options) *Handlers {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	if opts.StreamPollInterval <= 0 {
		opts.StreamPollInterval = 3 * time.Second
	}
	return &Handlers{orderSvc: orderSvc, msgSvc: msgSvc, opts: opts}
}

//
// DTOs
//

const ticketExistsMsg = "this order already opened a ticket whose chat session has ended"

// CreateOrderResponse is returned when a ticket was opened.
type CreateOrderResponse struct {
	Success   bool   `json:"success" example:"true"`
	SessionID string `json:"sessionId" example:"1735689600000"`
	ChannelID string `json:"channelId" example:"1300000000000000000"`
}

//
// Handlers
//

// CreateOrder godoc
// @ID          createOrder
// @Summary     Open a ticket for an order
// @Description Creates a Discord ticket channel and webhook, posts the order announcement and starts a chat session.
// @Description Supports idempotency via the Idempotency-Key header (same key → same session).
// @Tags        Orders
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string        false "Idempotency key for safe retries (UUID recommended)"
// @Param       body             body    domain.Order  true  "Order form"
//
// @Success     200  {object}  handlers.CreateOrderResponse
// @Header      200  {string}  Idempotency-Replayed  "true when served from a previous request"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Ticket already opened; its session is no longer live"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Discord failure"
// @Router      /create-order [post]
func (h *Handlers) CreateOrder(c *gin.Context) {
	ctx := c.Request.Context()

	var o domain.Order
	if err := c.ShouldBindJSON(&o); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid order: customerName and discordUsername are required")
		return
	}

	scope := c.FullPath()
	idemKey, _ := middleware.GetIdempotencyKey(c)

	// Idempotency (replay path)
	if idemKey != "" && h.opts.DB != nil {
		if rec, err := repo.GetIdempotency(ctx, h.opts.DB, scope, idemKey, time.Now().UTC()); err == nil {
			if prev, live := h.orderSvc.Replay(rec.SessionID); live {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, CreateOrderResponse{Success: true, SessionID: prev.SessionID, ChannelID: prev.ChannelID})
				return
			}
			// The session is gone but its ticket channel still exists;
			// opening another one would duplicate the order in Discord.
			if tk, err := repo.GetTicketBySession(ctx, h.opts.DB, rec.SessionID); err == nil {
				middleware.LoggerFrom(c).Info().
					Str("session_id", tk.SessionID).
					Str("channel_id", tk.ChannelID).
					Msg("idempotent retry for a ticket whose session ended")
				fail(c, http.StatusConflict, ErrCodeTicketExists, ticketExistsMsg)
				return
			}
		}
	}

	rc, err := h.orderSvc.Create(ctx, o)
	if err != nil {
		if errors.Is(err, services.ErrInvalidOrder) {
			failErr(c, http.StatusBadRequest, ErrCodeBadRequest, err)
			return
		}
		failErr(c, http.StatusInternalServerError, ErrCodeOrderFailed, err)
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" && h.opts.DB != nil {
		if _, err := repo.CreateIdempotency(ctx, h.opts.DB, scope, idemKey, rc.SessionID, http.StatusOK, h.opts.IdempotencyTTL); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not stored")
		}
	}

	ok(c, http.StatusOK, CreateOrderResponse{Success: true, SessionID: rc.SessionID, ChannelID: rc.ChannelID})
}
