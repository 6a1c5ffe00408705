// Stream HTTP handler.
//
// GET /stream/{sessionId} upgrades to a websocket and pushes every poll
// result of the session as it happens. While the socket is open the handler
// polls the ticket channel on an interval, so staff replies reach the
// customer without client-side polling. Polls triggered elsewhere (another
// stream or GET /get-messages) reach the socket through the hub.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-ticket-bridge/internal/domain"
	"github.com/tbourn/go-ticket-bridge/internal/http/middleware"
	"github.com/tbourn/go-ticket-bridge/internal/services"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamBuffer     = 16

	FrameMessages = "messages"
	FrameError    = "error"
)

// StreamFrame is one server → client websocket message.
type StreamFrame struct {
	Type      string               `json:"type" example:"messages"`
	SessionID string               `json:"sessionId" example:"1735689600000"`
	Messages  []domain.ChatMessage `json:"messages,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// Stream godoc
// @ID          streamMessages
// @Summary     Stream staff replies over a websocket
// @Description Upgrades to a websocket and pushes {type:"messages"} frames whenever new ticket channel messages arrive.
// @Tags        Messages
//
// @Param       sessionId  path  string  true  "Session ID"
//
// @Success     101  "Switching Protocols"
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Router      /stream/{sessionId} [get]
func (h *Handlers) Stream(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if !h.msgSvc.Exists(sessionID) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, sessionNotFoundMsg)
		return
	}
	if h.opts.Hub == nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "stream unavailable")
		return
	}

	lg := middleware.LoggerFrom(c).With().Str("session_id", sessionID).Logger()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		lg.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	batches, cancelSub := h.opts.Hub.Subscribe(sessionID, streamBuffer)
	defer cancelSub()

	ctx, cancel := context.WithCancel(lg.WithContext(c.Request.Context()))
	defer cancel()

	// Hijacked connections are not tracked by http.Server.Shutdown.
	go func() {
		select {
		case <-h.opts.Shutdown:
			cancel()
		case <-ctx.Done():
		}
	}()

	// Reader: only control frames are expected; any read error ends the stream.
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					lg.Debug().Err(err).Msg("websocket read ended")
				}
				return
			}
		}
	}()

	lg.Info().Msg("stream opened")
	defer lg.Info().Msg("stream closed")

	poll := time.NewTicker(h.opts.StreamPollInterval)
	defer poll.Stop()
	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	// First poll right away so the client does not wait a full interval.
	h.streamPoll(ctx, conn, sessionID, &lg)

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(h.closeCode(), ""), time.Now().Add(streamWriteWait))
			return
		case b, open := <-batches:
			if !open {
				return
			}
			if err := writeFrame(conn, StreamFrame{Type: FrameMessages, SessionID: b.SessionID, Messages: b.Messages}); err != nil {
				return
			}
		case <-poll.C:
			if !h.streamPoll(ctx, conn, sessionID, &lg) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

// streamPoll runs one poll. Results arrive through the hub; failures are
// reported to the client as error frames. It returns false when the
// connection can no longer be written.
func (h *Handlers) streamPoll(ctx context.Context, conn *websocket.Conn, sessionID string, lg *zerolog.Logger) bool {
	_, err := h.msgSvc.Poll(ctx, sessionID)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return true
	case errors.Is(err, services.ErrSessionNotFound):
		_ = writeFrame(conn, StreamFrame{Type: FrameError, SessionID: sessionID, Error: sessionNotFoundMsg})
		return false
	default:
		lg.Warn().Err(err).Msg("stream poll failed")
		return writeFrame(conn, StreamFrame{Type: FrameError, SessionID: sessionID, Error: err.Error()}) == nil
	}
}

// closeCode reports going-away once the server is shutting down.
func (h *Handlers) closeCode() int {
	select {
	case <-h.opts.Shutdown:
		return websocket.CloseGoingAway
	default:
		return websocket.CloseNormalClosure
	}
}

func writeFrame(conn *websocket.Conn, f StreamFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(f)
}

// checkOrigin accepts any origin when no allowlist is configured and
// same-host or allowlisted origins otherwise.
func (h *Handlers) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.opts.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}
