// Message HTTP handlers.
//
// This file exposes the conversation endpoints of a session:
//   - POST /send-message               (customer → ticket channel)
//   - GET  /get-messages/{sessionId}   (ticket channel → customer)
//
// Unknown sessions map to 404. Discord failures map to 500 with the failing
// operation in the error text.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-ticket-bridge/internal/domain"
	"github.com/tbourn/go-ticket-bridge/internal/services"
)

// SendMessageRequest is the JSON payload for relaying a customer message.
type SendMessageRequest struct {
	SessionID string `json:"sessionId" example:"1735689600000"`
	Message   string `json:"message" example:"Is my order on the way?"`
}

// SendMessageResponse acknowledges a relayed message.
type SendMessageResponse struct {
	Success bool `json:"success" example:"true"`
}

// GetMessagesResponse carries the messages posted since the previous poll.
type GetMessagesResponse struct {
	Messages []domain.ChatMessage `json:"messages"`
}

// sessionNotFoundMsg is the client-facing text for unknown sessions.
const sessionNotFoundMsg = "Session not found"

// SendMessage godoc
// @ID          sendMessage
// @Summary     Relay a customer message
// @Description Posts the message to the session's ticket channel under the customer's name.
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.SendMessageRequest  true  "Message payload"
//
// @Success     200  {object}  handlers.SendMessageResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Discord unreachable"
// @Router      /send-message [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	if err := h.msgSvc.Send(c.Request.Context(), req.SessionID, req.Message); err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, sessionNotFoundMsg)
			return
		}
		failErr(c, http.StatusInternalServerError, ErrCodeRelayFailed, err)
		return
	}
	ok(c, http.StatusOK, SendMessageResponse{Success: true})
}

// GetMessages godoc
// @ID          getMessages
// @Summary     Poll staff replies
// @Description Returns ticket channel messages posted since the previous poll, oldest first, excluding the customer's own messages.
// @Tags        Messages
// @Produce     json
//
// @Param       sessionId  path  string  true  "Session ID"
//
// @Success     200  {object}  handlers.GetMessagesResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Discord failure"
// @Router      /get-messages/{sessionId} [get]
func (h *Handlers) GetMessages(c *gin.Context) {
	msgs, err := h.msgSvc.Poll(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, sessionNotFoundMsg)
			return
		}
		failErr(c, http.StatusInternalServerError, ErrCodePollFailed, err)
		return
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	ok(c, http.StatusOK, GetMessagesResponse{Messages: msgs})
}
