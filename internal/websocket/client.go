package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"socialsync-be/internal/dto"
	"socialsync-be/internal/pkg/logger"
	"socialsync-be/internal/pkg/serverutils"
	"socialsync-be/internal/service"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
)

// Client is a middleman between the websocket connection and the chatbot service.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// SessionID is the chat session this socket talks to
	SessionID string

	// Buffered channel of outbound frames.
	Send chan []byte

	chatbot service.IChatbotService
	logger  logger.ILogger
}

// readPump runs one chat turn per inbound frame. Turns of a socket run in order.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.Hub.remove(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket", "Unexpected close", map[string]interface{}{
					"session_id": c.SessionID,
					"error":      err.Error(),
				})
			}
			return
		}

		c.handleFrame(ctx, raw)
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (c *Client) handleFrame(ctx context.Context, raw []byte) {
	var frame dto.SocketChatFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.sendError("invalid frame", false)
		return
	}
	if err := serverutils.ValidateRequest(frame); err != nil {
		c.sendError(err.Error(), false)
		return
	}

	res, err := c.chatbot.Chat(ctx, &dto.ChatRequest{SessionId: c.SessionID, Message: frame.Message})
	if err != nil {
		var turnErr *service.TurnError
		if errors.As(err, &turnErr) {
			c.sendError(err.Error(), true)
			return
		}
		c.logger.Error("WebSocket", "Chat turn failed", map[string]interface{}{
			"session_id": c.SessionID,
			"error":      err.Error(),
		})
		c.sendError("internal server error", false)
		return
	}

	data, err := json.Marshal(res)
	if err != nil {
		c.sendError("internal server error", false)
		return
	}
	c.Hub.Send(ctx, c.SessionID, data)
}

func (c *Client) sendError(message string, retryable bool) {
	data, _ := json.Marshal(dto.SocketErrorFrame{Error: message, Retryable: retryable})
	c.Hub.SendTo(c, data)
}

// writePump pumps frames from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// one JSON document per frame
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
