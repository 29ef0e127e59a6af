package websocket

import (
	"context"

	"socialsync-be/internal/pkg/logger"
	"socialsync-be/internal/service"

	"github.com/gofiber/websocket/v2"
)

// ServeWs runs a chat socket for sessionID until the peer goes away.
// In-flight turns are abandoned when it does.
func ServeWs(hub *Hub, chatbot service.IChatbotService, c *websocket.Conn, sessionID string, log logger.ILogger) {
	client := &Client{
		Hub:       hub,
		Conn:      c,
		SessionID: sessionID,
		Send:      make(chan []byte, 32),
		chatbot:   chatbot,
		logger:    log,
	}
	if !client.Hub.add(client) {
		c.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go client.writePump()
	client.readPump(ctx) // Run readPump in current goroutine (handler)
}
