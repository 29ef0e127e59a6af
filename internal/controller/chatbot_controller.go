package controller

import (
	"errors"

	"socialsync-be/internal/dto"
	"socialsync-be/internal/pkg/logger"
	"socialsync-be/internal/pkg/serverutils"
	"socialsync-be/internal/service"
	ws "socialsync-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type IChatbotController interface {
	RegisterRoutes(r fiber.Router)
	Chat(ctx *fiber.Ctx) error
	Reset(ctx *fiber.Ctx) error
	Session(ctx *fiber.Ctx) error
	Greeting(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
}

type chatbotController struct {
	chatbotService service.IChatbotService
	// nil when no archive database is configured
	archiveService service.IArchiveService
	hub            *ws.Hub
	logger         logger.ILogger
}

func NewChatbotController(
	chatbotService service.IChatbotService,
	archiveService service.IArchiveService,
	hub *ws.Hub,
	logger logger.ILogger,
) IChatbotController {
	return &chatbotController{
		chatbotService: chatbotService,
		archiveService: archiveService,
		hub:            hub,
		logger:         logger,
	}
}

func (c *chatbotController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Post("chat", c.Chat)
	h.Post("reset", c.Reset)
	h.Get("greeting", c.Greeting)
	h.Get("session/:id", c.Session)
	h.Get("archive/:session_key", c.History)
	h.Use("ws", c.upgrade)
	h.Get("ws", websocket.New(c.serveSocket))
}

// Chat answers with the bare payload, the shape chat clients already read.
func (c *chatbotController) Chat(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.chatbotService.Chat(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(res)
}

func (c *chatbotController) Reset(ctx *fiber.Ctx) error {
	var req dto.ResetRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.chatbotService.Reset(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(res)
}

func (c *chatbotController) Session(ctx *fiber.Ctx) error {
	res, err := c.chatbotService.Snapshot(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "session not found")
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session", res))
}

func (c *chatbotController) Greeting(ctx *fiber.Ctx) error {
	res := c.chatbotService.Greeting(ctx.UserContext())
	return ctx.JSON(serverutils.SuccessResponse("Success get greeting", res))
}

func (c *chatbotController) History(ctx *fiber.Ctx) error {
	if c.archiveService == nil {
		return fiber.NewError(fiber.StatusNotFound, "archive is not enabled")
	}

	req := dto.ArchiveHistoryRequest{
		SessionKey: ctx.Params("session_key"),
		Page:       ctx.QueryInt("page", 1),
		PerPage:    ctx.QueryInt("per_page", 10),
	}
	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.archiveService.History(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get archive", res))
}

func (c *chatbotController) upgrade(ctx *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}
	sessionID := ctx.Query("session_id")
	if sessionID == "" || len(sessionID) > 128 {
		return fiber.NewError(fiber.StatusBadRequest, "session_id query parameter is required")
	}
	ctx.Locals("session_id", sessionID)
	return ctx.Next()
}

func (c *chatbotController) serveSocket(conn *websocket.Conn) {
	sessionID, _ := conn.Locals("session_id").(string)
	ws.ServeWs(c.hub, c.chatbotService, conn, sessionID, c.logger)
}
