package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/DietChatBack/internal/models"
	"github.com/saeid-a/DietChatBack/internal/services"
	chatws "github.com/saeid-a/DietChatBack/internal/websocket"
	"github.com/saeid-a/DietChatBack/pkg/utils"
)

var validate = validator.New()

// ClientController is the client-side surface the handler drives; it is
// satisfied by services.ClientSession.
type ClientController interface {
	OpenOrCreateChat(ctx context.Context, dietitianID, firstMessageText string) (string, error)
	SendMessage(ctx context.Context, chatID, text string) error
	ListChats(ctx context.Context) ([]services.ChatSummary, error)
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
}

// DietitianController is the dietitian-side surface, satisfied by
// services.DietitianSession.
type DietitianController interface {
	OpenOrCreateChat(ctx context.Context, clientID string) (string, error)
	SendMessage(ctx context.Context, chatID, text string) error
	ListInbox(ctx context.Context) ([]services.ChatSummary, error)
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
	AcceptChat(ctx context.Context, chatID string) error
	CloseChat(ctx context.Context, chatID string) error
	SuggestPlan(ctx context.Context, chatID, planID string) error
	ListPlans(ctx context.Context) ([]models.Plan, error)
}

// Session factories build a controller bound to the authenticated user; the
// REST surface uses them per request, the websocket gateway per connection.
type (
	ClientControllerFactory    func(clientID string) ClientController
	DietitianControllerFactory func(dietitianID string) DietitianController
)

type ChatHandler struct {
	clients    ClientControllerFactory
	dietitians DietitianControllerFactory
	gateway    *chatws.Gateway
	jwtSecret  string
}

func NewChatHandler(
	clients ClientControllerFactory,
	dietitians DietitianControllerFactory,
	gateway *chatws.Gateway,
	jwtSecret string,
) *ChatHandler {
	return &ChatHandler{
		clients:    clients,
		dietitians: dietitians,
		gateway:    gateway,
		jwtSecret:  jwtSecret,
	}
}

type createChatRequest struct {
	DietitianID  string `json:"dietitianId" validate:"required"`
	FirstMessage string `json:"firstMessage"`
}

type openChatRequest struct {
	ClientID string `json:"clientId" validate:"required"`
}

type sendMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

type suggestPlanRequest struct {
	PlanID string `json:"planId" validate:"required"`
}

func (h *ChatHandler) ListChats(c *fiber.Ctx) error {
	userID, role, err := callerIdentity(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var chats []services.ChatSummary
	switch role {
	case models.RoleDietitian:
		chats, err = h.dietitians(userID).ListInbox(c.Context())
	case models.RoleClient:
		chats, err = h.clients(userID).ListChats(c.Context())
	default:
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"chats": chats})
}

// CreateChat is the client-initiated open-or-create. An open chat with the
// dietitian is reused; otherwise a waiting chat is created around the first
// message.
func (h *ChatHandler) CreateChat(c *fiber.Ctx) error {
	userID, role, err := callerIdentity(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	if role != models.RoleClient {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	var req createChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}

	chatID, err := h.clients(userID).OpenOrCreateChat(c.Context(), req.DietitianID, req.FirstMessage)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"chatId": chatID})
}

// OpenChat is the dietitian-initiated open-or-create; new chats start active.
func (h *ChatHandler) OpenChat(c *fiber.Ctx) error {
	userID, role, err := callerIdentity(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	if role != models.RoleDietitian {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	var req openChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}

	chatID, err := h.dietitians(userID).OpenOrCreateChat(c.Context(), req.ClientID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"chatId": chatID})
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userID, role, err := callerIdentity(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	chatID := c.Params("id")
	if chatID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid chat id"})
	}

	var messages []models.Message
	switch role {
	case models.RoleDietitian:
		messages, err = h.dietitians(userID).ListMessages(c.Context(), chatID)
	case models.RoleClient:
		messages, err = h.clients(userID).ListMessages(c.Context(), chatID)
	default:
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"messages": messages})
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userID, role, err := callerIdentity(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	chatID := c.Params("id")
	if chatID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid chat id"})
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}

	switch role {
	case models.RoleDietitian:
		err = h.dietitians(userID).SendMessage(c.Context(), chatID, req.Text)
	case models.RoleClient:
		err = h.clients(userID).SendMessage(c.Context(), chatID, req.Text)
	default:
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	if err != nil {
		return mapChatError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) AcceptChat(c *fiber.Ctx) error {
	return h.dietitianChatAction(c, func(ctx context.Context, controller DietitianController, chatID string) error {
		return controller.AcceptChat(ctx, chatID)
	})
}

func (h *ChatHandler) CloseChat(c *fiber.Ctx) error {
	return h.dietitianChatAction(c, func(ctx context.Context, controller DietitianController, chatID string) error {
		return controller.CloseChat(ctx, chatID)
	})
}

func (h *ChatHandler) SuggestPlan(c *fiber.Ctx) error {
	var req suggestPlanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}

	return h.dietitianChatAction(c, func(ctx context.Context, controller DietitianController, chatID string) error {
		return controller.SuggestPlan(ctx, chatID, req.PlanID)
	})
}

func (h *ChatHandler) ListPlans(c *fiber.Ctx) error {
	userID, role, err := callerIdentity(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	if role != models.RoleDietitian {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	plans, err := h.dietitians(userID).ListPlans(c.Context())
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"plans": plans})
}

func (h *ChatHandler) dietitianChatAction(c *fiber.Ctx, action func(context.Context, DietitianController, string) error) error {
	userID, role, err := callerIdentity(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	if role != models.RoleDietitian {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	chatID := c.Params("id")
	if chatID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid chat id"})
	}

	if err := action(c.Context(), h.dietitians(userID), chatID); err != nil {
		return mapChatError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	h.gateway.Handle(conn)
}

func (h *ChatHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

func callerIdentity(c *fiber.Ctx) (string, string, error) {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return "", "", errors.New("missing user id")
	}
	role, _ := c.Locals("role").(string)
	return userID, role, nil
}

func mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrChatNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Chat not found"})
	case errors.Is(err, services.ErrPlanNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Plan not found"})
	case errors.Is(err, services.ErrChatClosed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Chat is closed"})
	case errors.Is(err, services.ErrChatNotActive):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Chat is not active"})
	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Invalid chat state"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process chat request"})
	}
}
