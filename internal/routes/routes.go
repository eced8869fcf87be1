package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/DietChatBack/internal/config"
	"github.com/saeid-a/DietChatBack/internal/handlers"
	"github.com/saeid-a/DietChatBack/internal/middleware"
	"github.com/saeid-a/DietChatBack/internal/models"
	"github.com/saeid-a/DietChatBack/internal/repository"
	"github.com/saeid-a/DietChatBack/internal/services"
	"github.com/saeid-a/DietChatBack/internal/store"
	chatws "github.com/saeid-a/DietChatBack/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, st store.Store) {
	chatRepo := repository.NewChatRepository(st)
	messageRepo := repository.NewMessageRepository(st)
	indexRepo := repository.NewChatIndexRepository(st)
	userRepo := repository.NewUserRepository(st)
	planRepo := repository.NewPlanRepository(st)

	clientFactory := func(clientID string) handlers.ClientController {
		return services.NewClientSession(st, chatRepo, messageRepo, indexRepo, userRepo, clientID)
	}
	dietitianFactory := func(dietitianID string) handlers.DietitianController {
		return services.NewDietitianSession(st, chatRepo, messageRepo, indexRepo, userRepo, planRepo, dietitianID)
	}

	sessionFactory := func(userID, role string) chatws.Session {
		if role == models.RoleDietitian {
			return services.NewDietitianSession(st, chatRepo, messageRepo, indexRepo, userRepo, planRepo, userID)
		}
		return services.NewClientSession(st, chatRepo, messageRepo, indexRepo, userRepo, userID)
	}
	gateway := chatws.NewGateway(sessionFactory)

	presenceService := services.NewPresenceService(indexRepo)

	chatHandler := handlers.NewChatHandler(clientFactory, dietitianFactory, gateway, cfg.JWTSecret)
	presenceHandler := handlers.NewPresenceHandler(presenceService)

	api := app.Group("/api")
	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	chats := authProtected.Group("/chats")
	chats.Get("", chatHandler.ListChats)
	chats.Post("", chatHandler.CreateChat)
	chats.Post("/open", chatHandler.OpenChat)
	chats.Get("/:id/messages", chatHandler.GetMessages)
	chats.Post("/:id/messages", chatHandler.SendMessage)
	chats.Post("/:id/accept", chatHandler.AcceptChat)
	chats.Post("/:id/close", chatHandler.CloseChat)
	chats.Post("/:id/suggest-plan", chatHandler.SuggestPlan)

	authProtected.Get("/plans", chatHandler.ListPlans)

	authProtected.Get("/availability", presenceHandler.GetAvailability)
	authProtected.Put("/availability", presenceHandler.SetAvailability)

	api.Use("/v1/ws", chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))
}
