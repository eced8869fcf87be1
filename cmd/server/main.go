package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/saeid-a/DietChatBack/internal/config"
	"github.com/saeid-a/DietChatBack/internal/database"
	"github.com/saeid-a/DietChatBack/internal/routes"
	"github.com/saeid-a/DietChatBack/internal/store"
	"github.com/saeid-a/DietChatBack/internal/store/memstore"
	"github.com/saeid-a/DietChatBack/internal/store/pgstore"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Open the document store
	var st store.Store
	switch cfg.StoreDriver {
	case "memory":
		st = memstore.New()
		log.Println("Using in-memory document store")
	default:
		if err := database.ConnectDB(cfg.DBUrl); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.CloseDB()

		pg, err := pgstore.New(context.Background(), database.DB)
		if err != nil {
			log.Fatalf("Failed to open document store: %v", err)
		}
		defer pg.Close()
		st = pg
	}

	// 3. Setup Fiber
	app := fiber.New()

	// Middleware
	app.Use(cors.New())
	app.Use(logger.New())
	app.Use(recover.New())

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	routes.RegisterRoutes(app, cfg, st)

	// 4. Start Server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
