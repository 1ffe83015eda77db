package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mdmstudio/sns-backend/internal/config"
	"github.com/mdmstudio/sns-backend/internal/database"
	"github.com/mdmstudio/sns-backend/internal/handlers"
	"github.com/mdmstudio/sns-backend/internal/middleware"
	"github.com/mdmstudio/sns-backend/internal/models"
	"github.com/mdmstudio/sns-backend/internal/pubsub"
	"github.com/mdmstudio/sns-backend/internal/services"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := models.AutoMigrate(database.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Seed admin user if not exists
	seedAdminUser()

	publisher := pubsub.NewRedisPublisher(database.Redis)
	directory := services.NewDeviceDirectory(database.DB)
	workflowService := services.NewWorkflowService(database.DB)

	// Start the workflow dispatch loop
	dispatchService := services.NewDispatchService(
		database.DB, publisher, cfg.PubSubTopic,
		time.Duration(cfg.DispatchIntervalSeconds)*time.Second,
	)
	dispatchService.Start()

	// Start the screenshot timer loop
	screenshotService := services.NewScreenshotService(
		database.DB, publisher, directory, cfg.PubSubTopic,
		time.Duration(cfg.ScreenshotPollSeconds)*time.Second,
	)
	screenshotService.Start()

	// Start the screenshot archive loop (no-op without FTP config)
	archiveService := services.NewArchiveService(cfg, database.DB)
	archiveService.Start()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "SNS API v1.0",
		ServerHeader: "SNS",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(compress.New())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "sns-api",
		})
	})

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(cfg)
	workflowHandler := handlers.NewWorkflowHandler(workflowService)
	screenshotHandler := handlers.NewScreenshotHandler(screenshotService, directory)
	deviceHandler := handlers.NewDeviceHandler(workflowService)
	divisionHandler := handlers.NewDivisionHandler()

	// API routes
	api := app.Group("/api")
	api.Use(middleware.RateLimiter(100, 1*time.Minute))

	// Public routes
	api.Post("/auth/login", authHandler.Login)

	// Device-facing acknowledgment (devices authenticate out of band)
	api.Post("/devices/:id/ack", deviceHandler.Ack)

	// Protected routes
	protected := api.Group("", middleware.AuthRequired(cfg))

	// Auth routes
	protected.Post("/auth/logout", authHandler.Logout)
	protected.Get("/auth/me", authHandler.Me)

	// Workflow routes
	workflow := protected.Group("/workflow")
	workflow.Post("/send-workflows", workflowHandler.Create)
	workflow.Get("/workflows/history", workflowHandler.History)
	workflow.Put("/workflows/:id", workflowHandler.Update)
	workflow.Delete("/workflows/:id", workflowHandler.Delete)
	workflow.Get("/workflows/:id/acks", workflowHandler.Acks)

	// Device routes
	devices := protected.Group("/devices")
	devices.Get("/", deviceHandler.List)
	devices.Post("/", deviceHandler.Register)

	// Division routes
	divisions := protected.Group("/divisions")
	divisions.Post("/create", divisionHandler.Create)
	divisions.Get("/", divisionHandler.List)
	divisions.Get("/unassigned-devices", divisionHandler.UnassignedDevices)

	// Screenshot routes
	screenshots := protected.Group("/screenshots")
	screenshots.Post("/screenshot", screenshotHandler.Capture)
	screenshots.Post("/screenshot/all", screenshotHandler.CaptureAll)
	screenshots.Get("/screenshots", screenshotHandler.List)
	screenshots.Post("/start-timer", screenshotHandler.StartTimer)
	screenshots.Post("/stop-timer", screenshotHandler.StopTimer)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		dispatchService.Stop()
		screenshotService.Stop()
		archiveService.Stop()
		app.Shutdown()
	}()

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	log.Printf("Starting SNS API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func seedAdminUser() {
	var count int64
	database.DB.Model(&models.User{}).Count(&count)

	if count == 0 {
		log.Println("Creating default admin user...")

		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)

		admin := models.User{
			Username: "admin",
			Password: string(hashedPassword),
			Email:    "admin@sns.local",
			FullName: "System Administrator",
			IsActive: true,
		}

		if err := database.DB.Create(&admin).Error; err != nil {
			log.Printf("Failed to create admin user: %v", err)
		} else {
			log.Println("Admin user created successfully (username: admin, password: admin123)")
		}
	}
}
