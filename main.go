package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"lapak/internal/handlers"
	"lapak/internal/middleware"
	"lapak/internal/models"
	"lapak/internal/repositories"
	"lapak/internal/services"
	"lapak/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	viper.SetDefault("APP_PORT", ":8080")
	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("DATABASE_DSN", "lapak.db")
	viper.SetDefault("JWT_SECRET", "change_me_in_production")
	viper.SetDefault("RABBITMQ_URL", "")
	viper.AutomaticEnv()

	appPort := viper.GetString("APP_PORT")

	// --- Store ---
	// The store handle is constructed once here and injected everywhere;
	// no package looks connection state up from ambient globals.
	store, err := openStore(viper.GetString("DB_DRIVER"), viper.GetString("DATABASE_DSN"))
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	// --- RabbitMQ (optional) ---
	var mqClient *rabbitmq.Client
	if url := viper.GetString("RABBITMQ_URL"); url != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: url})
		if err != nil {
			log.Printf("Warning: RabbitMQ unavailable, order events disabled: %v", err)
		} else {
			defer mqClient.Close()
		}
	}

	app, _ := newApp(store, mqClient, viper.GetString("JWT_SECRET"))

	// --- Order events consumer ---
	if mqClient != nil {
		log.Println("Starting RabbitMQ consumer for order events...")
		err := mqClient.ConsumeOrderEvents(func(msg amqp.Delivery) error {
			log.Printf("Received order event (tag %d): %s", msg.DeliveryTag, string(msg.Body))
			return nil
		})
		if err != nil {
			log.Printf("Failed to start RabbitMQ consumer: %v", err)
		}
	}

	// --- Start HTTP server ---
	log.Printf("Starting server on port %s", appPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(appPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}

	log.Println("Server gracefully stopped")
}

// openStore builds the store handle for the configured driver. The
// memory driver needs no database and comes pre-seeded with a small
// catalog, useful for demos and smoke tests.
func openStore(driver, dsn string) (repositories.Store, error) {
	switch driver {
	case "memory":
		store := repositories.NewMemoryStore()
		seedProducts(store.Products())
		return store, nil
	case "sqlite", "postgres":
		var dialector gorm.Dialector
		if driver == "sqlite" {
			dialector = sqlite.Open(dsn)
		} else {
			dialector = postgres.Open(dsn)
		}
		db, err := gorm.Open(dialector, &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.AutoMigrate(&models.Product{}, &models.User{}, &models.Order{}, &models.OrderItem{}); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return repositories.NewGormStore(db), nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", driver)
	}
}

// newApp wires repositories, services and handlers into a Fiber app.
func newApp(store repositories.Store, mqClient *rabbitmq.Client, jwtSecret string) (*fiber.App, *services.AuthService) {
	productService := services.NewProductService(store.Products())
	orderService := services.NewOrderService(store, mqClient)
	authService := services.NewAuthService(store.Users(), jwtSecret)

	productHandler := handlers.NewProductHandler(productService)
	orderHandler := handlers.NewOrderHandler(orderService)
	authHandler := handlers.NewAuthHandler(authService)

	app := fiber.New()
	app.Use(logger.New())

	apiV1 := app.Group("/api/v1")

	// Auth routes are public, everything else requires a valid token.
	authHandler.RegisterRoutes(apiV1)
	protected := apiV1.Group("", middleware.AuthRequired(authService))
	productHandler.RegisterRoutes(protected)
	orderHandler.RegisterRoutes(protected)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return app, authService
}

// seedProducts populates a product repository with initial catalog data.
func seedProducts(repo repositories.ProductRepository) {
	products := []models.Product{
		{ID: "prod-1", Name: "Laptop", Description: "High performance laptop", Price: 1200.00, Stock: 10},
		{ID: "prod-2", Name: "Keyboard", Description: "Mechanical keyboard", Price: 75.00, Stock: 25},
		{ID: "prod-3", Name: "Mouse", Description: "Ergonomic wireless mouse", Price: 25.00, Stock: 50},
	}

	for i := range products {
		if err := repo.Create(context.Background(), &products[i]); err != nil {
			log.Printf("Error seeding product %s: %v", products[i].Name, err)
		}
	}
}
