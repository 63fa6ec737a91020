package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"receivables/internal/config"
	"receivables/internal/database"
	"receivables/internal/routes"
	"receivables/internal/websocket"

	"github.com/gin-gonic/gin"
)

// @title           Receivables API
// @version         1.0
// @description     Accounts-receivable invoices: lifecycle, payment links and dashboard statistics.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	db, err := database.NewConnection(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Printf("Connected to %s successfully.", cfg.DBDriver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.SeedAdmin(ctx, db, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatalf("Seeding admin user failed: %v", err)
	}

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)

	router := routes.NewRouter(cfg, db, wsHub)

	log.Printf("Server listening on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
