package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/trafficgrid/backend/bus"
	"github.com/trafficgrid/backend/database"
	"github.com/trafficgrid/backend/enforcement"
	"github.com/trafficgrid/backend/handlers"
	"github.com/trafficgrid/backend/natsserver"
	"github.com/trafficgrid/backend/repository"
	"github.com/trafficgrid/backend/services"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Connect to database
	db, err := database.Connect()
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	repos := repository.New(db)

	// Start embedded NATS server for event fan-out
	natsCfg := natsserver.DefaultConfig()
	if portStr := os.Getenv("NATS_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			natsCfg.Port = port
		}
	}
	natsServer, err := natsserver.New(natsCfg)
	if err != nil {
		log.Fatalf("❌ Failed to start NATS server: %v", err)
	}
	defer natsServer.Shutdown()
	log.Printf("📡 Embedded NATS server started on port %d", natsServer.Port())

	eventBus, err := bus.Connect(natsServer.Address())
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer eventBus.Close()

	// Enforcement wiring
	resolver := enforcement.NewRuleResolver(repos.FineRules)
	calculator := enforcement.NewCalculator(resolver)
	ledger := enforcement.NewLedger(repos.Vehicles)
	alertPolicy := enforcement.NewAlertPolicy(repos.Alerts, eventBus)
	pipeline := enforcement.NewPipeline(repos.Violations, repos.Audit, ledger, calculator, alertPolicy, eventBus)

	// WebSocket event hub relaying every bus topic to dashboard clients
	hub := services.NewEventHub(eventBus)
	if err := hub.Start(); err != nil {
		log.Fatalf("❌ Failed to start event hub: %v", err)
	}
	log.Println("📺 Event hub initialized")

	heartbeats := services.NewHeartbeatService(repos.Cameras, eventBus)
	monitor := services.NewLivenessMonitor(
		repos.Cameras,
		eventBus,
		durationEnv("CAMERA_STALE_AFTER", services.DefaultStaleAfter),
		durationEnv("CAMERA_SWEEP_INTERVAL", services.DefaultSweepInterval),
	)

	api := handlers.NewAPI(db, repos, pipeline, ledger, calculator, heartbeats, hub, eventBus)

	// Setup Gin router
	if os.Getenv("ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// CORS middleware
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(config))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// WebSocket route for the dashboard event stream (outside /api group)
	router.GET("/ws/events", api.ServeWS)

	registerRoutes(router, api)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}
	server := &http.Server{Addr: ":" + port, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		monitor.Run(ctx)
		return nil
	})
	g.Go(func() error {
		log.Printf("🚀 Server running on http://localhost:%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}
	log.Println("✅ Shutdown complete")
}

func registerRoutes(router *gin.Engine, api *handlers.API) {
	apiGroup := router.Group("/api")

	// Auth routes
	auth := apiGroup.Group("/auth")
	{
		auth.POST("/login", api.Login)
		auth.POST("/register", api.Register)
	}

	// Heartbeat comes from camera agents, not operators
	apiGroup.POST("/cameras/:id/heartbeat", api.Heartbeat)

	// Detection ingestion comes from the AI service
	apiGroup.POST("/violations", api.PostViolation)

	// Everything else requires an operator token
	authed := apiGroup.Group("")
	authed.Use(api.AuthMiddleware())
	{
		authed.GET("/ws/stats", api.GetHubStats)

		violations := authed.Group("/violations")
		{
			violations.GET("", api.GetViolations)
			violations.GET("/stats", api.GetViolationStats)
			violations.GET("/:id", api.GetViolation)
			violations.GET("/:id/fine", api.GetFineDetails)
			violations.PATCH("/:id/status", handlers.RequireClearance(2), api.PatchViolationStatus)
		}

		alerts := authed.Group("/alerts")
		{
			alerts.GET("/active", api.GetActiveAlerts)
			alerts.PATCH("/:id/status", handlers.RequireClearance(2), api.PatchAlertStatus)
		}

		cameras := authed.Group("/cameras")
		{
			cameras.GET("", api.GetCameras)
			cameras.GET("/status", api.GetCameraStatus)
			cameras.GET("/:id", api.GetCamera)
			cameras.POST("/register", handlers.RequireClearance(4), api.RegisterCamera)
		}

		vehicles := authed.Group("/vehicles")
		{
			vehicles.GET("/:plate", api.GetVehicle)
			vehicles.POST("/:plate/blacklist", handlers.RequireClearance(2), api.BlacklistVehicle)
			vehicles.DELETE("/:plate/blacklist", handlers.RequireClearance(2), api.UnblacklistVehicle)
		}

		authed.GET("/analytics", api.GetAnalyticsSummary)
	}
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return fallback
}
