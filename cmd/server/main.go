package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/insider-api/internal/auth"
	"github.com/ksred/insider-api/internal/config"
	"github.com/ksred/insider-api/internal/database"
	"github.com/ksred/insider-api/internal/edgar"
	"github.com/ksred/insider-api/internal/pipeline"
	"github.com/ksred/insider-api/internal/types"
	"github.com/ksred/insider-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// EDGAR's published fair-access ceiling.
const (
	edgarMaxRequests = 10
	edgarWindow      = time.Second
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the insider-trade API server with graceful
// shutdown support. It wires the EDGAR acquisition pipeline, its scheduler
// and the read API against one shared database connection.
func main() {
	cfg := config.FromEnv()

	// Initialize database
	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// The EDGAR client refuses to start without a contact header; this is
	// a deployment configuration error, surface it immediately.
	limiter := edgar.NewLimiter(edgarMaxRequests, edgarWindow)
	client, err := edgar.NewClient(cfg.SECUserAgent, limiter)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize EDGAR client")
	}

	parser := edgar.NewParser(edgar.NumericZeroOnError)
	pipelineService := pipeline.NewService(db, client, parser)
	pipelineHandlers := pipeline.NewGinHandlers(pipelineService)

	authService := auth.NewService(cfg.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	if key, secret := os.Getenv("API_KEY"), os.Getenv("API_SECRET"); key != "" {
		authService.RegisterAPICredentials(key, secret)
	}

	// Create and start the scheduled scrape processor
	processor := pipeline.NewProcessor(pipelineService, types.ScrapeRequest{
		Tickers:    cfg.ScrapeTickers,
		DaysBack:   cfg.DaysBack,
		MaxFilings: cfg.MaxFilings,
	}, cfg.ScrapeInterval)
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go processor.Start(processorCtx)

	// Initialize router
	router := gin.Default()
	router.Use(middleware.RateLimit())

	setupRoutes(router, cfg.JWTSecret, authHandlers, pipelineHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Stop the scheduler first so no scrape is mid-flight during shutdown
	processorCancel()

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// - Auth routes: public token issuance
// - Read routes: trades and filings, protected by JWT authentication
// - Internal routes: scrape trigger, protected by internal network auth
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	pipelineHandlers *pipeline.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Read routes
		reads := v1.Group("")
		reads.Use(middleware.JWTAuth(jwtSecret))
		{
			reads.GET("/trades/:ticker", pipelineHandlers.GetTradesHandler())
			reads.GET("/filings/:ticker", pipelineHandlers.GetFilingsHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth())
		{
			internal.POST("/scrape", pipelineHandlers.TriggerScrapeHandler())
		}
	}
}
