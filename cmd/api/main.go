package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/contractscan/backend/internal/analyze"
	"github.com/contractscan/backend/internal/api/handlers"
	"github.com/contractscan/backend/internal/cache"
	redisCache "github.com/contractscan/backend/internal/cache/redis"
	"github.com/contractscan/backend/internal/chat"
	"github.com/contractscan/backend/internal/classify"
	"github.com/contractscan/backend/internal/extract"
	"github.com/contractscan/backend/internal/metrics"
	"github.com/contractscan/backend/internal/middleware/ratelimit"
	"github.com/contractscan/backend/internal/oracle"
	"github.com/contractscan/backend/internal/scan"
	"github.com/contractscan/backend/internal/storage/sqlite"
	"github.com/contractscan/backend/pkg/config"
	appLogger "github.com/contractscan/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting ContractScan API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var textCache analyze.TextCache = cache.NewMemory()
	if cfg.Redis.Enabled {
		redisClient, err := redisCache.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLMinutes)*time.Minute,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		textCache = redisClient
	}

	oracleClient := oracle.NewClient(oracle.Config{
		Endpoint:   cfg.Oracle.Endpoint,
		APIKey:     cfg.Oracle.APIKey,
		Model:      cfg.Oracle.Model,
		MaxTokens:  cfg.Oracle.MaxTokens,
		TimeoutSec: cfg.Oracle.TimeoutSec,
		MaxRetries: cfg.Oracle.MaxRetries,
	})

	extractors := extract.NewRegistry()

	classifier := classify.NewClassifier(oracleClient, cfg.Analysis.MaxTextSampleLength)
	orchestrator := analyze.NewOrchestrator(extractors, classifier, textCache, analyze.Options{
		MinViableTextLength: cfg.Analysis.MinViableTextLength,
		Concurrency:         cfg.Analysis.ClassifyConcurrency,
		CostPerDocument:     cfg.Analysis.CostPerDocument,
	})
	scanner := scan.NewScanner(cfg.Analysis.AllowedExtensions, cfg.Analysis.CostPerDocument, cfg.Analysis.TimePerDocument)
	chatService := chat.NewService(sqliteClient, oracleClient, extractors, chat.Config{
		HistoryLimit:    cfg.Chat.HistoryLimit,
		MaxContextChars: cfg.Chat.MaxContextChars,
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 60,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	runTimeout := time.Duration(cfg.Analysis.RunTimeoutSec) * time.Second
	analysisHandler := handlers.NewAnalysisHandler(scanner, orchestrator, sqliteClient, runTimeout)
	chatHandler := handlers.NewChatHandler(chatService)
	wsHandler := handlers.NewWebSocketHandler(chatService)

	api := app.Group("/api/v1")

	api.Post("/scan", analysisHandler.ScanDirectory)
	api.Post("/analyze", analysisHandler.AnalyzeDirectory)
	api.Post("/analyze/identify", analysisHandler.IdentifyMainContract)
	api.Get("/runs", analysisHandler.ListRuns)
	api.Get("/runs/:id", analysisHandler.GetRun)

	api.Post("/chat/load", chatHandler.LoadDocument)
	api.Post("/chat/message", chatHandler.Ask)
	api.Get("/chat/history/:sessionId", chatHandler.History)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
