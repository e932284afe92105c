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
	"go.uber.org/zap"

	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/api/handlers"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/cache/redis"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/export"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/faq"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/filter"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/gaps"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/metrics"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/middleware/ratelimit"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/middleware/security"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/middleware/validation"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/query"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/search"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/storage/sqlite"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/config"
	appLogger "github.com/ASUCICREPO/ADA-Clara-sub002/pkg/logger"
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

	appLogger.Info("Starting Clara Analytics API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	// Redis is an accelerator, not a dependency. When disabled or unreachable
	// the aggregation engine runs every query against the store.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, running without result cache", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	filterEngine := filter.NewEngine(sqliteClient)
	searchEngine := search.NewEngine(sqliteClient, filterEngine, search.Config{
		MaxResults:        cfg.Search.MaxResults,
		MinRelevanceScore: cfg.Search.MinRelevanceScore,
		MaxSuggestions:    cfg.Search.MaxSuggestions,
	})
	queryEngine := query.NewEngine(filterEngine, redisClient, time.Duration(cfg.Analytics.CacheTTLSec)*time.Second)
	analyzer := gaps.NewAnalyzer(sqliteClient, gaps.Config{
		LowConfidenceThreshold: cfg.Analytics.LowConfidenceThreshold,
		MinOccurrences:         cfg.Analytics.MinOccurrences,
		ReplyWindow:            time.Duration(cfg.Analytics.ReplyWindowSec) * time.Second,
		TopCategories:          cfg.Analytics.TopCategories,
	})
	formatter := export.NewFormatter(sqliteClient, filterEngine, searchEngine, sqliteClient, export.Config{
		Expiry:     time.Duration(cfg.Export.ExpiryHours) * time.Hour,
		MaxRecords: cfg.Export.MaxRecords,
	})
	faqRanker := faq.NewRanker(sqliteClient)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	rateLimiter := ratelimit.New(ratelimit.Config{})
	defer rateLimiter.Stop()

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(rateLimiter.Middleware())
	app.Use(validation.Middleware(validation.Config{
		MaxBodySize: cfg.Server.BodyLimit,
	}))

	filterHandler := handlers.NewFilterHandler(filterEngine)
	searchHandler := handlers.NewSearchHandler(searchEngine)
	queryHandler := handlers.NewQueryHandler(queryEngine)
	gapsHandler := handlers.NewGapsHandler(analyzer)
	exportHandler := handlers.NewExportHandler(formatter, sqliteClient)
	faqHandler := handlers.NewFAQHandler(faqRanker)

	api := app.Group("/api/v1")

	api.Post("/filter", filterHandler.HandleFilter)
	api.Post("/search", searchHandler.HandleSearch)
	api.Post("/query", queryHandler.HandleQuery)

	api.Get("/faq", faqHandler.HandleFAQ)

	api.Get("/gaps", gapsHandler.HandleGaps)
	api.Get("/gaps/opportunities", gapsHandler.HandleOpportunities)
	api.Get("/gaps/trends", gapsHandler.HandleTrends)

	api.Post("/exports", exportHandler.HandleCreateExport)
	api.Get("/exports/:id/download", exportHandler.HandleDownload)

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
