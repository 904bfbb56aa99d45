package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/mindstash/mindstash-backend/internal/agent"
	"github.com/mindstash/mindstash-backend/internal/api"
	"github.com/mindstash/mindstash-backend/internal/auth"
	"github.com/mindstash/mindstash-backend/internal/categorizer"
	"github.com/mindstash/mindstash-backend/internal/config"
	"github.com/mindstash/mindstash-backend/internal/database"
	"github.com/mindstash/mindstash-backend/internal/notifications"
	"github.com/mindstash/mindstash-backend/internal/providers"
	"github.com/mindstash/mindstash-backend/internal/providers/factory"
	"github.com/mindstash/mindstash-backend/internal/repository/postgres"
	"github.com/mindstash/mindstash-backend/internal/scheduler"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	rollback := flag.Bool("rollback", false, "roll back the most recent schema migration and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	if *rollback {
		if err := database.RollbackMigration(cfg.Database, log); err != nil {
			log.WithError(err).Fatal("failed to roll back migration")
		}
		log.Info("rollback complete")
		return
	}

	db, err := database.NewConnection(cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database, log); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	userRepo := postgres.NewUserRepository(db.DB)
	itemRepo := postgres.NewItemRepository(db.DB)
	sessionRepo := postgres.NewChatSessionRepository(db.DB)
	messageRepo := postgres.NewChatMessageRepository(db.DB)

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "change-me-in-production"
		log.Warn("using default JWT secret; set MINDSTASH_JWT_SECRET in production")
	}
	authService := auth.NewService(userRepo, cfg.JWTSecret)

	providerRegistry := providers.NewRegistry()
	for id, providerCfg := range cfg.Providers {
		provider, err := factory.CreateProvider(id, providerCfg)
		if err != nil {
			log.WithError(err).WithField("provider", id).Warn("skipping provider")
			continue
		}
		providerRegistry.Register(id, provider)
	}

	provider := providerRegistry.Get(cfg.Agent.Provider)
	if provider == nil {
		log.WithField("provider", cfg.Agent.Provider).Fatal("agent provider not configured")
	}
	model := cfg.Providers[cfg.Agent.Provider].Model

	notifySvc := notifications.NewService(itemRepo, userRepo, log)
	digestSvc := notifications.NewDigestService(itemRepo, userRepo, log)
	classifier := categorizer.New(provider, model, log)

	toolRegistry := agent.NewToolRegistry(log)
	agent.RegisterTools(toolRegistry, agent.ToolDeps{
		Items:         itemRepo,
		Notifications: notifySvc,
		Digest:        digestSvc,
		Classifier:    classifier,
		Log:           log,
	})

	loop := agent.NewLoop(sessionRepo, messageRepo, provider, toolRegistry, cfg.Agent, model, log)

	app := fiber.New(fiber.Config{
		AppName:      "MindStash Backend",
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins(),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PATCH, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	api.SetupRoutes(app, api.Deps{
		DB:         db,
		Auth:       authService,
		Loop:       loop,
		Users:      userRepo,
		Items:      itemRepo,
		Sessions:   sessionRepo,
		Messages:   messageRepo,
		Classifier: classifier,
		Notify:     notifySvc,
		Digest:     digestSvc,
		Log:        log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go scheduler.New(notifySvc, time.Minute, log).Run(ctx)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.WithField("addr", addr).Info("mindstash backend starting")
		if err := app.Listen(addr); err != nil {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Error("shutdown failed")
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}

func corsOrigins() string {
	if origins := os.Getenv("MINDSTASH_CORS_ORIGINS"); origins != "" {
		return origins
	}
	return "http://localhost:5173,http://localhost:3000"
}
