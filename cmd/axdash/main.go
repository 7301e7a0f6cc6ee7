package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/axdashboard/axdash/app/controllers"
	"github.com/axdashboard/axdash/app/repository"
	"github.com/axdashboard/axdash/internal/pkg/cache"
	"github.com/axdashboard/axdash/internal/pkg/constants"
	"github.com/axdashboard/axdash/internal/pkg/database"
	"github.com/axdashboard/axdash/internal/pkg/env"
	"github.com/axdashboard/axdash/internal/pkg/jobqueue"
	"github.com/axdashboard/axdash/internal/pkg/leadconnector"
	"github.com/axdashboard/axdash/internal/pkg/metrics"
	"github.com/axdashboard/axdash/internal/pkg/middleware"
	"github.com/axdashboard/axdash/internal/pkg/oauth"
	"github.com/axdashboard/axdash/internal/pkg/reporting"
	"github.com/axdashboard/axdash/internal/pkg/router"
	"github.com/axdashboard/axdash/internal/pkg/s3archive"
	"github.com/axdashboard/axdash/internal/pkg/security"
	"github.com/axdashboard/axdash/internal/pkg/webhook"
)

const defaultCORSOrigins = "http://localhost:5173,https://surgery.axdashboard.com,https://spa.axdashboard.com"

func main() {
	app, manager := NewApplication()

	go func() {
		addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "0.0.0.0"), env.GetEnv("APP_PORT", "5000"))
		if err := app.Listen(addr); err != nil {
			log.Fatalf("[Server] Listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("[Server] Shutting down...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Errorf("[Server] Shutdown failed: %v", err)
	}
	manager.Stop()
}

func NewApplication() (*fiber.App, *jobqueue.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()

	cipher, err := security.NewTokenCipher(env.GetEnv("TOKEN_ENCRYPTION_KEY", ""))
	if err != nil {
		log.Fatalf("[Server] Invalid TOKEN_ENCRYPTION_KEY: %v", err)
	}
	if !cipher.Enabled() {
		log.Warn("[Server] TOKEN_ENCRYPTION_KEY not set, OAuth tokens are stored unencrypted")
	}
	credentials := oauth.NewCredentialService(oauth.NewConfigFromEnv(), repos.Credential, cipher, nil)
	provider := leadconnector.NewClientFromEnv()

	// Webhook pipeline
	treatmentField := webhook.TreatmentInterestFieldID()
	details := webhook.NewProviderDetails(provider, credentials)
	processor := webhook.NewProcessor(repos.Opportunity, repos.PendingWebhook, details, treatmentField)

	manager := jobqueue.InitializeManager(cache.GetClient(), repos.WebhookEvent)
	queue := manager.GetQueue()
	webhook.NewWorker(repos.WebhookEvent, processor, newArchive()).Register(queue)
	manager.Start()

	intake := webhook.NewIntake(repos.WebhookEvent, queue)
	if window := webhook.RecentDeliveryWindow(); window > 0 {
		intake.WithRecentDeliveries(webhook.NewRedisRecentDeliveries(cache.GetClient(), window))
	}
	stageSync := webhook.NewStageSync(provider, credentials, repos.Stage)
	reconciler := webhook.NewReconciler(repos.PendingWebhook, repos.Opportunity, details, treatmentField)
	backfill := func(ctx context.Context, locationID string) {
		webhook.Backfill(ctx, locationID, stageSync, reconciler)
	}

	app := fiber.New(fiber.Config{
		AppName:   "axdash",
		BodyLimit: 4 * 1024 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     env.GetEnv("CORS_ORIGINS", defaultCORSOrigins),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))
	app.Use(middleware.RequestMetrics())

	// prometheus and fiber monitor
	app.Get(constants.MetricsRoute, metrics.Handler())
	app.Get(constants.MonitorRoute, middleware.RequireAdmin(), monitor.New(monitor.Config{Title: "axdash monitor"}))

	// SWAGGER / OPENAPI
	if _, err := os.Stat(constants.OpenAPISpecPath); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: constants.OpenAPISpecPath,
			Path:     "v1",
		}))
	} else {
		log.Warnf("[Server] OpenAPI document not found at %s, docs disabled", constants.OpenAPISpecPath)
	}

	app.Get(constants.PublicRoute, func(c *fiber.Ctx) error {
		return c.SendString("AX Dashboard API is running")
	})

	// ROUTER
	router.InstallRouter(app, router.Controllers{
		Auth:    controllers.NewAuthController(credentials, provider, backfill, env.GetEnv("DASHBOARD_URL", "https://surgery.axdashboard.com")),
		Webhook: controllers.NewWebhookController(intake),
		Reports: controllers.NewReportController(reporting.NewService(repos.Opportunity, repos.Stage)),
		Admin:   controllers.NewAdminWebhookController(repos.WebhookEvent, intake, queue),
	})

	return app, manager
}

// newArchive returns the S3 dead-letter archive, or nil when it is disabled or unreachable.
func newArchive() webhook.Archiver {
	cfg, err := s3archive.LoadConfig()
	if err != nil {
		log.Errorf("[Server] Invalid archive configuration: %v", err)
		return nil
	}
	if !cfg.IsEnabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := s3archive.NewClient(ctx, cfg)
	if err != nil {
		log.Errorf("[Server] Dead-letter archive disabled: %v", err)
		return nil
	}
	return client
}
