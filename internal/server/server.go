package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"truck-tracker-backend/internal/admin"
	"truck-tracker-backend/internal/audit"
	"truck-tracker-backend/internal/auth"
	"truck-tracker-backend/internal/config"
	"truck-tracker-backend/internal/health"
	"truck-tracker-backend/internal/importer"
	"truck-tracker-backend/internal/logger"
	"truck-tracker-backend/internal/models"
	"truck-tracker-backend/internal/session"
	"truck-tracker-backend/internal/trucks"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	Version         = "2.1.0"
	shutdownTimeout = 10 * time.Second
)

// New builds the Fiber app with every route registered. The caller owns
// store and the database connection.
func New(cfg *config.Config, log *zap.Logger, store session.Store) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "truck-tracker-backend",
		ErrorHandler:          logger.ErrorHandler(log),
		BodyLimit:             cfg.BodyLimitMB * 1024 * 1024,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.CORSOriginList(), ","),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		ExposeHeaders:    "Content-Disposition",
		AllowCredentials: false,
	}))
	app.Use(logger.Middleware(log, auth.CtxUsernameKey))

	app.Get("/", health.RootHandler(Version))
	app.Get("/health", health.Handler())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/login", auth.LoginHandler(cfg))
	api.Post("/auth/guest-login", auth.GuestLoginHandler(cfg))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	viewer := auth.RequireRole(models.RoleViewer)
	user := auth.RequireRole(models.RoleUser)
	adminOnly := auth.RequireRole(models.RoleAdmin)

	protected.Post("/auth/register", adminOnly, auth.RegisterHandler())
	protected.Get("/stats", viewer, trucks.StatsHandler())

	// Fixed truck paths go before /:id.
	t := protected.Group("/trucks")
	t.Get("/", viewer, trucks.ListTrucksHandler())
	t.Post("/", user, trucks.CreateTruckHandler())
	t.Get("/template", viewer, trucks.TemplateHandler())
	t.Get("/template/json", viewer, trucks.TemplateJSONHandler())
	t.Get("/export", viewer, trucks.ExportHandler())
	t.Get("/duplicate-stats", viewer, trucks.DuplicateStatsHandler())
	t.Post("/import/preview", user, importer.PreviewHandler(store))
	t.Post("/import/confirm", user, importer.ConfirmHandler(store))
	t.Get("/:id", viewer, trucks.GetTruckHandler())
	t.Put("/:id", user, trucks.UpdateTruckHandler())
	t.Delete("/:id", adminOnly, trucks.DeleteTruckHandler())
	t.Patch("/:id/status", user, trucks.UpdateStatusHandler())

	// Users
	protected.Get("/users", adminOnly, admin.ListUsersHandler())
	protected.Delete("/users/:id", adminOnly, admin.DeleteUserHandler())

	// Audit logs
	protected.Get("/audit-logs", adminOnly, audit.ListAuditLogsHandler())
	protected.Post("/audit-logs/:id/undo", adminOnly, audit.UndoAuditLogHandler(auth.CurrentUsername))

	return app
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, cfg *config.Config, log *zap.Logger, store session.Store) error {
	app := New(cfg, log, store)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.HTTPPort))
		errCh <- app.Listen(":" + cfg.HTTPPort)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Duration("timeout", shutdownTimeout))
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
