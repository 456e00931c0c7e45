package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"deptportal/docs"
	"deptportal/internal/auth"
	"deptportal/internal/compress"
	"deptportal/internal/config"
	"deptportal/internal/database"
	"deptportal/internal/database/migration"
	"deptportal/internal/fsutil"
	"deptportal/internal/gate"
	handlers "deptportal/internal/http/handler"
	"deptportal/internal/http/middleware"
	"deptportal/internal/logger"
	"deptportal/internal/otel"
	"deptportal/internal/repository/postgres"
	"deptportal/internal/resolver"
	"deptportal/internal/service"
	"deptportal/internal/storage"
)

const sessionTTL = 15 * time.Minute

// @title Department Portal Upload API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	flush := logger.Init(logger.Options{Dev: cfg.IsDev(), SentryDSN: cfg.Log.SentryDSN, Location: cfg.Location()})
	defer flush()
	log := logger.Log

	if err := run(cfg, log); err != nil {
		log.Error("server_exit", "error", err)
		flush()
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log, cfg.AppEnv)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
		return err
	}

	// Object storage mirror is optional
	var mirror storage.Mirror
	if cfg.MinIO.Enabled() {
		mirror, err = storage.NewMinIO(cfg.MinIO)
		if err != nil {
			return err
		}
		log.Info("mirror_configured", "endpoint", cfg.MinIO.Endpoint, "bucket", cfg.MinIO.Bucket)
	}

	res, err := resolver.New(cfg.Upload.PublicRoot)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(res.Root(), 0o755); err != nil {
		return err
	}
	if swept, err := fsutil.SweepTemp(res.Root(), cfg.Upload.StaleTempAge, time.Now()); err != nil {
		log.Warn("temp_sweep_failed", "error", err)
	} else if swept.Removed > 0 || swept.Failed > 0 {
		log.Info("temp_sweep", "scanned", swept.Scanned, "removed", swept.Removed, "failed", swept.Failed)
	}

	var pdf *compress.Ghostscript
	if bin := compress.ResolveGhostscript(runtime.GOOS, cfg.Compression.GhostscriptPath); bin != "" {
		pdf = compress.NewGhostscript(bin, cfg.Compression.PDFTimeout)
		log.Info("ghostscript_configured", "binary", bin)
	} else {
		log.Warn("ghostscript_not_found", "effect", "pdf uploads are stored uncompressed")
	}
	pipeline := compress.New(compress.Options{
		MaxImageDimension: cfg.Compression.MaxImageDimension,
		JPEGQuality:       cfg.Compression.JPEGQuality,
		PDF:               pdf,
	}, log)

	metrics, err := service.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	uploadRepo := postgres.NewUploadPostgres(db)
	uploadSvc := service.NewUploadService(gate.New(res), pipeline, uploadRepo, metrics, service.Options{
		PublicRoot:      res.Root(),
		PublicURLPrefix: cfg.Upload.PublicURLPrefix,
		BestEffort:      cfg.Compression.BestEffort,
		Mirror:          mirror,
		Logger:          log,
	})

	var tokens middleware.TokenValidator
	if cfg.Auth.JWTSecret != "" {
		tokens = auth.New(cfg.Auth.JWTSecret, sessionTTL)
	} else {
		log.Warn("sessions_disabled", "reason", "JWT_SECRET is empty")
	}

	promMW, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    cfg.Upload.BodyLimitBytes,
	})

	// Register global middleware
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(promMW.Handler())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.SessionAuth(tokens, cfg.Auth.AccessCookieName))

	handlers.ServePublicFiles(app, cfg.Upload.PublicURLPrefix, res.Root())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.RegisterRoutes(app, db, uploadSvc)

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	errc := make(chan error, 1)
	go func() {
		errc <- app.Listen(":" + cfg.Port)
	}()
	log.Info("server_started", "addr", ":"+cfg.Port, "public_root", res.Root())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("server_stopping")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
