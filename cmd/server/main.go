// @title           Rentify API
// @version         1.0
// @description     Rental marketplace backend: owners list properties, renters book stays, owners and renters negotiate and accept lease contracts, and both download signed contract documents.
// @contact.name    Aldo Rifki Putra
// @contact.email   aldoetobex@gmail.com
// @BasePath        /api
// @schemes         http https
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Format: Bearer <token>
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fiberSwagger "github.com/gofiber/swagger"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	_ "github.com/aldoetobex/rentify-backend/docs"
	"github.com/aldoetobex/rentify-backend/internal/auth"
	"github.com/aldoetobex/rentify-backend/internal/bookings"
	"github.com/aldoetobex/rentify-backend/internal/bootstrap"
	"github.com/aldoetobex/rentify-backend/internal/config"
	"github.com/aldoetobex/rentify-backend/internal/contracts"
	"github.com/aldoetobex/rentify-backend/internal/properties"
	"github.com/aldoetobex/rentify-backend/pkg/database"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := bootstrap.Logger(cfg)

	db, err := bootstrap.Database(cfg)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		log.WithError(err).Fatal("migration failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	blob, err := bootstrap.Blob(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("storage setup failed")
	}
	svc, worker := bootstrap.Contracts(cfg, db, blob, log)

	app := fiber.New(fiber.Config{
		ErrorHandler: auth.ErrorHandler,
		// multipart uploads carry up to MaxUploadFiles documents
		BodyLimit: cfg.MaxUploadFiles*int(cfg.MaxUploadBytes) + 1<<20,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())

	prometheus := fiberprometheus.New("rentify")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	app.Get("/swagger/*", fiberSwagger.HandlerDefault)

	api := app.Group("/api")

	// Auth
	auth.NewHandler(db, cfg.JWTSecret, cfg.TokenTTL, log).Register(api)

	// Everything below needs a bearer token
	requireAuth := auth.RequireAuth(cfg.JWTSecret)
	api.Use("/properties", requireAuth)
	api.Use("/bookings", requireAuth)
	api.Use("/contracts", requireAuth)

	properties.NewHandler(db, log).Register(api)
	bookings.NewHandler(db, properties.NewDirectory(db), log).Register(api)
	contracts.NewHandler(svc, log).Register(api)

	// PDF worker
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := worker.Run(ctx); err != nil {
			log.WithError(err).Error("pdf worker stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		log.Info("gracefully shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}()

	log.WithField("port", cfg.Port).Info("server running")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("server failed")
	}

	<-workerDone
	log.Info("server stopped")
}
