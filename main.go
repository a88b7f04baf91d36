package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sewabaju/internal/cache"
	"sewabaju/internal/config"
	"sewabaju/internal/database"
	"sewabaju/internal/handlers"
	"sewabaju/internal/jobs"
	applog "sewabaju/internal/logger"
	"sewabaju/internal/models"
	"sewabaju/internal/repositories"
	"sewabaju/internal/services"
	"sewabaju/internal/storage"
	"sewabaju/pkg/rabbitmq"
)

// bodyLimit leaves room for a maximum-size proof plus the multipart envelope.
const bodyLimit = storage.MaxProofSize + 1024*1024

const notificationQueue = "rental.notifications"

func main() {
	cfg, err := config.Load()
	if err != nil {
		applog.New("info").Fatal("failed to load config", zap.Error(err))
	}
	log := applog.New(cfg.LogLevel)
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
	log.Info("server gracefully stopped")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database ---
	db, err := database.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}
	store := repositories.NewGORMStore(db)

	// --- Optional infrastructure ---
	var publisher services.Publisher
	var mqClient *rabbitmq.Client
	if cfg.RabbitMQURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Exchange: cfg.RabbitMQExchange}, log)
		if err != nil {
			return err
		}
		defer mqClient.Close()
		publisher = mqClient
	} else {
		log.Warn("RABBITMQ_URL not set, domain events will only be logged")
	}

	searchCache := cache.NewCatalogCache(nil, cfg.RedisTTL, log.Named("cache"))
	if cfg.RedisAddr != "" {
		client, err := cache.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			log.Warn("catalog cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			searchCache = cache.NewCatalogCache(client, cfg.RedisTTL, log.Named("cache"))
		}
	}

	files, err := storage.NewOSStorage(cfg.UploadDir)
	if err != nil {
		return err
	}

	// --- Services ---
	svc := buildServices(cfg, store, searchCache, files, publisher, log)

	if staff := cfg.BootstrapStaff; staff.Username != "" {
		user := &models.User{Username: staff.Username, Email: staff.Email, Password: staff.Password}
		if err := svc.Auth.EnsureStaff(ctx, user, "administrator"); err != nil {
			return err
		}
	}

	scheduler, err := jobs.NewScheduler(svc.Rental, cfg.OverdueScanCron, cfg.Location, log)
	if err != nil {
		return err
	}

	app := newApp(svc, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", zap.String("addr", cfg.AppPort))
		return app.Listen(cfg.AppPort)
	})
	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		scheduler.Stop(stopCtx)
		return nil
	})
	if mqClient != nil {
		notifier := services.NewNotificationHandler(log)
		bindings := []string{"payment.*", services.KeyOrderOverdue}
		err := mqClient.Consume(gctx, notificationQueue, bindings, func(msg amqp.Delivery) error {
			_, err := notifier.Handle(msg.RoutingKey, msg.Body)
			return err
		})
		if err != nil {
			return err
		}
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildServices(cfg *config.Config, store repositories.Store, searchCache services.SearchCache, files storage.FileStorage, publisher services.Publisher, log *zap.Logger) handlers.Services {
	fines := services.NewFineService(store, cfg.LateFeePerDay, publisher, log)
	loyalty := services.NewLoyaltyService(store, cfg.LoyaltyUnit, log)
	rental := services.NewRentalService(store, fines, loyalty, publisher, searchCache, services.NewClock(cfg.Location), cfg.MaxRentalDays, log)
	return handlers.Services{
		Auth:     services.NewAuthService(store, cfg.JWTSecret, log),
		Catalog:  services.NewCatalogService(store, searchCache, log),
		Rental:   rental,
		Payments: services.NewPaymentService(store, rental, files, publisher, log),
		Fines:    fines,
		Loyalty:  loyalty,
	}
}

// newApp builds the Fiber app with all routes mounted.
func newApp(svc handlers.Services, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
	})

	// --- Middleware ---
	app.Use(logger.New(logger.Config{Output: os.Stderr}))

	// --- API Routes ---
	handlers.Mount(app.Group("/api/v1"), svc, log)

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return app
}
