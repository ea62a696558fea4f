package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/sol1corejz/ecoglass/cmd/config"
	"github.com/sol1corejz/ecoglass/internal/accounts"
	"github.com/sol1corejz/ecoglass/internal/auth"
	"github.com/sol1corejz/ecoglass/internal/bonus"
	"github.com/sol1corejz/ecoglass/internal/credentials"
	"github.com/sol1corejz/ecoglass/internal/drafts"
	"github.com/sol1corejz/ecoglass/internal/handlers"
	"github.com/sol1corejz/ecoglass/internal/ledger"
	"github.com/sol1corejz/ecoglass/internal/logger"
	"github.com/sol1corejz/ecoglass/internal/middleware"
	"github.com/sol1corejz/ecoglass/internal/storage"
	"github.com/sol1corejz/ecoglass/internal/validator"
	"github.com/sol1corejz/ecoglass/internal/workers"
	"go.uber.org/zap"
)

const bodyLimit = 16 * 1024 * 1024

func main() {
	if err := logger.Initialize(logger.DefaultLevel); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	if err := config.ParseFlags(); err != nil {
		logger.Log.Fatal("Failed to parse config", zap.Error(err))
	}

	if err := logger.Initialize(config.LogLevel); err != nil {
		logger.Log.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer logger.Log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, config.DatabaseDriver, config.DatabaseURI)
	if err != nil {
		logger.Log.Error("Failed to init storage", zap.Error(err))
		return
	}
	defer store.Close()

	if err := run(ctx, store); err != nil {
		logger.Log.Fatal("Failed to run server", zap.Error(err))
	}
}

func run(ctx context.Context, store storage.Store) error {
	auth.SecretKey = []byte(config.JWTSecret)

	creds := credentials.NewStore(store)
	if config.OpenAIAPIKey != "" && !creds.Has(ctx) {
		if err := creds.Set(ctx, config.OpenAIAPIKey); err != nil {
			return err
		}
		logger.Log.Info("API key seeded from environment")
	}

	draftStore, err := drafts.NewStore(config.DraftCapacity, config.DraftsPerAccount)
	if err != nil {
		return err
	}

	glass := validator.New(creds, validator.Config{
		BaseURL:        config.OpenAIBaseURL,
		Model:          config.OpenAIModel,
		Language:       config.ValidationLanguage,
		Timeout:        config.ValidationTimeout,
		SimulatedDelay: validator.DefaultSimulatedDelay,
	})

	validation := workers.NewValidationSystem(draftStore, glass, config.ValidationWorkers)
	validation.InitValidationSystem(ctx)

	h := &handlers.Handler{
		Accounts:    accounts.NewService(store),
		Ledger:      ledger.New(store, bonus.NewTracker()),
		Drafts:      draftStore,
		Queue:       validation,
		Credentials: creds,
	}

	app := fiber.New(fiber.Config{
		BodyLimit: bodyLimit,
	})
	app.Use(middleware.RequestLogger)
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))
	h.Routes(app)

	go func() {
		<-ctx.Done()
		logger.Log.Info("Shutting down server")
		if err := app.Shutdown(); err != nil {
			logger.Log.Error("Failed to shut down server", zap.Error(err))
		}
	}()

	logger.Log.Info("Running server",
		zap.String("address", config.RunAddress),
		zap.Bool("apiKeyConfigured", creds.Has(ctx)),
	)
	return app.Listen(config.RunAddress)
}
