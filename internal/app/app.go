// Package app assembles the HTTP application from configuration.
package app

import (
	"context"

	"notesaver/internal/auth"
	"notesaver/internal/config"
	"notesaver/internal/handlers"
	"notesaver/internal/middleware"
	"notesaver/internal/repositories"
	"notesaver/internal/services"
	"notesaver/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App is the wired application together with the resources it owns.
type App struct {
	Fiber *fiber.App

	db *gorm.DB
	mq *rabbitmq.Client
}

type stores struct {
	users repositories.UserRepository
	notes repositories.NoteRepository
	ping  handlers.PingFunc
	db    *gorm.DB
}

func openStores(cfg *config.Config, log *zap.Logger) (*stores, error) {
	if cfg.DBDriver == config.DriverMemory {
		log.Warn("using in-memory store, data is lost on restart")
		return &stores{
			users: repositories.NewMemoryUserRepository(),
			notes: repositories.NewMemoryNoteRepository(),
		}, nil
	}

	db, err := repositories.OpenDatabase(cfg.DBDriver, cfg.DatabaseDSN, log, cfg.LogLevel == "debug")
	if err != nil {
		return nil, err
	}
	return &stores{
		users: repositories.NewGORMUserRepository(db),
		notes: repositories.NewGORMNoteRepository(db),
		ping:  func(ctx context.Context) error { return repositories.Ping(ctx, db) },
		db:    db,
	}, nil
}

// New wires stores, services and handlers for cfg. The caller must Close
// the returned App.
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	st, err := openStores(cfg, log)
	if err != nil {
		return nil, err
	}
	a := &App{db: st.db}

	var events services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: cfg.RabbitMQQueue}, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.mq = mq
		events = mq
	}

	var verifier services.IdentityVerifier
	if cfg.FederatedTrustClient {
		log.Warn("federated logins trust client supplied identities")
	} else {
		verifier = auth.NewGoogleVerifier(cfg.GoogleUserInfoURL, nil)
	}

	authService := services.NewAuthService(
		st.users,
		auth.NewBcryptHasher(cfg.BcryptCost),
		auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL),
		verifier,
		log,
	)
	noteService := services.NewNoteService(st.notes, events, log)

	authHandler := handlers.NewAuthHandler(authService, cfg.FederatedTrustClient, log)
	noteHandler := handlers.NewNoteHandler(noteService, log)
	healthHandler := handlers.NewHealthHandler(st.ping, log)

	app := fiber.New(fiber.Config{
		AppName:      "notesaver",
		ErrorHandler: middleware.ErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Output: zap.NewStdLog(log.Named("http")).Writer(),
		Format: "${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	healthHandler.RegisterRoutes(app)

	api := app.Group("/api")
	authHandler.RegisterRoutes(api)
	noteHandler.RegisterRoutes(api, middleware.AuthRequired(authService))

	a.Fiber = app
	return a, nil
}

// Close releases the AMQP connection and the SQL pool.
func (a *App) Close() error {
	var errs []error
	if a.mq != nil {
		if err := a.mq.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.db != nil {
		if err := repositories.Close(a.db); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Errorf("closing app: %v", errs)
	}
	return nil
}
