package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"tienda/internal/config"
	"tienda/internal/events"
	"tienda/internal/http/handlers"
	applog "tienda/internal/log"
	"tienda/internal/repos"
	"tienda/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := applog.Init(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	var db *sqlx.DB
	if cfg.SeedDemo {
		db, err = repos.OpenDB(cfg.DBDSN)
	} else {
		db, err = repos.Open(cfg.DBDSN)
	}
	if err != nil {
		logger.Fatal("db.open", zap.String("dsn", cfg.DBDSN), zap.Error(err))
	}
	defer db.Close()

	// Domain events: RabbitMQ when configured, otherwise dropped.
	var pub events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Fatal("events.connect", zap.Error(err))
		}
		defer amqpPub.Close()
		pub = amqpPub
		logger.Info("events.enabled", zap.String("exchange", cfg.AMQPExchange))
	}

	// Shared limiter/CSRF state for multi-instance deployments.
	var store fiber.Storage
	if cfg.RedisAddr != "" {
		rs, err := storage.NewRedis(cfg.RedisAddr, "tienda:")
		if err != nil {
			logger.Fatal("redis.connect", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		defer rs.Close()
		store = rs
		logger.Info("redis.enabled", zap.String("addr", cfg.RedisAddr))
	}

	if cfg.JWTSecret == config.DevJWTSecret {
		logger.Warn("config.jwt_secret.default", zap.String("hint", "set JWT_SECRET in production"))
	}

	app := handlers.NewApp(db, handlers.Options{Config: cfg, Events: pub, Storage: store})

	go func() {
		logger.Info("server.start", zap.String("addr", cfg.Addr()))
		if err := app.Listen(cfg.Addr()); err != nil {
			logger.Panic("server.listen", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server.shutdown")
	if err := app.Shutdown(); err != nil {
		logger.Error("server.shutdown.fail", zap.Error(err))
	}
}
