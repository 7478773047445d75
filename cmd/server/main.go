package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/sync-auth/internal/config"
	"github.com/iliyamo/sync-auth/internal/database"
	"github.com/iliyamo/sync-auth/internal/handler"
	"github.com/iliyamo/sync-auth/internal/middleware"
	"github.com/iliyamo/sync-auth/internal/queue"
	"github.com/iliyamo/sync-auth/internal/repository"
	"github.com/iliyamo/sync-auth/internal/router"
	"github.com/iliyamo/sync-auth/internal/service"
	"github.com/iliyamo/sync-auth/internal/utils"
)

func main() {
	cfg := config.Load() // Load environment config
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		fatal(logger, "open database", err)
	}
	defer db.Close()
	if err := database.Migrate(db, logger); err != nil {
		fatal(logger, "migrate", err)
	}

	codec, err := utils.NewTokenCodec(utils.TokenConfig{
		Secret:    []byte(cfg.JWTSecret),
		Algorithm: cfg.JWTAlgorithm,
		TTL:       cfg.TokenTTL(),
	})
	if err != nil {
		fatal(logger, "token codec", err)
	}
	hasher, err := utils.NewPasswordHasher(cfg.PasswordHash, cfg.BcryptCost)
	if err != nil {
		fatal(logger, "password hasher", err)
	}

	users := repository.NewUserRepo(db)
	sessions := service.NewSessionManager(repository.NewSessionRepo(db), codec, logger)
	gate := service.NewGate(codec, sessions, users, logger)

	var events service.EventPublisher
	if cfg.EventsEnabled {
		async := queue.NewAsyncPublisher(queue.NewPublisher(cfg.RabbitURL, logger), 256, logger)
		go async.Run(ctx)
		events = async
		consumer := &queue.Consumer{URL: cfg.RabbitURL, LogDir: cfg.EventsLogDir, Logger: logger}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("auth consumer stopped", "err", err)
			}
		}()
	}
	logins := service.NewLoginService(users, hasher, codec, sessions, events, logger)

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		logger.Warn("redis unreachable; login rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	ipExtractor, err := middleware.ClientIPExtractor(cfg.TrustedProxies)
	if err != nil {
		fatal(logger, "trusted proxies", err)
	}
	e.IPExtractor = ipExtractor
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "request_id", v.RequestID}
			if v.Error != nil {
				logger.Error("request", append(attrs, "err", v.Error)...)
			} else {
				logger.Info("request", attrs...)
			}
			return nil
		},
	}))

	deps := router.Deps{
		Auth:      handler.NewAuthHandler(cfg, logins, sessions),
		Gate:      gate,
		DB:        db,
		APIKey:    cfg.APIKey,
		LoginRate: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	}
	router.RegisterRoutes(e, deps)
	router.RegisterAuth(e, deps)

	addr := ":" + cfg.Port
	logger.Info("listening", "addr", addr, "env", cfg.Env)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
}

// newLogger returns a JSON logger in production and a text logger elsewhere.
func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	opts.Level = slog.LevelDebug
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "err", err)
	os.Exit(1)
}
