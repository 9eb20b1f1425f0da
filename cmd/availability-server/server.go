package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/carebook/availability/internal/config"
	"github.com/carebook/availability/internal/domain/records"
	"github.com/carebook/availability/internal/domain/scheduling"
	"github.com/carebook/availability/internal/platform/auth"
	"github.com/carebook/availability/internal/platform/cache"
	"github.com/carebook/availability/internal/platform/db"
	"github.com/carebook/availability/internal/platform/middleware"
	"github.com/carebook/availability/internal/platform/validate"
	"github.com/carebook/availability/pkg/filter"
)

const version = "0.1.0"

// app holds the collaborators the HTTP server is built from.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	loc     *time.Location
	slots   scheduling.SlotStore
	records records.Repository
	aliases filter.StatusAliases
	pool    *pgxpool.Pool // nil in memory mode
	limiter *middleware.RateLimiter
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

// newApp opens the stores. The returned func releases them.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, memory bool) (*app, func(), error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	aliases, err := filter.LoadStatusAliases(cfg.StatusAliasesFile)
	if err != nil {
		return nil, nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		loc:     loc,
		aliases: aliases,
		limiter: middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
		}),
	}
	var closers []func()
	release := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if memory {
		logger.Warn().Msg("using in-memory stores; data is lost on exit")
		a.slots = scheduling.NewMemoryStore()
		a.records = records.NewMemoryRepo()
	} else {
		pool, err := db.NewPool(ctx, db.PoolConfig{
			URL:             cfg.DatabaseURL,
			MaxConns:        cfg.DBMaxConns,
			MinConns:        cfg.DBMinConns,
			ApplicationName: "availability-server",
		})
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, pool.Close)
		logger.Info().Msg("connected to database")
		a.pool = pool
		a.slots = scheduling.NewSlotStorePG(pool, loc)
		a.records = records.NewRepoPG(pool)
	}

	if cfg.RedisURL != "" && cfg.SlotCacheTTL > 0 {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			release()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = rdb.Close() })
		a.slots = scheduling.NewCachedStore(a.slots, rdb, cfg.SlotCacheTTL, logger)
		logger.Info().Dur("ttl", cfg.SlotCacheTTL).Msg("slot cache enabled")
	}

	return a, release, nil
}

func (a *app) oldRangePolicy() scheduling.RangePolicy {
	p, err := scheduling.ParseRangePolicy(a.cfg.BulkEditOldRange)
	if err != nil {
		return scheduling.RangeStarts
	}
	return p
}

func (a *app) router() *echo.Echo {
	cfg := a.cfg

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()

	// Global middleware
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, auth.AuthSkipper))

	// Auth middleware
	if cfg.IsDev() && !cfg.AuthConfigured() {
		a.logger.Warn().Msg("development mode without auth: every request runs as admin")
		e.Use(auth.DevAuthMiddleware(auth.AuthSkipper))
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		mode := "postgres"
		if a.pool == nil {
			mode = "memory"
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
			"store":   mode,
		})
	})
	if a.pool != nil {
		e.GET("/health/db", db.HealthHandler(a.pool))
	}

	apiV1 := e.Group("/api/v1", a.limiter.Middleware())
	if a.pool != nil {
		apiV1.Use(db.ConnMiddleware(a.pool, cfg.StoreTimeout))
	}

	schedSvc := scheduling.NewService(a.slots, a.logger, scheduling.Options{
		Timeout:                 cfg.StoreTimeout,
		OldRange:                a.oldRangePolicy(),
		DisableEmptyDayFallback: !cfg.BulkEditEmptyDayFallback,
		Location:                a.loc,
	})
	scheduling.NewHandler(schedSvc).RegisterRoutes(apiV1)

	recordsSvc := records.NewService(a.records, a.aliases, a.logger)
	records.NewHandler(recordsSvc, a.loc).RegisterRoutes(apiV1)

	return e
}

func runServer(memory bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(!memory); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, release, err := newApp(ctx, cfg, logger, memory)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		return err
	}
	defer release()
	a.limiter.StartCleanup(ctx, 5*time.Minute)

	e := a.router()

	errc := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		logger.Error().Err(err).Msg("server error")
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
