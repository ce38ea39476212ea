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

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/playhouse-booking/internal/auth"
	"github.com/iliyamo/playhouse-booking/internal/booking"
	"github.com/iliyamo/playhouse-booking/internal/config"
	"github.com/iliyamo/playhouse-booking/internal/database"
	"github.com/iliyamo/playhouse-booking/internal/handler"
	"github.com/iliyamo/playhouse-booking/internal/middleware"
	"github.com/iliyamo/playhouse-booking/internal/notify"
	"github.com/iliyamo/playhouse-booking/internal/repository"
	"github.com/iliyamo/playhouse-booking/internal/router"
)

func main() {
	l := log.New("playhouse")

	var exitCode int
	if err := run(l); err != nil {
		l.Errorf("failed to run server: %v", err)
		exitCode = 1
	}
	os.Exit(exitCode)
}

// logLevel maps LOG_LEVEL to a gommon level, defaulting to INFO.
func logLevel(s string) log.Lvl {
	switch strings.ToLower(s) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	}
	return log.INFO
}

func run(l *log.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	l.SetLevel(logLevel(cfg.LogLevel))
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	cacheCfg, err := config.LoadCacheConfig()
	if err != nil {
		return fmt.Errorf("cache config: %w", err)
	}
	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		return fmt.Errorf("rate limit config: %w", err)
	}
	redisCfg, err := config.LoadRedisConfig()
	if err != nil {
		return fmt.Errorf("redis config: %w", err)
	}

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()
	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	rdb := config.NewRedisClient(redisCfg)
	var otpStore auth.OTPStore
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		otpStore = auth.NewRedisOTPStore(rdb)
	} else {
		l.Warnf("redis unreachable at %s: rate limiting and caching disabled, OTP codes kept in memory", redisCfg.Addr)
		otpStore = auth.NewMemoryOTPStore(time.Now)
	}

	var sender notify.Sender = notify.LogSender{L: l}
	if cfg.WhatsApp.Enabled() {
		sender = notify.NewWhatsAppSender(notify.WhatsAppConfig{
			BaseURL:       cfg.WhatsApp.BaseURL,
			APIVersion:    cfg.WhatsApp.APIVersion,
			PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
			AccessToken:   cfg.WhatsApp.AccessToken,
		}, nil)
	}
	otp := auth.NewOTPService(otpStore, sender, auth.OTPConfig{
		TTL:         cfg.OTP.TTL,
		MaxAttempts: cfg.OTP.MaxAttempts,
		Length:      cfg.OTP.Length,
		CountryCode: cfg.CountryCode,
	})

	users := repository.NewUserRepo(db)
	var google auth.Resolver
	if len(cfg.GoogleClientIDs) > 0 {
		var kf jwt.Keyfunc
		kf, err = auth.NewGoogleKeyfunc(ctx, cfg.GoogleJWKSURL)
		if err != nil {
			return fmt.Errorf("google keys: %w", err)
		}
		google = auth.NewGoogleResolver(users, kf, cfg.GoogleClientIDs)
	}

	store := repository.NewStore(db)
	manager := booking.New(l, store, notify.NewPublisher(cfg.AMQPURL, l), booking.Config{Location: loc})

	packages := repository.NewPackageRepo(db)
	slots := repository.NewTimeSlotRepo(db)
	bookings := repository.NewBookingRepo(db)
	tokens := repository.NewTokenRepo(db)

	e := echo.New()
	e.HideBanner = true
	e.Logger = l
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomw.RequestLoggerValues) error {
			l.Infof("%s %s %d %s id=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))
	e.Use(middleware.NewTokenBucket(rlCfg, rdb))

	router.Register(e, router.Deps{
		JWTSecret: cfg.JWTSecret,
		Auth: handler.NewAuthHandler(handler.AuthConfig{
			JWTSecret:      cfg.JWTSecret,
			AccessTTLMin:   cfg.AccessTTLMin,
			RefreshTTLDays: cfg.RefreshTTLDays,
			BcryptCost:     cfg.BcryptCost,
			CountryCode:    cfg.CountryCode,
			BootstrapToken: cfg.AdminBootstrapToken,
		}, users, tokens, otp, google),
		Public:   handler.NewPublicHandler(packages, slots, manager),
		Bookings: handler.NewBookingHandler(manager, bookings, cfg.CountryCode),
		Admin:    handler.NewAdminHandler(manager, bookings, repository.NewAnalyticsRepo(db), users, tokens),
		Catalog: handler.NewCatalogHandler(packages, slots, repository.NewHolidayRepo(db), repository.NewVoucherRepo(db),
			middleware.NewCachePurger(cacheCfg, rdb)),
		Ready:    handler.Ready(db),
		Cache:    middleware.NewRedisCache(cacheCfg, rdb),
		OTPLimit: middleware.NewTokenBucket(rlCfg.ForOTP(), rdb),
	})

	go func() {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
		defer cancel()
		if err := e.Shutdown(ctx); err != nil {
			l.Errorf("failed to stop http server: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	l.Infof("listening on %s (env=%s, tz=%s)", addr, cfg.Env, loc)
	if err := e.Start(addr); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	l.Info("server stopped gracefully")
	return nil
}
