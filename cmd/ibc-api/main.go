package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	logpkg "india-blood-connect/common/logger"
	commonredis "india-blood-connect/common/redis"
	"india-blood-connect/internal/config"
	httpapi "india-blood-connect/internal/http"
	"india-blood-connect/internal/matcher"
	"india-blood-connect/internal/notify"
	"india-blood-connect/internal/otp"
	"india-blood-connect/internal/repository"
	"india-blood-connect/internal/service"
	"india-blood-connect/internal/session"
	"india-blood-connect/internal/store"
)

func main() {
	cfg := config.Load()

	logger, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "ibc-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := commonredis.Connect(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	bus := notify.NewRedisBus(redisClient, logger)

	repos, db, err := repository.Open(ctx, cfg, redisClient, bus, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	if db != nil {
		if err := repository.Migrate(ctx, db); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	if cfg.Seed {
		if res, err := repository.Seed(ctx, repos, logger); err != nil {
			logger.Warn("Failed to seed directory", zap.Error(err))
		} else {
			logger.Info("Directory seeded", zap.Int("donors", res.Donors), zap.Int("banks", res.Banks), zap.Int("camps", res.Camps))
		}
	}

	verifier, err := newVerifier(cfg, redisClient, logger)
	if err != nil {
		logger.Fatal("Failed to set up otp", zap.Error(err))
	}

	kv := store.NewRedisKV(redisClient)
	sessions := session.NewManager(kv, repos, verifier, bus, cfg.Session.TTL, logger)

	watcher := matcher.NewWatcher(repos.Requests, matcher.BusNotifier{Bus: bus}, cfg.Matcher.PollInterval, logger)
	events := notify.NewStreamPublisher(redisClient, cfg.Alerts.EventStream, logger)

	donors := service.NewDonorService(repos.Donors, logger)
	banks := service.NewBankService(repos.Banks, bus, logger)
	camps := service.NewCampService(repos.Camps, repos.Registrations, bus, logger)
	requests := service.NewRequestService(repos.Requests, bus, events, watcher, logger)

	router := httpapi.NewRouter(logger)
	router.RegisterAuthRoutes(httpapi.NewAuthHandler(sessions, logger))
	router.RegisterDirectoryRoutes(httpapi.NewDirectoryHandler(donors, banks, sessions, logger))
	router.RegisterCampRoutes(httpapi.NewCampHandler(camps, sessions, logger))
	router.RegisterRequestRoutes(httpapi.NewRequestHandler(requests, sessions, logger))
	router.RegisterAlertRoutes(httpapi.NewAlertsHandler(requests, sessions, cfg.HTTP.CORSOrigins, logger))

	srv := service.NewServer(cfg.HTTP.Addr, router.Handler(cfg.HTTP.CORSOrigins), logger)

	logger.Info("ibc-api starting", zap.String("addr", cfg.HTTP.Addr), zap.String("store_backend", repos.Backend))
	if err := srv.Run(ctx); err != nil {
		logger.Error("Server error", zap.Error(err))
	}
	stop()
	logger.Info("ibc-api stopped")
	_ = redisClient.Close()
	if db != nil {
		_ = db.Close()
	}
}

func newVerifier(cfg *config.Config, client *commonredis.Client, logger *zap.Logger) (otp.Verifier, error) {
	switch cfg.OTP.Mode {
	case "redis":
		var sender otp.Sender = otp.NewLogSender(logger)
		if cfg.OTP.GatewayURL != "" {
			sender = otp.NewHTTPSender(cfg.OTP.GatewayURL, cfg.OTP.GatewayKey, 10*time.Second)
		}
		return otp.NewRedisVerifier(client, sender, cfg.OTP.TTL, cfg.OTP.ResendWindow, logger), nil
	case "fixed", "":
		logger.Warn("OTP_MODE=fixed: every account accepts the configured code")
		return otp.NewFixedVerifier(cfg.OTP.FixedCode, logger)
	default:
		return nil, fmt.Errorf("unknown OTP_MODE %q", cfg.OTP.Mode)
	}
}
