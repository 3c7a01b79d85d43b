package application

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/psds-microservice/installation-service/internal/auth"
	"github.com/psds-microservice/installation-service/internal/config"
	"github.com/psds-microservice/installation-service/internal/crmsync"
	"github.com/psds-microservice/installation-service/internal/database"
	grpcserver "github.com/psds-microservice/installation-service/internal/grpc"
	"github.com/psds-microservice/installation-service/internal/handler"
	"github.com/psds-microservice/installation-service/internal/kafka"
	"github.com/psds-microservice/installation-service/internal/logger"
	"github.com/psds-microservice/installation-service/internal/metrics"
	"github.com/psds-microservice/installation-service/internal/router"
	"github.com/psds-microservice/installation-service/internal/scheduler"
	"github.com/psds-microservice/installation-service/internal/service"
	"github.com/psds-microservice/installation-service/internal/traveltime"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// API приложение: HTTP + gRPC серверы (режим api).
type API struct {
	cfg      *config.Config
	log      *zap.Logger
	db       *gorm.DB
	httpSrv  *http.Server
	grpcSrv  *grpcserver.Server
	lis      net.Listener
	producer *kafka.Producer
	redis    *redis.Client
}

// NewAPI validates the config, migrates the schema and wires every component.
func NewAPI(cfg *config.Config, log *zap.Logger) (*API, error) {
	log = logger.OrNop(log)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := database.MigrateUp(cfg.DatabaseURL(), log); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	installations := service.NewInstallationService(db)
	partners := service.NewPartnerService(db)
	teams := service.NewTeamService(db)
	technicians := service.NewTechnicianService(db)
	settings := service.NewSettingService(db)

	m := metrics.NewCollector(prometheus.DefaultRegisterer)

	var travel traveltime.Estimator = traveltime.NewDistanceMatrix(cfg.DistanceMatrixURL, cfg.TravelTimeout, settings, log, m)
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		travel = traveltime.NewCached(travel, traveltime.NewRedisKV(rdb), cfg.TravelCacheTTL, log, m)
		log.Info("travel-time cache enabled", zap.String("redis_addr", cfg.RedisAddr), zap.Duration("ttl", cfg.TravelCacheTTL))
	}

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicInstallation, log)
	deps := scheduler.Deps{
		Installations: installations,
		Teams:         teams,
		Partners:      partners,
		Travel:        travel,
		Notifier:      crmsync.NewWebhookNotifier(settings, cfg.WebhookTimeout, log, m),
		Metrics:       m,
		Logger:        log,
		RejectOverlap: cfg.RejectOverlap,
	}
	if producer.Enabled() {
		deps.Events = producer
	}
	engine := scheduler.NewEngine(deps)

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authn := auth.NewAuthenticator(partners, technicians, tokens, cfg.Auth.AdminUsername, cfg.Auth.AdminPasswordHash)
	if cfg.Auth.AdminPasswordHash == "" {
		log.Warn("ADMIN_PASSWORD_HASH is empty: operator login disabled")
	}

	ping := func(ctx context.Context) error { return database.Ping(ctx, db) }
	h := router.New(router.Handlers{
		Health:     handler.NewHealthHandler(ping),
		Webhook:    handler.NewWebhookHandler(crmsync.NewInbound(installations, log, m), log),
		Auth:       handler.NewAuthHandler(authn, log),
		Partner:    handler.NewPartnerHandler(engine, log),
		Technician: handler.NewTechnicianHandler(engine, log),
		Admin: handler.NewAdminHandler(handler.AdminStores{
			Installations: installations,
			Partners:      partners,
			Teams:         teams,
			Technicians:   technicians,
			Settings:      settings,
		}, log),
		Metrics: metrics.Handler(prometheus.DefaultGatherer),
	}, tokens, log)

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w (порт занят: остановите другой процесс или задайте GRPC_PORT в .env)", cfg.GRPCAddr(), err)
	}

	return &API{
		cfg: cfg,
		log: log,
		db:  db,
		httpSrv: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		grpcSrv:  grpcserver.NewServer(grpcserver.Deps{Ping: ping, Logger: log}),
		lis:      lis,
		producer: producer,
		redis:    rdb,
	}, nil
}

// Run запускает HTTP и gRPC серверы, блокируется до отмены ctx.
func (a *API) Run(ctx context.Context) error {
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	a.log.Info("http server listening",
		zap.String("addr", a.httpSrv.Addr),
		zap.String("swagger", base+router.PathSwagger),
		zap.String("health", base+router.PathHealth),
		zap.String("metrics", base+router.PathMetrics),
		zap.String("api", base+router.PathAPIv1),
	)
	a.log.Info("grpc server listening", zap.String("addr", a.lis.Addr().String()), zap.Bool("reflection", true))

	errCh := make(chan error, 2)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		if err := a.grpcSrv.Serve(a.lis); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go a.grpcSrv.Watch(watchCtx)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		a.log.Error("server failed", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	a.grpcSrv.GracefulStop()
	a.close()
	a.log.Info("shutdown complete")
	return runErr
}

func (a *API) close() {
	if err := a.producer.Close(); err != nil {
		a.log.Warn("kafka close", zap.Error(err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("redis close", zap.Error(err))
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
