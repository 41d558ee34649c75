package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/authz-core/internal/cache"
	"github.com/iliyamo/authz-core/internal/config"
	"github.com/iliyamo/authz-core/internal/database"
	"github.com/iliyamo/authz-core/internal/handler"
	"github.com/iliyamo/authz-core/internal/logging"
	"github.com/iliyamo/authz-core/internal/metrics"
	"github.com/iliyamo/authz-core/internal/middleware"
	"github.com/iliyamo/authz-core/internal/queue"
	"github.com/iliyamo/authz-core/internal/repository"
	"github.com/iliyamo/authz-core/internal/revocation"
	"github.com/iliyamo/authz-core/internal/router"
	"github.com/iliyamo/authz-core/internal/service"
	"github.com/iliyamo/authz-core/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Params{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		log.WithError(err).Fatal("database unavailable")
	}
	defer db.Close()

	rdb, err := config.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.WithError(err).Fatal("redis unavailable")
	}
	defer rdb.Close()

	verifier, err := token.NewVerifier(cfg.JWTSecret)
	if err != nil {
		log.WithError(err).Fatal("token verifier")
	}
	issuer, err := token.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL)
	if err != nil {
		log.WithError(err).Fatal("token issuer")
	}

	kv := cache.NewRedisStore(rdb)
	store := repository.NewStore(db)
	blacklist := revocation.NewBlacklist(kv)
	policy := revocation.PolicyFromFailOpen(cfg.FailOpen())
	verdicts := cache.NewPermissionCache(kv, cfg.PermissionCacheTTL, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	decisions, err := metrics.NewDecisions(reg)
	if err != nil {
		log.WithError(err).Fatal("metrics")
	}

	opts := []service.Option{service.WithFanout(cfg.PermissionFanout), service.WithMetrics(decisions)}
	if cfg.RabbitMQURL != "" {
		opts = append(opts, service.WithPublisher(queue.NewPublisher(cfg.RabbitMQURL, log)))
		consumer := queue.NewAuditConsumer(cfg.RabbitMQURL, cfg.AuditLogPath, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("audit consumer stopped")
			}
		}()
	}
	perms := service.NewPermissionService(store, verdicts, log, opts...)
	auth := service.NewAuthService(store, issuer, blacklist, log, service.WithPasswordCost(cfg.BcryptCost))

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.WithFields(logrus.Fields{
				"request_id": v.RequestID,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency,
			}).Info("request")
			return nil
		},
	}))

	router.Register(e, router.Deps{
		Auth: handler.NewAuthHandler(auth, log),
		RBAC: handler.NewRBACHandler(perms, log),
		Health: handler.Health(
			handler.Check{Name: "mysql", Ping: db.PingContext},
			handler.Check{Name: "redis", Ping: kv.Ping},
		),
		Authenticate: middleware.Authenticate(verifier, revocation.NewChecker(blacklist, policy, log), log),
		Permissions:  perms,
		LoginLimiter: middleware.NewTokenBucket(cfg.RateLimit, rdb, log),
		Metrics:      metrics.Handler(reg),
	})

	addr := ":" + cfg.Port
	log.WithFields(logrus.Fields{
		"addr":       addr,
		"env":        cfg.Env,
		"revocation": policy.String(),
		"cache_ttl":  cfg.PermissionCacheTTL,
		"fanout":     cfg.PermissionFanout,
	}).Info("listening")

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
}
