package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"Coop_Voting/internal/config"
	"Coop_Voting/internal/observability"
	"Coop_Voting/internal/pkg"
	"Coop_Voting/internal/relay"
	"Coop_Voting/internal/repository/mysql"
	"Coop_Voting/internal/repository/redis"
	"Coop_Voting/internal/router"
	"Coop_Voting/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 10 * time.Second

// loadConfig 读取配置并初始化全局日志
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	setupLogger(cfg.Server.LogFormat)
	return cfg, nil
}

func setupLogger(format string) {
	var h slog.Handler
	if format == "text" {
		h = slog.NewTextHandler(os.Stdout, nil)
	} else {
		h = slog.NewJSONHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(h))
}

func openDB(cfg config.Config) error {
	if err := mysql.InitDB(cfg.Database.Driver, cfg.Database.DSN); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	return nil
}

// openLock 没配置 redis 时返回 nil 锁，对账不做跨实例互斥
func openLock(cfg config.Config) (*redis.DistLock, func(), error) {
	if cfg.Redis.Addr == "" {
		return nil, func() {}, nil
	}
	if err := redis.Init(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	lock := &redis.DistLock{RDB: redis.Client, TTL: cfg.Reconcile.Interval}
	return lock, func() { _ = redis.Close() }, nil
}

type app struct {
	cfg        config.Config
	server     *http.Server
	outbox     *service.OutboxRelayer
	reconciler *service.TallyReconciler
	closers    []func()
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if err := openDB(cfg); err != nil {
		return nil, err
	}
	// 自动建表
	if err := mysql.Migrate(mysql.DB); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	issuer := pkg.NewTokenIssuer(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)

	lock, closeRedis, err := openLock(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeRedis)

	hub := relay.NewHub()
	var rl relay.Relay = hub
	var tokens *redis.TokenRepository
	if redis.Client != nil {
		tokens = redis.NewTokenRepository(redis.Client, cfg.JWT.AccessTTL)
		if cfg.Relay.Mode == "redis" {
			rr := relay.NewRedisRelay(redis.Client, hub)
			if err := rr.Start(ctx); err != nil {
				a.Close()
				return nil, err
			}
			rl = rr
		}
	}

	sender := service.LogSender
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := pkg.NewKafkaProducer(pkg.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		a.closers = append(a.closers, func() { _ = producer.Close() })
		sender = service.KafkaSender(producer)
	}

	polls := service.NewPollService(mysql.DB, rl, metrics)
	a.outbox = service.NewOutboxRelayer(mysql.DB, sender, metrics)
	a.reconciler = service.NewTallyReconciler(mysql.DB, lock, metrics, cfg.Reconcile.BatchSize, cfg.Reconcile.Interval)

	gin.SetMode(cfg.Server.Mode)
	engine := router.InitRouter(router.Deps{
		DB:        mysql.DB,
		Issuer:    issuer,
		Tokens:    tokens,
		Relay:     rl,
		Metrics:   metrics,
		Gatherer:  reg,
		Users:     service.NewUserService(mysql.DB, tokens, issuer),
		Polls:     polls,
		Residents: service.NewResidentService(mysql.DB, tokens),
		Coops:     service.NewCooperativeService(mysql.DB),
	})
	a.server = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// Serve 阻塞到 ctx 结束或监听失败，然后优雅退出
func (a *app) Serve(ctx context.Context) error {
	go a.outbox.Run(ctx)
	go a.reconciler.ReconcilerRun(ctx)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", a.cfg.Server.Addr, "relay", a.cfg.Relay.Mode)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.server.Shutdown(shutdownCtx)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
