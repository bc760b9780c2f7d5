// Command server exposes the Goldbach signal engine, the backtester
// and the alert scheduler over HTTP, plus a websocket stream of
// generated setups.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	ch "goldbach-backtester/services/clickhouse"
	"goldbach-backtester/services/engine"
	"goldbach-backtester/services/feed"
	"goldbach-backtester/services/journal"
	"goldbach-backtester/services/notify"
	"goldbach-backtester/services/scheduler"
	"goldbach-backtester/services/stream"
)

type serverConfig struct {
	HTTPPort     int
	Symbols      []string
	PollInterval time.Duration
	DefaultPO3   int
	JournalSize  int
}

func mustEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func loadConfig() (serverConfig, error) {
	port, err := strconv.Atoi(mustEnv("HTTP_PORT", "8080"))
	if err != nil {
		return serverConfig{}, fmt.Errorf("invalid HTTP_PORT: %w", err)
	}
	po3, err := strconv.Atoi(mustEnv("DEFAULT_PO3", strconv.Itoa(engine.DefaultPO3)))
	if err != nil {
		return serverConfig{}, fmt.Errorf("invalid DEFAULT_PO3: %w", err)
	}
	poll, err := time.ParseDuration(mustEnv("POLL_INTERVAL", "1m"))
	if err != nil {
		return serverConfig{}, fmt.Errorf("invalid POLL_INTERVAL: %w", err)
	}

	syms := strings.Split(mustEnv("SYMBOLS", "NQ,ES,EURUSD"), ",")
	for i := range syms {
		syms[i] = strings.TrimSpace(syms[i])
	}

	return serverConfig{
		HTTPPort:     port,
		Symbols:      syms,
		PollInterval: poll,
		DefaultPO3:   po3,
		JournalSize:  100,
	}, nil
}

// apiServer wires the engine, journal, feed, scheduler and stream hub
// behind the HTTP routes.
type apiServer struct {
	cfg    serverConfig
	logger *zap.Logger

	// signal is shared with the scheduler; its setup counter is
	// atomic, so both drivers can generate concurrently.
	signal *engine.Engine

	journal  *journal.Journal
	hub      *stream.Hub
	sched    *scheduler.Scheduler
	notifier *notify.Manager

	// feedMgr and chClient are nil when ClickHouse is unreachable;
	// analysis and CSV-driven backtests still work without them.
	feedMgr  *feed.Manager
	chClient *ch.Client
}

func newAPIServer(ctx context.Context, cfg serverConfig, logger *zap.Logger) (*apiServer, error) {
	s := &apiServer{
		cfg:      cfg,
		logger:   logger,
		signal:   engine.NewEngine(cfg.DefaultPO3),
		journal:  journal.New(cfg.JournalSize),
		hub:      stream.NewHub(logger),
		notifier: notify.NewManager(notify.ConfigFromEnv(), logger),
	}

	chCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := ch.Open(chCtx, ch.DefaultConfig(), logger)
	if err != nil {
		logger.Warn("clickhouse unavailable, price feed disabled", zap.Error(err))
	} else {
		s.chClient = client
		s.feedMgr = feed.NewManager(feed.NewClickHouseProvider(client), cfg.Symbols, cfg.PollInterval, logger)
	}

	s.sched = scheduler.New(s.signal, s.feedMgr, s.notifier, logger)
	s.sched.SetupDefaultJobs(cfg.Symbols)

	if s.feedMgr != nil {
		s.feedMgr.Subscribe(func(q feed.Quote) {
			s.hub.Broadcast(gin.H{"type": "quote", "data": q})
			s.sched.CheckAlerts(ctx, q.Symbol, q.Price)
		})
	}

	return s, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting goldbach server",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Strings("symbols", cfg.Symbols),
		zap.Int("default_po3", cfg.DefaultPO3),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, err := newAPIServer(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	server.setupRoutes(router)

	if server.feedMgr != nil {
		go func() {
			if err := server.feedMgr.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("price feed stopped", zap.Error(err))
			}
		}()
	}
	go func() {
		if err := server.sched.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("scheduler stopped", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}
	go func() {
		logger.Info("Starting HTTP server", zap.Int("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	if server.chClient != nil {
		if err := server.chClient.Close(); err != nil {
			logger.Error("clickhouse close failed", zap.Error(err))
		}
	}
	logger.Info("Server stopped")
}
