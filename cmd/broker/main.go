package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/reddit-broker/internal/broker"
	"github.com/onnwee/reddit-broker/internal/config"
	"github.com/onnwee/reddit-broker/internal/errorreporting"
	"github.com/onnwee/reddit-broker/internal/logger"
	"github.com/onnwee/reddit-broker/internal/middleware"
	"github.com/onnwee/reddit-broker/internal/queue"
	"github.com/onnwee/reddit-broker/internal/reddit"
	"github.com/onnwee/reddit-broker/internal/tracing"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, falling back to system env")
	}

	cfg := config.Load()
	logger.Init(cfg.LogLevel)
	logger.Info("starting up", "app", cfg.AppName, "log_level", cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := errorreporting.Init(cfg.SentryEnvironment); err != nil {
		logger.Warn("failed to initialize error reporting", "error", err)
	} else if errorreporting.IsSentryEnabled() {
		logger.Info("error reporting initialized", "environment", cfg.SentryEnvironment)
		defer errorreporting.Flush(2 * time.Second)
	}

	shutdownTracing, err := tracing.Init(cfg.AppName)
	if err != nil {
		logger.Warn("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("failed to shut down tracer", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	session, err := queue.Connect(ctx, cfg)
	if err != nil {
		logger.Error("exhausted AMQP connection attempts, shutting down", "error", err)
		errorreporting.CaptureError(err)
		os.Exit(1)
	}
	defer session.Close()

	deliveries, err := session.Consume(ctx)
	if err != nil {
		logger.Error("failed to start consuming", "error", err)
		errorreporting.CaptureError(err)
		os.Exit(1)
	}

	client := reddit.NewClient(cfg.UserAgent, cfg.HTTPTimeout)
	auth := reddit.NewManager(client, cfg.RedditUsername, cfg.RedditPassword, cfg.RedditClientID, cfg.RedditClientSecret)
	defer revokeToken(auth)

	loop := broker.NewLoop(broker.LoopConfig{
		Queue:        session,
		Deliveries:   deliveries,
		Registry:     broker.NewRegistry(),
		Reddit:       client,
		Auth:         auth,
		Clock:        broker.NewRateClock(cfg.MinTimeBetweenRequests),
		InboundQueue: cfg.AMQPQueue,
	})

	logger.Info("initialization completed normally")
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("dispatch loop aborted", "error", err)
		errorreporting.CaptureError(err)
		os.Exit(1)
	}
	logger.Info("clean shutdown finished")
}

// revokeToken invalidates the cached bearer token on Reddit's side during
// shutdown. Best effort: an unrevoked token just ages out.
func revokeToken(auth *reddit.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := auth.Revoke(ctx); err != nil {
		logger.Warn("failed to revoke bearer token", "error", err)
	}
}

// serveMetrics exposes prometheus metrics and a liveness probe.
func serveMetrics(addr string) {
	router := mux.NewRouter()
	router.Use(middleware.RequestID, middleware.Recover)
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	logger.Info("metrics server listening", "addr", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		logger.Warn("metrics server stopped", "error", err)
	}
}
