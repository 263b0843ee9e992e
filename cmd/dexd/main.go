package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/custodex/dex"
	"github.com/custodex/dex/config"
	"github.com/custodex/dex/httpapi"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	dex.SetLogger(logger)

	if cfg.Env == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpapi.RegisterMetrics(registry)

	engine := dex.NewDexEngine(nil)

	if cfg.Snapshot.Restore {
		if meta, err := engine.RestoreFromSnapshot(cfg.Snapshot.Dir); err != nil {
			if os.IsNotExist(err) {
				logger.Info("no snapshot found, starting fresh", "dir", cfg.Snapshot.Dir)
			} else {
				logger.Error("snapshot restore failed", "error", err)
				os.Exit(1)
			}
		} else {
			logger.Info("state restored from snapshot",
				"dir", cfg.Snapshot.Dir,
				"taken_at", time.Unix(0, meta.Timestamp))
		}
	}

	srv := httpapi.NewServer(engine, logger)

	router := gin.New()
	router.Use(httpapi.RequestID())
	router.Use(httpapi.Logger(logger))
	router.Use(httpapi.Recovery(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": dex.EngineVersion})
	})
	router.GET(cfg.MetricsPath, gin.WrapH(httpapi.MetricsHandler(registry)))
	srv.RegisterRoutes(router)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("dexd starting", "addr", addr, "version", dex.EngineVersion)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	stopSnapshots := make(chan struct{})
	if cfg.Snapshot.Interval > 0 {
		go snapshotLoop(engine, cfg, logger, stopSnapshots)
	}

	waitForShutdown(server, logger)
	close(stopSnapshots)

	// One last snapshot so a clean restart loses nothing.
	if _, err := engine.TakeSnapshot(cfg.Snapshot.Dir); err != nil {
		logger.Error("final snapshot failed", "error", err)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(
		slog.String("service", cfg.ServiceName),
		slog.String("env", cfg.Env),
	)
}

func snapshotLoop(engine *dex.DexEngine, cfg *config.Config, logger *slog.Logger, stop <-chan struct{}) {
	ticker := time.NewTicker(cfg.Snapshot.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			meta, err := engine.TakeSnapshot(cfg.Snapshot.Dir)
			if err != nil {
				logger.Error("snapshot failed", "error", err)
				continue
			}
			logger.Info("snapshot written", "dir", cfg.Snapshot.Dir, "checksum", meta.SnapshotChecksum)
		case <-stop:
			return
		}
	}
}

func waitForShutdown(server *http.Server, logger *slog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
