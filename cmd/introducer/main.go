package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/soda92/phis-introducing-med/internal/browser"
	appconfig "github.com/soda92/phis-introducing-med/internal/config"
	"github.com/soda92/phis-introducing-med/internal/introduce"
	"github.com/soda92/phis-introducing-med/internal/observability/metrics"
	"github.com/soda92/phis-introducing-med/internal/records"
	"github.com/soda92/phis-introducing-med/internal/reference"
	"github.com/soda92/phis-introducing-med/internal/runconfig"
	"github.com/soda92/phis-introducing-med/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	runCfg, err := runconfig.Load(cfg.RunFile)
	if err != nil {
		logger.Error("failed to load run file", "path", cfg.RunFile, "error", err)
		os.Exit(1)
	}
	logger.Info("run settings loaded",
		"duplicate_followup", runCfg.DuplicateFollowup,
		"window_start", runCfg.Window.Start.Format("2006-01-02"),
		"window_end", runCfg.Window.End.Format("2006-01-02"),
		"save_records", runCfg.SaveRecords)

	refLoader := reference.NewLoader(cfg.ReferenceWorkbook, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sinks := []introduce.RecordSink{records.NewCSVSink(cfg.RecordsCSV)}
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		sinks = append(sinks, records.NewStore(pool))
	}

	session, err := browser.NewSession(browser.SessionOptions{
		HostAppURL: cfg.HostAppURL,
		Headless:   cfg.Headless,
	})
	if err != nil {
		logger.Error("failed to start browser session", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Error("closing browser session", "error", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	introduceMetrics := metrics.NewIntroduceMetrics(registry)

	orchestrator, err := introduce.NewOrchestrator(introduce.OrchestratorConfig{
		Driver:    browser.NewDriver(session.Page(), logger),
		Reference: refLoader,
		RunConfig: runCfg,
		Sinks:     sinks,
		Metrics:   introduceMetrics,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to build orchestrator", "error", err)
		os.Exit(1)
	}

	var queue introduce.TaskQueue
	if cfg.UseMemoryQueue {
		queue = introduce.NewMemoryQueue(0)
		logger.Info("using in-memory patient queue")
	} else {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer func() { _ = client.Close() }()
		queue = introduce.NewRedisQueue(client, cfg.PatientQueueKey)
		logger.Info("using redis patient queue", "addr", cfg.RedisAddr, "key", cfg.PatientQueueKey)
	}

	worker := introduce.NewWorker(orchestrator, queue, logger,
		introduce.WithWorkerCount(cfg.WorkerCount),
		introduce.WithDequeueWait(cfg.QueueWait),
	)
	worker.Start(ctx)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		logger.Info("ops endpoint listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops endpoint failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down introducer...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	_ = server.Shutdown(doneCtx)

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("introducer stopped")
	case <-doneCtx.Done():
		logger.Error("introducer shutdown timed out", "error", doneCtx.Err())
	}
}
