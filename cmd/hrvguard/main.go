package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hrvguard/internal/alerts"
	"hrvguard/internal/api"
	"hrvguard/internal/broadcast"
	"hrvguard/internal/config"
	"hrvguard/internal/engine"
	"hrvguard/internal/ingest"
	"hrvguard/internal/logging"
	"hrvguard/internal/model"
	"hrvguard/internal/results"
	"hrvguard/internal/storage"
	"hrvguard/internal/telemetry"
)

const (
	version         = "0.3.0"
	shutdownTimeout = 10 * time.Second
)

func main() {
	_ = config.LoadEnv()

	configPath := flag.String("config", config.GetEnv("HRVGUARD_CONFIG", "hrvguard.yaml"), "path to the YAML or JSON config file")
	analyzePath := flag.String("analyze", "", "analyse one job file, print the result as JSON and exit")
	flag.Parse()

	if *analyzePath != "" {
		os.Exit(runOnce(*configPath, *analyzePath))
	}
	if err := run(config.ResolvePath(*configPath)); err != nil {
		fmt.Fprintln(os.Stderr, "hrvguard:", err)
		os.Exit(1)
	}
}

func run(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := config.Save(path, config.DefaultConfig()); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	manager, err := config.NewManager(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := manager.Get()

	log := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if store != nil {
		if err := store.Init(ctx); err != nil {
			_ = store.Close()
			return fmt.Errorf("init storage: %w", err)
		}
		defer store.Close()
		log.Info("storage enabled", "driver", cfg.Storage.Driver)
	}

	resultsStore := results.NewStore(cfg.Results.StoreLimit)
	alertsStore := alerts.NewStore(cfg.Alerts.StoreLimit)
	metrics := telemetry.New()

	hub := broadcast.NewHub(log)
	go hub.Run(ctx)

	eng := engine.NewEngine(cfg, log, resultsStore, alertsStore, store)
	eng.SetTelemetry(metrics)
	eng.SetPublisher(hub)

	jobs := make(chan model.Job, cfg.Ingest.ChannelBuffer)
	eng.Start(ctx, jobs)

	parser := ingest.NewParser()
	ingest.StartREST(ctx, manager, jobs, metrics, log)
	ingest.StartTCPStream(ctx, manager, parser, jobs, metrics, log)
	ingest.StartFileTail(ctx, manager, parser, jobs, metrics, log)
	ingest.StartKafka(ctx, manager, parser, jobs, metrics, log)
	ingest.StartNATS(ctx, manager, parser, jobs, metrics, log)

	api.Start(ctx, manager, api.Deps{
		Results:   resultsStore,
		Alerts:    alertsStore,
		Store:     store,
		Engine:    eng,
		Telemetry: metrics,
		WS:        hub.ServeWS,
		Logger:    log,
		Version:   version,
	})

	go manager.Watch(3*time.Second, func(next *config.Config) {
		eng.UpdateConfig(next)
		log.Info("config reloaded", "path", manager.Path())
	}, func(err error) {
		log.Warn("config reload failed", "err", err)
	}, ctx.Done())

	log.Info("hrvguard started",
		"version", version,
		"config", path,
		"workers", cfg.Pipeline.Workers,
		"window_size", cfg.Pipeline.WindowSize,
		"relative_threshold", cfg.Pipeline.RelativeThreshold,
	)

	<-ctx.Done()
	log.Info("shutdown signal received, draining workers")
	waitWorkers(eng, log)
	log.Info("hrvguard stopped")
	return nil
}

func waitWorkers(eng *engine.Engine, log *slog.Logger) {
	done := make(chan struct{})
	go func() {
		eng.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		log.Warn("workers did not stop before timeout", "timeout", shutdownTimeout)
	}
}

// runOnce analyses a single job file with the configured pipeline. The
// config file is optional here; defaults apply when it is missing.
func runOnce(configPath, jobPath string) int {
	cfg := config.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load config:", err)
			return 1
		}
		cfg = loaded
	} else {
		config.ApplyEnv(cfg)
	}

	data, err := os.ReadFile(jobPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read job:", err)
		return 1
	}
	job, err := ingest.ParseJSONBytes(data, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "decode job:", err)
		return 1
	}
	job.Source = "cli"
	res, err := engine.NewPipeline(cfg.Pipeline, nil, nil).Run(job)
	if err != nil {
		fmt.Fprintln(os.Stderr, "analyse:", err)
		return 1
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		fmt.Fprintln(os.Stderr, "encode result:", err)
		return 1
	}
	return 0
}
