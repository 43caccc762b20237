package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rendis/evoflow/internal/engine"
	"github.com/rendis/evoflow/internal/evolution"
	"github.com/rendis/evoflow/internal/expressions"
	"github.com/rendis/evoflow/internal/logging"
	"github.com/rendis/evoflow/internal/scheduler"
	"github.com/rendis/evoflow/internal/store"
	"github.com/rendis/evoflow/internal/streaming"
	"github.com/rendis/evoflow/pkg/mcp"
)

func main() {
	configPath := flag.String("config", "settings.json", "path to the settings file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(Version)
		return
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := buildLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	hub := streaming.NewMemoryHub()

	runs, err := openRunStore(cfg)
	if err != nil {
		return err
	}
	defer runs.Close()

	conditions, err := expressions.NewConditionEvaluator()
	if err != nil {
		return err
	}

	registry := engine.NewExecutorRegistry()
	engine.RegisterBuiltins(registry, nil)

	breaker := engine.NewCircuitBreaker(engine.BreakerConfig{
		FailureThreshold: cfg.BreakerFailureThreshold,
		Cooldown:         time.Duration(cfg.BreakerCooldownMs) * time.Millisecond,
	})

	runner := engine.NewStepRunner(registry, breaker, hub, nil, logger)
	eng := engine.NewWorkflowEngine(engine.NewContextStore(), runner, conditions, hub, nil, nil, logger)
	eng.SetRecorder(runs)

	evaluators := evolution.NewEvaluatorRegistry(hub, logger)
	evaluators.RegisterBuiltins()
	eng.SetSuggester(evaluators)

	strategies := evolution.DefaultStrategyRegistry()

	optimizer := evolution.NewOptimizer(eng, evaluators, strategies, hub, logger)
	optimizer.Parallelism = cfg.EvalParallelism
	optimizer.Seed = cfg.Seed

	sched := scheduler.New(eng, logger)
	sched.Start()
	defer sched.Stop()

	srv := mcp.NewServer(Version, mcp.Deps{
		Engine:     eng,
		Optimizer:  optimizer,
		Evaluators: evaluators,
		Strategies: strategies,
		Scheduler:  sched,
		Runs:       runs,
		Logger:     logger,
	})

	logger.Info("serving on stdio", slog.String("version", Version))
	return mcp.ServeStdio(srv)
}

func openRunStore(cfg Config) (store.RunStore, error) {
	if cfg.DatabaseDSN == "" {
		return store.NewMemoryStore(), nil
	}
	return store.OpenLibSQL(cfg.DatabaseDSN)
}

func buildLogger(cfg Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(logging.NewCorrelationHandler(handler))
}
