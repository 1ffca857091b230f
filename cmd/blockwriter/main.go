package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VanDung-dev/HieraChain-Parquet/api"
	"github.com/VanDung-dev/HieraChain-Parquet/config"
	"github.com/VanDung-dev/HieraChain-Parquet/data"
	"github.com/VanDung-dev/HieraChain-Parquet/engine"
	"github.com/VanDung-dev/HieraChain-Parquet/logging"
	"github.com/VanDung-dev/HieraChain-Parquet/network"
	"github.com/VanDung-dev/HieraChain-Parquet/source"
)

// Version information
const (
	Version = "0.1.0"
	Name    = "HieraChain-Parquet"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Parse("blockwriter", args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}
	if cfg.ShowVersion {
		fmt.Fprintf(stdout, "%s v%s\n", Name, Version)
		return 0
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	logger, err := logging.Open(stderr, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	sum, err := writeFile(ctx, cfg, logger)
	if sum.RowGroups > 0 {
		fmt.Fprintf(stdout, "wrote %d rows in %d row groups to %s (%v)\n",
			sum.Rows, sum.RowGroups, cfg.Output, sum.Duration.Round(time.Millisecond))
	}
	if err != nil {
		logger.Error("blockwriter failed", "error", err)
		return 1
	}
	return 0
}

func writeFile(ctx context.Context, cfg *config.Config, logger *logging.Logger) (engine.Summary, error) {
	schema, err := cfg.RecordSchema()
	if err != nil {
		return engine.Summary{}, err
	}
	policy, err := cfg.PartialPolicy()
	if err != nil {
		return engine.Summary{}, err
	}

	var metrics *api.Metrics
	if cfg.Metrics.Addr != "" {
		metrics = api.NewMetrics(cfg.Metrics.Namespace)
		srv := api.NewMetricsServer(cfg.Metrics.Addr, metrics)
		if err := srv.StartAsync(); err != nil {
			return engine.Summary{}, fmt.Errorf("failed to start metrics server: %w", err)
		}
		logger.Info("serving metrics", "addr", cfg.Metrics.Addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		}()
	}

	pipeline, err := engine.NewPipeline(schema,
		engine.WithWriteOptions(cfg.Parquet),
		engine.WithWorkers(cfg.Pipeline.Workers),
		engine.WithBatchSize(cfg.Pipeline.BatchSize),
		engine.WithPartialPolicy(policy),
		engine.WithLogger(logger),
		engine.WithMetrics(metrics),
	)
	if err != nil {
		return engine.Summary{}, err
	}
	defer pipeline.Close()

	producer, closeProducer, err := openProducer(cfg, schema, logger)
	if err != nil {
		return engine.Summary{}, err
	}
	defer closeProducer()

	return pipeline.Run(ctx, producer, cfg.Output)
}

func openProducer(cfg *config.Config, schema *data.Schema, logger *logging.Logger) (data.Producer, func(), error) {
	noop := func() {}

	switch cfg.Source.Kind {
	case config.SourceZmq:
		src := network.NewZmqSource(schema, cfg.Source.Endpoint)
		if err := src.Start(); err != nil {
			return nil, noop, err
		}
		logger.Info("waiting for records", "endpoint", src.Addr(), "listen", cfg.Source.Endpoint.Listen)
		return src, src.Stop, nil

	case config.SourceSynthetic:
		switch {
		case cfg.Source.Mode == config.ModeZero:
			return source.NewZeroBlocks(cfg.Source.Count), noop, nil
		case cfg.Schema == config.SchemaTransactions:
			return source.NewRandomTransactions(cfg.Source.Count, cfg.Source.Seed), noop, nil
		default:
			return source.NewRandomBlocks(cfg.Source.Count, cfg.Source.Seed), noop, nil
		}
	}

	return nil, noop, fmt.Errorf("unknown source %q", cfg.Source.Kind)
}
