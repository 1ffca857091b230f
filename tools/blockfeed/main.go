package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/VanDung-dev/HieraChain-Parquet/data"
	"github.com/VanDung-dev/HieraChain-Parquet/network"
	"github.com/VanDung-dev/HieraChain-Parquet/source"
)

// FeedConfig holds configuration for the feeder.
type FeedConfig struct {
	Address   string
	Listen    bool
	Schema    string
	Count     int
	Seed      uint64
	BatchSize int
}

func main() {
	config := parseFlags()

	if err := run(context.Background(), config, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// run sends config.Count records and the end-of-stream message. The pusher
// is closed on every return path.
func run(ctx context.Context, config FeedConfig, out io.Writer) error {
	fmt.Fprintln(out, "=== HieraChain Block Feed ===")
	fmt.Fprintf(out, "Target: %s\n", config.Address)
	fmt.Fprintf(out, "Schema: %s\n", config.Schema)
	fmt.Fprintf(out, "Records: %d in batches of %d\n", config.Count, config.BatchSize)
	fmt.Fprintln(out)

	var (
		schema   *data.Schema
		producer data.Producer
	)
	switch config.Schema {
	case "blocks":
		schema = data.BlockSchema()
		producer = source.NewRandomBlocks(config.Count, config.Seed)
	case "transactions":
		schema = data.TransactionSchema()
		producer = source.NewRandomTransactions(config.Count, config.Seed)
	default:
		return fmt.Errorf("unknown schema %q", config.Schema)
	}

	pusher, err := network.NewPusher(ctx, schema, network.Endpoint{Address: config.Address, Listen: config.Listen})
	if err != nil {
		return fmt.Errorf("failed to open pusher: %w", err)
	}
	defer func() { _ = pusher.Close() }()

	start := time.Now()
	sent, err := pusher.SendAll(ctx, producer, config.BatchSize)
	if err != nil {
		return fmt.Errorf("send failed after %d records: %w", sent, err)
	}
	if err := pusher.End(); err != nil {
		return fmt.Errorf("failed to end stream: %w", err)
	}

	elapsed := time.Since(start)
	fmt.Fprintf(out, "Sent %d records in %v (%.0f records/sec)\n", sent, elapsed, float64(sent)/elapsed.Seconds())
	return nil
}

func parseFlags() FeedConfig {
	config := FeedConfig{}

	flag.StringVar(&config.Address, "zmq", "tcp://127.0.0.1:5557", "ZeroMQ endpoint of the blockwriter")
	flag.BoolVar(&config.Listen, "listen", false, "Bind the endpoint instead of connecting")
	flag.StringVar(&config.Schema, "schema", "blocks", "Record schema (blocks, transactions)")
	flag.IntVar(&config.Count, "n", 10000, "Number of records to send")
	flag.Uint64Var(&config.Seed, "seed", 1, "Random seed")
	flag.IntVar(&config.BatchSize, "batch", 1000, "Records per message")

	flag.Parse()

	return config
}
