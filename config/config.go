// Package config loads blockwriter settings from a YAML file and command
// line flags. Flags override the file, which overrides the defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/VanDung-dev/HieraChain-Parquet/data"
	"github.com/VanDung-dev/HieraChain-Parquet/engine"
	"github.com/VanDung-dev/HieraChain-Parquet/logging"
	"github.com/VanDung-dev/HieraChain-Parquet/network"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Source kinds and synthetic modes.
const (
	SourceSynthetic = "synthetic"
	SourceZmq       = "zmq"

	ModeZero   = "zero"
	ModeRandom = "random"
)

// Schema names.
const (
	SchemaBlocks       = "blocks"
	SchemaTransactions = "transactions"
)

// SourceConfig selects the record producer.
type SourceConfig struct {
	Kind     string           `yaml:"kind"`
	Mode     string           `yaml:"mode"`
	Count    int              `yaml:"count"`
	Seed     uint64           `yaml:"seed"`
	Endpoint network.Endpoint `yaml:"endpoint"`
}

// PipelineConfig controls batching and conversion.
type PipelineConfig struct {
	BatchSize int    `yaml:"batch_size"`
	Workers   int    `yaml:"workers"`
	Partial   string `yaml:"partial"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config holds all blockwriter settings.
type Config struct {
	Output   string              `yaml:"output"`
	Schema   string              `yaml:"schema"`
	Source   SourceConfig        `yaml:"source"`
	Pipeline PipelineConfig      `yaml:"pipeline"`
	Parquet  engine.WriteOptions `yaml:"parquet"`
	Metrics  MetricsConfig       `yaml:"metrics"`
	Log      LogConfig           `yaml:"log"`

	// File is the YAML file the config was loaded from.
	File string `yaml:"-"`
	// ShowVersion asks the command to print its version and exit.
	ShowVersion bool `yaml:"-"`
}

// Default returns the built-in configuration: ten thousand zero-valued
// blocks written to blocks.parquet with snappy compression.
func Default() *Config {
	return &Config{
		Output: "blocks.parquet",
		Schema: SchemaBlocks,
		Source: SourceConfig{
			Kind:  SourceSynthetic,
			Mode:  ModeZero,
			Count: 10000,
			Endpoint: network.Endpoint{
				Address: "tcp://127.0.0.1:5557",
				Listen:  true,
			},
		},
		Pipeline: PipelineConfig{
			Partial: engine.PartialAbort.String(),
		},
		Parquet: engine.DefaultWriteOptions(),
		Metrics: MetricsConfig{
			Namespace: "blockwriter",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path) // #nosec G304 - config path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.File = path
	return cfg, nil
}

// RegisterFlags binds the config fields to fs, using the current values as
// defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.File, "config", c.File, "YAML config file")
	fs.BoolVar(&c.ShowVersion, "version", false, "Print version and exit")

	fs.StringVar(&c.Output, "o", c.Output, "Output Parquet file")
	fs.StringVar(&c.Schema, "schema", c.Schema, "Record schema (blocks, transactions)")

	fs.StringVar(&c.Source.Kind, "source", c.Source.Kind, "Record source (synthetic, zmq)")
	fs.StringVar(&c.Source.Mode, "mode", c.Source.Mode, "Synthetic mode (zero, random)")
	fs.IntVar(&c.Source.Count, "n", c.Source.Count, "Number of synthetic records")
	fs.Uint64Var(&c.Source.Seed, "seed", c.Source.Seed, "Random seed for synthetic records")
	fs.StringVar(&c.Source.Endpoint.Address, "zmq", c.Source.Endpoint.Address, "ZeroMQ endpoint for the zmq source")
	fs.BoolVar(&c.Source.Endpoint.Listen, "zmq-listen", c.Source.Endpoint.Listen, "Bind the ZeroMQ endpoint instead of connecting")

	fs.IntVar(&c.Pipeline.BatchSize, "batch", c.Pipeline.BatchSize, "Records per row group (0 = up to max row group length)")
	fs.IntVar(&c.Pipeline.Workers, "workers", c.Pipeline.Workers, "Parallel batch conversions (0 = GOMAXPROCS)")
	fs.StringVar(&c.Pipeline.Partial, "partial", c.Pipeline.Partial, "On producer failure: abort or keep collected records")

	fs.StringVar(&c.Parquet.Compression, "compression", c.Parquet.Compression,
		"Compression codec ("+strings.Join(engine.CodecNames(), ", ")+")")
	fs.BoolVar(&c.Parquet.Statistics, "stats", c.Parquet.Statistics, "Write column statistics")
	fs.StringVar(&c.Parquet.Version, "format", c.Parquet.Version, "Parquet format version (v1, v2)")
	fs.Int64Var(&c.Parquet.MaxRowGroupLength, "max-row-group", c.Parquet.MaxRowGroupLength, "Maximum rows per row group")
	fs.Func("encoding", "Column encoding override as field=encoding (repeatable)", func(s string) error {
		name, enc, ok := strings.Cut(s, "=")
		if !ok || name == "" || enc == "" {
			return fmt.Errorf("expected field=encoding, got %q", s)
		}
		if c.Parquet.Encodings == nil {
			c.Parquet.Encodings = make(map[string]string)
		}
		c.Parquet.Encodings[name] = enc
		return nil
	})

	fs.StringVar(&c.Metrics.Addr, "metrics", c.Metrics.Addr, "Prometheus listen address (empty = disabled)")
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "Log level (debug, info, warn, error)")
	fs.StringVar(&c.Log.Format, "log-format", c.Log.Format, "Log format (text, json)")
}

// Parse builds the config from command line arguments. When -config names
// a file, the file is loaded and the arguments are applied again on top.
// Usage and flag errors are printed to output.
func Parse(name string, args []string, output io.Writer) (*Config, error) {
	cfg := Default()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.File == "" || cfg.ShowVersion {
		return cfg, nil
	}

	fromFile, err := Load(cfg.File)
	if err != nil {
		return nil, err
	}
	fs = flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fromFile.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return fromFile, nil
}

// Validate checks every setting, including the Parquet options against the
// selected schema.
func (c *Config) Validate() error {
	if c.Output == "" {
		return fmt.Errorf("%w: output path is empty", ErrInvalidConfig)
	}
	schema, err := c.RecordSchema()
	if err != nil {
		return err
	}

	switch c.Source.Kind {
	case SourceSynthetic:
		if c.Source.Mode != ModeZero && c.Source.Mode != ModeRandom {
			return fmt.Errorf("%w: unknown synthetic mode %q", ErrInvalidConfig, c.Source.Mode)
		}
		if c.Source.Mode == ModeZero && c.Schema != SchemaBlocks {
			return fmt.Errorf("%w: zero mode only produces blocks", ErrInvalidConfig)
		}
		if c.Source.Count < 0 {
			return fmt.Errorf("%w: negative record count", ErrInvalidConfig)
		}
	case SourceZmq:
		if c.Source.Endpoint.Address == "" {
			return fmt.Errorf("%w: zmq endpoint is empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidConfig, c.Source.Kind)
	}

	if c.Pipeline.BatchSize < 0 {
		return fmt.Errorf("%w: negative batch size", ErrInvalidConfig)
	}
	if _, err := c.PartialPolicy(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Parquet.Validate(schema); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// RecordSchema resolves the schema name.
func (c *Config) RecordSchema() (*data.Schema, error) {
	switch c.Schema {
	case SchemaBlocks:
		return data.BlockSchema(), nil
	case SchemaTransactions:
		return data.TransactionSchema(), nil
	default:
		return nil, fmt.Errorf("%w: unknown schema %q", ErrInvalidConfig, c.Schema)
	}
}

// PartialPolicy resolves the partial batch policy.
func (c *Config) PartialPolicy() (engine.PartialPolicy, error) {
	return engine.ParsePartialPolicy(c.Pipeline.Partial)
}
