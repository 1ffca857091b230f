package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/VanDung-dev/HieraChain-Parquet/api"
	"github.com/VanDung-dev/HieraChain-Parquet/data"
	"github.com/VanDung-dev/HieraChain-Parquet/logging"
)

// ErrProducer wraps failures reported by the record producer.
var ErrProducer = errors.New("producer failed")

// PartialPolicy decides what happens to records collected before the
// producer fails.
type PartialPolicy int

const (
	// PartialAbort discards everything and writes no file.
	PartialAbort PartialPolicy = iota
	// PartialKeep writes the records collected so far and still reports
	// the producer error.
	PartialKeep
)

func (p PartialPolicy) String() string {
	switch p {
	case PartialAbort:
		return "abort"
	case PartialKeep:
		return "keep"
	default:
		return "unknown"
	}
}

// ParsePartialPolicy parses "abort" or "keep".
func ParsePartialPolicy(s string) (PartialPolicy, error) {
	switch strings.ToLower(s) {
	case "", "abort":
		return PartialAbort, nil
	case "keep":
		return PartialKeep, nil
	default:
		return PartialAbort, fmt.Errorf("unknown partial policy %q", s)
	}
}

// Summary describes a finished write.
type Summary struct {
	Batches   int           `json:"batches"`
	RowGroups int           `json:"row_groups"`
	Rows      int64         `json:"rows"`
	Duration  time.Duration `json:"duration"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWriteOptions sets the file-wide Parquet options.
func WithWriteOptions(opts WriteOptions) Option {
	return func(p *Pipeline) { p.writeOpts = opts }
}

// WithWorkers sets the number of parallel batch conversions.
func WithWorkers(n int) Option {
	return func(p *Pipeline) { p.workers = n }
}

// WithBatchSize sets the number of records per batch, and so per row group.
// Zero fills each batch up to the maximum row group length.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) { p.batchSize = n }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *api.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithPartialPolicy sets the policy for producer failures.
func WithPartialPolicy(policy PartialPolicy) Option {
	return func(p *Pipeline) { p.partial = policy }
}

// Pipeline drives records from a producer through batching, parallel
// conversion and ordered row group writes.
type Pipeline struct {
	schema    *data.Schema
	writeOpts WriteOptions
	workers   int
	batchSize int
	partial   PartialPolicy
	logger    *logging.Logger
	metrics   *api.Metrics

	pool    *WorkerPool
	encoder *Encoder
}

// NewPipeline validates the configuration and builds the encoder. Invalid
// codecs or encodings fail here, before any record is read.
func NewPipeline(schema *data.Schema, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		schema:    schema,
		writeOpts: DefaultWriteOptions(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logging.Noop()
	}
	p.logger = p.logger.WithComponent("pipeline")

	if p.batchSize < 0 {
		return nil, fmt.Errorf("invalid batch size %d", p.batchSize)
	}

	p.pool = NewWorkerPool("convert", p.workers)
	enc, err := NewEncoder(schema, p.writeOpts, p.pool, p.metrics)
	if err != nil {
		return nil, err
	}
	p.encoder = enc

	maxRows := min(enc.Options().MaxRowGroupLength, int64(data.MaxBatchRows))
	if p.batchSize == 0 || int64(p.batchSize) > maxRows {
		p.batchSize = int(maxRows)
	}

	return p, nil
}

// Schema returns the pipeline schema.
func (p *Pipeline) Schema() *data.Schema { return p.schema }

// Encoder returns the pipeline's encoder.
func (p *Pipeline) Encoder() *Encoder { return p.encoder }

// BatchSize returns the effective number of records per batch.
func (p *Pipeline) BatchSize() int { return p.batchSize }

// PoolStats returns conversion pool statistics.
func (p *Pipeline) PoolStats() PoolStats { return p.pool.GetStats() }

// Close stops the conversion pool.
func (p *Pipeline) Close() { p.pool.Shutdown() }

// Collect drains the producer until io.EOF into batches of BatchSize
// records. At least one batch is always returned on success, so an empty
// producer yields one empty row group.
//
// A record that does not match the schema aborts collection regardless of
// the partial policy. Other producer errors are wrapped in ErrProducer;
// with PartialKeep the batches collected so far are returned alongside.
func (p *Pipeline) Collect(ctx context.Context, producer data.Producer) ([]*data.Batch, error) {
	var batches []*data.Batch
	cur := data.NewBatch(p.schema)

	seal := func() {
		p.metrics.RecordPush(cur.Len())
		p.metrics.RecordBatch(cur.Len())
		p.logger.Debug("batch collected", "batch", len(batches), "rows", cur.Len())
		batches = append(batches, cur)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := producer.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.metrics.RecordProducerError()
			err = fmt.Errorf("%w: %w", ErrProducer, err)
			if p.partial == PartialKeep {
				if !cur.IsEmpty() || len(batches) == 0 {
					seal()
				}
				p.logger.Warn("producer failed, keeping collected records", "batches", len(batches), "error", err)
				return batches, err
			}
			return nil, err
		}

		if err := cur.Push(rec); err != nil {
			p.metrics.RecordProducerError()
			return nil, fmt.Errorf("batch %d row %d: %w", len(batches), cur.Len(), err)
		}
		if cur.Len() == p.batchSize {
			seal()
			cur = data.NewBatch(p.schema)
		}
	}

	if !cur.IsEmpty() || len(batches) == 0 {
		seal()
	}
	return batches, nil
}

// Write converts the batches and writes them as consecutive row groups of
// one Parquet file on w. The file is finalized on every exit path; after a
// failure its contents are incomplete and must be treated as corrupt.
func (p *Pipeline) Write(ctx context.Context, batches []*data.Batch, w io.Writer) (Summary, error) {
	fw, err := NewFileWriter(w, p.encoder)
	if err != nil {
		return Summary{}, err
	}
	return p.write(ctx, batches, fw)
}

// WriteFile is Write to a newly created file at path.
func (p *Pipeline) WriteFile(ctx context.Context, batches []*data.Batch, path string) (Summary, error) {
	fw, err := CreateFile(path, p.encoder)
	if err != nil {
		return Summary{}, err
	}
	sum, err := p.write(ctx, batches, fw)
	if err != nil {
		p.logger.Warn("write failed, output is incomplete", "path", path, "error", err)
	}
	return sum, err
}

func (p *Pipeline) write(ctx context.Context, batches []*data.Batch, fw *FileWriter) (sum Summary, err error) {
	start := time.Now()
	sum.Batches = len(batches)

	defer func() {
		if !fw.Ended() {
			if endErr := fw.End(); err == nil {
				err = endErr
			}
		}
		sum.RowGroups = fw.RowGroups()
		sum.Rows = fw.Rows()
		sum.Duration = time.Since(start)
	}()

	for rg, convErr := range p.encoder.RowGroups(ctx, batches) {
		if convErr != nil {
			return sum, convErr
		}

		rows := rg.NumRows()
		writeErr := fw.Write(rg)
		rg.Release()
		if writeErr != nil {
			return sum, writeErr
		}
		p.logger.WithRowGroup(fw.RowGroups()-1).Debug("row group written", "rows", rows)
	}

	return sum, fw.End()
}

// Run collects every record from the producer and writes them to path.
// Under PartialKeep a producer failure still produces a file, and the
// producer error is returned with the summary.
func (p *Pipeline) Run(ctx context.Context, producer data.Producer, path string) (Summary, error) {
	start := time.Now()

	batches, collectErr := p.Collect(ctx, producer)
	if collectErr != nil && batches == nil {
		return Summary{}, collectErr
	}

	sum, err := p.WriteFile(ctx, batches, path)
	if err != nil {
		return sum, err
	}

	p.metrics.RecordRun(time.Since(start))
	p.logger.Info("parquet file written",
		"path", path,
		"batches", sum.Batches,
		"row_groups", sum.RowGroups,
		"rows", sum.Rows,
		"conversions", p.pool.GetStats().Completed,
		"duration", time.Since(start),
	)
	return sum, collectErr
}
