package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/VanDung-dev/HieraChain-Parquet/api"
	"github.com/VanDung-dev/HieraChain-Parquet/data"
)

// Encoder errors
var (
	ErrSchemaMismatch   = errors.New("batch schema does not match encoder schema")
	ErrRowGroupTooLarge = errors.New("batch exceeds maximum row group length")
	ErrNotConverted     = errors.New("batch was not converted")
)

// Encoder turns batches into row groups and holds the file-wide Parquet
// properties derived from WriteOptions. All option validation happens in
// NewEncoder, before any row is converted.
type Encoder struct {
	schema     *data.Schema
	opts       WriteOptions
	encodings  []string
	props      *parquet.WriterProperties
	arrowProps pqarrow.ArrowWriterProperties
	pool       *WorkerPool
	metrics    *api.Metrics
}

// NewEncoder validates opts against the schema. A nil pool uses one worker
// per CPU; metrics may be nil.
func NewEncoder(schema *data.Schema, opts WriteOptions, pool *WorkerPool, metrics *api.Metrics) (*Encoder, error) {
	codec, err := opts.Codec()
	if err != nil {
		return nil, err
	}
	version, pageVersion, err := opts.versions()
	if err != nil {
		return nil, err
	}
	encodings, err := resolveEncodings(schema, opts.Encodings)
	if err != nil {
		return nil, err
	}
	if opts.MaxRowGroupLength <= 0 {
		opts.MaxRowGroupLength = DefaultMaxRowGroupLength
	}
	if opts.CreatedBy == "" {
		opts.CreatedBy = DefaultCreatedBy
	}

	props := []parquet.WriterProperty{
		parquet.WithCompression(codec),
		parquet.WithStats(opts.Statistics),
		parquet.WithVersion(version),
		parquet.WithDataPageVersion(pageVersion),
		parquet.WithMaxRowGroupLength(opts.MaxRowGroupLength),
		parquet.WithCreatedBy(opts.CreatedBy),
		parquet.WithDictionaryDefault(false),
		parquet.WithEncoding(parquet.Encodings.Plain),
	}
	for i, enc := range encodings {
		name := schema.Field(i).Name
		if enc == EncodingDictionary {
			props = append(props, parquet.WithDictionaryFor(name, true))
			continue
		}
		props = append(props, parquet.WithEncodingFor(name, parquetEncodings[enc]))
	}

	if pool == nil {
		pool = NewWorkerPool("encoder", 0)
	}

	return &Encoder{
		schema:     schema,
		opts:       opts,
		encodings:  encodings,
		props:      parquet.NewWriterProperties(props...),
		arrowProps: pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()),
		pool:       pool,
		metrics:    metrics,
	}, nil
}

// Schema returns the encoder's schema.
func (e *Encoder) Schema() *data.Schema { return e.schema }

// Options returns the resolved write options.
func (e *Encoder) Options() WriteOptions { return e.opts }

// Properties returns the Parquet writer properties shared by every row
// group of the file.
func (e *Encoder) Properties() *parquet.WriterProperties { return e.props }

// ArrowProperties returns the Arrow-to-Parquet conversion properties.
func (e *Encoder) ArrowProperties() pqarrow.ArrowWriterProperties { return e.arrowProps }

// Encoding returns the encoding name resolved for a field.
func (e *Encoder) Encoding(field string) (string, bool) {
	idx, ok := e.schema.Index(field)
	if !ok {
		return "", false
	}
	return e.encodings[idx], true
}

// check rejects batches that cannot become exactly one row group of this
// file.
func (e *Encoder) check(i int, b *data.Batch) error {
	if !b.Schema().Equal(e.schema) {
		return fmt.Errorf("batch %d: %w: got %s, want %s", i, ErrSchemaMismatch, b.Schema(), e.schema)
	}
	if int64(b.Len()) > e.opts.MaxRowGroupLength {
		return fmt.Errorf("batch %d: %w: %d > %d", i, ErrRowGroupTooLarge, b.Len(), e.opts.MaxRowGroupLength)
	}
	return nil
}

func (e *Encoder) convert(i int, b *data.Batch) (*data.RowGroup, error) {
	start := time.Now()
	rg, err := b.IntoRowGroup()
	if err != nil {
		return nil, fmt.Errorf("batch %d: %w", i, err)
	}
	e.metrics.RecordConversion(rg.NumRows(), time.Since(start))
	return rg, nil
}

// RowGroups converts the batches in parallel and yields one row group per
// batch, in batch order. Each group is yielded as soon as it and all groups
// before it are ready. The batches are consumed.
//
// The consumer owns each yielded row group and must release it. Stopping
// the iteration early cancels pending conversions and releases groups that
// were converted but not yielded.
func (e *Encoder) RowGroups(ctx context.Context, batches []*data.Batch) iter.Seq2[*data.RowGroup, error] {
	return func(yield func(*data.RowGroup, error) bool) {
		for i, b := range batches {
			if err := e.check(i, b); err != nil {
				yield(nil, err)
				return
			}
		}

		ctx, cancel := context.WithCancel(ctx)
		groups := make([]*data.RowGroup, len(batches))
		ready := make([]chan struct{}, len(batches))
		for i := range ready {
			ready[i] = make(chan struct{})
		}

		var runErr error
		finished := make(chan struct{})
		go func() {
			defer close(finished)
			runErr = e.pool.Run(ctx, len(batches), func(_ context.Context, i int) error {
				defer close(ready[i])
				rg, err := e.convert(i, batches[i])
				if err != nil {
					return err
				}
				groups[i] = rg
				return nil
			})
		}()

		defer func() {
			cancel()
			<-finished
			for _, rg := range groups {
				if rg != nil {
					rg.Release()
				}
			}
		}()

		for i := range batches {
			select {
			case <-ready[i]:
			case <-finished:
			}

			rg := groups[i]
			if rg == nil {
				<-finished
				err := runErr
				if err == nil {
					err = context.Cause(ctx)
				}
				if err == nil {
					err = fmt.Errorf("batch %d: %w", i, ErrNotConverted)
				}
				yield(nil, err)
				return
			}

			groups[i] = nil
			if !yield(rg, nil) {
				return
			}
		}
	}
}

// Convert is the eager form of RowGroups: it returns every row group, or
// the first error with all converted groups released.
func (e *Encoder) Convert(ctx context.Context, batches []*data.Batch) ([]*data.RowGroup, error) {
	groups := make([]*data.RowGroup, 0, len(batches))
	for rg, err := range e.RowGroups(ctx, batches) {
		if err != nil {
			for _, g := range groups {
				g.Release()
			}
			return nil, err
		}
		groups = append(groups, rg)
	}
	return groups, nil
}
