package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/VanDung-dev/HieraChain-Parquet/api"
	"github.com/VanDung-dev/HieraChain-Parquet/data"
)

// ErrWriterClosed is the panic value of Write after End, and the error of a
// second End.
var ErrWriterClosed = errors.New("parquet writer already ended")

// FileWriter appends row groups to a Parquet file in call order. It is the
// sole owner of its sink and is not safe for concurrent use.
type FileWriter struct {
	fw        *pqarrow.FileWriter
	encoder   *Encoder
	metrics   *api.Metrics
	file      *os.File
	rowGroups int
	rows      int64
	ended     bool
}

// NewFileWriter starts a Parquet file on w using the encoder's schema and
// properties. End closes w if it is an io.Closer.
func NewFileWriter(w io.Writer, enc *Encoder) (*FileWriter, error) {
	fw, err := pqarrow.NewFileWriter(enc.Schema().Arrow(), w, enc.Properties(), enc.ArrowProperties())
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	return &FileWriter{
		fw:      fw,
		encoder: enc,
		metrics: enc.metrics,
	}, nil
}

// CreateFile creates (or truncates) path and starts a Parquet file on it.
func CreateFile(path string, enc *Encoder) (*FileWriter, error) {
	f, err := os.Create(path) // #nosec G304 - output path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	w, err := NewFileWriter(f, enc)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.file = f
	return w, nil
}

// Write appends rg as the next row group. Calling Write after End panics.
func (w *FileWriter) Write(rg *data.RowGroup) error {
	if w.ended {
		panic(ErrWriterClosed)
	}
	if !rg.Schema().Equal(w.encoder.Schema()) {
		return fmt.Errorf("%w: row group %d", ErrSchemaMismatch, w.rowGroups)
	}
	if int64(rg.NumRows()) > w.encoder.opts.MaxRowGroupLength {
		return fmt.Errorf("%w: row group %d has %d rows", ErrRowGroupTooLarge, w.rowGroups, rg.NumRows())
	}

	start := time.Now()
	rec := rg.Record()
	defer rec.Release()

	if err := w.fw.Write(rec); err != nil {
		return fmt.Errorf("failed to write row group %d: %w", w.rowGroups, err)
	}

	w.rowGroups++
	w.rows += int64(rg.NumRows())
	w.metrics.RecordRowGroupWrite(rg.NumRows(), time.Since(start))
	return nil
}

// End writes the footer and closes the sink. It must be called exactly
// once; later calls return ErrWriterClosed.
func (w *FileWriter) End() error {
	if w.ended {
		return ErrWriterClosed
	}
	w.ended = true

	if err := w.fw.Close(); err != nil {
		if w.file != nil {
			_ = w.file.Close()
		}
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	// the parquet writer closes sinks that are io.Closers
	if w.file != nil {
		if err := w.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			return fmt.Errorf("failed to close %s: %w", w.file.Name(), err)
		}
	}
	return nil
}

// Ended reports whether End has been called.
func (w *FileWriter) Ended() bool { return w.ended }

// RowGroups returns the number of row groups written.
func (w *FileWriter) RowGroups() int { return w.rowGroups }

// Rows returns the number of rows written.
func (w *FileWriter) Rows() int64 { return w.rows }
