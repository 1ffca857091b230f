package source

import (
	"context"
	"io"

	"github.com/VanDung-dev/HieraChain-Parquet/data"
)

// Slice yields the given records in order.
type Slice struct {
	records []data.Record
	i       int
}

// NewSlice creates a producer over records.
func NewSlice(records ...data.Record) *Slice {
	return &Slice{records: records}
}

// Next returns the next record, or io.EOF at the end.
func (s *Slice) Next(ctx context.Context) (data.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.i >= len(s.records) {
		return nil, io.EOF
	}
	rec := s.records[s.i]
	s.i++
	return rec, nil
}

// failAfter passes through n records, then fails.
type failAfter struct {
	p   data.Producer
	n   int
	err error
}

// FailAfter wraps p so that it returns err instead of its record number n
// (zero-based) and every record after it.
func FailAfter(p data.Producer, n int, err error) data.Producer {
	return &failAfter{p: p, n: n, err: err}
}

func (f *failAfter) Next(ctx context.Context) (data.Record, error) {
	if f.n <= 0 {
		return nil, f.err
	}
	f.n--
	return f.p.Next(ctx)
}
