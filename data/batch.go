package data

import (
	"errors"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
)

// MaxBatchRows is the largest number of rows a batch can hold; row indices
// in a sort permutation are uint32.
const MaxBatchRows = math.MaxUint32

// Batch errors
var (
	ErrTypeMismatch  = errors.New("record does not match schema")
	ErrBatchFull     = errors.New("batch is full")
	ErrBatchConsumed = errors.New("batch already converted to a row group")
	ErrInvariant     = errors.New("batch invariant violated")
)

// TypeMismatchError describes a record field that cannot be stored in its
// schema column. It matches ErrTypeMismatch with errors.Is.
type TypeMismatchError struct {
	Column int
	Field  string
	Detail string
	cause  error
}

func (e *TypeMismatchError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("type mismatch at column %d: %s", e.Column, e.Detail)
	}
	return fmt.Sprintf("type mismatch at column %d (%s): %s", e.Column, e.Field, e.Detail)
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

func (e *TypeMismatchError) Unwrap() error { return e.cause }

// Batch accumulates records into one column buffer per schema field.
// Every column holds exactly Len() values between calls to Push.
//
// A Batch is not safe for concurrent use. It is consumed by IntoRowGroup
// and must not be used afterwards.
type Batch struct {
	schema   *Schema
	columns  []Column
	len      int
	w        rowWriter
	consumed bool
}

// NewBatch returns an empty batch for the schema.
func NewBatch(schema *Schema) *Batch {
	return NewBatchWithCapacity(schema, 0)
}

// NewBatchWithCapacity returns an empty batch with room for capacity rows.
func NewBatchWithCapacity(schema *Schema, capacity int) *Batch {
	b := &Batch{
		schema:  schema,
		columns: make([]Column, schema.NumFields()),
	}
	for i := range b.columns {
		b.columns[i] = NewColumn(schema.Field(i), capacity)
	}
	b.w.b = b
	return b
}

// Schema returns the batch's schema.
func (b *Batch) Schema() *Schema { return b.schema }

// Len returns the number of rows pushed so far.
func (b *Batch) Len() int { return b.len }

// IsEmpty reports whether no rows have been pushed.
func (b *Batch) IsEmpty() bool { return b.len == 0 }

// Column returns the i-th column buffer.
func (b *Batch) Column(i int) Column {
	b.checkLive()
	return b.columns[i]
}

// Push appends one record to every column. Either all columns receive a
// value or none do: a record whose fields do not match the schema leaves
// the batch unchanged and returns a *TypeMismatchError.
func (b *Batch) Push(rec Record) error {
	b.checkLive()
	if int64(b.len) >= MaxBatchRows {
		return ErrBatchFull
	}

	b.w.reset()
	rec.WriteFields(&b.w)
	if b.w.err == nil && b.w.col != len(b.columns) {
		b.w.fail(b.w.col, fmt.Sprintf("record wrote %d of %d fields", b.w.col, len(b.columns)), nil)
	}
	if b.w.err != nil {
		for _, c := range b.columns {
			c.truncate(b.len)
		}
		return b.w.err
	}

	b.len++
	return nil
}

// IntoRowGroup consumes the batch and returns its rows sorted by the schema
// key. The same permutation is applied to every column before it is frozen.
func (b *Batch) IntoRowGroup() (*RowGroup, error) {
	b.checkLive()
	b.consumed = true
	columns := b.columns
	b.columns = nil

	for i, c := range columns {
		if c.Len() != b.len {
			return nil, fmt.Errorf("%w: column %s has %d rows, batch has %d",
				ErrInvariant, b.schema.Field(i).Name, c.Len(), b.len)
		}
	}

	key := columns[b.schema.KeyIndex()]
	var indices []uint32
	if !IsSorted(key) {
		var err error
		if indices, err = SortIndices(key); err != nil {
			return nil, err
		}
	}

	arrays := make([]arrow.Array, len(columns))
	for i, c := range columns {
		if indices != nil {
			sorted, err := c.Gather(indices)
			if err != nil {
				releaseArrays(arrays[:i])
				return nil, fmt.Errorf("%w: column %s: %w", ErrInvariant, b.schema.Field(i).Name, err)
			}
			c = sorted
		}
		arrays[i] = c.Freeze()
		columns[i] = nil
	}

	return newRowGroup(b.schema, arrays, b.len), nil
}

func (b *Batch) checkLive() {
	if b.consumed {
		panic(ErrBatchConsumed)
	}
}

// rowWriter feeds one record's fields into the batch columns in order and
// records the first mismatch.
type rowWriter struct {
	b   *Batch
	col int
	err error
}

func (w *rowWriter) reset() {
	w.col = 0
	w.err = nil
}

func (w *rowWriter) fail(col int, detail string, cause error) {
	e := &TypeMismatchError{Column: col, Detail: detail, cause: cause}
	if col < w.b.schema.NumFields() {
		e.Field = w.b.schema.Field(col).Name
	}
	w.err = e
}

func (w *rowWriter) next(t SemanticType) Column {
	if w.err != nil {
		return nil
	}
	if w.col >= len(w.b.columns) {
		w.fail(w.col, fmt.Sprintf("record wrote more than %d fields", len(w.b.columns)), nil)
		return nil
	}
	f := w.b.schema.Field(w.col)
	if f.Type != t && !(t == TypeBytes && f.Type == TypeFixedBytes) {
		w.fail(w.col, fmt.Sprintf("got %s, want %s", t, f.Type), nil)
		return nil
	}
	c := w.b.columns[w.col]
	w.col++
	return c
}

func (w *rowWriter) Int64(v int64) {
	if c := w.next(TypeInt64); c != nil {
		c.(*FixedColumn[int64]).Push(v)
	}
}

func (w *rowWriter) Uint64(v uint64) {
	if c := w.next(TypeUint64); c != nil {
		c.(*FixedColumn[uint64]).Push(v)
	}
}

func (w *rowWriter) Bytes(v []byte) {
	col := w.col
	var err error
	switch c := w.next(TypeBytes).(type) {
	case *BytesColumn:
		err = c.Push(v)
	case *FixedBytesColumn:
		err = c.Push(v)
	}
	if err != nil {
		w.fail(col, err.Error(), err)
	}
}
