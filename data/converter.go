package data

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Converter moves records between Go values and Arrow record batches in
// arrival order. It is used at the ingest boundary; batches are built by
// Batch, not by Converter.
type Converter struct {
	allocator memory.Allocator
	schema    *Schema
}

// NewConverter creates a Converter for the schema using the default
// allocator.
func NewConverter(schema *Schema) *Converter {
	return &Converter{
		allocator: memory.DefaultAllocator,
		schema:    schema,
	}
}

// Schema returns the converter's schema.
func (c *Converter) Schema() *Schema { return c.schema }

// ToArrow builds an Arrow record holding the records in the given order.
func (c *Converter) ToArrow(records []Record) (arrow.Record, error) {
	builder := array.NewRecordBuilder(c.allocator, c.schema.Arrow())
	defer builder.Release()

	w := &builderWriter{schema: c.schema, builder: builder}
	for i, rec := range records {
		w.col = 0
		rec.WriteFields(w)
		if w.err == nil && w.col != c.schema.NumFields() {
			w.err = fmt.Errorf("%w: record wrote %d of %d fields", ErrTypeMismatch, w.col, c.schema.NumFields())
		}
		if w.err != nil {
			return nil, fmt.Errorf("record %d: %w", i, w.err)
		}
	}

	return builder.NewRecord(), nil
}

// FromArrow converts every row of an Arrow record into a Row. The record's
// schema must match the converter's schema exactly and contain no nulls.
func (c *Converter) FromArrow(record arrow.Record) ([]Row, error) {
	if record == nil {
		return nil, errors.New("record is nil")
	}
	if err := ValidateArrowSchema(record.Schema(), c.schema); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTypeMismatch, err)
	}

	numRows := int(record.NumRows())
	numCols := c.schema.NumFields()
	rows := make([]Row, numRows)
	values := make([]Value, numRows*numCols)
	for i := range rows {
		rows[i] = values[i*numCols : (i+1)*numCols : (i+1)*numCols]
	}

	for j := 0; j < numCols; j++ {
		col := record.Column(j)
		if col.NullN() > 0 {
			return nil, fmt.Errorf("%w: column %s has %d nulls",
				ErrTypeMismatch, c.schema.Field(j).Name, col.NullN())
		}

		switch arr := col.(type) {
		case *array.Int64:
			for i := 0; i < numRows; i++ {
				rows[i][j] = Int64Value(arr.Value(i))
			}
		case *array.Uint64:
			for i := 0; i < numRows; i++ {
				rows[i][j] = Uint64Value(arr.Value(i))
			}
		case *array.Binary:
			for i := 0; i < numRows; i++ {
				rows[i][j] = BytesValue(cloneBytes(arr.Value(i)))
			}
		case *array.FixedSizeBinary:
			for i := 0; i < numRows; i++ {
				rows[i][j] = Value{Type: TypeFixedBytes, Bytes: cloneBytes(arr.Value(i))}
			}
		default:
			return nil, fmt.Errorf("column %d (%s) has unsupported array type %T", j, c.schema.Field(j).Name, col)
		}
	}

	return rows, nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// builderWriter appends one record's fields to a RecordBuilder.
type builderWriter struct {
	schema  *Schema
	builder *array.RecordBuilder
	col     int
	err     error
}

func (w *builderWriter) field(t SemanticType) array.Builder {
	if w.err != nil {
		return nil
	}
	if w.col >= w.schema.NumFields() {
		w.err = fmt.Errorf("%w: record wrote more than %d fields", ErrTypeMismatch, w.schema.NumFields())
		return nil
	}
	f := w.schema.Field(w.col)
	if f.Type != t && !(t == TypeBytes && f.Type == TypeFixedBytes) {
		w.err = fmt.Errorf("%w: field %s got %s, want %s", ErrTypeMismatch, f.Name, t, f.Type)
		return nil
	}
	b := w.builder.Field(w.col)
	w.col++
	return b
}

func (w *builderWriter) Int64(v int64) {
	if b := w.field(TypeInt64); b != nil {
		b.(*array.Int64Builder).Append(v)
	}
}

func (w *builderWriter) Uint64(v uint64) {
	if b := w.field(TypeUint64); b != nil {
		b.(*array.Uint64Builder).Append(v)
	}
}

func (w *builderWriter) Bytes(v []byte) {
	col := w.col
	switch b := w.field(TypeBytes).(type) {
	case *array.BinaryBuilder:
		b.Append(v)
	case *array.FixedSizeBinaryBuilder:
		if size := w.schema.Field(col).Size; len(v) != size {
			w.err = fmt.Errorf("%w: field %s: %w: got %d bytes, want %d",
				ErrTypeMismatch, w.schema.Field(col).Name, ErrWidthMismatch, len(v), size)
			return
		}
		b.Append(v)
	}
}
