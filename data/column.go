package data

import (
	"errors"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Column buffer errors
var (
	ErrIndexOutOfRange = errors.New("gather index out of range")
	ErrColumnOverflow  = errors.New("column exceeds maximum byte size")
	ErrWidthMismatch   = errors.New("value width does not match fixed-size field")
)

// Column is a growable buffer holding one field's values in arrival order.
//
// Freeze moves the buffer's storage into an immutable Arrow array and leaves
// the column empty; the array owns the bytes from then on.
type Column interface {
	Type() SemanticType
	Len() int
	Gather(indices []uint32) (Column, error)
	Freeze() arrow.Array

	truncate(n int)
}

// NewColumn returns an empty column for the field with room for capacity rows.
func NewColumn(f Field, capacity int) Column {
	switch f.Type {
	case TypeInt64:
		return NewInt64Column(capacity)
	case TypeUint64:
		return NewUint64Column(capacity)
	case TypeFixedBytes:
		return NewFixedBytesColumn(f.Size, capacity)
	default:
		return NewBytesColumn(capacity)
	}
}

// FixedColumn stores fixed-width integers contiguously.
type FixedColumn[T int64 | uint64] struct {
	values []T
}

// NewInt64Column returns an empty int64 column.
func NewInt64Column(capacity int) *FixedColumn[int64] {
	return &FixedColumn[int64]{values: make([]int64, 0, capacity)}
}

// NewUint64Column returns an empty uint64 column.
func NewUint64Column(capacity int) *FixedColumn[uint64] {
	return &FixedColumn[uint64]{values: make([]uint64, 0, capacity)}
}

// Push appends one value.
func (c *FixedColumn[T]) Push(v T) { c.values = append(c.values, v) }

// Value returns the i-th value.
func (c *FixedColumn[T]) Value(i int) T { return c.values[i] }

// Values returns the backing slice. It is only valid until the next Push.
func (c *FixedColumn[T]) Values() []T { return c.values }

// Len returns the number of values.
func (c *FixedColumn[T]) Len() int { return len(c.values) }

// Type returns TypeInt64 or TypeUint64.
func (c *FixedColumn[T]) Type() SemanticType {
	if _, ok := any(c.values).([]int64); ok {
		return TypeInt64
	}
	return TypeUint64
}

// Gather returns a new column holding c[indices[i]] for each i.
func (c *FixedColumn[T]) Gather(indices []uint32) (Column, error) {
	out := make([]T, len(indices))
	for i, idx := range indices {
		if int(idx) >= len(c.values) {
			return nil, fmt.Errorf("%w: %d >= %d", ErrIndexOutOfRange, idx, len(c.values))
		}
		out[i] = c.values[idx]
	}
	return &FixedColumn[T]{values: out}, nil
}

// Freeze converts the column into an *array.Int64 or *array.Uint64.
func (c *FixedColumn[T]) Freeze() arrow.Array {
	var (
		dt  arrow.DataType
		buf []byte
	)
	switch vals := any(c.values).(type) {
	case []int64:
		dt, buf = arrow.PrimitiveTypes.Int64, arrow.Int64Traits.CastToBytes(vals)
	case []uint64:
		dt, buf = arrow.PrimitiveTypes.Uint64, arrow.Uint64Traits.CastToBytes(vals)
	}
	arr := makeArray(dt, len(c.values), memory.NewBufferBytes(buf))
	c.values = nil
	return arr
}

func (c *FixedColumn[T]) truncate(n int) { c.values = c.values[:n] }

// BytesColumn stores variable-length byte strings as one data buffer
// delimited by int32 offsets. offsets always has Len()+1 entries.
type BytesColumn struct {
	data    []byte
	offsets []int32
}

// NewBytesColumn returns an empty variable-length byte column.
func NewBytesColumn(capacity int) *BytesColumn {
	offsets := make([]int32, 1, capacity+1)
	return &BytesColumn{offsets: offsets}
}

// Push appends a copy of v.
func (c *BytesColumn) Push(v []byte) error {
	if len(c.data)+len(v) > math.MaxInt32 {
		return fmt.Errorf("%w: %d + %d bytes", ErrColumnOverflow, len(c.data), len(v))
	}
	c.data = append(c.data, v...)
	c.offsets = append(c.offsets, int32(len(c.data))) // #nosec G115 - bounds checked above
	return nil
}

// Value returns the i-th value. The slice aliases the column's storage.
func (c *BytesColumn) Value(i int) []byte {
	return c.data[c.offsets[i]:c.offsets[i+1]]
}

// Len returns the number of values.
func (c *BytesColumn) Len() int { return len(c.offsets) - 1 }

// Type returns TypeBytes.
func (c *BytesColumn) Type() SemanticType { return TypeBytes }

// Gather returns a new column holding c[indices[i]] for each i, with
// offsets rebuilt for the new order.
func (c *BytesColumn) Gather(indices []uint32) (Column, error) {
	n := c.Len()
	size := 0
	for _, idx := range indices {
		if int(idx) >= n {
			return nil, fmt.Errorf("%w: %d >= %d", ErrIndexOutOfRange, idx, n)
		}
		size += int(c.offsets[idx+1] - c.offsets[idx])
	}

	out := &BytesColumn{
		data:    make([]byte, 0, size),
		offsets: make([]int32, 1, len(indices)+1),
	}
	for _, idx := range indices {
		out.data = append(out.data, c.data[c.offsets[idx]:c.offsets[idx+1]]...)
		out.offsets = append(out.offsets, int32(len(out.data))) // #nosec G115 - size bounded by source column
	}
	return out, nil
}

// Freeze converts the column into an *array.Binary.
func (c *BytesColumn) Freeze() arrow.Array {
	arr := makeArray(arrow.BinaryTypes.Binary, c.Len(),
		memory.NewBufferBytes(arrow.Int32Traits.CastToBytes(c.offsets)),
		memory.NewBufferBytes(c.data),
	)
	c.data, c.offsets = nil, []int32{0}
	return arr
}

func (c *BytesColumn) truncate(n int) {
	c.offsets = c.offsets[:n+1]
	c.data = c.data[:c.offsets[n]]
}

// FixedBytesColumn stores byte strings of one fixed width back to back.
type FixedBytesColumn struct {
	width int
	data  []byte
}

// NewFixedBytesColumn returns an empty column of width-byte values.
func NewFixedBytesColumn(width, capacity int) *FixedBytesColumn {
	return &FixedBytesColumn{width: width, data: make([]byte, 0, width*capacity)}
}

// Push appends a copy of v, which must be exactly Width() bytes.
func (c *FixedBytesColumn) Push(v []byte) error {
	if len(v) != c.width {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrWidthMismatch, len(v), c.width)
	}
	c.data = append(c.data, v...)
	return nil
}

// Value returns the i-th value. The slice aliases the column's storage.
func (c *FixedBytesColumn) Value(i int) []byte {
	return c.data[i*c.width : (i+1)*c.width]
}

// Width returns the byte width of each value.
func (c *FixedBytesColumn) Width() int { return c.width }

// Len returns the number of values.
func (c *FixedBytesColumn) Len() int { return len(c.data) / c.width }

// Type returns TypeFixedBytes.
func (c *FixedBytesColumn) Type() SemanticType { return TypeFixedBytes }

// Gather returns a new column holding c[indices[i]] for each i.
func (c *FixedBytesColumn) Gather(indices []uint32) (Column, error) {
	n := c.Len()
	out := &FixedBytesColumn{width: c.width, data: make([]byte, 0, len(indices)*c.width)}
	for _, idx := range indices {
		if int(idx) >= n {
			return nil, fmt.Errorf("%w: %d >= %d", ErrIndexOutOfRange, idx, n)
		}
		out.data = append(out.data, c.Value(int(idx))...)
	}
	return out, nil
}

// Freeze converts the column into an *array.FixedSizeBinary.
func (c *FixedBytesColumn) Freeze() arrow.Array {
	arr := makeArray(&arrow.FixedSizeBinaryType{ByteWidth: c.width}, c.Len(),
		memory.NewBufferBytes(c.data))
	c.data = nil
	return arr
}

func (c *FixedBytesColumn) truncate(n int) { c.data = c.data[:n*c.width] }

// makeArray wraps value buffers into a non-nullable Arrow array without
// copying them.
func makeArray(dt arrow.DataType, n int, buffers ...*memory.Buffer) arrow.Array {
	d := array.NewData(dt, n, append([]*memory.Buffer{nil}, buffers...), nil, 0, 0)
	defer d.Release()
	return array.MakeFromData(d)
}
