// Package data provides the columnar accumulation layer for block records.
// Schemas defined here fix the on-disk column order of the Parquet output:
// record field order, batch column order and file column order all follow
// the order of Schema.Fields.
package data

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// Schema validation errors
var (
	ErrEmptySchema    = errors.New("schema has no fields")
	ErrDuplicateField = errors.New("duplicate field name")
	ErrInvalidKey     = errors.New("invalid sort key")
	ErrInvalidField   = errors.New("invalid field")
)

// SemanticType is the logical type of a schema field.
type SemanticType int

const (
	TypeInt64 SemanticType = iota
	TypeUint64
	TypeBytes
	TypeFixedBytes
)

func (t SemanticType) String() string {
	switch t {
	case TypeInt64:
		return "int64"
	case TypeUint64:
		return "uint64"
	case TypeBytes:
		return "bytes"
	case TypeFixedBytes:
		return "fixed_bytes"
	default:
		return "unknown"
	}
}

// Numeric reports whether values of the type can serve as a sort key.
func (t SemanticType) Numeric() bool {
	return t == TypeInt64 || t == TypeUint64
}

// Field is a named, typed schema column. Size is the byte width of a
// TypeFixedBytes field and is ignored for other types.
type Field struct {
	Name string
	Type SemanticType
	Size int
}

// Int64Field declares a signed 64-bit integer field.
func Int64Field(name string) Field { return Field{Name: name, Type: TypeInt64} }

// Uint64Field declares an unsigned 64-bit integer field.
func Uint64Field(name string) Field { return Field{Name: name, Type: TypeUint64} }

// BytesField declares a variable-length byte string field.
func BytesField(name string) Field { return Field{Name: name, Type: TypeBytes} }

// FixedBytesField declares a byte string field of exactly size bytes.
func FixedBytesField(name string, size int) Field {
	return Field{Name: name, Type: TypeFixedBytes, Size: size}
}

// ArrowType returns the Arrow data type the field is frozen into.
func (f Field) ArrowType() arrow.DataType {
	switch f.Type {
	case TypeInt64:
		return arrow.PrimitiveTypes.Int64
	case TypeUint64:
		return arrow.PrimitiveTypes.Uint64
	case TypeBytes:
		return arrow.BinaryTypes.Binary
	case TypeFixedBytes:
		return &arrow.FixedSizeBinaryType{ByteWidth: f.Size}
	default:
		return arrow.Null
	}
}

func (f Field) String() string {
	if f.Type == TypeFixedBytes {
		return fmt.Sprintf("%s:%s[%d]", f.Name, f.Type, f.Size)
	}
	return fmt.Sprintf("%s:%s", f.Name, f.Type)
}

// Schema is an ordered list of fields with one numeric sort key.
type Schema struct {
	fields []Field
	index  map[string]int
	key    int
	arrow  *arrow.Schema
}

// NewSchema builds a schema whose rows are ordered by the field named key.
func NewSchema(key string, fields ...Field) (*Schema, error) {
	if len(fields) == 0 {
		return nil, ErrEmptySchema
	}

	s := &Schema{
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
		key:    -1,
	}
	copy(s.fields, fields)

	arrowFields := make([]arrow.Field, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: field %d has no name", ErrInvalidField, i)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateField, f.Name)
		}
		switch f.Type {
		case TypeInt64, TypeUint64, TypeBytes:
		case TypeFixedBytes:
			if f.Size <= 0 {
				return nil, fmt.Errorf("%w: %s has width %d", ErrInvalidField, f.Name, f.Size)
			}
		default:
			return nil, fmt.Errorf("%w: %s has unknown type %d", ErrInvalidField, f.Name, f.Type)
		}
		s.index[f.Name] = i
		arrowFields[i] = arrow.Field{Name: f.Name, Type: f.ArrowType(), Nullable: false}
	}

	idx, ok := s.index[key]
	if !ok {
		return nil, fmt.Errorf("%w: no field named %q", ErrInvalidKey, key)
	}
	if !s.fields[idx].Type.Numeric() {
		return nil, fmt.Errorf("%w: %s is %s, want int64 or uint64", ErrInvalidKey, key, s.fields[idx].Type)
	}
	s.key = idx
	s.arrow = arrow.NewSchema(arrowFields, nil)

	return s, nil
}

// MustSchema is like NewSchema but panics on error. Intended for
// package-level schema declarations.
func MustSchema(key string, fields ...Field) *Schema {
	s, err := NewSchema(key, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns a copy of the schema's fields in column order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field returns the i-th field.
func (s *Schema) Field(i int) Field { return s.fields[i] }

// NumFields returns the number of fields.
func (s *Schema) NumFields() int { return len(s.fields) }

// KeyIndex returns the column index of the sort key.
func (s *Schema) KeyIndex() int { return s.key }

// Key returns the sort key field.
func (s *Schema) Key() Field { return s.fields[s.key] }

// Index returns the column index of the named field.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Arrow returns the Arrow schema rows of this schema are frozen into.
func (s *Schema) Arrow() *arrow.Schema { return s.arrow }

// Equal reports whether two schemas have the same fields in the same order
// and the same sort key.
func (s *Schema) Equal(other *Schema) bool {
	if s == other {
		return true
	}
	if other == nil || len(s.fields) != len(other.fields) || s.key != other.key {
		return false
	}
	for i := range s.fields {
		if s.fields[i] != other.fields[i] {
			return false
		}
	}
	return true
}

func (s *Schema) String() string {
	out := "schema<"
	for i, f := range s.fields {
		if i > 0 {
			out += ", "
		}
		out += f.String()
	}
	return out + ">"
}

// ValidateArrowSchema checks that an Arrow schema has exactly the expected
// fields, in order, with matching types.
func ValidateArrowSchema(actual *arrow.Schema, expected *Schema) error {
	if actual == nil {
		return errors.New("arrow schema is nil")
	}

	if actual.NumFields() != expected.NumFields() {
		return fmt.Errorf("field count mismatch: got %d, expected %d",
			actual.NumFields(), expected.NumFields())
	}

	for i := 0; i < actual.NumFields(); i++ {
		actualField := actual.Field(i)
		expectedField := expected.Field(i)

		if actualField.Name != expectedField.Name {
			return fmt.Errorf("field %d name mismatch: got %s, expected %s",
				i, actualField.Name, expectedField.Name)
		}

		if !arrow.TypeEqual(actualField.Type, expectedField.ArrowType()) {
			return fmt.Errorf("field %s type mismatch: got %s, expected %s",
				actualField.Name, actualField.Type, expectedField.ArrowType())
		}
	}

	return nil
}

// BlockSchema returns the schema of a block record.
//
// Fields:
//   - number: int64 - Block height, the sort key
//   - nonce: uint64 - Block nonce
//   - hash: bytes - Block hash
func BlockSchema() *Schema {
	return MustSchema("number",
		Int64Field("number"),
		Uint64Field("nonce"),
		BytesField("hash"),
	)
}

// TransactionSchema returns the schema of a transaction record.
//
// Fields:
//   - block_number: int64 - Height of the containing block, the sort key
//   - transaction_index: uint64 - Position within the block
//   - hash: fixed_bytes[32] - Transaction hash
//   - from: fixed_bytes[20] - Sender address
//   - to: bytes - Recipient address, empty for contract creation
//   - value: uint64 - Transferred amount
//   - input: bytes - Call data
func TransactionSchema() *Schema {
	return MustSchema("block_number",
		Int64Field("block_number"),
		Uint64Field("transaction_index"),
		FixedBytesField("hash", HashSize),
		FixedBytesField("from", AddressSize),
		BytesField("to"),
		Uint64Field("value"),
		BytesField("input"),
	)
}
