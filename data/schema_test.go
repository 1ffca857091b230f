package data

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockSchema(t *testing.T) {
	schema := BlockSchema()

	require.Equal(t, 3, schema.NumFields())
	assert.Equal(t, "number", schema.Key().Name)
	assert.Equal(t, 0, schema.KeyIndex())

	expected := []struct {
		name string
		typ  arrow.DataType
	}{
		{"number", arrow.PrimitiveTypes.Int64},
		{"nonce", arrow.PrimitiveTypes.Uint64},
		{"hash", arrow.BinaryTypes.Binary},
	}

	arrowSchema := schema.Arrow()
	for i, e := range expected {
		field := arrowSchema.Field(i)
		assert.Equal(t, e.name, field.Name)
		assert.True(t, arrow.TypeEqual(e.typ, field.Type), "field %s: got %s", e.name, field.Type)
		assert.False(t, field.Nullable, "field %s should be non-nullable", e.name)
	}
}

func TestTransactionSchema(t *testing.T) {
	schema := TransactionSchema()

	require.Equal(t, 7, schema.NumFields())
	assert.Equal(t, "block_number", schema.Key().Name)

	hash, ok := schema.Index("hash")
	require.True(t, ok)
	assert.Equal(t, TypeFixedBytes, schema.Field(hash).Type)
	assert.True(t, arrow.TypeEqual(&arrow.FixedSizeBinaryType{ByteWidth: HashSize}, schema.Arrow().Field(hash).Type))
}

func TestNewSchemaValidation(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		fields []Field
		err    error
	}{
		{"empty", "id", nil, ErrEmptySchema},
		{"duplicate", "id", []Field{Int64Field("id"), Uint64Field("id")}, ErrDuplicateField},
		{"missing key", "id", []Field{Int64Field("number")}, ErrInvalidKey},
		{"bytes key", "hash", []Field{BytesField("hash")}, ErrInvalidKey},
		{"unnamed", "id", []Field{Int64Field("id"), BytesField("")}, ErrInvalidField},
		{"zero width", "id", []Field{Int64Field("id"), FixedBytesField("h", 0)}, ErrInvalidField},
		{"unknown type", "id", []Field{Int64Field("id"), {Name: "x", Type: SemanticType(42)}}, ErrInvalidField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema(tt.key, tt.fields...)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestUint64Key(t *testing.T) {
	schema, err := NewSchema("slot", Uint64Field("slot"), BytesField("payload"))
	require.NoError(t, err)
	assert.Equal(t, TypeUint64, schema.Key().Type)
}

func TestSchemaEqual(t *testing.T) {
	assert.True(t, BlockSchema().Equal(BlockSchema()))
	assert.False(t, BlockSchema().Equal(TransactionSchema()))

	reordered := MustSchema("number", Uint64Field("nonce"), Int64Field("number"), BytesField("hash"))
	assert.False(t, BlockSchema().Equal(reordered))
}

func TestValidateArrowSchema(t *testing.T) {
	require.NoError(t, ValidateArrowSchema(BlockSchema().Arrow(), BlockSchema()))
	assert.Error(t, ValidateArrowSchema(TransactionSchema().Arrow(), BlockSchema()))
	assert.Error(t, ValidateArrowSchema(nil, BlockSchema()))

	swapped := arrow.NewSchema([]arrow.Field{
		{Name: "number", Type: arrow.PrimitiveTypes.Int64},
		{Name: "hash", Type: arrow.BinaryTypes.Binary},
		{Name: "nonce", Type: arrow.PrimitiveTypes.Uint64},
	}, nil)
	assert.Error(t, ValidateArrowSchema(swapped, BlockSchema()))

	retyped := arrow.NewSchema([]arrow.Field{
		{Name: "number", Type: arrow.PrimitiveTypes.Int64},
		{Name: "nonce", Type: arrow.PrimitiveTypes.Int64},
		{Name: "hash", Type: arrow.BinaryTypes.Binary},
	}, nil)
	assert.Error(t, ValidateArrowSchema(retyped, BlockSchema()))
}

// recordingWriter captures the order and types a record emits its fields in.
type recordingWriter struct {
	types []SemanticType
}

func (w *recordingWriter) Int64(int64)   { w.types = append(w.types, TypeInt64) }
func (w *recordingWriter) Uint64(uint64) { w.types = append(w.types, TypeUint64) }
func (w *recordingWriter) Bytes([]byte)  { w.types = append(w.types, TypeBytes) }

func TestRecordFieldOrderMatchesSchema(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		schema *Schema
	}{
		{"block", Block{}, BlockSchema()},
		{"transaction", Transaction{}, TransactionSchema()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &recordingWriter{}
			tt.record.WriteFields(w)

			require.Len(t, w.types, tt.schema.NumFields())
			for i, got := range w.types {
				want := tt.schema.Field(i).Type
				if want == TypeFixedBytes {
					want = TypeBytes
				}
				assert.Equal(t, want, got, "field %d (%s)", i, tt.schema.Field(i).Name)
			}
		})
	}
}
