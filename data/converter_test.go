package data

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConverterRoundTrip(t *testing.T) {
	conv := NewConverter(BlockSchema())

	blocks := []Record{
		Block{Number: 9, Nonce: 1, Hash: []byte("nine")},
		Block{Number: 3, Nonce: 2, Hash: nil},
	}

	rec, err := conv.ToArrow(blocks)
	require.NoError(t, err)
	defer rec.Release()

	// arrival order is preserved
	require.EqualValues(t, 2, rec.NumRows())
	assert.Equal(t, []int64{9, 3}, rec.Column(0).(*array.Int64).Int64Values())

	rows, err := conv.FromArrow(rec)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{Int64Value(9), Uint64Value(1), BytesValue([]byte("nine"))}, rows[0])
	assert.Equal(t, int64(3), rows[1][0].Int64)
	assert.Empty(t, rows[1][2].Bytes)
}

func TestConverterTransactions(t *testing.T) {
	conv := NewConverter(TransactionSchema())

	tx := Transaction{BlockNumber: 4, Index: 2, To: []byte("to"), Value: 100, Input: []byte{0xde, 0xad}}
	tx.Hash[31] = 0xff
	tx.From[0] = 0x01

	rec, err := conv.ToArrow([]Record{tx})
	require.NoError(t, err)
	defer rec.Release()

	rows, err := conv.FromArrow(rec)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	b := NewBatch(TransactionSchema())
	require.NoError(t, b.Push(rows[0]))
	assert.Equal(t, tx.Hash[:], b.Column(2).(*FixedBytesColumn).Value(0))
	assert.Equal(t, tx.From[:], b.Column(3).(*FixedBytesColumn).Value(0))
}

func TestConverterRejectsMismatches(t *testing.T) {
	conv := NewConverter(BlockSchema())

	_, err := conv.ToArrow([]Record{Row{Int64Value(1)}})
	assert.ErrorIs(t, err, ErrTypeMismatch)

	txConv := NewConverter(TransactionSchema())
	_, err = txConv.ToArrow([]Record{Row{
		Int64Value(1), Uint64Value(0), BytesValue([]byte("short")),
		BytesValue(make([]byte, AddressSize)), BytesValue(nil), Uint64Value(0), BytesValue(nil),
	}})
	assert.ErrorIs(t, err, ErrWidthMismatch)

	wrong, err := txConv.ToArrow(nil)
	require.NoError(t, err)
	defer wrong.Release()
	_, err = conv.FromArrow(wrong)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = conv.FromArrow(nil)
	assert.Error(t, err)
}

func TestConverterRejectsNulls(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "number", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "nonce", Type: arrow.PrimitiveTypes.Uint64, Nullable: true},
		{Name: "hash", Type: arrow.BinaryTypes.Binary, Nullable: true},
	}, nil)

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()
	builder.Field(0).(*array.Int64Builder).AppendNull()
	builder.Field(1).(*array.Uint64Builder).Append(1)
	builder.Field(2).(*array.BinaryBuilder).Append([]byte("x"))

	rec := builder.NewRecord()
	defer rec.Release()

	_, err := NewConverter(BlockSchema()).FromArrow(rec)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestIPCCodecRoundTrip(t *testing.T) {
	conv := NewConverter(BlockSchema())
	codec := NewIPCCodec()

	payload, err := codec.EncodeRecords(conv, []Record{
		Block{Number: 1, Hash: []byte("a")},
		Block{Number: 2, Hash: []byte("b")},
	})
	require.NoError(t, err)

	rows, err := codec.DecodeRows(conv, payload)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", string(rows[1][2].Bytes))

	_, err = codec.Serialize()
	assert.ErrorIs(t, err, ErrNoRecords)

	_, err = codec.DeserializeAll([]byte("not arrow"))
	assert.Error(t, err)
}
