package data

import (
	"context"
	"fmt"
)

// Byte widths of fixed-size transaction fields.
const (
	HashSize    = 32
	AddressSize = 20
)

// FieldWriter receives the fields of one record in schema order.
type FieldWriter interface {
	Int64(v int64)
	Uint64(v uint64)
	Bytes(v []byte)
}

// Record is a single row that can emit its fields in schema order.
// A record is consumed by Batch.Push and not retained afterwards; byte
// values are copied into the batch.
type Record interface {
	WriteFields(w FieldWriter)
}

// Producer yields records until it returns io.EOF.
type Producer interface {
	Next(ctx context.Context) (Record, error)
}

// Block is one row of BlockSchema.
type Block struct {
	Number int64  `json:"number"`
	Nonce  uint64 `json:"nonce"`
	Hash   []byte `json:"hash,omitempty"`
}

// WriteFields emits number, nonce, hash.
func (b Block) WriteFields(w FieldWriter) {
	w.Int64(b.Number)
	w.Uint64(b.Nonce)
	w.Bytes(b.Hash)
}

// Transaction is one row of TransactionSchema.
type Transaction struct {
	BlockNumber int64             `json:"block_number"`
	Index       uint64            `json:"transaction_index"`
	Hash        [HashSize]byte    `json:"hash"`
	From        [AddressSize]byte `json:"from"`
	To          []byte            `json:"to,omitempty"`
	Value       uint64            `json:"value"`
	Input       []byte            `json:"input,omitempty"`
}

// WriteFields emits the transaction fields in TransactionSchema order.
func (t Transaction) WriteFields(w FieldWriter) {
	w.Int64(t.BlockNumber)
	w.Uint64(t.Index)
	w.Bytes(t.Hash[:])
	w.Bytes(t.From[:])
	w.Bytes(t.To)
	w.Uint64(t.Value)
	w.Bytes(t.Input)
}

// Value is one field of a Row. Exactly one of the value fields is
// meaningful, selected by Type; TypeFixedBytes values live in Bytes.
type Value struct {
	Type   SemanticType
	Int64  int64
	Uint64 uint64
	Bytes  []byte
}

// Int64Value wraps a signed integer.
func Int64Value(v int64) Value { return Value{Type: TypeInt64, Int64: v} }

// Uint64Value wraps an unsigned integer.
func Uint64Value(v uint64) Value { return Value{Type: TypeUint64, Uint64: v} }

// BytesValue wraps a byte string.
func BytesValue(v []byte) Value { return Value{Type: TypeBytes, Bytes: v} }

func (v Value) String() string {
	switch v.Type {
	case TypeInt64:
		return fmt.Sprint(v.Int64)
	case TypeUint64:
		return fmt.Sprint(v.Uint64)
	default:
		return fmt.Sprintf("%x", v.Bytes)
	}
}

// Row is a schema-agnostic record holding its values in schema order.
type Row []Value

// WriteFields emits each value through the writer method matching its type.
func (r Row) WriteFields(w FieldWriter) {
	for _, v := range r {
		switch v.Type {
		case TypeInt64:
			w.Int64(v.Int64)
		case TypeUint64:
			w.Uint64(v.Uint64)
		default:
			w.Bytes(v.Bytes)
		}
	}
}
