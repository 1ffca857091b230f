package data

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ErrNoRecords is returned when there is nothing to serialize.
var ErrNoRecords = errors.New("no records")

// IPCCodec serializes Arrow records to and from the Arrow IPC stream format.
// Network producers ship record batches in this format.
type IPCCodec struct {
	allocator memory.Allocator
}

// NewIPCCodec creates a new IPCCodec.
func NewIPCCodec() *IPCCodec {
	return &IPCCodec{
		allocator: memory.DefaultAllocator,
	}
}

// Serialize writes records sharing one schema as a single IPC stream.
func (c *IPCCodec) Serialize(records ...arrow.Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(records[0].Schema()), ipc.WithAllocator(c.allocator))
	defer writer.Close()

	for i, record := range records {
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	return buf.Bytes(), nil
}

// DeserializeAll reads every record of an IPC stream. The caller must
// release the returned records.
func (c *IPCCodec) DeserializeAll(data []byte) ([]arrow.Record, error) {
	reader, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(c.allocator))
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}
	defer reader.Release()

	var records []arrow.Record
	for reader.Next() {
		record := reader.Record()
		record.Retain()
		records = append(records, record)
	}

	if reader.Err() != nil {
		for _, r := range records {
			r.Release()
		}
		return nil, reader.Err()
	}

	return records, nil
}

// EncodeRecords converts records to one Arrow batch and serializes it.
func (c *IPCCodec) EncodeRecords(conv *Converter, records []Record) ([]byte, error) {
	rec, err := conv.ToArrow(records)
	if err != nil {
		return nil, err
	}
	defer rec.Release()

	return c.Serialize(rec)
}

// DecodeRows deserializes an IPC stream and converts all of its rows.
func (c *IPCCodec) DecodeRows(conv *Converter, data []byte) ([]Row, error) {
	records, err := c.DeserializeAll(data)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, r := range records {
			r.Release()
		}
	}()

	var rows []Row
	for _, rec := range records {
		batch, err := conv.FromArrow(rec)
		if err != nil {
			return nil, err
		}
		rows = append(rows, batch...)
	}
	return rows, nil
}
