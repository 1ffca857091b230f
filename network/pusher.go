package network

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-zeromq/zmq4"

	"github.com/VanDung-dev/HieraChain-Parquet/data"
)

// Pusher sends records to a ZmqSource over a PUSH socket.
type Pusher struct {
	push  zmq4.Socket
	codec *data.IPCCodec
	conv  *data.Converter
	sent  int
}

// NewPusher opens a PUSH socket for schema on the given endpoint.
func NewPusher(ctx context.Context, schema *data.Schema, endpoint Endpoint) (*Pusher, error) {
	push := zmq4.NewPush(ctx)
	if err := endpoint.connect(push); err != nil {
		_ = push.Close()
		return nil, err
	}

	return &Pusher{
		push:  push,
		codec: data.NewIPCCodec(),
		conv:  data.NewConverter(schema),
	}, nil
}

// Send encodes records as one Arrow IPC message and sends it.
func (p *Pusher) Send(records []data.Record) error {
	if len(records) == 0 {
		return nil
	}

	payload, err := p.codec.EncodeRecords(p.conv, records)
	if err != nil {
		return err
	}
	if err := p.push.Send(zmq4.NewMsg(payload)); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	p.sent += len(records)
	return nil
}

// SendAll drains the producer, sending batchSize records per message, and
// returns the number of records sent. It does not end the stream.
func (p *Pusher) SendAll(ctx context.Context, producer data.Producer, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 1
	}

	start := p.sent
	batch := make([]data.Record, 0, batchSize)
	for {
		rec, err := producer.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return p.sent - start, err
		}

		batch = append(batch, rec)
		if len(batch) == batchSize {
			if err := p.Send(batch); err != nil {
				return p.sent - start, err
			}
			batch = batch[:0]
		}
	}

	if err := p.Send(batch); err != nil {
		return p.sent - start, err
	}
	return p.sent - start, nil
}

// End sends the end-of-stream message.
func (p *Pusher) End() error {
	if err := p.push.Send(zmq4.NewMsg([]byte{})); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// Sent returns the number of records sent.
func (p *Pusher) Sent() int { return p.sent }

// Close closes the socket.
func (p *Pusher) Close() error {
	return p.push.Close()
}
