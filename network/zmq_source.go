package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/go-zeromq/zmq4"

	"github.com/VanDung-dev/HieraChain-Parquet/data"
)

// Common errors for network operations
var (
	ErrSourceNotRunning = errors.New("source is not running")
	ErrSourceRunning    = errors.New("source already running")
	ErrSendFailed       = errors.New("failed to send message")
)

// Endpoint names a ZeroMQ address and whether this side binds it.
type Endpoint struct {
	Address string `yaml:"address"`
	Listen  bool   `yaml:"listen"`
}

func (e Endpoint) connect(s zmq4.Socket) error {
	if e.Listen {
		if err := s.Listen(e.Address); err != nil {
			return fmt.Errorf("failed to bind %s: %w", e.Address, err)
		}
		return nil
	}
	if err := s.Dial(e.Address); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", e.Address, err)
	}
	return nil
}

// delivery is one decoded message, or the end of the stream. A fatal
// error means the receiver has exited.
type delivery struct {
	rows  []data.Row
	err   error
	fatal bool
	end   bool
}

// SourceStats contains receive statistics.
type SourceStats struct {
	Messages int64 `json:"messages"`
	Rows     int64 `json:"rows"`
	Errors   int64 `json:"errors"`
}

// ZmqSource is a record producer fed by a ZeroMQ PULL socket. Each message
// is an Arrow IPC stream whose schema must match the source schema; an
// empty message ends the stream.
type ZmqSource struct {
	endpoint Endpoint
	codec    *data.IPCCodec
	conv     *data.Converter

	ctx    context.Context
	cancel context.CancelFunc

	pull       zmq4.Socket
	deliveries chan delivery

	// consumer state, owned by Next
	pending []data.Row
	done    bool
	failed  error

	messages int64
	rows     int64
	failures int64

	running bool
	mu      sync.Mutex
	wg      sync.WaitGroup
}

// NewZmqSource creates a source for schema on the given endpoint.
func NewZmqSource(schema *data.Schema, endpoint Endpoint) *ZmqSource {
	ctx, cancel := context.WithCancel(context.Background())

	return &ZmqSource{
		endpoint:   endpoint,
		codec:      data.NewIPCCodec(),
		conv:       data.NewConverter(schema),
		ctx:        ctx,
		cancel:     cancel,
		deliveries: make(chan delivery, 16),
	}
}

// Start opens the PULL socket and begins receiving.
func (s *ZmqSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSourceRunning
	}

	s.pull = zmq4.NewPull(s.ctx)
	if err := s.endpoint.connect(s.pull); err != nil {
		_ = s.pull.Close()
		return err
	}
	s.running = true

	s.wg.Add(1)
	go s.receiverLoop()

	return nil
}

// Stop closes the socket and waits for the receiver to exit.
func (s *ZmqSource) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	// best effort during shutdown
	_ = s.pull.Close()
	s.wg.Wait()
}

// Addr returns the bound address of a listening source.
func (s *ZmqSource) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pull == nil || s.pull.Addr() == nil {
		return s.endpoint.Address
	}
	return s.pull.Addr().String()
}

// Next returns the next received row. It blocks until a message arrives,
// and returns io.EOF once the end-of-stream message has been consumed.
// After the receiver fails, every call returns the receive error.
func (s *ZmqSource) Next(ctx context.Context) (data.Record, error) {
	for len(s.pending) == 0 {
		if s.failed != nil {
			return nil, s.failed
		}
		if s.done {
			return nil, io.EOF
		}

		s.mu.Lock()
		running := s.running
		s.mu.Unlock()
		if !running {
			return nil, ErrSourceNotRunning
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case d := <-s.deliveries:
			if d.fatal {
				s.failed = d.err
			}
			if d.err != nil {
				return nil, d.err
			}
			if d.end {
				s.done = true
				continue
			}
			s.pending = d.rows
		}
	}

	row := s.pending[0]
	s.pending = s.pending[1:]
	return row, nil
}

// GetStats returns receive statistics.
func (s *ZmqSource) GetStats() SourceStats {
	return SourceStats{
		Messages: atomic.LoadInt64(&s.messages),
		Rows:     atomic.LoadInt64(&s.rows),
		Errors:   atomic.LoadInt64(&s.failures),
	}
}

// receiverLoop receives and decodes messages until the end of the stream
// or shutdown.
func (s *ZmqSource) receiverLoop() {
	defer s.wg.Done()

	for {
		msg, err := s.pull.Recv()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			atomic.AddInt64(&s.failures, 1)
			s.deliver(delivery{err: fmt.Errorf("receive from %s: %w", s.endpoint.Address, err), fatal: true})
			return
		}

		payload := msg.Bytes()
		if len(payload) == 0 {
			s.deliver(delivery{end: true})
			return
		}

		n := atomic.AddInt64(&s.messages, 1)
		rows, err := s.codec.DecodeRows(s.conv, payload)
		if err != nil {
			atomic.AddInt64(&s.failures, 1)
			s.deliver(delivery{err: fmt.Errorf("message %d: %w", n, err)})
			continue
		}
		atomic.AddInt64(&s.rows, int64(len(rows)))
		if len(rows) == 0 {
			continue
		}
		if !s.deliver(delivery{rows: rows}) {
			return
		}
	}
}

func (s *ZmqSource) deliver(d delivery) bool {
	select {
	case s.deliveries <- d:
		return true
	case <-s.ctx.Done():
		return false
	}
}
