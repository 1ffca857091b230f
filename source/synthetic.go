// Package source provides in-process record producers.
package source

import (
	"context"
	"encoding/binary"
	"io"
	"math/rand/v2"

	"github.com/zeebo/xxh3"

	"github.com/VanDung-dev/HieraChain-Parquet/data"
)

// Synthetic yields a fixed number of generated records.
type Synthetic struct {
	n   int
	i   int
	gen func(i int) data.Record
}

// Next returns the next record, or io.EOF after the last one.
func (s *Synthetic) Next(ctx context.Context) (data.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.i >= s.n {
		return nil, io.EOF
	}
	rec := s.gen(s.i)
	s.i++
	return rec, nil
}

// Len returns the total number of records.
func (s *Synthetic) Len() int { return s.n }

// Remaining returns the number of records not yet yielded.
func (s *Synthetic) Remaining() int { return s.n - s.i }

// NewZeroBlocks yields n zero-valued blocks.
func NewZeroBlocks(n int) *Synthetic {
	return &Synthetic{
		n:   n,
		gen: func(int) data.Record { return data.Block{} },
	}
}

// NewRandomBlocks yields blocks 0..n-1 in shuffled order with random nonces
// and hashes derived from the block number. The sequence is fixed by seed.
func NewRandomBlocks(n int, seed uint64) *Synthetic {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	numbers := rng.Perm(n)

	return &Synthetic{
		n: n,
		gen: func(i int) data.Record {
			number := int64(numbers[i])
			hash := make([]byte, data.HashSize)
			digest(hash, seed, uint64(number))
			return data.Block{
				Number: number,
				Nonce:  rng.Uint64(),
				Hash:   hash,
			}
		},
	}
}

// NewRandomTransactions yields n transactions spread over roughly n/4
// blocks, in random block order. Every tenth transaction has no recipient.
func NewRandomTransactions(n int, seed uint64) *Synthetic {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	blocks := int64(n/4 + 1)

	return &Synthetic{
		n: n,
		gen: func(i int) data.Record {
			tx := data.Transaction{
				BlockNumber: rng.Int64N(blocks),
				Index:       uint64(i),
				Value:       rng.Uint64(),
			}
			digest(tx.Hash[:], seed, uint64(i), 0)
			digest(tx.From[:], seed, uint64(i), 1)
			if i%10 != 0 {
				tx.To = make([]byte, data.AddressSize)
				digest(tx.To, seed, uint64(i), 2)
			}
			if l := rng.IntN(65); l > 0 {
				tx.Input = make([]byte, l)
				digest(tx.Input, seed, uint64(i), 3)
			}
			return tx
		},
	}
}

// digest fills dst with xxh3 output over parts.
func digest(dst []byte, seed uint64, parts ...uint64) {
	buf := make([]byte, 8*(len(parts)+1))
	for i, p := range parts {
		binary.LittleEndian.PutUint64(buf[8*i:], p)
	}
	last := len(buf) - 8
	for off, round := 0, uint64(0); off < len(dst); round++ {
		binary.LittleEndian.PutUint64(buf[last:], round)
		sum := xxh3.Hash128Seed(buf, seed).Bytes()
		off += copy(dst[off:], sum[:])
	}
}
