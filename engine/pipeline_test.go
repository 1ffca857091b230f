package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VanDung-dev/HieraChain-Parquet/api"
	"github.com/VanDung-dev/HieraChain-Parquet/data"
	"github.com/VanDung-dev/HieraChain-Parquet/source"
)

func newTestPipeline(t *testing.T, schema *data.Schema, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(schema, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestPipelineRun(t *testing.T) {
	p := newTestPipeline(t, data.BlockSchema(), WithBatchSize(300), WithWorkers(4))
	path := filepath.Join(t.TempDir(), "blocks.parquet")

	sum, err := p.Run(context.Background(), source.NewRandomBlocks(1000, 3), path)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Batches)
	assert.Equal(t, 4, sum.RowGroups)
	assert.Equal(t, int64(1000), sum.Rows)

	rdr := openParquet(t, path)
	assert.Equal(t, []string{"number", "nonce", "hash"}, columnNames(rdr))
	assert.Equal(t, []int64{300, 300, 300, 100}, rowGroupSizes(rdr))
	assert.Equal(t, int64(1000), rdr.NumRows())

	var all []int64
	for i := 0; i < rdr.NumRowGroups(); i++ {
		keys := int64Values(t, readRowGroup(t, rdr, i), 0)
		assert.True(t, slices.IsSorted(keys), "row group %d is not sorted", i)
		all = append(all, keys...)

		for j := 0; j < 3; j++ {
			chunk, err := rdr.MetaData().RowGroup(i).ColumnChunk(j)
			require.NoError(t, err)
			assert.Equal(t, compress.Codecs.Snappy, chunk.Compression())
		}
	}

	// every block number appears exactly once across the file
	slices.Sort(all)
	for i, n := range all {
		require.Equal(t, int64(i), n)
	}
}

func TestPipelineScenario(t *testing.T) {
	p := newTestPipeline(t, data.BlockSchema())

	b := data.NewBatch(data.BlockSchema())
	for _, blk := range []data.Block{
		{Number: 5, Hash: []byte("e")},
		{Number: 1, Hash: []byte("a")},
		{Number: 3, Hash: []byte("c")},
	} {
		require.NoError(t, b.Push(blk))
	}

	var buf bytes.Buffer
	_, err := p.Write(context.Background(), []*data.Batch{b}, &buf)
	require.NoError(t, err)

	rdr := parseParquet(t, &buf)
	tbl := readRowGroup(t, rdr, 0)
	assert.Equal(t, []int64{1, 3, 5}, int64Values(t, tbl, 0))
	assert.Equal(t, []string{"a", "c", "e"}, binaryValues(t, tbl, 2))
}

func TestPipelineParallelBatchesKeepOrder(t *testing.T) {
	p := newTestPipeline(t, data.BlockSchema(), WithWorkers(2))

	batches := []*data.Batch{
		blockBatch(t, descending(100)...),
		data.NewBatch(data.BlockSchema()),
	}

	var buf bytes.Buffer
	sum, err := p.Write(context.Background(), batches, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.RowGroups)

	rdr := parseParquet(t, &buf)
	require.Equal(t, []int64{100, 0}, rowGroupSizes(rdr))

	keys := int64Values(t, readRowGroup(t, rdr, 0), 0)
	assert.True(t, slices.IsSorted(keys))
	assert.Equal(t, int64(1), keys[0])
	assert.Equal(t, int64(100), keys[99])
}

func TestPipelineEmptyProducer(t *testing.T) {
	p := newTestPipeline(t, data.BlockSchema())
	path := filepath.Join(t.TempDir(), "empty.parquet")

	sum, err := p.Run(context.Background(), source.NewSlice(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.RowGroups)
	assert.Equal(t, int64(0), sum.Rows)

	rdr := openParquet(t, path)
	assert.Equal(t, []string{"number", "nonce", "hash"}, columnNames(rdr))
	assert.Equal(t, []int64{0}, rowGroupSizes(rdr))
}

func TestPipelineCollectBatchSize(t *testing.T) {
	p := newTestPipeline(t, data.BlockSchema(), WithBatchSize(10))

	batches, err := p.Collect(context.Background(), source.NewZeroBlocks(30))
	require.NoError(t, err)
	require.Len(t, batches, 3)
	for _, b := range batches {
		assert.Equal(t, 10, b.Len())
	}
}

func TestPipelineBatchSizeBoundedByRowGroupLength(t *testing.T) {
	opts := DefaultWriteOptions()
	opts.MaxRowGroupLength = 64

	p := newTestPipeline(t, data.BlockSchema(), WithWriteOptions(opts), WithBatchSize(1000))
	assert.Equal(t, 64, p.BatchSize())

	p = newTestPipeline(t, data.BlockSchema(), WithWriteOptions(opts))
	assert.Equal(t, 64, p.BatchSize())

	_, err := NewPipeline(data.BlockSchema(), WithBatchSize(-1))
	assert.Error(t, err)
}

func TestPipelineInvalidOptionsFailEarly(t *testing.T) {
	opts := DefaultWriteOptions()
	opts.Encodings = map[string]string{"hash": EncodingDeltaBinaryPacked}

	_, err := NewPipeline(data.BlockSchema(), WithWriteOptions(opts))
	assert.ErrorIs(t, err, ErrUnsupportedEncoding)
}

func TestPipelinePartialAbort(t *testing.T) {
	boom := errors.New("connection reset")
	p := newTestPipeline(t, data.BlockSchema(), WithBatchSize(100))
	path := filepath.Join(t.TempDir(), "abort.parquet")

	_, err := p.Run(context.Background(), source.FailAfter(source.NewZeroBlocks(1000), 250, boom), path)
	assert.ErrorIs(t, err, ErrProducer)
	assert.ErrorIs(t, err, boom)

	_, statErr := os.Stat(path)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestPipelinePartialKeep(t *testing.T) {
	boom := errors.New("connection reset")
	p := newTestPipeline(t, data.BlockSchema(), WithBatchSize(100), WithPartialPolicy(PartialKeep))
	path := filepath.Join(t.TempDir(), "keep.parquet")

	sum, err := p.Run(context.Background(), source.FailAfter(source.NewRandomBlocks(1000, 9), 250, boom), path)
	assert.ErrorIs(t, err, ErrProducer)
	assert.Equal(t, int64(250), sum.Rows)

	rdr := openParquet(t, path)
	assert.Equal(t, []int64{100, 100, 50}, rowGroupSizes(rdr))
}

func TestPipelineTypeMismatchAlwaysAborts(t *testing.T) {
	p := newTestPipeline(t, data.BlockSchema(), WithPartialPolicy(PartialKeep))
	path := filepath.Join(t.TempDir(), "mismatch.parquet")

	bad := data.Row{data.Uint64Value(1), data.Uint64Value(2), data.BytesValue(nil)}
	_, err := p.Run(context.Background(), source.NewSlice(data.Block{Number: 1}, bad), path)
	assert.ErrorIs(t, err, data.ErrTypeMismatch)

	_, statErr := os.Stat(path)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestPipelineCancelled(t *testing.T) {
	p := newTestPipeline(t, data.BlockSchema())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Collect(ctx, source.NewZeroBlocks(10))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipelineTransactions(t *testing.T) {
	opts := DefaultWriteOptions()
	opts.Compression = "gzip"
	opts.Encodings = map[string]string{
		"block_number":      EncodingDeltaBinaryPacked,
		"transaction_index": EncodingDeltaBinaryPacked,
		"input":             EncodingDeltaLengthByteArray,
	}
	p := newTestPipeline(t, data.TransactionSchema(), WithWriteOptions(opts), WithBatchSize(256))
	path := filepath.Join(t.TempDir(), "transactions.parquet")

	sum, err := p.Run(context.Background(), source.NewRandomTransactions(1000, 5), path)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), sum.Rows)

	rdr := openParquet(t, path)
	assert.Equal(t, []string{"block_number", "transaction_index", "hash", "from", "to", "value", "input"}, columnNames(rdr))
	assert.Equal(t, []int64{256, 256, 256, 232}, rowGroupSizes(rdr))

	chunk, err := rdr.MetaData().RowGroup(0).ColumnChunk(0)
	require.NoError(t, err)
	assert.Equal(t, compress.Codecs.Gzip, chunk.Compression())
	assert.Contains(t, chunk.Encodings(), parquet.Encodings.DeltaBinaryPacked)

	for i := 0; i < rdr.NumRowGroups(); i++ {
		keys := int64Values(t, readRowGroup(t, rdr, i), 0)
		assert.True(t, slices.IsSorted(keys), "row group %d is not sorted", i)
	}
}

func TestPipelineMetrics(t *testing.T) {
	m := api.NewMetrics("test")
	p := newTestPipeline(t, data.BlockSchema(), WithBatchSize(40), WithMetrics(m))

	var buf bytes.Buffer
	batches, err := p.Collect(context.Background(), source.NewZeroBlocks(100))
	require.NoError(t, err)
	_, err = p.Write(context.Background(), batches, &buf)
	require.NoError(t, err)

	assert.Equal(t, float64(100), testutil.ToFloat64(m.RecordsTotal))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.BatchesTotal))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ConversionsTotal))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.RowGroupsWritten))
	assert.Equal(t, float64(100), testutil.ToFloat64(m.RowsWritten))
}

func TestParsePartialPolicy(t *testing.T) {
	for in, want := range map[string]PartialPolicy{"": PartialAbort, "abort": PartialAbort, "KEEP": PartialKeep} {
		got, err := ParsePartialPolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.NotEqual(t, "unknown", got.String())
	}

	_, err := ParsePartialPolicy("retry")
	assert.Error(t, err)
}
