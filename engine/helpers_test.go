package engine

import (
	"bytes"
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/require"

	"github.com/VanDung-dev/HieraChain-Parquet/data"
)

func openParquet(t *testing.T, path string) *file.Reader {
	t.Helper()
	rdr, err := file.OpenParquetFile(path, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdr.Close() })
	return rdr
}

func parseParquet(t *testing.T, buf *bytes.Buffer) *file.Reader {
	t.Helper()
	rdr, err := file.NewParquetReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdr.Close() })
	return rdr
}

func columnNames(rdr *file.Reader) []string {
	sc := rdr.MetaData().Schema
	names := make([]string, sc.NumColumns())
	for i := range names {
		names[i] = sc.Column(i).Name()
	}
	return names
}

func rowGroupSizes(rdr *file.Reader) []int64 {
	sizes := make([]int64, rdr.NumRowGroups())
	for i := range sizes {
		sizes[i] = rdr.MetaData().RowGroup(i).NumRows()
	}
	return sizes
}

// readRowGroup reads every column of row group i.
func readRowGroup(t *testing.T, rdr *file.Reader, i int) arrow.Table {
	t.Helper()
	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	require.NoError(t, err)

	cols := make([]int, rdr.MetaData().Schema.NumColumns())
	for j := range cols {
		cols[j] = j
	}
	tbl, err := fr.RowGroup(i).ReadTable(context.Background(), cols)
	require.NoError(t, err)
	t.Cleanup(tbl.Release)
	return tbl
}

func int64Values(t *testing.T, tbl arrow.Table, col int) []int64 {
	t.Helper()
	var out []int64
	for _, chunk := range tbl.Column(col).Data().Chunks() {
		arr, ok := chunk.(*array.Int64)
		require.True(t, ok, "column %d is %s", col, chunk.DataType())
		out = append(out, arr.Int64Values()...)
	}
	return out
}

func binaryValues(t *testing.T, tbl arrow.Table, col int) []string {
	t.Helper()
	var out []string
	for _, chunk := range tbl.Column(col).Data().Chunks() {
		arr, ok := chunk.(*array.Binary)
		require.True(t, ok, "column %d is %s", col, chunk.DataType())
		for i := 0; i < arr.Len(); i++ {
			out = append(out, string(arr.Value(i)))
		}
	}
	return out
}

// blockBatch builds a block batch with the given numbers, using the
// arrival position as nonce.
func blockBatch(t *testing.T, numbers ...int64) *data.Batch {
	t.Helper()
	b := data.NewBatch(data.BlockSchema())
	for i, n := range numbers {
		require.NoError(t, b.Push(data.Block{Number: n, Nonce: uint64(i), Hash: []byte{byte(n)}}))
	}
	return b
}

func descending(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(n - i)
	}
	return out
}
