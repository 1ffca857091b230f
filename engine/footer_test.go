package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VanDung-dev/HieraChain-Parquet/data"
	"github.com/VanDung-dev/HieraChain-Parquet/source"
)

func writeTransactions(t *testing.T, opts WriteOptions, n int) string {
	t.Helper()
	p := newTestPipeline(t, data.TransactionSchema(), WithWriteOptions(opts), WithBatchSize(100))
	path := filepath.Join(t.TempDir(), "transactions.parquet")

	sum, err := p.Run(context.Background(), source.NewRandomTransactions(n, 4), path)
	require.NoError(t, err)
	require.Equal(t, int64(n), sum.Rows)
	return path
}

func TestFileSchemaRoundTrip(t *testing.T) {
	for _, version := range []string{"v1", "v2"} {
		t.Run(version, func(t *testing.T) {
			opts := DefaultWriteOptions()
			opts.Version = version
			path := writeTransactions(t, opts, 250)

			fr, err := pqarrow.NewFileReader(openParquet(t, path), pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
			require.NoError(t, err)

			sc, err := fr.Schema()
			require.NoError(t, err)
			require.NoError(t, data.ValidateArrowSchema(sc, data.TransactionSchema()))
		})
	}
}

func TestFileFooterOptions(t *testing.T) {
	tests := []struct {
		stats   bool
		version string
		want    parquet.Version
	}{
		{true, "v1", parquet.V1_0},
		{false, "v1", parquet.V1_0},
		{true, "v2", parquet.V2_LATEST},
		{false, "v2", parquet.V2_LATEST},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("stats=%t/%s", tt.stats, tt.version), func(t *testing.T) {
			opts := DefaultWriteOptions()
			opts.Statistics = tt.stats
			opts.Version = tt.version
			rdr := openParquet(t, writeTransactions(t, opts, 250))

			md := rdr.MetaData()
			assert.Equal(t, tt.want, md.Version())
			assert.Equal(t, DefaultCreatedBy, md.GetCreatedBy())

			for i := 0; i < rdr.NumRowGroups(); i++ {
				for j := 0; j < md.Schema.NumColumns(); j++ {
					chunk, err := md.RowGroup(i).ColumnChunk(j)
					require.NoError(t, err)
					set, err := chunk.StatsSet()
					require.NoError(t, err)
					assert.Equal(t, tt.stats, set, "row group %d column %d", i, j)
				}
			}
		})
	}
}

func TestFileCreatedBy(t *testing.T) {
	opts := DefaultWriteOptions()
	opts.CreatedBy = "blockwriter test"
	rdr := openParquet(t, writeTransactions(t, opts, 10))

	assert.Equal(t, "blockwriter test", rdr.MetaData().GetCreatedBy())
}

func TestFileDictionaryEncoding(t *testing.T) {
	opts := DefaultWriteOptions()
	opts.Encodings = map[string]string{"to": EncodingDictionary}
	rdr := openParquet(t, writeTransactions(t, opts, 250))

	idx, ok := data.TransactionSchema().Index("to")
	require.True(t, ok)

	dictionary := func(encs []parquet.Encoding) bool {
		return slices.Contains(encs, parquet.Encodings.RLEDict) || slices.Contains(encs, parquet.Encodings.PlainDict)
	}
	for i := 0; i < rdr.NumRowGroups(); i++ {
		chunk, err := rdr.MetaData().RowGroup(i).ColumnChunk(idx)
		require.NoError(t, err)
		assert.True(t, dictionary(chunk.Encodings()), "row group %d: %v", i, chunk.Encodings())
		assert.True(t, chunk.HasDictionaryPage())

		// plain columns carry no dictionary
		plain, err := rdr.MetaData().RowGroup(i).ColumnChunk(0)
		require.NoError(t, err)
		assert.False(t, dictionary(plain.Encodings()), "row group %d: %v", i, plain.Encodings())
	}
}
