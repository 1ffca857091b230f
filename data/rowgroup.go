package data

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// RowGroup is an immutable set of same-length Arrow arrays, one per schema
// field, sorted by the schema key. Row groups share no state with each
// other.
type RowGroup struct {
	schema  *Schema
	columns []arrow.Array
	rows    int
}

func newRowGroup(schema *Schema, columns []arrow.Array, rows int) *RowGroup {
	return &RowGroup{schema: schema, columns: columns, rows: rows}
}

// Schema returns the row group's schema.
func (g *RowGroup) Schema() *Schema { return g.schema }

// NumRows returns the number of rows in every column.
func (g *RowGroup) NumRows() int { return g.rows }

// NumCols returns the number of columns.
func (g *RowGroup) NumCols() int { return len(g.columns) }

// Column returns the i-th column array.
func (g *RowGroup) Column(i int) arrow.Array { return g.columns[i] }

// Key returns the sort key column.
func (g *RowGroup) Key() arrow.Array { return g.columns[g.schema.KeyIndex()] }

// Record returns an Arrow record over the row group's arrays. The caller
// must release it; the row group keeps its own references.
func (g *RowGroup) Record() arrow.Record {
	return array.NewRecord(g.schema.Arrow(), g.columns, int64(g.rows))
}

// Release drops the row group's references to its arrays.
func (g *RowGroup) Release() {
	releaseArrays(g.columns)
	g.columns = nil
}

func releaseArrays(arrays []arrow.Array) {
	for _, a := range arrays {
		if a != nil {
			a.Release()
		}
	}
}
