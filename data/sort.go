package data

import (
	"cmp"
	"fmt"
	"slices"
)

// SortIndices returns the permutation that orders the key column ascending.
// The sort is stable, so equal keys keep their arrival order. Key columns
// are non-nullable, so there is no null placement to decide.
func SortIndices(key Column) ([]uint32, error) {
	switch c := key.(type) {
	case *FixedColumn[int64]:
		return sortIndices(c.values), nil
	case *FixedColumn[uint64]:
		return sortIndices(c.values), nil
	default:
		return nil, fmt.Errorf("%w: cannot sort %s column", ErrInvalidKey, key.Type())
	}
}

// IsSorted reports whether the key column is already in ascending order.
func IsSorted(key Column) bool {
	switch c := key.(type) {
	case *FixedColumn[int64]:
		return slices.IsSorted(c.values)
	case *FixedColumn[uint64]:
		return slices.IsSorted(c.values)
	default:
		return false
	}
}

func sortIndices[T cmp.Ordered](keys []T) []uint32 {
	indices := make([]uint32, len(keys))
	for i := range indices {
		indices[i] = uint32(i) // #nosec G115 - batch length capped at MaxBatchRows
	}
	slices.SortStableFunc(indices, func(a, b uint32) int {
		return cmp.Compare(keys[a], keys[b])
	})
	return indices
}
