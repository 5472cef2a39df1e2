// Package selection provides a sparse representation of the positive
// pixels of one slice: a list of flat row-major indices plus the column
// count of the grid they index. Shifts and crops work on the indices
// directly without materialising the grid.
package selection

import (
	"fmt"

	"rtstaple/internal/models"
)

// Selection is a set of flat indices into a grid with a fixed number of
// columns. Encoding is row-major: index = row*columns + col.
type Selection struct {
	indices []int
	columns int
}

// New validates indices and returns a selection over a grid with the given
// column count. The input slice is copied.
func New(indices []int, columns int) (*Selection, error) {
	if columns <= 0 {
		return nil, fmt.Errorf("%w: column count must be positive, got %d", models.ErrInvalidIndices, columns)
	}
	for i, idx := range indices {
		if idx < 0 {
			return nil, fmt.Errorf("%w: entry %d is negative (%d)", models.ErrInvalidIndices, i, idx)
		}
	}
	out := make([]int, len(indices))
	copy(out, indices)
	return &Selection{indices: out, columns: columns}, nil
}

// FromMask builds a selection from a row-major binary mask.
func FromMask(mask []uint8, columns int) (*Selection, error) {
	if columns <= 0 || len(mask)%columns != 0 {
		return nil, fmt.Errorf("%w: mask of %d labels does not fit %d columns", models.ErrInvalidIndices, len(mask), columns)
	}
	var idx []int
	for i, v := range mask {
		if v != 0 {
			idx = append(idx, i)
		}
	}
	return &Selection{indices: idx, columns: columns}, nil
}

// FromSlice returns the positive pixels of s.
func FromSlice(s *models.BinarySlice) *Selection {
	return &Selection{indices: s.PositiveIndices(), columns: s.Columns()}
}

// Columns returns the column count used for decoding.
func (s *Selection) Columns() int { return s.columns }

// Len returns the number of selected indices.
func (s *Selection) Len() int { return len(s.indices) }

// Indices returns a copy of the flat indices.
func (s *Selection) Indices() []int {
	out := make([]int, len(s.indices))
	copy(out, s.indices)
	return out
}

// Decode returns the column and row of every index, in index order.
func (s *Selection) Decode() (cols, rows []int) {
	cols = make([]int, len(s.indices))
	rows = make([]int, len(s.indices))
	for i, idx := range s.indices {
		cols[i] = idx % s.columns
		rows[i] = idx / s.columns
	}
	return cols, rows
}

// Shift moves every index by (dc, dr) without cropping. The caller must
// guarantee that every shifted pixel stays inside the grid: a column that
// leaves [0, columns) wraps into a neighbouring row.
func (s *Selection) Shift(dc, dr int) *Selection {
	out := make([]int, len(s.indices))
	for i, idx := range s.indices {
		col := idx%s.columns + dc
		row := idx/s.columns + dr
		out[i] = row*s.columns + col
	}
	return &Selection{indices: out, columns: s.columns}
}

// ShiftWithin moves every index by (dc, dr) and drops pixels that land
// outside [0, columns) x [0, rows).
func (s *Selection) ShiftWithin(dc, dr, rows int) *Selection {
	out := make([]int, 0, len(s.indices))
	for _, idx := range s.indices {
		col := idx%s.columns + dc
		row := idx/s.columns + dr
		if col < 0 || col >= s.columns || row < 0 || row >= rows {
			continue
		}
		out = append(out, row*s.columns+col)
	}
	return &Selection{indices: out, columns: s.columns}
}

// ShiftColumns is Shift(dc, 0).
func (s *Selection) ShiftColumns(dc int) *Selection { return s.Shift(dc, 0) }

// ShiftRows is Shift(0, dr).
func (s *Selection) ShiftRows(dr int) *Selection { return s.Shift(0, dr) }

// Reframe re-encodes the selection into a grid with a different column
// count, keeping every (col, row). It fails when a column does not fit.
func (s *Selection) Reframe(columns int) (*Selection, error) {
	if columns <= 0 {
		return nil, fmt.Errorf("%w: column count must be positive, got %d", models.ErrInvalidIndices, columns)
	}
	out := make([]int, len(s.indices))
	for i, idx := range s.indices {
		col := idx % s.columns
		if col >= columns {
			return nil, fmt.Errorf("%w: column %d does not fit in %d columns", models.ErrInvalidIndices, col, columns)
		}
		out[i] = (idx/s.columns)*columns + col
	}
	return &Selection{indices: out, columns: columns}, nil
}

// Mask materialises the selection as a row-major grid with the given row
// count. Indices beyond the grid are ignored.
func (s *Selection) Mask(rows int) []uint8 {
	mask := make([]uint8, s.columns*rows)
	for _, idx := range s.indices {
		if idx < len(mask) {
			mask[idx] = 1
		}
	}
	return mask
}
