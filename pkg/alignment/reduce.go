package alignment

import (
	"fmt"

	"rtstaple/internal/models"
)

// RemoveEmptyIndices drops every in-plane column and every in-plane row
// that is negative for all raters on all slices. The retained labels are
// unchanged and RetainedColumns/RetainedRows record which master indices
// survive, so Restore can map results back. When nothing is positive
// anywhere the alignment is returned as a copy with nothing removed.
func (a *Alignment) RemoveEmptyIndices() *Alignment {
	shape := a.Shape()
	colUsed := make([]bool, shape.Columns)
	rowUsed := make([]bool, shape.Rows)
	for _, arr := range a.Volumes {
		for i, v := range arr.Data {
			if v == 0 {
				continue
			}
			_, c, r := shape.Coords(i)
			colUsed[c] = true
			rowUsed[r] = true
		}
	}

	var keepCols, keepRows []int
	for c, used := range colUsed {
		if used {
			keepCols = append(keepCols, c)
		}
	}
	for r, used := range rowUsed {
		if used {
			keepRows = append(keepRows, r)
		}
	}
	if len(keepCols) == 0 {
		keepCols = sequence(shape.Columns)
		keepRows = sequence(shape.Rows)
	}

	reduced := models.Shape{Slices: shape.Slices, Columns: len(keepCols), Rows: len(keepRows)}
	out := &Alignment{
		Grid:            a.Grid,
		Volumes:         make([]*models.LabelArray, len(a.Volumes)),
		Sources:         append([]string(nil), a.Sources...),
		RetainedColumns: make([]int, len(keepCols)),
		RetainedRows:    make([]int, len(keepRows)),
	}
	for i, c := range keepCols {
		out.RetainedColumns[i] = a.RetainedColumns[c]
	}
	for i, r := range keepRows {
		out.RetainedRows[i] = a.RetainedRows[r]
	}

	for k, arr := range a.Volumes {
		dst := models.NewLabelArray(reduced)
		for z := 0; z < shape.Slices; z++ {
			for nr, r := range keepRows {
				for nc, c := range keepCols {
					dst.Set(z, nc, nr, arr.At(z, c, r))
				}
			}
		}
		out.Volumes[k] = dst
	}
	return out
}

// Restore expands an array shaped like the alignment back onto the full
// master grid. Dropped columns and rows come back as 0.
func (a *Alignment) Restore(arr *models.LabelArray) (*models.LabelArray, error) {
	if arr.Shape != a.Shape() {
		return nil, fmt.Errorf("%w: array %v does not match alignment %v", models.ErrShapeMismatch, arr.Shape, a.Shape())
	}
	full := models.NewLabelArray(a.Grid.Shape())
	for z := 0; z < arr.Shape.Slices; z++ {
		for nr, r := range a.RetainedRows {
			for nc, c := range a.RetainedColumns {
				full.Set(z, c, r, arr.At(z, nc, nr))
			}
		}
	}
	return full, nil
}
