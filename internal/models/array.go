package models

import "fmt"

// Shape is the extent of a dense volume.
type Shape struct {
	Slices, Columns, Rows int
}

// Plane returns the number of voxels in one slice.
func (s Shape) Plane() int { return s.Columns * s.Rows }

// Len returns the total number of voxels.
func (s Shape) Len() int { return s.Slices * s.Columns * s.Rows }

// Index encodes (slice, col, row). Within a slice the layout is row-major,
// matching BinarySlice and selection.Selection.
func (s Shape) Index(slice, col, row int) int {
	return slice*s.Columns*s.Rows + row*s.Columns + col
}

// Coords decodes a flat index produced by Index.
func (s Shape) Coords(i int) (slice, col, row int) {
	plane := s.Plane()
	slice = i / plane
	rem := i % plane
	return slice, rem % s.Columns, rem / s.Columns
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d slices, %d columns, %d rows)", s.Slices, s.Columns, s.Rows)
}

// LabelArray is a dense binary volume laid out as (slices, columns, rows).
type LabelArray struct {
	Shape Shape
	Data  []uint8
}

// NewLabelArray allocates an all-zero array.
func NewLabelArray(shape Shape) *LabelArray {
	return &LabelArray{Shape: shape, Data: make([]uint8, shape.Len())}
}

// At returns the label at (slice, col, row).
func (a *LabelArray) At(slice, col, row int) uint8 {
	return a.Data[a.Shape.Index(slice, col, row)]
}

// Set stores v at (slice, col, row).
func (a *LabelArray) Set(slice, col, row int, v uint8) {
	a.Data[a.Shape.Index(slice, col, row)] = v
}

// Plane returns the row-major labels of one slice. The result aliases the
// array.
func (a *LabelArray) Plane(slice int) []uint8 {
	n := a.Shape.Plane()
	return a.Data[slice*n : (slice+1)*n]
}

// Count returns the number of positive voxels.
func (a *LabelArray) Count() int {
	n := 0
	for _, v := range a.Data {
		n += int(v)
	}
	return n
}

// Clone returns a deep copy.
func (a *LabelArray) Clone() *LabelArray {
	out := &LabelArray{Shape: a.Shape, Data: make([]uint8, len(a.Data))}
	copy(out.Data, a.Data)
	return out
}

// Floats returns the labels as float64 values, the form the viewer takes.
func (a *LabelArray) Floats() []float64 {
	out := make([]float64, len(a.Data))
	for i, v := range a.Data {
		out[i] = float64(v)
	}
	return out
}

// ProbabilityArray holds per-voxel probabilities in the LabelArray layout.
type ProbabilityArray struct {
	Shape Shape
	Data  []float64
}

// At returns the probability at (slice, col, row).
func (a *ProbabilityArray) At(slice, col, row int) float64 {
	return a.Data[a.Shape.Index(slice, col, row)]
}

// Threshold labels every voxel with probability >= level as positive.
func (a *ProbabilityArray) Threshold(level float64) *LabelArray {
	out := NewLabelArray(a.Shape)
	for i, w := range a.Data {
		if w >= level {
			out.Data[i] = 1
		}
	}
	return out
}
