// Package models holds the value types exchanged between the aligner and
// the consensus estimator: binary slices, binary volumes and the dense
// label arrays built from them.
package models

import (
	"fmt"
	"math"
)

// Geometry places one slice in patient space.
type Geometry struct {
	// Position is the through-plane coordinate of the slice in mm
	Position float64

	// Origin is the patient coordinate of the centre of pixel (0,0) in mm
	Origin [3]float64

	// Spacing is {between rows, between columns} in mm, DICOM PixelSpacing order
	Spacing [2]float64

	// Orientation holds the row direction cosines followed by the column
	// direction cosines, DICOM ImageOrientationPatient order
	Orientation [6]float64
}

// AxialGeometry returns the geometry of an axial slice at the given
// position with unit spacing and its origin at (0, 0, position).
func AxialGeometry(position float64) Geometry {
	return Geometry{
		Position:    position,
		Origin:      [3]float64{0, 0, position},
		Spacing:     [2]float64{1, 1},
		Orientation: [6]float64{1, 0, 0, 0, 1, 0},
	}
}

// RowDirection is the unit vector along which the column index grows.
func (g Geometry) RowDirection() [3]float64 {
	return [3]float64{g.Orientation[0], g.Orientation[1], g.Orientation[2]}
}

// ColumnDirection is the unit vector along which the row index grows.
func (g Geometry) ColumnDirection() [3]float64 {
	return [3]float64{g.Orientation[3], g.Orientation[4], g.Orientation[5]}
}

// Validate checks that spacing is positive and both direction cosines
// are unit length.
func (g Geometry) Validate() error {
	if g.Spacing[0] <= 0 || g.Spacing[1] <= 0 {
		return fmt.Errorf("%w: pixel spacing must be positive, got %v", ErrGeometryMismatch, g.Spacing)
	}
	for _, dir := range [][3]float64{g.RowDirection(), g.ColumnDirection()} {
		norm := math.Sqrt(dir[0]*dir[0] + dir[1]*dir[1] + dir[2]*dir[2])
		if math.Abs(norm-1) > 1e-3 {
			return fmt.Errorf("%w: orientation cosines %v are not unit vectors", ErrGeometryMismatch, g.Orientation)
		}
	}
	return nil
}

// BinarySlice is one rater's 2D segmentation of a single plane.
// Labels are stored row-major: index = row*columns + col.
type BinarySlice struct {
	columns  int
	rows     int
	labels   []uint8
	geometry Geometry
}

// NewBinarySlice copies labels into a new slice. Every label must be 0 or 1
// and there must be exactly columns*rows of them.
func NewBinarySlice(columns, rows int, labels []uint8, geometry Geometry) (*BinarySlice, error) {
	if columns <= 0 || rows <= 0 {
		return nil, fmt.Errorf("%w: slice dimensions must be positive, got %dx%d", ErrInvalidArgument, columns, rows)
	}
	if len(labels) != columns*rows {
		return nil, fmt.Errorf("%w: expected %d labels for a %dx%d slice, got %d",
			ErrShapeMismatch, columns*rows, columns, rows, len(labels))
	}
	for i, v := range labels {
		if v > 1 {
			return nil, fmt.Errorf("%w: label %d at index %d is not binary", ErrInvalidArgument, v, i)
		}
	}
	if err := geometry.Validate(); err != nil {
		return nil, err
	}

	data := make([]uint8, len(labels))
	copy(data, labels)

	return &BinarySlice{
		columns:  columns,
		rows:     rows,
		labels:   data,
		geometry: geometry,
	}, nil
}

// Columns returns the number of columns in the grid.
func (s *BinarySlice) Columns() int { return s.columns }

// Rows returns the number of rows in the grid.
func (s *BinarySlice) Rows() int { return s.rows }

// Geometry returns the slice placement.
func (s *BinarySlice) Geometry() Geometry { return s.geometry }

// Position returns the through-plane coordinate.
func (s *BinarySlice) Position() float64 { return s.geometry.Position }

// At returns the label at (col, row).
func (s *BinarySlice) At(col, row int) uint8 {
	return s.labels[row*s.columns+col]
}

// Labels returns a copy of the row-major label grid.
func (s *BinarySlice) Labels() []uint8 {
	out := make([]uint8, len(s.labels))
	copy(out, s.labels)
	return out
}

// PositiveIndices returns the flat row-major indices of all positive labels.
func (s *BinarySlice) PositiveIndices() []int {
	var idx []int
	for i, v := range s.labels {
		if v == 1 {
			idx = append(idx, i)
		}
	}
	return idx
}

// Count returns the number of positive labels.
func (s *BinarySlice) Count() int {
	n := 0
	for _, v := range s.labels {
		n += int(v)
	}
	return n
}
