package models

import (
	"fmt"
	"math"
	"sort"
)

// PositionTolerance is the distance in mm under which two through-plane
// positions are treated as the same slice.
const PositionTolerance = 1e-3

// BinaryVolume is one rater's segmentation: a set of binary slices keyed
// by unique through-plane position. Slices are kept sorted by position
// regardless of insertion order.
type BinaryVolume struct {
	// Source identifies the rater. It is carried for presentation only.
	Source string

	slices []*BinarySlice
}

// NewBinaryVolume creates a volume tagged with source holding slices.
func NewBinaryVolume(source string, slices ...*BinarySlice) (*BinaryVolume, error) {
	v := &BinaryVolume{Source: source}
	for _, s := range slices {
		if err := v.AddSlice(s); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// AddSlice inserts s at its position. All slices of a volume share one
// grid shape and no two slices may share a position.
func (v *BinaryVolume) AddSlice(s *BinarySlice) error {
	if s == nil {
		return fmt.Errorf("%w: nil slice", ErrInvalidArgument)
	}
	if len(v.slices) > 0 {
		first := v.slices[0]
		if first.columns != s.columns || first.rows != s.rows {
			return fmt.Errorf("%w: slice at %.3f is %dx%d, volume %q is %dx%d",
				ErrShapeMismatch, s.Position(), s.columns, s.rows, v.Source, first.columns, first.rows)
		}
	}

	pos := s.Position()
	i := sort.Search(len(v.slices), func(i int) bool {
		return v.slices[i].Position() >= pos-PositionTolerance
	})
	if i < len(v.slices) && math.Abs(v.slices[i].Position()-pos) < PositionTolerance {
		return fmt.Errorf("%w: volume %q already has a slice at position %.3f", ErrInvalidArgument, v.Source, pos)
	}

	v.slices = append(v.slices, nil)
	copy(v.slices[i+1:], v.slices[i:])
	v.slices[i] = s
	return nil
}

// Len returns the number of slices.
func (v *BinaryVolume) Len() int { return len(v.slices) }

// Slices returns the slices sorted by ascending position.
func (v *BinaryVolume) Slices() []*BinarySlice {
	out := make([]*BinarySlice, len(v.slices))
	copy(out, v.slices)
	return out
}

// Positions returns the slice positions in ascending order.
func (v *BinaryVolume) Positions() []float64 {
	out := make([]float64, len(v.slices))
	for i, s := range v.slices {
		out[i] = s.Position()
	}
	return out
}

// SliceAt returns the slice at position, if any.
func (v *BinaryVolume) SliceAt(position float64) (*BinarySlice, bool) {
	i := sort.Search(len(v.slices), func(i int) bool {
		return v.slices[i].Position() >= position-PositionTolerance
	})
	if i < len(v.slices) && math.Abs(v.slices[i].Position()-position) < PositionTolerance {
		return v.slices[i], true
	}
	return nil, false
}

// GridShape returns the per-slice columns and rows. ok is false for an
// empty volume.
func (v *BinaryVolume) GridShape() (columns, rows int, ok bool) {
	if len(v.slices) == 0 {
		return 0, 0, false
	}
	return v.slices[0].columns, v.slices[0].rows, true
}

// ToArray materialises the volume as a dense array sorted by position.
func (v *BinaryVolume) ToArray() *LabelArray {
	columns, rows, _ := v.GridShape()
	arr := NewLabelArray(Shape{Slices: len(v.slices), Columns: columns, Rows: rows})
	plane := columns * rows
	for z, s := range v.slices {
		copy(arr.Data[z*plane:(z+1)*plane], s.labels)
	}
	return arr
}
