// Package alignment maps independently positioned binary volumes onto one
// master grid so that the same voxel index means the same place in
// patient space for every rater.
package alignment

import (
	"fmt"
	"math"

	"rtstaple/internal/models"
	"rtstaple/pkg/selection"
)

const (
	defaultOffsetTolerance = 0.01
	geometryTolerance      = 1e-4
)

// Options tunes the geometric tolerances of Align.
type Options struct {
	// PositionTolerance is the distance in mm under which two slice
	// positions are merged. Zero means models.PositionTolerance.
	PositionTolerance float64

	// OffsetTolerance is how far, in pixels, an in-plane offset may sit
	// from a whole pixel. Zero means 0.01.
	OffsetTolerance float64
}

func (o Options) withDefaults() Options {
	if o.PositionTolerance <= 0 {
		o.PositionTolerance = models.PositionTolerance
	}
	if o.OffsetTolerance <= 0 {
		o.OffsetTolerance = defaultOffsetTolerance
	}
	return o
}

// Alignment is the result of Align: the master grid and one dense array
// per rater, all with the same shape.
type Alignment struct {
	Grid *Grid

	// Volumes holds one array per input volume, in input order.
	Volumes []*models.LabelArray

	// Sources are the rater tags of the input volumes.
	Sources []string

	// RetainedColumns and RetainedRows list the master columns and rows
	// present in Volumes. They cover the whole grid until
	// RemoveEmptyIndices drops some.
	RetainedColumns []int
	RetainedRows    []int
}

// Shape returns the common shape of the aligned arrays.
func (a *Alignment) Shape() models.Shape {
	return models.Shape{
		Slices:  len(a.Grid.Positions),
		Columns: len(a.RetainedColumns),
		Rows:    len(a.RetainedRows),
	}
}

// placement is the pixel offset of one input slice in the reference frame.
type placement struct {
	dc, dr int
}

// Align places every volume on a shared master grid. The grid spans the
// ascending union of all slice positions and the union of all in-plane
// extents. A voxel a rater did not supply is labelled 0. Inputs are not
// modified.
func Align(volumes []*models.BinaryVolume, opts Options) (*Alignment, error) {
	opts = opts.withDefaults()

	if len(volumes) == 0 {
		return nil, fmt.Errorf("%w: no volumes to align", models.ErrInvalidArgument)
	}
	for i, v := range volumes {
		if v == nil || v.Len() == 0 {
			return nil, fmt.Errorf("%w: volume %d is empty", models.ErrInvalidArgument, i)
		}
	}

	columns, rows, _ := volumes[0].GridShape()
	for i, v := range volumes[1:] {
		c, r, _ := v.GridShape()
		if c != columns || r != rows {
			return nil, fmt.Errorf("%w: volume %d (%q) has %dx%d slices, volume 0 has %dx%d",
				models.ErrShapeMismatch, i+1, v.Source, c, r, columns, rows)
		}
	}

	ref := volumes[0].Slices()[0].Geometry()
	places := make([][]placement, len(volumes))
	minDc, minDr := math.MaxInt, math.MaxInt
	maxDc, maxDr := math.MinInt, math.MinInt
	for i, v := range volumes {
		for _, s := range v.Slices() {
			p, err := resolveOffset(ref, s.Geometry(), opts.OffsetTolerance)
			if err != nil {
				return nil, fmt.Errorf("volume %d (%q) slice at %.3f: %w", i, v.Source, s.Position(), err)
			}
			places[i] = append(places[i], p)
			minDc, maxDc = min(minDc, p.dc), max(maxDc, p.dc)
			minDr, maxDr = min(minDr, p.dr), max(maxDr, p.dr)
		}
	}

	grid := newGrid(unionPositions(volumes, opts.PositionTolerance), opts.PositionTolerance)
	grid.Columns = maxDc - minDc + columns
	grid.Rows = maxDr - minDr + rows
	grid.Spacing = ref.Spacing
	grid.Orientation = ref.Orientation
	rowDir, colDir := ref.RowDirection(), ref.ColumnDirection()
	for k := 0; k < 3; k++ {
		grid.Origin[k] = ref.Origin[k] +
			float64(minDc)*ref.Spacing[1]*rowDir[k] +
			float64(minDr)*ref.Spacing[0]*colDir[k]
	}

	shape := grid.Shape()
	out := &Alignment{
		Grid:            grid,
		Volumes:         make([]*models.LabelArray, len(volumes)),
		Sources:         make([]string, len(volumes)),
		RetainedColumns: sequence(grid.Columns),
		RetainedRows:    sequence(grid.Rows),
	}

	for i, v := range volumes {
		arr := models.NewLabelArray(shape)
		for j, s := range v.Slices() {
			z, ok := grid.SliceIndex(s.Position())
			if !ok {
				return nil, fmt.Errorf("%w: slice position %.3f missing from master grid", models.ErrGeometryMismatch, s.Position())
			}
			wide, err := selection.FromSlice(s).Reframe(grid.Columns)
			if err != nil {
				return nil, err
			}
			moved := wide.ShiftWithin(places[i][j].dc-minDc, places[i][j].dr-minDr, grid.Rows)
			plane := arr.Plane(z)
			for _, idx := range moved.Indices() {
				plane[idx] = 1
			}
		}
		out.Volumes[i] = arr
		out.Sources[i] = v.Source
	}

	return out, nil
}

// resolveOffset expresses the origin of g as a whole-pixel offset in the
// frame of ref.
func resolveOffset(ref, g models.Geometry, tolerance float64) (placement, error) {
	for k := 0; k < 2; k++ {
		if math.Abs(ref.Spacing[k]-g.Spacing[k]) > geometryTolerance {
			return placement{}, fmt.Errorf("%w: pixel spacing %v differs from %v",
				models.ErrGeometryMismatch, g.Spacing, ref.Spacing)
		}
	}
	for k := 0; k < 6; k++ {
		if math.Abs(ref.Orientation[k]-g.Orientation[k]) > geometryTolerance {
			return placement{}, fmt.Errorf("%w: orientation %v differs from %v",
				models.ErrGeometryMismatch, g.Orientation, ref.Orientation)
		}
	}

	var delta [3]float64
	for k := 0; k < 3; k++ {
		delta[k] = g.Origin[k] - ref.Origin[k]
	}
	u := dot(delta, ref.RowDirection()) / ref.Spacing[1]
	v := dot(delta, ref.ColumnDirection()) / ref.Spacing[0]

	dc, dr := math.Round(u), math.Round(v)
	if math.Abs(u-dc) > tolerance || math.Abs(v-dr) > tolerance {
		return placement{}, fmt.Errorf("%w: in-plane offset (%.3f, %.3f) px is not a whole pixel",
			models.ErrGeometryMismatch, u, v)
	}
	return placement{dc: int(dc), dr: int(dr)}, nil
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func sequence(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
