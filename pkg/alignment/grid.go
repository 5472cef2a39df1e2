package alignment

import (
	"math"
	"sort"

	"rtstaple/internal/models"
)

// Grid is the master coordinate space shared by all aligned raters.
type Grid struct {
	// Positions are the through-plane coordinates of the master slices,
	// ascending.
	Positions []float64

	// Columns and Rows are the in-plane extent in pixels.
	Columns int
	Rows    int

	// Origin is the patient coordinate of master pixel (0,0).
	Origin [3]float64

	// Spacing and Orientation are shared by every input slice.
	Spacing     [2]float64
	Orientation [6]float64

	tolerance float64
	index     map[int64]int
}

// newGrid builds the position index for a sorted, de-duplicated position list.
func newGrid(positions []float64, tolerance float64) *Grid {
	g := &Grid{
		Positions: positions,
		tolerance: tolerance,
		index:     make(map[int64]int, len(positions)),
	}
	for i, p := range positions {
		g.index[g.key(p)] = i
	}
	return g
}

func (g *Grid) key(position float64) int64 {
	return int64(math.Round(position / g.tolerance))
}

// Shape returns the dense shape of an array on this grid.
func (g *Grid) Shape() models.Shape {
	return models.Shape{Slices: len(g.Positions), Columns: g.Columns, Rows: g.Rows}
}

// SliceIndex returns the master slice index for a through-plane position.
func (g *Grid) SliceIndex(position float64) (int, bool) {
	k := g.key(position)
	for _, c := range []int64{k, k - 1, k + 1} {
		if i, ok := g.index[c]; ok && math.Abs(g.Positions[i]-position) < g.tolerance {
			return i, true
		}
	}
	return 0, false
}

// unionPositions merges the slice positions of all volumes into one
// ascending list, collapsing positions closer than tolerance.
func unionPositions(volumes []*models.BinaryVolume, tolerance float64) []float64 {
	var all []float64
	for _, v := range volumes {
		all = append(all, v.Positions()...)
	}
	sort.Float64s(all)

	var out []float64
	for _, p := range all {
		if len(out) > 0 && p-out[len(out)-1] < tolerance {
			continue
		}
		out = append(out, p)
	}
	return out
}
