package alignment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtstaple/internal/models"
)

func slice(t *testing.T, columns, rows int, labels []uint8, g models.Geometry) *models.BinarySlice {
	t.Helper()
	s, err := models.NewBinarySlice(columns, rows, labels, g)
	require.NoError(t, err)
	return s
}

func volume(t *testing.T, source string, slices ...*models.BinarySlice) *models.BinaryVolume {
	t.Helper()
	v, err := models.NewBinaryVolume(source, slices...)
	require.NoError(t, err)
	return v
}

func shifted(pos, x, y float64) models.Geometry {
	g := models.AxialGeometry(pos)
	g.Origin = [3]float64{x, y, pos}
	return g
}

func TestAlignUnionOfPositions(t *testing.T) {
	a := volume(t, "a",
		slice(t, 2, 1, []uint8{1, 0}, models.AxialGeometry(0)),
		slice(t, 2, 1, []uint8{1, 1}, models.AxialGeometry(2)),
	)
	b := volume(t, "b",
		slice(t, 2, 1, []uint8{0, 1}, models.AxialGeometry(4)),
		slice(t, 2, 1, []uint8{1, 1}, models.AxialGeometry(2)),
	)

	al, err := Align([]*models.BinaryVolume{a, b}, Options{})
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 2, 4}, al.Grid.Positions)
	assert.Equal(t, models.Shape{Slices: 3, Columns: 2, Rows: 1}, al.Shape())
	assert.Equal(t, []string{"a", "b"}, al.Sources)

	assert.Equal(t, []uint8{1, 0, 1, 1, 0, 0}, al.Volumes[0].Data, "a has nothing at position 4")
	assert.Equal(t, []uint8{0, 0, 1, 1, 0, 1}, al.Volumes[1].Data, "b has nothing at position 0")

	z, ok := al.Grid.SliceIndex(4.0002)
	require.True(t, ok)
	assert.Equal(t, 2, z)
}

func TestAlignInPlaneOffsets(t *testing.T) {
	// b is placed one column right and one row down of a
	a := volume(t, "a", slice(t, 3, 2, []uint8{
		1, 0, 0,
		0, 0, 0,
	}, shifted(0, 0, 0)))
	b := volume(t, "b", slice(t, 3, 2, []uint8{
		1, 0, 0,
		0, 0, 1,
	}, shifted(0, 1, 1)))

	al, err := Align([]*models.BinaryVolume{a, b}, Options{})
	require.NoError(t, err)

	require.Equal(t, models.Shape{Slices: 1, Columns: 4, Rows: 3}, al.Shape())
	assert.Equal(t, [3]float64{0, 0, 0}, al.Grid.Origin)

	assert.Equal(t, uint8(1), al.Volumes[0].At(0, 0, 0))
	assert.Equal(t, 1, al.Volumes[0].Count())

	assert.Equal(t, uint8(1), al.Volumes[1].At(0, 1, 1))
	assert.Equal(t, uint8(1), al.Volumes[1].At(0, 3, 2))
	assert.Equal(t, 2, al.Volumes[1].Count())
}

func TestAlignNegativeOffsetMovesMasterOrigin(t *testing.T) {
	g := shifted(0, 0, 0)
	g.Spacing = [2]float64{2, 0.5} // 2 mm between rows, 0.5 mm between columns
	a := volume(t, "a", slice(t, 2, 2, []uint8{1, 0, 0, 0}, g))

	h := g
	h.Origin = [3]float64{-1, 0, 0} // two columns left
	b := volume(t, "b", slice(t, 2, 2, []uint8{1, 0, 0, 0}, h))

	al, err := Align([]*models.BinaryVolume{a, b}, Options{})
	require.NoError(t, err)

	assert.Equal(t, 4, al.Grid.Columns)
	assert.Equal(t, 2, al.Grid.Rows)
	assert.InDelta(t, -1.0, al.Grid.Origin[0], 1e-12)
	assert.Equal(t, uint8(1), al.Volumes[0].At(0, 2, 0))
	assert.Equal(t, uint8(1), al.Volumes[1].At(0, 0, 0))
}

func TestAlignDoesNotMutateInputs(t *testing.T) {
	a := volume(t, "a", slice(t, 2, 1, []uint8{1, 0}, shifted(0, 0, 0)))
	b := volume(t, "b", slice(t, 2, 1, []uint8{0, 1}, shifted(0, 1, 0)))

	al, err := Align([]*models.BinaryVolume{a, b}, Options{})
	require.NoError(t, err)
	al.Volumes[0].Data[0] = 0

	s, _ := a.SliceAt(0)
	assert.Equal(t, []uint8{1, 0}, s.Labels())
	assert.Equal(t, 1, a.Len())
}

func TestAlignErrors(t *testing.T) {
	base := volume(t, "a", slice(t, 2, 1, []uint8{1, 0}, models.AxialGeometry(0)))

	t.Run("no volumes", func(t *testing.T) {
		_, err := Align(nil, Options{})
		assert.True(t, errors.Is(err, models.ErrInvalidArgument))
	})

	t.Run("empty volume", func(t *testing.T) {
		_, err := Align([]*models.BinaryVolume{base, volume(t, "empty")}, Options{})
		assert.True(t, errors.Is(err, models.ErrInvalidArgument))
	})

	t.Run("shape mismatch", func(t *testing.T) {
		other := volume(t, "b", slice(t, 1, 2, []uint8{1, 0}, models.AxialGeometry(0)))
		_, err := Align([]*models.BinaryVolume{base, other}, Options{})
		assert.True(t, errors.Is(err, models.ErrShapeMismatch))
	})

	t.Run("spacing mismatch", func(t *testing.T) {
		g := models.AxialGeometry(0)
		g.Spacing = [2]float64{1, 1.5}
		other := volume(t, "b", slice(t, 2, 1, []uint8{1, 0}, g))
		_, err := Align([]*models.BinaryVolume{base, other}, Options{})
		assert.True(t, errors.Is(err, models.ErrGeometryMismatch))
	})

	t.Run("orientation mismatch", func(t *testing.T) {
		g := models.AxialGeometry(0)
		g.Orientation = [6]float64{0, 1, 0, 1, 0, 0}
		other := volume(t, "b", slice(t, 2, 1, []uint8{1, 0}, g))
		_, err := Align([]*models.BinaryVolume{base, other}, Options{})
		assert.True(t, errors.Is(err, models.ErrGeometryMismatch))
	})

	t.Run("sub-pixel offset", func(t *testing.T) {
		other := volume(t, "b", slice(t, 2, 1, []uint8{1, 0}, shifted(0, 0.4, 0)))
		_, err := Align([]*models.BinaryVolume{base, other}, Options{})
		assert.True(t, errors.Is(err, models.ErrGeometryMismatch))
	})
}

func TestRemoveEmptyIndices(t *testing.T) {
	// 4x3 grid; column 3 and row 2 are empty for both raters, the
	// all-negative pixel (1,1) survives because its row and column are used
	a := volume(t, "a", slice(t, 4, 3, []uint8{
		1, 0, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 0,
	}, models.AxialGeometry(0)))
	b := volume(t, "b", slice(t, 4, 3, []uint8{
		0, 1, 0, 0,
		0, 0, 0, 0,
		0, 0, 0, 0,
	}, models.AxialGeometry(0)))

	al, err := Align([]*models.BinaryVolume{a, b}, Options{})
	require.NoError(t, err)

	reduced := al.RemoveEmptyIndices()
	assert.Equal(t, models.Shape{Slices: 1, Columns: 3, Rows: 2}, reduced.Shape())
	assert.Equal(t, []int{0, 1, 2}, reduced.RetainedColumns)
	assert.Equal(t, []int{0, 1}, reduced.RetainedRows)

	for k := range al.Volumes {
		for nr, r := range reduced.RetainedRows {
			for nc, c := range reduced.RetainedColumns {
				assert.Equal(t, al.Volumes[k].At(0, c, r), reduced.Volumes[k].At(0, nc, nr))
			}
		}
		assert.Equal(t, al.Volumes[k].Count(), reduced.Volumes[k].Count(), "only negatives are removed")
	}

	// the source alignment is untouched
	assert.Equal(t, models.Shape{Slices: 1, Columns: 4, Rows: 3}, al.Shape())

	restored, err := reduced.Restore(reduced.Volumes[0])
	require.NoError(t, err)
	assert.Equal(t, al.Volumes[0].Data, restored.Data)

	_, err = reduced.Restore(al.Volumes[0])
	assert.True(t, errors.Is(err, models.ErrShapeMismatch))
}

func TestRemoveEmptyIndicesInteriorColumn(t *testing.T) {
	a := volume(t, "a", slice(t, 3, 1, []uint8{1, 0, 1}, models.AxialGeometry(0)))
	b := volume(t, "b", slice(t, 3, 1, []uint8{0, 0, 1}, models.AxialGeometry(0)))

	al, err := Align([]*models.BinaryVolume{a, b}, Options{})
	require.NoError(t, err)

	reduced := al.RemoveEmptyIndices()
	assert.Equal(t, []int{0, 2}, reduced.RetainedColumns)
	assert.Equal(t, []uint8{1, 1}, reduced.Volumes[0].Data)
	assert.Equal(t, []uint8{0, 1}, reduced.Volumes[1].Data)

	twice := reduced.RemoveEmptyIndices()
	assert.Equal(t, []int{0, 2}, twice.RetainedColumns, "reduction maps back to master indices")
}

func TestRemoveEmptyIndicesAllNegative(t *testing.T) {
	a := volume(t, "a", slice(t, 2, 2, []uint8{0, 0, 0, 0}, models.AxialGeometry(0)))
	b := volume(t, "b", slice(t, 2, 2, []uint8{0, 0, 0, 0}, models.AxialGeometry(0)))

	al, err := Align([]*models.BinaryVolume{a, b}, Options{})
	require.NoError(t, err)

	reduced := al.RemoveEmptyIndices()
	assert.Equal(t, al.Shape(), reduced.Shape())
}
