// Package visualization renders consensus volumes (labels or posterior
// probabilities) as grayscale slice images along any axis.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"rtstaple/internal/models"
)

// Viewer extracts 2D planes from a volume in the (slices, columns, rows)
// layout. Values are expected in [0, 1] and map linearly to gray levels.
type Viewer struct {
	values []float64
	shape  models.Shape
}

// NewViewer wraps values laid out as shape. values is not copied.
func NewViewer(values []float64, shape models.Shape) (*Viewer, error) {
	if len(values) != shape.Len() {
		return nil, fmt.Errorf("%w: %d values for shape %v", models.ErrShapeMismatch, len(values), shape)
	}
	return &Viewer{values: values, shape: shape}, nil
}

// LabelViewer shows a binary array, positives white.
func LabelViewer(arr *models.LabelArray) *Viewer {
	return &Viewer{values: arr.Floats(), shape: arr.Shape}
}

// ProbabilityViewer shows a posterior map.
func ProbabilityViewer(arr *models.ProbabilityArray) *Viewer {
	return &Viewer{values: arr.Data, shape: arr.Shape}
}

// Shape returns the volume extent.
func (v *Viewer) Shape() models.Shape { return v.shape }

func gray(value float64) color.Gray {
	return color.Gray{Y: uint8(math.Round(math.Max(0, math.Min(1, value)) * 255))}
}

// ExtractSlice extracts one plane. Axis "z" is an acquired slice (columns
// across, rows down), "x" fixes a column (slices across, rows down) and
// "y" fixes a row (columns across, slices down).
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	s := v.shape
	var img *image.Gray

	switch axis {
	case "x", "X":
		if position >= s.Columns {
			return nil, fmt.Errorf("position %d exceeds columns %d", position, s.Columns)
		}
		img = image.NewGray(image.Rect(0, 0, s.Slices, s.Rows))
		for r := 0; r < s.Rows; r++ {
			for z := 0; z < s.Slices; z++ {
				img.SetGray(z, r, gray(v.values[s.Index(z, position, r)]))
			}
		}

	case "y", "Y":
		if position >= s.Rows {
			return nil, fmt.Errorf("position %d exceeds rows %d", position, s.Rows)
		}
		img = image.NewGray(image.Rect(0, 0, s.Columns, s.Slices))
		for z := 0; z < s.Slices; z++ {
			for c := 0; c < s.Columns; c++ {
				img.SetGray(c, z, gray(v.values[s.Index(z, c, position)]))
			}
		}

	case "z", "Z":
		if position >= s.Slices {
			return nil, fmt.Errorf("position %d exceeds slices %d", position, s.Slices)
		}
		img = image.NewGray(image.Rect(0, 0, s.Columns, s.Rows))
		for r := 0; r < s.Rows; r++ {
			for c := 0; c < s.Columns; c++ {
				img.SetGray(c, r, gray(v.values[s.Index(position, c, r)]))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// ExtractRegion copies a sub-volume starting at (slice, col, row).
func (v *Viewer) ExtractRegion(start, size models.Shape) ([]float64, error) {
	if start.Slices < 0 || start.Columns < 0 || start.Rows < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}
	if size.Slices <= 0 || size.Columns <= 0 || size.Rows <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}
	if start.Slices+size.Slices > v.shape.Slices ||
		start.Columns+size.Columns > v.shape.Columns ||
		start.Rows+size.Rows > v.shape.Rows {
		return nil, fmt.Errorf("region extends beyond volume boundaries")
	}

	region := make([]float64, size.Len())
	for z := 0; z < size.Slices; z++ {
		for r := 0; r < size.Rows; r++ {
			for c := 0; c < size.Columns; c++ {
				region[size.Index(z, c, r)] = v.values[v.shape.Index(start.Slices+z, start.Columns+c, start.Rows+r)]
			}
		}
	}
	return region, nil
}

// SaveSlice saves an extracted slice as a PNG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveSliceSequence extracts and saves every plane along axis and returns
// the number of images written.
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) (int, error) {
	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.shape.Columns
	case "y", "Y":
		maxPos = v.shape.Rows
	case "z", "Z":
		maxPos = v.shape.Slices
	default:
		return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return pos, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return pos, err
		}
	}

	return maxPos, nil
}
