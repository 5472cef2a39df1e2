package visualization

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"rtstaple/internal/models"
)

// TestNewViewer verifies shape validation
func TestNewViewer(t *testing.T) {
	shape := models.Shape{Slices: 2, Columns: 3, Rows: 4}

	if _, err := NewViewer(make([]float64, shape.Len()), shape); err != nil {
		t.Fatalf("NewViewer failed: %v", err)
	}
	if _, err := NewViewer(make([]float64, 5), shape); err == nil {
		t.Error("Expected error for mismatched value count, got nil")
	}
}

// TestExtractSlice verifies that planes are correctly extracted along each axis
func TestExtractSlice(t *testing.T) {
	shape := models.Shape{Slices: 3, Columns: 4, Rows: 2}
	arr := models.NewLabelArray(shape)
	arr.Set(1, 2, 1, 1)
	arr.Set(2, 0, 0, 1)

	viewer := LabelViewer(arr)

	img, err := viewer.ExtractSlice("z", 1)
	if err != nil {
		t.Fatalf("Failed to extract Z slice: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
		t.Errorf("Expected Z slice 4x2, got %dx%d", b.Dx(), b.Dy())
	}
	if got := img.GrayAt(2, 1).Y; got != 255 {
		t.Errorf("Expected white at (2,1), got %d", got)
	}
	if got := img.GrayAt(0, 0).Y; got != 0 {
		t.Errorf("Expected black at (0,0), got %d", got)
	}

	imgX, err := viewer.ExtractSlice("x", 0)
	if err != nil {
		t.Fatalf("Failed to extract X slice: %v", err)
	}
	if b := imgX.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Errorf("Expected X slice 3x2, got %dx%d", b.Dx(), b.Dy())
	}
	if got := imgX.GrayAt(2, 0).Y; got != 255 {
		t.Errorf("Expected white at slice 2 row 0, got %d", got)
	}

	imgY, err := viewer.ExtractSlice("y", 1)
	if err != nil {
		t.Fatalf("Failed to extract Y slice: %v", err)
	}
	if b := imgY.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Errorf("Expected Y slice 4x3, got %dx%d", b.Dx(), b.Dy())
	}
	if got := imgY.GrayAt(2, 1).Y; got != 255 {
		t.Errorf("Expected white at column 2 slice 1, got %d", got)
	}

	if _, err := viewer.ExtractSlice("invalid", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
	if _, err := viewer.ExtractSlice("z", 3); err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}
	if _, err := viewer.ExtractSlice("x", -1); err == nil {
		t.Error("Expected error for negative position, got nil")
	}
}

// TestProbabilityGrayLevels verifies the linear mapping of posteriors
func TestProbabilityGrayLevels(t *testing.T) {
	arr := &models.ProbabilityArray{
		Shape: models.Shape{Slices: 1, Columns: 3, Rows: 1},
		Data:  []float64{0, 0.5, 1.2},
	}
	img, err := ProbabilityViewer(arr).ExtractSlice("z", 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}

	expected := []uint8{0, 128, 255}
	for x, want := range expected {
		if got := img.GrayAt(x, 0).Y; got != want {
			t.Errorf("pixel %d: expected %d, got %d", x, want, got)
		}
	}
}

// TestExtractRegion verifies that sub-volumes are correctly extracted
func TestExtractRegion(t *testing.T) {
	shape := models.Shape{Slices: 4, Columns: 5, Rows: 6}
	values := make([]float64, shape.Len())
	for i := range values {
		values[i] = float64(i)
	}
	viewer, err := NewViewer(values, shape)
	if err != nil {
		t.Fatalf("NewViewer failed: %v", err)
	}

	start := models.Shape{Slices: 1, Columns: 2, Rows: 3}
	size := models.Shape{Slices: 2, Columns: 3, Rows: 2}
	region, err := viewer.ExtractRegion(start, size)
	if err != nil {
		t.Fatalf("Failed to extract region: %v", err)
	}
	if len(region) != size.Len() {
		t.Fatalf("Expected region size %d, got %d", size.Len(), len(region))
	}

	for z := 0; z < size.Slices; z++ {
		for r := 0; r < size.Rows; r++ {
			for c := 0; c < size.Columns; c++ {
				want := values[shape.Index(start.Slices+z, start.Columns+c, start.Rows+r)]
				if got := region[size.Index(z, c, r)]; got != want {
					t.Errorf("Region value mismatch at (%d,%d,%d): expected %f, got %f", z, c, r, want, got)
				}
			}
		}
	}

	if _, err := viewer.ExtractRegion(models.Shape{Slices: -1}, size); err == nil {
		t.Error("Expected error for negative start coordinate, got nil")
	}
	if _, err := viewer.ExtractRegion(start, models.Shape{Slices: 1, Columns: 0, Rows: 1}); err == nil {
		t.Error("Expected error for zero size, got nil")
	}
	if _, err := viewer.ExtractRegion(models.Shape{Columns: 4}, size); err == nil {
		t.Error("Expected error for region extending beyond volume, got nil")
	}
}

// TestSaveSliceSequence verifies that a sequence of slices can be saved
func TestSaveSliceSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	tempDir := t.TempDir()

	shape := models.Shape{Slices: 3, Columns: 5, Rows: 5}
	arr := models.NewLabelArray(shape)
	arr.Set(0, 2, 2, 1)
	viewer := LabelViewer(arr)

	outputDir := filepath.Join(tempDir, "slices")
	n, err := viewer.SaveSliceSequence("z", outputDir)
	if err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}
	if n != shape.Slices {
		t.Errorf("Expected %d images, got %d", shape.Slices, n)
	}

	for z := 0; z < shape.Slices; z++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_z_%03d.png", z))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected slice file does not exist: %s", filename)
		}
	}

	if _, err := viewer.SaveSliceSequence("invalid", outputDir); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}
