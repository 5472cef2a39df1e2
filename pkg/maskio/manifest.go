// Package maskio loads rater segmentations from a YAML manifest that
// lists, per rater, PNG mask files together with the geometry of every
// slice.
package maskio

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"rtstaple/internal/models"
)

// Manifest describes every rater taking part in a consensus run.
type Manifest struct {
	Raters []RaterEntry `yaml:"raters"`
}

// RaterEntry is one rater's slice list. Spacing and Orientation apply to
// every slice that does not set its own.
type RaterEntry struct {
	Name        string       `yaml:"name"`
	Spacing     []float64    `yaml:"spacing,omitempty"`
	Orientation []float64    `yaml:"orientation,omitempty"`
	Slices      []SliceEntry `yaml:"slices"`
}

// SliceEntry points at one mask image. Origin defaults to (0, 0, position).
type SliceEntry struct {
	File        string    `yaml:"file"`
	Position    float64   `yaml:"position"`
	Origin      []float64 `yaml:"origin,omitempty"`
	Spacing     []float64 `yaml:"spacing,omitempty"`
	Orientation []float64 `yaml:"orientation,omitempty"`
}

// ReadManifest parses a manifest file.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("error parsing manifest: %w", err)
	}
	return &m, nil
}

// WriteManifest stores m as YAML at path.
func WriteManifest(m *Manifest, path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("error marshaling manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing manifest: %w", err)
	}
	return nil
}

// LoadVolumes reads the manifest at path and every mask it references.
// Relative file names are resolved against the manifest's directory.
func LoadVolumes(path string) ([]*models.BinaryVolume, error) {
	m, err := ReadManifest(path)
	if err != nil {
		return nil, err
	}
	return m.Volumes(filepath.Dir(path))
}

// Volumes loads the masks of every rater, resolving relative paths
// against baseDir.
func (m *Manifest) Volumes(baseDir string) ([]*models.BinaryVolume, error) {
	if len(m.Raters) == 0 {
		return nil, fmt.Errorf("%w: manifest lists no raters", models.ErrInvalidArgument)
	}

	volumes := make([]*models.BinaryVolume, 0, len(m.Raters))
	for _, r := range m.Raters {
		vol, err := models.NewBinaryVolume(r.Name)
		if err != nil {
			return nil, err
		}
		for _, s := range r.Slices {
			g, err := s.geometry(r)
			if err != nil {
				return nil, fmt.Errorf("rater %q slice %q: %w", r.Name, s.File, err)
			}
			file := s.File
			if !filepath.IsAbs(file) {
				file = filepath.Join(baseDir, file)
			}
			slice, err := LoadMask(file, g)
			if err != nil {
				return nil, fmt.Errorf("rater %q: %w", r.Name, err)
			}
			if err := vol.AddSlice(slice); err != nil {
				return nil, fmt.Errorf("rater %q: %w", r.Name, err)
			}
		}
		volumes = append(volumes, vol)
	}
	return volumes, nil
}

func (s SliceEntry) geometry(r RaterEntry) (models.Geometry, error) {
	g := models.AxialGeometry(s.Position)

	spacing := s.Spacing
	if spacing == nil {
		spacing = r.Spacing
	}
	if spacing != nil {
		if len(spacing) != 2 {
			return g, fmt.Errorf("%w: spacing needs 2 values, got %d", models.ErrInvalidArgument, len(spacing))
		}
		copy(g.Spacing[:], spacing)
	}

	orientation := s.Orientation
	if orientation == nil {
		orientation = r.Orientation
	}
	if orientation != nil {
		if len(orientation) != 6 {
			return g, fmt.Errorf("%w: orientation needs 6 values, got %d", models.ErrInvalidArgument, len(orientation))
		}
		copy(g.Orientation[:], orientation)
	}

	if s.Origin != nil {
		if len(s.Origin) != 3 {
			return g, fmt.Errorf("%w: origin needs 3 values, got %d", models.ErrInvalidArgument, len(s.Origin))
		}
		copy(g.Origin[:], s.Origin)
	}
	return g, nil
}

// LoadMask decodes a PNG file into a binary slice. Any non-zero pixel is
// positive.
func LoadMask(path string, g models.Geometry) (*models.BinarySlice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mask: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode mask %s: %w", path, err)
	}
	return MaskFromImage(img, g)
}

// MaskFromImage thresholds img at zero intensity.
func MaskFromImage(img image.Image, g models.Geometry) (*models.BinarySlice, error) {
	b := img.Bounds()
	columns, rows := b.Dx(), b.Dy()
	labels := make([]uint8, columns*rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < columns; x++ {
			gray := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
			if gray.Y > 0 {
				labels[y*columns+x] = 1
			}
		}
	}
	return models.NewBinarySlice(columns, rows, labels, g)
}

// SaveMask writes labels as an 8-bit PNG, positives white.
func SaveMask(path string, columns, rows int, labels []uint8) error {
	if len(labels) != columns*rows {
		return fmt.Errorf("%w: %d labels for a %dx%d mask", models.ErrShapeMismatch, len(labels), columns, rows)
	}
	img := image.NewGray(image.Rect(0, 0, columns, rows))
	for i, v := range labels {
		if v != 0 {
			img.Pix[(i/columns)*img.Stride+i%columns] = 255
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create mask directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create mask file: %w", err)
	}
	defer f.Close()

	return png.Encode(f, img)
}
