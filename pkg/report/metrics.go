// Package report summarises a consensus run: overlap of every rater with
// the consensus, a YAML summary and a convergence plot.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	"rtstaple/internal/models"
	"rtstaple/pkg/staple"
)

// Overlap compares one segmentation with a reference.
type Overlap struct {
	Dice    float64 `yaml:"dice"`
	Jaccard float64 `yaml:"jaccard"`
}

// CompareMasks returns the Dice and Jaccard coefficients of a against b.
// Two empty masks overlap perfectly.
func CompareMasks(a, b *models.LabelArray) (Overlap, error) {
	if a.Shape != b.Shape {
		return Overlap{}, fmt.Errorf("%w: %v vs %v", models.ErrShapeMismatch, a.Shape, b.Shape)
	}
	fa, fb := a.Floats(), b.Floats()
	inter := floats.Dot(fa, fb)
	sa, sb := floats.Sum(fa), floats.Sum(fb)

	if sa+sb == 0 {
		return Overlap{Dice: 1, Jaccard: 1}, nil
	}
	return Overlap{
		Dice:    2 * inter / (sa + sb),
		Jaccard: inter / (sa + sb - inter),
	}, nil
}

// RaterSummary is one row of the summary table.
type RaterSummary struct {
	Source      string  `yaml:"source"`
	Sensitivity float64 `yaml:"sensitivity"`
	Specificity float64 `yaml:"specificity"`
	Voxels      int     `yaml:"voxels"`
	Overlap     Overlap `yaml:"overlap"`
}

// Summary is the persisted outcome of a consensus run.
type Summary struct {
	Shape           string         `yaml:"shape"`
	Positions       []float64      `yaml:"positions"`
	Iterations      int            `yaml:"iterations"`
	Converged       bool           `yaml:"converged"`
	Prevalence      float64        `yaml:"prevalence"`
	ConsensusVoxels int            `yaml:"consensusVoxels"`
	Raters          []RaterSummary `yaml:"raters"`
}

// Summarize builds a Summary from the estimator result and the rater
// volumes it was computed from. sources may be shorter than volumes.
func Summarize(res *staple.Result, volumes []*models.LabelArray, sources []string, positions []float64) (*Summary, error) {
	if len(volumes) != len(res.P) {
		return nil, fmt.Errorf("%w: %d volumes for %d raters", models.ErrInvalidArgument, len(volumes), len(res.P))
	}

	s := &Summary{
		Shape:           res.TrueSegmentation.Shape.String(),
		Positions:       positions,
		Iterations:      res.Iterations,
		Converged:       res.Converged,
		Prevalence:      res.Prevalence,
		ConsensusVoxels: res.TrueSegmentation.Count(),
	}
	for j, v := range volumes {
		ov, err := CompareMasks(v, res.TrueSegmentation)
		if err != nil {
			return nil, fmt.Errorf("rater %d: %w", j, err)
		}
		name := fmt.Sprintf("rater-%d", j)
		if j < len(sources) && sources[j] != "" {
			name = sources[j]
		}
		s.Raters = append(s.Raters, RaterSummary{
			Source:      name,
			Sensitivity: res.P[j],
			Specificity: res.Q[j],
			Voxels:      v.Count(),
			Overlap:     ov,
		})
	}
	return s, nil
}

// WriteSummary stores the summary as YAML.
func WriteSummary(s *Summary, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating summary directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("error marshaling summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing summary: %w", err)
	}
	return nil
}

// ReadSummary loads a summary written by WriteSummary.
func ReadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading summary: %w", err)
	}
	var s Summary
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("error parsing summary: %w", err)
	}
	return &s, nil
}
