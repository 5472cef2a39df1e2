package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"rtstaple/pkg/staple"
)

// PlotConvergence draws sensitivity (solid) and specificity (dashed) of
// every rater against the iteration number and saves the figure to path.
// The image format follows the file extension.
func PlotConvergence(history []staple.Iteration, sources []string, path string) error {
	if len(history) == 0 {
		return fmt.Errorf("no iterations to plot")
	}
	raters := len(history[0].P)

	p := plot.New()
	p.Title.Text = "STAPLE convergence"
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Rate"
	p.Y.Min = 0
	p.Y.Max = 1.05
	p.Legend.Top = false
	p.Legend.Left = true
	p.Add(plotter.NewGrid())

	for j := 0; j < raters; j++ {
		sens := make(plotter.XYs, len(history))
		spec := make(plotter.XYs, len(history))
		for i, it := range history {
			sens[i] = plotter.XY{X: float64(it.Index), Y: it.P[j]}
			spec[i] = plotter.XY{X: float64(it.Index), Y: it.Q[j]}
		}

		name := fmt.Sprintf("rater-%d", j)
		if j < len(sources) && sources[j] != "" {
			name = sources[j]
		}

		sensLine, err := plotter.NewLine(sens)
		if err != nil {
			return fmt.Errorf("failed to create sensitivity line for %s: %w", name, err)
		}
		sensLine.Color = plotutil.Color(j)
		sensLine.Width = vg.Points(1)

		specLine, err := plotter.NewLine(spec)
		if err != nil {
			return fmt.Errorf("failed to create specificity line for %s: %w", name, err)
		}
		specLine.Color = plotutil.Color(j)
		specLine.Width = vg.Points(1)
		specLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

		p.Add(sensLine, specLine)
		p.Legend.Add(name+" p", sensLine)
		p.Legend.Add(name+" q", specLine)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create plot dir: %w", err)
	}
	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save convergence plot: %w", err)
	}
	return nil
}
