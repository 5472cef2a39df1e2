// Package pipeline runs a complete consensus job: load the rater masks,
// align them on a master grid, estimate the consensus with STAPLE and
// write the results.
package pipeline

import (
	"fmt"
	"path/filepath"
	"time"

	"rtstaple/internal/models"
	"rtstaple/internal/monitoring"
	"rtstaple/pkg/alignment"
	"rtstaple/pkg/config"
	"rtstaple/pkg/maskio"
	"rtstaple/pkg/report"
	"rtstaple/pkg/staple"
	"rtstaple/pkg/visualization"
)

// Params holds the inputs of one run.
type Params struct {
	// ManifestPath is the YAML manifest listing the raters and their masks.
	ManifestPath string

	// OutputDir receives the consensus slices, plot and summary. Nothing
	// is written when it is empty.
	OutputDir string

	// Config holds the tuning parameters. Nil means config.DefaultConfig().
	Config *config.Config
}

// Pipeline carries a run from the loaded volumes to the written outputs.
//
// The stages are:
// 1. Loading the rater volumes from the manifest
// 2. Aligning them on the master grid
// 3. Dropping columns and rows no rater marked (optional)
// 4. Running STAPLE
// 5. Restoring the consensus onto the full master grid
// 6. Writing slices, plot and summary
type Pipeline struct {
	params *Params
	cfg    *config.Config

	volumes   []*models.BinaryVolume
	aligned   *alignment.Alignment
	working   *alignment.Alignment
	result    *staple.Result
	consensus *models.LabelArray
	summary   *report.Summary
	elapsed   time.Duration
}

// NewPipeline creates a pipeline for params.
func NewPipeline(params *Params) *Pipeline {
	cfg := params.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Pipeline{params: params, cfg: cfg}
}

// Process runs every stage in order.
func (p *Pipeline) Process() error {
	start := time.Now()
	monitoring.SetVerbose(p.cfg.Output.Verbose)

	monitoring.Logf("Step 1: Loading rater volumes from %s", p.params.ManifestPath)
	volumes, err := maskio.LoadVolumes(p.params.ManifestPath)
	if err != nil {
		return fmt.Errorf("failed to load volumes: %w", err)
	}

	if err := p.Run(volumes); err != nil {
		return err
	}

	if p.params.OutputDir != "" {
		monitoring.Logf("Step 6: Writing results to %s", p.params.OutputDir)
		if err := p.writeOutputs(); err != nil {
			return fmt.Errorf("failed to write outputs: %w", err)
		}
	}

	p.elapsed = time.Since(start)
	return nil
}

// Run executes the in-memory stages (alignment to restoration) on
// volumes that were loaded elsewhere.
func (p *Pipeline) Run(volumes []*models.BinaryVolume) error {
	p.volumes = volumes

	monitoring.Logf("Step 2: Aligning %d raters", len(volumes))
	aligned, err := alignment.Align(volumes, p.cfg.AlignmentOptions())
	if err != nil {
		return fmt.Errorf("failed to align volumes: %w", err)
	}
	p.aligned = aligned
	p.working = aligned
	monitoring.Logf("Master grid %v spanning positions %.2f to %.2f mm",
		aligned.Shape(), aligned.Grid.Positions[0], aligned.Grid.Positions[len(aligned.Grid.Positions)-1])

	if p.cfg.Alignment.RemoveEmpty {
		p.working = aligned.RemoveEmptyIndices()
		monitoring.Logf("Step 3: Removed empty columns and rows, working shape %v", p.working.Shape())
	}

	monitoring.Logf("Step 4: Estimating consensus with STAPLE")
	estimator, err := staple.New(p.working.Volumes, p.cfg.StapleOptions())
	if err != nil {
		return fmt.Errorf("failed to set up estimator: %w", err)
	}
	p.result = estimator.Solve()
	monitoring.Logf("STAPLE finished after %d iterations (converged: %v)", p.result.Iterations, p.result.Converged)

	monitoring.Logf("Step 5: Restoring consensus onto the master grid")
	p.consensus, err = p.working.Restore(p.result.TrueSegmentation)
	if err != nil {
		return fmt.Errorf("failed to restore consensus: %w", err)
	}

	p.summary, err = report.Summarize(p.result, p.working.Volumes, p.working.Sources, p.aligned.Grid.Positions)
	if err != nil {
		return fmt.Errorf("failed to summarise: %w", err)
	}
	return nil
}

func (p *Pipeline) writeOutputs() error {
	out := p.cfg.Output

	if out.SaveSlices {
		dir := filepath.Join(p.params.OutputDir, out.SlicesDir)
		if _, err := visualization.LabelViewer(p.consensus).SaveSliceSequence("z", filepath.Join(dir, "consensus")); err != nil {
			return fmt.Errorf("saving consensus slices: %w", err)
		}
		if _, err := visualization.ProbabilityViewer(p.result.W).SaveSliceSequence("z", filepath.Join(dir, "posterior")); err != nil {
			return fmt.Errorf("saving posterior slices: %w", err)
		}
		for j, arr := range p.aligned.Volumes {
			name := fmt.Sprintf("aligned_%02d", j)
			if _, err := visualization.LabelViewer(arr).SaveSliceSequence("z", filepath.Join(dir, name)); err != nil {
				monitoring.Logf("Warning: Failed to save aligned slices of rater %d: %v", j, err)
			}
		}
	}

	if out.PlotConvergence {
		path := filepath.Join(p.params.OutputDir, "convergence.png")
		if err := report.PlotConvergence(p.result.History, p.working.Sources, path); err != nil {
			monitoring.Logf("Warning: %v", err)
		}
	}

	if out.SummaryFile != "" {
		if err := report.WriteSummary(p.summary, filepath.Join(p.params.OutputDir, out.SummaryFile)); err != nil {
			return err
		}
	}
	return nil
}

// Result returns the STAPLE result of the last run.
func (p *Pipeline) Result() *staple.Result { return p.result }

// Consensus returns the consensus segmentation on the full master grid.
func (p *Pipeline) Consensus() *models.LabelArray { return p.consensus }

// Alignment returns the master-grid alignment before any reduction.
func (p *Pipeline) Alignment() *alignment.Alignment { return p.aligned }

// Summary returns the per-rater summary of the last run.
func (p *Pipeline) Summary() *report.Summary { return p.summary }

// Elapsed returns the wall time of the last Process call.
func (p *Pipeline) Elapsed() time.Duration { return p.elapsed }
