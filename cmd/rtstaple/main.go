package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"rtstaple/pkg/config"
	"rtstaple/pkg/pipeline"
)

func main() {
	// Parse command line arguments
	manifestPath := flag.String("manifest", "", "YAML manifest listing the raters and their mask slices")
	configPath := flag.String("config", "rtstaple.yaml", "Configuration file (defaults are used when missing)")
	outputDir := flag.String("output", "staple_output", "Directory for consensus slices, plot and summary")
	maxIterations := flag.Int("iterations", 0, "Override the maximum number of EM iterations")
	verbose := flag.Bool("verbose", false, "Log every EM iteration")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file and exit")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to create config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *manifestPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *maxIterations > 0 {
		cfg.Staple.MaxIterations = *maxIterations
	}
	if *verbose {
		cfg.Output.Verbose = true
	}

	fmt.Println("================================")
	fmt.Println("STAPLE CONSENSUS OF RT STRUCTURE SEGMENTATIONS")
	fmt.Println("Simultaneous Truth and Performance Level Estimation")
	fmt.Println("================================")

	params := &pipeline.Params{
		ManifestPath: *manifestPath,
		OutputDir:    *outputDir,
		Config:       cfg,
	}

	p := pipeline.NewPipeline(params)
	if err := p.Process(); err != nil {
		log.Fatalf("Consensus failed: %v", err)
	}

	res := p.Result()
	summary := p.Summary()

	fmt.Printf("\nConsensus completed in %.2f seconds\n", p.Elapsed().Seconds())
	fmt.Printf("Master grid: %s over %d slices\n", p.Alignment().Shape(), len(summary.Positions))
	fmt.Printf("Iterations: %d (converged: %v)\n", res.Iterations, res.Converged)
	fmt.Printf("Prevalence: %.4f\n", res.Prevalence)
	fmt.Printf("Consensus voxels: %d\n\n", p.Consensus().Count())

	fmt.Printf("%-20s %12s %12s %8s %8s %8s\n", "Rater", "Sensitivity", "Specificity", "Voxels", "Dice", "Jaccard")
	fmt.Printf("%-20s %12s %12s %8s %8s %8s\n", "=====", "===========", "===========", "======", "====", "=======")
	for _, r := range summary.Raters {
		fmt.Printf("%-20s %12.4f %12.4f %8d %8.3f %8.3f\n",
			r.Source, r.Sensitivity, r.Specificity, r.Voxels, r.Overlap.Dice, r.Overlap.Jaccard)
	}

	fmt.Println("\nResults saved to:")
	if cfg.Output.SummaryFile != "" {
		fmt.Printf("- %s\n", filepath.Join(*outputDir, cfg.Output.SummaryFile))
	}
	if cfg.Output.PlotConvergence {
		fmt.Printf("- %s\n", filepath.Join(*outputDir, "convergence.png"))
	}
	if cfg.Output.SaveSlices {
		fmt.Printf("- %s\n", filepath.Join(*outputDir, cfg.Output.SlicesDir))
	}
}
