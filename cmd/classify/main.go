package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fatih/color"

	"github.com/nvr-ai/go-classify/app"
	"github.com/nvr-ai/go-classify/benchmark"
	"github.com/nvr-ai/go-classify/config"
	"github.com/nvr-ai/go-classify/inference"
	"github.com/nvr-ai/go-classify/inference/providers"
	"github.com/nvr-ai/go-classify/logger"
	"github.com/nvr-ai/go-classify/util"
)

var (
	labelColor = color.New(color.FgGreen, color.Bold)
	scoreColor = color.New(color.FgCyan)
	fileColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed)
)

func main() {
	var (
		configPath string
		dir        string
		iterations int
		workers    int
		outputDir  string
	)
	flag.StringVar(&configPath, "file", config.DefaultConfigPath, "configuration file")
	flag.StringVar(&dir, "dir", "", "Directory of images to classify")
	flag.IntVar(&iterations, "bench", 0, "Run a benchmark with this many iterations instead of printing predictions")
	flag.IntVar(&workers, "workers", runtime.NumCPU(), "Goroutines sharing the engine in the parallel benchmark")
	flag.StringVar(&outputDir, "output-dir", "", "Directory for benchmark results")
	flag.Parse()

	if dir == "" {
		errColor.Fprintln(os.Stderr, "-dir is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, config.ResolvePath(configPath), dir, iterations, workers, outputDir); err != nil {
		errColor.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, dir string, iterations, workers int, outputDir string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, logCloser := logger.New(cfg.Log, cfg.Server.Debug)
	defer logCloser.Close()

	files, err := util.LoadDirectoryImageFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no images found in %s", dir)
	}

	components, err := app.NewEngine(cfg, log)
	if err != nil {
		return err
	}
	defer providers.ShutdownRuntime() //nolint:errcheck
	defer components.Close()

	if iterations > 0 {
		return runBenchmark(ctx, components.Engine, files, iterations, workers, outputDir)
	}

	failures := 0
	for _, f := range files {
		result, err := components.Engine.Classify(ctx, inference.Request{Input: f.Input(), Reference: f.Path})
		fileColor.Println(f.Path)
		if err != nil {
			failures++
			errColor.Printf("  %s: %v\n", inference.KindOf(err), err)
			continue
		}
		for i, p := range result.Predictions {
			fmt.Printf("  %d. ", i+1)
			labelColor.Print(p.Label)
			scoreColor.Printf("  %.2f%%\n", p.Confidence*100)
		}
	}

	m := components.Classifier.Metrics()
	fmt.Printf("\n%d images, %d failed, %.2f ms average inference\n", len(files), failures, m.AverageTimeMs)
	return nil
}

func runBenchmark(ctx context.Context, engine inference.Engine, files []util.ImageFile, iterations, workers int, outputDir string) error {
	suite := benchmark.NewSuite(engine, files, outputDir, nil)
	for _, s := range benchmark.QuickScenarios(iterations, workers) {
		suite.AddScenario(s)
	}
	if err := suite.RunAllScenarios(ctx); err != nil {
		return err
	}

	for _, r := range suite.GetResults() {
		labelColor.Printf("%-10s", r.Scenario.Name)
		scoreColor.Printf(" %8.2f img/s", r.ImagesPerSecond)
		fmt.Printf("  workers=%d  errors=%.2f%%  decode=%s  classify=%s\n",
			r.Scenario.Concurrency, r.ErrorRate*100, r.DecodeDuration, r.ClassifyDuration)
	}
	return nil
}
