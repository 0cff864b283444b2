package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-classify/inference"
	"github.com/nvr-ai/go-classify/util"
)

// Suite manages and executes benchmark scenarios
type Suite struct {
	engine    inference.Engine
	corpus    []util.ImageFile
	outputDir string
	logger    *zap.Logger
	mu        sync.RWMutex
	scenarios []Scenario
	results   []PerformanceMetrics
}

// NewSuite creates a new benchmark suite.
//
// Arguments:
//   - engine: The engine under test. The suite never closes it.
//   - corpus: The images cycled through by every scenario.
//   - outputDir: Where SaveResults writes its files.
//   - logger: The logger.
//
// Returns:
//   - *Suite: The benchmark suite.
func NewSuite(engine inference.Engine, corpus []util.ImageFile, outputDir string, logger *zap.Logger) *Suite {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suite{
		engine:    engine,
		corpus:    corpus,
		outputDir: outputDir,
		logger:    logger,
	}
}

// AddScenario adds a test scenario to the benchmark suite
func (bs *Suite) AddScenario(scenario Scenario) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.scenarios = append(bs.scenarios, scenario)
}

type sample struct {
	decode   time.Duration
	classify time.Duration
	label    string
	err      error
}

// RunScenario executes a single benchmark scenario
func (bs *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if len(bs.corpus) == 0 {
		return nil, errors.New("benchmark corpus is empty")
	}
	if scenario.Iterations <= 0 {
		return nil, errors.Errorf("scenario %s has no iterations", scenario.Name)
	}
	workers := scenario.Concurrency
	if workers < 1 {
		workers = 1
	}

	// Warmup runs
	for i := 0; i < scenario.WarmupRuns; i++ {
		bs.processImage(ctx, bs.corpus[i%len(bs.corpus)])
	}

	// Capture initial memory stats
	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	samples := make([]sample, scenario.Iterations)
	jobs := make(chan int)
	var wg sync.WaitGroup

	startTime := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				samples[i] = bs.processImage(ctx, bs.corpus[i%len(bs.corpus)])
			}
		}()
	}
	for i := 0; i < scenario.Iterations; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	totalDuration := time.Since(startTime)

	// Capture final memory stats
	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	metrics := &PerformanceMetrics{
		Scenario:        scenario,
		Timestamp:       startTime,
		TotalDuration:   totalDuration,
		ImagesPerSecond: float64(scenario.Iterations) / totalDuration.Seconds(),
		TopLabels:       make(map[string]int),
		ErrorsByKind:    make(map[string]int),
		MemoryStats: MemoryMetrics{
			AllocBytes:      endMem.Alloc,
			TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
			SysBytes:        endMem.Sys,
			NumGC:           endMem.NumGC - startMem.NumGC,
			HeapAllocBytes:  endMem.HeapAlloc,
			HeapSysBytes:    endMem.HeapSys,
		},
		CPUStats: CPUMetrics{
			NumCPU:     runtime.NumCPU(),
			GOMAXPROCS: runtime.GOMAXPROCS(0),
		},
	}

	failures := 0
	for _, s := range samples {
		metrics.DecodeDuration += s.decode
		metrics.ClassifyDuration += s.classify
		if s.err != nil {
			failures++
			metrics.ErrorsByKind[inference.KindOf(s.err).String()]++
			continue
		}
		metrics.TopLabels[s.label]++
	}
	metrics.ErrorRate = float64(failures) / float64(scenario.Iterations)

	return metrics, nil
}

// processImage times the decode stage and the rest of the pipeline separately.
func (bs *Suite) processImage(ctx context.Context, file util.ImageFile) sample {
	var s sample

	start := time.Now()
	grid, _, err := bs.engine.Decode(file.Input())
	s.decode = time.Since(start)
	if err != nil {
		s.err = err
		return s
	}

	start = time.Now()
	result, err := bs.engine.ClassifyGrid(ctx, grid, file.Path)
	s.classify = time.Since(start)
	if err != nil {
		s.err = err
		return s
	}
	if top, ok := result.Top(); ok {
		s.label = top.Label
	}
	return s
}

// RunAllScenarios executes all configured benchmark scenarios
func (bs *Suite) RunAllScenarios(ctx context.Context) error {
	bs.mu.RLock()
	scenarios := make([]Scenario, len(bs.scenarios))
	copy(scenarios, bs.scenarios)
	bs.mu.RUnlock()

	for _, scenario := range scenarios {
		metrics, err := bs.RunScenario(ctx, scenario)
		if err != nil {
			bs.logger.Warn("scenario failed", zap.String("scenario", scenario.Name), zap.Error(err))
			continue
		}

		bs.mu.Lock()
		bs.results = append(bs.results, *metrics)
		bs.mu.Unlock()

		bs.logger.Info("scenario completed",
			zap.String("scenario", scenario.Name),
			zap.Float64("images_per_second", metrics.ImagesPerSecond),
			zap.Float64("error_rate", metrics.ErrorRate),
		)
	}

	if bs.outputDir == "" {
		return nil
	}
	_, err := bs.SaveResults(time.Now())
	return err
}

// SaveResults persists benchmark results to filesystem as JSON plus a CSV summary.
//
// Returns:
//   - []string: The written file paths.
//   - error: An error if the directory or a file cannot be written.
func (bs *Suite) SaveResults(at time.Time) ([]string, error) {
	results := bs.GetResults()

	if err := os.MkdirAll(bs.outputDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create output directory")
	}

	timestamp := at.Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_results_%s.json", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return nil, errors.Wrap(err, "failed to write results file")
	}

	summaryFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))
	if err := saveSummaryCSV(summaryFile, results); err != nil {
		return nil, errors.Wrap(err, "failed to save summary CSV")
	}

	return []string{resultsFile, summaryFile}, nil
}

func saveSummaryCSV(filename string, results []PerformanceMetrics) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	header := "Scenario,Concurrency,Images_Per_Second,Total_Duration_ms,Decode_ms,Classify_ms,Alloc_MB,Error_Rate\n"
	if _, err := file.WriteString(header); err != nil {
		return err
	}

	for _, result := range results {
		line := fmt.Sprintf("%s,%d,%.2f,%.2f,%.2f,%.2f,%.2f,%.4f\n",
			result.Scenario.Name,
			result.Scenario.Concurrency,
			result.ImagesPerSecond,
			float64(result.TotalDuration.Nanoseconds())/1e6,
			float64(result.DecodeDuration.Nanoseconds())/1e6,
			float64(result.ClassifyDuration.Nanoseconds())/1e6,
			float64(result.MemoryStats.AllocBytes)/(1024*1024),
			result.ErrorRate,
		)
		if _, err := file.WriteString(line); err != nil {
			return err
		}
	}

	return file.Close()
}

// GetResults returns all benchmark results
func (bs *Suite) GetResults() []PerformanceMetrics {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	results := make([]PerformanceMetrics, len(bs.results))
	copy(results, bs.results)
	return results
}
