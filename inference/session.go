package inference

import (
	"context"
	"sync"
	"time"

	"gorgonia.org/tensor"
)

// ProfiledClassifier wraps a classifier with inference counters.
//
// It tracks the number of calls, failures and total latency so operators can see the cost
// of the model without a profiler attached.
type ProfiledClassifier struct {
	inner Classifier

	mu             sync.RWMutex
	inferenceCount int64
	failureCount   int64
	totalTime      time.Duration
	lastTime       time.Duration
}

// NewProfiledClassifier wraps inner with performance tracking.
//
// Arguments:
//   - inner: The classifier to measure.
//
// Returns:
//   - *ProfiledClassifier: The wrapped classifier.
func NewProfiledClassifier(inner Classifier) *ProfiledClassifier {
	return &ProfiledClassifier{inner: inner}
}

// Infer runs the wrapped classifier and records its latency.
func (pc *ProfiledClassifier) Infer(ctx context.Context, batch *tensor.Dense) ([]float32, error) {
	start := time.Now()
	probs, err := pc.inner.Infer(ctx, batch)
	elapsed := time.Since(start)

	pc.mu.Lock()
	pc.inferenceCount++
	pc.totalTime += elapsed
	pc.lastTime = elapsed
	if err != nil {
		pc.failureCount++
	}
	pc.mu.Unlock()

	return probs, err
}

// NumClasses forwards to the wrapped classifier, or returns 0 when it does not know.
func (pc *ProfiledClassifier) NumClasses() int {
	if counter, ok := pc.inner.(ClassCounter); ok {
		return counter.NumClasses()
	}
	return 0
}

// Close releases the wrapped classifier if it holds resources.
func (pc *ProfiledClassifier) Close() error {
	if closer, ok := pc.inner.(Closer); ok {
		return closer.Close()
	}
	return nil
}

// PerformanceMetrics is a snapshot of ProfiledClassifier counters.
type PerformanceMetrics struct {
	InferenceCount int64   `json:"inference_count"`
	FailureCount   int64   `json:"failure_count"`
	TotalTimeMs    float64 `json:"total_time_ms"`
	LastTimeMs     float64 `json:"last_time_ms"`
	AverageTimeMs  float64 `json:"average_time_ms"`
	ThroughputFPS  float64 `json:"throughput_fps"`
}

// Metrics returns the current performance statistics.
//
// Returns:
//   - PerformanceMetrics: Counters and derived averages.
func (pc *ProfiledClassifier) Metrics() PerformanceMetrics {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	metrics := PerformanceMetrics{
		InferenceCount: pc.inferenceCount,
		FailureCount:   pc.failureCount,
		TotalTimeMs:    float64(pc.totalTime.Nanoseconds()) / 1e6,
		LastTimeMs:     float64(pc.lastTime.Nanoseconds()) / 1e6,
	}

	if pc.inferenceCount > 0 {
		metrics.AverageTimeMs = metrics.TotalTimeMs / float64(pc.inferenceCount)
		if metrics.AverageTimeMs > 0 {
			metrics.ThroughputFPS = 1000.0 / metrics.AverageTimeMs
		}
	}

	return metrics
}

// ResetMetrics clears all performance counters.
func (pc *ProfiledClassifier) ResetMetrics() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.inferenceCount = 0
	pc.failureCount = 0
	pc.totalTime = 0
	pc.lastTime = 0
}
