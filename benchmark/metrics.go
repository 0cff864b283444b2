// Package benchmark - Throughput benchmarks of the classification engine over an image corpus.
package benchmark

import "time"

// PerformanceMetrics captures detailed performance data
type PerformanceMetrics struct {
	Scenario         Scenario       `json:"scenario"`
	Timestamp        time.Time      `json:"timestamp"`
	TotalDuration    time.Duration  `json:"total_duration"`
	DecodeDuration   time.Duration  `json:"decode_duration"`
	ClassifyDuration time.Duration  `json:"classify_duration"`
	ImagesPerSecond  float64        `json:"images_per_second"`
	MemoryStats      MemoryMetrics  `json:"memory_stats"`
	CPUStats         CPUMetrics     `json:"cpu_stats"`
	TopLabels        map[string]int `json:"top_labels"`
	ErrorsByKind     map[string]int `json:"errors_by_kind,omitempty"`
	ErrorRate        float64        `json:"error_rate"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
}

// CPUMetrics captures CPU usage statistics
type CPUMetrics struct {
	NumCPU     int `json:"num_cpu"`
	GOMAXPROCS int `json:"gomaxprocs"`
}
