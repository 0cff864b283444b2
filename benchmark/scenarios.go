package benchmark

// Scenario defines a specific test configuration
type Scenario struct {
	Name        string `json:"name"`
	Iterations  int    `json:"iterations"`
	WarmupRuns  int    `json:"warmup_runs"`
	Concurrency int    `json:"concurrency"`
}

// ScenarioBuilder helps build test scenarios with fluent API
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a new scenario builder
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:        name,
			Iterations:  100,
			WarmupRuns:  10,
			Concurrency: 1,
		},
	}
}

// WithIterations sets the number of test iterations
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of warmup runs
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// WithConcurrency sets the number of goroutines sharing the engine
func (sb *ScenarioBuilder) WithConcurrency(workers int) *ScenarioBuilder {
	sb.scenario.Concurrency = workers
	return sb
}

// Build returns the configured test scenario
func (sb *ScenarioBuilder) Build() Scenario {
	if sb.scenario.Concurrency < 1 {
		sb.scenario.Concurrency = 1
	}
	return sb.scenario
}

// QuickScenarios returns a sequential and a parallel run over the corpus.
func QuickScenarios(iterations, workers int) []Scenario {
	return []Scenario{
		NewScenarioBuilder("sequential").WithIterations(iterations).WithWarmupRuns(2).Build(),
		NewScenarioBuilder("parallel").WithIterations(iterations).WithWarmupRuns(2).WithConcurrency(workers).Build(),
	}
}
