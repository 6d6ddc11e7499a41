package convergence

// #region imports
import (
	"fmt"
	"math"
)

// #endregion imports

// #region config

// EngineConfig tunes the amplification engine.
type EngineConfig struct {
	BaseFactor    float64 // multiplicative factor per iteration (>1 amplifies)
	Adaptive      bool    // shrink the factor as confidence and iterations grow
	Damping       float64 // applied after the factor, <1 for stability
	MinConfidence float64
	MaxConfidence float64
	Detector      DetectorConfig
	// RelaxedMultiplier loosens the convergence threshold when the iteration
	// cap is reached: a final delta within Threshold×RelaxedMultiplier is
	// still accepted as a successful (informal) result.
	RelaxedMultiplier float64
}

// DefaultEngineConfig returns the standard engine tuning.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BaseFactor:        1.15,
		Adaptive:          true,
		Damping:           0.95,
		MinConfidence:     0.0,
		MaxConfidence:     10.0,
		Detector:          DefaultDetectorConfig(),
		RelaxedMultiplier: 2.0,
	}
}

// #endregion config

// #region results

// IterationMetric records one engine iteration for diagnostics.
type IterationMetric struct {
	Iteration  int
	Confidence float64
	Delta      float64
	Factor     float64
}

// RunResult is a successful engine run. Converged=false with a nil error
// means the iteration cap was reached but the final delta sat within the
// relaxed threshold, so the result was accepted.
type RunResult struct {
	Final      float64
	Peak       float64
	Iterations int
	Converged  bool
	Metrics    []IterationMetric
}

// #endregion results

// #region errors

// DivergenceError reports a run that crossed the divergence criteria.
type DivergenceError struct {
	Iteration int
	LastValue float64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("amplification diverged at iteration %d (last value %.6f)",
		e.Iteration, e.LastValue)
}

// MaxIterationsError reports a run that exhausted its cap with the final
// delta still outside the relaxed threshold.
type MaxIterationsError struct {
	Iterations int
	FinalDelta float64
}

func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("max iterations (%d) reached without convergence (final delta %.6f)",
		e.Iterations, e.FinalDelta)
}

// #endregion errors

// #region engine

// Engine drives a single confidence scalar through iterative multiplicative
// refinement: factor, damping, clamp, detect. Each Run owns a fresh
// detector; engines themselves are stateless and safe to share.
type Engine struct {
	config EngineConfig
}

// NewEngine creates an engine. Zero-value config fields fall back to
// defaults.
func NewEngine(config EngineConfig) *Engine {
	def := DefaultEngineConfig()
	if config.BaseFactor <= 0 {
		config.BaseFactor = def.BaseFactor
	}
	if config.Damping <= 0 || config.Damping > 1 {
		config.Damping = def.Damping
	}
	if config.MaxConfidence <= 0 {
		config.MaxConfidence = def.MaxConfidence
	}
	if config.RelaxedMultiplier < 1 {
		config.RelaxedMultiplier = def.RelaxedMultiplier
	}
	return &Engine{config: config}
}

// Run amplifies initial for up to maxIterations steps. Inputs that are
// NaN, infinite, or negative are rejected up front.
func (e *Engine) Run(initial float64, maxIterations int) (RunResult, error) {
	if math.IsNaN(initial) || math.IsInf(initial, 0) {
		return RunResult{}, fmt.Errorf("engine: initial confidence must be finite, got %f", initial)
	}
	if initial < 0 {
		return RunResult{}, fmt.Errorf("engine: initial confidence must be non-negative, got %f", initial)
	}
	if maxIterations <= 0 {
		maxIterations = 1
	}

	detector := NewDetector(e.config.Detector)
	confidence := initial
	peak := initial
	metrics := make([]IterationMetric, 0, maxIterations)
	lastDelta := math.Inf(1)

	for i := 0; i < maxIterations; i++ {
		factor := e.factor(confidence, i, maxIterations)
		next := confidence * factor * e.config.Damping
		next = e.clamp(next)

		lastDelta = math.Abs(next - confidence)
		metrics = append(metrics, IterationMetric{
			Iteration:  i,
			Confidence: next,
			Delta:      lastDelta,
			Factor:     factor,
		})

		status := detector.Observe(confidence, next)
		confidence = next
		if confidence > peak {
			peak = confidence
		}

		switch status {
		case StatusDiverging:
			return RunResult{}, &DivergenceError{Iteration: i, LastValue: confidence}
		case StatusConverged:
			return RunResult{
				Final:      confidence,
				Peak:       peak,
				Iterations: i + 1,
				Converged:  true,
				Metrics:    metrics,
			}, nil
		}
	}

	// Cap exhausted: accept if the run had effectively settled.
	if lastDelta <= e.config.Detector.Threshold*e.config.RelaxedMultiplier {
		return RunResult{
			Final:      confidence,
			Peak:       peak,
			Iterations: maxIterations,
			Converged:  false,
			Metrics:    metrics,
		}, nil
	}
	return RunResult{}, &MaxIterationsError{Iterations: maxIterations, FinalDelta: lastDelta}
}

// factor computes the per-iteration amplification factor. The adaptive
// form shrinks logarithmically as confidence grows and linearly as the
// iteration count climbs, so early iterations amplify strongly without
// runaway growth later.
func (e *Engine) factor(confidence float64, iteration, maxIterations int) float64 {
	if !e.config.Adaptive {
		return e.config.BaseFactor
	}
	boost := e.config.BaseFactor - 1
	if boost <= 0 {
		return e.config.BaseFactor
	}
	boost /= 1 + math.Log1p(confidence)
	boost *= 1 - float64(iteration)/float64(maxIterations)
	return 1 + boost
}

func (e *Engine) clamp(v float64) float64 {
	if v < e.config.MinConfidence {
		return e.config.MinConfidence
	}
	if v > e.config.MaxConfidence {
		return e.config.MaxConfidence
	}
	return v
}

// #endregion engine
