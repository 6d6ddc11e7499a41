package stack

// #region imports
import (
	"time"

	"github.com/keplerlabs/resonet/internal/convergence"
	"github.com/keplerlabs/resonet/internal/layers"
)

// #endregion imports

// #region handler

// Handler processes a state newly arrived on a layer and returns the
// state the layer should actually hold. The intuition subsystem installs
// one of these on the Intuition layer.
type Handler interface {
	Process(s *layers.State) (*layers.State, error)
}

// #endregion handler

// #region config

// Config tunes one orchestrator.
type Config struct {
	MaxStackIterations   int
	ConvergenceThreshold float64 // stack-level combined-confidence delta
	EnableBackward       bool
	MinConfidence        float64 // stop propagating below this
	AmplifyIterations    int     // per-bridge amplify cap during the full pass
	// MaxProcessingTime is advisory only: it is recorded against the run's
	// elapsed time in the result but never enforced. Cost is bounded
	// strictly by the iteration caps.
	MaxProcessingTime time.Duration
	Detector          convergence.DetectorConfig
}

// DefaultConfig returns the standard orchestrator tuning.
func DefaultConfig() Config {
	det := convergence.DefaultDetectorConfig()
	det.ConsecutiveRequired = 1
	return Config{
		MaxStackIterations:   10,
		ConvergenceThreshold: 1e-3,
		EnableBackward:       true,
		MinConfidence:        0.05,
		AmplifyIterations:    50,
		MaxProcessingTime:    5 * time.Second,
		Detector:             det,
	}
}

// #endregion config

// #region trace

// TraceEntry records one signal exchanged during a run. Kept for
// observability; not required for correctness.
type TraceEntry struct {
	Iteration int
	Bridge    string
	Direction string
	From      layers.Layer
	To        layers.Layer
	// Confidence is the value the signal delivered (post-transform), or
	// the target's value before a failed exchange.
	Confidence float64
	Err        string
}

// #endregion trace

// #region result

// Result is the outcome of one orchestration run. Runs always produce a
// Result, never an error: the Converged flag signals partial success, and
// per-path failures appear only in the trace.
type Result struct {
	RunID              string
	InputLayer         layers.Layer
	States             map[layers.Layer]*layers.State
	Confidences        map[layers.Layer]float64
	Combined           float64 // geometric mean × global amplification
	TotalAmplification float64
	Iterations         int
	Converged          bool
	Trace              []TraceEntry
	Elapsed            time.Duration
	// OverBudget reports Elapsed exceeding Config.MaxProcessingTime.
	// Advisory only; the run was never preempted.
	OverBudget bool
}

// #endregion result
