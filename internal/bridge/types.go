package bridge

// #region imports
import (
	"fmt"

	"github.com/keplerlabs/resonet/internal/layers"
)

// #endregion imports

// #region direction

// Direction selects which transform a propagated signal applies.
type Direction int

const (
	DirForward Direction = iota
	DirBackward
)

func (d Direction) String() string {
	if d == DirBackward {
		return "backward"
	}
	return "forward"
}

// #endregion direction

// #region profile

// Profile holds a bridge personality's tuning constants. Concrete bridges
// apply deliberately different scaling rules; the constants live here as
// configuration rather than hard-coded law.
type Profile struct {
	Resonance           float64 // coupling strength, nominally 0–1
	BoostThreshold      float64 // forward confidence at or above this gets ForwardBoost
	ForwardBoost        float64
	PenaltyThreshold    float64 // forward confidence below this gets ForwardPenalty
	ForwardPenalty      float64
	BackwardGain        float64 // backward refinement multiplier on top of resonance
	CouplingRate        float64 // per-step confidence exchange during amplify
	ClampMax            float64 // amplify upper bound per side
	AmplificationFactor float64 // multiplier in the amplify fixed-point target
	ConvergenceEpsilon  float64 // amplify stops when the combined value moves less than this
	MinGate             float64 // gated bridges reject inputs below this confidence
}

// DefaultResonantProfile returns the standard bridge personality: modest
// boost above the threshold, penalty below it, slightly stronger backward.
func DefaultResonantProfile() Profile {
	return Profile{
		Resonance:           0.85,
		BoostThreshold:      0.75,
		ForwardBoost:        1.1,
		PenaltyThreshold:    0.3,
		ForwardPenalty:      0.85,
		BackwardGain:        1.15,
		CouplingRate:        0.1,
		ClampMax:            2.0,
		AmplificationFactor: 1.2,
		ConvergenceEpsilon:  1e-4,
	}
}

// DefaultGatedProfile is stricter: inputs below MinGate are rejected, but
// what passes the gate is boosted harder.
func DefaultGatedProfile() Profile {
	p := DefaultResonantProfile()
	p.Resonance = 0.9
	p.ForwardBoost = 1.2
	p.MinGate = 0.25
	return p
}

// DefaultFeedbackProfile is mild going forward and strong coming back;
// backward refinement represents feedback from a more informed layer, so
// it is allowed to look better than forward. Higher amplify clamp.
func DefaultFeedbackProfile() Profile {
	p := DefaultResonantProfile()
	p.Resonance = 0.8
	p.ForwardBoost = 1.0
	p.ForwardPenalty = 0.9
	p.BackwardGain = 1.3
	p.ClampMax = 2.5
	p.AmplificationFactor = 1.25
	return p
}

// #endregion profile

// #region results

// AmplifyResult is the outcome of a bridge's amplify fixed-point loop.
// Iteration-cap exhaustion is reported through Converged=false; the best
// available combination is still returned.
type AmplifyResult struct {
	Up         *layers.State
	Down       *layers.State
	Combined   float64 // up.Confidence × down.Confidence × AmplificationFactor
	Factor     float64 // the bridge's amplification factor
	Iterations int
	Converged  bool
}

// Stats is a snapshot of a bridge's reinforcement counters.
type Stats struct {
	ForwardCalls   int
	BackwardCalls  int
	AmplifyCalls   int
	Reinforcements int
}

// #endregion results

// #region interface

// Bridge is a bidirectional, stateful transform between exactly two layers.
// Implementations never mutate an input state; Forward and Backward return
// new states with provenance linked to their source.
type Bridge interface {
	Name() string
	Source() layers.Layer
	Target() layers.Layer
	Resonance() float64

	Forward(s *layers.State) (*layers.State, error)
	Backward(s *layers.State) (*layers.State, error)
	Amplify(up, down *layers.State, maxIterations int) AmplifyResult

	// Reinforce adjusts resonance after a successful amplification.
	Reinforce(delta float64)
	Stats() Stats
}

// #endregion interface

// #region errors

// LayerMismatchError reports a Forward/Backward call with a state on the
// wrong layer for the bridge's declared pair.
type LayerMismatchError struct {
	Bridge    string
	Direction Direction
	Want      layers.Layer
	Got       layers.Layer
}

func (e *LayerMismatchError) Error() string {
	return fmt.Sprintf("bridge %s: %s expects layer %s, got %s",
		e.Bridge, e.Direction, e.Want.Name(), e.Got.Name())
}

// GateError reports an input rejected by a gated bridge's confidence floor.
type GateError struct {
	Bridge   string
	Required float64
	Got      float64
}

func (e *GateError) Error() string {
	return fmt.Sprintf("bridge %s: confidence %.4f below gate %.4f",
		e.Bridge, e.Got, e.Required)
}

// #endregion errors
