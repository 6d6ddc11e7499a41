package bridge

// #region imports
import (
	"fmt"
	"math"
	"sync"

	"github.com/keplerlabs/resonet/internal/layers"
)

// #endregion imports

// #region core

// core carries the state every bridge personality shares: the layer pair,
// the profile, and mutex-guarded resonance and counters. Bridges are shared
// across concurrent orchestrator runs, so all mutable fields sit behind mu.
type core struct {
	name   string
	source layers.Layer
	target layers.Layer

	mu        sync.Mutex
	profile   Profile
	resonance float64
	stats     Stats
}

func newCore(name string, source, target layers.Layer, profile Profile) (*core, error) {
	if !source.Valid() || !target.Valid() {
		return nil, fmt.Errorf("bridge %s: invalid layer pair %d→%d", name, source, target)
	}
	if !layers.Adjacent(source, target) {
		return nil, fmt.Errorf("bridge %s: %s and %s are not adjacent in the topology",
			name, source.Name(), target.Name())
	}
	return &core{
		name:      name,
		source:    source,
		target:    target,
		profile:   profile,
		resonance: profile.Resonance,
	}, nil
}

func (c *core) Name() string         { return c.name }
func (c *core) Source() layers.Layer { return c.source }
func (c *core) Target() layers.Layer { return c.target }

func (c *core) Resonance() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resonance
}

// Reinforce nudges resonance by delta, clamped to [0.05, 1.5]. Resonance
// may exceed 1 for highly resonant pairs.
func (c *core) Reinforce(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.resonance + delta
	if r < 0.05 {
		r = 0.05
	}
	if r > 1.5 {
		r = 1.5
	}
	c.resonance = r
	c.stats.Reinforcements++
}

func (c *core) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// snapshot returns the profile and resonance under one lock acquisition.
func (c *core) snapshot() (Profile, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile, c.resonance
}

func (c *core) countForward() {
	c.mu.Lock()
	c.stats.ForwardCalls++
	c.mu.Unlock()
}

func (c *core) countBackward() {
	c.mu.Lock()
	c.stats.BackwardCalls++
	c.mu.Unlock()
}

func (c *core) countAmplify() {
	c.mu.Lock()
	c.stats.AmplifyCalls++
	c.mu.Unlock()
}

// #endregion core

// #region direction-checks

func (c *core) checkForward(s *layers.State) error {
	if s.Layer != c.source {
		return &LayerMismatchError{Bridge: c.name, Direction: DirForward, Want: c.source, Got: s.Layer}
	}
	return nil
}

func (c *core) checkBackward(s *layers.State) error {
	if s.Layer != c.target {
		return &LayerMismatchError{Bridge: c.name, Direction: DirBackward, Want: c.target, Got: s.Layer}
	}
	return nil
}

// #endregion direction-checks

// #region amplify

// amplify runs the shared fixed-point loop on local copies of both states.
// Each step feeds a fraction of each side's confidence to the other, clamps
// to the profile's ceiling, and stops once the combined multiplicative
// value settles within epsilon. Cap exhaustion is not an error; the best
// combination found is returned with Converged=false.
func (c *core) amplify(up, down *layers.State, maxIterations int) AmplifyResult {
	c.countAmplify()
	prof, _ := c.snapshot()

	u := up.Clone()
	d := down.Clone()

	prev := u.Confidence * d.Confidence * prof.AmplificationFactor
	res := AmplifyResult{Combined: prev, Factor: prof.AmplificationFactor}

	for i := 0; i < maxIterations; i++ {
		gainU := prof.CouplingRate * d.Confidence
		gainD := prof.CouplingRate * u.Confidence
		u.Confidence = clampTo(u.Confidence+gainU, prof.ClampMax)
		d.Confidence = clampTo(d.Confidence+gainD, prof.ClampMax)
		u.Iterations++
		d.Iterations++

		combined := u.Confidence * d.Confidence * prof.AmplificationFactor
		res.Iterations = i + 1
		res.Combined = combined
		if math.Abs(combined-prev) < prof.ConvergenceEpsilon {
			res.Converged = true
			break
		}
		prev = combined
	}

	res.Up = u
	res.Down = d
	return res
}

func clampTo(v, max float64) float64 {
	if v > max {
		return max
	}
	if v < 0 {
		return 0
	}
	return v
}

// #endregion amplify

// #region resonant

// ResonantBridge is the standard personality: forward scales by resonance
// with a boost above BoostThreshold and a penalty below PenaltyThreshold;
// backward applies the stronger BackwardGain.
type ResonantBridge struct {
	*core
}

// NewResonantBridge builds a resonant bridge for an adjacent layer pair.
func NewResonantBridge(name string, source, target layers.Layer, profile Profile) (*ResonantBridge, error) {
	c, err := newCore(name, source, target, profile)
	if err != nil {
		return nil, err
	}
	return &ResonantBridge{core: c}, nil
}

func (b *ResonantBridge) Forward(s *layers.State) (*layers.State, error) {
	if err := b.checkForward(s); err != nil {
		return nil, err
	}
	b.countForward()
	prof, res := b.snapshot()

	factor := res
	switch {
	case s.Confidence >= prof.BoostThreshold:
		factor *= prof.ForwardBoost
	case s.Confidence < prof.PenaltyThreshold:
		factor *= prof.ForwardPenalty
	}

	out := s.Derive(b.target)
	out.ScaleConfidence(factor)
	out.SetMeta("bridge", b.name)
	return out, nil
}

func (b *ResonantBridge) Backward(s *layers.State) (*layers.State, error) {
	if err := b.checkBackward(s); err != nil {
		return nil, err
	}
	b.countBackward()
	prof, res := b.snapshot()

	out := s.Derive(b.source)
	out.ScaleConfidence(res * prof.BackwardGain)
	out.SetMeta("bridge", b.name)
	return out, nil
}

func (b *ResonantBridge) Amplify(up, down *layers.State, maxIterations int) AmplifyResult {
	return b.amplify(up, down, maxIterations)
}

// #endregion resonant

// #region gated

// GatedBridge rejects inputs whose confidence is below the profile's
// MinGate, in either direction. What clears the gate is boosted harder
// than the resonant personality would.
type GatedBridge struct {
	*core
}

// NewGatedBridge builds a gated bridge for an adjacent layer pair.
func NewGatedBridge(name string, source, target layers.Layer, profile Profile) (*GatedBridge, error) {
	c, err := newCore(name, source, target, profile)
	if err != nil {
		return nil, err
	}
	return &GatedBridge{core: c}, nil
}

func (b *GatedBridge) gate(s *layers.State) error {
	prof, _ := b.snapshot()
	if s.Confidence < prof.MinGate {
		return &GateError{Bridge: b.name, Required: prof.MinGate, Got: s.Confidence}
	}
	return nil
}

func (b *GatedBridge) Forward(s *layers.State) (*layers.State, error) {
	if err := b.checkForward(s); err != nil {
		return nil, err
	}
	if err := b.gate(s); err != nil {
		return nil, err
	}
	b.countForward()
	prof, res := b.snapshot()

	factor := res
	if s.Confidence >= prof.BoostThreshold {
		factor *= prof.ForwardBoost
	}

	out := s.Derive(b.target)
	out.ScaleConfidence(factor)
	out.SetMeta("bridge", b.name)
	return out, nil
}

func (b *GatedBridge) Backward(s *layers.State) (*layers.State, error) {
	if err := b.checkBackward(s); err != nil {
		return nil, err
	}
	if err := b.gate(s); err != nil {
		return nil, err
	}
	b.countBackward()
	prof, res := b.snapshot()

	out := s.Derive(b.source)
	out.ScaleConfidence(res * prof.BackwardGain)
	out.SetMeta("bridge", b.name)
	return out, nil
}

func (b *GatedBridge) Amplify(up, down *layers.State, maxIterations int) AmplifyResult {
	return b.amplify(up, down, maxIterations)
}

// #endregion gated

// #region feedback

// FeedbackBridge passes forward almost untouched and refines strongly on
// the way back. Its amplify clamp sits higher than the other personalities.
type FeedbackBridge struct {
	*core
}

// NewFeedbackBridge builds a feedback bridge for an adjacent layer pair.
func NewFeedbackBridge(name string, source, target layers.Layer, profile Profile) (*FeedbackBridge, error) {
	c, err := newCore(name, source, target, profile)
	if err != nil {
		return nil, err
	}
	return &FeedbackBridge{core: c}, nil
}

func (b *FeedbackBridge) Forward(s *layers.State) (*layers.State, error) {
	if err := b.checkForward(s); err != nil {
		return nil, err
	}
	b.countForward()
	prof, res := b.snapshot()

	factor := res
	if s.Confidence < prof.PenaltyThreshold {
		factor *= prof.ForwardPenalty
	}

	out := s.Derive(b.target)
	out.ScaleConfidence(factor)
	out.SetMeta("bridge", b.name)
	return out, nil
}

func (b *FeedbackBridge) Backward(s *layers.State) (*layers.State, error) {
	if err := b.checkBackward(s); err != nil {
		return nil, err
	}
	b.countBackward()
	prof, res := b.snapshot()

	out := s.Derive(b.source)
	out.ScaleConfidence(res * prof.BackwardGain)
	out.SetMeta("bridge", b.name)
	return out, nil
}

func (b *FeedbackBridge) Amplify(up, down *layers.State, maxIterations int) AmplifyResult {
	return b.amplify(up, down, maxIterations)
}

// #endregion feedback
