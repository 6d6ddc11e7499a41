package bridge

// #region imports
import (
	"fmt"
	"sync"

	"github.com/keplerlabs/resonet/internal/layers"
)

// #endregion imports

// #region pair-key

// pairKey is a direction-insensitive layer pair: lower ordinal first.
type pairKey struct {
	lo, hi layers.Layer
}

func keyFor(a, b layers.Layer) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// #endregion pair-key

// #region network

// Network is the registry of bridges. Bridges are registered once and read
// by many concurrent callers; at most one bridge exists per layer pair,
// looked up regardless of direction. The network also carries the one
// global amplification multiplier applied network-wide.
type Network struct {
	mu            sync.RWMutex
	bridges       []Bridge
	byPair        map[pairKey]Bridge
	byLayer       map[layers.Layer][]Bridge
	amplification float64
}

// NewNetwork returns an empty network with global amplification 1.0.
func NewNetwork() *Network {
	return &Network{
		byPair:        make(map[pairKey]Bridge),
		byLayer:       make(map[layers.Layer][]Bridge),
		amplification: 1.0,
	}
}

// Register adds a bridge. A second bridge for the same pair is rejected.
func (n *Network) Register(b Bridge) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := keyFor(b.Source(), b.Target())
	if existing, ok := n.byPair[key]; ok {
		return fmt.Errorf("network: pair %s↔%s already served by bridge %s",
			b.Source().Name(), b.Target().Name(), existing.Name())
	}
	n.bridges = append(n.bridges, b)
	n.byPair[key] = b
	n.byLayer[b.Source()] = append(n.byLayer[b.Source()], b)
	n.byLayer[b.Target()] = append(n.byLayer[b.Target()], b)
	return nil
}

// Between returns the bridge serving the pair (a, b), in either direction.
func (n *Network) Between(a, b layers.Layer) (Bridge, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	br, ok := n.byPair[keyFor(a, b)]
	return br, ok
}

// ForLayer returns every bridge touching layer l. The slice is a copy.
func (n *Network) ForLayer(l layers.Layer) []Bridge {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Bridge, len(n.byLayer[l]))
	copy(out, n.byLayer[l])
	return out
}

// All returns every registered bridge. The slice is a copy.
func (n *Network) All() []Bridge {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Bridge, len(n.bridges))
	copy(out, n.bridges)
	return out
}

// Len reports the number of registered bridges.
func (n *Network) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.bridges)
}

// #endregion network

// #region amplification

// GlobalAmplification returns the network-wide confidence multiplier.
func (n *Network) GlobalAmplification() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.amplification
}

// SetGlobalAmplification replaces the network-wide multiplier. Values
// at or below zero reset it to 1.0.
func (n *Network) SetGlobalAmplification(f float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if f <= 0 {
		f = 1.0
	}
	n.amplification = f
}

// #endregion amplification

// #region stats

// AverageResonance is the unweighted mean resonance across all registered
// bridges, or 0 for an empty network.
func (n *Network) AverageResonance() float64 {
	all := n.All()
	if len(all) == 0 {
		return 0
	}
	var sum float64
	for _, b := range all {
		sum += b.Resonance()
	}
	return sum / float64(len(all))
}

// #endregion stats

// #region propagate

// SignalResult is one bridge's contribution to a propagated signal.
// Each bridge's result is independent; a failed bridge does not abort
// the batch.
type SignalResult struct {
	Bridge string
	State  *layers.State
	Err    error
}

// PropagateSignal calls the directed transform on every bridge touching
// the signal's layer: forward for bridges whose source matches, backward
// for bridges whose target matches. Bridges touching the layer from the
// wrong side for the requested direction are skipped.
func (n *Network) PropagateSignal(s *layers.State, dir Direction) []SignalResult {
	touching := n.ForLayer(s.Layer)
	results := make([]SignalResult, 0, len(touching))
	for _, b := range touching {
		switch dir {
		case DirForward:
			if b.Source() != s.Layer {
				continue
			}
			out, err := b.Forward(s)
			results = append(results, SignalResult{Bridge: b.Name(), State: out, Err: err})
		case DirBackward:
			if b.Target() != s.Layer {
				continue
			}
			out, err := b.Backward(s)
			results = append(results, SignalResult{Bridge: b.Name(), State: out, Err: err})
		}
	}
	return results
}

// #endregion propagate

// #region default-network

// DefaultNetwork wires the canonical seven-layer stack: resonant bridges
// on the early sensory pairs, a feedback bridge into intuition, a gated
// bridge guarding reasoning→self_model, and a feedback bridge closing the
// loop into integration.
func DefaultNetwork() (*Network, error) {
	n := NewNetwork()

	builders := []func() (Bridge, error){
		func() (Bridge, error) {
			return NewResonantBridge("perception-attention", layers.Perception, layers.Attention, DefaultResonantProfile())
		},
		func() (Bridge, error) {
			return NewResonantBridge("attention-memory", layers.Attention, layers.Memory, DefaultResonantProfile())
		},
		func() (Bridge, error) {
			return NewFeedbackBridge("memory-intuition", layers.Memory, layers.Intuition, DefaultFeedbackProfile())
		},
		func() (Bridge, error) {
			return NewResonantBridge("intuition-reasoning", layers.Intuition, layers.Reasoning, DefaultResonantProfile())
		},
		func() (Bridge, error) {
			return NewGatedBridge("reasoning-selfmodel", layers.Reasoning, layers.SelfModel, DefaultGatedProfile())
		},
		func() (Bridge, error) {
			return NewFeedbackBridge("selfmodel-integration", layers.SelfModel, layers.Integration, DefaultFeedbackProfile())
		},
	}

	for _, build := range builders {
		b, err := build()
		if err != nil {
			return nil, err
		}
		if err := n.Register(b); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// #endregion default-network
