package layers

// #region layer-type

// Layer identifies one of the seven fixed processing stages in the
// propagation topology. Layers are process-wide constants; the topology
// is a sparse graph, not a fully connected one.
type Layer int

const (
	Perception Layer = iota + 1
	Attention
	Memory
	Intuition
	Reasoning
	SelfModel
	Integration
)

// #endregion layer-type

// #region names

var layerNames = map[Layer]string{
	Perception:  "perception",
	Attention:   "attention",
	Memory:      "memory",
	Intuition:   "intuition",
	Reasoning:   "reasoning",
	SelfModel:   "self_model",
	Integration: "integration",
}

// Name returns the layer's stable lowercase name, or "unknown".
func (l Layer) Name() string {
	if n, ok := layerNames[l]; ok {
		return n
	}
	return "unknown"
}

// Ordinal returns the layer's position 1..7, or 0 for an invalid layer.
func (l Layer) Ordinal() int {
	if l < Perception || l > Integration {
		return 0
	}
	return int(l)
}

// Valid reports whether l is one of the seven defined layers.
func (l Layer) Valid() bool {
	return l >= Perception && l <= Integration
}

// #endregion names

// #region topology

// topology is the fixed adjacency list. Each layer may only bridge to the
// layers listed here; lookups are symmetric by construction.
var topology = map[Layer][]Layer{
	Perception:  {Attention, Memory},
	Attention:   {Perception, Memory, Intuition},
	Memory:      {Perception, Attention, Intuition, Reasoning},
	Intuition:   {Attention, Memory, Reasoning, SelfModel},
	Reasoning:   {Memory, Intuition, SelfModel, Integration},
	SelfModel:   {Intuition, Reasoning, Integration},
	Integration: {Reasoning, SelfModel},
}

// All returns every layer in ascending ordinal order.
func All() []Layer {
	return []Layer{Perception, Attention, Memory, Intuition, Reasoning, SelfModel, Integration}
}

// ConnectedTo returns the layers l may bridge to, in ascending order.
// The returned slice is a copy.
func ConnectedTo(l Layer) []Layer {
	adj, ok := topology[l]
	if !ok {
		return nil
	}
	out := make([]Layer, len(adj))
	copy(out, adj)
	return out
}

// Adjacent reports whether a direct bridge between a and b is allowed
// by the topology. A layer is never adjacent to itself.
func Adjacent(a, b Layer) bool {
	if a == b {
		return false
	}
	for _, n := range topology[a] {
		if n == b {
			return true
		}
	}
	return false
}

// #endregion topology
