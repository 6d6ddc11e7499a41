package layers

// #region imports
import (
	"time"

	"github.com/google/uuid"
)

// #endregion imports

// #region payload

// PayloadKind discriminates the payload variant carried by a State.
type PayloadKind int

const (
	PayloadEmpty PayloadKind = iota
	PayloadText
	PayloadVector
	PayloadScalar
)

// Payload is the value a state carries between layers. The core does not
// interpret it except for the intuition subsystem, which expects a vector
// or scalar. Exactly one variant is set, per Kind.
type Payload struct {
	Kind   PayloadKind
	Text   string
	Vector []float64
	Scalar float64
}

// TextPayload wraps a string.
func TextPayload(s string) Payload { return Payload{Kind: PayloadText, Text: s} }

// VectorPayload wraps a feature vector. The slice is not copied.
func VectorPayload(v []float64) Payload { return Payload{Kind: PayloadVector, Vector: v} }

// ScalarPayload wraps a single value.
func ScalarPayload(f float64) Payload { return Payload{Kind: PayloadScalar, Scalar: f} }

// AsVector returns the payload's feature vector: the vector variant
// directly, a scalar as a one-element vector, and ok=false otherwise.
func (p Payload) AsVector() ([]float64, bool) {
	switch p.Kind {
	case PayloadVector:
		return p.Vector, true
	case PayloadScalar:
		return []float64{p.Scalar}, true
	default:
		return nil, false
	}
}

// #endregion payload

// #region state

// State is the unit of value passed between layers. Confidence is
// non-negative and deliberately unbounded above 1.0 — amplification may
// push it higher. Bridges never mutate a state they did not produce:
// every transform returns a new State that records the source state's id
// as upstream provenance.
type State struct {
	Layer      Layer
	ID         string
	Payload    Payload
	Confidence float64
	Metadata   map[string]string
	Upstream   []string // ids of states this one was derived from
	Downstream []string // ids of states derived from this one
	CreatedAt  time.Time
	Iterations int // amplification iteration counter
}

// NewState creates a state on layer l with the default confidence of 1.0.
func NewState(l Layer, payload Payload) *State {
	return NewStateWithConfidence(l, payload, 1.0)
}

// NewStateWithConfidence creates a state with an explicit confidence.
// Negative confidence is clamped to 0.
func NewStateWithConfidence(l Layer, payload Payload, confidence float64) *State {
	if confidence < 0 {
		confidence = 0
	}
	return &State{
		Layer:      l,
		ID:         uuid.NewString(),
		Payload:    payload,
		Confidence: confidence,
		Metadata:   make(map[string]string),
		CreatedAt:  time.Now().UTC(),
	}
}

// #endregion state

// #region mutation

// ScaleConfidence multiplies the state's confidence by factor, clamping
// the result at 0, and increments the iteration counter. This is the only
// numeric mutation a State supports.
func (s *State) ScaleConfidence(factor float64) {
	c := s.Confidence * factor
	if c < 0 {
		c = 0
	}
	s.Confidence = c
	s.Iterations++
}

// SetMeta records a metadata entry, allocating the map if needed.
func (s *State) SetMeta(key, value string) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]string)
	}
	s.Metadata[key] = value
}

// Meta returns a metadata entry and whether it was present.
func (s *State) Meta(key string) (string, bool) {
	v, ok := s.Metadata[key]
	return v, ok
}

// AddUpstream appends a provenance id for the state this one was derived from.
func (s *State) AddUpstream(id string) {
	s.Upstream = append(s.Upstream, id)
}

// AddDownstream appends the id of a state derived from this one.
func (s *State) AddDownstream(id string) {
	s.Downstream = append(s.Downstream, id)
}

// Derive returns a new state on layer l carrying the same payload, with
// provenance linked in both directions. The new state starts from this
// state's confidence; callers scale it afterwards.
func (s *State) Derive(l Layer) *State {
	next := NewStateWithConfidence(l, s.Payload, s.Confidence)
	next.AddUpstream(s.ID)
	s.AddDownstream(next.ID)
	return next
}

// Clone returns an independent copy with the same id and provenance.
// Used by amplify loops that mutate local copies.
func (s *State) Clone() *State {
	c := *s
	c.Metadata = make(map[string]string, len(s.Metadata))
	for k, v := range s.Metadata {
		c.Metadata[k] = v
	}
	c.Upstream = append([]string(nil), s.Upstream...)
	c.Downstream = append([]string(nil), s.Downstream...)
	return &c
}

// #endregion mutation
