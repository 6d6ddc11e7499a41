package intuition

// #region imports
import (
	"log"

	"github.com/keplerlabs/resonet/internal/layers"
)

// #endregion imports

// #region config

// HandlerConfig tunes the intuition layer handler.
type HandlerConfig struct {
	Domain Domain // domain for auto-discovered patterns
	// MatchThreshold is the weighted similarity a stored pattern must reach
	// for the incoming state to count as recognized.
	MatchThreshold float64
	// MaxBoost caps the confidence gain from resonance.
	MaxBoost float64
	// NoveltyPenalty scales confidence when no pattern matched and a new
	// one was discovered.
	NoveltyPenalty float64
	// SeedLimit bounds how many matches seed the resonance field.
	SeedLimit int
}

// DefaultHandlerConfig returns the standard handler tuning.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		Domain:         DomainAbstract,
		MatchThreshold: 0.5,
		MaxBoost:       0.25,
		NoveltyPenalty: 0.97,
		SeedLimit:      3,
	}
}

// #endregion config

// #region handler

// Handler couples the intuition subsystem to the propagation stack. It is
// installed for the Intuition layer: states carrying a feature vector are
// matched against pattern memory, recognition spreads through the
// resonance field and boosts confidence, and unrecognized vectors are
// auto-discovered as new patterns at a small confidence penalty.
type Handler struct {
	memory *Memory
	field  *ResonanceField
	config HandlerConfig
}

// NewHandler wires a handler over memory and field. Zero-value config
// fields fall back to defaults.
func NewHandler(memory *Memory, field *ResonanceField, config HandlerConfig) *Handler {
	def := DefaultHandlerConfig()
	if config.Domain == "" {
		config.Domain = def.Domain
	}
	if config.MatchThreshold <= 0 {
		config.MatchThreshold = def.MatchThreshold
	}
	if config.MaxBoost <= 0 {
		config.MaxBoost = def.MaxBoost
	}
	if config.NoveltyPenalty <= 0 || config.NoveltyPenalty > 1 {
		config.NoveltyPenalty = def.NoveltyPenalty
	}
	if config.SeedLimit <= 0 {
		config.SeedLimit = def.SeedLimit
	}
	return &Handler{memory: memory, field: field, config: config}
}

// Memory exposes the backing pattern memory for boundary callers.
func (h *Handler) Memory() *Memory { return h.memory }

// Process consumes an intuition-layer state and returns a new state on
// the same layer with resonance-adjusted confidence. States without a
// vector payload pass through untouched.
func (h *Handler) Process(s *layers.State) (*layers.State, error) {
	features, ok := s.Payload.AsVector()
	if !ok {
		return s, nil
	}

	matches := h.memory.Search(features, h.config.SeedLimit)
	if len(matches) == 0 || matches[0].Weighted < h.config.MatchThreshold {
		return h.discover(s, features)
	}

	seeds := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Weighted >= h.config.MatchThreshold {
			seeds = append(seeds, m.Pattern.ID)
		}
	}

	out := s.Derive(s.Layer)
	out.SetMeta("intuition", "recognized")
	out.SetMeta("pattern", matches[0].Pattern.ID)

	res, err := h.field.Activate(seeds)
	if err != nil {
		// Saturation degrades to the raw match boost.
		log.Printf("[INTUIT] resonance failed for %d seeds: %v", len(seeds), err)
		out.ScaleConfidence(1 + h.config.MaxBoost*matches[0].Similarity)
		return out, nil
	}

	boost := h.config.MaxBoost * matches[0].Similarity
	if res.Peak > 0 {
		boost *= res.Total / (res.Peak * float64(len(res.Activations)))
	}
	if boost > h.config.MaxBoost {
		boost = h.config.MaxBoost
	}
	out.ScaleConfidence(1 + boost)
	return out, nil
}

// discover registers the unrecognized feature vector as a new pattern and
// applies the novelty penalty.
func (h *Handler) discover(s *layers.State, features []float64) (*layers.State, error) {
	p := NewPattern(h.config.Domain, append([]float64(nil), features...), "auto")
	if err := h.memory.Register(p); err != nil {
		return nil, err
	}

	out := s.Derive(s.Layer)
	out.SetMeta("intuition", "discovered")
	out.SetMeta("pattern", p.ID)
	out.ScaleConfidence(h.config.NoveltyPenalty)
	return out, nil
}

// #endregion handler
