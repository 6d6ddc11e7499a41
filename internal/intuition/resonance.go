package intuition

// #region imports
import (
	"fmt"
)

// #endregion imports

// #region config

// FieldConfig tunes spreading activation.
type FieldConfig struct {
	DecayRate           float64 // applied per hop
	CrossDomainWeight   float64 // applied per hop alongside decay
	ActivationThreshold float64 // patterns below this do not propagate
	MaxSteps            int
	MaxActive           int // hard cap on simultaneously active patterns
}

// DefaultFieldConfig returns the standard spreading parameters.
func DefaultFieldConfig() FieldConfig {
	return FieldConfig{
		DecayRate:           0.9,
		CrossDomainWeight:   0.7,
		ActivationThreshold: 0.01,
		MaxSteps:            5,
		MaxActive:           100,
	}
}

// #endregion config

// #region types

// SeedActivatedBy marks activations that were query roots rather than
// spread from another pattern.
const SeedActivatedBy = "seed"

// Activation is one pattern's state inside a resonance result.
type Activation struct {
	Level       float64
	Step        int    // the round at which the pattern (re)activated
	ActivatedBy string // activating pattern id, or SeedActivatedBy
}

// FieldResult is the outcome of one spreading-activation run.
type FieldResult struct {
	Activations map[string]Activation
	Steps       int
	Total       float64
	Peak        float64
	CrossDomain int  // activations that crossed a domain boundary
	Saturated   bool // the active cap stopped at least one spread
}

// #endregion types

// #region field

// ResonanceField spreads activation from seed patterns across cross-links
// in the backing memory. The field itself holds no state between runs;
// each Activate call reads the memory under its shared lock.
type ResonanceField struct {
	memory *Memory
	config FieldConfig
}

// NewResonanceField creates a field over memory. Zero-value config fields
// fall back to defaults.
func NewResonanceField(memory *Memory, config FieldConfig) *ResonanceField {
	def := DefaultFieldConfig()
	if config.DecayRate <= 0 {
		config.DecayRate = def.DecayRate
	}
	if config.CrossDomainWeight <= 0 {
		config.CrossDomainWeight = def.CrossDomainWeight
	}
	if config.ActivationThreshold <= 0 {
		config.ActivationThreshold = def.ActivationThreshold
	}
	if config.MaxSteps <= 0 {
		config.MaxSteps = def.MaxSteps
	}
	if config.MaxActive <= 0 {
		config.MaxActive = def.MaxActive
	}
	return &ResonanceField{memory: memory, config: config}
}

// Activate seeds the field with the given pattern ids and spreads
// activation until a quiet round, the step cap, or the active cap.
// Seeding more patterns than the active cap fails with ErrFieldSaturated;
// an unknown seed fails with ErrPatternNotFound.
func (f *ResonanceField) Activate(seedIDs []string) (FieldResult, error) {
	result := FieldResult{Activations: make(map[string]Activation)}

	if len(seedIDs) > f.config.MaxActive {
		return result, fmt.Errorf("%d seeds against cap %d: %w",
			len(seedIDs), f.config.MaxActive, ErrFieldSaturated)
	}

	for _, id := range seedIDs {
		p, err := f.memory.Get(id)
		if err != nil {
			return result, fmt.Errorf("seed %s: %w", id, err)
		}
		result.Activations[id] = Activation{
			Level:       p.effectiveWeight(),
			Step:        0,
			ActivatedBy: SeedActivatedBy,
		}
	}

	for step := 1; step <= f.config.MaxSteps; step++ {
		spread := f.spreadOnce(step, &result)
		result.Steps = step
		if spread == 0 {
			break
		}
	}

	for _, a := range result.Activations {
		result.Total += a.Level
		if a.Level > result.Peak {
			result.Peak = a.Level
		}
	}
	return result, nil
}

// spreadOnce runs one round: every active pattern at or above the
// threshold pushes decayed activation to cross-linked patterns that are
// not yet active, respecting the active cap. Returns the number of new
// activations.
func (f *ResonanceField) spreadOnce(step int, result *FieldResult) int {
	type pending struct {
		target string
		act    Activation
		cross  bool
	}
	var newly []pending

	for sourceID, a := range result.Activations {
		if a.Level < f.config.ActivationThreshold {
			continue
		}
		source, err := f.memory.Get(sourceID)
		if err != nil {
			continue // removed mid-run; skip
		}
		// The spread level may land below the threshold; the target is
		// still recorded, it just cannot propagate in later rounds.
		level := a.Level * f.config.DecayRate * f.config.CrossDomainWeight
		for _, targetID := range source.Links {
			if _, active := result.Activations[targetID]; active {
				continue
			}
			target, err := f.memory.Get(targetID)
			if err != nil {
				continue
			}
			newly = append(newly, pending{
				target: targetID,
				act:    Activation{Level: level, Step: step, ActivatedBy: sourceID},
				cross:  target.Domain != source.Domain,
			})
		}
	}

	added := 0
	for _, n := range newly {
		if _, active := result.Activations[n.target]; active {
			continue // two sources reached it this round; first wins
		}
		if len(result.Activations) >= f.config.MaxActive {
			result.Saturated = true
			break
		}
		result.Activations[n.target] = n.act
		if n.cross {
			result.CrossDomain++
		}
		added++
	}
	return added
}

// #endregion field
