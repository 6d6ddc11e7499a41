package intuition

// #region imports
import (
	"math"
	"sync"
	"time"
)

// #endregion imports

// #region tiers

// Tier discretizes a mapping's strength.
type Tier string

const (
	TierStrong   Tier = "strong"   // ≥ 0.8
	TierModerate Tier = "moderate" // ≥ 0.5
	TierWeak     Tier = "weak"     // ≥ 0.3
	TierTenuous  Tier = "tenuous"
)

// TierFor buckets a strength value.
func TierFor(strength float64) Tier {
	switch {
	case strength >= 0.8:
		return TierStrong
	case strength >= 0.5:
		return TierModerate
	case strength >= 0.3:
		return TierWeak
	default:
		return TierTenuous
	}
}

// #endregion tiers

// #region config

// TransferConfig tunes analogical transfer.
type TransferConfig struct {
	// MatchThreshold is the minimum raw similarity a target-domain pattern
	// must clear — deliberately lower than normal search expectations.
	MatchThreshold float64
	// PerturbScale sizes the per-index sinusoidal offset applied to the
	// query, a stand-in for a learned domain-specific transform.
	PerturbScale float64
	// FeedbackStep is the affinity nudge per recorded outcome.
	FeedbackStep float64
	// DefaultAffinity applies to domain pairs with no heuristic entry.
	DefaultAffinity float64
}

// DefaultTransferConfig returns the standard transfer tuning.
func DefaultTransferConfig() TransferConfig {
	return TransferConfig{
		MatchThreshold:  0.3,
		PerturbScale:    0.05,
		FeedbackStep:    0.01,
		DefaultAffinity: 0.3,
	}
}

// #endregion config

// #region types

// domainPair is an ordered (source, target) domain pair.
type domainPair struct {
	from, to Domain
}

// Mapping is one discovered pattern-to-pattern correspondence across
// domains.
type Mapping struct {
	SourceID  string
	TargetID  string
	Strength  float64
	Tier      Tier
	CreatedAt time.Time
}

// TransferResult is the outcome of one transfer attempt. Matched=false
// means the target domain held nothing above the threshold; that is not
// an error.
type TransferResult struct {
	Matched    bool
	Match      *Pattern
	Similarity float64
	Affinity   float64
	Strength   float64 // Similarity × Affinity
	Tier       Tier
}

// #endregion types

// #region transfer

// Transfer maps patterns between domains using per-pair affinities and
// the discovered-mapping history. Affinities are mutated by feedback under
// the transfer's lock.
type Transfer struct {
	mu         sync.RWMutex
	config     TransferConfig
	affinities map[domainPair]float64
	mappings   map[domainPair][]Mapping
}

// NewTransfer creates a transfer engine with the heuristic base
// affinities: 1.0 same-domain, higher constants for semantically related
// pairs, the configured default otherwise.
func NewTransfer(config TransferConfig) *Transfer {
	def := DefaultTransferConfig()
	if config.MatchThreshold <= 0 {
		config.MatchThreshold = def.MatchThreshold
	}
	if config.PerturbScale <= 0 {
		config.PerturbScale = def.PerturbScale
	}
	if config.FeedbackStep <= 0 {
		config.FeedbackStep = def.FeedbackStep
	}
	if config.DefaultAffinity <= 0 {
		config.DefaultAffinity = def.DefaultAffinity
	}

	t := &Transfer{
		config:     config,
		affinities: make(map[domainPair]float64),
		mappings:   make(map[domainPair][]Mapping),
	}
	t.seedAffinities()
	return t
}

// seedAffinities installs the heuristic constants. Related pairs are
// symmetric.
func (t *Transfer) seedAffinities() {
	related := []struct {
		a, b Domain
		aff  float64
	}{
		{DomainPhysical, DomainAbstract, 0.7},
		{DomainLinguistic, DomainSocial, 0.75},
		{DomainTemporal, DomainPhysical, 0.65},
		{DomainAbstract, DomainLinguistic, 0.6},
	}
	for _, d := range Domains() {
		t.affinities[domainPair{d, d}] = 1.0
	}
	for _, r := range related {
		t.affinities[domainPair{r.a, r.b}] = r.aff
		t.affinities[domainPair{r.b, r.a}] = r.aff
	}
}

// Affinity returns the current affinity for the ordered pair.
func (t *Transfer) Affinity(from, to Domain) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if aff, ok := t.affinities[domainPair{from, to}]; ok {
		return aff
	}
	return t.config.DefaultAffinity
}

// Mappings returns the discovered mappings for the ordered pair. The
// slice is a copy.
func (t *Transfer) Mappings(from, to Domain) []Mapping {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Mapping(nil), t.mappings[domainPair{from, to}]...)
}

// #endregion transfer

// #region run

// Run transfers a source pattern's query into targetDomain: the query is
// deterministically perturbed by the pair affinity and a per-index
// sinusoid, then matched against the target domain at the lowered
// threshold. Same-domain transfer fails with ErrSameDomainTransfer.
func (t *Transfer) Run(source *Pattern, targetDomain Domain, query []float64, memory *Memory) (TransferResult, error) {
	if source.Domain == targetDomain {
		return TransferResult{}, ErrSameDomainTransfer
	}

	affinity := t.Affinity(source.Domain, targetDomain)
	perturbed := t.perturb(query, affinity)

	matches := memory.SearchDomain(targetDomain, perturbed, 1)
	if len(matches) == 0 || matches[0].Similarity < t.config.MatchThreshold {
		return TransferResult{Affinity: affinity}, nil
	}

	best := matches[0]
	strength := best.Similarity * affinity
	result := TransferResult{
		Matched:    true,
		Match:      best.Pattern,
		Similarity: best.Similarity,
		Affinity:   affinity,
		Strength:   strength,
		Tier:       TierFor(strength),
	}

	t.mu.Lock()
	pair := domainPair{source.Domain, targetDomain}
	t.mappings[pair] = append(t.mappings[pair], Mapping{
		SourceID:  source.ID,
		TargetID:  best.Pattern.ID,
		Strength:  strength,
		Tier:      result.Tier,
		CreatedAt: time.Now().UTC(),
	})
	t.mu.Unlock()

	return result, nil
}

// perturb scales the query by the affinity and adds a small sinusoidal
// per-index offset. Deterministic for a given query and affinity.
func (t *Transfer) perturb(query []float64, affinity float64) []float64 {
	out := make([]float64, len(query))
	for i, v := range query {
		out[i] = v*affinity + t.config.PerturbScale*math.Sin(float64(i))
	}
	return out
}

// RecordFeedback nudges the pair affinity by ±FeedbackStep, clamped to
// [0.1, 1.0].
func (t *Transfer) RecordFeedback(from, to Domain, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pair := domainPair{from, to}
	aff, ok := t.affinities[pair]
	if !ok {
		aff = t.config.DefaultAffinity
	}
	if success {
		aff += t.config.FeedbackStep
	} else {
		aff -= t.config.FeedbackStep
	}
	if aff < 0.1 {
		aff = 0.1
	}
	if aff > 1.0 {
		aff = 1.0
	}
	t.affinities[pair] = aff
}

// #endregion run
