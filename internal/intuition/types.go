package intuition

// #region imports
import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// #endregion imports

// #region domain

// Domain is the coarse category tag used to route analogical transfer.
type Domain string

const (
	DomainPhysical   Domain = "physical"
	DomainLinguistic Domain = "linguistic"
	DomainSocial     Domain = "social"
	DomainTemporal   Domain = "temporal"
	DomainAbstract   Domain = "abstract"
)

// Domains returns the fixed domain enumeration.
func Domains() []Domain {
	return []Domain{DomainPhysical, DomainLinguistic, DomainSocial, DomainTemporal, DomainAbstract}
}

// #endregion domain

// #region pattern

// Weight bounds for reinforcement.
const (
	MinWeight = 0.1
	MaxWeight = 10.0
)

// Pattern is a weighted feature vector with a domain tag and cross-domain
// links. Mutated in place by reinforcement under the owning Memory's lock;
// never implicitly deleted.
type Pattern struct {
	ID          string
	Domain      Domain
	Fingerprint []float64
	Weight      float64
	Successes   int
	Attempts    int
	Links       []string // cross-domain links to other pattern ids
	Tags        []string
	Activations int
	CreatedAt   time.Time
	LastActive  time.Time
}

// NewPattern creates a pattern with weight 1.0 and a fresh id. The
// fingerprint slice is not copied; Memory.Register validates it.
func NewPattern(domain Domain, fingerprint []float64, tags ...string) *Pattern {
	return &Pattern{
		ID:          uuid.NewString(),
		Domain:      domain,
		Fingerprint: fingerprint,
		Weight:      1.0,
		Tags:        tags,
		CreatedAt:   time.Now().UTC(),
	}
}

// SuccessRate is successes/attempts, 0.5 before any feedback.
func (p *Pattern) SuccessRate() float64 {
	if p.Attempts == 0 {
		return 0.5
	}
	return float64(p.Successes) / float64(p.Attempts)
}

// effectiveWeight is the search weighting term: weight × max(rate, 0.1).
func (p *Pattern) effectiveWeight() float64 {
	rate := p.SuccessRate()
	if rate < 0.1 {
		rate = 0.1
	}
	return p.Weight * rate
}

// #endregion pattern

// #region dto

// PatternData is the pure data-transfer form of a Pattern for the
// persistence boundary. The core exposes it; an external collaborator
// serializes it. Conversion both ways copies all slices.
type PatternData struct {
	ID          string
	Domain      string
	Fingerprint []float64
	Weight      float64
	Successes   int
	Attempts    int
	Links       []string
	Tags        []string
	Activations int
	CreatedAt   time.Time
}

// Data converts a pattern to its transfer form.
func (p *Pattern) Data() PatternData {
	return PatternData{
		ID:          p.ID,
		Domain:      string(p.Domain),
		Fingerprint: append([]float64(nil), p.Fingerprint...),
		Weight:      p.Weight,
		Successes:   p.Successes,
		Attempts:    p.Attempts,
		Links:       append([]string(nil), p.Links...),
		Tags:        append([]string(nil), p.Tags...),
		Activations: p.Activations,
		CreatedAt:   p.CreatedAt,
	}
}

// FromData rebuilds a pattern from its transfer form.
func FromData(d PatternData) *Pattern {
	return &Pattern{
		ID:          d.ID,
		Domain:      Domain(d.Domain),
		Fingerprint: append([]float64(nil), d.Fingerprint...),
		Weight:      d.Weight,
		Successes:   d.Successes,
		Attempts:    d.Attempts,
		Links:       append([]string(nil), d.Links...),
		Tags:        append([]string(nil), d.Tags...),
		Activations: d.Activations,
		CreatedAt:   d.CreatedAt,
	}
}

// #endregion dto

// #region errors

var (
	ErrPatternNotFound    = errors.New("pattern not found")
	ErrInvalidFingerprint = errors.New("fingerprint has non-finite component")
	ErrEmptyFingerprint   = errors.New("fingerprint is empty")
	ErrMemoryFull         = errors.New("pattern memory is full")
	ErrFieldSaturated     = errors.New("resonance field active-pattern cap reached")
	ErrSameDomainTransfer = errors.New("analogical transfer requires distinct domains")
)

// #endregion errors
