package intuition

// #region imports
import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"gonum.org/v1/gonum/floats"
)

// #endregion imports

// #region config

// MemoryConfig tunes pattern storage and search.
type MemoryConfig struct {
	MaxPatterns int // registration fails with ErrMemoryFull beyond this
	MaxResults  int // similarity results are truncated to this cap
	CacheSize   int // LRU entries for repeated similarity queries; 0 disables
}

// DefaultMemoryConfig returns the standard limits.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		MaxPatterns: 10000,
		MaxResults:  10,
		CacheSize:   256,
	}
}

// #endregion config

// #region search-result

// SearchResult is one scored match from a similarity query.
type SearchResult struct {
	Pattern    *Pattern
	Similarity float64 // raw cosine similarity, in [-1, 1]
	Weighted   float64 // similarity × weight × max(successRate, 0.1)
}

// #endregion search-result

// #region memory

// Memory stores patterns indexed by domain and tag. Reads take the shared
// lock so concurrent queries proceed together; registration, reinforcement
// and link changes take the exclusive lock. A find-then-reinforce sequence
// is not transactional across calls.
type Memory struct {
	mu       sync.RWMutex
	config   MemoryConfig
	patterns map[string]*Pattern
	byDomain map[Domain][]string
	byTag    map[string][]string
	cache    *lru.Cache[string, []SearchResult]
}

// NewMemory creates an empty memory. Zero-value config fields fall back to
// defaults.
func NewMemory(config MemoryConfig) *Memory {
	def := DefaultMemoryConfig()
	if config.MaxPatterns <= 0 {
		config.MaxPatterns = def.MaxPatterns
	}
	if config.MaxResults <= 0 {
		config.MaxResults = def.MaxResults
	}
	m := &Memory{
		config:   config,
		patterns: make(map[string]*Pattern),
		byDomain: make(map[Domain][]string),
		byTag:    make(map[string][]string),
	}
	if config.CacheSize > 0 {
		// lru.New only fails on a non-positive size.
		m.cache, _ = lru.New[string, []SearchResult](config.CacheSize)
	}
	return m
}

// Len reports the number of stored patterns.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.patterns)
}

// #endregion memory

// #region register

// Register validates and stores a pattern. The fingerprint must be
// non-empty with finite components only; this is checked here and nowhere
// else. A full memory rejects with ErrMemoryFull.
func (m *Memory) Register(p *Pattern) error {
	if len(p.Fingerprint) == 0 {
		return ErrEmptyFingerprint
	}
	for i, v := range p.Fingerprint {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("component %d: %w", i, ErrInvalidFingerprint)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.patterns) >= m.config.MaxPatterns {
		return ErrMemoryFull
	}
	if _, exists := m.patterns[p.ID]; exists {
		return fmt.Errorf("pattern %s already registered", p.ID)
	}
	if p.Weight <= 0 {
		p.Weight = 1.0
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	m.patterns[p.ID] = p
	m.byDomain[p.Domain] = append(m.byDomain[p.Domain], p.ID)
	for _, tag := range p.Tags {
		m.byTag[tag] = append(m.byTag[tag], p.ID)
	}
	m.invalidate()
	return nil
}

// Remove deletes a pattern explicitly. Patterns are never removed
// implicitly.
func (m *Memory) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patterns[id]
	if !ok {
		return ErrPatternNotFound
	}
	delete(m.patterns, id)
	m.byDomain[p.Domain] = removeID(m.byDomain[p.Domain], id)
	for _, tag := range p.Tags {
		m.byTag[tag] = removeID(m.byTag[tag], id)
	}
	m.invalidate()
	return nil
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// #endregion register

// #region lookup

// Get returns the stored pattern for id.
func (m *Memory) Get(id string) (*Pattern, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patterns[id]
	if !ok {
		return nil, ErrPatternNotFound
	}
	return p, nil
}

// ByDomain returns the ids registered under a domain. The slice is a copy.
func (m *Memory) ByDomain(d Domain) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.byDomain[d]...)
}

// ByTag returns the ids carrying a tag. The slice is a copy.
func (m *Memory) ByTag(tag string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.byTag[tag]...)
}

// Snapshot returns transfer forms for every stored pattern, for the
// persistence boundary.
func (m *Memory) Snapshot() []PatternData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PatternData, 0, len(m.patterns))
	for _, p := range m.patterns {
		out = append(out, p.Data())
	}
	return out
}

// #endregion lookup

// #region search

// Search scores every stored fingerprint against query by cosine
// similarity weighted with the pattern's effective weight, sorted
// descending and truncated to the configured cap (or limit, if smaller
// and positive).
func (m *Memory) Search(query []float64, limit int) []SearchResult {
	return m.search(query, "", limit)
}

// SearchDomain restricts Search to one domain.
func (m *Memory) SearchDomain(d Domain, query []float64, limit int) []SearchResult {
	return m.search(query, d, limit)
}

func (m *Memory) search(query []float64, domain Domain, limit int) []SearchResult {
	if limit <= 0 || limit > m.config.MaxResults {
		limit = m.config.MaxResults
	}

	key := cacheKey(query, domain, limit)
	if m.cache != nil {
		if hit, ok := m.cache.Get(key); ok {
			return hit
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var candidates []string
	if domain != "" {
		candidates = m.byDomain[domain]
	} else {
		candidates = make([]string, 0, len(m.patterns))
		for id := range m.patterns {
			candidates = append(candidates, id)
		}
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, id := range candidates {
		p := m.patterns[id]
		sim := CosineSimilarity(query, p.Fingerprint)
		results = append(results, SearchResult{
			Pattern:    p,
			Similarity: sim,
			Weighted:   sim * p.effectiveWeight(),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Weighted != results[j].Weighted {
			return results[i].Weighted > results[j].Weighted
		}
		return results[i].Pattern.ID < results[j].Pattern.ID
	})
	if len(results) > limit {
		results = results[:limit]
	}

	// The add must stay under the read lock: a writer holding the
	// exclusive lock purges after mutating, so an entry scored against the
	// old contents can never land after that purge.
	if m.cache != nil {
		m.cache.Add(key, results)
	}
	return results
}

// CosineSimilarity is the cosine of the angle between a and b, bounded to
// [-1, 1]. Mismatched lengths or zero vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	sim := floats.Dot(a, b) / (na * nb)
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return sim
}

func cacheKey(query []float64, domain Domain, limit int) string {
	var sb strings.Builder
	sb.WriteString(string(domain))
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(limit))
	for _, v := range query {
		sb.WriteByte('|')
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return sb.String()
}

// invalidate drops cached query results. Callers hold the write lock.
func (m *Memory) invalidate() {
	if m.cache != nil {
		m.cache.Purge()
	}
}

// #endregion search

// #region reinforcement

// RecordSuccess marks an activation that worked out: weight grows 5%
// (capped at MaxWeight) and the success rate is recomputed.
func (m *Memory) RecordSuccess(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patterns[id]
	if !ok {
		return ErrPatternNotFound
	}
	p.Attempts++
	p.Successes++
	p.Weight = math.Min(p.Weight*1.05, MaxWeight)
	p.Activations++
	p.LastActive = time.Now().UTC()
	m.invalidate()
	return nil
}

// RecordFailure marks an activation that failed: weight shrinks 5%
// (floored at MinWeight).
func (m *Memory) RecordFailure(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patterns[id]
	if !ok {
		return ErrPatternNotFound
	}
	p.Attempts++
	p.Weight = math.Max(p.Weight*0.95, MinWeight)
	p.Activations++
	p.LastActive = time.Now().UTC()
	m.invalidate()
	return nil
}

// AdjustWeight applies a direct additive adjustment, clamped to the
// reinforcement bounds.
func (m *Memory) AdjustWeight(id string, delta float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patterns[id]
	if !ok {
		return ErrPatternNotFound
	}
	w := p.Weight + delta
	if w < MinWeight {
		w = MinWeight
	}
	if w > MaxWeight {
		w = MaxWeight
	}
	p.Weight = w
	m.invalidate()
	return nil
}

// #endregion reinforcement

// #region links

// AddLink records a cross-domain link from id to targetID. Both patterns
// must exist; duplicate links are ignored.
func (m *Memory) AddLink(id, targetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patterns[id]
	if !ok {
		return fmt.Errorf("link source: %w", ErrPatternNotFound)
	}
	if _, ok := m.patterns[targetID]; !ok {
		return fmt.Errorf("link target: %w", ErrPatternNotFound)
	}
	for _, l := range p.Links {
		if l == targetID {
			return nil
		}
	}
	p.Links = append(p.Links, targetID)
	m.invalidate()
	return nil
}

// #endregion links
