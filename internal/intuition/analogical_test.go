package intuition

import (
	"errors"
	"math"
	"testing"
)

func TestTierBuckets(t *testing.T) {
	cases := []struct {
		strength float64
		want     Tier
	}{
		{0.9, TierStrong},
		{0.8, TierStrong},
		{0.6, TierModerate},
		{0.5, TierModerate},
		{0.4, TierWeak},
		{0.3, TierWeak},
		{0.2, TierTenuous},
	}
	for _, c := range cases {
		if got := TierFor(c.strength); got != c.want {
			t.Fatalf("strength %f: want %s, got %s", c.strength, c.want, got)
		}
	}
}

func TestAffinityHeuristics(t *testing.T) {
	tr := NewTransfer(TransferConfig{})
	if aff := tr.Affinity(DomainPhysical, DomainPhysical); aff != 1.0 {
		t.Fatalf("same-domain affinity should be 1.0, got %f", aff)
	}
	if aff := tr.Affinity(DomainPhysical, DomainAbstract); aff != 0.7 {
		t.Fatalf("physical↔abstract should use the heuristic 0.7, got %f", aff)
	}
	if a, b := tr.Affinity(DomainLinguistic, DomainSocial), tr.Affinity(DomainSocial, DomainLinguistic); a != b {
		t.Fatalf("heuristic pairs should seed symmetrically: %f vs %f", a, b)
	}
	if aff := tr.Affinity(DomainSocial, DomainTemporal); aff != 0.3 {
		t.Fatalf("unrelated pair should fall back to the default 0.3, got %f", aff)
	}
}

func TestTransferRejectsSameDomain(t *testing.T) {
	tr := NewTransfer(TransferConfig{})
	m := NewMemory(MemoryConfig{})
	src := register(t, m, DomainPhysical, []float64{1, 0})

	_, err := tr.Run(src, DomainPhysical, []float64{1, 0}, m)
	if !errors.Is(err, ErrSameDomainTransfer) {
		t.Fatalf("expected ErrSameDomainTransfer, got %v", err)
	}
}

func TestTransferFindsCrossDomainMatch(t *testing.T) {
	tr := NewTransfer(TransferConfig{})
	m := NewMemory(MemoryConfig{})
	src := register(t, m, DomainPhysical, []float64{1, 0, 0})
	// A near-aligned pattern in the target domain.
	target := register(t, m, DomainAbstract, []float64{0.95, 0.05, 0.02})

	res, err := tr.Run(src, DomainAbstract, []float64{1, 0, 0}, m)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !res.Matched {
		t.Fatal("aligned target pattern should match")
	}
	if res.Match.ID != target.ID {
		t.Fatalf("wrong match: %s", res.Match.ID)
	}
	if res.Affinity != 0.7 {
		t.Fatalf("physical→abstract affinity should be 0.7, got %f", res.Affinity)
	}
	want := res.Similarity * res.Affinity
	if math.Abs(res.Strength-want) > 1e-12 {
		t.Fatalf("strength must be similarity×affinity: want %f, got %f", want, res.Strength)
	}
	if res.Tier != TierFor(res.Strength) {
		t.Fatalf("tier should bucket the strength, got %s", res.Tier)
	}

	mappings := tr.Mappings(DomainPhysical, DomainAbstract)
	if len(mappings) != 1 || mappings[0].SourceID != src.ID || mappings[0].TargetID != target.ID {
		t.Fatalf("mapping not recorded: %+v", mappings)
	}
}

func TestTransferNoMatchIsNotAnError(t *testing.T) {
	tr := NewTransfer(TransferConfig{})
	m := NewMemory(MemoryConfig{})
	src := register(t, m, DomainPhysical, []float64{1, 0})
	// Orthogonal target-domain pattern only.
	register(t, m, DomainAbstract, []float64{0, 1})

	res, err := tr.Run(src, DomainAbstract, []float64{1, 0}, m)
	if err != nil {
		t.Fatalf("no-match transfer should not error: %v", err)
	}
	if res.Matched {
		t.Fatal("orthogonal pattern must not clear the threshold")
	}
	if len(tr.Mappings(DomainPhysical, DomainAbstract)) != 0 {
		t.Fatal("no mapping should be recorded without a match")
	}
}

func TestTransferIsDeterministic(t *testing.T) {
	tr := NewTransfer(TransferConfig{})
	m := NewMemory(MemoryConfig{CacheSize: 0})
	src := register(t, m, DomainPhysical, []float64{0.4, 0.6, 0.1})
	register(t, m, DomainAbstract, []float64{0.5, 0.5, 0.1})

	first, err := tr.Run(src, DomainAbstract, []float64{0.4, 0.6, 0.1}, m)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	second, err := tr.Run(src, DomainAbstract, []float64{0.4, 0.6, 0.1}, m)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if first.Similarity != second.Similarity || first.Strength != second.Strength {
		t.Fatalf("transfer must be deterministic: %+v vs %+v", first, second)
	}
}

func TestRecordFeedbackClamps(t *testing.T) {
	tr := NewTransfer(TransferConfig{})

	for i := 0; i < 200; i++ {
		tr.RecordFeedback(DomainPhysical, DomainAbstract, true)
	}
	if aff := tr.Affinity(DomainPhysical, DomainAbstract); aff != 1.0 {
		t.Fatalf("affinity must clamp at 1.0, got %f", aff)
	}

	for i := 0; i < 200; i++ {
		tr.RecordFeedback(DomainPhysical, DomainAbstract, false)
	}
	if aff := tr.Affinity(DomainPhysical, DomainAbstract); aff != 0.1 {
		t.Fatalf("affinity must floor at 0.1, got %f", aff)
	}

	// Feedback on an unseeded pair starts from the default.
	tr.RecordFeedback(DomainSocial, DomainTemporal, true)
	if aff := tr.Affinity(DomainSocial, DomainTemporal); math.Abs(aff-0.31) > 1e-12 {
		t.Fatalf("unseeded pair should nudge from the default: got %f", aff)
	}
}
