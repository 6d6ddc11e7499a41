package patternstore

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/keplerlabs/resonet/internal/intuition"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "patterns.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func samplePattern() intuition.PatternData {
	return intuition.PatternData{
		ID:          "pat-1",
		Domain:      string(intuition.DomainPhysical),
		Fingerprint: []float64{0.1, -0.5, 2.25},
		Weight:      1.35,
		Successes:   3,
		Attempts:    5,
		Links:       []string{"pat-2", "pat-3"},
		Tags:        []string{"auto", "motion"},
		Activations: 7,
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := tempStore(t)
	want := samplePattern()
	if err := s.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load(want.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ID != want.ID || got.Domain != want.Domain {
		t.Fatalf("identity lost: %+v", got)
	}
	if len(got.Fingerprint) != len(want.Fingerprint) {
		t.Fatalf("fingerprint length changed: %v", got.Fingerprint)
	}
	for i := range want.Fingerprint {
		if got.Fingerprint[i] != want.Fingerprint[i] {
			t.Fatalf("fingerprint component %d: want %f, got %f",
				i, want.Fingerprint[i], got.Fingerprint[i])
		}
	}
	if got.Weight != want.Weight || got.Successes != want.Successes || got.Attempts != want.Attempts {
		t.Fatalf("reinforcement state lost: %+v", got)
	}
	if len(got.Links) != 2 || got.Links[0] != "pat-2" {
		t.Fatalf("links lost: %v", got.Links)
	}
	if len(got.Tags) != 2 || got.Tags[1] != "motion" {
		t.Fatalf("tags lost: %v", got.Tags)
	}
}

func TestSaveUpserts(t *testing.T) {
	s := tempStore(t)
	p := samplePattern()
	if err := s.Save(p); err != nil {
		t.Fatalf("save: %v", err)
	}
	p.Weight = 9.5
	p.Links = []string{"pat-9"}
	if err := s.Save(p); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := s.Load(p.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Weight != 9.5 || len(got.Links) != 1 {
		t.Fatalf("upsert did not replace: %+v", got)
	}

	all, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("upsert must not duplicate rows, got %d", len(all))
	}
}

func TestSaveAllTransactional(t *testing.T) {
	s := tempStore(t)
	batch := []intuition.PatternData{samplePattern(), {
		ID:          "pat-2",
		Domain:      string(intuition.DomainSocial),
		Fingerprint: []float64{1},
		Weight:      1,
	}}
	if err := s.SaveAll(batch); err != nil {
		t.Fatalf("save all: %v", err)
	}
	all, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(all))
	}
}

func TestLoadMissing(t *testing.T) {
	s := tempStore(t)
	if _, err := s.Load("missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := tempStore(t)
	p := samplePattern()
	s.Save(p)
	if err := s.Delete(p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Load(p.ID); err == nil {
		t.Fatal("deleted pattern should not load")
	}
}

func TestMemorySnapshotPersists(t *testing.T) {
	s := tempStore(t)
	m := intuition.NewMemory(intuition.MemoryConfig{})
	a := intuition.NewPattern(intuition.DomainPhysical, []float64{1, 0})
	b := intuition.NewPattern(intuition.DomainAbstract, []float64{0, 1})
	if err := m.Register(a); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(b); err != nil {
		t.Fatalf("register: %v", err)
	}
	m.AddLink(a.ID, b.ID)

	if err := s.SaveAll(m.Snapshot()); err != nil {
		t.Fatalf("persist snapshot: %v", err)
	}

	restored := intuition.NewMemory(intuition.MemoryConfig{})
	rows, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, d := range rows {
		if err := restored.Register(intuition.FromData(d)); err != nil {
			t.Fatalf("restore %s: %v", d.ID, err)
		}
	}
	if restored.Len() != 2 {
		t.Fatalf("expected 2 restored patterns, got %d", restored.Len())
	}
	ra, err := restored.Get(a.ID)
	if err != nil {
		t.Fatalf("restored pattern lookup: %v", err)
	}
	if len(ra.Links) != 1 || ra.Links[0] != b.ID {
		t.Fatalf("cross-links lost through persistence: %v", ra.Links)
	}
}
