package convergence

import (
	"math"
	"testing"
)

func TestDetectorConvergesAfterNSmallDeltas(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.Threshold = 0.01
	cfg.ConsecutiveRequired = 3
	d := NewDetector(cfg)

	v := 1.0
	steps := []float64{1.005, 1.009, 1.011} // deltas 0.005, 0.004, 0.002
	var status Status
	for i, next := range steps {
		status = d.Observe(v, next)
		v = next
		if i < 2 && status != StatusInProgress {
			t.Fatalf("step %d should be in progress, got %s", i, status)
		}
	}
	if status != StatusConverged {
		t.Fatalf("three consecutive sub-threshold deltas should converge, got %s", status)
	}
}

func TestDetectorResetsConsecutiveOnLargeDelta(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.Threshold = 0.01
	cfg.ConsecutiveRequired = 2
	d := NewDetector(cfg)

	d.Observe(1.0, 1.005) // small
	d.Observe(1.005, 1.5) // large, resets the streak
	if s := d.Observe(1.5, 1.504); s != StatusInProgress {
		t.Fatalf("streak should have reset, got %s", s)
	}
	if s := d.Observe(1.504, 1.507); s != StatusConverged {
		t.Fatalf("two fresh small deltas should converge, got %s", s)
	}
}

func TestDetectorDivergesOnCeiling(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.DivergenceCeiling = 50
	d := NewDetector(cfg)
	if s := d.Observe(40, 51); s != StatusDiverging {
		t.Fatalf("ceiling breach must diverge, got %s", s)
	}
}

func TestDetectorDivergesOnGrowthRate(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.MaxGrowthRate = 5
	d := NewDetector(cfg)
	if s := d.Observe(1.0, 6.0); s != StatusDiverging {
		t.Fatalf("growth ratio 6 against limit 5 must diverge, got %s", s)
	}
	d.Reset()
	if s := d.Observe(1.0, 4.0); s == StatusDiverging {
		t.Fatal("growth ratio 4 against limit 5 must not diverge")
	}
}

func TestDetectorDivergesOnNonFinite(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	if s := d.Observe(1.0, math.NaN()); s != StatusDiverging {
		t.Fatalf("NaN must diverge, got %s", s)
	}
	d.Reset()
	if s := d.Observe(1.0, math.Inf(1)); s != StatusDiverging {
		t.Fatalf("Inf must diverge, got %s", s)
	}
}

func TestDetectorDiagnostics(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.Threshold = 1e-9 // keep everything in progress
	d := NewDetector(cfg)

	// Deltas: 0.4, 0.3, 0.2, 0.1 — shrinking, so the trend is negative.
	values := []float64{1.0, 1.4, 1.7, 1.9, 2.0}
	for i := 0; i+1 < len(values); i++ {
		d.Observe(values[i], values[i+1])
	}
	wantAvg := (0.4 + 0.3 + 0.2 + 0.1) / 4
	if avg := d.MovingAverage(); math.Abs(avg-wantAvg) > 1e-9 {
		t.Fatalf("moving average: want %f, got %f", wantAvg, avg)
	}
	if tr := d.Trend(); tr >= 0 {
		t.Fatalf("shrinking deltas should give a negative trend, got %f", tr)
	}
}
