package convergence

// #region imports
import (
	"math"
	"sync"
)

// #endregion imports

// #region status

// Status classifies one observed step of an iterating value.
type Status int

const (
	StatusInProgress Status = iota
	StatusConverged
	StatusDiverging
)

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusDiverging:
		return "diverging"
	default:
		return "in_progress"
	}
}

// #endregion status

// #region config

// DetectorConfig holds the thresholds the detector classifies against.
type DetectorConfig struct {
	Threshold           float64 // delta below this counts toward convergence
	ConsecutiveRequired int     // steps the delta must stay below Threshold
	DivergenceCeiling   float64 // any value above this is diverging
	MaxGrowthRate       float64 // new/old ratio above this is diverging
	WindowSize          int     // deltas retained for diagnostics
}

// DefaultDetectorConfig returns the standard thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Threshold:           1e-3,
		ConsecutiveRequired: 3,
		DivergenceCeiling:   100.0,
		MaxGrowthRate:       10.0,
		WindowSize:          16,
	}
}

// #endregion config

// #region detector

// Detector consumes a stream of (old, new) value pairs and classifies each
// step as in-progress, converged, or diverging. Safe for use from multiple
// goroutines, though each engine run owns its own detector.
type Detector struct {
	mu          sync.Mutex
	config      DetectorConfig
	deltas      []float64
	consecutive int
	status      Status
}

// NewDetector creates a detector. Zero-value config fields fall back to
// defaults.
func NewDetector(config DetectorConfig) *Detector {
	def := DefaultDetectorConfig()
	if config.Threshold <= 0 {
		config.Threshold = def.Threshold
	}
	if config.ConsecutiveRequired <= 0 {
		config.ConsecutiveRequired = def.ConsecutiveRequired
	}
	if config.DivergenceCeiling <= 0 {
		config.DivergenceCeiling = def.DivergenceCeiling
	}
	if config.MaxGrowthRate <= 0 {
		config.MaxGrowthRate = def.MaxGrowthRate
	}
	if config.WindowSize <= 0 {
		config.WindowSize = def.WindowSize
	}
	return &Detector{config: config}
}

// Observe records one step and returns its classification. Divergence is
// sticky for the value that caused it but the detector keeps accepting
// observations; callers normally stop on the first diverging step.
func (d *Detector) Observe(oldValue, newValue float64) Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	if math.IsNaN(newValue) || math.IsInf(newValue, 0) {
		d.status = StatusDiverging
		return d.status
	}
	if newValue > d.config.DivergenceCeiling {
		d.status = StatusDiverging
		return d.status
	}
	if oldValue > 0 && newValue/oldValue > d.config.MaxGrowthRate {
		d.status = StatusDiverging
		return d.status
	}

	delta := math.Abs(newValue - oldValue)
	d.deltas = append(d.deltas, delta)
	if len(d.deltas) > d.config.WindowSize {
		d.deltas = d.deltas[len(d.deltas)-d.config.WindowSize:]
	}

	if delta < d.config.Threshold {
		d.consecutive++
	} else {
		d.consecutive = 0
	}

	if d.consecutive >= d.config.ConsecutiveRequired {
		d.status = StatusConverged
	} else {
		d.status = StatusInProgress
	}
	return d.status
}

// Status returns the classification of the most recent observation.
func (d *Detector) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Reset clears all observed history.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deltas = nil
	d.consecutive = 0
	d.status = StatusInProgress
}

// #endregion detector

// #region diagnostics

// MovingAverage is the mean of the retained delta window, 0 when empty.
func (d *Detector) MovingAverage() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.deltas) == 0 {
		return 0
	}
	var sum float64
	for _, v := range d.deltas {
		sum += v
	}
	return sum / float64(len(d.deltas))
}

// Trend is the recent-half delta sum minus the earlier-half sum. Negative
// means deltas are shrinking.
func (d *Detector) Trend() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.deltas) < 2 {
		return 0
	}
	mid := len(d.deltas) / 2
	var early, recent float64
	for _, v := range d.deltas[:mid] {
		early += v
	}
	for _, v := range d.deltas[mid:] {
		recent += v
	}
	return recent - early
}

// #endregion diagnostics
