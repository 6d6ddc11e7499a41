package stack

import (
	"errors"
	"math"
	"testing"

	"github.com/keplerlabs/resonet/internal/bridge"
	"github.com/keplerlabs/resonet/internal/layers"
)

// neutralProfile removes the nonlinearities in the 0.3–0.9 band so the
// baseline multiplicative law is observable.
func neutralProfile() bridge.Profile {
	return bridge.Profile{
		Resonance:           1.0,
		BoostThreshold:      0.9,
		ForwardBoost:        1.1,
		PenaltyThreshold:    0.3,
		ForwardPenalty:      0.85,
		BackwardGain:        1.0,
		CouplingRate:        0.1,
		ClampMax:            2.0,
		AmplificationFactor: 1.0,
		ConvergenceEpsilon:  1e-4,
	}
}

func mustBridge(t *testing.T, name string, a, b layers.Layer) bridge.Bridge {
	t.Helper()
	br, err := bridge.NewResonantBridge(name, a, b, neutralProfile())
	if err != nil {
		t.Fatalf("build %s: %v", name, err)
	}
	return br
}

func TestForwardWithEmptyNetwork(t *testing.T) {
	n := bridge.NewNetwork()
	n.SetGlobalAmplification(1.3)
	o := NewOrchestrator(n, DefaultConfig())

	input := layers.NewStateWithConfidence(layers.Memory, layers.ScalarPayload(1), 0.6)
	res := o.ProcessForward(input)

	if len(res.States) != 1 {
		t.Fatalf("zero bridges: exactly one populated layer expected, got %d", len(res.States))
	}
	want := 0.6 * 1.3
	if math.Abs(res.Combined-want) > 1e-9 {
		t.Fatalf("combined must be input×globalAmplification: want %f, got %f", want, res.Combined)
	}
}

func TestForwardBaselineMultiplicativeLaw(t *testing.T) {
	n := bridge.NewNetwork()
	if err := n.Register(mustBridge(t, "p-a", layers.Perception, layers.Attention)); err != nil {
		t.Fatalf("register: %v", err)
	}
	o := NewOrchestrator(n, DefaultConfig())

	input := layers.NewStateWithConfidence(layers.Perception, layers.ScalarPayload(1), 0.8)
	res := o.ProcessForward(input)

	if got := res.Confidences[layers.Attention]; math.Abs(got-0.8) > 1e-9 {
		t.Fatalf("resonance=1, no nonlinearity: target confidence should be 0.8, got %f", got)
	}
	if len(res.States) != 2 {
		t.Fatalf("expected 2 populated layers, got %d", len(res.States))
	}
	want := math.Sqrt(0.8 * 0.8) // geometric mean of two equal values
	if math.Abs(res.Combined-want) > 1e-9 {
		t.Fatalf("combined: want %f, got %f", want, res.Combined)
	}
}

func TestForwardChainsWithGaps(t *testing.T) {
	n := bridge.NewNetwork()
	// Perception→Attention exists; Attention→Memory missing;
	// Attention→Intuition exists and should carry the frontier onward.
	n.Register(mustBridge(t, "p-a", layers.Perception, layers.Attention))
	n.Register(mustBridge(t, "a-i", layers.Attention, layers.Intuition))
	o := NewOrchestrator(n, DefaultConfig())

	res := o.ProcessForward(layers.NewStateWithConfidence(layers.Perception, layers.ScalarPayload(1), 0.8))
	if len(res.States) != 3 {
		t.Fatalf("expected perception, attention, intuition populated, got %d", len(res.States))
	}
	if _, ok := res.States[layers.Memory]; ok {
		t.Fatal("memory has no inbound bridge and must stay unpopulated")
	}
}

func TestForwardStopsOnBridgeFailure(t *testing.T) {
	n := bridge.NewNetwork()
	gateProf := bridge.DefaultGatedProfile()
	gateProf.MinGate = 0.99 // rejects everything in this test
	gated, err := bridge.NewGatedBridge("p-a", layers.Perception, layers.Attention, gateProf)
	if err != nil {
		t.Fatalf("build gated: %v", err)
	}
	n.Register(gated)
	o := NewOrchestrator(n, DefaultConfig())

	res := o.ProcessForward(layers.NewStateWithConfidence(layers.Perception, layers.ScalarPayload(1), 0.5))
	if len(res.States) != 1 {
		t.Fatalf("failed bridge must stop the path, got %d layers", len(res.States))
	}
	var failed bool
	for _, tr := range res.Trace {
		if tr.Err != "" {
			failed = true
		}
	}
	if !failed {
		t.Fatal("the failure must appear in the trace")
	}
}

func TestForwardRespectsConfidenceFloor(t *testing.T) {
	n := bridge.NewNetwork()
	n.Register(mustBridge(t, "p-a", layers.Perception, layers.Attention))
	cfg := DefaultConfig()
	cfg.MinConfidence = 0.5
	o := NewOrchestrator(n, cfg)

	res := o.ProcessForward(layers.NewStateWithConfidence(layers.Perception, layers.ScalarPayload(1), 0.1))
	if len(res.States) != 1 {
		t.Fatalf("sub-floor confidence must not propagate, got %d layers", len(res.States))
	}
}

func TestBidirectionalConverges(t *testing.T) {
	n := bridge.NewNetwork()
	n.Register(mustBridge(t, "p-a", layers.Perception, layers.Attention))
	n.Register(mustBridge(t, "a-m", layers.Attention, layers.Memory))
	o := NewOrchestrator(n, DefaultConfig())

	res := o.ProcessBidirectional(layers.NewStateWithConfidence(layers.Perception, layers.ScalarPayload(1), 0.8))

	if res.Iterations == 0 {
		t.Fatal("bidirectional must run at least one refinement iteration")
	}
	if !res.Converged && res.Iterations < DefaultConfig().MaxStackIterations {
		t.Fatalf("run stopped early without converging: %d iterations", res.Iterations)
	}
	if math.IsNaN(res.Combined) || math.IsInf(res.Combined, 0) {
		t.Fatalf("combined confidence must stay finite, got %f", res.Combined)
	}
	for l, c := range res.Confidences {
		if math.IsNaN(c) || math.IsInf(c, 0) || c < 0 {
			t.Fatalf("layer %s produced invalid confidence %f", l.Name(), c)
		}
	}
	if res.TotalAmplification < 1.0 {
		t.Fatalf("amplify passes ran with factor 1.0 bridges, total should be ≥1, got %f",
			res.TotalAmplification)
	}
}

func TestBidirectionalNeverReturnsError(t *testing.T) {
	// Empty network, gated-everything network, and handler failures all
	// still produce a result.
	o := NewOrchestrator(bridge.NewNetwork(), DefaultConfig())
	if res := o.ProcessBidirectional(layers.NewState(layers.Integration, layers.TextPayload("x"))); res == nil {
		t.Fatal("empty network run must still produce a result")
	}

	n := bridge.NewNetwork()
	gateProf := bridge.DefaultGatedProfile()
	gateProf.MinGate = 0.99
	gated, _ := bridge.NewGatedBridge("p-a", layers.Perception, layers.Attention, gateProf)
	n.Register(gated)
	o = NewOrchestrator(n, DefaultConfig())
	res := o.ProcessBidirectional(layers.NewStateWithConfidence(layers.Perception, layers.ScalarPayload(1), 0.2))
	if res == nil {
		t.Fatal("all-failing network run must still produce a result")
	}
	if len(res.States) != 1 {
		t.Fatalf("only the input layer should be populated, got %d", len(res.States))
	}
}

type failingHandler struct{}

func (failingHandler) Process(s *layers.State) (*layers.State, error) {
	return nil, errors.New("handler exploded")
}

type doublingHandler struct{}

func (doublingHandler) Process(s *layers.State) (*layers.State, error) {
	out := s.Derive(s.Layer)
	out.ScaleConfidence(2.0)
	return out, nil
}

func TestHandlerFailureDegradesGracefully(t *testing.T) {
	n := bridge.NewNetwork()
	n.Register(mustBridge(t, "p-a", layers.Perception, layers.Attention))
	o := NewOrchestrator(n, DefaultConfig())
	o.RegisterHandler(layers.Attention, failingHandler{})

	res := o.ProcessForward(layers.NewStateWithConfidence(layers.Perception, layers.ScalarPayload(1), 0.8))
	if len(res.States) != 2 {
		t.Fatalf("handler failure must keep the unprocessed state, got %d layers", len(res.States))
	}
	if math.Abs(res.Confidences[layers.Attention]-0.8) > 1e-9 {
		t.Fatalf("unprocessed state should carry the bridge output confidence, got %f",
			res.Confidences[layers.Attention])
	}
}

func TestHandlerTransformsArrivingState(t *testing.T) {
	n := bridge.NewNetwork()
	n.Register(mustBridge(t, "p-a", layers.Perception, layers.Attention))
	o := NewOrchestrator(n, DefaultConfig())
	o.RegisterHandler(layers.Attention, doublingHandler{})

	res := o.ProcessForward(layers.NewStateWithConfidence(layers.Perception, layers.ScalarPayload(1), 0.4))
	if math.Abs(res.Confidences[layers.Attention]-0.8) > 1e-9 {
		t.Fatalf("handler should double the arriving confidence, got %f",
			res.Confidences[layers.Attention])
	}
}

func TestResultCarriesRunMetadata(t *testing.T) {
	o := NewOrchestrator(bridge.NewNetwork(), DefaultConfig())
	res := o.ProcessForward(layers.NewState(layers.Perception, layers.ScalarPayload(1)))
	if res.RunID == "" {
		t.Fatal("run id must be assigned")
	}
	if res.InputLayer != layers.Perception {
		t.Fatalf("input layer lost: %s", res.InputLayer.Name())
	}
	if res.Elapsed <= 0 {
		t.Fatal("elapsed time must be recorded")
	}
}
