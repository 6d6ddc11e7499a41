package stack

// #region imports
import (
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/keplerlabs/resonet/internal/bridge"
	"github.com/keplerlabs/resonet/internal/convergence"
	"github.com/keplerlabs/resonet/internal/layers"
)

// #endregion imports

// #region orchestrator

// Orchestrator owns the bridge network and the per-layer current state
// map, and drives forward and bidirectional propagation. One orchestrator
// serves one run at a time; share the network, not the orchestrator, for
// concurrent runs.
type Orchestrator struct {
	network  *bridge.Network
	config   Config
	handlers map[layers.Layer]Handler
	states   map[layers.Layer]*layers.State
}

// NewOrchestrator creates an orchestrator over the given network.
// Zero-value config fields fall back to defaults.
func NewOrchestrator(network *bridge.Network, config Config) *Orchestrator {
	def := DefaultConfig()
	if config.MaxStackIterations <= 0 {
		config.MaxStackIterations = def.MaxStackIterations
	}
	if config.ConvergenceThreshold <= 0 {
		config.ConvergenceThreshold = def.ConvergenceThreshold
	}
	if config.AmplifyIterations <= 0 {
		config.AmplifyIterations = def.AmplifyIterations
	}
	if config.Detector.Threshold <= 0 {
		config.Detector = def.Detector
		config.Detector.Threshold = config.ConvergenceThreshold
	}
	return &Orchestrator{
		network:  network,
		config:   config,
		handlers: make(map[layers.Layer]Handler),
	}
}

// RegisterHandler installs a handler for a layer. The handler runs when
// the layer first receives a state during a run.
func (o *Orchestrator) RegisterHandler(l layers.Layer, h Handler) {
	o.handlers[l] = h
}

// Network returns the underlying bridge network.
func (o *Orchestrator) Network() *bridge.Network {
	return o.network
}

// #endregion orchestrator

// #region process-forward

// ProcessForward seeds the input layer and walks every higher-ordinal
// layer in order, forwarding along existing bridges. A bridge failure
// stops that path without failing the run.
func (o *Orchestrator) ProcessForward(input *layers.State) *Result {
	start := time.Now()
	res := o.newResult(input)
	o.states = make(map[layers.Layer]*layers.State)

	o.place(input.Layer, input, res)
	o.forwardWalk(0, res)

	o.finish(res, start, true)
	return res
}

// forwardWalk pushes the frontier through every enabled layer above the
// current frontier's ordinal.
func (o *Orchestrator) forwardWalk(iteration int, res *Result) {
	current := o.lowestPopulated()
	for _, target := range layers.All() {
		if target.Ordinal() <= current.Ordinal() {
			continue
		}
		state := o.states[current]
		if state.Confidence < o.config.MinConfidence {
			res.Trace = append(res.Trace, TraceEntry{
				Iteration:  iteration,
				Direction:  "forward",
				From:       current,
				To:         target,
				Confidence: state.Confidence,
				Err:        "confidence below propagation floor",
			})
			break
		}
		br, ok := o.network.Between(current, target)
		if !ok || br.Source() != current {
			continue
		}
		out, err := br.Forward(state)
		if err != nil {
			res.Trace = append(res.Trace, TraceEntry{
				Iteration:  iteration,
				Bridge:     br.Name(),
				Direction:  "forward",
				From:       current,
				To:         target,
				Confidence: state.Confidence,
				Err:        err.Error(),
			})
			break
		}
		o.place(target, out, res)
		res.Trace = append(res.Trace, TraceEntry{
			Iteration:  iteration,
			Bridge:     br.Name(),
			Direction:  "forward",
			From:       current,
			To:         target,
			Confidence: o.states[target].Confidence,
		})
		current = target
	}
}

// place installs a state on a layer, running the layer's handler if one
// is registered. Handler failures keep the unprocessed state.
func (o *Orchestrator) place(l layers.Layer, s *layers.State, res *Result) {
	if h, ok := o.handlers[l]; ok {
		processed, err := h.Process(s)
		if err != nil {
			log.Printf("[STACK] handler on %s failed: %v", l.Name(), err)
			res.Trace = append(res.Trace, TraceEntry{
				Direction:  "handler",
				From:       l,
				To:         l,
				Confidence: s.Confidence,
				Err:        err.Error(),
			})
		} else {
			s = processed
		}
	}
	o.states[l] = s
}

// #endregion process-forward

// #region process-bidirectional

// ProcessBidirectional runs a forward pass, then iterates backward
// refinement, forward re-blending, and full per-bridge amplification
// until the combined confidence settles or the iteration cap is reached.
func (o *Orchestrator) ProcessBidirectional(input *layers.State) *Result {
	start := time.Now()
	res := o.newResult(input)
	o.states = make(map[layers.Layer]*layers.State)

	o.place(input.Layer, input, res)
	o.forwardWalk(0, res)

	detector := convergence.NewDetector(o.config.Detector)
	prev := o.combined()

	for iter := 1; iter <= o.config.MaxStackIterations; iter++ {
		res.Iterations = iter
		if o.config.EnableBackward {
			o.backwardPass(iter, res)
		}
		o.forwardBlendPass(iter, res)
		o.amplifyPass(iter, res)

		combined := o.combined()
		status := detector.Observe(prev, combined)
		prev = combined
		if status == convergence.StatusConverged {
			res.Converged = true
			break
		}
		if status == convergence.StatusDiverging {
			log.Printf("[STACK] combined confidence diverging at iteration %d (%.4f)", iter, combined)
			break
		}
	}

	o.finish(res, start, res.Converged)
	return res
}

// backwardPass walks populated layers in descending order and merges each
// backward refinement into the lower layer by simple averaging.
func (o *Orchestrator) backwardPass(iteration int, res *Result) {
	populated := o.populatedDescending()
	for i := 0; i+1 < len(populated); i++ {
		higher, lower := populated[i], populated[i+1]
		br, ok := o.network.Between(higher, lower)
		if !ok || br.Target() != higher {
			continue
		}
		refined, err := br.Backward(o.states[higher])
		if err != nil {
			res.Trace = append(res.Trace, TraceEntry{
				Iteration:  iteration,
				Bridge:     br.Name(),
				Direction:  "backward",
				From:       higher,
				To:         lower,
				Confidence: o.states[lower].Confidence,
				Err:        err.Error(),
			})
			continue
		}
		o.mergeConfidence(lower, (o.states[lower].Confidence+refined.Confidence)/2)
		res.Trace = append(res.Trace, TraceEntry{
			Iteration:  iteration,
			Bridge:     br.Name(),
			Direction:  "backward",
			From:       higher,
			To:         lower,
			Confidence: o.states[lower].Confidence,
		})
	}
}

// forwardBlendPass re-runs forward over every ordered populated pair with
// a bridge, blending 70% existing with 30% new and applying the global
// amplification factor.
func (o *Orchestrator) forwardBlendPass(iteration int, res *Result) {
	populated := o.populatedAscending()
	global := o.network.GlobalAmplification()
	for _, src := range populated {
		for _, dst := range populated {
			if dst.Ordinal() <= src.Ordinal() {
				continue
			}
			br, ok := o.network.Between(src, dst)
			if !ok || br.Source() != src {
				continue
			}
			out, err := br.Forward(o.states[src])
			if err != nil {
				res.Trace = append(res.Trace, TraceEntry{
					Iteration:  iteration,
					Bridge:     br.Name(),
					Direction:  "forward",
					From:       src,
					To:         dst,
					Confidence: o.states[dst].Confidence,
					Err:        err.Error(),
				})
				continue
			}
			blended := (0.7*o.states[dst].Confidence + 0.3*out.Confidence) * global
			o.mergeConfidence(dst, blended)
			res.Trace = append(res.Trace, TraceEntry{
				Iteration:  iteration,
				Bridge:     br.Name(),
				Direction:  "forward",
				From:       src,
				To:         dst,
				Confidence: o.states[dst].Confidence,
			})
		}
	}
}

// amplifyPass runs every registered bridge whose endpoints are both
// populated, overwriting both states with the amplified pair and
// accumulating the total amplification factor. Converged amplifications
// reinforce the bridge slightly.
func (o *Orchestrator) amplifyPass(iteration int, res *Result) {
	for _, br := range o.network.All() {
		up, upOK := o.states[br.Source()]
		down, downOK := o.states[br.Target()]
		if !upOK || !downOK {
			continue
		}
		amp := br.Amplify(up, down, o.config.AmplifyIterations)
		o.states[br.Source()] = amp.Up
		o.states[br.Target()] = amp.Down
		res.TotalAmplification *= amp.Factor
		if amp.Converged {
			br.Reinforce(0.01)
		}
		res.Trace = append(res.Trace, TraceEntry{
			Iteration:  iteration,
			Bridge:     br.Name(),
			Direction:  "amplify",
			From:       br.Source(),
			To:         br.Target(),
			Confidence: amp.Combined,
		})
	}
}

// #endregion process-bidirectional

// #region internals

func (o *Orchestrator) newResult(input *layers.State) *Result {
	return &Result{
		RunID:              uuid.NewString(),
		InputLayer:         input.Layer,
		TotalAmplification: 1.0,
	}
}

// mergeConfidence sets a layer's confidence through the state's only
// numeric mutation path. A zero current confidence is replaced outright.
func (o *Orchestrator) mergeConfidence(l layers.Layer, target float64) {
	s := o.states[l]
	if target < 0 {
		target = 0
	}
	if s.Confidence == 0 {
		s.Confidence = target
		s.Iterations++
		return
	}
	s.ScaleConfidence(target / s.Confidence)
}

func (o *Orchestrator) lowestPopulated() layers.Layer {
	asc := o.populatedAscending()
	return asc[0]
}

func (o *Orchestrator) populatedAscending() []layers.Layer {
	out := make([]layers.Layer, 0, len(o.states))
	for l := range o.states {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (o *Orchestrator) populatedDescending() []layers.Layer {
	out := o.populatedAscending()
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// combined is the geometric mean of all populated layer confidences,
// multiplied by the network's global amplification factor.
func (o *Orchestrator) combined() float64 {
	if len(o.states) == 0 {
		return 0
	}
	values := make([]float64, 0, len(o.states))
	for _, s := range o.states {
		values = append(values, s.Confidence)
	}
	return stat.GeometricMean(values, nil) * o.network.GlobalAmplification()
}

// finish snapshots the run into its result.
func (o *Orchestrator) finish(res *Result, start time.Time, converged bool) {
	res.States = make(map[layers.Layer]*layers.State, len(o.states))
	res.Confidences = make(map[layers.Layer]float64, len(o.states))
	for l, s := range o.states {
		res.States[l] = s
		res.Confidences[l] = s.Confidence
	}
	res.Combined = o.combined()
	res.Converged = converged
	res.Elapsed = time.Since(start)
	if o.config.MaxProcessingTime > 0 && res.Elapsed > o.config.MaxProcessingTime {
		res.OverBudget = true
	}
	log.Printf("[STACK] run %s: layers=%d combined=%.4f amplification=%.4f iterations=%d converged=%v",
		res.RunID, len(res.States), res.Combined, res.TotalAmplification, res.Iterations, res.Converged)
}

// #endregion internals
