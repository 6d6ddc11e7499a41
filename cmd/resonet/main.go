package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/keplerlabs/resonet/internal/bridge"
	"github.com/keplerlabs/resonet/internal/convergence"
	"github.com/keplerlabs/resonet/internal/intuition"
	"github.com/keplerlabs/resonet/internal/layers"
	"github.com/keplerlabs/resonet/internal/patternstore"
	"github.com/keplerlabs/resonet/internal/stack"
	"github.com/keplerlabs/resonet/internal/tracelog"
)

// #region main
func main() {
	patternDB := envOr("RESONET_PATTERN_DB", "resonet_patterns.db")
	traceDB := envOr("RESONET_TRACE_DB", "resonet_trace.db")

	// Pattern memory, hydrated from disk if a store already exists
	memory := intuition.NewMemory(intuition.DefaultMemoryConfig())
	store, err := patternstore.NewStore(patternDB)
	if err != nil {
		log.Fatalf("failed to open pattern store: %v", err)
	}
	defer store.Close()
	restored, err := hydrate(memory, store)
	if err != nil {
		log.Fatalf("failed to load patterns: %v", err)
	}

	traces, err := tracelog.Open(traceDB)
	if err != nil {
		log.Fatalf("failed to open trace log: %v", err)
	}
	defer traces.Close()

	// Wire the standard stack: default bridge spine plus the intuition
	// handler on its layer.
	network, err := bridge.DefaultNetwork()
	if err != nil {
		log.Fatalf("failed to build bridge network: %v", err)
	}
	field := intuition.NewResonanceField(memory, intuition.DefaultFieldConfig())
	handler := intuition.NewHandler(memory, field, intuition.DefaultHandlerConfig())

	orch := stack.NewOrchestrator(network, stack.DefaultConfig())
	orch.RegisterHandler(layers.Intuition, handler)

	engine := convergence.NewEngine(convergence.DefaultEngineConfig())
	transfer := intuition.NewTransfer(intuition.DefaultTransferConfig())

	fmt.Println("Resonet stack ready.")
	fmt.Printf("  Patterns: %s (%d loaded) | Traces: %s | Bridges: %d\n",
		patternDB, restored, traceDB, network.Len())
	fmt.Println("Enter a confidence (e.g. 0.8) or a feature vector (e.g. 0.8: 1,0,2,1),")
	fmt.Println("'amp <value>' for standalone amplification,")
	fmt.Println("'transfer <from> <to> v1,v2,...' for cross-domain mapping, or 'quit' to exit:")

	scanner := bufio.NewScanner(os.Stdin)
	runNum := 0

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		if rest, ok := strings.CutPrefix(line, "amp "); ok {
			runAmplify(engine, rest)
			continue
		}
		if rest, ok := strings.CutPrefix(line, "transfer "); ok {
			runTransfer(transfer, memory, rest)
			continue
		}

		input, err := parseInput(line)
		if err != nil {
			log.Printf("parse error: %v", err)
			continue
		}

		runNum++
		result := orch.ProcessBidirectional(input)
		printResult(result)

		if err := traces.Record(result); err != nil {
			log.Printf("trace error: %v", err)
		}
		if err := store.SaveAll(memory.Snapshot()); err != nil {
			log.Printf("pattern save error: %v", err)
		}
	}

	// Final flush so discoveries from the session survive
	if err := store.SaveAll(memory.Snapshot()); err != nil {
		log.Printf("pattern save error: %v", err)
	}
	fmt.Printf("%d runs, %d patterns in memory\n", runNum, memory.Len())
}

// #endregion main

// #region input

// parseInput reads "0.8" as a bare confidence, or "0.8: 1,0,2" as a
// confidence with a feature-vector payload for pattern recognition.
func parseInput(line string) (*layers.State, error) {
	confPart := line
	payload := layers.Payload{}

	if idx := strings.Index(line, ":"); idx >= 0 {
		confPart = strings.TrimSpace(line[:idx])
		vec, err := parseVector(line[idx+1:])
		if err != nil {
			return nil, err
		}
		payload = layers.VectorPayload(vec)
	}

	conf, err := strconv.ParseFloat(confPart, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid confidence %q: %w", confPart, err)
	}
	if conf < 0 {
		return nil, fmt.Errorf("confidence must be non-negative, got %v", conf)
	}
	return layers.NewStateWithConfidence(layers.Perception, payload, conf), nil
}

func parseVector(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	vec := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		vec = append(vec, f)
	}
	return vec, nil
}

// #endregion input

// #region commands

const ampIterations = 25

// runAmplify drives a bare confidence through the standalone amplification
// engine, outside the stack.
func runAmplify(engine *convergence.Engine, arg string) {
	v, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
	if err != nil {
		log.Printf("invalid confidence %q: %v", arg, err)
		return
	}
	res, err := engine.Run(v, ampIterations)
	if err != nil {
		log.Printf("amplification failed: %v", err)
		return
	}
	fmt.Printf("  %.4f -> final=%.4f peak=%.4f iterations=%d converged=%v\n",
		v, res.Final, res.Peak, res.Iterations, res.Converged)
}

// runTransfer maps the best-matching source pattern into the target
// domain: "transfer physical abstract 1,0,2".
func runTransfer(transfer *intuition.Transfer, memory *intuition.Memory, arg string) {
	parts := strings.Fields(arg)
	if len(parts) != 3 {
		log.Printf("usage: transfer <from> <to> v1,v2,...")
		return
	}
	from, err := parseDomain(parts[0])
	if err != nil {
		log.Printf("%v", err)
		return
	}
	to, err := parseDomain(parts[1])
	if err != nil {
		log.Printf("%v", err)
		return
	}
	vec, err := parseVector(parts[2])
	if err != nil {
		log.Printf("%v", err)
		return
	}

	sources := memory.SearchDomain(from, vec, 1)
	if len(sources) == 0 {
		fmt.Printf("  no source pattern in domain %s\n", from)
		return
	}
	res, err := transfer.Run(sources[0].Pattern, to, vec, memory)
	if err != nil {
		log.Printf("transfer failed: %v", err)
		return
	}
	if !res.Matched {
		fmt.Printf("  no resonance in %s (affinity %.2f)\n", to, res.Affinity)
		return
	}
	fmt.Printf("  %s -> %s via %s: similarity=%.4f affinity=%.2f strength=%.4f tier=%s\n",
		from, to, res.Match.ID[:8], res.Similarity, res.Affinity, res.Strength, res.Tier)
}

func parseDomain(s string) (intuition.Domain, error) {
	d := intuition.Domain(strings.ToLower(s))
	for _, known := range intuition.Domains() {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown domain %q (want one of %v)", s, intuition.Domains())
}

// #endregion commands

// #region output

func printResult(res *stack.Result) {
	fmt.Println()
	for _, l := range layers.All() {
		conf, ok := res.Confidences[l]
		if !ok {
			continue
		}
		fmt.Printf("  %-12s %.4f\n", l.Name(), conf)
	}
	fmt.Printf("\n[%s] combined=%.4f amplification=%.4f iterations=%d converged=%v",
		res.RunID[:8], res.Combined, res.TotalAmplification, res.Iterations, res.Converged)
	if res.OverBudget {
		fmt.Print(" over_budget=true")
	}
	fmt.Println()

	failures := 0
	for _, tr := range res.Trace {
		if tr.Err != "" {
			failures++
		}
	}
	if failures > 0 {
		fmt.Printf("  %d of %d signals failed (see trace log)\n", failures, len(res.Trace))
	}
}

// #endregion output

// #region helpers

func hydrate(memory *intuition.Memory, store *patternstore.Store) (int, error) {
	saved, err := store.List()
	if err != nil {
		return 0, err
	}
	for _, d := range saved {
		if err := memory.Register(intuition.FromData(d)); err != nil {
			return 0, fmt.Errorf("restore pattern %s: %w", d.ID, err)
		}
	}
	return len(saved), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
