package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/keplerlabs/resonet/internal/patternstore"
	"github.com/keplerlabs/resonet/internal/tracelog"
)

// #region main

func main() {
	patternDB := flag.String("patterns", "", "path to resonet_patterns.db")
	traceDB := flag.String("traces", "", "path to resonet_trace.db")
	last := flag.Int("last", 20, "show N most recent runs")
	domain := flag.String("domain", "", "filter patterns to one domain")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *patternDB == "" && *traceDB == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect [--patterns path] [--traces path] [--last N] [--domain name] [--json]")
		os.Exit(2)
	}

	if *patternDB != "" {
		if err := runPatternMode(*patternDB, *domain, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
	if *traceDB != "" {
		if err := runTraceMode(*traceDB, *last, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}

// #endregion main

// #region pattern-mode

type patternRow struct {
	ID          string  `json:"id"`
	Domain      string  `json:"domain"`
	Weight      float64 `json:"weight"`
	SuccessRate float64 `json:"success_rate"`
	Attempts    int     `json:"attempts"`
	Dims        int     `json:"dims"`
	Norm        float64 `json:"norm"`
	Links       int     `json:"links"`
}

func runPatternMode(dbPath, domainFilter string, jsonOut bool) error {
	store, err := patternstore.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open pattern store: %w", err)
	}
	defer store.Close()

	saved, err := store.List()
	if err != nil {
		return err
	}

	rows := make([]patternRow, 0, len(saved))
	for _, d := range saved {
		if domainFilter != "" && d.Domain != domainFilter {
			continue
		}
		rate := 0.5
		if d.Attempts > 0 {
			rate = float64(d.Successes) / float64(d.Attempts)
		}
		rows = append(rows, patternRow{
			ID:          d.ID,
			Domain:      d.Domain,
			Weight:      d.Weight,
			SuccessRate: rate,
			Attempts:    d.Attempts,
			Dims:        len(d.Fingerprint),
			Norm:        vectorNorm(d.Fingerprint),
			Links:       len(d.Links),
		})
	}

	if jsonOut {
		return printJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "no patterns found")
		return nil
	}

	fmt.Printf("%-12s  %-10s  %8s  %8s  %8s  %5s  %8s  %5s\n",
		"Pattern", "Domain", "Weight", "Rate", "Attempts", "Dims", "Norm", "Links")
	fmt.Printf("%-12s+-%-10s+-%8s+-%8s+-%8s+-%5s+-%8s+-%5s\n",
		"------------", "----------", "--------", "--------", "--------", "-----", "--------", "-----")
	for _, r := range rows {
		fmt.Printf("%-12s  %-10s  %8.4f  %8.4f  %8d  %5d  %8.4f  %5d\n",
			shortID(r.ID), r.Domain, r.Weight, r.SuccessRate, r.Attempts, r.Dims, r.Norm, r.Links)
	}
	fmt.Printf("\n%d patterns\n", len(rows))
	return nil
}

// #endregion pattern-mode

// #region trace-mode

func runTraceMode(dbPath string, last int, jsonOut bool) error {
	traces, err := tracelog.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open trace log: %w", err)
	}
	defer traces.Close()

	runs, err := traces.Recent(last)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	fmt.Printf("%-12s  %-12s  %10s  %5s  %-9s  %7s  %s\n",
		"Run", "Input", "Combined", "Iter", "Converged", "Signals", "Time")
	fmt.Printf("%-12s+-%-12s+-%10s+-%5s+-%-9s+-%7s+-%s\n",
		"------------", "------------", "----------", "-----", "---------", "-------", "--------------------")
	for _, r := range runs {
		fmt.Printf("%-12s  %-12s  %10.4f  %5d  %-9v  %7d  %s\n",
			shortID(r.RunID), r.InputLayer, r.Combined, r.Iterations,
			r.Converged, r.Signals, r.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	fmt.Printf("\n%d runs\n", len(runs))
	return nil
}

// #endregion trace-mode

// #region output

func vectorNorm(v []float64) float64 {
	var sum float64
	for _, f := range v {
		sum += f * f
	}
	return math.Sqrt(sum)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
