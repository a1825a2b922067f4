// Package main provides an offline replay tool for recorded advertisement
// logs. It runs each recorded scan cycle through both grouping strategies
// side by side so their people counts can be compared on the same input.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/presence.report/internal/config"
	"github.com/banshee-data/presence.report/internal/presence"
	"github.com/banshee-data/presence.report/internal/scanmux"
)

// Config holds configuration for a replay run.
type Config struct {
	InputFile  string
	TuningFile string
	Verbose    bool
	OutputJSON string
}

// CycleComparison holds one cycle's counts under each strategy.
type CycleComparison struct {
	Cycle         int `json:"cycle"`
	Observations  int `json:"observations"`
	Usable        int `json:"usable"`
	ChainedPeople int `json:"chained_people"`
	DBSCANPeople  int `json:"dbscan_people"`
}

// ReplayResult summarises a full replay run.
type ReplayResult struct {
	InputFile      string            `json:"input_file"`
	Cycles         int               `json:"cycles"`
	Agreed         int               `json:"agreed"`
	AgreementPct   float64           `json:"agreement_pct"`
	MaxDivergence  int               `json:"max_divergence"`
	PerCycle       []CycleComparison `json:"per_cycle,omitempty"`
	ChainedParams  presence.GrouperParams
	DBSCANParams   presence.GrouperParams
	PipelineParams presence.PipelineParams
}

func main() {
	cfg := parseFlags()

	if cfg.InputFile == "" {
		log.Fatal("Input file is required")
	}

	tuning := config.EmptyTuningConfig()
	if cfg.TuningFile != "" {
		var err error
		tuning, err = config.LoadTuningConfig(cfg.TuningFile)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	batches, err := readBatches(cfg.InputFile)
	if err != nil {
		log.Fatalf("failed to read input: %v", err)
	}
	if len(batches) == 0 {
		log.Fatal("input contained no scan cycles")
	}

	result, err := runReplay(cfg, tuning, batches)
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}

	printResults(result)

	if cfg.OutputJSON != "" {
		if err := exportJSON(result, cfg.OutputJSON); err != nil {
			log.Printf("Warning: failed to export JSON: %v", err)
		} else {
			log.Printf("Results exported to: %s", cfg.OutputJSON)
		}
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.InputFile, "input", "", "Advertisement log to replay (blank lines separate scan cycles)")
	flag.StringVar(&cfg.TuningFile, "config", "", "Tuning config JSON file (defaults apply when empty)")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Print every cycle instead of only disagreements")
	flag.StringVar(&cfg.OutputJSON, "json", "", "Output JSON filename (e.g., results.json)")

	flag.Parse()

	return cfg
}

// readBatches parses the advertisement log into per-cycle observation
// batches. Blank lines delimit cycles; unparseable lines are skipped the
// same way the live collector skips them.
func readBatches(path string) ([][]presence.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var batches [][]presence.Observation
	var current []presence.Observation

	scan := bufio.NewScanner(f)
	for scan.Scan() {
		line := scan.Text()
		if line == "" {
			if len(current) > 0 {
				batches = append(batches, current)
				current = nil
			}
			continue
		}
		obs, err := scanmux.ParseAdvertisement(line)
		if err != nil {
			continue
		}
		current = append(current, obs)
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}

	return batches, nil
}

func runReplay(cfg Config, tuning *config.TuningConfig, batches [][]presence.Observation) (*ReplayResult, error) {
	params := tuning.GrouperParams()
	chained, err := presence.NewGrouper(presence.GrouperChained, params)
	if err != nil {
		return nil, err
	}
	dbscan, err := presence.NewGrouper(presence.GrouperDBSCAN, params)
	if err != nil {
		return nil, err
	}

	// separate pipelines so each strategy sees an identically evolving
	// history rather than sharing one
	pipelineParams := tuning.PipelineParams()
	chainedPipeline := presence.NewPipeline(pipelineParams, chained, nil)
	dbscanPipeline := presence.NewPipeline(pipelineParams, dbscan, nil)

	result := &ReplayResult{
		InputFile:      cfg.InputFile,
		ChainedParams:  chained.Params(),
		DBSCANParams:   dbscan.Params(),
		PipelineParams: pipelineParams,
	}

	for i, batch := range batches {
		chainedResult := chainedPipeline.Cycle(batch)
		dbscanResult := dbscanPipeline.Cycle(batch)

		comparison := CycleComparison{
			Cycle:         i + 1,
			Observations:  len(batch),
			Usable:        len(chainedResult.Distances),
			ChainedPeople: chainedResult.People,
			DBSCANPeople:  dbscanResult.People,
		}
		result.PerCycle = append(result.PerCycle, comparison)

		divergence := comparison.ChainedPeople - comparison.DBSCANPeople
		if divergence < 0 {
			divergence = -divergence
		}
		if divergence == 0 {
			result.Agreed++
		} else if divergence > result.MaxDivergence {
			result.MaxDivergence = divergence
		}

		if cfg.Verbose || divergence != 0 {
			log.Printf("cycle %d: %d observed, %d usable, chained=%d dbscan=%d",
				comparison.Cycle, comparison.Observations, comparison.Usable,
				comparison.ChainedPeople, comparison.DBSCANPeople)
		}
	}

	result.Cycles = len(batches)
	result.AgreementPct = 100 * float64(result.Agreed) / float64(result.Cycles)

	return result, nil
}

func printResults(result *ReplayResult) {
	fmt.Println("\n=== Grouper Comparison Results ===")
	fmt.Printf("Input: %s\n", result.InputFile)
	fmt.Printf("Cycles: %d\n", result.Cycles)
	fmt.Printf("Agreement: %d/%d (%.1f%%)\n", result.Agreed, result.Cycles, result.AgreementPct)
	fmt.Printf("Max Divergence: %d people\n", result.MaxDivergence)
	fmt.Printf("Chain Tolerance: %.2fm\n", result.ChainedParams.ToleranceMetres)
	fmt.Printf("DBSCAN Eps: %.2fm, Min Samples: %d\n", result.DBSCANParams.EpsMetres, result.DBSCANParams.MinSamples)
}

func exportJSON(result *ReplayResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
