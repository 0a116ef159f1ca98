// Command simulate drives the Monte Carlo simulation harness of spec.md
// §4.7 from the command line, grounded on the teacher's main.go's
// config-load / logger-init startup sequence, trimmed to the one-shot batch
// job the harness is rather than a long-running service.
package main

import (
	"flag"
	"fmt"
	"os"

	"catcore/internal/config"
	"catcore/internal/domain"
	"catcore/internal/simulate"
)

func main() {
	cfg := config.Load()

	examinees := flag.Int("examinees", cfg.Simulation.DefaultExaminees, "number of simulated examinees")
	itemsPerDomain := flag.Int("items-per-domain", cfg.Simulation.DefaultItemsPerDomain, "items generated per domain")
	thetaMean := flag.Float64("theta-mean", cfg.Simulation.DefaultThetaMean, "mean of the true-theta distribution")
	thetaSD := flag.Float64("theta-sd", cfg.Simulation.DefaultThetaSD, "standard deviation of the true-theta distribution")
	seed := flag.Int64("seed", 42, "RNG seed for item bank and examinee generation")
	format := flag.String("format", "text", "output format: text or json")
	flag.Parse()

	weights := make(map[domain.Domain]float64, len(cfg.Domain.Weights))
	for d, w := range cfg.Domain.Weights {
		weights[domain.Domain(d)] = w
	}

	cat := cfg.CAT
	if cat.MaxItems > cfg.Simulation.SafetyCapMaxItems {
		cat.MaxItems = cfg.Simulation.SafetyCapMaxItems
	}

	report := simulate.Run(simulate.Params{
		Seed:                 *seed,
		NumExaminees:         *examinees,
		ItemsPerDomain:       *itemsPerDomain,
		ThetaMean:            *thetaMean,
		ThetaSD:              *thetaSD,
		SEConvergedThreshold: cfg.CAT.SEThreshold,
		CAT:                  cat,
		DomainWeights:        weights,
	})

	switch *format {
	case "json":
		out, err := report.RenderJSON()
		if err != nil {
			fmt.Fprintln(os.Stderr, "simulate:", err)
			os.Exit(1)
		}
		fmt.Println(out)
	default:
		fmt.Print(report.RenderText())
	}
}
