package main

import (
	"flag"
	"fmt"
	"os"

	"exoplanet-classifier/internal/dataset"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		outPath = flag.String("out", "sample_koi.csv", "Output CSV path")
		rows    = flag.Int("rows", 2000, "Number of candidates to generate")
		seed    = flag.Uint64("seed", 42, "Random seed")
		missing = flag.Float64("missing", 0.03, "Probability that a numeric cell is left empty")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	fmt.Printf("Generating synthetic KOI data...\n")
	fmt.Printf("  Rows: %d\n", *rows)
	fmt.Printf("  Seed: %d\n", *seed)
	fmt.Printf("  Output: %s\n", *outPath)

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create output file")
	}

	err = dataset.GenerateKOI(f, dataset.SyntheticOptions{Rows: *rows, Seed: *seed, MissingRate: *missing})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(*outPath)
		log.Fatal().Err(err).Msg("failed to generate data")
	}

	fmt.Printf("✓ Generated %d synthetic candidates in %s\n", *rows, *outPath)
}
