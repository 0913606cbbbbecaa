package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"exoplanet-classifier/internal/cfg"
	"exoplanet-classifier/internal/ml"
	"exoplanet-classifier/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	var (
		dataPath = flag.String("data", c.DataPath, "Data directory path")
		model    = flag.String("model", "", "Also describe this model artifact")
		runs     = flag.Int("runs", 10, "Training runs to list")
		recent   = flag.Int("recent", 10, "Recent predictions to list")
		days     = flag.Int("days", 0, "Only count predictions from the last N days (0 counts everything)")
		drift    = flag.Bool("drift", false, "Compare logged inputs against the -model training baseline")
		export   = flag.String("export", "", "Write the logged predictions in range to this JSON file")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *model != "" {
		describeArtifact(*model)
	}
	if *dataPath == "" {
		if *model == "" {
			log.Fatal().Msg("nothing to inspect: set -data or DATA_PATH, or pass -model")
		}
		return
	}

	fmt.Printf("Inspecting data in: %s\n", *dataPath)
	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer store.Close()

	listRuns(store, *runs)
	listPredictions(store, *recent, *days)
	if *export != "" {
		exportPredictions(store, *export, *days)
	}
	if *drift {
		if *model == "" {
			log.Fatal().Msg("-drift needs -model")
		}
		reportDrift(store, *model, *days)
	}
}

func predictionWindow(days int) (time.Time, time.Time) {
	end := time.Now()
	if days > 0 {
		return end.AddDate(0, 0, -days), end
	}
	return time.Unix(0, 0), end
}

func exportPredictions(store *storage.Store, path string, days int) {
	records, err := store.PredictionsInRange(predictionWindow(days))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read prediction log")
	}
	if records == nil {
		records = []storage.PredictionRecord{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to encode predictions")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatal().Err(err).Msg("failed to write export")
	}
	fmt.Printf("\nExported %d predictions to %s\n", len(records), path)
}

func reportDrift(store *storage.Store, path string, days int) {
	a, err := ml.LoadArtifact(path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load artifact")
	}

	records, err := store.PredictionsInRange(predictionWindow(days))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read prediction log")
	}
	rows := make([]map[string]float64, 0, len(records))
	for _, r := range records {
		if r.RunID == a.Metadata.RunID {
			rows = append(rows, r.Features)
		}
	}

	fmt.Printf("\nInput drift against run %s (%d logged inputs):\n", a.Metadata.RunID, len(rows))
	fmt.Println(strings.Repeat("=", 60))
	report, err := ml.DetectDrift(a.Metadata.Baseline, rows)
	if err != nil {
		fmt.Printf("  %v\n", err)
		return
	}
	for _, d := range report {
		fmt.Printf("  %-15s psi %.4f  shift %+.2f sd  %-11s n=%d\n", d.Name, d.PSI, d.MeanShift, d.Severity, d.Samples)
	}
}

func describeArtifact(path string) {
	a, err := ml.LoadArtifact(path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load artifact")
	}
	md := a.Metadata
	fmt.Printf("Model %s\n", path)
	fmt.Printf("  Run:        %s\n", md.RunID)
	fmt.Printf("  Trained:    %s\n", md.TrainedAt.Format(time.RFC3339))
	fmt.Printf("  Dataset:    %s (%d rows)\n", md.DatasetPath, md.DatasetRows)
	fmt.Printf("  Trees:      %d\n", len(a.Pipeline.Forest.Trees))
	fmt.Printf("  Classes:    %s\n", strings.Join(a.Classes, ", "))
	fmt.Printf("  Accuracy:   %.4f (macro F1 %.4f)\n", md.Evaluation.Accuracy, md.Evaluation.MacroF1)
	fmt.Printf("  Top inputs: %s\n\n", strings.Join(ml.TopFeatures(md.Importances, 5), ", "))
}

func listRuns(store *storage.Store, limit int) {
	records, err := store.ListRuns(limit)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list training runs")
	}

	fmt.Println("\nTraining runs (newest first):")
	fmt.Println(strings.Repeat("=", 60))
	if len(records) == 0 {
		fmt.Println("  none recorded")
	}
	for _, r := range records {
		fmt.Printf("  %s  %s  rows %d  acc %.4f  trees %d  %s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.RunID, r.Rows, r.Accuracy, r.NumTrees, r.Duration().Round(time.Millisecond))
	}
}

func listPredictions(store *storage.Store, limit, days int) {
	var counts map[string]int
	if days > 0 {
		records, err := store.PredictionsInRange(predictionWindow(days))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to read prediction log")
		}
		counts = make(map[string]int)
		for _, r := range records {
			counts[r.Label]++
		}
	} else {
		var err error
		counts, err = store.LabelCounts()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to count predictions")
		}
	}

	fmt.Println("\nLogged predictions by label:")
	fmt.Println(strings.Repeat("=", 60))
	labels := make([]string, 0, len(counts))
	total := 0
	for l, n := range counts {
		labels = append(labels, l)
		total += n
	}
	sort.Strings(labels)
	for _, l := range labels {
		fmt.Printf("  %-15s %d\n", l, counts[l])
	}
	fmt.Printf("  %-15s %d\n", "TOTAL", total)

	recent, err := store.RecentPredictions(limit)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read prediction log")
	}
	if len(recent) > 0 {
		fmt.Println("\nMost recent:")
	}
	for _, r := range recent {
		fmt.Printf("  %s  %-15s p=%.3f  %s\n", r.Timestamp.Format("2006-01-02 15:04:05"), r.Label, r.Probabilities[r.Label], r.RequestID)
	}
}
