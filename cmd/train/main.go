package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"exoplanet-classifier/internal/cfg"
	"exoplanet-classifier/internal/metrics"
	"exoplanet-classifier/internal/ml"
	"exoplanet-classifier/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	var (
		datasetPath  = flag.String("data", c.DatasetPath, "Path to the KOI cumulative CSV export")
		artifactPath = flag.String("out", c.ArtifactPath, "Where to write the model artifact")
		workers      = flag.Int("workers", c.TrainWorkers, "Trees grown in parallel")
		registry     = flag.String("registry", c.DataPath, "Directory of the run registry (empty disables it)")
		metricsFile  = flag.String("metrics-file", "", "Write training metrics here for the node_exporter textfile collector")
		logLevel     = flag.String("log-level", c.LogLevel, "Log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tc := ml.DefaultTrainerConfig()
	tc.Forest.Workers = *workers

	var recorder ml.RunRecorder
	if *registry != "" {
		store, err := storage.New(*registry)
		if err != nil {
			log.Warn().Err(err).Msg("run registry unavailable, continuing without it")
		} else {
			defer store.Close()
			recorder = store
		}
	}

	promRegistry := prometheus.NewRegistry()
	mw := metrics.NewWrapper(metrics.NewWithRegistry(promRegistry))
	report, err := ml.NewTrainer(tc, mw, recorder).Run(ctx, *datasetPath, *artifactPath)
	if err != nil {
		log.Fatal().Err(err).Msg("training failed")
	}

	if *metricsFile != "" {
		if err := metrics.WriteTextfile(*metricsFile, promRegistry); err != nil {
			log.Warn().Err(err).Msg("failed to export training metrics")
		} else {
			log.Info().Str("path", *metricsFile).Msg("Training metrics written")
		}
	}

	printReport(report)
}

func printReport(r *ml.TrainingReport) {
	fmt.Printf("Run:       %s\n", r.RunID)
	fmt.Printf("Rows:      %d (train %d, test %d)\n", r.Rows, r.TrainRows, r.TestRows)
	fmt.Printf("Accuracy:  %.4f\n", r.Evaluation.Accuracy)
	fmt.Printf("Artifact:  %s\n\n", r.ArtifactPath)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "class\tprecision\trecall\tf1-score\tsupport\t")
	for _, m := range r.Evaluation.PerClass {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%d\t\n", m.Class, m.Precision, m.Recall, m.F1, m.Support)
	}
	fmt.Fprintf(w, "macro avg\t\t\t%.2f\t%d\t\n", r.Evaluation.MacroF1, r.Evaluation.Samples)
	fmt.Fprintf(w, "weighted avg\t\t\t%.2f\t%d\t\n", r.Evaluation.WeightedF1, r.Evaluation.Samples)
	w.Flush()

	fmt.Println("\nConfusion matrix (rows: true, columns: predicted)")
	for i, row := range r.Evaluation.Confusion {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprintf("%5d", v)
		}
		fmt.Printf("  %-15s%s\n", r.Evaluation.PerClass[i].Class, strings.Join(cells, " "))
	}

	fmt.Println("\nFeature importances")
	for _, fi := range r.Importances {
		fmt.Printf("  %-15s impurity %.4f  permutation %+.4f\n", fi.Name, fi.Impurity, fi.Permutation)
	}
}
