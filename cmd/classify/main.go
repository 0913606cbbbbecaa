package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"exoplanet-classifier/internal/cfg"
	"exoplanet-classifier/internal/client"
	"exoplanet-classifier/internal/ml"
	"exoplanet-classifier/internal/observation"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// assignments collects repeated -set name=value flags.
type assignments map[string]float64

func (a assignments) String() string { return fmt.Sprint(map[string]float64(a)) }

func (a assignments) Set(s string) error {
	name, raw, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("expected name=value, got %q", s)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	a[strings.TrimSpace(name)] = v
	return nil
}

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	set := assignments{}
	var (
		serverURL = flag.String("server", c.ServerURL, "Prediction server URL")
		local     = flag.String("model", "", "Classify locally with this artifact instead of calling the server")
		input     = flag.String("input", "", "JSON file with a name->value feature object (default: built-in defaults)")
		showInfo  = flag.Bool("info", false, "Print model information and exit")
		asJSON    = flag.Bool("json", false, "Print the raw JSON response")
		logLevel  = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	)
	flag.Var(set, "set", "Override one feature, e.g. -set koi_prad=1.2 (repeatable)")
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	obs, err := buildObservation(*input, set)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid input")
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.RequestTimeout)
	defer cancel()

	if *local != "" {
		runLocal(*local, obs, *showInfo, *asJSON)
		return
	}

	cl := client.New(*serverURL, c.RequestTimeout)
	if *showInfo {
		info, err := cl.ModelInfo(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("model info request failed")
		}
		printJSON(info)
		return
	}

	resp, err := cl.Predict(ctx, obs, "")
	if err != nil {
		log.Fatal().Err(err).Msg("prediction request failed")
	}
	if *asJSON {
		printJSON(resp)
		return
	}
	printPrediction(resp.Label, resp.Probabilities, resp.Description)
}

func runLocal(path string, obs observation.Observation, showInfo, asJSON bool) {
	p, err := ml.LoadPredictor(path, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load model")
	}
	if showInfo {
		printJSON(p.Info())
		return
	}
	pred, err := p.Predict(obs)
	if err != nil {
		log.Fatal().Err(err).Msg("prediction failed")
	}
	if asJSON {
		printJSON(pred)
		return
	}
	printPrediction(pred.Label, pred.Probabilities, ml.DescribeClass(pred.Label))
}

func buildObservation(path string, set assignments) (observation.Observation, error) {
	values := observation.Default().ToMap()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return observation.Observation{}, err
		}
		var fromFile map[string]float64
		if err := json.Unmarshal(data, &fromFile); err != nil {
			return observation.Observation{}, fmt.Errorf("parse %s: %w", path, err)
		}
		for k, v := range fromFile {
			values[k] = v
		}
	}
	for k, v := range set {
		values[k] = v
	}
	return observation.FromMap(values)
}

func printPrediction(label string, probs []ml.ClassProbability, description string) {
	fmt.Printf("Predicted disposition: %s\n", label)
	fmt.Printf("%s\n\n", description)
	for _, cp := range probs {
		bar := strings.Repeat("#", int(cp.Probability*40+0.5))
		fmt.Printf("  %-15s %6.2f%%  %s\n", cp.Class, cp.Probability*100, bar)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatal().Err(err).Msg("failed to encode output")
	}
}
