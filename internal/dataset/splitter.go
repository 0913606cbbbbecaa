package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Samples is the feature matrix and label vector selected from a table.
// X columns follow Features exactly.
type Samples struct {
	Features []string
	X        [][]float64
	Labels   []string
}

// Len returns the number of samples.
func (s *Samples) Len() int {
	return len(s.Labels)
}

// SplitOptions controls feature/target selection.
type SplitOptions struct {
	Features []string
	Flags    []string // subset of Features expected to hold 0 or 1
	Target   string
	Drop     []string
}

// Split drops the configured columns and selects features by name, in the
// given order, plus the target column. Empty numeric cells become NaN. Flag
// cells must be present; values other than 0 or 1 are kept as they are and
// logged once per column.
func Split(t *Table, opts SplitOptions) (*Samples, error) {
	if len(opts.Features) == 0 {
		return nil, fmt.Errorf("no feature columns requested")
	}

	cleaned, missing := t.Drop(opts.Drop...)
	if len(missing) > 0 {
		log.Debug().Strs("columns", missing).Msg("Columns to drop not present in dataset")
	}

	if cleaned.Len() == 0 {
		return nil, fmt.Errorf("%w: dataset has no rows, empty label set", ErrTrainingData)
	}

	flags := make(map[string]bool, len(opts.Flags))
	for _, f := range opts.Flags {
		flags[f] = true
	}

	// Resolve every column before parsing so a missing column is reported
	// ahead of any cell error.
	columns := make([][]string, len(opts.Features))
	for j, name := range opts.Features {
		col, err := cleaned.Column(name)
		if err != nil {
			return nil, err
		}
		columns[j] = col
	}
	target, err := cleaned.Column(opts.Target)
	if err != nil {
		return nil, err
	}

	n := cleaned.Len()
	samples := &Samples{
		Features: append([]string(nil), opts.Features...),
		X:        make([][]float64, n),
		Labels:   make([]string, n),
	}

	offFlags := make(map[string]int)
	for i := 0; i < n; i++ {
		row := make([]float64, len(opts.Features))
		for j, name := range opts.Features {
			v, err := parseCell(columns[j][i], flags[name])
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %q: %v", ErrTrainingData, i+1, name, err)
			}
			if flags[name] && v != 0 && v != 1 {
				offFlags[name]++
			}
			row[j] = v
		}
		samples.X[i] = row

		label := strings.TrimSpace(target[i])
		if label == "" {
			return nil, fmt.Errorf("%w: row %d column %q: empty label", ErrTrainingData, i+1, opts.Target)
		}
		samples.Labels[i] = label
	}

	for _, name := range opts.Features {
		if c := offFlags[name]; c > 0 {
			log.Warn().Str("column", name).Int("rows", c).Msg("Flag column holds values other than 0 or 1, keeping them")
		}
	}

	log.Info().
		Int("rows", n).
		Int("features", len(opts.Features)).
		Str("target", opts.Target).
		Msg("Features and target selected")

	return samples, nil
}

func parseCell(raw string, flag bool) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		if flag {
			return 0, fmt.Errorf("missing flag value")
		}
		return math.NaN(), nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("non-numeric value %q", raw)
	}
	if math.IsInf(v, 0) {
		return 0, fmt.Errorf("infinite value %q", raw)
	}
	if math.IsNaN(v) {
		if flag {
			return 0, fmt.Errorf("missing flag value")
		}
		return v, nil
	}
	return v, nil
}
