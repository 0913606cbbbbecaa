package ml

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	driftBins = 10
	psiFloor  = 1e-4 // share used for empty bins so the log stays finite
)

// Drift severities, by population stability index
const (
	DriftNone        = "none"        // PSI < 0.1
	DriftModerate    = "moderate"    // 0.1 <= PSI < 0.25
	DriftSignificant = "significant" // PSI >= 0.25
)

// FeatureBaseline summarizes one input column over the training rows.
// Edges are the interior bin edges (training deciles, deduplicated) and
// Shares holds the training share of each of the len(Edges)+1 bins.
type FeatureBaseline struct {
	Name    string    `json:"name"`
	Mean    float64   `json:"mean"`
	StdDev  float64   `json:"std_dev"`
	Edges   []float64 `json:"edges"`
	Shares  []float64 `json:"shares"`
	Missing float64   `json:"missing"`
}

// FeatureDrift compares served inputs for one column against its baseline.
type FeatureDrift struct {
	Name      string  `json:"name"`
	PSI       float64 `json:"psi"`
	MeanShift float64 `json:"mean_shift"` // in baseline standard deviations
	Samples   int     `json:"samples"`
	Severity  string  `json:"severity"`
}

// buildBaseline summarizes every column of X. Missing (NaN) cells are
// counted but excluded from the distribution.
func buildBaseline(columns []string, X [][]float64) []FeatureBaseline {
	out := make([]FeatureBaseline, len(columns))
	for j, name := range columns {
		values := make([]float64, 0, len(X))
		for _, row := range X {
			if !math.IsNaN(row[j]) {
				values = append(values, row[j])
			}
		}

		b := FeatureBaseline{Name: name}
		if len(X) > 0 {
			b.Missing = float64(len(X)-len(values)) / float64(len(X))
		}
		if len(values) == 0 {
			b.Shares = []float64{1}
			out[j] = b
			continue
		}

		sort.Float64s(values)
		b.Mean, b.StdDev = stat.MeanStdDev(values, nil)
		if math.IsNaN(b.StdDev) {
			b.StdDev = 0
		}
		for k := 1; k < driftBins; k++ {
			edge := stat.Quantile(float64(k)/driftBins, stat.Empirical, values, nil)
			if len(b.Edges) == 0 || edge > b.Edges[len(b.Edges)-1] {
				b.Edges = append(b.Edges, edge)
			}
		}
		b.Shares = histogram(b.Edges, values)
		out[j] = b
	}
	return out
}

// histogram returns the share of values in each bin; a value equal to an
// edge falls in the bin below it.
func histogram(edges, values []float64) []float64 {
	shares := make([]float64, len(edges)+1)
	if len(values) == 0 {
		return shares
	}
	for _, v := range values {
		shares[sort.SearchFloat64s(edges, v)]++
	}
	for i := range shares {
		shares[i] /= float64(len(values))
	}
	return shares
}

// psi is the population stability index of current against expected.
func psi(expected, current []float64) float64 {
	total := 0.0
	for i := range expected {
		e := math.Max(expected[i], psiFloor)
		c := math.Max(current[i], psiFloor)
		total += (c - e) * math.Log(c/e)
	}
	return total
}

func severity(psi float64) string {
	switch {
	case psi >= 0.25:
		return DriftSignificant
	case psi >= 0.1:
		return DriftModerate
	default:
		return DriftNone
	}
}

// DetectDrift compares served feature mappings against the training
// baseline. Rows missing a column are skipped for that column only.
func DetectDrift(baseline []FeatureBaseline, rows []map[string]float64) ([]FeatureDrift, error) {
	if len(baseline) == 0 {
		return nil, fmt.Errorf("model artifact has no training baseline")
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no served inputs to compare")
	}

	out := make([]FeatureDrift, 0, len(baseline))
	for _, b := range baseline {
		values := make([]float64, 0, len(rows))
		for _, row := range rows {
			if v, ok := row[b.Name]; ok && !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		d := FeatureDrift{Name: b.Name, Samples: len(values), Severity: DriftNone}
		if len(values) > 0 && len(b.Shares) == len(b.Edges)+1 {
			d.PSI = psi(b.Shares, histogram(b.Edges, values))
			if b.StdDev > 0 {
				d.MeanShift = (stat.Mean(values, nil) - b.Mean) / b.StdDev
			}
			d.Severity = severity(d.PSI)
		}
		out = append(out, d)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].PSI > out[j].PSI })
	return out, nil
}
