package preprocess

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// NumericScaler imputes missing values with the column median and then
// standardizes each column to zero mean and unit variance.
type NumericScaler struct {
	Medians []float64
	Means   []float64
	Scales  []float64
}

// Fit learns per-column statistics. NaN marks a missing value. The mean and
// population standard deviation are taken over the imputed column.
func (s *NumericScaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return fmt.Errorf("cannot fit scaler on zero rows")
	}
	d := len(X[0])
	if d == 0 {
		return fmt.Errorf("cannot fit scaler on zero columns")
	}

	m := mat.NewDense(len(X), d, nil)
	for i, row := range X {
		if len(row) != d {
			return fmt.Errorf("row %d has %d values, expected %d", i, len(row), d)
		}
		m.SetRow(i, row)
	}

	medians := make([]float64, d)
	means := make([]float64, d)
	scales := make([]float64, d)
	col := make([]float64, len(X))

	for j := 0; j < d; j++ {
		mat.Col(col, j, m)

		med, ok := median(col)
		if !ok {
			return fmt.Errorf("column %d has no observed values", j)
		}
		for i, v := range col {
			if math.IsNaN(v) {
				col[i] = med
			}
		}

		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		medians[j], means[j], scales[j] = med, mean, std
	}

	s.Medians, s.Means, s.Scales = medians, means, scales
	return nil
}

// Width returns the number of fitted columns, 0 before Fit.
func (s *NumericScaler) Width() int {
	return len(s.Medians)
}

// TransformInto writes the scaled row into dst. Both slices must have
// Width() elements.
func (s *NumericScaler) TransformInto(dst, row []float64) error {
	if s.Width() == 0 {
		return ErrNotFitted
	}
	if len(row) != s.Width() || len(dst) != s.Width() {
		return fmt.Errorf("expected %d numeric values, got %d", s.Width(), len(row))
	}
	for j, v := range row {
		if math.IsNaN(v) {
			v = s.Medians[j]
		}
		dst[j] = (v - s.Means[j]) / s.Scales[j]
	}
	return nil
}

// Validate checks that the fitted statistics are complete and finite.
func (s *NumericScaler) Validate() error {
	d := len(s.Medians)
	if d == 0 {
		return ErrNotFitted
	}
	if len(s.Means) != d || len(s.Scales) != d {
		return fmt.Errorf("scaler statistics have inconsistent widths %d/%d/%d", d, len(s.Means), len(s.Scales))
	}
	for _, v := range [][]float64{s.Medians, s.Means, s.Scales} {
		if floats.HasNaN(v) || math.IsInf(floats.Max(v), 1) || math.IsInf(floats.Min(v), -1) {
			return fmt.Errorf("scaler statistics are not finite")
		}
	}
	if floats.Min(s.Scales) <= 0 {
		return fmt.Errorf("scaler has non-positive scale")
	}
	return nil
}

// median of the non-NaN values; the mean of the two middle values for an
// even count.
func median(values []float64) (float64, bool) {
	observed := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			observed = append(observed, v)
		}
	}
	n := len(observed)
	if n == 0 {
		return 0, false
	}
	sort.Float64s(observed)
	if n%2 == 1 {
		return observed[n/2], true
	}
	return (observed[n/2-1] + observed[n/2]) / 2, true
}
