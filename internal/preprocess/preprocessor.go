package preprocess

import (
	"fmt"
	"math"
)

// Preprocessor routes input columns by name: numeric columns go through a
// NumericScaler, flag columns pass through unchanged. Output is the numeric
// block followed by the flag block.
//
// After Fit the preprocessor is read-only and safe for concurrent use.
type Preprocessor struct {
	Columns        []string
	NumericColumns []string
	FlagColumns    []string
	NumericIndex   []int
	FlagIndex      []int
	Scaler         NumericScaler
}

// NewPreprocessor resolves the numeric and flag columns against the input
// column order. Every input column must belong to exactly one group.
func NewPreprocessor(columns, numeric, flags []string) (*Preprocessor, error) {
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("duplicate input column %q", name)
		}
		index[name] = i
	}

	assigned := make(map[string]bool, len(columns))
	resolve := func(names []string) ([]int, error) {
		out := make([]int, len(names))
		for k, name := range names {
			i, ok := index[name]
			if !ok {
				return nil, fmt.Errorf("column %q is not an input column", name)
			}
			if assigned[name] {
				return nil, fmt.Errorf("column %q assigned to more than one group", name)
			}
			assigned[name] = true
			out[k] = i
		}
		return out, nil
	}

	numIdx, err := resolve(numeric)
	if err != nil {
		return nil, err
	}
	flagIdx, err := resolve(flags)
	if err != nil {
		return nil, err
	}
	for _, name := range columns {
		if !assigned[name] {
			return nil, fmt.Errorf("input column %q has no transform", name)
		}
	}

	return &Preprocessor{
		Columns:        append([]string(nil), columns...),
		NumericColumns: append([]string(nil), numeric...),
		FlagColumns:    append([]string(nil), flags...),
		NumericIndex:   numIdx,
		FlagIndex:      flagIdx,
	}, nil
}

// OutputColumns returns the column names of the transformed vector.
func (p *Preprocessor) OutputColumns() []string {
	out := make([]string, 0, len(p.NumericColumns)+len(p.FlagColumns))
	out = append(out, p.NumericColumns...)
	return append(out, p.FlagColumns...)
}

// Fit learns the numeric statistics from the training rows only.
func (p *Preprocessor) Fit(X [][]float64) error {
	numeric := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(p.Columns) {
			return fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(p.Columns))
		}
		sub := make([]float64, len(p.NumericIndex))
		for k, j := range p.NumericIndex {
			sub[k] = row[j]
		}
		numeric[i] = sub
	}
	if err := p.Scaler.Fit(numeric); err != nil {
		return fmt.Errorf("failed to fit numeric scaler: %w", err)
	}
	return nil
}

// Transform maps one input row to the model's feature vector.
func (p *Preprocessor) Transform(x []float64) ([]float64, error) {
	if len(x) != len(p.Columns) {
		return nil, fmt.Errorf("expected %d values, got %d", len(p.Columns), len(x))
	}

	nNum := len(p.NumericIndex)
	out := make([]float64, nNum+len(p.FlagIndex))

	numeric := make([]float64, nNum)
	for k, j := range p.NumericIndex {
		numeric[k] = x[j]
	}
	if err := p.Scaler.TransformInto(out[:nNum], numeric); err != nil {
		return nil, err
	}

	for k, j := range p.FlagIndex {
		v := x[j]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("flag column %q is not finite", p.FlagColumns[k])
		}
		out[nNum+k] = v
	}
	return out, nil
}

// TransformAll applies Transform to every row.
func (p *Preprocessor) TransformAll(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		t, err := p.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

// Validate checks structural consistency of a decoded preprocessor.
func (p *Preprocessor) Validate() error {
	if len(p.NumericIndex) != len(p.NumericColumns) || len(p.FlagIndex) != len(p.FlagColumns) {
		return fmt.Errorf("preprocessor column groups and indices disagree")
	}
	if len(p.NumericIndex)+len(p.FlagIndex) != len(p.Columns) {
		return fmt.Errorf("preprocessor groups cover %d of %d columns", len(p.NumericIndex)+len(p.FlagIndex), len(p.Columns))
	}
	for k, j := range p.NumericIndex {
		if j < 0 || j >= len(p.Columns) || p.Columns[j] != p.NumericColumns[k] {
			return fmt.Errorf("numeric column %q has a stale index", p.NumericColumns[k])
		}
	}
	for k, j := range p.FlagIndex {
		if j < 0 || j >= len(p.Columns) || p.Columns[j] != p.FlagColumns[k] {
			return fmt.Errorf("flag column %q has a stale index", p.FlagColumns[k])
		}
	}
	if p.Scaler.Width() != len(p.NumericIndex) {
		return fmt.Errorf("scaler width %d, expected %d", p.Scaler.Width(), len(p.NumericIndex))
	}
	return p.Scaler.Validate()
}
