// Package observation defines the single-row input of the classifier: one
// transit-survey candidate described by 16 named measurements and flags.
package observation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"exoplanet-classifier/internal/common"
)

// ErrMalformedInput matches every *MalformedInputError.
var ErrMalformedInput = errors.New("malformed input")

// MalformedInputError names the offending feature.
type MalformedInputError struct {
	Field  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input: field %q: %s", e.Field, e.Reason)
}

func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

// Observation is one candidate. Field order matches common.FeatureNames.
type Observation struct {
	OrbitalPeriod   float64 `json:"koi_period"`
	TransitEpoch    float64 `json:"koi_time0bk"`
	ImpactParameter float64 `json:"koi_impact"`
	TransitDuration float64 `json:"koi_duration"`
	TransitDepth    float64 `json:"koi_depth"`
	PlanetRadius    float64 `json:"koi_prad"`
	EquilibriumTemp float64 `json:"koi_teq"`
	InsolationFlux  float64 `json:"koi_insol"`
	TransitSNR      float64 `json:"koi_model_snr"`
	StellarTemp     float64 `json:"koi_steff"`
	StellarGravity  float64 `json:"koi_slogg"`
	StellarRadius   float64 `json:"koi_srad"`
	FlagNotTransit  float64 `json:"koi_fpflag_nt"`
	FlagStellarEcl  float64 `json:"koi_fpflag_ss"`
	FlagCentroid    float64 `json:"koi_fpflag_co"`
	FlagEphemeris   float64 `json:"koi_fpflag_ec"`
}

func (o *Observation) fields() []*float64 {
	return []*float64{
		&o.OrbitalPeriod,
		&o.TransitEpoch,
		&o.ImpactParameter,
		&o.TransitDuration,
		&o.TransitDepth,
		&o.PlanetRadius,
		&o.EquilibriumTemp,
		&o.InsolationFlux,
		&o.TransitSNR,
		&o.StellarTemp,
		&o.StellarGravity,
		&o.StellarRadius,
		&o.FlagNotTransit,
		&o.FlagStellarEcl,
		&o.FlagCentroid,
		&o.FlagEphemeris,
	}
}

var fieldIndex = func() map[string]int {
	m := make(map[string]int, len(common.FeatureNames))
	for i, name := range common.FeatureNames {
		m[name] = i
	}
	return m
}()

var flagSet = func() map[string]bool {
	m := make(map[string]bool, len(common.FlagFeatures))
	for _, name := range common.FlagFeatures {
		m[name] = true
	}
	return m
}()

// IsFlag reports whether name is one of the binary false-positive flags.
func IsFlag(name string) bool {
	return flagSet[name]
}

// Values returns the features in common.FeatureNames order.
func (o Observation) Values() []float64 {
	ptrs := o.fields()
	out := make([]float64, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out
}

// Value returns a feature by column name.
func (o Observation) Value(name string) (float64, bool) {
	idx, ok := fieldIndex[name]
	if !ok {
		return 0, false
	}
	return *o.fields()[idx], true
}

// Vector returns the features in the given column order, binding by name.
func (o Observation) Vector(columns []string) ([]float64, error) {
	out := make([]float64, len(columns))
	for i, name := range columns {
		v, ok := o.Value(name)
		if !ok {
			return nil, &MalformedInputError{Field: name, Reason: "unknown feature"}
		}
		out[i] = v
	}
	return out, nil
}

// ToMap returns the features keyed by column name.
func (o Observation) ToMap() map[string]float64 {
	out := make(map[string]float64, len(common.FeatureNames))
	for i, v := range o.Values() {
		out[common.FeatureNames[i]] = v
	}
	return out
}

// Validate checks every field for finite values and 0/1 flags.
func (o Observation) Validate() error {
	for i, v := range o.Values() {
		if err := checkValue(common.FeatureNames[i], v); err != nil {
			return err
		}
	}
	return nil
}

func checkValue(name string, v float64) error {
	if math.IsNaN(v) {
		return &MalformedInputError{Field: name, Reason: "value is NaN"}
	}
	if math.IsInf(v, 0) {
		return &MalformedInputError{Field: name, Reason: "value is infinite"}
	}
	if flagSet[name] && v != 0 && v != 1 {
		return &MalformedInputError{Field: name, Reason: fmt.Sprintf("flag must be 0 or 1, got %v", v)}
	}
	return nil
}

// FromMap builds an observation from a complete name->value mapping. All
// 16 features are required and unknown keys are rejected.
func FromMap(values map[string]float64) (Observation, error) {
	var o Observation
	ptrs := o.fields()
	for i, name := range common.FeatureNames {
		v, ok := values[name]
		if !ok {
			return Observation{}, &MalformedInputError{Field: name, Reason: "missing required feature"}
		}
		if err := checkValue(name, v); err != nil {
			return Observation{}, err
		}
		*ptrs[i] = v
	}
	if err := rejectUnknown(keysOf(values)); err != nil {
		return Observation{}, err
	}
	return o, nil
}

// FromAny builds an observation from decoded JSON. Values may be numbers,
// json.Number or numeric strings.
func FromAny(values map[string]any) (Observation, error) {
	floats := make(map[string]float64, len(values))
	for _, name := range common.FeatureNames {
		raw, ok := values[name]
		if !ok {
			return Observation{}, &MalformedInputError{Field: name, Reason: "missing required feature"}
		}
		v, err := toFloat(raw)
		if err != nil {
			return Observation{}, &MalformedInputError{Field: name, Reason: err.Error()}
		}
		floats[name] = v
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	if err := rejectUnknown(keys); err != nil {
		return Observation{}, err
	}
	return FromMap(floats)
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("non-numeric value %q", v.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("non-numeric value %q", v)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("value is null")
	default:
		return 0, fmt.Errorf("non-numeric value of type %T", raw)
	}
}

func keysOf(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func rejectUnknown(keys []string) error {
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := fieldIndex[k]; !ok {
			return &MalformedInputError{Field: k, Reason: "unknown feature"}
		}
	}
	return nil
}
