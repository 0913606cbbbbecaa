package observation

import "exoplanet-classifier/internal/common"

// Group is the preprocessing branch a feature belongs to.
type Group string

const (
	GroupNumeric Group = "numeric"
	GroupFlag    Group = "flag"
)

// FeatureSpec describes one input for callers that render a form. Min and
// Max are suggested input ranges only; they are not enforced.
type FeatureSpec struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Unit        string  `json:"unit,omitempty"`
	Group       Group   `json:"group"`
	Default     float64 `json:"default"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
}

var specs = []FeatureSpec{
	{common.FeatureOrbitalPeriod, "Orbital period", "days", GroupNumeric, 11.5, 0.1, 500},
	{common.FeatureTransitEpoch, "Transit epoch", "BKJD", GroupNumeric, 134.0, 120, 1500},
	{common.FeatureImpactParameter, "Impact parameter", "", GroupNumeric, 0.4, 0, 2},
	{common.FeatureTransitDuration, "Transit duration", "hours", GroupNumeric, 3.0, 0.1, 24},
	{common.FeatureTransitDepth, "Transit depth", "ppm", GroupNumeric, 1500, 0, 100000},
	{common.FeaturePlanetRadius, "Planetary radius", "Earth radii", GroupNumeric, 2.5, 0.1, 100},
	{common.FeatureEquilibriumTemp, "Equilibrium temperature", "K", GroupNumeric, 600, 50, 5000},
	{common.FeatureInsolationFlux, "Insolation flux", "Earth flux", GroupNumeric, 200, 0, 100000},
	{common.FeatureTransitSNR, "Transit signal-to-noise", "", GroupNumeric, 30.0, 0, 1000},
	{common.FeatureStellarTemp, "Stellar effective temperature", "K", GroupNumeric, 5500, 3000, 8000},
	{common.FeatureStellarGravity, "Stellar surface gravity", "log10(cm/s^2)", GroupNumeric, 4.4, 2, 5},
	{common.FeatureStellarRadius, "Stellar radius", "Solar radii", GroupNumeric, 1.0, 0.1, 10},
	{common.FeatureFlagNotTransit, "Not transit-like flag", "", GroupFlag, 0, 0, 1},
	{common.FeatureFlagStellarEcl, "Stellar eclipse flag", "", GroupFlag, 0, 0, 1},
	{common.FeatureFlagCentroid, "Centroid offset flag", "", GroupFlag, 0, 0, 1},
	{common.FeatureFlagEphemerisHit, "Ephemeris match flag", "", GroupFlag, 0, 0, 1},
}

// Specs returns the feature descriptions in common.FeatureNames order.
func Specs() []FeatureSpec {
	out := make([]FeatureSpec, len(specs))
	copy(out, specs)
	return out
}

// Default returns the observation made of every feature's default value.
func Default() Observation {
	var o Observation
	for i, p := range o.fields() {
		*p = specs[i].Default
	}
	return o
}
