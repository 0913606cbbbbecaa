package common

// Dataset layout of the KOI cumulative table export
const (
	DatasetSkipRows = 53 // leading "#" metadata lines before the header
	TargetColumn    = "koi_disposition"
)

// DroppedColumns are always empty in the export and are removed before
// feature selection.
var DroppedColumns = []string{"koi_teq_err1", "koi_teq_err2"}

// Feature column names
const (
	FeatureOrbitalPeriod    = "koi_period"
	FeatureTransitEpoch     = "koi_time0bk"
	FeatureImpactParameter  = "koi_impact"
	FeatureTransitDuration  = "koi_duration"
	FeatureTransitDepth     = "koi_depth"
	FeaturePlanetRadius     = "koi_prad"
	FeatureEquilibriumTemp  = "koi_teq"
	FeatureInsolationFlux   = "koi_insol"
	FeatureTransitSNR       = "koi_model_snr"
	FeatureStellarTemp      = "koi_steff"
	FeatureStellarGravity   = "koi_slogg"
	FeatureStellarRadius    = "koi_srad"
	FeatureFlagNotTransit   = "koi_fpflag_nt"
	FeatureFlagStellarEcl   = "koi_fpflag_ss"
	FeatureFlagCentroid     = "koi_fpflag_co"
	FeatureFlagEphemerisHit = "koi_fpflag_ec"
)

// FeatureNames is the fixed column order used for training and inference.
var FeatureNames = []string{
	FeatureOrbitalPeriod,
	FeatureTransitEpoch,
	FeatureImpactParameter,
	FeatureTransitDuration,
	FeatureTransitDepth,
	FeaturePlanetRadius,
	FeatureEquilibriumTemp,
	FeatureInsolationFlux,
	FeatureTransitSNR,
	FeatureStellarTemp,
	FeatureStellarGravity,
	FeatureStellarRadius,
	FeatureFlagNotTransit,
	FeatureFlagStellarEcl,
	FeatureFlagCentroid,
	FeatureFlagEphemerisHit,
}

// NumericFeatures are imputed and standardized.
var NumericFeatures = FeatureNames[:12]

// FlagFeatures pass through unchanged.
var FlagFeatures = FeatureNames[12:]

// Disposition labels
const (
	ClassCandidate     = "CANDIDATE"
	ClassConfirmed     = "CONFIRMED"
	ClassFalsePositive = "FALSE POSITIVE"
)

// ClassNames in label-encoder order.
var ClassNames = []string{ClassCandidate, ClassConfirmed, ClassFalsePositive}

// Training constants
const (
	TestSize   = 0.2
	SplitSeed  = 42
	NumTrees   = 100
	ForestSeed = 42
)

// Environment variable keys
const (
	EnvConfigFile       = "CONFIG_FILE"
	EnvDotEnvFile       = "ENV_FILE"
	EnvDatasetPath      = "DATASET_PATH"
	EnvArtifactPath     = "ARTIFACT_PATH"
	EnvDataPath         = "DATA_PATH"
	EnvServerPort       = "SERVER_PORT"
	EnvMetricsPort      = "METRICS_PORT"
	EnvLogLevel         = "LOG_LEVEL"
	EnvTrainWorkers     = "TRAIN_WORKERS"
	EnvServerURL        = "SERVER_URL"
	EnvRequestTimeout   = "REQUEST_TIMEOUT"
	EnvLogPredictions   = "LOG_PREDICTIONS"
	EnvShutdownTimeout  = "SHUTDOWN_TIMEOUT"
	EnvMaxRequestBodyKB = "MAX_REQUEST_BODY_KB"
)

// Configuration defaults
const (
	DefaultDatasetPath      = "org.csv"
	DefaultArtifactPath     = "exoplanet_model_pipeline.koi"
	DefaultServerPort       = 8501
	DefaultMetricsPort      = 9090
	DefaultLogLevel         = "info"
	DefaultTrainWorkers     = 4
	DefaultServerURL        = "http://localhost:8501"
	DefaultMaxRequestBodyKB = 64
)

// Validation constants
const (
	MinPort         = 1024
	MaxPort         = 65535
	MaxTrainWorkers = 256
)
