package ml

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"exoplanet-classifier/internal/forest"
	"exoplanet-classifier/internal/preprocess"
)

// ArtifactFormatVersion is bumped whenever the encoded layout changes.
const ArtifactFormatVersion = 1

var artifactMagic = []byte("KOIPIPE\x00")

var (
	// ErrArtifactMissing is returned when the artifact file does not exist.
	ErrArtifactMissing = errors.New("model artifact not found")
	// ErrArtifactCorrupt is returned when the artifact cannot be decoded or
	// fails validation.
	ErrArtifactCorrupt = errors.New("model artifact is corrupt")
)

// ArtifactMetadata records where a model came from and how it scored.
type ArtifactMetadata struct {
	RunID        string
	TrainedAt    time.Time
	DatasetPath  string
	DatasetRows  int
	TrainRows    int
	TestRows     int
	ClassCounts  map[string]int
	Evaluation   Evaluation
	Importances  []FeatureImportance
	Baseline     []FeatureBaseline // training distribution of each input column
	ForestConfig forest.Config
}

// Artifact is the single persisted object produced by training: the input
// column order, the label encoder classes, the fitted pipeline and metadata.
type Artifact struct {
	FormatVersion int
	Columns       []string
	Classes       []string
	Pipeline      Pipeline
	Metadata      ArtifactMetadata

	encoder *preprocess.LabelEncoder
}

// Encoder returns the label encoder rebuilt from Classes. Valid after
// Validate succeeds.
func (a *Artifact) Encoder() *preprocess.LabelEncoder {
	return a.encoder
}

// Validate checks the artifact's internal consistency and rebuilds the
// label encoder.
func (a *Artifact) Validate() error {
	if a.FormatVersion != ArtifactFormatVersion {
		return fmt.Errorf("unsupported artifact format version %d", a.FormatVersion)
	}
	if len(a.Columns) == 0 {
		return fmt.Errorf("artifact has no input columns")
	}
	encoder, err := preprocess.NewLabelEncoder(a.Classes)
	if err != nil {
		return err
	}
	if err := a.Pipeline.Validate(); err != nil {
		return err
	}
	if !slices.Equal(a.Columns, a.Pipeline.Preprocessor.Columns) {
		return fmt.Errorf("artifact columns differ from preprocessor columns")
	}
	if a.Pipeline.Forest.NumClasses != len(a.Classes) {
		return fmt.Errorf("forest has %d classes, encoder has %d", a.Pipeline.Forest.NumClasses, len(a.Classes))
	}
	a.encoder = encoder
	return nil
}

// Encode writes the artifact as a magic header followed by a
// zstd-compressed gob stream.
func (a *Artifact) Encode(w io.Writer) error {
	if _, err := w.Write(artifactMagic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(a.FormatVersion)}); err != nil {
		return err
	}

	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if err := gob.NewEncoder(zw).Encode(a); err != nil {
		zw.Close()
		return fmt.Errorf("encode artifact: %w", err)
	}
	return zw.Close()
}

// DecodeArtifact reads and validates an artifact. Every failure wraps
// ErrArtifactCorrupt.
func DecodeArtifact(r io.Reader) (*Artifact, error) {
	br := bufio.NewReader(r)

	header := make([]byte, len(artifactMagic)+1)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrArtifactCorrupt, err)
	}
	if !bytes.Equal(header[:len(artifactMagic)], artifactMagic) {
		return nil, fmt.Errorf("%w: not a model artifact", ErrArtifactCorrupt)
	}
	if v := int(header[len(artifactMagic)]); v != ArtifactFormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrArtifactCorrupt, v)
	}

	zr, err := zstd.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
	}
	defer zr.Close()

	var a Artifact
	if err := gob.NewDecoder(zr).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrArtifactCorrupt, err)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
	}
	return &a, nil
}

// Save writes the artifact atomically: a temporary file in the target
// directory is written, synced and renamed over path. On failure no file
// is left at path and the temporary file is removed.
func (a *Artifact) Save(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := a.Encode(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod artifact: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}
	committed = true

	log.Info().Str("path", path).Str("run_id", a.Metadata.RunID).Msg("Model artifact saved")
	return nil
}

// LoadArtifact reads an artifact from disk. A missing file yields
// ErrArtifactMissing; anything unreadable or inconsistent yields
// ErrArtifactCorrupt.
func LoadArtifact(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactCorrupt, path, err)
	}
	defer f.Close()

	a, err := DecodeArtifact(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Str("run_id", a.Metadata.RunID).
		Time("trained_at", a.Metadata.TrainedAt).
		Int("trees", len(a.Pipeline.Forest.Trees)).
		Msg("Model artifact loaded")

	return a, nil
}
