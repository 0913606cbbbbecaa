package dataset

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"

	"exoplanet-classifier/internal/common"
)

// SyntheticOptions controls GenerateKOI.
type SyntheticOptions struct {
	Rows        int
	Seed        uint64
	MissingRate float64 // probability that a numeric cell is left empty
}

// classProfile shapes the numeric features of one disposition.
type classProfile struct {
	label    string
	share    float64
	snr      float64 // median transit SNR
	prad     float64 // median planet radius
	flagProb float64 // probability of raising one false positive flag
}

var profiles = []classProfile{
	{common.ClassCandidate, 0.25, 18, 2.2, 0.03},
	{common.ClassConfirmed, 0.30, 60, 1.8, 0.01},
	{common.ClassFalsePositive, 0.45, 35, 12, 0.85},
}

// GenerateKOI writes a synthetic cumulative KOI export: common.DatasetSkipRows
// comment lines, a header carrying every trained and dropped column plus
// identifiers, and opts.Rows labelled rows. The output is deterministic for
// a given seed.
func GenerateKOI(w io.Writer, opts SyntheticOptions) error {
	if opts.Rows <= 0 {
		return fmt.Errorf("rows must be positive, got %d", opts.Rows)
	}
	if opts.MissingRate < 0 || opts.MissingRate >= 1 {
		return fmt.Errorf("missing rate must be in [0,1), got %v", opts.MissingRate)
	}

	rng := rand.New(rand.NewPCG(opts.Seed, 0x4b4f49))
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "# This file was produced by the synthetic KOI generator")
	for i := 1; i < common.DatasetSkipRows; i++ {
		fmt.Fprintf(bw, "# COLUMN %d\n", i)
	}

	cw := csv.NewWriter(bw)
	header := []string{"kepid", "kepoi_name", common.TargetColumn}
	header = append(header, common.FeatureNames...)
	header = append(header, common.DroppedColumns...)
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, 0, len(header))
	for i := 0; i < opts.Rows; i++ {
		p := pickProfile(rng)
		values := sampleFeatures(rng, p)

		row = row[:0]
		row = append(row, strconv.Itoa(10000000+i), fmt.Sprintf("K%05d.01", i+1), p.label)
		for j, v := range values {
			if j < len(common.NumericFeatures) && rng.Float64() < opts.MissingRate {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.FormatFloat(v, 'g', 8, 64))
		}
		for range common.DroppedColumns {
			row = append(row, "")
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

func pickProfile(rng *rand.Rand) classProfile {
	u := rng.Float64()
	for _, p := range profiles {
		if u < p.share {
			return p
		}
		u -= p.share
	}
	return profiles[len(profiles)-1]
}

// sampleFeatures returns values in common.FeatureNames order.
func sampleFeatures(rng *rand.Rand, p classProfile) []float64 {
	logNormal := func(median, sigma float64) float64 {
		return median * math.Exp(sigma*rng.NormFloat64())
	}

	period := logNormal(12, 1.2)
	steff := 5500 + 600*rng.NormFloat64()
	srad := logNormal(1, 0.3)
	prad := logNormal(p.prad, 0.5)
	insol := logNormal(200, 1.5)
	teq := 278 * math.Pow(insol, 0.25)
	depth := 84 * prad * prad / (srad * srad) * (1 + 0.2*rng.NormFloat64())

	v := []float64{
		period,
		131.5 + rng.Float64()*period,
		math.Abs(0.4 + 0.3*rng.NormFloat64()),
		logNormal(3, 0.4),
		math.Abs(depth),
		prad,
		teq,
		insol,
		logNormal(p.snr, 0.5),
		steff,
		4.4 + 0.15*rng.NormFloat64(),
		srad,
		0, 0, 0, 0,
	}

	flags := v[len(common.NumericFeatures):]
	if rng.Float64() < p.flagProb {
		flags[rng.IntN(len(flags))] = 1
		if rng.Float64() < 0.3 {
			flags[rng.IntN(len(flags))] = 1
		}
	}
	return v
}
