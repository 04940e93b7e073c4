package calibration

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	apperrors "github.com/louisbranch/alphasignal/internal/platform/errors"
	"github.com/louisbranch/alphasignal/internal/platform/id"
)

// Build defaults applied when the run config leaves fields zero.
const (
	DefaultBinCount         = 10
	DefaultMaxAdjustmentPct = 20.0
	DefaultMinBinCount      = 25
)

// ErrNoSamples indicates a build request with no scored samples.
var ErrNoSamples = apperrors.New(apperrors.CodeCalibrationNoSamples, "calibration build requires scored samples")

// ErrEmptyWindow indicates a missing scoring window.
var ErrEmptyWindow = apperrors.New(apperrors.CodeCalibrationWindowEmpty, "calibration window is required")

// Sample is one scored prediction with its resolved outcome.
type Sample struct {
	Confidence float64
	Correct    bool
}

// BuildInput carries everything needed to compute a calibration run.
type BuildInput struct {
	Window  string
	Scope   Scope
	Config  RunConfig
	Samples []Sample
}

// BuildMap computes a calibration run and its map from scored samples.
//
// Per bin, the adjustment is the percentage that moves mean confidence onto
// observed accuracy, clamped to the configured cap. The run output records
// the ECE delta the map would produce, the clamp rate over nonzero bins, and
// the largest absolute adjustment in the map.
func BuildMap(input BuildInput, now func() time.Time, newID func() (string, error)) (Run, Map, error) {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}

	window := strings.TrimSpace(input.Window)
	if window == "" {
		return Run{}, Map{}, ErrEmptyWindow
	}
	if len(input.Samples) == 0 {
		return Run{}, Map{}, ErrNoSamples
	}

	cfg := input.Config
	if cfg.BinCount <= 0 {
		cfg.BinCount = DefaultBinCount
	}
	if cfg.MaxAdjustmentPct <= 0 {
		cfg.MaxAdjustmentPct = DefaultMaxAdjustmentPct
	}
	if cfg.MinBinCount <= 0 {
		cfg.MinBinCount = DefaultMinBinCount
	}

	scope := input.Scope
	if scope == "" {
		scope = ScopeGlobal
	}

	confidences := make([][]float64, cfg.BinCount)
	outcomes := make([][]float64, cfg.BinCount)
	for _, sample := range input.Samples {
		idx := binIndexFor(sample.Confidence, cfg.BinCount)
		confidences[idx] = append(confidences[idx], sample.Confidence)
		if sample.Correct {
			outcomes[idx] = append(outcomes[idx], 1)
		} else {
			outcomes[idx] = append(outcomes[idx], 0)
		}
	}

	width := 1.0 / float64(cfg.BinCount)
	bins := make([]Bin, cfg.BinCount)
	total := float64(len(input.Samples))

	var eceBefore, eceAfter float64
	var nonzeroBins, clampedBins int
	var maxAdjSeen float64

	for i := range bins {
		bin := Bin{
			RangeLow:  float64(i) * width,
			RangeHigh: float64(i+1) * width,
		}
		if i == cfg.BinCount-1 {
			bin.RangeHigh = 1.0
		}

		n := len(confidences[i])
		bin.SampleCount = n
		if n > 0 {
			nonzeroBins++
			bin.MeanConfidence = stat.Mean(confidences[i], nil)
			bin.MeanAccuracy = stat.Mean(outcomes[i], nil)

			if bin.MeanConfidence > 0 {
				raw := (bin.MeanAccuracy/bin.MeanConfidence - 1) * 100
				bin.AdjustmentPct = raw
				if math.Abs(raw) > cfg.MaxAdjustmentPct {
					bin.AdjustmentPct = math.Copysign(cfg.MaxAdjustmentPct, raw)
					bin.Clamped = true
					clampedBins++
				}
			}
			if math.Abs(bin.AdjustmentPct) > maxAdjSeen {
				maxAdjSeen = math.Abs(bin.AdjustmentPct)
			}

			weight := float64(n) / total
			eceBefore += weight * math.Abs(bin.MeanConfidence-bin.MeanAccuracy)
			adjustedMean := clamp01(bin.MeanConfidence * (1 + bin.AdjustmentPct/100))
			eceAfter += weight * math.Abs(adjustedMean-bin.MeanAccuracy)
		}
		bins[i] = bin
	}

	clampRate := 0.0
	if nonzeroBins > 0 {
		clampRate = float64(clampedBins) / float64(nonzeroBins)
	}

	runID, err := newID()
	if err != nil {
		return Run{}, Map{}, fmt.Errorf("generate run id: %w", err)
	}
	mapID, err := newID()
	if err != nil {
		return Run{}, Map{}, fmt.Errorf("generate map id: %w", err)
	}

	createdAt := now().UTC()
	calibrationMap := Map{
		ID:     mapID,
		RunID:  runID,
		Window: window,
		Bins:   bins,
		Guardrails: Guardrails{
			MaxAdjustmentPct: cfg.MaxAdjustmentPct,
			MinBinCount:      cfg.MinBinCount,
		},
		CreatedAt: createdAt,
	}
	run := Run{
		ID:     runID,
		Window: window,
		Scope:  scope,
		Config: cfg,
		Output: RunMetrics{
			DeltaECE:          eceAfter - eceBefore,
			ClampRate:         clampRate,
			MaxAdjustmentSeen: maxAdjSeen,
			SampleCount:       len(input.Samples),
		},
		MapID:     mapID,
		CreatedAt: createdAt,
	}
	return run, calibrationMap, nil
}

func binIndexFor(raw float64, binCount int) int {
	idx := int(raw * float64(binCount))
	if idx < 0 {
		return 0
	}
	if idx >= binCount {
		return binCount - 1
	}
	return idx
}

func clamp01(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
