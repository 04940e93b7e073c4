// Package evaluation scores a candidate model against promotion gates.
//
// Evaluate is a pure function over pre-fetched metrics: no I/O, no clock, no
// side effects. Every gate is evaluated even after a failure so callers can
// report all failure reasons together.
package evaluation

import (
	"fmt"

	"github.com/louisbranch/alphasignal/internal/governance/domain/drift"
	"github.com/louisbranch/alphasignal/internal/governance/domain/model"
)

// Family groups gates by what they defend against.
type Family string

const (
	// FamilyAbsolute gates enforce hard per-horizon floors.
	FamilyAbsolute Family = "ABSOLUTE"
	// FamilyRelative gates require the candidate to beat the active baseline.
	FamilyRelative Family = "RELATIVE"
	// FamilyRisk gates cap asymmetric production risks.
	FamilyRisk Family = "RISK"
	// FamilyDrift gates block promotion under distribution drift.
	FamilyDrift Family = "DRIFT"
)

// Gate names reported in failures.
const (
	GateMinSampleCount     = "min_sample_count"
	GateMinPrecision       = "min_precision"
	GateMinPRAUC           = "min_pr_auc"
	GateMaxECE             = "max_calibration_error"
	GatePrecisionLift      = "precision_lift"
	GatePRAUCLift          = "pr_auc_lift"
	GateValueLift          = "value_lift"
	GateFPRIncrease        = "fpr_increase"
	GateFNRIncrease        = "fnr_increase"
	GateConfidenceCollapse = "confidence_collapse"
	GateAvgDrawdown        = "avg_drawdown"
	GateDrift              = "drift"
)

// Config carries the gate thresholds for one horizon.
type Config struct {
	// Absolute floors.
	MinSampleCount int
	MinPrecision   float64
	MinPRAUC       float64
	MaxECE         float64

	// Relative lifts over the active baseline. Precision and PR-AUC lifts are
	// additive deltas; the value lift is a multiplicative ratio.
	MinPrecisionLift  float64
	MinPRAUCLift      float64
	MinValueLiftRatio float64

	// Risk caps. The FPR cap is deliberately tighter than the FNR cap: a
	// wrong positive call is costlier than a missed one.
	MaxFPRIncrease     float64
	MaxFNRIncrease     float64
	MaxECEIncrease     float64
	MaxAvgDrawdownFrac float64
}

// DefaultConfig returns the baseline gate thresholds. Horizon-specific
// overrides are resolved by the promotion workflow.
func DefaultConfig() Config {
	return Config{
		MinSampleCount:     300,
		MinPrecision:       0.60,
		MinPRAUC:           0.55,
		MaxECE:             0.10,
		MinPrecisionLift:   0.02,
		MinPRAUCLift:       0.02,
		MinValueLiftRatio:  1.05,
		MaxFPRIncrease:     0.02,
		MaxFNRIncrease:     0.10,
		MaxECEIncrease:     0.03,
		MaxAvgDrawdownFrac: 0.15,
	}
}

// GateFailure describes one failed gate.
type GateFailure struct {
	Gate      string
	Family    Family
	Reason    string
	Observed  float64
	Threshold float64
}

// Result is the full evaluation outcome.
type Result struct {
	Passed   bool
	Failures []GateFailure
}

// Input bundles the pre-fetched evaluation inputs.
type Input struct {
	Candidate model.TrainingMetrics
	// Baseline holds the active model's metrics. Ignored unless HasBaseline.
	Baseline    model.TrainingMetrics
	HasBaseline bool
	Drift       drift.Level
}

// Evaluate scores a candidate against all gate families. All gates run; the
// result lists every failure. Promotion rate limiting is the calling
// workflow's concern, not this function's.
func Evaluate(input Input, cfg Config) Result {
	var failures []GateFailure
	fail := func(gate string, family Family, reason string, observed, threshold float64) {
		failures = append(failures, GateFailure{
			Gate:      gate,
			Family:    family,
			Reason:    reason,
			Observed:  observed,
			Threshold: threshold,
		})
	}

	candidate := input.Candidate

	// Absolute floors block regardless of any baseline comparison.
	if candidate.SampleCount < cfg.MinSampleCount {
		fail(GateMinSampleCount, FamilyAbsolute,
			fmt.Sprintf("sample count %d below floor %d", candidate.SampleCount, cfg.MinSampleCount),
			float64(candidate.SampleCount), float64(cfg.MinSampleCount))
	}
	if candidate.Precision < cfg.MinPrecision {
		fail(GateMinPrecision, FamilyAbsolute,
			fmt.Sprintf("precision %.4f below floor %.4f", candidate.Precision, cfg.MinPrecision),
			candidate.Precision, cfg.MinPrecision)
	}
	if candidate.PRAUC < cfg.MinPRAUC {
		fail(GateMinPRAUC, FamilyAbsolute,
			fmt.Sprintf("pr-auc %.4f below floor %.4f", candidate.PRAUC, cfg.MinPRAUC),
			candidate.PRAUC, cfg.MinPRAUC)
	}
	if candidate.ECE > cfg.MaxECE {
		fail(GateMaxECE, FamilyAbsolute,
			fmt.Sprintf("calibration error %.4f above ceiling %.4f", candidate.ECE, cfg.MaxECE),
			candidate.ECE, cfg.MaxECE)
	}

	if input.HasBaseline {
		baseline := input.Baseline

		if lift := candidate.Precision - baseline.Precision; lift < cfg.MinPrecisionLift {
			fail(GatePrecisionLift, FamilyRelative,
				fmt.Sprintf("precision lift %.4f below required %.4f", lift, cfg.MinPrecisionLift),
				lift, cfg.MinPrecisionLift)
		}
		if lift := candidate.PRAUC - baseline.PRAUC; lift < cfg.MinPRAUCLift {
			fail(GatePRAUCLift, FamilyRelative,
				fmt.Sprintf("pr-auc lift %.4f below required %.4f", lift, cfg.MinPRAUCLift),
				lift, cfg.MinPRAUCLift)
		}
		if baseline.ValueOverRules > 0 {
			ratio := candidate.ValueOverRules / baseline.ValueOverRules
			if ratio < cfg.MinValueLiftRatio {
				fail(GateValueLift, FamilyRelative,
					fmt.Sprintf("value-over-rules ratio %.4f below required %.4f", ratio, cfg.MinValueLiftRatio),
					ratio, cfg.MinValueLiftRatio)
			}
		}

		if increase := candidate.FalsePosRate - baseline.FalsePosRate; increase > cfg.MaxFPRIncrease {
			fail(GateFPRIncrease, FamilyRisk,
				fmt.Sprintf("false positive rate increase %.4f above cap %.4f", increase, cfg.MaxFPRIncrease),
				increase, cfg.MaxFPRIncrease)
		}
		if increase := candidate.FalseNegRate - baseline.FalseNegRate; increase > cfg.MaxFNRIncrease {
			fail(GateFNRIncrease, FamilyRisk,
				fmt.Sprintf("false negative rate increase %.4f above cap %.4f", increase, cfg.MaxFNRIncrease),
				increase, cfg.MaxFNRIncrease)
		}
		if collapse := candidate.ECE - baseline.ECE; collapse > cfg.MaxECEIncrease {
			fail(GateConfidenceCollapse, FamilyRisk,
				fmt.Sprintf("calibration degradation %.4f above cap %.4f", collapse, cfg.MaxECEIncrease),
				collapse, cfg.MaxECEIncrease)
		}
	}

	if candidate.AvgDrawdown > cfg.MaxAvgDrawdownFrac {
		fail(GateAvgDrawdown, FamilyRisk,
			fmt.Sprintf("average drawdown %.4f above cap %.4f", candidate.AvgDrawdown, cfg.MaxAvgDrawdownFrac),
			candidate.AvgDrawdown, cfg.MaxAvgDrawdownFrac)
	}

	// Offline metrics mean nothing if the training distribution no longer
	// holds.
	if input.Drift.BlocksPromotion() {
		fail(GateDrift, FamilyDrift,
			fmt.Sprintf("drift level %s blocks promotion", input.Drift.Label()),
			float64(input.Drift), float64(drift.LevelHigh))
	}

	return Result{Passed: len(failures) == 0, Failures: failures}
}
