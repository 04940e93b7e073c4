// Package guard runs pre-activation safety checks over a calibration run.
//
// CheckSafety is pure and synchronous over pre-fetched inputs. The activation
// workflow gathers the run, map, alert counts, and readiness gates, then asks
// the guard for a verdict. SIMULATION mode exercises the full pipeline with
// the production-only checks relaxed; PROD stays maximally conservative.
package guard

import (
	"fmt"

	"github.com/louisbranch/alphasignal/internal/governance/domain/calibration"
	"github.com/louisbranch/alphasignal/internal/governance/readiness"
)

// Mode selects how strictly the guard applies its checks.
type Mode string

const (
	// ModeSimulation relaxes production-only checks to warnings or skips.
	ModeSimulation Mode = "SIMULATION"
	// ModeProd applies every check as a hard blocker.
	ModeProd Mode = "PROD"
)

// Check names reported in the safety report.
const (
	CheckECEImprovement = "ece_improvement"
	CheckClampRate      = "clamp_rate"
	CheckMaxAdjustment  = "max_adjustment"
	CheckMinBinCount    = "min_bin_count"
	CheckActiveAlerts   = "active_alerts"
	CheckStabilityGate  = "stability_gate"
	CheckPhaseReadiness = "phase_readiness"
)

// Config carries the guard thresholds.
type Config struct {
	// MaxDeltaECE is the worst acceptable ECE change. Negative deltas are
	// improvements; anything above this blocks activation.
	MaxDeltaECE float64
	// MaxClampRate is the largest acceptable fraction of capped bins.
	MaxClampRate float64
}

// DefaultConfig returns the production guard thresholds.
func DefaultConfig() Config {
	return Config{
		MaxDeltaECE:  0.01,
		MaxClampRate: 0.30,
	}
}

// Check is one safety check outcome.
type Check struct {
	Name    string
	Passed  bool
	Warning bool
	Detail  string
}

// Report is the full safety verdict. Passed means no blockers; warnings
// never block.
type Report struct {
	Passed   bool
	Mode     Mode
	Checks   []Check
	Blockers []string
	Warnings []string
}

// Inputs bundles the pre-fetched state the guard evaluates. No I/O happens
// inside CheckSafety.
type Inputs struct {
	Run calibration.Run
	Map calibration.Map
	// OpenAlerts is the count of open CRITICAL/HIGH alerts for the window.
	OpenAlerts int
	// GateResults holds the current readiness gate evaluations.
	GateResults []readiness.GateResult
}

// CheckSafety evaluates all seven safety checks and returns the full report.
func CheckSafety(inputs Inputs, mode Mode, cfg Config) Report {
	report := Report{Mode: mode}

	record := func(name string, passed bool, warningOnly bool, detail string) {
		check := Check{Name: name, Passed: passed, Warning: warningOnly && !passed, Detail: detail}
		report.Checks = append(report.Checks, check)
		if passed {
			return
		}
		if warningOnly {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %s", name, detail))
			return
		}
		report.Blockers = append(report.Blockers, fmt.Sprintf("%s: %s", name, detail))
	}

	run := inputs.Run

	record(CheckECEImprovement,
		run.Output.DeltaECE <= cfg.MaxDeltaECE,
		false,
		fmt.Sprintf("delta ece %.4f, threshold %.4f", run.Output.DeltaECE, cfg.MaxDeltaECE))

	record(CheckClampRate,
		run.Output.ClampRate <= cfg.MaxClampRate,
		false,
		fmt.Sprintf("clamp rate %.4f, threshold %.4f", run.Output.ClampRate, cfg.MaxClampRate))

	record(CheckMaxAdjustment,
		run.Output.MaxAdjustmentSeen <= run.Config.MaxAdjustmentPct,
		false,
		fmt.Sprintf("max adjustment %.2f%%, configured cap %.2f%%", run.Output.MaxAdjustmentSeen, run.Config.MaxAdjustmentPct))

	thinBins := 0
	for _, bin := range inputs.Map.Bins {
		if bin.SampleCount > 0 && bin.SampleCount < inputs.Map.Guardrails.MinBinCount {
			thinBins++
		}
	}
	record(CheckMinBinCount,
		thinBins == 0,
		true, // thin bins warn, they never block
		fmt.Sprintf("%d nonzero bins below minimum count %d", thinBins, inputs.Map.Guardrails.MinBinCount))

	record(CheckActiveAlerts,
		inputs.OpenAlerts == 0,
		mode != ModeProd, // hard blocker only in PROD
		fmt.Sprintf("%d open critical/high alerts for window %s", inputs.OpenAlerts, run.Window))

	if mode == ModeProd {
		stabilityPassed := false
		for _, result := range inputs.GateResults {
			if result.Gate == readiness.GateStability && result.Status == readiness.StatusPass {
				stabilityPassed = true
			}
		}
		record(CheckStabilityGate,
			stabilityPassed,
			false,
			"stability readiness gate must pass before production calibration")

		record(CheckPhaseReadiness,
			readiness.ReadyForProd(inputs.GateResults),
			false,
			"all readiness gates must pass before production calibration")
	}

	report.Passed = len(report.Blockers) == 0
	return report
}
