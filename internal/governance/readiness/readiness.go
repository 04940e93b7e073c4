// Package readiness evaluates the gates that collectively authorize
// production ML influence.
//
// The evaluator is deliberately pure over pre-fetched inputs so gate
// decisions are deterministic and re-runnable: evaluating twice against the
// same inputs always yields the same results.
package readiness

import (
	"fmt"
	"time"
)

// Gate identifies one readiness gate type.
type Gate string

const (
	// GateDataset checks labeled dataset volume and label quality.
	GateDataset Gate = "DATASET"
	// GateCalibration checks that confidence matches observed accuracy.
	GateCalibration Gate = "CALIBRATION"
	// GateStability checks model/rules agreement and decision flip rates.
	GateStability Gate = "STABILITY"
	// GateAlerts checks for open CRITICAL/HIGH operational alerts.
	GateAlerts Gate = "ALERTS"
	// GateTemporal checks that the minimum observation period has elapsed.
	GateTemporal Gate = "TEMPORAL"
)

// AllGates lists every gate in evaluation order.
var AllGates = []Gate{GateDataset, GateCalibration, GateStability, GateAlerts, GateTemporal}

// Status is the binary outcome of a gate evaluation.
type Status string

const (
	// StatusPass indicates the gate does not block production rollout.
	StatusPass Status = "PASS"
	// StatusFail indicates the gate blocks production rollout.
	StatusFail Status = "FAIL"
)

// GateResult is one gate's evaluation outcome with its observed metrics.
type GateResult struct {
	Gate            Gate
	Status          Status
	Metrics         map[string]float64
	BlockingReason  string
	LastEvaluatedAt time.Time
}

// Config carries the thresholds each gate evaluates against.
type Config struct {
	MinSampleCount     int
	MinRealLabelRatio  float64
	MaxECE             float64
	MinAgreementRate   float64
	MaxFlipRate        float64
	MinObservationDays int
}

// DefaultConfig returns the production gate thresholds.
func DefaultConfig() Config {
	return Config{
		MinSampleCount:     500,
		MinRealLabelRatio:  0.6,
		MaxECE:             0.08,
		MinAgreementRate:   0.75,
		MaxFlipRate:        0.15,
		MinObservationDays: 14,
	}
}

// Inputs carries the current observed metrics the gates evaluate.
type Inputs struct {
	SampleCount      int
	RealLabelRatio   float64
	ECE              float64
	AgreementRate    float64
	FlipRate         float64
	OpenAlerts       int
	ObservationStart time.Time
}

// Evaluate recomputes every gate from current inputs. The evaluation is
// idempotent: results depend only on inputs, config, and the supplied clock.
func Evaluate(inputs Inputs, cfg Config, now func() time.Time) []GateResult {
	if now == nil {
		now = time.Now
	}
	at := now().UTC()

	results := make([]GateResult, 0, len(AllGates))
	for _, gate := range AllGates {
		result := GateResult{Gate: gate, Status: StatusPass, LastEvaluatedAt: at}
		switch gate {
		case GateDataset:
			result.Metrics = map[string]float64{
				"sample_count":     float64(inputs.SampleCount),
				"real_label_ratio": inputs.RealLabelRatio,
			}
			if inputs.SampleCount < cfg.MinSampleCount {
				result.Status = StatusFail
				result.BlockingReason = fmt.Sprintf("sample count %d below minimum %d", inputs.SampleCount, cfg.MinSampleCount)
			} else if inputs.RealLabelRatio < cfg.MinRealLabelRatio {
				result.Status = StatusFail
				result.BlockingReason = fmt.Sprintf("real label ratio %.3f below minimum %.3f", inputs.RealLabelRatio, cfg.MinRealLabelRatio)
			}
		case GateCalibration:
			result.Metrics = map[string]float64{"ece": inputs.ECE}
			if inputs.ECE > cfg.MaxECE {
				result.Status = StatusFail
				result.BlockingReason = fmt.Sprintf("ece %.4f above maximum %.4f", inputs.ECE, cfg.MaxECE)
			}
		case GateStability:
			result.Metrics = map[string]float64{
				"agreement_rate": inputs.AgreementRate,
				"flip_rate":      inputs.FlipRate,
			}
			if inputs.AgreementRate < cfg.MinAgreementRate {
				result.Status = StatusFail
				result.BlockingReason = fmt.Sprintf("agreement rate %.3f below minimum %.3f", inputs.AgreementRate, cfg.MinAgreementRate)
			} else if inputs.FlipRate > cfg.MaxFlipRate {
				result.Status = StatusFail
				result.BlockingReason = fmt.Sprintf("flip rate %.3f above maximum %.3f", inputs.FlipRate, cfg.MaxFlipRate)
			}
		case GateAlerts:
			result.Metrics = map[string]float64{"open_alerts": float64(inputs.OpenAlerts)}
			if inputs.OpenAlerts > 0 {
				result.Status = StatusFail
				result.BlockingReason = fmt.Sprintf("%d open critical/high alerts", inputs.OpenAlerts)
			}
		case GateTemporal:
			observedDays := 0.0
			if !inputs.ObservationStart.IsZero() {
				observedDays = at.Sub(inputs.ObservationStart).Hours() / 24
			}
			result.Metrics = map[string]float64{"observed_days": observedDays}
			if inputs.ObservationStart.IsZero() || observedDays < float64(cfg.MinObservationDays) {
				result.Status = StatusFail
				result.BlockingReason = fmt.Sprintf("observation period %.1f days below minimum %d", observedDays, cfg.MinObservationDays)
			}
		}
		results = append(results, result)
	}
	return results
}

// ReadyForProd reports whether every gate passed. This is the go/no-go
// switch consumed by the calibration guard and the promotion workflow.
func ReadyForProd(results []GateResult) bool {
	if len(results) == 0 {
		return false
	}
	seen := make(map[Gate]bool, len(results))
	for _, result := range results {
		if result.Status != StatusPass {
			return false
		}
		seen[result.Gate] = true
	}
	for _, gate := range AllGates {
		if !seen[gate] {
			return false
		}
	}
	return true
}
