// Package calibration defines versioned confidence calibration maps and runs.
//
// A calibration map divides the [0,1] confidence range into equal-width bins
// and records, per bin, the observed accuracy of past predictions and the
// percentage adjustment that brings predicted confidence in line with it.
// Maps and runs are immutable once created; only the per-window active
// pointer changes, and only through guarded activation.
package calibration

import (
	"fmt"
	"strings"
	"time"
)

// Scope describes which predictions a calibration run covers.
type Scope string

const (
	// ScopeGlobal covers all predictions for the window.
	ScopeGlobal Scope = "GLOBAL"
	// ScopeHighConfidence covers only predictions above the attention floor.
	ScopeHighConfidence Scope = "HIGH_CONFIDENCE"
)

// ActiveStatus describes whether a window has live calibration.
type ActiveStatus int

const (
	// ActiveStatusUnspecified represents an invalid status value.
	ActiveStatusUnspecified ActiveStatus = iota
	// ActiveStatusInactive indicates raw confidence passes through unchanged.
	ActiveStatusInactive
	// ActiveStatusActive indicates the referenced map adjusts confidence.
	ActiveStatusActive
)

// ActiveStatusLabel returns a stable label for an active status.
func ActiveStatusLabel(status ActiveStatus) string {
	switch status {
	case ActiveStatusActive:
		return "ACTIVE"
	case ActiveStatusInactive:
		return "INACTIVE"
	default:
		return "UNSPECIFIED"
	}
}

// ActiveStatusFromLabel parses a string label into an ActiveStatus.
func ActiveStatusFromLabel(value string) (ActiveStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "ACTIVE":
		return ActiveStatusActive, nil
	case "INACTIVE":
		return ActiveStatusInactive, nil
	default:
		return ActiveStatusUnspecified, fmt.Errorf("unknown calibration active status: %s", value)
	}
}

// RunConfig carries the configuration a calibration run was built with.
type RunConfig struct {
	// MaxAdjustmentPct caps the absolute per-bin adjustment percentage.
	MaxAdjustmentPct float64
	// MinBinCount is the minimum sample count for a bin to adjust confidently.
	MinBinCount int
	// BinCount is the number of equal-width confidence bins.
	BinCount int
}

// RunMetrics captures the output statistics of a calibration run.
type RunMetrics struct {
	// DeltaECE is expected calibration error after minus before. Negative
	// values are improvements.
	DeltaECE float64
	// ClampRate is the fraction of nonzero bins whose adjustment hit the cap.
	ClampRate float64
	// MaxAdjustmentSeen is the largest absolute adjustment recorded in the map.
	MaxAdjustmentSeen float64
	// SampleCount is the number of scored samples the run observed.
	SampleCount int
}

// Run records one calibration computation over a window. Immutable.
type Run struct {
	ID        string
	Window    string
	Scope     Scope
	Config    RunConfig
	Output    RunMetrics
	MapID     string
	CreatedAt time.Time
}

// Bin is one confidence sub-range sharing a single adjustment factor.
type Bin struct {
	// RangeLow and RangeHigh bound the bin as [RangeLow, RangeHigh).
	RangeLow  float64
	RangeHigh float64
	// SampleCount is the number of scored predictions landing in the bin.
	SampleCount int
	// MeanConfidence is the mean raw confidence of the bin's samples.
	MeanConfidence float64
	// MeanAccuracy is the observed fraction of correct predictions.
	MeanAccuracy float64
	// AdjustmentPct is the percentage applied to raw confidence in this bin.
	AdjustmentPct float64
	// Clamped reports whether AdjustmentPct hit the configured cap.
	Clamped bool
}

// Guardrails carries the limits a map was built under.
type Guardrails struct {
	MaxAdjustmentPct float64
	MinBinCount      int
}

// Map is a versioned calibration map. Immutable.
type Map struct {
	ID         string
	RunID      string
	Window     string
	Bins       []Bin
	Guardrails Guardrails
	CreatedAt  time.Time
}

// Active points a window at its live calibration map.
type Active struct {
	Window      string
	Status      ActiveStatus
	MapID       string
	ActivatedAt *time.Time
	UpdatedAt   time.Time
}

// BinIndex returns the bin index for a raw confidence value, clamped to the
// valid range so 1.0 lands in the last bin.
func (m Map) BinIndex(raw float64) int {
	count := len(m.Bins)
	if count == 0 {
		return -1
	}
	idx := int(raw * float64(count))
	if idx < 0 {
		return 0
	}
	if idx >= count {
		return count - 1
	}
	return idx
}

// Adjust applies the map to a raw confidence value.
//
// Values landing in a zero-sample bin pass through unchanged: no adjustment
// without evidence. The result is always clamped to [0,1].
func (m Map) Adjust(raw float64) float64 {
	idx := m.BinIndex(raw)
	if idx < 0 {
		return raw
	}
	bin := m.Bins[idx]
	if bin.SampleCount == 0 {
		return raw
	}
	adjusted := raw * (1 + bin.AdjustmentPct/100)
	if adjusted < 0 {
		return 0
	}
	if adjusted > 1 {
		return 1
	}
	return adjusted
}
