package calibration

import (
	"errors"
	"math"
	"testing"
	"time"
)

func fixedIDs(ids ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		id := ids[i%len(ids)]
		i++
		return id, nil
	}
}

func TestBuildMapValidation(t *testing.T) {
	_, _, err := BuildMap(BuildInput{Samples: []Sample{{Confidence: 0.5}}}, nil, nil)
	if !errors.Is(err, ErrEmptyWindow) {
		t.Fatalf("expected empty window error, got %v", err)
	}

	_, _, err = BuildMap(BuildInput{Window: "24h"}, nil, nil)
	if !errors.Is(err, ErrNoSamples) {
		t.Fatalf("expected no samples error, got %v", err)
	}
}

func TestBuildMapOverconfidentBinAdjustsDown(t *testing.T) {
	// 100 samples at confidence 0.85 with only 60% correct: the model is
	// overconfident, so the bin must adjust downward.
	samples := make([]Sample, 0, 100)
	for i := 0; i < 100; i++ {
		samples = append(samples, Sample{Confidence: 0.85, Correct: i < 60})
	}

	fixedTime := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	run, built, err := BuildMap(BuildInput{
		Window:  "24h",
		Samples: samples,
		Config:  RunConfig{MaxAdjustmentPct: 40},
	}, func() time.Time { return fixedTime }, fixedIDs("run-1", "map-1"))
	if err != nil {
		t.Fatalf("build map: %v", err)
	}

	if run.ID != "run-1" || built.ID != "map-1" || run.MapID != "map-1" {
		t.Fatalf("unexpected ids: run=%s map=%s run.MapID=%s", run.ID, built.ID, run.MapID)
	}
	if run.Window != "24h" || built.Window != "24h" {
		t.Fatal("expected window carried through")
	}
	if run.Scope != ScopeGlobal {
		t.Fatalf("expected default scope, got %s", run.Scope)
	}

	bin := built.Bins[8]
	if bin.SampleCount != 100 {
		t.Fatalf("expected all samples in bin 8, got %d", bin.SampleCount)
	}
	wantAdj := (0.60/0.85 - 1) * 100
	if math.Abs(bin.AdjustmentPct-wantAdj) > 1e-9 {
		t.Fatalf("adjustment = %v, want %v", bin.AdjustmentPct, wantAdj)
	}
	if bin.Clamped {
		t.Fatal("expected adjustment within cap")
	}

	// Perfect correction drives bin ECE to zero, so the delta is the full
	// pre-calibration gap.
	if run.Output.DeltaECE >= 0 {
		t.Fatalf("expected ECE improvement, got delta %v", run.Output.DeltaECE)
	}
	if math.Abs(run.Output.DeltaECE-(-0.25)) > 1e-9 {
		t.Fatalf("deltaECE = %v, want -0.25", run.Output.DeltaECE)
	}
	if run.Output.SampleCount != 100 {
		t.Fatalf("unexpected sample count %d", run.Output.SampleCount)
	}
}

func TestBuildMapClampsAdjustment(t *testing.T) {
	// Confidence 0.9 but only 30% correct wants a -66% adjustment, far past
	// the 20% default cap.
	samples := make([]Sample, 0, 50)
	for i := 0; i < 50; i++ {
		samples = append(samples, Sample{Confidence: 0.9, Correct: i < 15})
	}

	run, built, err := BuildMap(BuildInput{Window: "7d", Samples: samples}, nil, fixedIDs("run-2", "map-2"))
	if err != nil {
		t.Fatalf("build map: %v", err)
	}

	bin := built.Bins[9]
	if !bin.Clamped {
		t.Fatal("expected clamped bin")
	}
	if bin.AdjustmentPct != -DefaultMaxAdjustmentPct {
		t.Fatalf("adjustment = %v, want %v", bin.AdjustmentPct, -DefaultMaxAdjustmentPct)
	}
	if run.Output.ClampRate != 1.0 {
		t.Fatalf("clamp rate = %v, want 1.0 (single nonzero bin)", run.Output.ClampRate)
	}
	if run.Output.MaxAdjustmentSeen != DefaultMaxAdjustmentPct {
		t.Fatalf("max adjustment seen = %v, want %v", run.Output.MaxAdjustmentSeen, DefaultMaxAdjustmentPct)
	}
	if built.Guardrails.MaxAdjustmentPct != DefaultMaxAdjustmentPct {
		t.Fatalf("unexpected guardrails: %+v", built.Guardrails)
	}
}

func TestBuildMapEmptyBinsUntouched(t *testing.T) {
	samples := []Sample{{Confidence: 0.55, Correct: true}, {Confidence: 0.58, Correct: false}}
	_, built, err := BuildMap(BuildInput{Window: "24h", Samples: samples}, nil, fixedIDs("run-3", "map-3"))
	if err != nil {
		t.Fatalf("build map: %v", err)
	}
	for i, bin := range built.Bins {
		if i == 5 {
			continue
		}
		if bin.SampleCount != 0 || bin.AdjustmentPct != 0 {
			t.Fatalf("expected untouched empty bin %d, got %+v", i, bin)
		}
	}
	if built.Bins[5].SampleCount != 2 {
		t.Fatalf("expected 2 samples in bin 5, got %d", built.Bins[5].SampleCount)
	}
}
