package guard

import (
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/alphasignal/internal/governance/domain/calibration"
	"github.com/louisbranch/alphasignal/internal/governance/readiness"
)

func healthyInputs() Inputs {
	return Inputs{
		Run: calibration.Run{
			ID:     "run-1",
			Window: "24h",
			Config: calibration.RunConfig{MaxAdjustmentPct: 20, MinBinCount: 25, BinCount: 10},
			Output: calibration.RunMetrics{
				DeltaECE:          -0.02,
				ClampRate:         0.10,
				MaxAdjustmentSeen: 15,
				SampleCount:       2000,
			},
			MapID: "map-1",
		},
		Map: calibration.Map{
			ID:     "map-1",
			RunID:  "run-1",
			Window: "24h",
			Bins: []calibration.Bin{
				{SampleCount: 400, AdjustmentPct: 5},
				{SampleCount: 600, AdjustmentPct: -3},
				{SampleCount: 0},
			},
			Guardrails: calibration.Guardrails{MaxAdjustmentPct: 20, MinBinCount: 25},
		},
		OpenAlerts:  0,
		GateResults: allGatesPass(),
	}
}

func allGatesPass() []readiness.GateResult {
	results := make([]readiness.GateResult, 0, len(readiness.AllGates))
	for _, gate := range readiness.AllGates {
		results = append(results, readiness.GateResult{Gate: gate, Status: readiness.StatusPass})
	}
	return results
}

func checkByName(t *testing.T, report Report, name string) Check {
	t.Helper()
	for _, check := range report.Checks {
		if check.Name == name {
			return check
		}
	}
	t.Fatalf("check %s missing from report", name)
	return Check{}
}

func TestCheckSafetyPassesHealthyRun(t *testing.T) {
	report := CheckSafety(healthyInputs(), ModeProd, DefaultConfig())
	if !report.Passed {
		t.Fatalf("expected pass, blockers: %v", report.Blockers)
	}
	if len(report.Checks) != 7 {
		t.Fatalf("expected 7 checks in PROD, got %d", len(report.Checks))
	}
	if len(report.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", report.Warnings)
	}
}

func TestCheckSafetySimulationSkipsProdChecks(t *testing.T) {
	report := CheckSafety(healthyInputs(), ModeSimulation, DefaultConfig())
	if !report.Passed {
		t.Fatalf("expected pass, blockers: %v", report.Blockers)
	}
	if len(report.Checks) != 5 {
		t.Fatalf("expected 5 checks in SIMULATION, got %d", len(report.Checks))
	}
}

func TestCheckSafetyECERegresionBlocksInSimulation(t *testing.T) {
	inputs := healthyInputs()
	inputs.Run.Output.DeltaECE = 0.02

	report := CheckSafety(inputs, ModeSimulation, DefaultConfig())
	if report.Passed {
		t.Fatal("expected ECE blocker")
	}
	if len(report.Blockers) != 1 || !strings.Contains(report.Blockers[0], CheckECEImprovement) {
		t.Fatalf("unexpected blockers: %v", report.Blockers)
	}
}

func TestCheckSafetyClampRateBlocks(t *testing.T) {
	inputs := healthyInputs()
	inputs.Run.Output.ClampRate = 0.50

	report := CheckSafety(inputs, ModeProd, DefaultConfig())
	if report.Passed {
		t.Fatal("expected clamp rate blocker")
	}
	check := checkByName(t, report, CheckClampRate)
	if check.Passed {
		t.Fatal("expected clamp rate check to fail")
	}
}

func TestCheckSafetyMaxAdjustmentUsesRunCap(t *testing.T) {
	inputs := healthyInputs()
	inputs.Run.Output.MaxAdjustmentSeen = 25
	inputs.Run.Config.MaxAdjustmentPct = 20

	report := CheckSafety(inputs, ModeProd, DefaultConfig())
	if report.Passed {
		t.Fatal("expected max adjustment blocker")
	}
}

func TestCheckSafetyThinBinsWarnOnly(t *testing.T) {
	inputs := healthyInputs()
	inputs.Map.Bins[0].SampleCount = 5 // below MinBinCount of 25

	report := CheckSafety(inputs, ModeProd, DefaultConfig())
	if !report.Passed {
		t.Fatalf("warnings must not block, blockers: %v", report.Blockers)
	}
	if len(report.Warnings) != 1 || !strings.Contains(report.Warnings[0], CheckMinBinCount) {
		t.Fatalf("expected min bin count warning, got %v", report.Warnings)
	}
	check := checkByName(t, report, CheckMinBinCount)
	if !check.Warning {
		t.Fatal("expected warning flag on check")
	}
}

func TestCheckSafetyAlertsBlockOnlyInProd(t *testing.T) {
	inputs := healthyInputs()
	inputs.OpenAlerts = 1

	prod := CheckSafety(inputs, ModeProd, DefaultConfig())
	if prod.Passed {
		t.Fatal("expected alerts to block in PROD")
	}

	sim := CheckSafety(inputs, ModeSimulation, DefaultConfig())
	if !sim.Passed {
		t.Fatalf("expected alerts to warn in SIMULATION, blockers: %v", sim.Blockers)
	}
	if len(sim.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", sim.Warnings)
	}
}

func TestCheckSafetyProdRequiresReadinessGates(t *testing.T) {
	inputs := healthyInputs()
	for i := range inputs.GateResults {
		if inputs.GateResults[i].Gate == readiness.GateTemporal {
			inputs.GateResults[i].Status = readiness.StatusFail
		}
	}

	report := CheckSafety(inputs, ModeProd, DefaultConfig())
	if report.Passed {
		t.Fatal("expected phase readiness blocker")
	}
	stability := checkByName(t, report, CheckStabilityGate)
	if !stability.Passed {
		t.Fatal("stability gate itself still passes")
	}
	phase := checkByName(t, report, CheckPhaseReadiness)
	if phase.Passed {
		t.Fatal("expected phase readiness to fail")
	}
}

func TestCheckSafetyProdRequiresStabilityGate(t *testing.T) {
	inputs := healthyInputs()
	for i := range inputs.GateResults {
		if inputs.GateResults[i].Gate == readiness.GateStability {
			inputs.GateResults[i].Status = readiness.StatusFail
		}
	}

	report := CheckSafety(inputs, ModeProd, DefaultConfig())
	if report.Passed {
		t.Fatal("expected stability blocker")
	}
	if len(report.Blockers) != 2 {
		// stability gate and phase readiness both report
		t.Fatalf("expected two blockers, got %v", report.Blockers)
	}
}

func TestCheckSafetyReportTimestampFree(t *testing.T) {
	// The guard is pure: two invocations over identical inputs agree exactly.
	inputs := healthyInputs()
	inputs.Run.CreatedAt = time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)

	first := CheckSafety(inputs, ModeProd, DefaultConfig())
	second := CheckSafety(inputs, ModeProd, DefaultConfig())
	if len(first.Checks) != len(second.Checks) || first.Passed != second.Passed {
		t.Fatal("expected deterministic reports")
	}
}
