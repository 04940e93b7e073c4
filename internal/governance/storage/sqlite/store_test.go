package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/alphasignal/internal/governance/domain/calibration"
	"github.com/louisbranch/alphasignal/internal/governance/domain/model"
	"github.com/louisbranch/alphasignal/internal/governance/readiness"
	"github.com/louisbranch/alphasignal/internal/governance/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "governance.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testVersion(id, horizon string, status model.Status) model.Version {
	created := time.Date(2026, time.February, 1, 10, 0, 0, 0, time.UTC)
	version := model.Version{
		ID:             id,
		Horizon:        horizon,
		DatasetVersion: "ds-2026-01-15",
		Metrics: model.TrainingMetrics{
			SampleCount: 700,
			Precision:   0.68,
			PRAUC:       0.61,
			ECE:         0.05,
		},
		Status:    status,
		CreatedAt: created,
	}
	if status == model.StatusPromoted {
		promoted := created.Add(time.Hour)
		version.PromotedAt = &promoted
	}
	return version
}

func TestModelVersionRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	want := testVersion("m1", "intraday", model.StatusCandidate)
	if err := store.PutModelVersion(ctx, want); err != nil {
		t.Fatalf("PutModelVersion: %v", err)
	}

	got, err := store.GetModelVersion(ctx, "m1")
	if err != nil {
		t.Fatalf("GetModelVersion: %v", err)
	}
	if got.Horizon != want.Horizon || got.DatasetVersion != want.DatasetVersion {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if got.Metrics != want.Metrics {
		t.Fatalf("metrics = %+v, want %+v", got.Metrics, want.Metrics)
	}
	if got.Status != model.StatusCandidate || !got.CreatedAt.Equal(want.CreatedAt) {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	if _, err := store.GetModelVersion(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListModelVersionsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	older := testVersion("m1", "intraday", model.StatusCandidate)
	newer := testVersion("m2", "intraday", model.StatusCandidate)
	newer.CreatedAt = older.CreatedAt.Add(2 * time.Hour)
	other := testVersion("m3", "swing", model.StatusCandidate)
	for _, v := range []model.Version{older, newer, other} {
		if err := store.PutModelVersion(ctx, v); err != nil {
			t.Fatalf("PutModelVersion: %v", err)
		}
	}

	versions, err := store.ListModelVersions(ctx, "intraday", 10)
	if err != nil {
		t.Fatalf("ListModelVersions: %v", err)
	}
	if len(versions) != 2 || versions[0].ID != "m2" || versions[1].ID != "m1" {
		t.Fatalf("versions = %+v, want [m2 m1]", versions)
	}
}

func TestOnePromotedPerHorizonEnforced(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.PutModelVersion(ctx, testVersion("m1", "intraday", model.StatusPromoted)); err != nil {
		t.Fatalf("PutModelVersion m1: %v", err)
	}
	if err := store.PutModelVersion(ctx, testVersion("m2", "intraday", model.StatusPromoted)); err == nil {
		t.Fatal("second promoted model on a horizon must violate the unique index")
	}
	// A different horizon is unaffected.
	if err := store.PutModelVersion(ctx, testVersion("m3", "swing", model.StatusPromoted)); err != nil {
		t.Fatalf("PutModelVersion m3: %v", err)
	}
}

func TestSwapActivePointerInsertAndUpdate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.February, 2, 9, 0, 0, 0, time.UTC)

	promoted := testVersion("m1", "intraday", model.StatusPromoted)
	pointer := model.ActivePointer{
		Horizon:       "intraday",
		ActiveModelID: "m1",
		UpdatedAt:     now,
	}
	if err := store.SwapActivePointer(ctx, pointer, 0, []model.Version{promoted}); err != nil {
		t.Fatalf("insert swap: %v", err)
	}

	got, err := store.GetActivePointer(ctx, "intraday")
	if err != nil {
		t.Fatalf("GetActivePointer: %v", err)
	}
	if got.ActiveModelID != "m1" || got.Version != 1 {
		t.Fatalf("pointer = %+v, want m1 at version 1", got)
	}

	superseded, err := model.TransitionStatus(promoted, model.StatusSuperseded, func() time.Time { return now })
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	next := testVersion("m2", "intraday", model.StatusPromoted)
	pointer = model.ActivePointer{
		Horizon:         "intraday",
		ActiveModelID:   "m2",
		PreviousModelID: "m1",
		UpdatedAt:       now.Add(time.Hour),
	}
	if err := store.SwapActivePointer(ctx, pointer, got.Version, []model.Version{superseded, next}); err != nil {
		t.Fatalf("update swap: %v", err)
	}

	got, err = store.GetActivePointer(ctx, "intraday")
	if err != nil {
		t.Fatalf("GetActivePointer: %v", err)
	}
	if got.ActiveModelID != "m2" || got.PreviousModelID != "m1" || got.Version != 2 {
		t.Fatalf("pointer = %+v, want m2/m1 at version 2", got)
	}
}

func TestSwapActivePointerConflictWritesNothing(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.February, 2, 9, 0, 0, 0, time.UTC)

	promoted := testVersion("m1", "intraday", model.StatusPromoted)
	pointer := model.ActivePointer{Horizon: "intraday", ActiveModelID: "m1", UpdatedAt: now}
	if err := store.SwapActivePointer(ctx, pointer, 0, []model.Version{promoted}); err != nil {
		t.Fatalf("insert swap: %v", err)
	}

	demoted, err := model.TransitionStatus(promoted, model.StatusRolledBack, func() time.Time { return now })
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	stale := model.ActivePointer{Horizon: "intraday", RollbackCount: 1, UpdatedAt: now}
	err = store.SwapActivePointer(ctx, stale, 7, []model.Version{demoted})
	if !errors.Is(err, storage.ErrPointerVersionConflict) {
		t.Fatalf("err = %v, want pointer version conflict", err)
	}

	// The whole transaction rolled back: the demote never landed.
	got, err := store.GetModelVersion(ctx, "m1")
	if err != nil {
		t.Fatalf("GetModelVersion: %v", err)
	}
	if got.Status != model.StatusPromoted {
		t.Fatalf("status = %v, want PROMOTED untouched", got.Status)
	}
}

func TestCountPromotionsSince(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	old := testVersion("m1", "intraday", model.StatusSuperseded)
	oldPromoted := base.Add(-40 * 24 * time.Hour)
	old.PromotedAt = &oldPromoted
	recent := testVersion("m2", "intraday", model.StatusPromoted)
	recentPromoted := base.Add(-5 * 24 * time.Hour)
	recent.PromotedAt = &recentPromoted
	for _, v := range []model.Version{old, recent} {
		if err := store.PutModelVersion(ctx, v); err != nil {
			t.Fatalf("PutModelVersion: %v", err)
		}
	}

	count, err := store.CountPromotionsSince(ctx, "intraday", base.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("CountPromotionsSince: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestCalibrationRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, time.March, 3, 7, 0, 0, 0, time.UTC)

	run := calibration.Run{
		ID:     "run-1",
		Window: "24h",
		Scope:  calibration.ScopeGlobal,
		Config: calibration.RunConfig{MaxAdjustmentPct: 20, MinBinCount: 25, BinCount: 10},
		Output: calibration.RunMetrics{
			DeltaECE:          -0.015,
			ClampRate:         0.1,
			MaxAdjustmentSeen: 14,
			SampleCount:       640,
		},
		MapID:     "map-1",
		CreatedAt: created,
	}
	if err := store.PutCalibrationRun(ctx, run); err != nil {
		t.Fatalf("PutCalibrationRun: %v", err)
	}
	gotRun, err := store.GetCalibrationRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetCalibrationRun: %v", err)
	}
	if gotRun.Scope != calibration.ScopeGlobal || gotRun.Output != run.Output || gotRun.Config != run.Config {
		t.Fatalf("run = %+v, want %+v", gotRun, run)
	}

	m := calibration.Map{
		ID:     "map-1",
		RunID:  "run-1",
		Window: "24h",
		Bins: []calibration.Bin{
			{RangeLow: 0, RangeHigh: 0.5, SampleCount: 300, MeanConfidence: 0.3, MeanAccuracy: 0.35, AdjustmentPct: 10},
			{RangeLow: 0.5, RangeHigh: 1, SampleCount: 0},
		},
		Guardrails: calibration.Guardrails{MaxAdjustmentPct: 20, MinBinCount: 25},
		CreatedAt:  created,
	}
	if err := store.PutCalibrationMap(ctx, m); err != nil {
		t.Fatalf("PutCalibrationMap: %v", err)
	}
	gotMap, err := store.GetCalibrationMap(ctx, "map-1")
	if err != nil {
		t.Fatalf("GetCalibrationMap: %v", err)
	}
	if len(gotMap.Bins) != 2 || gotMap.Bins[0] != m.Bins[0] || gotMap.Guardrails != m.Guardrails {
		t.Fatalf("map = %+v, want %+v", gotMap, m)
	}
}

func TestActivateAndDeactivateCalibration(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC)

	if _, err := store.GetCalibrationActive(ctx, "24h"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound before activation", err)
	}

	if err := store.ActivateCalibration(ctx, "24h", "map-1", at); err != nil {
		t.Fatalf("ActivateCalibration: %v", err)
	}
	active, err := store.GetCalibrationActive(ctx, "24h")
	if err != nil {
		t.Fatalf("GetCalibrationActive: %v", err)
	}
	if active.Status != calibration.ActiveStatusActive || active.MapID != "map-1" {
		t.Fatalf("active = %+v, want ACTIVE map-1", active)
	}

	// Replacing the map keeps a single activation row per window.
	if err := store.ActivateCalibration(ctx, "24h", "map-2", at.Add(time.Hour)); err != nil {
		t.Fatalf("replace activation: %v", err)
	}
	active, err = store.GetCalibrationActive(ctx, "24h")
	if err != nil {
		t.Fatalf("GetCalibrationActive: %v", err)
	}
	if active.MapID != "map-2" {
		t.Fatalf("active map = %q, want map-2", active.MapID)
	}

	if err := store.DeactivateCalibration(ctx, "24h", at.Add(2*time.Hour)); err != nil {
		t.Fatalf("DeactivateCalibration: %v", err)
	}
	active, err = store.GetCalibrationActive(ctx, "24h")
	if err != nil {
		t.Fatalf("GetCalibrationActive: %v", err)
	}
	if active.Status != calibration.ActiveStatusInactive {
		t.Fatalf("status = %v, want INACTIVE", active.Status)
	}

	if err := store.DeactivateCalibration(ctx, "unknown", at); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGateResultUpsert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)

	first := readiness.GateResult{
		Gate:            readiness.GateDataset,
		Status:          readiness.StatusFail,
		Metrics:         map[string]float64{"sample_count": 120},
		BlockingReason:  "sample count 120 below minimum 500",
		LastEvaluatedAt: at,
	}
	if err := store.PutGateResult(ctx, first); err != nil {
		t.Fatalf("PutGateResult: %v", err)
	}

	second := first
	second.Status = readiness.StatusPass
	second.Metrics = map[string]float64{"sample_count": 800}
	second.BlockingReason = ""
	second.LastEvaluatedAt = at.Add(time.Hour)
	if err := store.PutGateResult(ctx, second); err != nil {
		t.Fatalf("PutGateResult upsert: %v", err)
	}

	got, err := store.GetGateResult(ctx, readiness.GateDataset)
	if err != nil {
		t.Fatalf("GetGateResult: %v", err)
	}
	if got.Status != readiness.StatusPass || got.Metrics["sample_count"] != 800 {
		t.Fatalf("result = %+v, want the upserted PASS", got)
	}

	results, err := store.ListGateResults(ctx)
	if err != nil {
		t.Fatalf("ListGateResults: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %+v, want one row per gate", results)
	}
}

func TestAuditEventsAppendOnlyNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 6, 0, 0, 0, 0, time.UTC)

	events := []storage.AuditEvent{
		{ID: "e1", EventType: "model.promoted", Horizon: "intraday", Details: map[string]string{"dataset_version": "ds-1"}, TriggeredBy: "admin", Severity: "INFO", CreatedAt: base},
		{ID: "e2", EventType: "rollback.succeeded", Horizon: "intraday", TriggeredBy: "admin", Severity: "WARN", CreatedAt: base.Add(time.Minute)},
		{ID: "e3", EventType: "model.promoted", Horizon: "swing", TriggeredBy: "admin", Severity: "INFO", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, evt := range events {
		if err := store.AppendAuditEvent(ctx, evt); err != nil {
			t.Fatalf("AppendAuditEvent: %v", err)
		}
	}

	all, err := store.ListAuditEvents(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListAuditEvents: %v", err)
	}
	if len(all) != 3 || all[0].ID != "e3" || all[2].ID != "e1" {
		t.Fatalf("events = %+v, want newest first", all)
	}
	if all[2].Details["dataset_version"] != "ds-1" {
		t.Fatalf("details = %+v, want round-tripped", all[2].Details)
	}

	promoted, err := store.ListAuditEvents(ctx, "model.promoted", 0)
	if err != nil {
		t.Fatalf("ListAuditEvents filtered: %v", err)
	}
	if len(promoted) != 2 {
		t.Fatalf("filtered events = %+v, want 2", promoted)
	}
}

func TestCountOpenAlerts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, time.March, 7, 0, 0, 0, 0, time.UTC)

	alerts := []storage.Alert{
		{ID: "a1", Window: "24h", Severity: "CRITICAL", Message: "precision collapse", OpenedAt: at},
		{ID: "a2", Window: "24h", Severity: "MEDIUM", Message: "latency bump", OpenedAt: at},
		{ID: "a3", Window: "7d", Severity: "HIGH", Message: "drift", OpenedAt: at},
	}
	for _, alert := range alerts {
		if err := store.PutAlert(ctx, alert); err != nil {
			t.Fatalf("PutAlert: %v", err)
		}
	}

	count, err := store.CountOpenAlerts(ctx, "24h", "HIGH")
	if err != nil {
		t.Fatalf("CountOpenAlerts: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1 (MEDIUM excluded)", count)
	}

	count, err = store.CountOpenAlerts(ctx, "", "HIGH")
	if err != nil {
		t.Fatalf("CountOpenAlerts system-wide: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2 across windows", count)
	}

	if err := store.CloseAlert(ctx, "a1", at.Add(time.Hour)); err != nil {
		t.Fatalf("CloseAlert: %v", err)
	}
	count, err = store.CountOpenAlerts(ctx, "24h", "HIGH")
	if err != nil {
		t.Fatalf("CountOpenAlerts after close: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0 after close", count)
	}

	if err := store.CloseAlert(ctx, "a1", at.Add(2*time.Hour)); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for an already-closed alert", err)
	}
}
