package model

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/louisbranch/alphasignal/internal/platform/errors"
)

func TestNewCandidate(t *testing.T) {
	fixedTime := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	version, err := NewCandidate(NewCandidateInput{
		Horizon:        " 7d ",
		DatasetVersion: "ds-2026-03-01",
		Metrics:        TrainingMetrics{SampleCount: 1200, Precision: 0.66},
	}, func() time.Time { return fixedTime }, func() (string, error) { return "mv-1", nil })
	if err != nil {
		t.Fatalf("new candidate: %v", err)
	}
	if version.ID != "mv-1" {
		t.Fatalf("unexpected id: %s", version.ID)
	}
	if version.Horizon != "7d" {
		t.Fatalf("expected trimmed horizon, got %q", version.Horizon)
	}
	if version.Status != StatusCandidate {
		t.Fatalf("expected CANDIDATE, got %s", StatusLabel(version.Status))
	}
	if !version.CreatedAt.Equal(fixedTime) {
		t.Fatalf("unexpected created at: %v", version.CreatedAt)
	}
	if version.PromotedAt != nil {
		t.Fatal("expected no promotion timestamp")
	}
}

func TestNewCandidateValidation(t *testing.T) {
	_, err := NewCandidate(NewCandidateInput{DatasetVersion: "ds-1"}, nil, nil)
	if !errors.Is(err, ErrEmptyHorizon) {
		t.Fatalf("expected empty horizon error, got %v", err)
	}

	_, err = NewCandidate(NewCandidateInput{Horizon: "7d"}, nil, nil)
	if !errors.Is(err, ErrEmptyDatasetVersion) {
		t.Fatalf("expected empty dataset version error, got %v", err)
	}
}

func TestTransitionStatusAllowed(t *testing.T) {
	fixedTime := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return fixedTime }

	cases := []struct {
		name string
		from Status
		to   Status
	}{
		{"candidate to promoted", StatusCandidate, StatusPromoted},
		{"candidate to rejected", StatusCandidate, StatusRejected},
		{"promoted to superseded", StatusPromoted, StatusSuperseded},
		{"promoted to rolled back", StatusPromoted, StatusRolledBack},
		{"superseded restored by rollback", StatusSuperseded, StatusPromoted},
		{"rolled back restored by rollback", StatusRolledBack, StatusPromoted},
		{"superseded to rejected", StatusSuperseded, StatusRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			updated, err := TransitionStatus(Version{Status: tc.from}, tc.to, clock)
			if err != nil {
				t.Fatalf("transition: %v", err)
			}
			if updated.Status != tc.to {
				t.Fatalf("expected %s, got %s", StatusLabel(tc.to), StatusLabel(updated.Status))
			}
		})
	}
}

func TestTransitionStatusSetsTimestamps(t *testing.T) {
	fixedTime := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return fixedTime }

	promoted, err := TransitionStatus(Version{Status: StatusCandidate}, StatusPromoted, clock)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if promoted.PromotedAt == nil || !promoted.PromotedAt.Equal(fixedTime) {
		t.Fatalf("expected promotedAt %v, got %v", fixedTime, promoted.PromotedAt)
	}

	rejected, err := TransitionStatus(Version{Status: StatusCandidate}, StatusRejected, clock)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.RejectedAt == nil || !rejected.RejectedAt.Equal(fixedTime) {
		t.Fatalf("expected rejectedAt %v, got %v", fixedTime, rejected.RejectedAt)
	}
}

func TestTransitionStatusDisallowed(t *testing.T) {
	cases := []struct {
		name string
		from Status
		to   Status
	}{
		{"rejected is terminal", StatusRejected, StatusPromoted},
		{"promoted cannot be rejected directly", StatusPromoted, StatusRejected},
		{"candidate cannot be superseded", StatusCandidate, StatusSuperseded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := TransitionStatus(Version{Status: tc.from}, tc.to, nil)
			if err == nil {
				t.Fatal("expected transition error")
			}
			var domainErr *apperrors.Error
			if !errors.As(err, &domainErr) {
				t.Fatalf("expected domain error, got %v", err)
			}
			if domainErr.Code != apperrors.CodeModelInvalidStatusTransition {
				t.Fatalf("unexpected code: %s", domainErr.Code)
			}
		})
	}
}

func TestStatusLabelRoundTrip(t *testing.T) {
	statuses := []Status{StatusCandidate, StatusPromoted, StatusSuperseded, StatusRolledBack, StatusRejected}
	for _, status := range statuses {
		parsed, err := StatusFromLabel(StatusLabel(status))
		if err != nil {
			t.Fatalf("parse %s: %v", StatusLabel(status), err)
		}
		if parsed != status {
			t.Fatalf("round trip mismatch for %s", StatusLabel(status))
		}
	}

	if _, err := StatusFromLabel("unheard-of"); err == nil {
		t.Fatal("expected error for unknown label")
	}
}

func TestActivePointerRulesOnly(t *testing.T) {
	if (ActivePointer{ActiveModelID: "mv-1"}).RulesOnly() {
		t.Fatal("pointer with model should not be rules-only")
	}
	if !(ActivePointer{ActiveModelID: "  "}).RulesOnly() {
		t.Fatal("blank pointer should be rules-only")
	}
}
