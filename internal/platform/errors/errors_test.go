package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	base := New(CodeModelNotFound, "model version not found")
	wrapped := fmt.Errorf("load candidate: %w", base)

	if !errors.Is(wrapped, New(CodeModelNotFound, "other message")) {
		t.Fatal("expected match by code regardless of message")
	}
	if errors.Is(wrapped, New(CodePointerVersionConflict, "model version not found")) {
		t.Fatal("expected no match across different codes")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeStorageUnavailable, "append audit event", cause)

	if err.Error() != "append audit event" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}
}

func TestWithMetadata(t *testing.T) {
	err := WithMetadata(CodeModelInvalidStatusTransition, "status transition not allowed", map[string]string{
		"FromStatus": "REJECTED",
		"ToStatus":   "PROMOTED",
	})
	if err.Metadata["FromStatus"] != "REJECTED" {
		t.Fatalf("unexpected metadata: %v", err.Metadata)
	}
}
