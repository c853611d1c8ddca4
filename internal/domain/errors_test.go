package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAtStageTagsOnce(t *testing.T) {
	err := AtStage(NotFound("instance", "i-1"), StageResolving)
	if StageOf(err) != StageResolving {
		t.Fatalf("StageOf() = %q, want %q", StageOf(err), StageResolving)
	}

	again := AtStage(err, StagePersisting)
	if StageOf(again) != StageResolving {
		t.Errorf("stage was overwritten: %q", StageOf(again))
	}
	if !IsNotFound(again) {
		t.Errorf("kind lost after re-tagging: %v", again)
	}
}

func TestAtStageWrapsForeignErrors(t *testing.T) {
	cause := errors.New("connection reset")
	err := AtStage(fmt.Errorf("save route: %w", cause), StagePersisting)

	if KindOf(err) != KindInternal {
		t.Errorf("KindOf() = %q, want internal", KindOf(err))
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through errors.Is")
	}
	if !strings.Contains(err.Error(), "stage=persisting") {
		t.Errorf("Error() = %q, missing stage", err.Error())
	}
}

func TestKindHelpers(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Allocation("no satellite registered", nil))
	if !IsAllocation(wrapped) {
		t.Error("IsAllocation() should see through wrapping")
	}
	if IsNotFound(nil) || IsConflict(nil) {
		t.Error("nil error must not match any kind")
	}
	if !IsValidation(Validation("missing %s", "userId")) {
		t.Error("IsValidation() = false")
	}
}

func TestAtStageKeepsWrapperContext(t *testing.T) {
	inner := Conflict("route a -> b already exists")
	err := AtStage(fmt.Errorf("%w (compensation failed: timeout)", inner), StagePersisting)

	if !IsConflict(err) {
		t.Errorf("KindOf() = %q, want conflict", KindOf(err))
	}
	if StageOf(err) != StagePersisting {
		t.Errorf("StageOf() = %q", StageOf(err))
	}
	if !strings.Contains(err.Error(), "compensation failed") {
		t.Errorf("Error() = %q, wrapper text lost", err.Error())
	}
}
