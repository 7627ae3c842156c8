package hooks

import (
	"errors"
	"testing"
	"time"
)

func TestEventTypes(t *testing.T) {
	expectedEvents := []EventType{
		EventPreImport,
		EventPostImport,
		EventImportFailed,
		EventAnalysisCompleted,
	}

	if len(AllEventTypes) != len(expectedEvents) {
		t.Errorf("expected %d event types, got %d", len(expectedEvents), len(AllEventTypes))
	}

	for _, expected := range expectedEvents {
		if !expected.Valid() {
			t.Errorf("expected event type %q to be valid", expected)
		}
	}
	if EventType("pre-shutdown").Valid() {
		t.Error("unknown event should not be valid")
	}
}

func TestSuccess(t *testing.T) {
	duration := 100 * time.Millisecond
	result := Success("test message", duration)

	if result.Block {
		t.Error("Success should not block")
	}
	if result.Message != "test message" {
		t.Errorf("expected message 'test message', got %q", result.Message)
	}
	if result.Err != nil {
		t.Errorf("expected no error, got %v", result.Err)
	}
	if result.Duration != duration {
		t.Errorf("expected duration %v, got %v", duration, result.Duration)
	}
}

func TestFailure(t *testing.T) {
	duration := 50 * time.Millisecond
	err := errors.New("test error")
	result := Failure(err, duration)

	if result.Block {
		t.Error("Failure should not block by default")
	}
	if result.Err != err {
		t.Errorf("expected error %v, got %v", err, result.Err)
	}
	if result.Message != "test error" {
		t.Errorf("expected message 'test error', got %q", result.Message)
	}
}

func TestBlockOperation(t *testing.T) {
	result := BlockOperation("blocking message", 75*time.Millisecond)

	if !result.Block {
		t.Error("BlockOperation should set Block to true")
	}
	if result.Message != "blocking message" {
		t.Errorf("expected message 'blocking message', got %q", result.Message)
	}
}

func TestBlocked(t *testing.T) {
	results := []HookResult{
		Success("ok", 0),
		BlockOperation("stop", 0),
	}

	blocked, ok := Blocked(results)
	if !ok {
		t.Fatal("expected a blocking result")
	}
	if blocked.Message != "stop" {
		t.Errorf("expected 'stop', got %q", blocked.Message)
	}

	if _, ok := Blocked(results[:1]); ok {
		t.Error("expected no blocking result")
	}
	if _, ok := Blocked(nil); ok {
		t.Error("expected no blocking result for nil")
	}
}
