package pipeline

import (
	"errors"
	"testing"

	"font-metrics/internal/domain"
)

var stages = []domain.RunStatus{
	domain.RunStatusServerStarting,
	domain.RunStatusBrowserStarting,
	domain.RunStatusMeasuring,
	domain.RunStatusPersisting,
	domain.RunStatusDone,
}

// TestMachineLifecycle verifies normal progression to done state.
func TestMachineLifecycle(t *testing.T) {
	m := NewMachine()
	if m.IsRunning() {
		t.Fatal("new machine should be idle")
	}

	if err := m.Begin("run-1"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if !m.IsRunning() {
		t.Fatal("expected running after begin")
	}

	for _, status := range stages {
		if err := m.Transition(status); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	if got := m.Current(); got.Status != domain.RunStatusDone || got.ID != "run-1" {
		t.Fatalf("current = %+v, want run-1 done", got)
	}
}

// TestMachineRejectsSkippedStage checks stages cannot be skipped.
func TestMachineRejectsSkippedStage(t *testing.T) {
	m := NewMachine()
	if err := m.Begin("run-1"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	if err := m.Transition(domain.RunStatusMeasuring); err == nil {
		t.Fatal("expected invalid transition error")
	}
	if err := m.Transition(domain.RunStatusDone); err == nil {
		t.Fatal("expected invalid transition error")
	}
}

// TestMachineFailsFromEveryRunningStage checks the absorbing failed state.
func TestMachineFailsFromEveryRunningStage(t *testing.T) {
	for i := range stages {
		m := NewMachine()
		if err := m.Begin("run-1"); err != nil {
			t.Fatalf("begin: %v", err)
		}
		for _, status := range stages[:i] {
			if err := m.Transition(status); err != nil {
				t.Fatalf("transition to %s: %v", status, err)
			}
		}
		from := m.Current().Status
		if err := m.Fail(errors.New("boom")); err != nil {
			t.Fatalf("fail from %s: %v", from, err)
		}
		if got := m.Current(); got.Status != domain.RunStatusFailed || got.Error != "boom" {
			t.Fatalf("current = %+v, want failed with error", got)
		}
		if err := m.Transition(domain.RunStatusPersisting); err == nil {
			t.Fatalf("failed run must not advance")
		}
	}
}

// TestMachineDoneCannotFail checks done is terminal for the run.
func TestMachineDoneCannotFail(t *testing.T) {
	m := NewMachine()
	_ = m.Begin("run-1")
	for _, status := range stages {
		_ = m.Transition(status)
	}
	if err := m.Fail(errors.New("late")); err == nil {
		t.Fatal("expected done run to reject failure")
	}
}

// TestMachineBeginGuards checks single active run and warm re-runs.
func TestMachineBeginGuards(t *testing.T) {
	m := NewMachine()
	if err := m.Begin("run-1"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := m.Begin("run-2"); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("second begin error = %v, want %v", err, ErrRunInProgress)
	}

	_ = m.Fail(errors.New("boom"))
	if err := m.Begin("run-2"); err != nil {
		t.Fatalf("begin after failure: %v", err)
	}
	if got := m.Current(); got.ID != "run-2" || got.Error != "" || got.Status != domain.RunStatusValidating {
		t.Fatalf("current = %+v, want fresh validating run-2", got)
	}
}

// TestMachineTransitionWithoutRun checks an idle machine rejects stages.
func TestMachineTransitionWithoutRun(t *testing.T) {
	if err := NewMachine().Transition(domain.RunStatusServerStarting); err == nil {
		t.Fatal("expected error without active run")
	}
}
