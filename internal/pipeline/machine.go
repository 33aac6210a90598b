package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"font-metrics/internal/domain"
)

// ErrRunInProgress is returned when a run begins while another is active.
var ErrRunInProgress = errors.New("measurement run already in progress")

// Machine tracks the single measurement run and its stage transitions.
type Machine struct {
	mu      sync.RWMutex
	current domain.Run
}

// NewMachine creates a machine in idle state.
func NewMachine() *Machine {
	return &Machine{
		current: domain.Run{Status: domain.RunStatusIdle},
	}
}

// Begin starts run runID in the validating stage. A finished run may be
// followed by a new one.
func (m *Machine) Begin(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isRunning(m.current.Status) {
		return ErrRunInProgress
	}
	if !isValidTransition(m.current.Status, domain.RunStatusValidating) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, domain.RunStatusValidating)
	}

	m.current = domain.Run{
		ID:     runID,
		Status: domain.RunStatusValidating,
	}
	return nil
}

// Transition validates and applies a stage transition of the current run.
func (m *Machine) Transition(status domain.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" {
		return fmt.Errorf("cannot transition without an active run")
	}
	if status == m.current.Status {
		return nil
	}
	if !isValidTransition(m.current.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, status)
	}

	m.current.Status = status
	return nil
}

// Fail moves the current run to failed and records err.
func (m *Machine) Fail(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isValidTransition(m.current.Status, domain.RunStatusFailed) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, domain.RunStatusFailed)
	}
	m.current.Status = domain.RunStatusFailed
	if err != nil {
		m.current.Error = err.Error()
	}
	return nil
}

// Current returns a snapshot of the current run.
func (m *Machine) Current() domain.Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// IsRunning reports whether a stage is executing.
func (m *Machine) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isRunning(m.current.Status)
}

func isRunning(status domain.RunStatus) bool {
	switch status {
	case domain.RunStatusValidating, domain.RunStatusServerStarting, domain.RunStatusBrowserStarting,
		domain.RunStatusMeasuring, domain.RunStatusPersisting:
		return true
	default:
		return false
	}
}

// next lists the stage following each running stage.
var next = map[domain.RunStatus]domain.RunStatus{
	domain.RunStatusValidating:      domain.RunStatusServerStarting,
	domain.RunStatusServerStarting:  domain.RunStatusBrowserStarting,
	domain.RunStatusBrowserStarting: domain.RunStatusMeasuring,
	domain.RunStatusMeasuring:       domain.RunStatusPersisting,
	domain.RunStatusPersisting:      domain.RunStatusDone,
}

// isValidTransition enforces the allowed run state machine edges.
func isValidTransition(from, to domain.RunStatus) bool {
	switch from {
	case domain.RunStatusIdle, domain.RunStatusDone, domain.RunStatusFailed:
		return to == domain.RunStatusValidating
	default:
		if !isRunning(from) {
			return false
		}
		return to == next[from] || to == domain.RunStatusFailed
	}
}
