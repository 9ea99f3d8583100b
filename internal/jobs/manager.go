package jobs

import (
	"errors"
	"fmt"
	"sync"

	"n8n-launcher/internal/domain"
)

// ErrOperationInProgress is returned when starting a second active operation.
var ErrOperationInProgress = errors.New("another start or stop operation is in progress")

// ErrNoActiveOperation is returned when finishing an idle manager.
var ErrNoActiveOperation = errors.New("no active operation")

// Manager tracks the single allowed active operation and its transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Operation
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Operation{
			Status: domain.OperationStatusIdle,
		},
	}
}

// Begin records a new operation of kind and moves it to its active state.
func (m *Manager) Begin(id string, kind domain.OperationKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isActive(m.current.Status) {
		return ErrOperationInProgress
	}

	status, err := activeStatus(kind)
	if err != nil {
		return err
	}
	m.current = domain.Operation{
		ID:     id,
		Kind:   kind,
		Status: status,
	}
	return nil
}

// Finish moves the active operation to done, or failed when err is set.
func (m *Manager) Finish(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isActive(m.current.Status) {
		return ErrNoActiveOperation
	}
	if err != nil {
		m.current.Status = domain.OperationStatusFailed
	} else {
		m.current.Status = domain.OperationStatusDone
	}
	return nil
}

// Current returns a snapshot of the current operation.
func (m *Manager) Current() domain.Operation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// IsActive reports whether an operation is in flight.
func (m *Manager) IsActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isActive(m.current.Status)
}

// activeStatus maps an operation kind to its in-flight status.
func activeStatus(kind domain.OperationKind) (domain.OperationStatus, error) {
	switch kind {
	case domain.OperationKindStart:
		return domain.OperationStatusStarting, nil
	case domain.OperationKindStop:
		return domain.OperationStatusStopping, nil
	default:
		return "", fmt.Errorf("unknown operation kind: %q", kind)
	}
}

// isActive checks if a status represents an in-flight operation.
func isActive(status domain.OperationStatus) bool {
	switch status {
	case domain.OperationStatusStarting, domain.OperationStatusStopping:
		return true
	default:
		return false
	}
}
