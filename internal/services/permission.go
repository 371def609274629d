package services

import "sync"

// PermissionGate tracks the storage write permission of a screen
type PermissionGate struct {
	mu       sync.Mutex
	required bool
	granted  bool
}

// NewPermissionGate creates a gate. When required is false writes are always permitted.
func NewPermissionGate(required bool) *PermissionGate {
	return &PermissionGate{required: required}
}

// Required reports whether an explicit grant is needed
func (p *PermissionGate) Required() bool {
	return p.required
}

// Permitted reports whether writes may proceed
func (p *PermissionGate) Permitted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.required || p.granted
}

// Answer records the user's decision and reports whether it is the first grant
func (p *PermissionGate) Answer(granted bool) (firstGrant bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	firstGrant = granted && !p.granted
	p.granted = granted
	return firstGrant
}
