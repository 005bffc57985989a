package generators

import (
	"fmt"
	"sync"
)

// Registry holds generator registrations in registration order. The
// collection stays small; ordering is the deterministic tie-break for
// selection.
type Registry struct {
	mu   sync.RWMutex
	regs []Registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register validates the generator and appends the registration. An invalid
// generator is not registered and the error is surfaced.
func (r *Registry) Register(reg Registration) error {
	if reg.ID == "" {
		return fmt.Errorf("registration missing id")
	}
	if reg.Generator == nil {
		return fmt.Errorf("registration %q missing generator", reg.ID)
	}
	if err := reg.Generator.Validate(); err != nil {
		return fmt.Errorf("generator %q failed validation; %w", reg.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.regs {
		if existing.ID == reg.ID {
			return fmt.Errorf("generator %q already registered", reg.ID)
		}
	}
	r.regs = append(r.regs, reg)
	return nil
}

// Unregister removes a registration by id.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, reg := range r.regs {
		if reg.ID == id {
			r.regs = append(r.regs[:i], r.regs[i+1:]...)
			return true
		}
	}
	return false
}

// List returns the registrations in registration order.
func (r *Registry) List() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Registration, len(r.regs))
	copy(out, r.regs)
	return out
}

// GetByID returns a registration by id.
func (r *Registry) GetByID(id string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, reg := range r.regs {
		if reg.ID == id {
			return reg, true
		}
	}
	return Registration{}, false
}
