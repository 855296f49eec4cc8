package coordinator

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicateDevice is returned by Register when the name is already taken.
var ErrDuplicateDevice = errors.New("coordinator: device already registered")

// Registry maps device names to their coordinators. It is passed explicitly
// to whoever needs lookups; there is no package-level instance.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Coordinator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Coordinator)}
}

// Register adds c under c.Name().
func (r *Registry) Register(c *Coordinator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[c.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateDevice, c.Name())
	}
	r.byName[c.Name()] = c
	return nil
}

// Lookup returns the coordinator of device.
func (r *Registry) Lookup(device string) (*Coordinator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[device]
	return c, ok
}

// Remove deletes device and reports whether it was registered.
func (r *Registry) Remove(device string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[device]; !ok {
		return false
	}
	delete(r.byName, device)
	return true
}

// Names returns the registered device names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Each calls fn for every coordinator in name order. fn runs without the
// registry lock held and may call back into the registry.
func (r *Registry) Each(fn func(*Coordinator)) {
	for _, name := range r.Names() {
		if c, ok := r.Lookup(name); ok {
			fn(c)
		}
	}
}
