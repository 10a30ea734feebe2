package coordinator

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// DeviceKey uniquely identifies one device across plants.
type DeviceKey struct {
	PlantID  string
	ModuleID string
}

// Registry is the process-owned collection of coordinators, keyed by
// device. It is constructed once and handed by reference to whichever
// component needs lookup; there is no ambient global.
type Registry struct {
	mu           sync.RWMutex
	coordinators map[DeviceKey]*Coordinator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		coordinators: make(map[DeviceKey]*Coordinator),
	}
}

// Add registers a coordinator. Adding a device twice is an error.
func (r *Registry) Add(c *Coordinator) error {
	key := DeviceKey{PlantID: c.PlantID(), ModuleID: c.ModuleID()}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.coordinators[key]; exists {
		return errors.Newf("coordinator already registered for module %s in plant %s", key.ModuleID, key.PlantID)
	}
	r.coordinators[key] = c
	return nil
}

// Get looks up the coordinator of one device.
func (r *Registry) Get(plantID, moduleID string) (*Coordinator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.coordinators[DeviceKey{PlantID: plantID, ModuleID: moduleID}]
	return c, ok
}

// Remove unregisters and stops the coordinator of one device. It reports
// whether a coordinator was registered.
func (r *Registry) Remove(plantID, moduleID string) bool {
	key := DeviceKey{PlantID: plantID, ModuleID: moduleID}

	r.mu.Lock()
	c, ok := r.coordinators[key]
	delete(r.coordinators, key)
	r.mu.Unlock()

	if ok {
		c.Stop()
	}
	return ok
}

// All returns the registered coordinators.
func (r *Registry) All() []*Coordinator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Coordinator, 0, len(r.coordinators))
	for _, c := range r.coordinators {
		out = append(out, c)
	}
	return out
}

// Len returns the number of registered coordinators.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.coordinators)
}

// StopAll stops every registered coordinator, waiting for in-flight cycles
// to finish.
func (r *Registry) StopAll() {
	for _, c := range r.All() {
		c.Stop()
	}
}
