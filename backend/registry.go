package backend

import (
	"fmt"
	"log"
	"sync"
)

// Backend name constants.
const (
	// BackendCPU is the name of the software compute backend.
	BackendCPU = "cpu"
	// BackendWGPU is the name of the GPU backend (gogpu/wgpu HAL).
	BackendWGPU = "wgpu"
)

// DeviceFactory opens a new device instance.
type DeviceFactory func() (Device, error)

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]DeviceFactory)
	// Priority order for backend selection (first that opens wins).
	// WGPU > CPU: a real GPU when one is reachable, software fallback always.
	backendPriority = []string{BackendWGPU, BackendCPU}
)

// Register registers a device factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it is replaced.
func Register(name string, factory DeviceFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns a list of registered backend names.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Open opens a device from the named backend.
func Open(name string) (Device, error) {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	dev, err := factory()
	if err != nil {
		return nil, fmt.Errorf("backend %q: %w", name, err)
	}
	return dev, nil
}

// OpenDefault opens a device from the best available backend.
// Backends are tried in priority order; a backend that fails to open is
// skipped (e.g. the wgpu backend on a machine with no GPU adapter), so
// OpenDefault only fails when no registered backend opens at all.
func OpenDefault() (Device, error) {
	registryMu.RLock()
	priority := make([]DeviceFactory, 0, len(backendPriority))
	names := make([]string, 0, len(backendPriority))
	for _, name := range backendPriority {
		if factory, ok := backends[name]; ok {
			priority = append(priority, factory)
			names = append(names, name)
		}
	}
	registryMu.RUnlock()

	var firstErr error
	for i, factory := range priority {
		dev, err := factory()
		if err == nil {
			return dev, nil
		}
		if firstErr == nil {
			firstErr = err
		}
		log.Printf("backend: %s unavailable, trying next: %v", names[i], err)
	}

	if firstErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, firstErr)
	}
	return nil, ErrDeviceUnavailable
}
