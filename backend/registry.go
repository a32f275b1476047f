package backend

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/fractal/internal/gpucore"
)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// Priority order for automatic selection (first with devices wins).
	priority = []string{BackendNative, BackendOpenCL, BackendSoftware}
)

// Register registers a backend factory under name, replacing any previous
// registration. It is typically called from init functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the sorted names of registered backends whose factory
// is compiled in.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name, f := range factories {
		if b := f(); b != nil {
			b.Close()
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Get returns a new instance of the named backend.
func Get(name string) (gpucore.Backend, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered", ErrBackendNotAvailable, name)
	}
	b := factory()
	if b == nil {
		return nil, fmt.Errorf("%w: %q was not compiled in", ErrBackendNotAvailable, name)
	}
	return b, nil
}

// order returns the names to try for automatic selection: the priority
// list first, then any other registered backend in name order.
func order() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for _, name := range priority {
		if _, ok := factories[name]; ok {
			names = append(names, name)
		}
	}
	var rest []string
	for name := range factories {
		if !slices.Contains(priority, name) {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(names, rest...)
}

// Discover selects a backend and enumerates its devices.
//
// With a name, only that backend is consulted. Without one, backends are
// tried in priority order and the first reporting at least one device is
// returned. Backends that yield nothing are closed before moving on.
// The caller owns the returned backend and must Close it.
func Discover(name string) (gpucore.Backend, []gpucore.DeviceInfo, error) {
	if name != "" {
		b, err := Get(name)
		if err != nil {
			return nil, nil, err
		}
		devices, err := b.Devices()
		if err != nil || len(devices) == 0 {
			b.Close()
			return nil, nil, noDevice(name, err)
		}
		return b, devices, nil
	}

	var errs []error
	for _, n := range order() {
		b, err := Get(n)
		if err != nil {
			continue
		}
		devices, err := b.Devices()
		if err == nil && len(devices) > 0 {
			Logger().Debug("backend selected", "backend", n, "devices", len(devices))
			return b, devices, nil
		}
		b.Close()
		Logger().Debug("backend has no devices", "backend", n, "err", err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n, err))
		}
	}
	return nil, nil, noDevice("", errors.Join(errs...))
}

func noDevice(name string, cause error) error {
	switch {
	case name != "" && cause != nil:
		return fmt.Errorf("%w on %s backend: %w", ErrNoDeviceFound, name, cause)
	case name != "":
		return fmt.Errorf("%w on %s backend", ErrNoDeviceFound, name)
	case cause != nil:
		return fmt.Errorf("%w: %w", ErrNoDeviceFound, cause)
	default:
		return ErrNoDeviceFound
	}
}
