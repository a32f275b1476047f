package backend

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/fractal/internal/gpucore"
)

// stubBackend reports a fixed device list.
type stubBackend struct {
	name    string
	devices []gpucore.DeviceInfo
	err     error
	closed  *int
}

func (b *stubBackend) Name() string                           { return b.name }
func (b *stubBackend) Devices() ([]gpucore.DeviceInfo, error) { return b.devices, b.err }

func (b *stubBackend) Open(gpucore.DeviceInfo) (gpucore.ComputeAdapter, error) {
	return nil, errors.New("stub")
}

func (b *stubBackend) Close() {
	if b.closed != nil {
		*b.closed++
	}
}

func register(t *testing.T, name string, f Factory) {
	t.Helper()
	Register(name, f)
	t.Cleanup(func() { Unregister(name) })
}

func TestRegistry_GetUnknown(t *testing.T) {
	if _, err := Get("does-not-exist"); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("err = %v, want ErrBackendNotAvailable", err)
	}
}

func TestRegistry_CompiledOut(t *testing.T) {
	register(t, "compiled-out", func() gpucore.Backend { return nil })

	if _, err := Get("compiled-out"); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("err = %v, want ErrBackendNotAvailable", err)
	}
	if slices.Contains(Available(), "compiled-out") {
		t.Error("Available() lists a nil factory")
	}
}

func TestDiscover_Named(t *testing.T) {
	dev := gpucore.DeviceInfo{Name: "stub0", Type: gpucore.DeviceTypeDiscreteGPU}
	register(t, "stub-named", func() gpucore.Backend {
		return &stubBackend{name: "stub-named", devices: []gpucore.DeviceInfo{dev}}
	})

	b, devices, err := Discover("stub-named")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	defer b.Close()
	if b.Name() != "stub-named" || len(devices) != 1 || devices[0].Name != "stub0" {
		t.Errorf("Discover returned %s %v", b.Name(), devices)
	}
}

func TestDiscover_NamedWithoutDevices(t *testing.T) {
	closed := 0
	register(t, "stub-empty", func() gpucore.Backend {
		return &stubBackend{name: "stub-empty", closed: &closed}
	})

	_, _, err := Discover("stub-empty")
	if !errors.Is(err, ErrNoDeviceFound) {
		t.Fatalf("err = %v, want ErrNoDeviceFound", err)
	}
	if closed != 1 {
		t.Errorf("backend closed %d times, want 1", closed)
	}
}

func TestDiscover_PriorityFallsThrough(t *testing.T) {
	// Shadow the priority names so the test does not depend on hardware.
	saved := make(map[string]Factory)
	registryMu.Lock()
	for _, n := range priority {
		if f, ok := factories[n]; ok {
			saved[n] = f
		}
		delete(factories, n)
	}
	registryMu.Unlock()
	t.Cleanup(func() {
		for n, f := range saved {
			Register(n, f)
		}
	})

	closed := 0
	Register(BackendNative, func() gpucore.Backend {
		return &stubBackend{name: BackendNative, err: errors.New("no vulkan"), closed: &closed}
	})
	Register(BackendSoftware, func() gpucore.Backend {
		return &stubBackend{name: BackendSoftware, devices: []gpucore.DeviceInfo{{Name: "cpu"}}}
	})
	t.Cleanup(func() {
		Unregister(BackendNative)
		Unregister(BackendSoftware)
	})

	b, devices, err := Discover("")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	defer b.Close()
	if b.Name() != BackendSoftware || devices[0].Name != "cpu" {
		t.Errorf("selected %s, want software", b.Name())
	}
	if closed != 1 {
		t.Errorf("native closed %d times, want 1", closed)
	}
}
