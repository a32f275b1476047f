//go:build !nogpu

// Package native dispatches the Mandelbrot kernel through the Pure Go
// wgpu HAL.
//
// WGSL is compiled to SPIR-V with naga and executed on the first HAL
// platform (Vulkan, Metal, then DX12) that exposes an adapter. GLES is
// not used for compute: a headless GLES adapter has no GL context.
// The wgpu software HAL is only considered when WithSoftwareHAL is set;
// otherwise CPU execution is left to the software backend.
//
// Build with -tags nogpu to compile the package out.
package native

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Register every HAL backend available on this platform.
	_ "github.com/gogpu/wgpu/hal/allbackends"

	"github.com/gogpu/fractal/backend"
	"github.com/gogpu/fractal/internal/gpucore"
)

func init() {
	Register()
}

// Register installs the native backend in the registry with opts, replacing
// the default registration. Renders that select "native", explicitly or
// automatically, then run with these options:
//
//	native.Register(native.WithDeviceProvider(app))
func Register(opts ...Option) {
	backend.Register(backend.BackendNative, func() gpucore.Backend {
		return New(opts...)
	})
}

// platforms is the HAL platform preference order.
var platforms = []gputypes.Backend{
	gputypes.BackendVulkan,
	gputypes.BackendMetal,
	gputypes.BackendDX12,
}

// Option configures the native backend.
type Option func(*Backend)

// WithSoftwareHAL appends the wgpu software HAL to the platform list.
func WithSoftwareHAL() Option {
	return func(b *Backend) { b.softwareHAL = true }
}

// WithDeviceProvider makes the backend expose the provider's device
// instead of enumerating platforms. The shared device is not destroyed
// when the adapter is closed.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(b *Backend) { b.provider = p }
}

// Backend is the wgpu HAL compute platform.
type Backend struct {
	softwareHAL bool
	provider    gpucontext.DeviceProvider

	mu       sync.Mutex
	instance hal.Instance
	platform gputypes.Backend
	adapters []hal.ExposedAdapter
}

// New creates a native backend. No HAL state is created until Devices.
func New(opts ...Option) *Backend {
	b := &Backend{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns "native".
func (b *Backend) Name() string { return backend.BackendNative }

// Devices enumerates the adapters of the first platform that has any,
// GPU-class adapters first.
func (b *Backend) Devices() ([]gpucore.DeviceInfo, error) {
	if b.provider != nil {
		return []gpucore.DeviceInfo{providerInfo(b.provider)}, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.instance == nil {
		if err := b.enumerate(); err != nil {
			return nil, err
		}
	}

	devices := make([]gpucore.DeviceInfo, len(b.adapters))
	for i, ea := range b.adapters {
		devices[i] = gpucore.DeviceInfo{
			Index:    i,
			Platform: b.platform.String(),
			Name:     ea.Info.Name,
			Vendor:   ea.Info.Vendor,
			Driver:   ea.Info.Driver,
			Type:     deviceType(ea.Info.DeviceType),
		}
	}
	return devices, nil
}

// candidates returns the platforms to try, in order.
func (b *Backend) candidates() []gputypes.Backend {
	if b.softwareHAL {
		return append(slices.Clone(platforms), gputypes.BackendEmpty)
	}
	return platforms
}

func (b *Backend) enumerate() error {
	log := backend.Logger()
	for _, variant := range b.candidates() {
		hb, ok := hal.GetBackend(variant)
		if !ok {
			continue
		}
		instance, err := hb.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
		if err != nil {
			log.Debug("native: platform unavailable", "platform", variant.String(), "err", err)
			continue
		}
		adapters := instance.EnumerateAdapters(nil)
		if len(adapters) == 0 {
			instance.Destroy()
			continue
		}
		slices.SortStableFunc(adapters, func(x, y hal.ExposedAdapter) int {
			return int(deviceType(x.Info.DeviceType)) - int(deviceType(y.Info.DeviceType))
		})
		b.instance = instance
		b.platform = variant
		b.adapters = adapters
		log.Debug("native: platform selected", "platform", variant.String(), "adapters", len(adapters))
		return nil
	}
	return ErrNoAdapter
}

// Open opens a logical device and its queue on dev.
func (b *Backend) Open(dev gpucore.DeviceInfo) (gpucore.ComputeAdapter, error) {
	if b.provider != nil {
		device, ok := b.provider.Device().(hal.Device)
		if !ok || device == nil {
			return nil, fmt.Errorf("%w: Device is %T", ErrForeignDevice, b.provider.Device())
		}
		queue, ok := b.provider.Queue().(hal.Queue)
		if !ok || queue == nil {
			return nil, fmt.Errorf("%w: Queue is %T", ErrForeignDevice, b.provider.Queue())
		}
		backend.Logger().Debug("native: using shared device", "device", dev.Name)
		return newAdapter(dev, device, queue, gputypes.DefaultLimits(), true), nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if dev.Index < 0 || dev.Index >= len(b.adapters) {
		return nil, fmt.Errorf("native: no adapter at index %d", dev.Index)
	}
	limits := gputypes.DefaultLimits()
	od, err := openDevice(b.adapters[dev.Index].Adapter, limits)
	if err != nil {
		return nil, fmt.Errorf("native: open device %q: %w", dev.Name, err)
	}
	backend.Logger().Debug("native: device opened", "device", dev.Name, "platform", dev.Platform)
	return newAdapter(dev, od.Device, od.Queue, limits, false), nil
}

// openDevice opens a logical device. Some HAL drivers panic instead of
// failing when the platform is half-initialized; that panic is returned
// as ErrDeviceOpen.
func openDevice(a hal.Adapter, limits gputypes.Limits) (od hal.OpenDevice, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrDeviceOpen, p)
		}
	}()
	od, err = a.Open(gputypes.Features(0), limits)
	if err == nil && (od.Device == nil || od.Queue == nil) {
		err = fmt.Errorf("%w: driver returned no device or queue", ErrDeviceOpen)
	}
	return od, err
}

// Close destroys the HAL instance. Adapters opened from it must already
// be closed.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ea := range b.adapters {
		ea.Adapter.Destroy()
	}
	b.adapters = nil
	if b.instance != nil {
		b.instance.Destroy()
		b.instance = nil
	}
}

func deviceType(t gputypes.DeviceType) gpucore.DeviceType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucore.DeviceTypeDiscreteGPU
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucore.DeviceTypeIntegratedGPU
	case gputypes.DeviceTypeVirtualGPU:
		return gpucore.DeviceTypeVirtualGPU
	case gputypes.DeviceTypeCPU:
		return gpucore.DeviceTypeCPU
	default:
		return gpucore.DeviceTypeOther
	}
}

func providerInfo(p gpucontext.DeviceProvider) gpucore.DeviceInfo {
	info := p.AdapterInfo()
	t := gpucore.DeviceTypeOther
	switch info.Type {
	case gpucontext.AdapterTypeDiscrete:
		t = gpucore.DeviceTypeDiscreteGPU
	case gpucontext.AdapterTypeIntegrated:
		t = gpucore.DeviceTypeIntegratedGPU
	case gpucontext.AdapterTypeSoftware:
		t = gpucore.DeviceTypeCPU
	}
	return gpucore.DeviceInfo{Platform: "shared", Name: info.Name, Type: t}
}
