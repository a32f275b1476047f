//go:build opencl

package opencl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jgillich/go-opencl/cl"

	"github.com/gogpu/fractal/backend"
	"github.com/gogpu/fractal/internal/gpucore"
)

func init() {
	backend.Register(backend.BackendOpenCL, func() gpucore.Backend {
		return New()
	})
}

// Backend is the OpenCL compute platform.
type Backend struct {
	platform *cl.Platform
	devices  []*cl.Device
}

// New creates an OpenCL backend. Platforms are queried by Devices.
func New() *Backend {
	return &Backend{}
}

// Name returns "opencl".
func (b *Backend) Name() string { return backend.BackendOpenCL }

// Devices returns the GPU devices of the first platform that has any. If
// no platform has a GPU, the CPU devices of the first platform with one
// are returned instead.
func (b *Backend) Devices() ([]gpucore.DeviceInfo, error) {
	if b.platform == nil {
		if err := b.enumerate(); err != nil {
			return nil, err
		}
	}

	infos := make([]gpucore.DeviceInfo, len(b.devices))
	for i, d := range b.devices {
		infos[i] = gpucore.DeviceInfo{
			Index:    i,
			Platform: b.platform.Name(),
			Name:     strings.TrimSpace(d.Name()),
			Vendor:   strings.TrimSpace(d.Vendor()),
			Driver:   d.DriverVersion(),
			Type:     deviceType(d.Type()),
		}
	}
	return infos, nil
}

func (b *Backend) enumerate() error {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		return fmt.Errorf("opencl: query platforms: %w", err)
	}
	if len(platforms) == 0 {
		return errors.New("opencl: no platforms reported by the ICD loader")
	}

	for _, want := range []cl.DeviceType{cl.DeviceTypeGPU, cl.DeviceTypeCPU} {
		for _, p := range platforms {
			devices, err := p.GetDevices(want)
			if err != nil && err != cl.ErrDeviceNotFound {
				backend.Logger().Debug("opencl: platform skipped", "platform", p.Name(), "err", err)
				continue
			}
			if len(devices) > 0 {
				b.platform = p
				b.devices = devices
				return nil
			}
		}
	}
	return errors.New("opencl: no GPU or CPU devices on any platform")
}

// Open creates a context and an in-order command queue on dev.
func (b *Backend) Open(dev gpucore.DeviceInfo) (gpucore.ComputeAdapter, error) {
	if dev.Index < 0 || dev.Index >= len(b.devices) {
		return nil, fmt.Errorf("opencl: no device at index %d", dev.Index)
	}
	device := b.devices[dev.Index]

	ctx, err := cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return nil, fmt.Errorf("opencl: create context: %w", err)
	}
	queue, err := ctx.CreateCommandQueue(device, 0)
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("opencl: create command queue: %w", err)
	}
	backend.Logger().Debug("opencl: device opened", "device", dev.Name, "platform", dev.Platform)
	return newAdapter(dev, device, ctx, queue), nil
}

// Close forgets the enumerated devices. Platform and device handles are
// owned by the ICD loader.
func (b *Backend) Close() {
	b.platform = nil
	b.devices = nil
}

func deviceType(t cl.DeviceType) gpucore.DeviceType {
	switch {
	case t&cl.DeviceTypeGPU != 0:
		return gpucore.DeviceTypeDiscreteGPU
	case t&cl.DeviceTypeCPU != 0:
		return gpucore.DeviceTypeCPU
	default:
		return gpucore.DeviceTypeOther
	}
}
