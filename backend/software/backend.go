// Package software runs the Mandelbrot kernel on the CPU.
//
// The backend emulates a compute device: WGSL programs are compiled with
// naga exactly as the native backend compiles them, the entry point is
// checked against the binding contract, and Dispatch executes the float32
// reference kernel for every invocation of the iteration space, one 16x16
// workgroup per job on a work-stealing goroutine pool. Dispatch is
// asynchronous; Finish waits for the pool.
package software

import (
	"fmt"
	"runtime"

	"github.com/gogpu/fractal/backend"
	"github.com/gogpu/fractal/internal/gpucore"
)

func init() {
	backend.Register(backend.BackendSoftware, func() gpucore.Backend {
		return New()
	})
}

// Option configures the software backend.
type Option func(*options)

type options struct {
	workers     int
	memoryLimit int64
}

// WithWorkers sets the number of pool workers. Zero means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithMemoryLimit caps the total bytes of live buffers. Allocations beyond
// the cap fail the way an out-of-memory device would. Zero means no cap.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) { o.memoryLimit = bytes }
}

// Backend is the CPU compute platform. It has exactly one device.
type Backend struct {
	opts options
}

// New creates a software backend.
func New(opts ...Option) *Backend {
	b := &Backend{}
	for _, opt := range opts {
		opt(&b.opts)
	}
	if b.opts.workers <= 0 {
		b.opts.workers = runtime.GOMAXPROCS(0)
	}
	return b
}

// Name returns "software".
func (b *Backend) Name() string { return backend.BackendSoftware }

// Devices returns the single CPU device.
func (b *Backend) Devices() ([]gpucore.DeviceInfo, error) {
	return []gpucore.DeviceInfo{{
		Index:    0,
		Platform: "Go",
		Name:     fmt.Sprintf("software (%d workers)", b.opts.workers),
		Vendor:   runtime.GOARCH,
		Driver:   runtime.Version(),
		Type:     gpucore.DeviceTypeCPU,
	}}, nil
}

// Open creates an adapter with its own worker pool.
func (b *Backend) Open(dev gpucore.DeviceInfo) (gpucore.ComputeAdapter, error) {
	if dev.Index != 0 {
		return nil, fmt.Errorf("software: no device at index %d", dev.Index)
	}
	a := newAdapter(dev, b.opts)
	backend.Logger().Debug("software: adapter opened", "workers", b.opts.workers)
	return a, nil
}

// Close is a no-op; the backend holds no platform state.
func (b *Backend) Close() {}
