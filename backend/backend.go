package backend

import (
	"errors"

	"github.com/gogpu/fractal/internal/gpucore"
)

// Backend names.
const (
	BackendNative   = "native"
	BackendOpenCL   = "opencl"
	BackendSoftware = "software"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or was compiled out.
	ErrBackendNotAvailable = errors.New("fractal: backend not available")

	// ErrNoDeviceFound is returned when no backend reports a device.
	ErrNoDeviceFound = errors.New("fractal: no compute device found")
)

// Factory creates a new backend instance, or nil if unavailable.
type Factory func() gpucore.Backend
