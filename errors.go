package fractal

import (
	"errors"

	"github.com/gogpu/fractal/backend"
	"github.com/gogpu/fractal/internal/gpucore"
	"github.com/gogpu/fractal/internal/kernel"
	"github.com/gogpu/fractal/internal/raster"
)

// Errors returned by Render and Run. Each step wraps its cause, so both
// errors.Is with the sentinel and errors.Is with the underlying error work.
var (
	// ErrInvalidImage is returned for non-positive or oversized dimensions.
	ErrInvalidImage = errors.New("fractal: invalid image")

	// ErrResourceFile is returned when kernel source cannot be read.
	ErrResourceFile = kernel.ErrResourceFile

	// ErrBackendNotAvailable is returned for unknown or compiled-out backends.
	ErrBackendNotAvailable = backend.ErrBackendNotAvailable

	// ErrNoDeviceFound is returned when no device is available.
	ErrNoDeviceFound = backend.ErrNoDeviceFound

	// ErrContextCreation is returned when a device context or command
	// stream cannot be created.
	ErrContextCreation = errors.New("fractal: context creation failed")

	// ErrAllocation is returned when the output buffer cannot be allocated.
	ErrAllocation = errors.New("fractal: buffer allocation failed")

	// ErrCompile is matched by every *CompileError.
	ErrCompile = gpucore.ErrCompile

	// ErrDispatch is returned when binding arguments, enqueueing or
	// waiting for the kernel fails.
	ErrDispatch = errors.New("fractal: dispatch failed")

	// ErrReadback is returned when the output buffer cannot be read.
	ErrReadback = errors.New("fractal: readback failed")

	// ErrEncode is returned when the image cannot be encoded or written.
	ErrEncode = raster.ErrEncode
)

// CompileError reports a kernel that failed to compile or whose entry
// point could not be resolved. Log holds the compiler output verbatim.
type CompileError = gpucore.CompileError
