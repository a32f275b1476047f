package gpucore

import "github.com/gogpu/fractal/internal/partition"

// Backend is one compute platform: Vulkan through the wgpu HAL, an OpenCL
// ICD, or the CPU emulation.
//
// A Backend value is created per run. It owns platform-level state (for
// example a HAL instance) that outlives every adapter opened from it, so
// Close must be called after all adapters are closed.
type Backend interface {
	// Name returns the registry name of the backend.
	Name() string

	// Devices enumerates the devices of the first platform that has any,
	// GPU-class devices first. An empty list means no device was found.
	Devices() ([]DeviceInfo, error)

	// Open acquires an execution context and command stream on a device
	// returned by Devices.
	Open(dev DeviceInfo) (ComputeAdapter, error)

	// Close releases platform-level state.
	Close()
}

// ComputeAdapter is an execution context with a single in-order command
// stream on one device.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - Objects derived from a program are destroyed before the program
//   - Close releases the context itself and must come last
type ComputeAdapter interface {
	// Info returns the device the adapter was opened on.
	Info() DeviceInfo

	// Language returns the kernel language the adapter compiles.
	Language() Language

	// === Buffers ===

	// CreateBuffer allocates a device buffer of size bytes.
	CreateBuffer(size int, usage BufferUsage) (BufferID, error)

	// DestroyBuffer releases a device buffer.
	DestroyBuffer(id BufferID)

	// ReadBuffer copies the buffer into dst, blocking until the copy is
	// complete. It fails if the last dispatch has not been finished.
	ReadBuffer(id BufferID, dst []byte) error

	// === Programs ===

	// CreateProgram compiles kernel source for the device.
	// Compilation failures are returned as *CompileError.
	CreateProgram(src Source) (ProgramID, error)

	// DestroyProgram releases a program.
	DestroyProgram(id ProgramID)

	// CreateKernel resolves an entry point of a compiled program.
	// A missing entry point is returned as *CompileError.
	CreateKernel(prog ProgramID, entry string) (KernelID, error)

	// DestroyKernel releases a kernel and its bound arguments.
	DestroyKernel(id KernelID)

	// === Execution ===

	// SetKernelArgs binds the kernel arguments in their fixed order.
	SetKernelArgs(k KernelID, args KernelArgs) error

	// Dispatch enqueues one execution of the kernel over the iteration
	// space and returns without waiting for it.
	Dispatch(k KernelID, space partition.Space) error

	// Finish blocks until all enqueued work has completed.
	Finish() error

	// Close releases the command stream and the context.
	Close()
}
