package gpucore

import "fmt"

// Resource IDs
//
// These opaque IDs represent device resources. Each adapter implementation
// maintains a mapping between IDs and actual backend resources.

// BufferID is an opaque handle to a device buffer.
type BufferID uint64

// ProgramID is an opaque handle to a compiled program.
type ProgramID uint64

// KernelID is an opaque handle to a kernel resolved from a program.
type KernelID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageMapRead indicates the buffer can be mapped for reading.
	BufferUsageMapRead BufferUsage = 1 << 0

	// BufferUsageCopySrc indicates the buffer can be used as a copy source.
	BufferUsageCopySrc BufferUsage = 1 << 2

	// BufferUsageCopyDst indicates the buffer can be used as a copy destination.
	BufferUsageCopyDst BufferUsage = 1 << 3

	// BufferUsageUniform indicates the buffer can be used as a uniform buffer.
	BufferUsageUniform BufferUsage = 1 << 6

	// BufferUsageStorage indicates the buffer can be used as a storage buffer.
	BufferUsageStorage BufferUsage = 1 << 7
)

// DeviceType classifies a compute device. Lower values are preferred
// during discovery.
type DeviceType int

const (
	DeviceTypeDiscreteGPU DeviceType = iota
	DeviceTypeIntegratedGPU
	DeviceTypeVirtualGPU
	DeviceTypeCPU
	DeviceTypeOther
)

// String returns the device type name.
func (t DeviceType) String() string {
	switch t {
	case DeviceTypeDiscreteGPU:
		return "DiscreteGPU"
	case DeviceTypeIntegratedGPU:
		return "IntegratedGPU"
	case DeviceTypeVirtualGPU:
		return "VirtualGPU"
	case DeviceTypeCPU:
		return "CPU"
	default:
		return "Other"
	}
}

// IsGPU reports whether the device is GPU-class.
func (t DeviceType) IsGPU() bool {
	return t <= DeviceTypeVirtualGPU
}

// DeviceInfo describes one device found during discovery.
type DeviceInfo struct {
	// Index is the position of the device in its backend's device list.
	Index int

	// Platform names the platform the device belongs to (e.g. "Vulkan").
	Platform string

	Name   string
	Vendor string
	Driver string
	Type   DeviceType
}

// String returns a one-line description for diagnostics.
func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s (%s, %s)", d.Name, d.Platform, d.Type)
}

// Language identifies a kernel source language.
type Language int

const (
	LanguageWGSL Language = iota
	LanguageOpenCLC
)

// String returns the language name.
func (l Language) String() string {
	switch l {
	case LanguageWGSL:
		return "WGSL"
	case LanguageOpenCLC:
		return "OpenCL C"
	default:
		return fmt.Sprintf("Language(%d)", int(l))
	}
}

// Source is kernel source text ready for compilation.
type Source struct {
	// Name identifies the source in diagnostics, usually a file path.
	Name string

	Text string
	Lang Language
}

// KernelArgs are the kernel arguments in binding order:
// 0 is the output buffer, 1 is the maximum iteration count.
// Width and Height travel with the iteration bound so the kernel can
// discard padding invocations.
type KernelArgs struct {
	Output       BufferID
	MaxIteration uint32
	Width        uint32
	Height       uint32
}
