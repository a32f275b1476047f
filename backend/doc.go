// Package backend is the registry of compute backends.
//
// Backend packages register a factory from their init function:
//
//	import _ "github.com/gogpu/fractal/backend/native"
//
// A factory may return nil when the backend was compiled out (for example
// the OpenCL backend without the "opencl" build tag); Get and Discover treat
// such backends as unavailable.
//
// # Backend Selection
//
// Get returns a backend by name. Discover with an empty name walks the
// priority order native, opencl, software and returns the first backend
// that reports at least one device; with a name it behaves like Get and
// also lists the devices.
package backend
