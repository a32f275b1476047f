// Package opencl dispatches the Mandelbrot kernel through an OpenCL ICD.
//
// The backend compiles OpenCL C at run time with the vendor compiler and
// runs it on the first platform that reports a GPU device, falling back to
// the platform's CPU devices. Compiler diagnostics are surfaced verbatim in
// the compile error.
//
// # Build
//
// The backend links against libOpenCL through cgo and is only compiled
// with the "opencl" build tag:
//
//	go build -tags opencl ./cmd/mandelbrot
//
// Without the tag the package registers a nil factory, so selecting the
// backend by name reports it as not available.
package opencl
