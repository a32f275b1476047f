//go:build !nogpu

package native

import "errors"

// Package errors for the native backend.
var (
	// ErrNoAdapter is returned when no HAL platform exposes an adapter.
	ErrNoAdapter = errors.New("native: no GPU adapter available")

	// ErrDeviceOpen is returned when the driver fails to open a device
	// without reporting an error of its own.
	ErrDeviceOpen = errors.New("native: device open failed")

	// ErrForeignDevice is returned when a device provider does not expose
	// HAL device and queue handles.
	ErrForeignDevice = errors.New("native: provider does not expose HAL types")

	// ErrNotSynchronized is returned by ReadBuffer when the last dispatch
	// has not been finished.
	ErrNotSynchronized = errors.New("native: read before Finish")

	// ErrUnknownResource is returned for IDs the adapter did not create.
	ErrUnknownResource = errors.New("native: unknown resource")

	// ErrArgsNotBound is returned by Dispatch before SetKernelArgs.
	ErrArgsNotBound = errors.New("native: kernel arguments not bound")

	// ErrClosed is returned by operations on a closed adapter.
	ErrClosed = errors.New("native: adapter closed")
)
