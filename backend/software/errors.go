package software

import "errors"

// Package errors for the software backend.
var (
	// ErrNotSynchronized is returned by ReadBuffer when a dispatch is
	// still in flight.
	ErrNotSynchronized = errors.New("software: read before Finish")

	// ErrOutOfMemory is returned when an allocation exceeds the memory limit.
	ErrOutOfMemory = errors.New("software: device memory exhausted")

	// ErrUnknownResource is returned for IDs the adapter did not create.
	ErrUnknownResource = errors.New("software: unknown resource")

	// ErrArgsNotBound is returned by Dispatch before SetKernelArgs.
	ErrArgsNotBound = errors.New("software: kernel arguments not bound")

	// ErrClosed is returned by operations on a closed adapter.
	ErrClosed = errors.New("software: adapter closed")
)
