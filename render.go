// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fractal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gogpu/fractal/backend"
	"github.com/gogpu/fractal/internal/gpucore"
	"github.com/gogpu/fractal/internal/kernel"
	"github.com/gogpu/fractal/internal/partition"
	"github.com/gogpu/fractal/internal/raster"
)

// Render computes img on a compute device and returns the raster.
//
// The steps run strictly in order: load the kernel source, discover a
// device, open a context, allocate the output buffer, compile the kernel,
// bind its arguments, dispatch, wait, and read back. ctx is checked
// between steps up to the dispatch; once the kernel is enqueued the render
// runs to completion.
//
// Every device object acquired is released before Render returns, newest
// first, whether it succeeds or not.
func Render(ctx context.Context, img Image, opts ...Option) (*Result, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	cfg := newConfig(opts)
	if cfg.tile.X <= 0 || cfg.tile.Y <= 0 {
		return nil, fmt.Errorf("%w: tile %v", ErrDispatch, cfg.tile)
	}
	log := Logger()

	// A missing or malformed kernel file never touches a device.
	src, err := cfg.loadSource()
	if err != nil {
		return nil, err
	}
	if src != nil && cfg.signatureCheck(src.Lang) {
		if err := kernel.CheckSignatureTile(*src, cfg.entry, cfg.tile); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scope := &releaser{log: log}
	defer scope.release()

	// Discover.
	b, devices, err := backend.Discover(cfg.backend)
	if err != nil {
		return nil, err
	}
	scope.push("backend", b.Close)
	if cfg.device < 0 || cfg.device >= len(devices) {
		return nil, fmt.Errorf("%w: device index %d, %s backend has %d",
			ErrNoDeviceFound, cfg.device, b.Name(), len(devices))
	}
	dev := devices[cfg.device]
	log.Info("fractal: device selected", "backend", b.Name(), "device", dev.String())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Acquire.
	a, err := b.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrContextCreation, dev.Name, err)
	}
	scope.push("context", a.Close)
	step(log, "acquire", "device", dev.Name, "language", a.Language().String())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Allocate.
	size := img.ByteSize()
	buf, err := a.CreateBuffer(size, gpucore.BufferUsageStorage|gpucore.BufferUsageCopySrc)
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes: %w", ErrAllocation, size, err)
	}
	scope.push("buffer", func() { a.DestroyBuffer(buf) })
	step(log, "allocate", "bytes", size)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Compile.
	if src == nil {
		def := kernel.Default(a.Language())
		src = &def
	}
	prog, err := a.CreateProgram(*src)
	if err != nil {
		return nil, err
	}
	scope.push("program", func() { a.DestroyProgram(prog) })
	k, err := a.CreateKernel(prog, cfg.entry)
	if err != nil {
		return nil, err
	}
	scope.push("kernel", func() { a.DestroyKernel(k) })
	if err := checkTile(*src, cfg.entry, cfg.tile); err != nil {
		return nil, err
	}
	step(log, "compile", "source", src.Name, "entry", cfg.entry)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Bind: argument 0 is the output buffer, argument 1 the bound.
	args := gpucore.KernelArgs{
		Output:       buf,
		MaxIteration: uint32(img.MaxIteration),
		Width:        uint32(img.Width),
		Height:       uint32(img.Height),
	}
	if err := a.SetKernelArgs(k, args); err != nil {
		return nil, fmt.Errorf("%w: bind arguments: %w", ErrDispatch, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Dispatch.
	space := partition.For(img.Width, img.Height, cfg.tile)
	if err := a.Dispatch(k, space); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDispatch, err)
	}
	step(log, "dispatch", "global", space.Global.String(), "local", space.Local.String(),
		"invocations", space.Invocations())

	// Synchronize.
	if err := a.Finish(); err != nil {
		return nil, fmt.Errorf("%w: wait: %w", ErrDispatch, err)
	}
	step(log, "synchronize")

	// Retrieve.
	pixels := make([]byte, size)
	if err := a.ReadBuffer(buf, pixels); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadback, err)
	}
	step(log, "retrieve", "bytes", size)

	return &Result{
		Image:   img,
		Pixels:  pixels,
		Stride:  raster.Stride(img.Width),
		Space:   space,
		Backend: b.Name(),
		Device:  dev,
	}, nil
}

// Run renders img and encodes it to output.
func Run(ctx context.Context, img Image, output string, opts ...Option) (*Result, error) {
	res, err := Render(ctx, img, opts...)
	if err != nil {
		return nil, err
	}
	cfg := newConfig(opts)
	if err := res.Save(output, cfg.encode...); err != nil {
		return nil, err
	}
	step(Logger(), "encode", "path", output)
	return res, nil
}

// loadSource returns the explicit kernel source, if any.
func (c *config) loadSource() (*Source, error) {
	switch {
	case c.source != nil:
		src := *c.source
		return &src, nil
	case c.kernelFile != "":
		src, err := kernel.LoadSource(c.kernelFile)
		if err != nil {
			return nil, err
		}
		return &src, nil
	default:
		return nil, nil
	}
}

func (c *config) signatureCheck(lang gpucore.Language) bool {
	if lang != gpucore.LanguageWGSL {
		return false
	}
	return c.checkSignature == nil || *c.checkSignature
}

// checkTile rejects a dispatch whose local shape differs from the
// workgroup size a WGSL kernel declares. OpenCL takes the local size at
// enqueue time and needs no check.
func checkTile(src Source, entry string, tile partition.Shape) error {
	if src.Lang != gpucore.LanguageWGSL {
		return nil
	}
	sig, err := kernel.Inspect(src, entry)
	if err != nil {
		return err
	}
	if got := sig.Tile(); got != tile {
		return fmt.Errorf("%w: tile %v does not match the %v workgroup of %s", ErrDispatch, tile, got, entry)
	}
	return nil
}

func step(log *slog.Logger, name string, attrs ...any) {
	log.Debug("fractal: step", append([]any{"step", name}, attrs...)...)
}
