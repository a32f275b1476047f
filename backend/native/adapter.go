// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/fractal/backend"
	"github.com/gogpu/fractal/internal/gpucore"
	"github.com/gogpu/fractal/internal/kernel"
	"github.com/gogpu/fractal/internal/partition"
)

type buffer struct {
	buf  hal.Buffer
	size uint64
}

type program struct {
	src     gpucore.Source
	module  hal.ShaderModule
	entries []string
}

// boundKernel owns the pipeline objects derived from one entry point and,
// once arguments are set, the uniform buffer and bind group.
type boundKernel struct {
	program   gpucore.ProgramID
	entry     string
	workgroup partition.Shape
	bgl       hal.BindGroupLayout
	layout    hal.PipelineLayout
	pipeline  hal.ComputePipeline
	params    hal.Buffer
	bindGroup hal.BindGroup
}

// submission is the last command buffer handed to the queue.
type submission struct {
	cmd      hal.CommandBuffer
	encoder  hal.CommandEncoder
	index    uint64
	finished bool
}

// HALAdapter implements gpucore.ComputeAdapter on a hal.Device.
//
// Thread safety: HALAdapter is safe for concurrent use. The queue is a
// single in-order command stream.
type HALAdapter struct {
	info     gpucore.DeviceInfo
	limits   gputypes.Limits
	external bool // shared device, not destroyed on Close

	mu       sync.RWMutex
	device   hal.Device
	queue    hal.Queue
	buffers  map[gpucore.BufferID]*buffer
	programs map[gpucore.ProgramID]*program
	kernels  map[gpucore.KernelID]*boundKernel
	last     *submission
	closed   bool

	nextID atomic.Uint64
}

var _ gpucore.ComputeAdapter = (*HALAdapter)(nil)

func newAdapter(info gpucore.DeviceInfo, device hal.Device, queue hal.Queue, limits gputypes.Limits, external bool) *HALAdapter {
	return &HALAdapter{
		info:     info,
		limits:   limits,
		external: external,
		device:   device,
		queue:    queue,
		buffers:  make(map[gpucore.BufferID]*buffer),
		programs: make(map[gpucore.ProgramID]*program),
		kernels:  make(map[gpucore.KernelID]*boundKernel),
	}
}

func (a *HALAdapter) newID() uint64 {
	return a.nextID.Add(1)
}

// Info returns the device the adapter was opened on.
func (a *HALAdapter) Info() gpucore.DeviceInfo { return a.info }

// Language returns WGSL.
func (a *HALAdapter) Language() gpucore.Language { return gpucore.LanguageWGSL }

// === Buffers ===

// CreateBuffer allocates a device buffer. The size is rounded up to a
// multiple of 4 as copies require.
func (a *HALAdapter) CreateBuffer(size int, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	if size <= 0 {
		return gpucore.InvalidID, fmt.Errorf("native: invalid buffer size %d", size)
	}
	aligned := (uint64(size) + 3) &^ 3
	if aligned > a.limits.MaxBufferSize {
		return gpucore.InvalidID, fmt.Errorf("native: buffer of %d bytes exceeds device limit %d",
			aligned, a.limits.MaxBufferSize)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return gpucore.InvalidID, ErrClosed
	}
	buf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "fractal-output",
		Size:  aligned,
		Usage: halUsage(usage) | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create buffer: %w", err)
	}
	id := gpucore.BufferID(a.newID())
	a.buffers[id] = &buffer{buf: buf, size: aligned}
	return id, nil
}

// DestroyBuffer releases a device buffer.
func (a *HALAdapter) DestroyBuffer(id gpucore.BufferID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if b, ok := a.buffers[id]; ok {
		a.device.DestroyBuffer(b.buf)
		delete(a.buffers, id)
	}
}

// ReadBuffer copies the buffer through a mappable staging buffer. The copy
// is submitted on the queue after the last dispatch and waited for.
func (a *HALAdapter) ReadBuffer(id gpucore.BufferID, dst []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.last != nil && !a.last.finished {
		return ErrNotSynchronized
	}
	src, ok := a.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrUnknownResource, id)
	}
	if uint64(len(dst)) > src.size {
		return fmt.Errorf("native: read of %d bytes from %d-byte buffer", len(dst), src.size)
	}
	if len(dst) == 0 {
		return nil
	}
	size := (uint64(len(dst)) + 3) &^ 3

	staging, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "fractal-readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("native: create staging buffer: %w", err)
	}
	defer a.device.DestroyBuffer(staging)

	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "fractal-readback"})
	if err != nil {
		return fmt.Errorf("native: create encoder: %w", err)
	}
	defer encoder.Destroy()
	if err := encoder.BeginEncoding("fractal-readback"); err != nil {
		return fmt.Errorf("native: begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(src.buf, staging, []hal.BufferCopy{{Size: size}})
	cmd, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("native: end encoding: %w", err)
	}
	defer a.device.FreeCommandBuffer(cmd)

	if _, err := a.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		return fmt.Errorf("native: submit readback: %w", err)
	}
	if err := a.device.WaitIdle(); err != nil {
		return fmt.Errorf("native: wait for readback: %w", err)
	}

	mapping, err := a.device.MapBuffer(staging, 0, size)
	if err != nil {
		return fmt.Errorf("native: map staging buffer: %w", err)
	}
	copy(dst, unsafe.Slice((*byte)(mapping.Ptr), size))
	if err := a.device.UnmapBuffer(staging); err != nil {
		return fmt.Errorf("native: unmap staging buffer: %w", err)
	}
	return nil
}

// === Programs ===

// CreateProgram compiles WGSL to SPIR-V and creates a shader module.
func (a *HALAdapter) CreateProgram(src gpucore.Source) (gpucore.ProgramID, error) {
	if src.Lang != gpucore.LanguageWGSL {
		return gpucore.InvalidID, &gpucore.CompileError{
			Source: src.Name,
			Log:    fmt.Sprintf("native backend compiles WGSL only, got %s", src.Lang),
		}
	}
	if strings.TrimSpace(src.Text) == "" {
		return gpucore.InvalidID, &gpucore.CompileError{Source: src.Name, Log: "empty kernel source"}
	}
	spirv, err := compileSPIRV(src)
	if err != nil {
		return gpucore.InvalidID, gpucore.NewCompileError(src, "", err)
	}
	entries, err := kernel.EntryPoints(src)
	if err != nil {
		return gpucore.InvalidID, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return gpucore.InvalidID, ErrClosed
	}
	module, err := a.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  src.Name,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return gpucore.InvalidID, gpucore.NewCompileError(src, "", err)
	}
	id := gpucore.ProgramID(a.newID())
	a.programs[id] = &program{src: src, module: module, entries: entries}
	backend.Logger().Debug("native: program compiled", "source", src.Name, "spirv_words", len(spirv))
	return id, nil
}

// DestroyProgram releases a shader module.
func (a *HALAdapter) DestroyProgram(id gpucore.ProgramID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.programs[id]; ok {
		a.device.DestroyShaderModule(p.module)
		delete(a.programs, id)
	}
}

// CreateKernel builds the bind group layout, pipeline layout and compute
// pipeline for entry.
func (a *HALAdapter) CreateKernel(prog gpucore.ProgramID, entry string) (gpucore.KernelID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.programs[prog]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: program %d", ErrUnknownResource, prog)
	}
	if !slices.Contains(p.entries, entry) {
		return gpucore.InvalidID, &gpucore.CompileError{
			Source: p.src.Name,
			Entry:  entry,
			Log:    fmt.Sprintf("no compute entry point %q in program (have %v)", entry, p.entries),
		}
	}

	sig, err := kernel.Inspect(p.src, entry)
	if err != nil {
		return gpucore.InvalidID, err
	}

	bk := &boundKernel{program: prog, entry: entry, workgroup: sig.Tile()}
	fail := func(err error) (gpucore.KernelID, error) {
		a.destroyKernel(bk)
		return gpucore.InvalidID, gpucore.NewCompileError(p.src, entry, err)
	}

	bk.bgl, err = a.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: entry,
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    kernel.BindingOutput,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
			},
			{
				Binding:    kernel.BindingParams,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return fail(fmt.Errorf("bind group layout: %w", err))
	}
	bk.layout, err = a.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            entry,
		BindGroupLayouts: []hal.BindGroupLayout{bk.bgl},
	})
	if err != nil {
		return fail(fmt.Errorf("pipeline layout: %w", err))
	}
	bk.pipeline, err = a.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   entry,
		Layout:  bk.layout,
		Compute: hal.ComputeState{Module: p.module, EntryPoint: entry},
	})
	if err != nil {
		return fail(fmt.Errorf("compute pipeline: %w", err))
	}

	id := gpucore.KernelID(a.newID())
	a.kernels[id] = bk
	return id, nil
}

// DestroyKernel releases a pipeline and its bound arguments.
func (a *HALAdapter) DestroyKernel(id gpucore.KernelID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if bk, ok := a.kernels[id]; ok {
		a.destroyKernel(bk)
		delete(a.kernels, id)
	}
}

// destroyKernel releases the objects of bk in reverse creation order.
// Nil members are skipped. Caller holds a.mu.
func (a *HALAdapter) destroyKernel(bk *boundKernel) {
	if bk.bindGroup != nil {
		a.device.DestroyBindGroup(bk.bindGroup)
	}
	if bk.params != nil {
		a.device.DestroyBuffer(bk.params)
	}
	if bk.pipeline != nil {
		a.device.DestroyComputePipeline(bk.pipeline)
	}
	if bk.layout != nil {
		a.device.DestroyPipelineLayout(bk.layout)
	}
	if bk.bgl != nil {
		a.device.DestroyBindGroupLayout(bk.bgl)
	}
}

// === Execution ===

// SetKernelArgs writes the iteration bound and image size to the uniform
// buffer and binds it with the output buffer.
func (a *HALAdapter) SetKernelArgs(k gpucore.KernelID, args gpucore.KernelArgs) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	bk, ok := a.kernels[k]
	if !ok {
		return fmt.Errorf("%w: kernel %d", ErrUnknownResource, k)
	}
	out, ok := a.buffers[args.Output]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrUnknownResource, args.Output)
	}
	if args.MaxIteration == 0 || args.Width == 0 || args.Height == 0 {
		return fmt.Errorf("native: invalid kernel arguments %+v", args)
	}
	if need := uint64(args.Width) * uint64(args.Height) * 4; out.size < need {
		return fmt.Errorf("native: output buffer holds %d bytes, kernel writes %d", out.size, need)
	}
	if out.size > a.limits.MaxStorageBufferBindingSize {
		return fmt.Errorf("native: output buffer of %d bytes exceeds storage binding limit %d",
			out.size, a.limits.MaxStorageBufferBindingSize)
	}

	if bk.params == nil {
		params, err := a.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "fractal-params",
			Size:  kernel.ParamsSize,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("native: create params buffer: %w", err)
		}
		bk.params = params
	}
	if err := a.queue.WriteBuffer(bk.params, 0, kernel.EncodeParams(args.MaxIteration, args.Width, args.Height)); err != nil {
		return fmt.Errorf("native: write params: %w", err)
	}

	if bk.bindGroup != nil {
		a.device.DestroyBindGroup(bk.bindGroup)
		bk.bindGroup = nil
	}
	bg, err := a.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  bk.entry,
		Layout: bk.bgl,
		Entries: []gputypes.BindGroupEntry{
			{Binding: kernel.BindingOutput, Resource: gputypes.BufferBinding{Buffer: out.buf.NativeHandle(), Size: out.size}},
			{Binding: kernel.BindingParams, Resource: gputypes.BufferBinding{Buffer: bk.params.NativeHandle(), Size: kernel.ParamsSize}},
		},
	})
	if err != nil {
		return fmt.Errorf("native: create bind group: %w", err)
	}
	bk.bindGroup = bg
	return nil
}

// Dispatch records one compute pass over space and submits it.
func (a *HALAdapter) Dispatch(k gpucore.KernelID, space partition.Space) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	bk, ok := a.kernels[k]
	if !ok {
		return fmt.Errorf("%w: kernel %d", ErrUnknownResource, k)
	}
	if bk.bindGroup == nil {
		return ErrArgsNotBound
	}
	if a.last != nil && !a.last.finished {
		return fmt.Errorf("native: previous dispatch not finished")
	}
	if space.Local != bk.workgroup {
		return fmt.Errorf("native: workgroup %v does not match kernel workgroup %v", space.Local, bk.workgroup)
	}
	wg := space.Workgroups()
	if limit := int(a.limits.MaxComputeWorkgroupsPerDimension); wg.X > limit || wg.Y > limit {
		return fmt.Errorf("native: %v workgroups exceed the per-dimension limit %d", wg, limit)
	}

	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "fractal-dispatch"})
	if err != nil {
		return fmt.Errorf("native: create encoder: %w", err)
	}
	if err := encoder.BeginEncoding("fractal-dispatch"); err != nil {
		encoder.Destroy()
		return fmt.Errorf("native: begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: bk.entry})
	pass.SetPipeline(bk.pipeline)
	pass.SetBindGroup(0, bk.bindGroup, nil)
	pass.Dispatch(uint32(wg.X), uint32(wg.Y), 1)
	pass.End()

	cmd, err := encoder.EndEncoding()
	if err != nil {
		encoder.Destroy()
		return fmt.Errorf("native: end encoding: %w", err)
	}
	index, err := a.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		a.device.FreeCommandBuffer(cmd)
		encoder.Destroy()
		return fmt.Errorf("native: submit: %w", err)
	}
	a.last = &submission{cmd: cmd, encoder: encoder, index: index}

	backend.Logger().Debug("native: dispatch submitted",
		"global", space.Global.String(), "local", space.Local.String(),
		"workgroups", wg.String(), "submission", index)
	return nil
}

// Finish waits for the device to go idle and frees the last submission.
func (a *HALAdapter) Finish() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.last
	if s == nil || s.finished {
		return nil
	}
	if err := a.device.WaitIdle(); err != nil {
		return fmt.Errorf("native: wait idle: %w", err)
	}
	if done := a.queue.PollCompleted(); done < s.index {
		backend.Logger().Warn("native: queue idle before submission completed",
			"submission", s.index, "completed", done)
	}
	a.device.FreeCommandBuffer(s.cmd)
	s.encoder.Destroy()
	s.finished = true
	return nil
}

// Close waits for outstanding work, destroys every resource the caller
// did not release and, unless the device is shared, the device itself.
func (a *HALAdapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true

	if err := a.device.WaitIdle(); err != nil {
		backend.Logger().Warn("native: wait idle on close", "err", err)
	}
	if s := a.last; s != nil && !s.finished {
		a.device.FreeCommandBuffer(s.cmd)
		s.encoder.Destroy()
		s.finished = true
	}

	leaked := len(a.buffers) + len(a.programs) + len(a.kernels)
	for id, bk := range a.kernels {
		a.destroyKernel(bk)
		delete(a.kernels, id)
	}
	for id, p := range a.programs {
		a.device.DestroyShaderModule(p.module)
		delete(a.programs, id)
	}
	for id, b := range a.buffers {
		a.device.DestroyBuffer(b.buf)
		delete(a.buffers, id)
	}
	if leaked > 0 {
		backend.Logger().Warn("native: adapter closed with live resources", "count", leaked)
	}

	if !a.external {
		a.device.Destroy()
	}
	a.device = nil
	a.queue = nil
}

// Live returns the number of resources currently held by this adapter.
func (a *HALAdapter) Live() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.buffers) + len(a.programs) + len(a.kernels)
}

func halUsage(u gpucore.BufferUsage) gputypes.BufferUsage {
	var out gputypes.BufferUsage
	if u&gpucore.BufferUsageMapRead != 0 {
		out |= gputypes.BufferUsageMapRead
	}
	if u&gpucore.BufferUsageCopySrc != 0 {
		out |= gputypes.BufferUsageCopySrc
	}
	if u&gpucore.BufferUsageCopyDst != 0 {
		out |= gputypes.BufferUsageCopyDst
	}
	if u&gpucore.BufferUsageUniform != 0 {
		out |= gputypes.BufferUsageUniform
	}
	if u&gpucore.BufferUsageStorage != 0 {
		out |= gputypes.BufferUsageStorage
	}
	return out
}
