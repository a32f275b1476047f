// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build opencl

package opencl

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"

	"github.com/gogpu/fractal/backend"
	"github.com/gogpu/fractal/internal/gpucore"
	"github.com/gogpu/fractal/internal/kernel"
	"github.com/gogpu/fractal/internal/partition"
)

// Adapter errors.
var (
	ErrNotSynchronized = errors.New("opencl: read before Finish")
	ErrUnknownResource = errors.New("opencl: unknown resource")
	ErrArgsNotBound    = errors.New("opencl: kernel arguments not bound")
	ErrClosed          = errors.New("opencl: adapter closed")
)

type memObject struct {
	mem  *cl.MemObject
	size int
}

type program struct {
	src  gpucore.Source
	prog *cl.Program
}

type boundKernel struct {
	program gpucore.ProgramID
	entry   string
	k       *cl.Kernel
	bound   bool
}

// Adapter is an OpenCL context with one in-order command queue.
type Adapter struct {
	info   gpucore.DeviceInfo
	device *cl.Device

	mu       sync.Mutex
	ctx      *cl.Context
	queue    *cl.CommandQueue
	buffers  map[gpucore.BufferID]*memObject
	programs map[gpucore.ProgramID]*program
	kernels  map[gpucore.KernelID]*boundKernel
	pending  bool
	closed   bool

	nextID atomic.Uint64
}

var _ gpucore.ComputeAdapter = (*Adapter)(nil)

func newAdapter(info gpucore.DeviceInfo, device *cl.Device, ctx *cl.Context, queue *cl.CommandQueue) *Adapter {
	return &Adapter{
		info:     info,
		device:   device,
		ctx:      ctx,
		queue:    queue,
		buffers:  make(map[gpucore.BufferID]*memObject),
		programs: make(map[gpucore.ProgramID]*program),
		kernels:  make(map[gpucore.KernelID]*boundKernel),
	}
}

func (a *Adapter) newID() uint64 {
	return a.nextID.Add(1)
}

// Info returns the device the adapter was opened on.
func (a *Adapter) Info() gpucore.DeviceInfo { return a.info }

// Language returns OpenCL C.
func (a *Adapter) Language() gpucore.Language { return gpucore.LanguageOpenCLC }

// CreateBuffer allocates a device buffer. The kernel only writes to it.
func (a *Adapter) CreateBuffer(size int, _ gpucore.BufferUsage) (gpucore.BufferID, error) {
	if size <= 0 {
		return gpucore.InvalidID, fmt.Errorf("opencl: invalid buffer size %d", size)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return gpucore.InvalidID, ErrClosed
	}
	mem, err := a.ctx.CreateEmptyBuffer(cl.MemWriteOnly, size)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("opencl: create buffer: %w", err)
	}
	id := gpucore.BufferID(a.newID())
	a.buffers[id] = &memObject{mem: mem, size: size}
	return id, nil
}

// DestroyBuffer releases a device buffer.
func (a *Adapter) DestroyBuffer(id gpucore.BufferID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if b, ok := a.buffers[id]; ok {
		b.mem.Release()
		delete(a.buffers, id)
	}
}

// ReadBuffer performs a blocking read of the buffer into dst.
func (a *Adapter) ReadBuffer(id gpucore.BufferID, dst []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pending {
		return ErrNotSynchronized
	}
	b, ok := a.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrUnknownResource, id)
	}
	if len(dst) > b.size {
		return fmt.Errorf("opencl: read of %d bytes from %d-byte buffer", len(dst), b.size)
	}
	if len(dst) == 0 {
		return nil
	}
	ev, err := a.queue.EnqueueReadBuffer(b.mem, true, 0, len(dst), unsafe.Pointer(&dst[0]), nil)
	if err != nil {
		return fmt.Errorf("opencl: read buffer: %w", err)
	}
	if ev != nil {
		ev.Release()
	}
	return nil
}

// CreateProgram builds OpenCL C for the adapter's device. A failed build
// returns the compiler log in the compile error.
func (a *Adapter) CreateProgram(src gpucore.Source) (gpucore.ProgramID, error) {
	if src.Lang != gpucore.LanguageOpenCLC {
		return gpucore.InvalidID, &gpucore.CompileError{
			Source: src.Name,
			Log:    fmt.Sprintf("opencl backend compiles OpenCL C only, got %s", src.Lang),
		}
	}
	if strings.TrimSpace(src.Text) == "" {
		return gpucore.InvalidID, &gpucore.CompileError{Source: src.Name, Log: "empty kernel source"}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return gpucore.InvalidID, ErrClosed
	}
	prog, err := a.ctx.CreateProgramWithSource([]string{src.Text})
	if err != nil {
		return gpucore.InvalidID, gpucore.NewCompileError(src, "", err)
	}
	if err := prog.BuildProgram([]*cl.Device{a.device}, ""); err != nil {
		prog.Release()
		var buildErr cl.BuildError
		if errors.As(err, &buildErr) {
			return gpucore.InvalidID, &gpucore.CompileError{Source: src.Name, Log: string(buildErr), Err: err}
		}
		return gpucore.InvalidID, gpucore.NewCompileError(src, "", err)
	}
	id := gpucore.ProgramID(a.newID())
	a.programs[id] = &program{src: src, prog: prog}
	return id, nil
}

// DestroyProgram releases a program.
func (a *Adapter) DestroyProgram(id gpucore.ProgramID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.programs[id]; ok {
		p.prog.Release()
		delete(a.programs, id)
	}
}

// CreateKernel looks up entry in a built program.
func (a *Adapter) CreateKernel(prog gpucore.ProgramID, entry string) (gpucore.KernelID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.programs[prog]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: program %d", ErrUnknownResource, prog)
	}
	k, err := p.prog.CreateKernel(entry)
	if err != nil {
		return gpucore.InvalidID, gpucore.NewCompileError(p.src, entry, err)
	}
	id := gpucore.KernelID(a.newID())
	a.kernels[id] = &boundKernel{program: prog, entry: entry, k: k}
	return id, nil
}

// DestroyKernel releases a kernel.
func (a *Adapter) DestroyKernel(id gpucore.KernelID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if bk, ok := a.kernels[id]; ok {
		bk.k.Release()
		delete(a.kernels, id)
	}
}

// SetKernelArgs sets argument 0 to the output buffer and argument 1 to the
// iteration bound, followed by the image extent and viewport.
func (a *Adapter) SetKernelArgs(k gpucore.KernelID, args gpucore.KernelArgs) error {
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
		return fmt.Errorf("opencl: invalid kernel arguments %+v", args)
	}
	if need := int(args.Width) * int(args.Height) * 4; out.size < need {
		return fmt.Errorf("opencl: output buffer holds %d bytes, kernel writes %d", out.size, need)
	}

	v := kernel.NewViewport(int(args.Width), int(args.Height))
	if err := bk.k.SetArgs(
		out.mem,
		int32(args.MaxIteration),
		int32(args.Width),
		int32(args.Height),
		v.MinRe,
		v.MaxIm,
		v.Scale,
	); err != nil {
		return fmt.Errorf("opencl: set kernel arguments: %w", err)
	}
	bk.bound = true
	return nil
}

// Dispatch enqueues the kernel over a two-dimensional NDRange.
func (a *Adapter) Dispatch(k gpucore.KernelID, space partition.Space) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	bk, ok := a.kernels[k]
	if !ok {
		return fmt.Errorf("%w: kernel %d", ErrUnknownResource, k)
	}
	if !bk.bound {
		return ErrArgsNotBound
	}
	global := []int{space.Global.X, space.Global.Y}
	local := []int{space.Local.X, space.Local.Y}
	ev, err := a.queue.EnqueueNDRangeKernel(bk.k, nil, global, local, nil)
	if err != nil {
		return fmt.Errorf("opencl: enqueue kernel: %w", err)
	}
	if ev != nil {
		ev.Release()
	}
	a.pending = true

	backend.Logger().Debug("opencl: dispatch enqueued",
		"global", space.Global.String(), "local", space.Local.String())
	return nil
}

// Finish blocks until the queue is drained.
func (a *Adapter) Finish() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.queue.Finish(); err != nil {
		return fmt.Errorf("opencl: finish: %w", err)
	}
	a.pending = false
	return nil
}

// Close drains the queue and releases every remaining object, then the
// queue and context.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true

	if err := a.queue.Finish(); err != nil {
		backend.Logger().Warn("opencl: finish on close", "err", err)
	}
	leaked := len(a.buffers) + len(a.programs) + len(a.kernels)
	for id, bk := range a.kernels {
		bk.k.Release()
		delete(a.kernels, id)
	}
	for id, p := range a.programs {
		p.prog.Release()
		delete(a.programs, id)
	}
	for id, b := range a.buffers {
		b.mem.Release()
		delete(a.buffers, id)
	}
	if leaked > 0 {
		backend.Logger().Warn("opencl: adapter closed with live resources", "count", leaked)
	}
	a.queue.Release()
	a.ctx.Release()
}
