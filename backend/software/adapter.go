package software

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gogpu/naga"

	"github.com/gogpu/fractal/backend"
	"github.com/gogpu/fractal/internal/gpucore"
	"github.com/gogpu/fractal/internal/kernel"
	"github.com/gogpu/fractal/internal/parallel"
	"github.com/gogpu/fractal/internal/partition"
)

// live counts resources (adapters, buffers, programs, kernels) that have
// been created and not yet released, across all adapters.
var live atomic.Int64

// LiveResources returns the number of unreleased software resources.
func LiveResources() int64 { return live.Load() }

type program struct {
	src     gpucore.Source
	entries []string
}

type boundKernel struct {
	program   gpucore.ProgramID
	entry     string
	workgroup partition.Shape
	args      *gpucore.KernelArgs
}

// dispatch tracks one in-flight execution.
type dispatch struct {
	done     chan struct{}
	complete bool
}

// Adapter is a software execution context. The command stream is a single
// goroutine per dispatch feeding the worker pool.
type Adapter struct {
	info gpucore.DeviceInfo
	opts options
	pool *parallel.WorkerPool

	mu       sync.RWMutex
	buffers  map[gpucore.BufferID][]byte
	programs map[gpucore.ProgramID]*program
	kernels  map[gpucore.KernelID]*boundKernel
	inFlight *dispatch
	used     int64
	closed   bool

	nextID atomic.Uint64
}

var _ gpucore.ComputeAdapter = (*Adapter)(nil)

func newAdapter(info gpucore.DeviceInfo, opts options) *Adapter {
	live.Add(1)
	return &Adapter{
		info:     info,
		opts:     opts,
		pool:     parallel.NewWorkerPool(opts.workers),
		buffers:  make(map[gpucore.BufferID][]byte),
		programs: make(map[gpucore.ProgramID]*program),
		kernels:  make(map[gpucore.KernelID]*boundKernel),
	}
}

func (a *Adapter) newID() uint64 {
	return a.nextID.Add(1)
}

// Info returns the CPU device description.
func (a *Adapter) Info() gpucore.DeviceInfo { return a.info }

// Language returns WGSL.
func (a *Adapter) Language() gpucore.Language { return gpucore.LanguageWGSL }

// CreateBuffer allocates zeroed host memory standing in for device memory.
func (a *Adapter) CreateBuffer(size int, _ gpucore.BufferUsage) (gpucore.BufferID, error) {
	if size <= 0 {
		return gpucore.InvalidID, fmt.Errorf("software: invalid buffer size %d", size)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return gpucore.InvalidID, ErrClosed
	}
	if limit := a.opts.memoryLimit; limit > 0 && a.used+int64(size) > limit {
		return gpucore.InvalidID, fmt.Errorf("%w: %d bytes requested, %d of %d in use",
			ErrOutOfMemory, size, a.used, limit)
	}

	id := gpucore.BufferID(a.newID())
	a.buffers[id] = make([]byte, size)
	a.used += int64(size)
	live.Add(1)
	return id, nil
}

// DestroyBuffer releases a buffer.
func (a *Adapter) DestroyBuffer(id gpucore.BufferID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if buf, ok := a.buffers[id]; ok {
		a.used -= int64(len(buf))
		delete(a.buffers, id)
		live.Add(-1)
	}
}

// ReadBuffer copies a buffer into dst. It fails while a dispatch is in
// flight; call Finish first.
func (a *Adapter) ReadBuffer(id gpucore.BufferID, dst []byte) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if d := a.inFlight; d != nil && !d.complete {
		return ErrNotSynchronized
	}
	buf, ok := a.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrUnknownResource, id)
	}
	if len(dst) > len(buf) {
		return fmt.Errorf("software: read of %d bytes from %d-byte buffer", len(dst), len(buf))
	}
	copy(dst, buf)
	return nil
}

// CreateProgram compiles WGSL with naga. The compiled module is discarded;
// only its compute entry points are kept.
func (a *Adapter) CreateProgram(src gpucore.Source) (gpucore.ProgramID, error) {
	if src.Lang != gpucore.LanguageWGSL {
		return gpucore.InvalidID, &gpucore.CompileError{
			Source: src.Name,
			Log:    fmt.Sprintf("software backend compiles WGSL only, got %s", src.Lang),
		}
	}
	if strings.TrimSpace(src.Text) == "" {
		return gpucore.InvalidID, &gpucore.CompileError{Source: src.Name, Log: "empty kernel source"}
	}
	if _, err := naga.Compile(src.Text); err != nil {
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
	id := gpucore.ProgramID(a.newID())
	a.programs[id] = &program{src: src, entries: entries}
	live.Add(1)
	return id, nil
}

// DestroyProgram releases a program.
func (a *Adapter) DestroyProgram(id gpucore.ProgramID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.programs[id]; ok {
		delete(a.programs, id)
		live.Add(-1)
	}
}

// CreateKernel resolves entry. The software device executes the reference
// kernel, so the entry point must satisfy the binding contract. Its
// declared workgroup size is the local shape Dispatch accepts.
func (a *Adapter) CreateKernel(prog gpucore.ProgramID, entry string) (gpucore.KernelID, error) {
	a.mu.RLock()
	p, ok := a.programs[prog]
	a.mu.RUnlock()
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
	if err := kernel.CheckSignatureTile(p.src, entry, sig.Tile()); err != nil {
		return gpucore.InvalidID, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.KernelID(a.newID())
	a.kernels[id] = &boundKernel{program: prog, entry: entry, workgroup: sig.Tile()}
	live.Add(1)
	return id, nil
}

// DestroyKernel releases a kernel.
func (a *Adapter) DestroyKernel(id gpucore.KernelID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.kernels[id]; ok {
		delete(a.kernels, id)
		live.Add(-1)
	}
}

// SetKernelArgs binds the output buffer and iteration bound.
func (a *Adapter) SetKernelArgs(k gpucore.KernelID, args gpucore.KernelArgs) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	bk, ok := a.kernels[k]
	if !ok {
		return fmt.Errorf("%w: kernel %d", ErrUnknownResource, k)
	}
	buf, ok := a.buffers[args.Output]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrUnknownResource, args.Output)
	}
	if args.MaxIteration == 0 || args.Width == 0 || args.Height == 0 {
		return fmt.Errorf("software: invalid kernel arguments %+v", args)
	}
	if need := int(args.Width) * int(args.Height) * 4; len(buf) < need {
		return fmt.Errorf("software: output buffer holds %d bytes, kernel writes %d", len(buf), need)
	}
	bound := args
	bk.args = &bound
	return nil
}

// Dispatch starts executing the kernel over space and returns immediately.
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
	if bk.args == nil {
		return ErrArgsNotBound
	}
	if space.Local != bk.workgroup {
		return fmt.Errorf("software: workgroup %v does not match kernel workgroup %v", space.Local, bk.workgroup)
	}
	if space.Global.X%space.Local.X != 0 || space.Global.Y%space.Local.Y != 0 {
		return fmt.Errorf("software: global shape %v is not a multiple of %v", space.Global, space.Local)
	}
	if d := a.inFlight; d != nil && !d.complete {
		return fmt.Errorf("software: previous dispatch not finished")
	}

	args := *bk.args
	if space.Width != int(args.Width) || space.Height != int(args.Height) {
		return fmt.Errorf("software: space covers %dx%d, kernel bound to %dx%d",
			space.Width, space.Height, args.Width, args.Height)
	}
	out := a.buffers[args.Output]
	d := &dispatch{done: make(chan struct{})}
	a.inFlight = d

	backend.Logger().Debug("software: dispatch",
		"global", space.Global.String(), "local", space.Local.String(),
		"workgroups", space.Workgroups().Area(), "padding", space.Padding())

	go func() {
		defer close(d.done)
		run(a.pool, out, args, space)
	}()
	return nil
}

// run executes every invocation of space. Invocations outside the image
// bounds are discarded without touching out.
func run(pool *parallel.WorkerPool, out []byte, args gpucore.KernelArgs, space partition.Space) {
	width, height := int(args.Width), int(args.Height)
	maxIter := int(args.MaxIteration)
	v := kernel.NewViewport(width, height)
	pool.ForEach(space.Workgroups().Area(), func(i int) {
		x0, y0 := space.Origin(i)
		for ly := range space.Local.Y {
			for lx := range space.Local.X {
				x, y := x0+lx, y0+ly
				if !space.InBounds(x, y) {
					continue
				}
				px := kernel.Pixel(v, x, y, maxIter)
				binary.LittleEndian.PutUint32(out[(y*width+x)*4:], px.Pack())
			}
		}
	})
}

// Finish blocks until the in-flight dispatch, if any, has completed.
func (a *Adapter) Finish() error {
	a.mu.RLock()
	d := a.inFlight
	a.mu.RUnlock()
	if d == nil {
		return nil
	}

	<-d.done

	a.mu.Lock()
	d.complete = true
	a.mu.Unlock()
	return nil
}

// Close waits for in-flight work, stops the pool and releases anything the
// caller did not destroy.
func (a *Adapter) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	d := a.inFlight
	a.mu.Unlock()

	if d != nil {
		<-d.done
	}
	a.pool.Close()

	a.mu.Lock()
	leaked := len(a.buffers) + len(a.programs) + len(a.kernels)
	clear(a.buffers)
	clear(a.programs)
	clear(a.kernels)
	a.used = 0
	a.mu.Unlock()

	if leaked > 0 {
		backend.Logger().Warn("software: adapter closed with live resources", "count", leaked)
		live.Add(-int64(leaked))
	}
	live.Add(-1)
}

// Live returns the number of resources currently held by this adapter.
func (a *Adapter) Live() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.buffers) + len(a.programs) + len(a.kernels)
}
