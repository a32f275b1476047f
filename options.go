package fractal

import (
	"github.com/gogpu/fractal/internal/kernel"
	"github.com/gogpu/fractal/internal/partition"
	"github.com/gogpu/fractal/internal/raster"
)

// Option configures Render and Run.
//
// Example:
//
//	// Software backend, custom kernel file
//	res, err := fractal.Render(ctx, img,
//	    fractal.WithBackend("software"),
//	    fractal.WithKernelFile("mandelbrot-kernel.wgsl"))
type Option func(*config)

type config struct {
	backend        string
	device         int
	kernelFile     string
	source         *Source
	entry          string
	checkSignature *bool
	tile           partition.Shape
	encode         []EncodeOption
}

func newConfig(opts []Option) config {
	c := config{
		entry: kernel.EntryPoint,
		tile:  partition.Tile,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithBackend selects a backend by name ("native", "opencl", "software").
// An empty name selects automatically.
func WithBackend(name string) Option {
	return func(c *config) { c.backend = name }
}

// WithDevice selects a device by its index in the backend's device list.
// Index 0, the default, is the most capable GPU.
func WithDevice(index int) Option {
	return func(c *config) { c.device = index }
}

// WithKernelFile loads the kernel from a file. The language follows the
// extension: ".cl" is OpenCL C, anything else is WGSL.
func WithKernelFile(path string) Option {
	return func(c *config) { c.kernelFile = path }
}

// WithKernelSource uses src as the kernel. It takes precedence over
// WithKernelFile.
func WithKernelSource(src Source) Option {
	return func(c *config) { c.source = &src }
}

// WithEntryPoint sets the kernel entry point. The default is "mandelbrot".
func WithEntryPoint(name string) Option {
	return func(c *config) { c.entry = name }
}

// WithSignatureCheck enables or disables checking a WGSL kernel's
// workgroup size and bindings before it is compiled. It is on by default.
func WithSignatureCheck(enabled bool) Option {
	return func(c *config) { c.checkSignature = &enabled }
}

// WithTile sets the workgroup shape. It must match the kernel's declared
// workgroup size; the built-in kernels use 16x16.
func WithTile(tile partition.Shape) Option {
	return func(c *config) { c.tile = tile }
}

// WithEncodeOptions configures the encoder used by Run.
func WithEncodeOptions(opts ...EncodeOption) Option {
	return func(c *config) { c.encode = append(c.encode, opts...) }
}

// EncodeOption configures image encoding.
type EncodeOption = raster.EncodeOption

// Scale downsamples the encoded image by an integer factor.
func Scale(factor int) EncodeOption { return raster.WithScale(factor) }

// Caption draws text in the bottom-left corner of the encoded image.
func Caption(text string) EncodeOption { return raster.WithCaption(text) }

// JPEGQuality sets the quality of JPEG output (1-100).
func JPEGQuality(q int) EncodeOption { return raster.WithQuality(q) }
