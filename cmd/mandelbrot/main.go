// Command mandelbrot renders the Mandelbrot set on a compute device and
// writes it as an image file.
//
// Usage:
//
//	mandelbrot [flags]
//
// By default a 3840x2160 image is rendered with 800 iterations using
// mandelbrot-kernel.wgsl from the working directory, or the built-in kernel
// when that file is absent, and saved to mandelbrot.png.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/fractal"
)

const defaultKernel = "mandelbrot-kernel.wgsl"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mandelbrot", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		width      = fs.Int("width", fractal.DefaultWidth, "image width in pixels")
		height     = fs.Int("height", fractal.DefaultHeight, "image height in pixels")
		iterations = fs.Int("iterations", fractal.DefaultMaxIteration, "maximum escape iterations")
		kernelPath = fs.String("kernel", defaultKernel, "kernel source file (.wgsl or .cl)")
		entry      = fs.String("entry", "mandelbrot", "kernel entry point")
		backend    = fs.String("backend", "", "compute backend (native, opencl, software); empty selects automatically")
		device     = fs.Int("device", 0, "device index within the backend")
		output     = fs.String("o", "mandelbrot.png", "output file (.png, .jpg, .bmp, .tiff)")
		scale      = fs.Int("scale", 1, "downsample the saved image by this factor")
		caption    = fs.String("caption", "", "text drawn in the bottom-left corner")
		list       = fs.Bool("list", false, "list compute devices and exit")
		verbose    = fs.Bool("v", false, "log every render step to stderr")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *verbose {
		fractal.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	if *list {
		return listDevices(stdout, *backend)
	}

	opts := []fractal.Option{
		fractal.WithBackend(*backend),
		fractal.WithDevice(*device),
		fractal.WithEntryPoint(*entry),
		fractal.WithEncodeOptions(fractal.Scale(*scale), fractal.Caption(*caption)),
	}
	if path, ok := kernelFile(fs, *kernelPath); ok {
		opts = append(opts, fractal.WithKernelFile(path))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	img := fractal.Image{Width: *width, Height: *height, MaxIteration: *iterations}
	res, err := fractal.Run(ctx, img, *output, opts...)
	if err != nil {
		var ce *fractal.CompileError
		if errors.As(err, &ce) {
			fmt.Fprintf(stderr, "mandelbrot: kernel %s failed to build:\n%s\n", ce.Source, ce.Log)
			return 1
		}
		fmt.Fprintf(stderr, "mandelbrot: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Device: %s [%s]\n", res.Device, res.Backend)
	fmt.Fprintf(stdout, "Global worksize: %d x %d\n", res.Space.Global.X, res.Space.Global.Y)
	fmt.Fprintf(stdout, "Local worksize: %d x %d\n", res.Space.Local.X, res.Space.Local.Y)
	message.NewPrinter(language.English).Fprintf(stdout, "Invocations: %d\n", res.Space.Invocations())
	fmt.Fprintf(stdout, "Saved %s (%d x %d)\n", *output, img.Width, img.Height)
	return 0
}

// kernelFile returns the kernel path to load. The default path is optional
// and falls back to the built-in kernel; a path given on the command line
// must exist.
func kernelFile(fs *flag.FlagSet, path string) (string, bool) {
	explicit := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "kernel" {
			explicit = true
		}
	})
	if explicit {
		return path, true
	}
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

func listDevices(w io.Writer, backend string) int {
	status := 0
	for _, bd := range fractal.ListDevices(backend) {
		fmt.Fprintf(w, "%s:\n", bd.Backend)
		if bd.Err != nil {
			fmt.Fprintf(w, "  error: %v\n", bd.Err)
			status = 1
			continue
		}
		if len(bd.Devices) == 0 {
			fmt.Fprintln(w, "  no devices")
		}
		for _, d := range bd.Devices {
			fmt.Fprintf(w, "  [%d] %s %s %s\n", d.Index, d, d.Vendor, d.Driver)
		}
	}
	return status
}
