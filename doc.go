// Package fractal renders the Mandelbrot set with a data-parallel compute
// kernel.
//
// # Overview
//
// A render maps every pixel of a width x height image to one kernel
// invocation. The iteration space is padded up to whole 16x16 workgroups;
// invocations that fall outside the image return without writing. Each
// invocation iterates z = z*z + c in float32 and writes one packed RGBA8
// pixel. The host then reads the buffer back and encodes it.
//
// # Quick Start
//
//	img := fractal.Image{Width: 3840, Height: 2160, MaxIteration: 800}
//	res, err := fractal.Run(ctx, img, "mandelbrot.png")
//	if err != nil {
//	    var ce *fractal.CompileError
//	    if errors.As(err, &ce) {
//	        fmt.Fprintln(os.Stderr, ce.Log)
//	    }
//	    return err
//	}
//	fmt.Println("rendered on", res.Device)
//
// # Backends
//
// Devices are provided by backends registered in package backend:
//
//   - native: the Pure Go wgpu HAL (Vulkan, Metal, DX12, GLES), WGSL kernels
//     compiled to SPIR-V with naga
//   - opencl: an OpenCL ICD, OpenCL C kernels (build tag "opencl")
//   - software: a Go implementation of the kernel on a goroutine pool
//
// Without WithBackend the first backend that reports a device is used, in
// that order. Build with -tags nogpu to leave the native backend out.
//
// # Resource Lifetime
//
// Render acquires a device context, one output buffer, a program and a
// kernel. Every acquisition is released in reverse order on all exit
// paths, including compile failures and cancellation before dispatch.
//
// # Logging
//
// fractal is silent by default. Use SetLogger to receive one debug record
// per render step.
package fractal
