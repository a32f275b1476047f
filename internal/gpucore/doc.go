// Package gpucore defines the compute device abstraction shared by the
// fractal backends.
//
// A [Backend] enumerates the devices of one compute platform and opens a
// [ComputeAdapter] on one of them. The adapter exposes the small set of
// operations the renderer needs: buffer allocation, program compilation,
// kernel argument binding, asynchronous dispatch, a blocking finish and a
// blocking readback.
//
//	       +----------------+
//	       |    fractal     |
//	       | (orchestrator) |
//	       +-------+--------+
//	               |
//	     +---------+---------+-----------+
//	     |                   |           |
//	+----v-----+      +------v---+  +----v-----+
//	|  native  |      | software |  |  opencl  |
//	|  (HAL)   |      | (Go pool)|  | (cl API) |
//	+----------+      +----------+  +----------+
//
// Resources are addressed by opaque IDs. Every Create* call has a matching
// Destroy* call; destroying an ID twice, or destroying [InvalidID], is a no-op.
package gpucore
