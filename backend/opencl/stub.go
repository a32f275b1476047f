//go:build !opencl

package opencl

import (
	"github.com/gogpu/fractal/backend"
	"github.com/gogpu/fractal/internal/gpucore"
)

// init registers a nil-returning factory when the opencl tag is not set.
func init() {
	backend.Register(backend.BackendOpenCL, func() gpucore.Backend {
		return nil
	})
}
