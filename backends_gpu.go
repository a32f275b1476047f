//go:build !nogpu

package fractal

// Register the wgpu HAL backend.
import _ "github.com/gogpu/fractal/backend/native"
