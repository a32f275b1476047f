// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"

	"github.com/gogpu/fractal/internal/cache"
	"github.com/gogpu/fractal/internal/gpucore"
)

// spirvCache holds compiled SPIR-V keyed by the full WGSL text.
var spirvCache = cache.New[string, []uint32](cache.DefaultCapacity)

// compileSPIRV compiles WGSL to SPIR-V words, reusing earlier results
// for identical source text.
func compileSPIRV(src gpucore.Source) ([]uint32, error) {
	return spirvCache.GetOrCreate(src.Text, func() ([]uint32, error) {
		spirvBytes, err := naga.Compile(src.Text)
		if err != nil {
			return nil, err
		}
		if len(spirvBytes)%4 != 0 {
			return nil, fmt.Errorf("SPIR-V length %d is not a multiple of 4", len(spirvBytes))
		}

		// SPIR-V is a stream of little-endian 32-bit words.
		words := make([]uint32, len(spirvBytes)/4)
		for i := range words {
			words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
		}
		return words, nil
	})
}
