// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fractal

import (
	"fmt"
	"log/slog"
)

// releaser is a scope stack of release functions. Acquisitions push their
// release as they succeed; release runs them in reverse order.
type releaser struct {
	log   *slog.Logger
	stack []release
}

type release struct {
	name string
	fn   func()
}

func (r *releaser) push(name string, fn func()) {
	r.stack = append(r.stack, release{name: name, fn: fn})
}

// release runs every pushed function, newest first. A panicking release
// is logged and the remaining releases still run.
func (r *releaser) release() {
	for i := len(r.stack) - 1; i >= 0; i-- {
		rel := r.stack[i]
		func() {
			defer func() {
				if p := recover(); p != nil {
					r.log.Warn("fractal: release failed", "resource", rel.name, "panic", fmt.Sprint(p))
				}
			}()
			rel.fn()
		}()
		r.log.Debug("fractal: released", "resource", rel.name)
	}
	r.stack = nil
}
