// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package kernel

import (
	"fmt"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"

	"github.com/gogpu/fractal/internal/gpucore"
	"github.com/gogpu/fractal/internal/partition"
)

// Binding slots of the kernel interface.
const (
	BindingOutput = 0
	BindingParams = 1
)

// Signature is the parsed interface of a WGSL compute entry point.
type Signature struct {
	Entry     string
	Workgroup [3]uint32
	Bindings  []Binding

	module *ir.Module
}

// Binding is one resource variable in bind group 0.
type Binding struct {
	Slot   uint32
	Name   string
	Space  ir.AddressSpace
	Access ir.StorageAccessMode
	Type   ir.TypeInner
}

// Inspect parses WGSL source with naga and extracts the signature of entry.
func Inspect(src gpucore.Source, entry string) (*Signature, error) {
	module, err := lower(src)
	if err != nil {
		return nil, err
	}

	var ep *ir.EntryPoint
	for i := range module.EntryPoints {
		if module.EntryPoints[i].Name == entry {
			ep = &module.EntryPoints[i]
			break
		}
	}
	if ep == nil {
		return nil, &gpucore.CompileError{
			Source: src.Name,
			Entry:  entry,
			Log:    fmt.Sprintf("entry point %q not found (have %s)", entry, entryNames(module)),
		}
	}
	if ep.Stage != ir.StageCompute {
		return nil, &gpucore.CompileError{
			Source: src.Name,
			Entry:  entry,
			Log:    fmt.Sprintf("entry point %q is not a compute shader", entry),
		}
	}

	sig := &Signature{Entry: entry, Workgroup: ep.Workgroup}
	for _, gv := range module.GlobalVariables {
		if gv.Binding == nil || gv.Binding.Group != 0 {
			continue
		}
		sig.Bindings = append(sig.Bindings, Binding{
			Slot:   gv.Binding.Binding,
			Name:   gv.Name,
			Space:  gv.Space,
			Access: gv.Access,
			Type:   resolve(module, gv.Type),
		})
	}
	sig.module = module
	return sig, nil
}

// EntryPoints returns the compute entry point names declared in WGSL source.
func EntryPoints(src gpucore.Source) ([]string, error) {
	module, err := lower(src)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, ep := range module.EntryPoints {
		if ep.Stage == ir.StageCompute {
			names = append(names, ep.Name)
		}
	}
	return names, nil
}

// Tile returns the workgroup size as a 2D shape. A Z extent above 1 is
// reported by CheckSignatureTile, not here.
func (s *Signature) Tile() partition.Shape {
	return partition.Shape{X: int(s.Workgroup[0]), Y: int(s.Workgroup[1])}
}

// CheckSignature verifies that entry matches the interface the host binds:
// a 16x16x1 compute workgroup, a read-write storage array of u32 at
// binding 0, and a uniform struct led by a u32 iteration bound at binding 1.
// Mismatches are returned as *gpucore.CompileError.
func CheckSignature(src gpucore.Source, entry string) error {
	return CheckSignatureTile(src, entry, partition.Tile)
}

// CheckSignatureTile is CheckSignature for a workgroup shape other than
// the default tile.
func CheckSignatureTile(src gpucore.Source, entry string, tile partition.Shape) error {
	sig, err := Inspect(src, entry)
	if err != nil {
		return err
	}

	var problems []string
	wg := sig.Workgroup
	if sig.Tile() != tile || wg[2] > 1 {
		problems = append(problems, fmt.Sprintf("workgroup size is (%d, %d, %d), want (%d, %d, 1)",
			wg[0], wg[1], wg[2], tile.X, tile.Y))
	}

	out, ok := sig.binding(BindingOutput)
	switch {
	case !ok:
		problems = append(problems, "binding 0 (output raster) is missing")
	case out.Space != ir.SpaceStorage || out.Access != ir.StorageReadWrite:
		problems = append(problems, fmt.Sprintf("binding 0 (%s) must be var<storage, read_write>", out.Name))
	case !sig.isU32Array(out.Type):
		problems = append(problems, fmt.Sprintf("binding 0 (%s) must be array<u32>", out.Name))
	}

	params, ok := sig.binding(BindingParams)
	switch {
	case !ok:
		problems = append(problems, "binding 1 (iteration bound) is missing")
	case params.Space != ir.SpaceUniform:
		problems = append(problems, fmt.Sprintf("binding 1 (%s) must be var<uniform>", params.Name))
	case !sig.leadsWithU32(params.Type):
		problems = append(problems, fmt.Sprintf("binding 1 (%s) must be a struct whose first member is u32", params.Name))
	}

	if n := len(sig.Bindings); n != 2 {
		problems = append(problems, fmt.Sprintf("bind group 0 declares %d bindings, want 2", n))
	}

	if len(problems) > 0 {
		return &gpucore.CompileError{
			Source: src.Name,
			Entry:  entry,
			Log:    "signature mismatch:\n  " + strings.Join(problems, "\n  "),
		}
	}
	return nil
}

func (s *Signature) binding(slot uint32) (Binding, bool) {
	for _, b := range s.Bindings {
		if b.Slot == slot {
			return b, true
		}
	}
	return Binding{}, false
}

// isU32Array accepts array<u32> directly or wrapped as the last member of
// a struct.
func (s *Signature) isU32Array(t ir.TypeInner) bool {
	switch tt := t.(type) {
	case ir.ArrayType:
		return isU32(resolve(s.module, tt.Base))
	case ir.StructType:
		if len(tt.Members) == 0 {
			return false
		}
		return s.isU32Array(resolve(s.module, tt.Members[len(tt.Members)-1].Type))
	}
	return false
}

func (s *Signature) leadsWithU32(t ir.TypeInner) bool {
	st, ok := t.(ir.StructType)
	if !ok || len(st.Members) == 0 {
		return false
	}
	return isU32(resolve(s.module, st.Members[0].Type))
}

func isU32(t ir.TypeInner) bool {
	sc, ok := t.(ir.ScalarType)
	return ok && sc.Kind == ir.ScalarUint && sc.Width == 4
}

func resolve(m *ir.Module, h ir.TypeHandle) ir.TypeInner {
	if int(h) >= len(m.Types) {
		return nil
	}
	return m.Types[h].Inner
}

func lower(src gpucore.Source) (*ir.Module, error) {
	if src.Lang != gpucore.LanguageWGSL {
		return nil, &gpucore.CompileError{
			Source: src.Name,
			Log:    fmt.Sprintf("cannot inspect %s source", src.Lang),
		}
	}
	if strings.TrimSpace(src.Text) == "" {
		return nil, &gpucore.CompileError{Source: src.Name, Log: "empty kernel source"}
	}
	ast, err := naga.Parse(src.Text)
	if err != nil {
		return nil, gpucore.NewCompileError(src, "", err)
	}
	module, err := naga.LowerWithSource(ast, src.Text)
	if err != nil {
		return nil, gpucore.NewCompileError(src, "", err)
	}
	return module, nil
}

func entryNames(m *ir.Module) string {
	if len(m.EntryPoints) == 0 {
		return "none"
	}
	names := make([]string, len(m.EntryPoints))
	for i, ep := range m.EntryPoints {
		names[i] = fmt.Sprintf("%q", ep.Name)
	}
	return strings.Join(names, ", ")
}
