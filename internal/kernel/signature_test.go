package kernel

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/fractal/internal/gpucore"
	"github.com/gogpu/fractal/internal/partition"
)

func wgsl(text string) gpucore.Source {
	return gpucore.Source{Name: "test.wgsl", Text: text, Lang: gpucore.LanguageWGSL}
}

func TestCheckSignature_Default(t *testing.T) {
	if err := CheckSignature(Default(gpucore.LanguageWGSL), EntryPoint); err != nil {
		t.Fatalf("default kernel rejected: %v", err)
	}
}

func TestInspect_Default(t *testing.T) {
	sig, err := Inspect(Default(gpucore.LanguageWGSL), EntryPoint)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if sig.Workgroup != [3]uint32{16, 16, 1} {
		t.Errorf("Workgroup = %v", sig.Workgroup)
	}
	if len(sig.Bindings) != 2 {
		t.Fatalf("Bindings = %d, want 2", len(sig.Bindings))
	}
}

func TestEntryPoints(t *testing.T) {
	names, err := EntryPoints(Default(gpucore.LanguageWGSL))
	if err != nil {
		t.Fatalf("EntryPoints: %v", err)
	}
	if len(names) != 1 || names[0] != EntryPoint {
		t.Errorf("EntryPoints = %v, want [%s]", names, EntryPoint)
	}
}

func TestCheckSignature_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		entry   string
		wantLog string
	}{
		{
			name:    "unknown entry",
			src:     DefaultWGSL,
			entry:   "julia",
			wantLog: `entry point "julia" not found`,
		},
		{
			name:    "wrong workgroup",
			src:     strings.Replace(DefaultWGSL, "@workgroup_size(16, 16, 1)", "@workgroup_size(8, 8, 1)", 1),
			entry:   EntryPoint,
			wantLog: "workgroup size is (8, 8, 1)",
		},
		{
			name:    "read-only output",
			src:     strings.Replace(DefaultWGSL, "var<storage, read_write> image", "var<storage, read> image", 1),
			entry:   EntryPoint,
			wantLog: "must be var<storage, read_write>",
		},
		{
			name: "swapped bindings",
			src: strings.NewReplacer(
				"@group(0) @binding(0) var<storage", "@group(0) @binding(1) var<storage",
				"@group(0) @binding(1) var<uniform>", "@group(0) @binding(0) var<uniform>",
			).Replace(DefaultWGSL),
			entry:   EntryPoint,
			wantLog: "binding 0",
		},
		{
			name:    "empty",
			src:     "   \n",
			entry:   EntryPoint,
			wantLog: "empty kernel source",
		},
		{
			name:    "malformed",
			src:     "fn mandelbrot( {",
			entry:   EntryPoint,
			wantLog: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSignature(wgsl(tt.src), tt.entry)
			var ce *gpucore.CompileError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want *CompileError", err)
			}
			if !errors.Is(err, gpucore.ErrCompile) {
				t.Errorf("err does not match ErrCompile")
			}
			if ce.Log == "" {
				t.Error("CompileError.Log is empty")
			}
			if tt.wantLog != "" && !strings.Contains(ce.Log, tt.wantLog) {
				t.Errorf("Log = %q, want it to contain %q", ce.Log, tt.wantLog)
			}
		})
	}
}

func TestCheckSignature_OpenCLSource(t *testing.T) {
	err := CheckSignature(Default(gpucore.LanguageOpenCLC), EntryPoint)
	if !errors.Is(err, gpucore.ErrCompile) {
		t.Fatalf("err = %v, want ErrCompile", err)
	}
}

func TestCheckSignatureTile(t *testing.T) {
	small := wgsl(strings.Replace(DefaultWGSL, "@workgroup_size(16, 16, 1)", "@workgroup_size(8, 8, 1)", 1))
	if err := CheckSignatureTile(small, EntryPoint, partition.Shape{X: 8, Y: 8}); err != nil {
		t.Errorf("8x8 kernel rejected for an 8x8 tile: %v", err)
	}

	err := CheckSignatureTile(Default(gpucore.LanguageWGSL), EntryPoint, partition.Shape{X: 32, Y: 32})
	var ce *gpucore.CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *gpucore.CompileError", err)
	}
	if !strings.Contains(ce.Log, "want (32, 32, 1)") {
		t.Errorf("log = %q", ce.Log)
	}
}
