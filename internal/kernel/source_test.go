package kernel

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/fractal/internal/gpucore"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadSource_Missing(t *testing.T) {
	_, err := LoadSource(filepath.Join(t.TempDir(), "nope.wgsl"))
	if !errors.Is(err, ErrResourceFile) {
		t.Fatalf("err = %v, want ErrResourceFile", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want to wrap os.ErrNotExist", err)
	}
}

func TestLoadSource_Directory(t *testing.T) {
	_, err := LoadSource(t.TempDir())
	if !errors.Is(err, ErrResourceFile) {
		t.Fatalf("err = %v, want ErrResourceFile", err)
	}
}

func TestLoadSource_ExactLength(t *testing.T) {
	path := writeFile(t, "k.wgsl", DefaultWGSL)
	src, err := LoadSource(path)
	if err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	if src.Text != DefaultWGSL {
		t.Errorf("loaded %d bytes, want %d", len(src.Text), len(DefaultWGSL))
	}
	if src.Lang != gpucore.LanguageWGSL {
		t.Errorf("Lang = %v, want WGSL", src.Lang)
	}
	if src.Name != path {
		t.Errorf("Name = %q, want %q", src.Name, path)
	}
}

func TestLoadSource_LargerThanFixedBuffer(t *testing.T) {
	// Sources beyond 10000 bytes must be read completely, not truncated.
	body := DefaultWGSL + "\n// " + strings.Repeat("x", 20000) + "\n"
	src, err := LoadSource(writeFile(t, "big.wgsl", body))
	if err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	if len(src.Text) != len(body) {
		t.Errorf("loaded %d bytes, want %d", len(src.Text), len(body))
	}
}

func TestLoadSource_Empty(t *testing.T) {
	src, err := LoadSource(writeFile(t, "empty.cl", ""))
	if err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	if src.Text != "" || src.Lang != gpucore.LanguageOpenCLC {
		t.Errorf("got %+v", src)
	}
}

func TestLanguageOf(t *testing.T) {
	tests := map[string]gpucore.Language{
		"mandelbrot-kernel.cl": gpucore.LanguageOpenCLC,
		"K.CL":                 gpucore.LanguageOpenCLC,
		"mandelbrot.wgsl":      gpucore.LanguageWGSL,
		"kernel":               gpucore.LanguageWGSL,
	}
	for path, want := range tests {
		if got := LanguageOf(path); got != want {
			t.Errorf("LanguageOf(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestDefault(t *testing.T) {
	if src := Default(gpucore.LanguageWGSL); !strings.Contains(src.Text, "@compute") {
		t.Error("default WGSL source has no compute entry point")
	}
	if src := Default(gpucore.LanguageOpenCLC); !strings.Contains(src.Text, "__kernel void mandelbrot") {
		t.Error("default OpenCL source has no mandelbrot kernel")
	}
}
