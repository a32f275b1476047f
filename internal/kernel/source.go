package kernel

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/fractal/internal/gpucore"
)

// EntryPoint is the default kernel entry point name.
const EntryPoint = "mandelbrot"

// DefaultWGSL is the built-in WGSL compute kernel.
//
//go:embed shaders/mandelbrot.wgsl
var DefaultWGSL string

// DefaultOpenCL is the built-in OpenCL C kernel.
//
//go:embed shaders/mandelbrot.cl
var DefaultOpenCL string

// ErrResourceFile is returned when kernel source cannot be located, sized
// or read.
var ErrResourceFile = errors.New("fractal: kernel source unreadable")

// Default returns the built-in source for a language.
func Default(lang gpucore.Language) gpucore.Source {
	switch lang {
	case gpucore.LanguageOpenCLC:
		return gpucore.Source{Name: "builtin:mandelbrot.cl", Text: DefaultOpenCL, Lang: lang}
	default:
		return gpucore.Source{Name: "builtin:mandelbrot.wgsl", Text: DefaultWGSL, Lang: gpucore.LanguageWGSL}
	}
}

// LanguageOf infers the source language from a file name.
// Anything that is not ".cl" is treated as WGSL.
func LanguageOf(path string) gpucore.Language {
	if strings.EqualFold(filepath.Ext(path), ".cl") {
		return gpucore.LanguageOpenCLC
	}
	return gpucore.LanguageWGSL
}

// LoadSource reads a kernel source file completely.
//
// The file is sized first and read into a buffer of exactly that length;
// a file that cannot be sized, is not a regular file, or changes length
// while being read is rejected with ErrResourceFile. An empty file is
// returned as-is and fails later at compilation.
func LoadSource(path string) (gpucore.Source, error) {
	path = filepath.Clean(path)

	f, err := os.Open(path)
	if err != nil {
		return gpucore.Source{}, fmt.Errorf("%w: %w", ErrResourceFile, err)
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return gpucore.Source{}, fmt.Errorf("%w: stat %s: %w", ErrResourceFile, path, err)
	}
	if !fi.Mode().IsRegular() {
		return gpucore.Source{}, fmt.Errorf("%w: %s is not a regular file", ErrResourceFile, path)
	}
	size := fi.Size()
	if size < 0 || int64(int(size)) != size {
		return gpucore.Source{}, fmt.Errorf("%w: %s: unusable size %d", ErrResourceFile, path, size)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return gpucore.Source{}, fmt.Errorf("%w: read %s: %w", ErrResourceFile, path, err)
	}
	// Anything past the sized length means the file grew under us.
	var probe [1]byte
	if n, _ := f.Read(probe[:]); n != 0 {
		return gpucore.Source{}, fmt.Errorf("%w: %s changed size while reading", ErrResourceFile, path)
	}

	return gpucore.Source{Name: path, Text: string(buf), Lang: LanguageOf(path)}, nil
}
