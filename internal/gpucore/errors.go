package gpucore

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCompile is matched by every *CompileError through errors.Is.
var ErrCompile = errors.New("fractal: kernel compilation failed")

// CompileError reports a kernel that failed to compile, link or resolve.
// Log holds the compiler diagnostics verbatim.
type CompileError struct {
	// Source names the kernel source (usually a file path).
	Source string

	// Entry is the entry point being resolved, if any.
	Entry string

	// Log is the compiler's diagnostic output.
	Log string

	// Err is the underlying error, if any.
	Err error
}

func (e *CompileError) Error() string {
	var b strings.Builder
	b.WriteString(ErrCompile.Error())
	if e.Source != "" {
		fmt.Fprintf(&b, " (%s", e.Source)
		if e.Entry != "" {
			fmt.Fprintf(&b, ", entry %q", e.Entry)
		}
		b.WriteString(")")
	} else if e.Entry != "" {
		fmt.Fprintf(&b, " (entry %q)", e.Entry)
	}
	if log := strings.TrimSpace(e.Log); log != "" {
		b.WriteString(":\n")
		b.WriteString(log)
	}
	return b.String()
}

// Unwrap returns ErrCompile and the underlying cause.
func (e *CompileError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrCompile, e.Err}
	}
	return []error{ErrCompile}
}

// NewCompileError builds a CompileError whose log is err's message.
func NewCompileError(src Source, entry string, err error) *CompileError {
	return &CompileError{Source: src.Name, Entry: entry, Log: err.Error(), Err: err}
}
