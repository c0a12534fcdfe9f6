// Package llvm lowers pcb IR to LLVM and drives clang to produce artifacts.
package llvm

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"pcb/internal/ir"
	"pcb/internal/trace"
)

// OutputKind selects the artifact Lower writes.
type OutputKind uint8

const (
	OutputObject OutputKind = iota
	OutputAssembly
	OutputLLVM
)

func (k OutputKind) String() string {
	switch k {
	case OutputAssembly:
		return "asm"
	case OutputLLVM:
		return "llvm"
	default:
		return "obj"
	}
}

// ParseOutputKind converts a manifest or flag value.
func ParseOutputKind(s string) (OutputKind, error) {
	switch strings.ToLower(s) {
	case "", "obj", "object":
		return OutputObject, nil
	case "asm", "s":
		return OutputAssembly, nil
	case "llvm", "ll":
		return OutputLLVM, nil
	default:
		return OutputObject, fmt.Errorf("unknown output kind %q (expected obj|asm|llvm)", s)
	}
}

// KindForPath infers the artifact from the output file extension.
func KindForPath(path string) OutputKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ll":
		return OutputLLVM
	case ".s", ".asm":
		return OutputAssembly
	default:
		return OutputObject
	}
}

// Backend implements ir.Backend on top of llir and the system clang.
type Backend struct {
	// Clang is the compiler driver; "clang" when empty.
	Clang string
	// Llc is tried for object and assembly output when clang fails;
	// "llc" when empty.
	Llc string
	// Kind overrides the extension-based choice when non-nil.
	Kind *OutputKind
	// PrintCommands echoes external commands to Stdout.
	PrintCommands bool
	// Stdout receives command echoes; Verbose receives the LLVM module
	// when lowering verbosely. Both default to the process streams.
	Stdout  io.Writer
	Verbose io.Writer
}

var _ ir.Backend = (*Backend)(nil)

// Lower emits c into output. It is normally reached through
// ir.Context.Lower, which validates c first.
func (b *Backend) Lower(ctx context.Context, c *ir.Context, output string, verbose bool) error {
	ctx, span := trace.Start(ctx, trace.ScopePass, "lower")
	span.WithExtra("output", output)

	err := b.lower(ctx, c, output, verbose)
	if err != nil {
		trace.Error(trace.FromContext(ctx), "lower", err, span.ID())
		span.End("failed")
		return err
	}
	span.End("")
	return nil
}

func (b *Backend) lower(ctx context.Context, c *ir.Context, output string, verbose bool) error {
	mod, err := EmitModule(ctx, c)
	if err != nil {
		return err
	}
	text := mod.String()
	if verbose {
		if _, err := io.WriteString(b.verboseOut(), text); err != nil {
			return fmt.Errorf("%w: dump module: %w", ir.ErrBackendFailure, err)
		}
	}

	kind := KindForPath(output)
	if b.Kind != nil {
		kind = *b.Kind
	}
	if kind == OutputLLVM {
		if err := os.WriteFile(output, []byte(text), 0o644); err != nil {
			return fmt.Errorf("%w: %w", ir.ErrBackendFailure, err)
		}
		return nil
	}

	tmpDir, err := os.MkdirTemp("", "pcb-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ir.ErrBackendFailure, err)
	}
	defer os.RemoveAll(tmpDir)

	llPath := filepath.Join(tmpDir, "module.ll")
	if err := os.WriteFile(llPath, []byte(text), 0o600); err != nil {
		return fmt.Errorf("%w: %w", ir.ErrBackendFailure, err)
	}
	if err := b.compile(ctx, kind, optLevel(c.Optimize()), llPath, output); err != nil {
		return fmt.Errorf("%w: %w", ir.ErrBackendFailure, err)
	}
	return nil
}

func optLevel(optimize bool) string {
	if optimize {
		return "-O2"
	}
	return "-O0"
}

func (b *Backend) clang() string {
	if b.Clang != "" {
		return b.Clang
	}
	return "clang"
}

func (b *Backend) stdout() io.Writer {
	if b.Stdout != nil {
		return b.Stdout
	}
	return os.Stdout
}

func (b *Backend) verboseOut() io.Writer {
	if b.Verbose != nil {
		return b.Verbose
	}
	return os.Stderr
}

// compile runs clang on the textual module, falling back to llc for object
// output when clang cannot read IR.
func (b *Backend) compile(ctx context.Context, kind OutputKind, opt, llPath, output string) error {
	mode := "-c"
	if kind == OutputAssembly {
		mode = "-S"
	}
	clangErr := b.run(ctx, b.clang(), mode, opt, "-x", "ir", llPath, "-o", output)
	if clangErr == nil {
		return nil
	}
	llc := b.Llc
	if llc == "" {
		llc = "llc"
	}
	llcPath, err := exec.LookPath(llc)
	if err != nil {
		return clangErr
	}
	filetype := "-filetype=obj"
	if kind == OutputAssembly {
		filetype = "-filetype=asm"
	}
	if err := b.run(ctx, llcPath, filetype, opt, llPath, "-o", output); err != nil {
		return fmt.Errorf("%w; llc: %w", clangErr, err)
	}
	if b.PrintCommands {
		fmt.Fprintln(b.stdout(), "note: clang IR compile failed; fell back to llc")
	}
	return nil
}

func (b *Backend) run(ctx context.Context, name string, args ...string) error {
	if b.PrintCommands {
		fmt.Fprintf(b.stdout(), "%s %s\n", name, strings.Join(args, " "))
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = b.stdout()
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("%s: %w", name, err)
		}
		return fmt.Errorf("%s: %s", name, msg)
	}
	return nil
}

// EnsureClang reports whether the configured clang is on PATH.
func (b *Backend) EnsureClang() error {
	if _, err := exec.LookPath(b.clang()); err != nil {
		return fmt.Errorf("%s not found; install with: sudo apt-get install -y clang llvm", b.clang())
	}
	return nil
}
