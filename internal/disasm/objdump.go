package disasm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultObjdump is the objdump binary shipped with the bare-metal RV32 toolchain.
const DefaultObjdump = "riscv32-unknown-elf-objdump"

// stdinPath is handed to objdump in place of a file name when bytes are piped.
const stdinPath = "/dev/stdin"

// InputMode selects how instruction bytes reach objdump.
type InputMode int

const (
	// InputTempFile writes the bytes to a temporary file that is removed
	// after every invocation. objdump needs a seekable input, so this is
	// the default.
	InputTempFile InputMode = iota
	// InputStdin pipes the bytes from memory through the subprocess stdin.
	// Only tools that read a pipe can use it: GNU objdump stats its input
	// and refuses anything that is not a regular file.
	InputStdin
)

// ReadsPipes reports whether command can take its input in InputStdin
// mode. Any binutils objdump, whatever its target prefix, cannot.
func ReadsPipes(command string) bool {
	return !strings.HasSuffix(filepath.Base(command), "objdump")
}

// Objdump runs GNU objdump in raw-binary mode over a single instruction.
type Objdump struct {
	command string
	mode    InputMode
	tempDir string
}

// ObjdumpOption configures an Objdump backend.
type ObjdumpOption func(*Objdump)

// WithCommand sets the objdump command name or path.
func WithCommand(command string) ObjdumpOption {
	return func(o *Objdump) {
		if command != "" {
			o.command = command
		}
	}
}

// WithInputMode selects temp-file or stdin framing.
func WithInputMode(mode InputMode) ObjdumpOption {
	return func(o *Objdump) {
		o.mode = mode
	}
}

// WithTempDir sets the directory for temporary input files.
func WithTempDir(dir string) ObjdumpOption {
	return func(o *Objdump) {
		o.tempDir = dir
	}
}

// NewObjdump creates an objdump backend.
func NewObjdump(opts ...ObjdumpOption) *Objdump {
	o := &Objdump{command: DefaultObjdump}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Command returns the configured command name.
func (o *Objdump) Command() string { return o.command }

// Args builds the objdump argument list: full disassembly of raw binary
// input for arch, without aliases and with numeric register names.
func (o *Objdump) Args(arch, path string) []string {
	return []string{"-D", "-b", "binary", "-m", arch, "-M", "no-aliases,numeric", path}
}

// Disassemble runs objdump over raw and returns its stdout as text.
func (o *Objdump) Disassemble(ctx context.Context, raw []byte, arch string) (string, error) {
	if arch == "" {
		arch = DefaultArch
	}

	if o.mode == InputStdin {
		return o.run(ctx, arch, stdinPath, bytes.NewReader(raw))
	}

	path, cleanup, err := o.writeTemp(raw)
	if err != nil {
		return "", err
	}
	defer cleanup()

	return o.run(ctx, arch, path, nil)
}

func (o *Objdump) writeTemp(raw []byte) (string, func(), error) {
	f, err := os.CreateTemp(o.tempDir, "rvfilter-*.bin")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := f.Write(raw); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}

func (o *Objdump) run(ctx context.Context, arch, path string, stdin io.Reader) (string, error) {
	cmd := exec.CommandContext(ctx, o.command, o.Args(arch, path)...)
	if stdin != nil {
		cmd.Stdin = stdin
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return "", &ToolNotFoundError{Command: o.command}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &ToolExecutionError{
				CommandLine: strings.Join(cmd.Args, " "),
				Stderr:      toText(stderr.Bytes()),
				Err:         err,
			}
		}
		return "", fmt.Errorf("failed to run %s: %w", o.command, err)
	}

	return toText(stdout.Bytes()), nil
}

// toText decodes tool output, dropping bytes that are not valid UTF-8.
func toText(b []byte) string {
	return strings.ToValidUTF8(string(b), "")
}
