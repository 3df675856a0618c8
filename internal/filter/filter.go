// Package filter implements the line filter: hex instruction words in,
// disassembled mnemonics out, everything else passed through unchanged.
package filter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"rvfilter/internal/disasm"
)

// Stats counts processed lines by outcome.
type Stats struct {
	Passed       int // blank lines and lines containing 'x'
	Disassembled int
	Failed       int // no output written
	Malformed    int // tool output unusable, original line echoed
}

// Filter reads instruction words line by line and writes their disassembly.
type Filter struct {
	dis      disasm.Disassembler
	arch     string
	out      io.Writer
	logger   *log.Logger
	colorize func(string) string
	stats    Stats
}

// Option configures a Filter.
type Option func(*Filter)

// WithArch sets the architecture passed to the disassembler.
func WithArch(arch string) Option {
	return func(f *Filter) {
		if arch != "" {
			f.arch = arch
		}
	}
}

// WithLogger sets the logger that receives per-line diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(f *Filter) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithColorizer sets a function applied to disassembled text before it is
// written. Pass-through lines are never colorized.
func WithColorizer(fn func(string) string) Option {
	return func(f *Filter) {
		if fn != nil {
			f.colorize = fn
		}
	}
}

// New creates a filter writing to out. If out has a Flush method it is
// called after every line.
func New(dis disasm.Disassembler, out io.Writer, opts ...Option) *Filter {
	f := &Filter{
		dis:      dis,
		arch:     disasm.DefaultArch,
		out:      out,
		logger:   log.Default(),
		colorize: func(s string) string { return s },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Stats returns the counts accumulated so far.
func (f *Filter) Stats() Stats { return f.stats }

// Run processes r until end of input. Per-line failures are logged and do
// not stop the loop; only read and write errors are returned.
func (f *Filter) Run(ctx context.Context, r io.Reader) error {
	defer f.logStats()

	br := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := br.ReadString('\n')
		if line != "" {
			if werr := f.ProcessLine(ctx, line); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
	}
}

// ProcessLine handles one input line, including its terminator if any.
// The returned error is non-nil only when writing the output fails.
func (f *Filter) ProcessLine(ctx context.Context, line string) error {
	token := strings.TrimSpace(line)

	// Blank lines and anything with a lowercase x (0x prefixes, lines that
	// are already disassembled) pass through untouched.
	if token == "" || strings.Contains(token, "x") {
		f.stats.Passed++
		return f.write(line)
	}

	word, err := ParseWord(token)
	if err != nil {
		f.report(err)
		f.stats.Failed++
		return nil
	}

	raw := word.Bytes()
	text, err := f.dis.Disassemble(ctx, raw[:], f.arch)
	if err != nil {
		f.report(err)
		f.stats.Failed++
		return nil
	}

	mnemonic, err := ExtractMnemonic(text)
	if err != nil {
		f.report(err)
		f.stats.Malformed++
		return f.write(line)
	}

	f.stats.Disassembled++
	return f.write(f.colorize(mnemonic) + "\n")
}

// ExtractMnemonic returns the mnemonic and operands of the last instruction
// in an objdump listing: the tab-separated fields after address and
// encoding, joined by single spaces.
func ExtractMnemonic(listing string) (string, error) {
	var last string
	lines := strings.Split(listing, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		l := strings.TrimRight(lines[i], "\r")
		if strings.TrimSpace(l) != "" {
			last = l
			break
		}
	}

	chunks := strings.Split(last, "\t")
	if len(chunks) < 3 {
		return "", &MalformedOutputError{Line: last}
	}
	return strings.Join(chunks[2:], " "), nil
}

func (f *Filter) write(s string) error {
	if _, err := io.WriteString(f.out, s); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if fl, ok := f.out.(interface{ Flush() error }); ok {
		if err := fl.Flush(); err != nil {
			return fmt.Errorf("failed to flush output: %w", err)
		}
	}
	return nil
}

func (f *Filter) report(err error) {
	var (
		parseErr     *ParseError
		rangeErr     *RangeError
		notFoundErr  *disasm.ToolNotFoundError
		execErr      *disasm.ToolExecutionError
		malformedErr *MalformedOutputError
	)

	switch {
	case errors.As(err, &parseErr):
		f.logger.Error(parseErr.Error(), "token", parseErr.Token)
	case errors.As(err, &rangeErr):
		f.logger.Error(rangeErr.Error(), "token", rangeErr.Token)
	case errors.As(err, &notFoundErr):
		f.logger.Error(notFoundErr.Error(), "command", notFoundErr.Command)
	case errors.As(err, &execErr):
		f.logger.Error("disassembler failed",
			"command", execErr.CommandLine,
			"err", execErr.Err,
			"stderr", execErr.Stderr)
	case errors.As(err, &malformedErr):
		f.logger.Error(malformedErr.Error(), "output", malformedErr.Line)
	default:
		f.logger.Error("unexpected error", "err", err)
	}
}

func (f *Filter) logStats() {
	f.logger.Debug("input finished",
		"passed", f.stats.Passed,
		"disassembled", f.stats.Disassembled,
		"failed", f.stats.Failed,
		"malformed", f.stats.Malformed)
}
