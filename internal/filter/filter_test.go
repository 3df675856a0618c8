package filter

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rvfilter/internal/disasm"
)

// fakeObjdump mimics objdump's listing for a single word and records the
// bytes it was handed.
type fakeObjdump struct {
	calls [][]byte
	arch  []string
	text  map[uint32]string
	err   error
	raw   string // returned verbatim when set
}

func (f *fakeObjdump) Disassemble(_ context.Context, raw []byte, arch string) (string, error) {
	f.calls = append(f.calls, append([]byte(nil), raw...))
	f.arch = append(f.arch, arch)
	if f.err != nil {
		return "", f.err
	}
	if f.raw != "" {
		return f.raw, nil
	}
	word := uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24
	body, ok := f.text[word]
	if !ok {
		body = ".insn\t4, 0x" + fmt.Sprintf("%08x", word)
	}
	return fmt.Sprintf("\n/tmp/x.bin:     file format binary\n\n\nDisassembly of section .data:\n\n00000000 <.data>:\n   0:\t%08x          \t%s\n", word, body), nil
}

func newTestFilter(d disasm.Disassembler, opts ...Option) (*Filter, *bytes.Buffer, *bytes.Buffer) {
	var out, diag bytes.Buffer
	logger := log.New(&diag)
	opts = append([]Option{WithLogger(logger)}, opts...)
	return New(d, &out, opts...), &out, &diag
}

func TestRunScenarios(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantOut   string
		wantDiag  string
		wantCalls int
	}{
		{
			name:      "nop word",
			input:     "00000013\n",
			wantOut:   "addi x0,x0,0\n",
			wantCalls: 1,
		},
		{
			name:    "single blank line",
			input:   "\n",
			wantOut: "\n",
		},
		{
			name:    "whitespace only line is echoed as is",
			input:   "  \t \n",
			wantOut: "  \t \n",
		},
		{
			name:    "hex prefix passes through",
			input:   "0x00000013\n",
			wantOut: "0x00000013\n",
		},
		{
			name:    "any lowercase x passes through",
			input:   "  next pc 80000004\n",
			wantOut: "  next pc 80000004\n",
		},
		{
			name:      "uppercase X is not a pass-through marker",
			input:     "0X13\n",
			wantDiag:  "'0X13' is not valid hex number",
			wantCalls: 0,
		},
		{
			name:     "invalid hex",
			input:    "zzzzzzzz\n",
			wantDiag: "'zzzzzzzz' is not valid hex number",
		},
		{
			name:     "over 32 bits",
			input:    "ffffffffff\n",
			wantDiag: "'ffffffffff' is over 32bit",
		},
		{
			name:      "surrounding whitespace is trimmed before decoding",
			input:     "   00000013  \r\n",
			wantOut:   "addi x0,x0,0\n",
			wantCalls: 1,
		},
		{
			name:      "last line without terminator",
			input:     "00000013",
			wantOut:   "addi x0,x0,0\n",
			wantCalls: 1,
		},
		{
			name:    "pass-through last line keeps missing terminator",
			input:   "0x13",
			wantOut: "0x13",
		},
		{
			name:      "mixed stream",
			input:     "00000013\n\n0x1\nzz\n00100093\n",
			wantOut:   "addi x0,x0,0\n\n0x1\naddi x1,x0,1\n",
			wantDiag:  "'zz' is not valid hex number",
			wantCalls: 2,
		},
		{
			name:    "empty input",
			input:   "",
			wantOut: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeObjdump{text: map[uint32]string{
				0x00000013: "addi\tx0,x0,0",
				0x00100093: "addi\tx1,x0,1",
			}}
			f, out, diag := newTestFilter(fake)

			require.NoError(t, f.Run(context.Background(), strings.NewReader(tt.input)))

			assert.Equal(t, tt.wantOut, out.String())
			assert.Len(t, fake.calls, tt.wantCalls)
			if tt.wantDiag != "" {
				assert.Contains(t, diag.String(), tt.wantDiag)
			} else {
				assert.Empty(t, diag.String())
			}
		})
	}
}

func TestProcessLinePassesLittleEndianBytes(t *testing.T) {
	fake := &fakeObjdump{}
	f, _, _ := newTestFilter(fake, WithArch("riscv:rv32imac"))

	require.NoError(t, f.ProcessLine(context.Background(), "00000013\n"))
	require.NoError(t, f.ProcessLine(context.Background(), "deadbeef\n"))

	require.Len(t, fake.calls, 2)
	assert.Equal(t, []byte{0x13, 0x00, 0x00, 0x00}, fake.calls[0])
	assert.Equal(t, []byte{0xef, 0xbe, 0xad, 0xde}, fake.calls[1])
	assert.Equal(t, []string{"riscv:rv32imac", "riscv:rv32imac"}, fake.arch)
}

func TestDefaultArch(t *testing.T) {
	fake := &fakeObjdump{}
	f, _, _ := newTestFilter(fake)

	require.NoError(t, f.ProcessLine(context.Background(), "13\n"))
	assert.Equal(t, []string{disasm.DefaultArch}, fake.arch)
}

func TestToolErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantDiag []string
	}{
		{
			name:     "tool not found",
			err:      &disasm.ToolNotFoundError{Command: "riscv32-unknown-elf-objdump"},
			wantDiag: []string{"command 'riscv32-unknown-elf-objdump' not found"},
		},
		{
			name: "tool failed",
			err: &disasm.ToolExecutionError{
				CommandLine: "objdump -D -b binary -m riscv:rv99 /tmp/rvfilter-1.bin",
				Stderr:      "can't use supplied machine riscv:rv99",
				Err:         errors.New("exit status 1"),
			},
			wantDiag: []string{
				"disassembler failed",
				"objdump -D -b binary -m riscv:rv99 /tmp/rvfilter-1.bin",
				"can't use supplied machine riscv:rv99",
			},
		},
		{
			name:     "unexpected",
			err:      errors.New("disk full"),
			wantDiag: []string{"unexpected error", "disk full"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeObjdump{err: tt.err}
			f, out, diag := newTestFilter(fake)

			require.NoError(t, f.Run(context.Background(), strings.NewReader("00000013\n0x5\n")))

			// The failing line produces nothing and the loop carries on.
			assert.Equal(t, "0x5\n", out.String())
			for _, want := range tt.wantDiag {
				assert.Contains(t, diag.String(), want)
			}
			assert.Equal(t, Stats{Passed: 1, Failed: 1}, f.Stats())
		})
	}
}

func TestMalformedOutputEchoesInput(t *testing.T) {
	tests := []struct {
		name   string
		output string
		line   string
	}{
		{name: "too few fields", output: "   0:\t00000013\n", line: "00000013"},
		{name: "no tabs", output: "garbage\n\n\n", line: "garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeObjdump{raw: tt.output}
			f, out, diag := newTestFilter(fake)

			require.NoError(t, f.Run(context.Background(), strings.NewReader("  00000013\n")))

			assert.Equal(t, "  00000013\n", out.String())
			assert.Contains(t, diag.String(), "unexpected output format")
			assert.Contains(t, diag.String(), tt.line)
			assert.Equal(t, 1, f.Stats().Malformed)
		})
	}
}

func TestExtractMnemonic(t *testing.T) {
	tests := []struct {
		name    string
		listing string
		want    string
		wantErr bool
	}{
		{
			name:    "objdump listing",
			listing: "\nx.bin:     file format binary\n\n00000000 <.data>:\n   0:\t00000013          \taddi\tx0,x0,0\n",
			want:    "addi x0,x0,0",
		},
		{
			name:    "last non-empty line wins",
			listing: "   0:\t0001                \tc.nop\n   2:\t0001                \tc.addi\tx0,0\n\n\n",
			want:    "c.addi x0,0",
		},
		{
			name:    "mnemonic without operands",
			listing: "   0:\t00100073          \tebreak\n",
			want:    "ebreak",
		},
		{
			name:    "crlf",
			listing: "   0:\t00000013          \taddi\tx0,x0,0\r\n",
			want:    "addi x0,x0,0",
		},
		{name: "empty", listing: "", wantErr: true},
		{name: "blank lines only", listing: "\n \n\t\n", wantErr: true},
		{name: "two fields", listing: "   0:\t00000013\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractMnemonic(tt.listing)
			if tt.wantErr {
				var me *MalformedOutputError
				require.ErrorAs(t, err, &me)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestColorizerAppliesToDisassemblyOnly(t *testing.T) {
	fake := &fakeObjdump{text: map[uint32]string{0x13: "addi\tx0,x0,0"}}
	f, out, _ := newTestFilter(fake, WithColorizer(func(s string) string { return "<" + s + ">" }))

	require.NoError(t, f.Run(context.Background(), strings.NewReader("13\n0x13\n\n")))
	assert.Equal(t, "<addi x0,x0,0>\n0x13\n\n", out.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriteErrorStopsRun(t *testing.T) {
	f := New(&fakeObjdump{}, failingWriter{}, WithLogger(log.New(&bytes.Buffer{})))

	err := f.Run(context.Background(), strings.NewReader("\n\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestFlushAfterEveryLine(t *testing.T) {
	var sink bytes.Buffer
	w := bufio.NewWriterSize(&sink, 4096)
	f := New(&fakeObjdump{text: map[uint32]string{0x13: "addi\tx0,x0,0"}}, w, WithLogger(log.New(&bytes.Buffer{})))

	require.NoError(t, f.ProcessLine(context.Background(), "13\n"))
	assert.Equal(t, "addi x0,x0,0\n", sink.String())

	require.NoError(t, f.ProcessLine(context.Background(), "\n"))
	assert.Equal(t, "addi x0,x0,0\n\n", sink.String())
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	fake := &fakeObjdump{}
	f, out, _ := newTestFilter(fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.Run(ctx, strings.NewReader("13\n"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
	assert.Empty(t, fake.calls)
}
