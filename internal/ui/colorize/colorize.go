package colorize

import (
	"io"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/x/term"
)

// getAssemblyLexer returns an appropriate assembly lexer with fallbacks
func getAssemblyLexer() chroma.Lexer {
	// GNU as syntax first, it matches objdump's RISC-V output
	candidates := []string{"gas", "GAS", "nasm"}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

// getDisasmStyle returns the disassembly style with fallbacks
func getDisasmStyle() *chroma.Style {
	candidates := []string{"disasm-dark", "dracula", "monokai"}
	for _, name := range candidates {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

// getTerminalFormatter returns an appropriate terminal formatter
func getTerminalFormatter() chroma.Formatter {
	candidates := []string{"terminal16m", "terminal256"}
	for _, name := range candidates {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// Disabled reports whether RVFILTER_NO_COLOR is set.
func Disabled() bool {
	return os.Getenv("RVFILTER_NO_COLOR") != ""
}

// Enabled decides whether output written to w is colorized for the given
// mode ("auto", "always" or "never"). Auto colors terminals only.
func Enabled(mode string, w io.Writer) bool {
	if Disabled() {
		return false
	}
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(f.Fd())
}

// Instruction highlights a single "mnemonic operands" line. On any lexer or
// formatter failure the line is returned unchanged.
func Instruction(line string) string {
	if Disabled() {
		return line
	}

	lexer := getAssemblyLexer()
	if lexer == nil {
		return line
	}

	_ = DisasmDark // Force registration

	iterator, err := lexer.Tokenise(nil, line)
	if err != nil {
		return line
	}

	var buf strings.Builder
	if err := getTerminalFormatter().Format(&buf, getDisasmStyle(), iterator); err != nil {
		return line
	}

	// Lexers may append a newline to the input; the line has none of its own
	return strings.ReplaceAll(buf.String(), "\n", "")
}
