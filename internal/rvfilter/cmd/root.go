package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	charmlog "github.com/charmbracelet/log"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"rvfilter/internal/config"
	"rvfilter/internal/disasm"
	"rvfilter/internal/filter"
	"rvfilter/internal/logging"
	rvlog "rvfilter/internal/rvfilter/log"
	"rvfilter/internal/ui/colorize"
)

func init() {
	rootCmd.PersistentFlags().StringP("config", "C", "", "YAML config file (default $RVFILTER_CONFIG)")
	rootCmd.PersistentFlags().String("objdump", "", "objdump command name or path")
	rootCmd.PersistentFlags().StringP("arch", "m", "", "objdump machine name")
	rootCmd.PersistentFlags().StringP("backend", "b", "", "Disassembler backend: objdump or native")
	rootCmd.PersistentFlags().Bool("stdin-pipe", false, "Pipe bytes to the tool instead of writing a temp file (not for GNU objdump)")
	rootCmd.PersistentFlags().String("color", "", "Colorize mnemonics: auto, always or never")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")

	rootCmd.AddCommand(runCmd)
}

var rootCmd = &cobra.Command{
	Use:   "rvfilter",
	Short: "Disassemble hex RISC-V instruction words line by line",
	Long: `rvfilter reads 32-bit RISC-V instruction words written in hex, one per line,
and replaces each with its disassembly. Blank lines and lines containing a
lowercase 'x' pass through unchanged. Problems with a line are reported on
stderr and the filter moves on to the next one.`,
	Example: `
# Disassemble a trace of instruction words
cat trace.hex | rvfilter

# Use the built-in decoder instead of objdump
rvfilter --backend native < trace.hex

# Use a different toolchain
rvfilter --objdump riscv64-unknown-elf-objdump < trace.hex
  `,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.closeInto(&err)

		return app.filter.Run(cmd.Context(), cmd.InOrStdin())
	},
}

// app is the wiring shared by the root and run commands.
type app struct {
	cfg    config.Config
	out    *bufio.Writer
	logger *logging.LoggerCloser
	filter *filter.Filter
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}

	rvlog.Setup(cmd.ErrOrStderr(), cfg.Debug)

	logger := logging.NewLogger(cmd.ErrOrStderr())
	if cfg.Debug {
		logger.SetLevel(charmlog.DebugLevel)
	}

	stdout := cmd.OutOrStdout()
	out := bufio.NewWriter(stdout)

	opts := []filter.Option{
		filter.WithArch(cfg.Arch),
		filter.WithLogger(logger.Logger),
	}
	if colorize.Enabled(cfg.Color, stdout) {
		opts = append(opts, filter.WithColorizer(colorize.Instruction))
	}

	logger.Debug("starting", "backend", cfg.Backend, "objdump", cfg.Objdump, "arch", cfg.Arch)
	if cfg.Backend == config.BackendObjdump && cfg.StdinPipe && !disasm.ReadsPipes(cfg.Objdump) {
		logger.Warn("objdump only reads regular files; every line will fail with --stdin-pipe", "objdump", cfg.Objdump)
	}

	return &app{
		cfg:    cfg,
		out:    out,
		logger: logger,
		filter: filter.New(cfg.Disassembler(), out, opts...),
	}, nil
}

// Close flushes pending output and releases the log file, if any.
func (a *app) Close() error {
	err := a.out.Flush()
	if cerr := a.logger.Close(); err == nil {
		err = cerr
	}
	return err
}

// closeInto closes a and stores the close error in *errp unless the command
// already failed.
func (a *app) closeInto(errp *error) {
	if err := a.Close(); err != nil && *errp == nil {
		*errp = fmt.Errorf("failed to finish output: %w", err)
	}
}

// resolveConfig layers defaults, config file, environment and explicitly
// set flags.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()

	path, _ := flags.GetString("config")
	if path == "" {
		path = os.Getenv("RVFILTER_CONFIG")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if flags.Changed("objdump") {
		cfg.Objdump, _ = flags.GetString("objdump")
	}
	if flags.Changed("arch") {
		cfg.Arch, _ = flags.GetString("arch")
	}
	if flags.Changed("backend") {
		cfg.Backend, _ = flags.GetString("backend")
	}
	if flags.Changed("stdin-pipe") {
		cfg.StdinPipe, _ = flags.GetBool("stdin-pipe")
	}
	if flags.Changed("color") {
		cfg.Color, _ = flags.GetString("color")
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	if logging.IsDebug() {
		cfg.Debug = true
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Execute runs the root command and returns the process exit status.
func Execute() int {
	// fang renders help and errors for people at a terminal; when stdout is
	// piped, which is the usual case for a filter, cobra runs directly.
	var err error
	if term.IsTerminal(os.Stdout.Fd()) {
		err = fang.Execute(context.Background(), rootCmd)
	} else {
		err = rootCmd.Execute()
	}
	if err != nil {
		return 1
	}
	return 0
}

// openInput opens name for reading; "-" means stdin.
func openInput(cmd *cobra.Command, name string) (io.ReadCloser, error) {
	if name == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}
