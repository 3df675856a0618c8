package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/nxadm/tail"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [file...]",
	Short: "Filter instruction words from files",
	Long: `Run the filter over each named file in turn and write the result to stdout.
A file name of "-" reads stdin. With --follow, a single file is tailed and
new lines are disassembled as they are appended, for example a trace written
by a running simulator.`,
	Example: `
# Disassemble two dumps
rvfilter run boot.hex app.hex

# Follow a simulator trace until interrupted
rvfilter run --follow sim-trace.hex
  `,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		follow, _ := cmd.Flags().GetBool("follow")
		if follow && len(args) != 1 {
			return fmt.Errorf("--follow takes exactly one file, got %d", len(args))
		}

		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.closeInto(&err)

		if follow {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return followFile(ctx, app, args[0])
		}

		for _, name := range args {
			if err := filterFile(cmd, app, name); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolP("follow", "f", false, "Keep reading the file as it grows")
}

func filterFile(cmd *cobra.Command, a *app, name string) error {
	in, err := openInput(cmd, name)
	if err != nil {
		return err
	}
	defer in.Close()

	a.logger.Debug("filtering", "file", name)
	if err := a.filter.Run(cmd.Context(), in); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// followFile feeds lines appended to name into the filter until ctx is
// cancelled.
func followFile(ctx context.Context, a *app, name string) error {
	t, err := tail.TailFile(name, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to tail %s: %w", name, err)
	}
	defer t.Cleanup()

	a.logger.Debug("following", "file", name)
	for {
		select {
		case <-ctx.Done():
			return t.Stop()
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				a.logger.Warn("tail error", "file", name, "err", line.Err)
				continue
			}
			if err := a.filter.ProcessLine(ctx, line.Text+"\n"); err != nil {
				return err
			}
		}
	}
}
