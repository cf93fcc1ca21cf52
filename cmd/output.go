package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"tether/internal/config"
	"tether/internal/formatting"
)

// outputFlags are shared by every command that prints a report.
type outputFlags struct {
	configPath string
	debug      bool
	output     string
	noColor    bool
	quiet      bool
}

func (f *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config-path", "", "Configuration directory (default ~/.config/tether)")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVarP(&f.output, "output", "o", "table", "Output format: table, json or yaml")
	cmd.Flags().BoolVar(&f.noColor, "no-color", false, "Disable colored table output")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Hide the progress spinner")
}

// resolvedConfigPath returns --config-path or the default directory.
func (f *outputFlags) resolvedConfigPath() string {
	if f.configPath != "" {
		return f.configPath
	}
	return config.GetDefaultConfigPathOrPanic()
}

func (f *outputFlags) formatter(cmd *cobra.Command) (formatting.Formatter, error) {
	format, err := formatting.ParseFormat(f.output)
	if err != nil {
		return nil, fmt.Errorf("invalid --output: %w", err)
	}
	return formatting.New(cmd.OutOrStdout(), formatting.Options{
		Format: format,
		Color:  !f.noColor,
	}), nil
}

// progress shows a spinner on stderr until the returned func is called. The
// spinner stays hidden when stderr is not a terminal.
func (f *outputFlags) progress(cmd *cobra.Command, suffix string) func() {
	out, ok := cmd.ErrOrStderr().(*os.File)
	if f.quiet || !ok || !isatty.IsTerminal(out.Fd()) {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.Suffix = suffix
	s.Start()
	return s.Stop
}
