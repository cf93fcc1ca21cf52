package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tether/internal/config"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeUnitsFailed indicates that the command ran but units failed.
	ExitCodeUnitsFailed = 2
	// ExitCodeConfig indicates an unreadable or invalid configuration.
	ExitCodeConfig = 3
)

// UnitsFailedError is returned by check, and by boot with --strict, when
// some units did not come up.
type UnitsFailedError struct {
	Failed int
}

func (e *UnitsFailedError) Error() string {
	return fmt.Sprintf("%d units failed", e.Failed)
}

// rootCmd represents the base command for the tether application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tether",
	Short: "Bring interdependent units up in dependency order",
	Long: `tether installs the units listed in its configuration from a directory of
YAML manifests, resolves their requirements against each other and starts
them in dependency order, grouped by start level. Units that fail are
isolated: their dependents do not start, everything else does.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
//
// Commands run under a context that ends on SIGINT or SIGTERM, so a signal
// during boot cancels the pipeline and the units are still torn down.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "tether version %s\n" .Version}}`)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var unitsFailed *UnitsFailedError
	if errors.As(err, &unitsFailed) {
		return ExitCodeUnitsFailed
	}

	var configErr *config.ConfigurationError
	if errors.As(err, &configErr) {
		return ExitCodeConfig
	}

	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
