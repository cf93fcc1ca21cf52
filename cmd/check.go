package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tether/internal/app"
)

var checkFlags outputFlags

// checkCmd validates the configuration and the repository without starting
// anything.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Install and resolve the configured units without starting them",
	Long: `Loads config.yaml, reads every configured unit's manifest and resolves
their requirements, then prints which units would be started and why the
others would not. Nothing is started.

Exits with code 2 when any unit fails to install or resolve, and with
code 3 when the configuration itself is invalid.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	formatter, err := checkFlags.formatter(cmd)
	if err != nil {
		return err
	}

	application, err := app.NewApplication(app.NewConfig(checkFlags.debug, false, checkFlags.resolvedConfigPath()))
	if err != nil {
		return err
	}
	defer func() { _ = application.Shutdown(context.Background()) }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stop := checkFlags.progress(cmd, " Checking units...")
	report, checkErr := application.Check(ctx)
	stop()
	if err := formatter.FormatReport(report); err != nil {
		return err
	}
	if checkErr != nil {
		return fmt.Errorf("check failed: %w", checkErr)
	}
	if failed := len(report.Failures()); failed > 0 {
		return &UnitsFailedError{Failed: failed}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkFlags.register(checkCmd)
}
