package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tether/internal/app"
	"tether/pkg/logging"
)

var (
	bootFlags    outputFlags
	bootWatch    bool
	bootExit     bool
	bootStrict   bool
	bootServices bool
)

// bootCmd runs the bootstrap pipeline and keeps the units up.
var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Install, resolve and start the configured units",
	Long: `Runs the bootstrap pipeline over the units listed in config.yaml:

1. Install: every unit's manifest is read from the repository.
2. Resolve: requirements are matched against identifiers and provided
   capabilities. Units with missing requirements or cyclic wiring fail,
   together with everything that needs them.
3. Activate: resolved units start in dependency order, one start level
   after another. Units with autoStart: false are resolved but only start
   when another unit needs them.

The report is printed once the pipeline completes. tether then keeps the
units up until it receives SIGINT or SIGTERM, and stops them in reverse
dependency order.

With --watch, manifests added to the repository are deployed, changed
manifests are redeployed and removed manifests are undeployed while tether
runs. With --exit, tether stops the units right after printing the report.`,
	Args: cobra.NoArgs,
	RunE: runBoot,
}

func runBoot(cmd *cobra.Command, args []string) error {
	formatter, err := bootFlags.formatter(cmd)
	if err != nil {
		return err
	}

	cfg := app.NewConfig(bootFlags.debug, bootWatch, bootFlags.resolvedConfigPath())
	application, err := app.NewApplication(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Shutdown(context.Background()); err != nil {
			logging.Error("CLI", err, "Shutdown incomplete")
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	stop := bootFlags.progress(cmd, " Starting units...")
	report, bootErr := application.Boot(ctx)
	stop()
	if report != nil {
		if err := formatter.FormatReport(report); err != nil {
			return err
		}
	}
	if bootServices {
		orch := application.Services().Orchestrator
		if err := formatter.FormatStatuses(orch.Statuses(orch.Names())); err != nil {
			return err
		}
	}
	if bootErr != nil {
		return fmt.Errorf("bootstrap failed: %w", bootErr)
	}
	if failed := len(report.Failures()); failed > 0 && bootStrict {
		return &UnitsFailedError{Failed: failed}
	}
	if bootExit {
		return nil
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(bootCmd)

	bootFlags.register(bootCmd)
	bootCmd.Flags().BoolVar(&bootWatch, "watch", false, "Deploy, redeploy and undeploy units as manifests change")
	bootCmd.Flags().BoolVar(&bootExit, "exit", false, "Stop the units and exit after printing the report")
	bootCmd.Flags().BoolVar(&bootStrict, "strict", false, "Exit with code 2 when any unit failed")
	bootCmd.Flags().BoolVar(&bootServices, "services", false, "Also print the state of every registered service")
}
