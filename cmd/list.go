package cmd

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"tether/internal/config"
	"tether/internal/pipeline"
	"tether/internal/repository"
	"tether/pkg/logging"
)

var listFlags outputFlags

// listCmd prints every manifest in the repository, configured or not.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the unit manifests in the repository",
	Long: `Lists every unit manifest in the configured repository directory with its
version, start level, requirements and provided capabilities. Manifests
that cannot be read are reported on stderr and skipped.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	formatter, err := listFlags.formatter(cmd)
	if err != nil {
		return err
	}

	level := logging.LevelWarn
	if listFlags.debug {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, cmd.ErrOrStderr())

	cfg, err := config.LoadConfig(listFlags.resolvedConfigPath())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	units, err := listUnits(ctx, cfg.Repository.Path, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	return formatter.FormatUnits(units)
}

// listUnits installs every manifest in dir. Broken manifests are reported on
// stderr.
func listUnits(ctx context.Context, dir string, stderr io.Writer) ([]*pipeline.Unit, error) {
	repo, err := repository.New(dir)
	if err != nil {
		return nil, err
	}
	ids, err := repo.List()
	if err != nil {
		return nil, err
	}

	var (
		units []*pipeline.Unit
		errs  []error
	)
	for _, id := range ids {
		u, err := repo.Install(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		units = append(units, u)
	}
	if err := errors.Join(errs...); err != nil {
		_, _ = io.WriteString(stderr, err.Error()+"\n")
	}
	return units, nil
}

func init() {
	rootCmd.AddCommand(listCmd)
	listFlags.register(listCmd)
}
