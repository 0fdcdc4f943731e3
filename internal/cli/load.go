package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vvka-141/pgload/internal/loader"
	"github.com/vvka-141/pgload/internal/logging"
	"github.com/vvka-141/pgload/internal/services"
	"github.com/vvka-141/pgload/internal/ui"
	"github.com/vvka-141/pgload/pkg/pgload"
)

var loadCmd = &cobra.Command{
	Use:   "load [csv_path]",
	Short: "Load institutions from a CSV file",
	Long: `Load reads the CSV file and writes every institution to the target database.

Staging transport (default):
  1. Clears the staging table (asks for confirmation unless --force)
  2. Inserts raw rows in batches of 1000
  3. Upserts cleaned rows into the canonical table keyed on clues
  Running the same file twice leaves the canonical table unchanged.

REST transport:
  Cleans rows locally and inserts them in batches of 500. Failed batches
  are reported and skipped. Rows are not deduplicated: running the same
  file twice duplicates them unless the table has a unique constraint.

Rows without name, city or state are never stored. Empty fields and the
missing token (default "nan") are stored as NULL.

Arguments:
  csv_path    CSV file with a header row (default: ` + pgload.DefaultCSVPath + `)

Credentials (environment or .env):
  staging: $VITE_SUPABASE_URL and $SUPABASE_DB_PASSWORD, or --connection
  rest:    $VITE_SUPABASE_URL and $VITE_SUPABASE_ANON_KEY

Examples:
  # Staging load with the default file
  pgload load

  # Unattended staging load
  pgload load data/institutions.csv --force

  # REST load honoring the source active column
  pgload load data/institutions.csv --transport rest --active-policy source`,
	Args: maxArgs(1),
	RunE: runLoad,
}

var loadFlags loadFlagValues

func init() {
	rootCmd.AddCommand(loadCmd)
	addLoadFlags(loadCmd, &loadFlags)
}

func runLoad(cmd *cobra.Command, args []string) error {
	verbose := getVerboseFlag(cmd)

	env, err := loadEnvironment(getEnvFileFlag(cmd))
	if err != nil {
		return err
	}
	project, err := loadProjectConfig(".")
	if err != nil {
		return err
	}

	logger := logging.NewConsoleLogger(verbose)

	cfg, err := buildLoadConfig(resolver{cmd: cmd, env: env, project: project, logger: logger}, &loadFlags, args, verbose)
	if err != nil {
		return err
	}

	svc := services.NewImportService(
		loader.Factory{}.New,
		services.OpenCSV,
		ui.SelectApprover(cfg.Force, isInteractive()),
		logger,
	)

	ctx, cancel := signalContext(context.Background(), "load")
	defer cancel()

	summary, err := svc.Run(ctx, cfg)
	if summary != nil {
		fmt.Fprintln(os.Stdout)
		ui.RenderSummary(os.Stdout, summary)
		if summary.Report != nil {
			fmt.Fprintln(os.Stdout)
			ui.RenderReport(os.Stdout, summary.Report)
		}
	}
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}
	return nil
}
