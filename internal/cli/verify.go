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
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Show the institution count and a sample without loading",
	Long: `Verify connects with the selected transport and prints the number of rows
in the canonical table and the first --sample-size rows by id.

Examples:
  pgload verify
  pgload verify --transport rest --sample-size 10`,
	Args: maxArgs(0),
	RunE: runVerify,
}

var verifyFlags targetFlagValues

func init() {
	rootCmd.AddCommand(verifyCmd)
	addTargetFlags(verifyCmd, &verifyFlags)
}

func runVerify(cmd *cobra.Command, args []string) error {
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

	cfg, err := buildTargetConfig(resolver{cmd: cmd, env: env, project: project, logger: logger}, &verifyFlags, verbose)
	if err != nil {
		return err
	}

	svc := services.NewImportService(
		loader.Factory{}.New,
		services.OpenCSV,
		ui.NonInteractiveApprover{},
		logger,
	)

	ctx, stop := signalContext(context.Background(), "verification")
	defer stop()

	report, err := svc.Verify(ctx, cfg)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	ui.RenderReport(os.Stdout, report)
	return nil
}
