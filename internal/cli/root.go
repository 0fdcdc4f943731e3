package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vvka-141/pgload/pkg/pgload"
)

var rootCmd = &cobra.Command{
	Use:   "pgload",
	Short: "Bulk-load institution records from CSV into PostgreSQL",
	Long: `pgload reads a CSV file of institutions and loads it into a hosted
PostgreSQL database, either through a staging table and one upsert keyed on
clues (--transport staging) or through the REST API with plain inserts
(--transport rest).

Configuration precedence: flags > environment (.env, --env-file) > pgload.yaml > defaults.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Missing credentials or invalid configuration
  11 - Database connection failed
  12 - Clearing the staging table was not approved
  13 - A batch write failed under the abort policy
  14 - CSV source missing, unreadable or malformed
  130 - Interrupted (signal or --timeout) between batches`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo()
		return nil
	}
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")
	rootCmd.PersistentFlags().String("env-file", "",
		"Additional .env file read after ./.env\n"+
			"Process environment variables still take precedence")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})
}

func usageError(err error) error {
	return fmt.Errorf("%w: %w", pgload.ErrUsage, err)
}

// maxArgs is cobra.MaximumNArgs with errors mapped to the usage exit code.
func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(n)(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}

func getEnvFileFlag(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return ""
	}
	return path
}
