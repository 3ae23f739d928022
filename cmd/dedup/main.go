package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"comps_dedup/internal/adapters/observability"
	"comps_dedup/internal/shared"
)

var (
	cfg     shared.Config
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dedup",
		Short: "Duplicate comparable detection for appraisal datasets",
		Long: `Detects listings that appear more than once among appraisal comparables,
removes them while keeping every subject at its comparable floor, and
writes the cleaned property table.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = shared.Load()
			log.Logger = observability.NewLoggerTo(os.Stderr, cfg.AppEnv)
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every duplicate decision")

	rootCmd.AddCommand(createRunCmd())
	rootCmd.AddCommand(createLoadCmd())
	rootCmd.AddCommand(createCleanDBCmd())
	rootCmd.AddCommand(createShowRunCmd())
	rootCmd.AddCommand(createPingCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
