// Package cmd holds the scanner CLI commands.
package cmd

import (
	"github.com/spf13/cobra"

	"hama-scanner/config"
	"hama-scanner/internal/logger"
)

var (
	cfgFile string
	verbose bool

	// cfg is loaded once for every subcommand.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "scanner",
	Short: "HAMA crossover signal scanner",
	Long: `HAMA crossover signal scanner.

Watches a set of symbols, recomputes the HAMA candle and moving average on a
fixed interval and emits a signal when the candle crosses the MA.

Configuration is read from --config (YAML), then .env and the environment.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(gainersCmd)
}

func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logger.Init("scanner", level)
	return nil
}
