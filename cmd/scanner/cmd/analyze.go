package cmd

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"hama-scanner/internal/indicator"
	"hama-scanner/internal/scanner"
	sqlitestore "hama-scanner/internal/store/sqlite"
	"hama-scanner/internal/strategy"
)

var analyzePreset string

var analyzeCmd = &cobra.Command{
	Use:   "analyze SYMBOL",
	Short: "Print the current HAMA snapshot for one symbol",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzePreset, "preset", "", "indicator preset (default from config)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	params := cfg.Params()
	if analyzePreset != "" {
		p, err := indicator.Preset(analyzePreset)
		if err != nil {
			return err
		}
		params = p
	}

	store, err := sqlitestore.Open(cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	symbol, _ := scanner.ParseSymbol(strings.ToUpper(args[0]))
	bars, err := sqlitestore.NewBarStore(store).Fetch(cmd.Context(), symbol, cfg.Monitor.Timeframe, cfg.Monitor.BarLimit)
	if err != nil {
		return err
	}

	ev, err := strategy.Analyze(symbol, bars, params)
	if err != nil {
		return fmt.Errorf("analyze %s (%d bars, need %d): %w", symbol, len(bars), params.RequiredBars(), err)
	}

	out, err := sonic.ConfigStd.MarshalIndent(ev.Snapshot, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	if bar, ok := ev.CrossBar(); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "last cross %s at %s (latest=%v)\n",
			ev.Snapshot.LastCross, bar.Time().Format("2006-01-02 15:04"), ev.CrossAtLatest())
	}
	return nil
}
