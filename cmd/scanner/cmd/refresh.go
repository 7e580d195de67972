package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"hama-scanner/internal/scanner"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh [SYMBOL...]",
	Short: "Recompute stale cached snapshots once",
	Long: `Partition symbols into stale and fresh by the refresh TTL, recompute the
stale ones and write them to the snapshot cache.

Symbols default to the configured list.`,
	RunE: runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		cfg.Symbols = args
	}
	ctx := cmd.Context()

	svc, err := scanner.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	rep, err := svc.RefreshOnce(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "stale=%d fresh=%d updated=%d failed=%d\n",
		len(rep.Stale), len(rep.Fresh), len(rep.Updated), len(rep.Failed))

	failed := make([]string, 0, len(rep.Failed))
	for sym := range rep.Failed {
		failed = append(failed, sym)
	}
	sort.Strings(failed)
	for _, sym := range failed {
		fmt.Fprintf(out, "  %s: %v\n", sym, rep.Failed[sym])
	}
	return nil
}
