package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hama-scanner/internal/scanner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the monitor loop and all sinks",
	Long: `Start the scanner. Runs until SIGINT or SIGTERM.

Serves /metrics, /healthz and (if the gateway is enabled) /ws on the
metrics address.`,
	RunE: runScanner,
}

func runScanner(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, err := scanner.New(ctx, cfg)
	if err != nil {
		return err
	}
	return svc.Run(ctx)
}
