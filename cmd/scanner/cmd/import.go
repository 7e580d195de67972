package cmd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hama-scanner/internal/model"
	sqlitestore "hama-scanner/internal/store/sqlite"
)

var importTimeframe string

var importCmd = &cobra.Command{
	Use:   "import SYMBOL FILE.csv",
	Short: "Load OHLCV bars from CSV into the local bar store",
	Long: `Load bars from a CSV file with columns

  timestamp,open,high,low,close,volume

timestamp is Unix milliseconds or RFC3339. A header row is skipped.
Existing bars with the same timestamp are replaced.`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importTimeframe, "timeframe", "", "bar timeframe (default from config)")
}

func runImport(cmd *cobra.Command, args []string) error {
	symbol := strings.ToUpper(strings.TrimSpace(args[0]))
	tf := importTimeframe
	if tf == "" {
		tf = cfg.Monitor.Timeframe
	}

	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()

	bars, err := readBarsCSV(f)
	if err != nil {
		return fmt.Errorf("import %s: %w", args[1], err)
	}

	store, err := sqlitestore.Open(cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := sqlitestore.NewBarStore(store).WriteBars(cmd.Context(), symbol, tf, bars); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d %s bars for %s\n", len(bars), tf, symbol)
	return nil
}

// readBarsCSV parses timestamp,open,high,low,close,volume rows. Rows must be
// in ascending time order.
func readBarsCSV(r io.Reader) ([]model.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 6
	cr.TrimLeadingSpace = true

	var bars []model.Bar
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		ts, err := parseTimestamp(rec[0])
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("line %d: timestamp: %w", line, err)
		}

		var v [5]float64
		for i := range v {
			if v[i], err = strconv.ParseFloat(rec[i+1], 64); err != nil {
				return nil, fmt.Errorf("line %d: column %d: %w", line, i+2, err)
			}
		}
		if n := len(bars); n > 0 && ts < bars[n-1].Timestamp {
			return nil, fmt.Errorf("line %d: timestamp goes backwards", line)
		}
		bars = append(bars, model.Bar{Timestamp: ts, Open: v[0], High: v[1], Low: v[2], Close: v[3], Volume: v[4]})
	}
	return bars, nil
}

func parseTimestamp(s string) (int64, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}
