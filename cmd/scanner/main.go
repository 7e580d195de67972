// Command scanner runs the HAMA crossover scanner.
//
//	scanner run --config scanner.yaml
//	scanner refresh BTCUSDT ETHUSDT
//	scanner analyze BTCUSDT
//	scanner import BTCUSDT bars.csv
package main

import (
	"os"

	"hama-scanner/cmd/scanner/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
