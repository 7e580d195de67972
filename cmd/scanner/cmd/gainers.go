package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"hama-scanner/internal/model"
	redisstore "hama-scanner/internal/store/redis"
)

var gainersMarket string

var gainersCmd = &cobra.Command{
	Use:   "gainers",
	Short: "Inspect or replace the top-gainers list in Redis",
}

var gainersShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current top gainers",
	RunE:  runGainersShow,
}

var gainersSetCmd = &cobra.Command{
	Use:   "set SYMBOL=PCT...",
	Short: "Replace the top gainers, e.g. SOLUSDT=12.5 DOGEUSDT=9.1",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGainersSet,
}

func init() {
	gainersCmd.PersistentFlags().StringVar(&gainersMarket, "market", string(model.MarketSpot), "market type (spot|futures)")
	gainersCmd.AddCommand(gainersShowCmd)
	gainersCmd.AddCommand(gainersSetCmd)
}

func openGainers(cmd *cobra.Command) (*redisstore.Gainers, func(), error) {
	if cfg.Redis.Addr == "" {
		return nil, nil, errors.New("gainers: redis is not configured (set REDIS_ADDR)")
	}
	rdb, err := redisstore.Connect(cmd.Context(), redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, nil, err
	}
	return redisstore.NewGainers(rdb), func() { rdb.Close() }, nil
}

func runGainersShow(cmd *cobra.Command, args []string) error {
	g, closeFn, err := openGainers(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	list, err := g.TopGainers(cmd.Context(), 100, model.MarketType(gainersMarket))
	if err != nil {
		return err
	}
	for i, x := range list {
		fmt.Fprintf(cmd.OutOrStdout(), "%3d  %-14s %+.2f%%\n", i+1, x.Symbol, x.ChangePct)
	}
	return nil
}

func runGainersSet(cmd *cobra.Command, args []string) error {
	mt := model.MarketType(gainersMarket)
	list, err := parseGainers(args, mt)
	if err != nil {
		return err
	}

	g, closeFn, err := openGainers(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := g.Replace(cmd.Context(), mt, list); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stored %d %s gainers\n", len(list), mt)
	return nil
}

func parseGainers(args []string, mt model.MarketType) ([]model.Gainer, error) {
	list := make([]model.Gainer, 0, len(args))
	for _, a := range args {
		sym, pct, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmt.Errorf("gainers: %q: want SYMBOL=PCT", a)
		}
		v, err := strconv.ParseFloat(pct, 64)
		if err != nil {
			return nil, fmt.Errorf("gainers: %q: %w", a, err)
		}
		list = append(list, model.Gainer{Symbol: strings.ToUpper(sym), MarketType: mt, ChangePct: v})
	}
	return list, nil
}
