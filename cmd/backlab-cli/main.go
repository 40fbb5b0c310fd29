// Command backlab-cli runs a backtest against a local CSV file and
// prints a summary, with no server or API credentials required.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"backlab/internal/backtest"
	"backlab/internal/domain"
	"backlab/internal/provider"
)

func main() {
	var (
		csvPath      = flag.String("csv", "", "path to a CSV file (timestamp,open,high,low,close,volume)")
		symbol       = flag.String("symbol", "CSV", "symbol label for the loaded series")
		strategyFlag = flag.String("strategy", "sma_crossover", "strategy: sma_crossover or macd_crossover")
		intervalFlag = flag.String("interval", "1h", "bar interval: 1m, 5m, 15m, 1h, 1wk")
		capital      = flag.Float64("capital", 10000, "initial capital")
		fast         = flag.Float64("fast", 0, "fast window override (0 = interval default)")
		slow         = flag.Float64("slow", 0, "slow window override (0 = interval default)")
		signal       = flag.Float64("signal", 0, "signal window override, macd only (0 = interval default)")
		showTrades   = flag.Bool("trades", false, "print each completed trade")
	)
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	strategy, err := domain.ParseStrategy(*strategyFlag)
	if err != nil {
		fatal(err)
	}
	interval, err := domain.ParseInterval(*intervalFlag)
	if err != nil {
		fatal(err)
	}

	series, err := provider.LoadCSV(*csvPath, *symbol, interval)
	if err != nil {
		fatal(fmt.Errorf("loading %s: %w", *csvPath, err))
	}

	overrides := map[string]float64{}
	if *fast > 0 {
		overrides["fast_window"] = *fast
	}
	if *slow > 0 {
		overrides["slow_window"] = *slow
	}
	if *signal > 0 {
		overrides["signal_window"] = *signal
	}

	runner := backtest.NewRunner(backtest.DefaultRegistry())
	result, err := runner.Run(strategy, series, *capital, overrides)
	if err != nil {
		fatal(err)
	}

	params, _ := backtest.ResolveParams(strategy, interval, overrides)

	fmt.Printf("%s on %s (%s, %d bars)\n", strategy, series.Symbol, interval, len(series.Bars))
	fmt.Printf("params:        %s\n", formatParams(params.Map(strategy)))
	fmt.Printf("initial:       %.2f\n", *capital)
	fmt.Printf("final equity:  %.2f\n", result.FinalEquity)
	fmt.Printf("return:        %+.2f%%\n", result.TotalReturnPct)
	fmt.Printf("max drawdown:  %.2f%%\n", result.MaxDrawdownPct)
	fmt.Printf("trades:        %d (win rate %.0f%%)\n", result.TradeCount, result.WinRate*100)

	if *showTrades {
		for i, tr := range result.Trades {
			fmt.Printf("  #%d %s -> %s  %.4f @ %.2f -> %.2f  pnl %+.2f\n",
				i+1,
				tr.EntryTimestamp.Format("2006-01-02 15:04"),
				tr.ExitTimestamp.Format("2006-01-02 15:04"),
				tr.Quantity, tr.EntryPrice, tr.ExitPrice, tr.RealizedPnL)
		}
	}
}

func formatParams(m map[string]float64) string {
	parts := make([]string, 0, len(m))
	for _, k := range []string{"fast_window", "slow_window", "signal_window"} {
		if v, ok := m[k]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d", k, int(v)))
		}
	}
	return strings.Join(parts, " ")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "backlab-cli:", err)
	os.Exit(1)
}
