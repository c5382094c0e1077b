package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/moznion/go-optional"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	v1 "github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/internal/version"
)

// runAction loads the configuration and data, runs the backtest with a
// progress bar, and prints the performance report.
func runAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	dataPath := cmd.String("data")
	outputFolder := cmd.String("output")

	configContent, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	log, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	ds := datasource.NewDuckDBDataSource(log)
	if err := ds.Initialize(dataPath); err != nil {
		return fmt.Errorf("failed to open data source: %w", err)
	}
	defer ds.Close()

	backtester := v1.NewBacktestEngineV1()
	if err := backtester.Initialize(string(configContent)); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	if err := backtester.SetDataSource(ds); err != nil {
		return err
	}
	if outputFolder != "" {
		if err := backtester.SetResultsFolder(outputFolder); err != nil {
			return err
		}
	}

	var bar *progressbar.ProgressBar
	onRebalance := engine.OnRebalanceCallback(func(current, total int, snapshot types.PortfolioSnapshot) error {
		if bar == nil {
			bar = progressbar.New(total)
		}
		return bar.Set(current)
	})

	result, err := backtester.Run(ctx, optional.Some(onRebalance))
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	fmt.Println()
	printReport(result)

	if outputFolder != "" {
		fmt.Printf("\nResults written to %s\n", outputFolder)
	}

	return nil
}

// schemaAction prints the JSON schema of the configuration format.
func schemaAction(ctx context.Context, cmd *cli.Command) error {
	schema, err := v1.NewBacktestEngineV1().GetConfigSchema()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func printReport(result *types.BacktestResult) {
	report := result.Report

	summary := tablewriter.NewWriter(os.Stdout)
	summary.Header("Metric", "Value")
	rows := [][]string{
		{"Initial Capital", formatNum(result.InitialCapital)},
		{"Final Value", formatNum(result.FinalValue)},
		{"Total Return", formatPct(report.TotalReturn)},
		{"Annualized Return", formatPct(report.AnnualizedReturn)},
		{"Volatility", formatPct(report.Volatility)},
		{"Sharpe Ratio", formatNum(report.SharpeRatio)},
		{"Sortino Ratio", formatNum(report.SortinoRatio)},
		{"Calmar Ratio", formatNum(report.CalmarRatio)},
		{"Max Drawdown", formatPct(report.MaxDrawdown)},
		{"Win Rate", formatPct(report.WinRate)},
		{"Trade Win Rate", formatPct(report.TradeWinRate)},
		{"Profit Factor", formatNum(report.ProfitFactor)},
		{"Round Trips", strconv.Itoa(report.RoundTrips)},
		{"Transactions", strconv.Itoa(report.TotalTrades)},
	}
	if report.BenchmarkReturn != nil {
		rows = append(rows,
			[]string{"Benchmark Return", formatPct(*report.BenchmarkReturn)},
			[]string{"Excess Return", formatPct(*report.ExcessReturn)})
	}
	for _, row := range rows {
		summary.Append(row[0], row[1])
	}
	summary.Render()

	if len(report.TopWinners) > 0 {
		fmt.Println("\nTop Winners")
		printSymbolTable(report.TopWinners)
	}
	if len(report.TopLosers) > 0 {
		fmt.Println("\nTop Losers")
		printSymbolTable(report.TopLosers)
	}
}

func printSymbolTable(performances []types.SymbolPerformance) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Symbol", "Return", "PnL", "Trades", "Win Rate")
	for _, p := range performances {
		table.Append(
			p.Symbol,
			formatPct(p.TotalReturn),
			formatNum(p.TotalPnL),
			strconv.Itoa(p.Trades),
			formatPct(p.WinRate),
		)
	}
	table.Render()
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "%"
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func main() {
	cmd := &cli.Command{
		Name:    "backtest",
		Usage:   "Run fundamentals-driven portfolio backtests",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run a backtest from a strategy configuration",
				Action: runAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "Path to the strategy configuration YAML",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "Path to a DuckDB database or a folder with prices/fundamentals files",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Folder for result.yaml and transactions.parquet",
					},
				},
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the configuration format",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
