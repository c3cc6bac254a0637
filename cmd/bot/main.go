package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"conviction-trading-bot/internal/conviction"
	"conviction-trading-bot/internal/eod"
	"conviction-trading-bot/internal/interfaces"
	"conviction-trading-bot/internal/logger"
	"conviction-trading-bot/internal/portfolio"
	"conviction-trading-bot/internal/store"

	"github.com/robfig/cron/v3"
)

const usage = `usage: bot <command> [args]

commands:
  cycle        run one full decision cycle and exit
  run          run continuously on the configured cron schedule
  scan         score the universe and print the ranking
  exits        evaluate and execute exit rules once
  portfolio    print the current account snapshot
  conviction   manage conviction positions:
                 conviction set -symbol SYM -thesis T -catalyst C -deadline YYYY-MM-DD
                                -entry N -maxpain N [-target N] [-dollars N]
                 conviction list
                 conviction close -symbol SYM [-reason R]
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := initializeSystem(); err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	defer shutdownSystem()

	cfg, err := loadConfig(ctx)
	if err != nil {
		os.Exit(1)
	}

	compressOldLogs(ctx)

	sys, err := buildSystem(ctx, cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to build trading system", err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "cycle":
		err = runCycle(ctx, sys)
	case "run":
		err = runLoop(ctx, cancel, cfg, sys)
	case "scan":
		err = runScan(ctx, sys.Engine)
	case "exits":
		err = runExits(ctx, sys.Engine)
	case "portfolio":
		err = runPortfolio(ctx, sys.Broker)
	case "conviction":
		err = runConviction(ctx, sys.Convictions, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.ErrorWithErr(ctx, "Command failed", err, "command", os.Args[1])
		os.Exit(1)
	}
}

func runCycle(ctx context.Context, sys *System) error {
	res, err := sys.Engine.Cycle(ctx)
	if err != nil {
		return err
	}
	return printJSON(res)
}

// runLoop schedules cycles on the configured cron expression and checks for
// the end-of-day summary every minute. Blocks until SIGINT/SIGTERM.
func runLoop(ctx context.Context, cancel context.CancelFunc, cfg *store.Config, sys *System) error {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	c := cron.New()
	_, err := c.AddFunc(cfg.CycleCron, func() {
		if _, err := sys.Engine.Cycle(ctx); err != nil {
			logger.ErrorWithErr(ctx, "Scheduled cycle failed", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cycle_cron %q: %w", cfg.CycleCron, err)
	}
	c.Start()
	defer c.Stop()

	eodTick := time.NewTicker(60 * time.Second)
	defer eodTick.Stop()

	logger.Info(ctx, "Bot started", "schedule", cfg.CycleCron, "mode", cfg.Mode)
	for {
		select {
		case <-eodTick.C:
			if ok, _ := eod.ShouldRunNow(); ok {
				runEndOfDay(ctx, sys.Broker)
			}
		case <-sigc:
			logger.Info(ctx, "Shutting down")
			runEndOfDay(ctx, sys.Broker)
			cancel()
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// runEndOfDay writes the trade summary CSV and appends today's equity row to
// the performance history.
func runEndOfDay(ctx context.Context, brk interfaces.Broker) {
	if p, err := eod.SummarizeToday(); err == nil && p != "" {
		logger.Info(ctx, "EOD CSV written", "path", p)
	}
	snap, err := portfolio.Build(ctx, brk)
	if err != nil {
		logger.Warn(ctx, "Skipping performance snapshot", "error", err)
		return
	}
	if err := eod.AppendPerformanceSnapshot(snap.Equity, snap.Cash, snap.Invested, snap.Heat); err != nil {
		logger.Warn(ctx, "Failed to append performance snapshot", "error", err)
	}
}

func runScan(ctx context.Context, eng interfaces.Engine) error {
	scores, err := eng.Scan(ctx)
	if err != nil {
		return err
	}
	for _, s := range scores {
		fmt.Printf("%-6s %6.1f  %-12s $%.2f\n", s.Symbol, s.Score, s.Action, s.Price)
	}
	return nil
}

func runExits(ctx context.Context, eng interfaces.Engine) error {
	exits, err := eng.ScanExits(ctx)
	if err != nil {
		return err
	}
	if len(exits) == 0 {
		fmt.Println("no exits triggered")
		return nil
	}
	for _, e := range exits {
		fmt.Println(e)
	}
	return nil
}

func runPortfolio(ctx context.Context, brk interfaces.Broker) error {
	snap, err := portfolio.Build(ctx, brk)
	if err != nil {
		return err
	}
	return printJSON(snap)
}

func runConviction(ctx context.Context, cm *conviction.Manager, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("conviction subcommand required: set | list | close")
	}

	switch args[0] {
	case "set":
		fs := flag.NewFlagSet("conviction set", flag.ExitOnError)
		symbol := fs.String("symbol", "", "ticker symbol")
		thesis := fs.String("thesis", "", "why this position exists")
		catalyst := fs.String("catalyst", "", "the expected catalyst")
		deadline := fs.String("deadline", "", "catalyst deadline (YYYY-MM-DD)")
		entry := fs.Float64("entry", 0, "entry price")
		maxPain := fs.Float64("maxpain", 0, "hard exit floor price")
		target := fs.Float64("target", 0, "target price")
		dollars := fs.Float64("dollars", 0, "original position size in dollars")
		_ = fs.Parse(args[1:])

		dl, err := time.Parse("2006-01-02", *deadline)
		if err != nil {
			return fmt.Errorf("invalid -deadline: %w", err)
		}

		rec, err := cm.Set(ctx, conviction.SetParams{
			Symbol:           *symbol,
			Thesis:           *thesis,
			Catalyst:         *catalyst,
			CatalystDeadline: dl.Add(23 * time.Hour), // end of that trading day
			EntryPrice:       *entry,
			MaxPainPrice:     *maxPain,
			TargetPrice:      *target,
			Dollars:          *dollars,
		})
		if err != nil {
			return err
		}
		return printJSON(rec)

	case "list":
		for _, r := range cm.List() {
			fmt.Printf("%-6s %-12s score %5.1f  deadline %s  %s\n",
				r.Symbol, string(r.Phase), r.CurrentScore,
				r.CatalystDeadline.Format("2006-01-02"), r.Thesis)
		}
		return nil

	case "close":
		fs := flag.NewFlagSet("conviction close", flag.ExitOnError)
		symbol := fs.String("symbol", "", "ticker symbol")
		reason := fs.String("reason", "operator close", "why the conviction is closed")
		_ = fs.Parse(args[1:])
		return cm.Close(ctx, *symbol, *reason)

	default:
		return fmt.Errorf("unknown conviction subcommand %q", args[0])
	}
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
