package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/azuric/pairs/internal/logger"
	"github.com/azuric/pairs/internal/scenario"
)

// runAction replays a scenario file and prints the resulting report.
func runAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("scenario")
	verbose := cmd.Bool("verbose")

	log, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	config, err := scenario.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load scenario: %w", err)
	}

	bar := progressbar.NewOptions(len(config.Ticks),
		progressbar.OptionSetDescription(fmt.Sprintf("Replaying %s", path)),
		progressbar.OptionShowCount(),
	)

	report, err := scenario.Run(config, log, func(current, total int) {
		_ = bar.Set(current)
	})
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}

	_ = bar.Finish()
	fmt.Println()

	log.Info("replay finished",
		zap.Int("trades", report.Trades),
		zap.Int("quotes", report.Quotes),
		zap.Int("bars", report.Bars),
		zap.Int("signals", len(report.Signals)),
		zap.Int("orders", len(report.Submitted)),
		zap.Int("completed", report.Stats.Completed),
		zap.Int("failed", report.Stats.Failed),
		zap.Int("cancelled", report.Stats.Cancelled),
	)

	for _, result := range report.Submitted {
		log.Info("spread order submitted",
			zap.Int64("spread_order_id", result.SpreadOrderID),
			zap.String("status", string(result.Status)),
			zap.String("error", result.ErrorMessage),
		)
	}

	if verbose {
		for _, event := range report.Events {
			log.Info("status event",
				zap.Int64("spread_order_id", event.SpreadOrderID),
				zap.String("status", string(event.Status)),
				zap.Time("timestamp", event.Timestamp),
			)
		}

		for _, signal := range report.Signals {
			log.Info("strategy signal",
				zap.String("symbol", signal.Symbol),
				zap.String("kind", string(signal.Kind)),
				zap.Float64("price", signal.Price),
			)
		}
	}

	return nil
}

// schemaAction prints the JSON schema for scenario files.
func schemaAction(ctx context.Context, cmd *cli.Command) error {
	schema, err := scenario.Schema()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	fmt.Println(schema)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "pairs",
		Usage: "Synthetic ratio feed and spread execution toolkit",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Replay a scenario file through the feed and execution stack",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "scenario",
						Aliases:  []string{"s"},
						Usage:    "Path to the scenario yaml file",
						Required: true,
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print every status event and signal",
					},
				},
				Action: runAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema for scenario files",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
