package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/poiesic/ragline"
	"github.com/poiesic/ragline/config"
	"github.com/poiesic/ragline/index"
	"github.com/poiesic/ragline/reembed"
	"github.com/urfave/cli/v2"
)

func reembedCommand() *cli.Command {
	return &cli.Command{
		Name:  "reembed",
		Usage: "Recompute every stored embedding with a new embedding model",
		Description: "Reads every record from the configured index and embeds its text again.\n" +
			"With --target-db the results go to a new Badger index, which allows\n" +
			"changing dimensionality; otherwise records are updated in place.",
		Action: reembedAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "new-embedding-model",
				Usage:    "Embedding model to reembed with",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "new-embedding-host",
				Usage: "Embedding service host URL for the new model",
			},
			&cli.StringFlag{
				Name:  "target-db",
				Usage: "Write to a new BadgerDB index at this path instead of in place",
			},
			&cli.IntFlag{
				Name:  "target-dimensions",
				Usage: "Dimensionality of the new embeddings (requires --target-db)",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Number of records to process in each batch",
				Value: 100,
			},
			&cli.IntFlag{
				Name:  "report-interval",
				Usage: "Report progress every N records",
				Value: 100,
			},
			&cli.IntFlag{
				Name:  "max-retries",
				Usage: "Maximum retry attempts for failed operations",
				Value: 3,
			},
			&cli.DurationFlag{
				Name:  "retry-delay",
				Usage: "Base delay for exponential backoff",
				Value: 1 * time.Second,
			},
		},
	}
}

func reembedAction(c *cli.Context) error {
	cfg, err := loadedConfig(c)
	if err != nil {
		return err
	}

	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}
	targetPath := c.String("target-db")
	if c.IsSet("target-dimensions") && targetPath == "" {
		return fmt.Errorf("target-dimensions requires target-db")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := ragline.NewService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	source, ok := svc.Index().(index.Scanner)
	if !ok {
		return fmt.Errorf("index backend %q cannot enumerate its records", cfg.Index.Backend)
	}

	newAI := cfg.AI
	newAI.EmbeddingModel = c.String("new-embedding-model")
	if c.IsSet("new-embedding-host") {
		newAI.EmbeddingHost = c.String("new-embedding-host")
	}
	if c.IsSet("target-dimensions") {
		newAI.Dimensions = c.Int("target-dimensions")
	}
	provider, err := ragline.NewProvider(ctx, newAI)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	defer provider.Close()

	target := svc.Index()
	if targetPath != "" {
		targetCfg := cfg.Index
		targetCfg.Backend = config.IndexBadger
		targetCfg.Path = targetPath
		targetCfg.InMemory = false
		dst, err := ragline.OpenIndex(targetCfg, newAI.Dimensions, nil)
		if err != nil {
			return fmt.Errorf("failed to open target index: %w", err)
		}
		defer dst.Close()
		target = dst
	}

	reembedder, err := reembed.NewReembedder(source, target, provider.Embedder(), reembedConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Index: %s\n", cfg.Index.Backend)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", newAI.EmbeddingModel)
	if targetPath != "" {
		fmt.Fprintf(c.App.ErrWriter, "Target: %s (%d dimensions)\n", targetPath, newAI.Dimensions)
	}
	fmt.Fprintln(c.App.ErrWriter)

	if err := reembedder.Run(ctx); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}
