package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/poiesic/ragline"
	"github.com/poiesic/ragline/feed"
	"github.com/poiesic/ragline/ingestion"
	"github.com/urfave/cli/v2"
)

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:   "ingest",
		Usage:  "Index documents from a JSON Lines file or a watched directory",
		Action: ingestAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "JSON Lines file of {doc_id, text, metadata, ts} events (- for stdin)",
			},
			&cli.StringFlag{
				Name:  "watch",
				Usage: "Directory to index and keep watching until interrupted",
			},
			&cli.StringSliceFlag{
				Name:  "ext",
				Usage: "File extensions to index from the watched directory",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Number of events embedded and written together",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Concurrent embedding calls per batch",
			},
			&cli.BoolFlag{
				Name:  "dedup",
				Usage: "Skip events whose text is already indexed unchanged",
			},
		},
	}
}

func ingestAction(c *cli.Context) error {
	cfg, err := loadedConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("batch-size") {
		cfg.Ingest.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("concurrency") {
		cfg.Ingest.Concurrency = c.Int("concurrency")
	}
	if c.IsSet("dedup") {
		cfg.Ingest.Deduplicate = c.Bool("dedup")
	}

	file, dir := c.String("file"), c.String("watch")
	if (file == "") == (dir == "") {
		return fmt.Errorf("exactly one of --file or --watch is required")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var source feed.Feed
	if dir != "" {
		source, err = feed.NewDirWatch(dir, feed.WithExtensions(c.StringSlice("ext")...))
		if err != nil {
			return err
		}
	} else {
		var r io.Reader = c.App.Reader
		if file != "-" {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", file, err)
			}
			defer f.Close()
			r = f
		}
		source = feed.NewJSONLines(r)
	}

	svc, err := ragline.NewService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	out := c.App.ErrWriter
	var mu sync.Mutex
	pipeline, err := svc.NewIngestionPipeline(ingestion.WithFailureHandler(
		func(_ context.Context, f ingestion.Failure) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(out, "failed: %s: %v\n", f.DocID, f.Err)
		}))
	if err != nil {
		return fmt.Errorf("failed to create ingestion pipeline: %w", err)
	}
	defer pipeline.Release()

	runErr := pipeline.Run(ctx, source)

	stats := pipeline.Stats()
	fmt.Fprintf(out, "received %d, indexed %d, failed %d, skipped %d, batches %d (%d failed), feed errors %d\n",
		stats.Received, stats.Indexed, stats.Failed, stats.Skipped,
		stats.Batches, stats.FailedBatches, stats.FeedErrors)

	if runErr != nil {
		return fmt.Errorf("ingestion failed: %w", runErr)
	}
	return nil
}
