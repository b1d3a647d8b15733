package main

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/poiesic/ragline"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/feed"
	"github.com/poiesic/ragline/server"
	"github.com/urfave/cli/v2"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve queries over HTTP and index pushed or watched documents",
		Action: serveAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "Listen address",
			},
			&cli.BoolFlag{
				Name:  "ingest",
				Usage: "Accept documents on POST /ingest",
				Value: true,
			},
			&cli.StringFlag{
				Name:  "watch",
				Usage: "Directory to watch and index",
			},
			&cli.StringSliceFlag{
				Name:  "ext",
				Usage: "File extensions to index from the watched directory",
			},
		},
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := loadedConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("addr") {
		cfg.Server.Addr = c.String("addr")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := ragline.NewService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	orch, err := svc.NewOrchestrator()
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	var feeds []feed.Feed
	var channel *feed.Channel
	if c.Bool("ingest") {
		channel = feed.NewChannel(cfg.Ingest.FeedBuffer)
		feeds = append(feeds, channel)
	}

	// The watcher has its own context; on shutdown the push channel is
	// drained before the pipeline returns.
	watchCtx, stopWatch := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWatch()
	if dir := c.String("watch"); dir != "" {
		watcher, err := feed.NewDirWatch(dir, feed.WithExtensions(c.StringSlice("ext")...))
		if err != nil {
			return err
		}
		feeds = append(feeds, feed.Func(func(context.Context) iter.Seq2[core.IngestEvent, error] {
			return watcher.Events(watchCtx)
		}))
	}

	opts := []server.Option{
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		server.WithTimeouts(cfg.Server.ReadTimeout.Duration, cfg.Server.WriteTimeout.Duration),
	}
	if channel != nil {
		opts = append(opts, server.WithPublisher(channel))
	}
	srv, err := server.New(orch, svc.Index(), opts...)
	if err != nil {
		return err
	}

	pipelineDone := make(chan error, 1)
	if len(feeds) > 0 {
		pipeline, err := svc.NewIngestionPipeline()
		if err != nil {
			return fmt.Errorf("failed to create ingestion pipeline: %w", err)
		}
		defer pipeline.Release()

		// The pipeline ends when its feeds end. A fatal batch failure stops
		// the server.
		go func() {
			err := pipeline.Run(context.WithoutCancel(ctx), feed.Merge(feeds...))
			if err != nil {
				stop()
			}
			pipelineDone <- err
		}()
	} else {
		pipelineDone <- nil
	}

	serveErr := srv.Run(ctx, cfg.Server.Addr)

	if channel != nil {
		channel.Close()
	}
	stopWatch()
	pipelineErr := <-pipelineDone
	if pipelineErr != nil {
		slog.Error("ingestion stopped", "err", pipelineErr)
	}

	if serveErr != nil {
		return serveErr
	}
	return pipelineErr
}
