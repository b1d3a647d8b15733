// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/ragline/config"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ragline",
		Usage: "Retrieval-augmented question answering over a streaming document index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file",
				EnvVars: []string{"RAGLINE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "provider",
				Usage: "AI provider (openai, gemini, offline)",
			},
			&cli.StringFlag{
				Name:  "index",
				Usage: "Index backend (badger, qdrant)",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to the BadgerDB index directory",
			},
			&cli.StringFlag{
				Name:  "qdrant-url",
				Usage: "Qdrant endpoint",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
			},
			&cli.StringFlag{
				Name:  "generation-model",
				Usage: "Generation model name",
			},
			&cli.IntFlag{
				Name:  "dimensions",
				Usage: "Embedding dimensionality",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			serveCommand(),
			ingestCommand(),
			queryCommand(),
			reembedCommand(),
		},
	}
}

// setup loads the configuration, applies global flags and installs the
// logger.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("provider") {
		cfg.AI.Provider = c.String("provider")
	}
	if c.IsSet("index") {
		cfg.Index.Backend = c.String("index")
	}
	if c.IsSet("db") {
		cfg.Index.Path = c.String("db")
	}
	if c.IsSet("qdrant-url") {
		cfg.Index.Endpoint = c.String("qdrant-url")
	}
	if c.IsSet("embedding-model") {
		cfg.AI.EmbeddingModel = c.String("embedding-model")
	}
	if c.IsSet("generation-model") {
		cfg.AI.GenerationModel = c.String("generation-model")
	}
	if c.IsSet("dimensions") {
		cfg.AI.Dimensions = c.Int("dimensions")
	}

	if err := setupLogger(cfg.Log.Level); err != nil {
		return err
	}

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

// loadedConfig returns the configuration prepared by setup.
func loadedConfig(c *cli.Context) (*config.Config, error) {
	cfg, ok := c.App.Metadata[configKey].(*config.Config)
	if !ok {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

func setupLogger(levelStr string) error {
	levelStr = strings.ToLower(levelStr)

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
