package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/poiesic/ragline"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/query"
	"github.com/urfave/cli/v2"
)

func queryCommand() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Answer a question from the indexed documents",
		ArgsUsage: "QUESTION",
		Action:    queryAction,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "top-k",
				Aliases: []string{"k"},
				Usage:   "Number of passages to retrieve (0 uses the configured default)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Overall query timeout",
			},
			&cli.BoolFlag{
				Name:  "explain",
				Usage: "Print retrieval and generation steps to stderr",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the response as JSON",
			},
		},
	}
}

func queryAction(c *cli.Context) error {
	cfg, err := loadedConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("timeout") {
		cfg.Query.Timeout.Duration = c.Duration("timeout")
	}

	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("a question is required")
	}

	svc, err := ragline.NewService(c.Context, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	orch, err := svc.NewOrchestrator()
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	req := core.QueryRequest{Query: question, TopK: c.Int("top-k")}
	var resp *core.QueryResponse
	if c.Bool("explain") {
		resp, err = orch.AnswerWithMonitor(c.Context, req, query.NewExplainMonitor(c.App.ErrWriter))
	} else {
		resp, err = orch.Answer(c.Context, req)
	}
	if err != nil {
		return err
	}

	out := c.App.Writer
	if c.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprintln(out, resp.Answer)
	if len(resp.Sources) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Sources:")
		for i, hit := range resp.Sources {
			fmt.Fprintf(out, "  %d. %s (score %.4f)\n", i+1, hit.DocID, hit.Score)
		}
	}
	return nil
}
