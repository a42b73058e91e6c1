package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/lox/bill-relevance-ranker/internal/commands"
	"github.com/lox/bill-relevance-ranker/internal/mcp"
)

type CLI struct {
	commands.CommonConfig
	commands.EmbeddingConfig
}

func (c *CLI) Run() error {
	logger, err := commands.SetupLogger(c.LogLevel)
	if err != nil {
		return err
	}

	pipeline, err := commands.SetupPipeline(context.Background(), c.CommonConfig, c.EmbeddingConfig, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	defer pipeline.Close()

	s := mcp.New(pipeline, pipeline.DB, commands.DefaultRankingConfig(""), logger)
	return s.Run()
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("bill-mcp-server"),
		kong.Description("MCP server exposing bill ranking and project listing tools over stdio"),
		kong.UsageOnError(),
	)

	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
