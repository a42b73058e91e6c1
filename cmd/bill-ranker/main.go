package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lox/bill-relevance-ranker/internal/camara"
	"github.com/lox/bill-relevance-ranker/internal/commands"
	"github.com/lox/bill-relevance-ranker/internal/db"
	"github.com/lox/bill-relevance-ranker/internal/export"
	"github.com/lox/bill-relevance-ranker/internal/progress"
)

type CLI struct {
	commands.CommonConfig
	commands.EmbeddingConfig

	Collect    CollectCmd    `cmd:"" help:"Collect propositions from the Chamber of Deputies open data API."`
	Vocabulary VocabularyCmd `cmd:"" help:"Build or inspect the tag vocabulary of the corpus."`
	Rank       RankCmd       `cmd:"" help:"Rank the corpus by relevance to a query and export the selection."`
	Projects   ProjectsCmd   `cmd:"" help:"List or count exported projects."`
}

type CollectCmd struct {
	commands.CollectConfig
	NoProgress bool `help:"Disable progress bar" default:"false"`
}

type VocabularyCmd struct {
	TagBlacklistFile string `help:"Newline separated tag blacklist replacing the built-in list" type:"existingfile"`
	MinTermLength    int    `help:"Vocabulary terms of this many characters or fewer are dropped" default:"3"`
	Rebuild          bool   `help:"Rebuild the vocabulary even if a cached one matches"`
	Show             int    `help:"Print this many vocabulary terms" default:"20"`
	NoProgress       bool   `help:"Disable progress bar" default:"false"`
}

type RankCmd struct {
	commands.RankingConfig
	CSV        string `help:"Write the selection as CSV to this path" type:"path"`
	JSON       string `help:"Write the selection as JSON to this path" type:"path"`
	Insert     bool   `help:"Insert the selection into the projects table" default:"false"`
	NoProgress bool   `help:"Disable progress bar" default:"false"`
}

type ProjectsCmd struct {
	YearFrom  int    `help:"First presentation year"`
	YearTo    int    `help:"Last presentation year"`
	Party     string `help:"Party of the principal author"`
	Situation string `help:"Substring of the processing situation"`
	Keyword   string `help:"Substring of the indexing terms or summary"`
	Limit     int    `help:"Maximum number of projects to list, 0 for no limit" default:"50"`
	CountBy   string `help:"Count projects grouped by this column instead of listing them" enum:",year,party,situation,description,author" default:""`
}

func (c *CollectCmd) Run(cli *CLI) error {
	logger, err := commands.SetupLogger(cli.LogLevel)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 6*time.Hour)
	defer cancel()

	database, err := db.New(ctx, cli.DataDir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", "error", err)
	}
	defer database.Close()

	client, err := camara.NewClient(camara.NewClientConfig().
		WithBaseURL(c.APIURL).
		WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	tracker := progress.New(!c.NoProgress, -1, "Fetching propositions")
	defer tracker.Close()

	opts, err := c.ToCollectOptions(time.Now(), tracker)
	if err != nil {
		return err
	}

	start := time.Now()
	bills, err := camara.NewCollector(client, logger).Collect(ctx, opts)
	if err != nil {
		logger.Fatal("Failed to collect propositions", "error", err)
	}
	if err := database.StoreBills(ctx, bills); err != nil {
		logger.Fatal("Failed to store bills", "error", err)
	}

	total, err := database.CountBills(ctx)
	if err != nil {
		return err
	}
	logger.Info("Collection completed", "collected", len(bills), "corpus_size", total, "duration", time.Since(start))
	fmt.Printf("Collected %d propositions, corpus now holds %d\n", len(bills), total)
	return nil
}

func (c *VocabularyCmd) Run(cli *CLI) error {
	logger, err := commands.SetupLogger(cli.LogLevel)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	pipeline, err := commands.SetupPipeline(ctx, cli.CommonConfig, cli.EmbeddingConfig, logger)
	if err != nil {
		logger.Fatal("Failed to initialize pipeline", "error", err)
	}
	defer pipeline.Close()

	bills, err := pipeline.DB.ListBills(ctx)
	if err != nil {
		return err
	}
	if len(bills) == 0 {
		logger.Warn("Corpus is empty, run collect first")
		return nil
	}

	rc := commands.DefaultRankingConfig("")
	rc.TagBlacklistFile = c.TagBlacklistFile
	rc.MinTermLength = c.MinTermLength
	rc.RebuildVocabulary = c.Rebuild

	v, err := pipeline.Vocabulary(ctx, bills, rc, !c.NoProgress)
	if err != nil {
		logger.Fatal("Failed to load vocabulary", "error", err)
	}

	fmt.Printf("Vocabulary: %d terms from %d bills (model %s)\n", v.Len(), v.CorpusSize, v.Model)
	for i, term := range v.Terms {
		if i >= c.Show {
			fmt.Printf("  ... %d more\n", v.Len()-c.Show)
			break
		}
		fmt.Printf("  %s\n", term)
	}
	return nil
}

func (c *RankCmd) Run(cli *CLI) error {
	logger, err := commands.SetupLogger(cli.LogLevel)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	pipeline, err := commands.SetupPipeline(ctx, cli.CommonConfig, cli.EmbeddingConfig, logger)
	if err != nil {
		logger.Fatal("Failed to initialize pipeline", "error", err)
	}
	defer pipeline.Close()

	start := time.Now()
	results, err := pipeline.Rank(ctx, c.RankingConfig, !c.NoProgress)
	if err != nil {
		logger.Fatal("Failed to rank bills", "error", err)
	}
	logger.Info("Ranking completed",
		"scored", results.Scored,
		"passed", results.Passed,
		"selected", len(results.Results),
		"duration", time.Since(start))

	if len(results.Results) == 0 {
		logger.Warn("No bills passed the threshold", "threshold", c.Threshold)
	}

	projects := export.ProjectAll(results.Results)

	if len(results.TargetTags) > 0 {
		fmt.Printf("Target tags: %s\n\n", strings.Join(results.TargetTags, ", "))
	}
	for _, p := range projects {
		fmt.Printf("%s  %s  %s\n", p.Similarity, p.Norm, p.Summary)
	}

	if c.CSV != "" {
		if err := export.WriteFile(c.CSV, projects, export.WriteCSV); err != nil {
			return err
		}
		logger.Info("Wrote CSV export", "path", c.CSV, "rows", len(projects))
	}
	if c.JSON != "" {
		if err := export.WriteFile(c.JSON, projects, export.WriteJSON); err != nil {
			return err
		}
		logger.Info("Wrote JSON export", "path", c.JSON, "rows", len(projects))
	}
	if c.Insert {
		inserted, err := pipeline.DB.InsertProjects(ctx, projects)
		if err != nil {
			return err
		}
		fmt.Printf("\nInserted %d new projects (%d already present)\n", inserted, len(projects)-inserted)
	}
	return nil
}

func (c *ProjectsCmd) Run(cli *CLI) error {
	logger, err := commands.SetupLogger(cli.LogLevel)
	if err != nil {
		return err
	}
	ctx := context.Background()

	database, err := db.New(ctx, cli.DataDir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", "error", err)
	}
	defer database.Close()

	var opts []db.ProjectOption
	if c.YearFrom > 0 || c.YearTo > 0 {
		opts = append(opts, db.WithYearRange(c.YearFrom, c.YearTo))
	}
	if c.Party != "" {
		opts = append(opts, db.WithParty(c.Party))
	}
	if c.Situation != "" {
		opts = append(opts, db.WithSituation(c.Situation))
	}
	if c.Keyword != "" {
		opts = append(opts, db.WithKeyword(c.Keyword))
	}

	if c.CountBy != "" {
		counts, err := database.CountProjectsBy(ctx, c.CountBy, opts...)
		if err != nil {
			return err
		}
		for _, count := range counts {
			fmt.Printf("%6d  %s\n", count.Count, count.Value)
		}
		return nil
	}

	if c.Limit > 0 {
		opts = append(opts, db.WithLimit(c.Limit))
	}
	projects, err := database.ListProjects(ctx, opts...)
	if err != nil {
		return err
	}
	for _, p := range projects {
		fmt.Printf("%s  %s  %s  %s\n", p.PresentedAt, p.Norm, p.Party, p.Summary)
	}
	logger.Info("Listed projects", "count", len(projects))
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("bill-ranker"),
		kong.Description("Rank Brazilian Chamber of Deputies bills by relevance to a topic"),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
