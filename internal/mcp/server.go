package mcp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/lox/bill-relevance-ranker/internal/commands"
	"github.com/lox/bill-relevance-ranker/internal/db"
	"github.com/lox/bill-relevance-ranker/internal/export"
	"github.com/lox/bill-relevance-ranker/internal/types"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Ranker runs a ranking over the stored corpus
type Ranker interface {
	Rank(ctx context.Context, rc commands.RankingConfig, showProgress bool) (types.RankResults, error)
}

type Server struct {
	ranker   Ranker
	db       *db.DB
	defaults commands.RankingConfig
	logger   *log.Logger
}

// New creates a server answering with ranker and the projects stored in db.
// defaults supplies every ranking setting a tool call leaves out.
func New(ranker Ranker, db *db.DB, defaults commands.RankingConfig, logger *log.Logger) *Server {
	return &Server{
		ranker:   ranker,
		db:       db,
		defaults: defaults,
		logger:   logger,
	}
}

// MCPServer builds the tool server without starting a transport
func (s *Server) MCPServer() *server.MCPServer {
	mcpServer := server.NewMCPServer(
		"Bill Relevance Ranker",
		"1.0.0",
	)

	mcpServer.AddTool(mcp.NewTool("rank_bills",
		mcp.WithDescription("Rank the collected Chamber of Deputies bills by relevance to a topic"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Topic the bills should be about, e.g. 'inteligência artificial'"),
		),
		mcp.WithString("threshold",
			mcp.Description("Minimum fused score between 0 and 1 (default: 0.45)"),
		),
		mcp.WithString("top_k",
			mcp.Description("Maximum number of results, 0 for no limit (default: 10)"),
		),
		mcp.WithString("order",
			mcp.Description("Score used to order results: fused or semantic (default: fused)"),
		),
	), s.rankBillsHandler)

	mcpServer.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List exported projects, newest first, with optional filters"),
		mcp.WithString("year_from",
			mcp.Description("First presentation year"),
		),
		mcp.WithString("year_to",
			mcp.Description("Last presentation year"),
		),
		mcp.WithString("party",
			mcp.Description("Party of the principal author, e.g. PT"),
		),
		mcp.WithString("situation",
			mcp.Description("Substring of the processing situation"),
		),
		mcp.WithString("keyword",
			mcp.Description("Substring searched in the indexing terms and the summary"),
		),
		mcp.WithString("limit",
			mcp.Description("Maximum number of results to return (default: 50)"),
		),
	), s.listProjectsHandler)

	mcpServer.AddTool(mcp.NewTool("count_projects",
		mcp.WithDescription("Count exported projects grouped by a column"),
		mcp.WithString("column",
			mcp.Required(),
			mcp.Description("One of: "+strings.Join(db.GroupColumns(), ", ")),
		),
		mcp.WithString("year_from",
			mcp.Description("First presentation year"),
		),
		mcp.WithString("year_to",
			mcp.Description("Last presentation year"),
		),
		mcp.WithString("party",
			mcp.Description("Party of the principal author"),
		),
	), s.countProjectsHandler)

	return mcpServer
}

// Run serves the tools over stdio until the client disconnects
func (s *Server) Run() error {
	return server.ServeStdio(s.MCPServer())
}

func (s *Server) rankBillsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, ok := request.Params.Arguments["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, errors.New("query must be a non-empty string")
	}

	rc := s.defaults
	rc.Query = query
	rc.TopK = 10

	threshold, err := floatArg(request, "threshold", rc.Threshold)
	if err != nil {
		return nil, err
	}
	rc.Threshold = threshold

	if rc.TopK, err = intArg(request, "top_k", rc.TopK); err != nil {
		return nil, err
	}

	if order, ok := request.Params.Arguments["order"].(string); ok && order != "" {
		if order != "fused" && order != "semantic" {
			return nil, fmt.Errorf("order must be fused or semantic, got %q", order)
		}
		rc.Order = order
	}

	results, err := s.ranker.Rank(ctx, rc, false)
	if err != nil {
		return nil, fmt.Errorf("failed to rank bills: %w", err)
	}
	s.logger.Info("Ranked bills", "query", query, "selected", len(results.Results), "passed", results.Passed)

	var result strings.Builder
	if len(results.TargetTags) > 0 {
		fmt.Fprintf(&result, "Target tags: %s\n\n", strings.Join(results.TargetTags, ", "))
	}
	if len(results.Results) == 0 {
		result.WriteString("No bills passed the threshold.\n")
	}
	for _, rb := range results.Results {
		p := export.Project(rb)
		fmt.Fprintf(&result, "%s (score %s, semantic %.4f, boost %.0f)\n", p.Norm, p.Similarity, rb.Scores.Semantic, rb.Scores.Boost)
		writeProject(&result, p)
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (s *Server) listProjectsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts, err := filterOptions(request)
	if err != nil {
		return nil, err
	}
	limit, err := intArg(request, "limit", 50)
	if err != nil {
		return nil, err
	}
	if situation, _ := request.Params.Arguments["situation"].(string); situation != "" {
		opts = append(opts, db.WithSituation(situation))
	}
	if keyword, _ := request.Params.Arguments["keyword"].(string); keyword != "" {
		opts = append(opts, db.WithKeyword(keyword))
	}
	opts = append(opts, db.WithLimit(limit))

	projects, err := s.db.ListProjects(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	var result strings.Builder
	if len(projects) == 0 {
		result.WriteString("No projects found.\n")
	}
	for _, p := range projects {
		fmt.Fprintf(&result, "%s\n", p.Norm)
		writeProject(&result, p)
	}
	return mcp.NewToolResultText(result.String()), nil
}

func (s *Server) countProjectsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	column, ok := request.Params.Arguments["column"].(string)
	if !ok {
		return nil, errors.New("column must be a string")
	}
	opts, err := filterOptions(request)
	if err != nil {
		return nil, err
	}

	counts, err := s.db.CountProjectsBy(ctx, column, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}

	var result strings.Builder
	for _, c := range counts {
		fmt.Fprintf(&result, "%s: %d\n", c.Value, c.Count)
	}
	return mcp.NewToolResultText(result.String()), nil
}

func writeProject(b *strings.Builder, p types.Project) {
	fmt.Fprintf(b, "  Type: %s\n", p.TypeDescription)
	fmt.Fprintf(b, "  Presented: %s\n", p.PresentedAt)
	fmt.Fprintf(b, "  Author: %s (%s)\n", p.Authors, p.Party)
	fmt.Fprintf(b, "  Summary: %s\n", p.Summary)
	if p.Indexing != "" {
		fmt.Fprintf(b, "  Indexing: %s\n", p.Indexing)
	}
	if p.Situation != "" {
		fmt.Fprintf(b, "  Situation: %s\n", p.Situation)
	}
	if p.PageURL != "" {
		fmt.Fprintf(b, "  Page: %s\n", p.PageURL)
	}
	b.WriteString("\n")
}

// filterOptions parses the year range and party filters shared by the project tools
func filterOptions(request mcp.CallToolRequest) ([]db.ProjectOption, error) {
	var opts []db.ProjectOption
	yearFrom, err := intArg(request, "year_from", 0)
	if err != nil {
		return nil, err
	}
	yearTo, err := intArg(request, "year_to", 0)
	if err != nil {
		return nil, err
	}
	if yearFrom > 0 || yearTo > 0 {
		opts = append(opts, db.WithYearRange(yearFrom, yearTo))
	}
	if party, _ := request.Params.Arguments["party"].(string); party != "" {
		opts = append(opts, db.WithParty(party))
	}
	return opts, nil
}

func intArg(request mcp.CallToolRequest, name string, def int) (int, error) {
	val, ok := request.Params.Arguments[name]
	if !ok {
		return def, nil
	}
	switch v := val.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case string:
		if v == "" {
			return def, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", name, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s must be a number or string", name)
	}
}

func floatArg(request mcp.CallToolRequest, name string, def float64) (float64, error) {
	val, ok := request.Params.Arguments[name]
	if !ok {
		return def, nil
	}
	switch v := val.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		if v == "" {
			return def, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid number: %w", name, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%s must be a number or string", name)
	}
}
