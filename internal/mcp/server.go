// Package mcp exposes the intervention tool over the Model Context Protocol
// so MCP clients (IDEs, agent runtimes) can query the knowledge base and
// request recommendations.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/roadsafe/roadsafe/internal/knowledge"
	"github.com/roadsafe/roadsafe/internal/rag"
)

// Recommender is the recommendation pipeline surface the MCP tools use.
type Recommender interface {
	Recommend(ctx context.Context, question string) (rag.Recommendation, error)
}

// Searcher exposes raw retrieval for clients that want the underlying
// knowledge base entries instead of a graded recommendation.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// Config holds MCP server configuration.
type Config struct {
	Name        string
	Version     string
	Recommender Recommender
	Searcher    Searcher
	Logger      *slog.Logger
}

// Server wraps the MCP SDK server with the intervention tools registered.
type Server struct {
	mcpServer *mcp.Server
	rec       Recommender
	search    Searcher
	logger    *slog.Logger
}

// NewServer creates an MCP server with the intervention tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Recommender == nil {
		return nil, fmt.Errorf("recommender is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		rec:    cfg.Recommender,
		search: cfg.Searcher,
		logger: logger,
	}

	if err := s.registerRecommend(); err != nil {
		return nil, fmt.Errorf("registering recommendIntervention: %w", err)
	}
	if s.search != nil {
		if err := s.registerSearch(); err != nil {
			return nil, fmt.Errorf("registering searchInterventions: %w", err)
		}
	}

	return s, nil
}

// Run starts the MCP server on the given transport. Blocks until the
// transport closes or ctx is canceled.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

// RecommendInput is the input schema for the recommendIntervention tool.
type RecommendInput struct {
	Question string `json:"question" jsonschema:"The road safety issue to analyze, e.g. a hazard description with road type and environment"`
}

func (s *Server) registerRecommend() error {
	inputSchema, err := jsonschema.For[RecommendInput](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "recommendIntervention",
		Description: "Analyze a described road safety issue and recommend interventions from the knowledge base, with source and clause citations. Reports insufficient data when nothing relevant exists.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in RecommendInput) (*mcp.CallToolResult, any, error) {
		rec, err := s.rec.Recommend(ctx, in.Question)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Error: %v", err)}},
				IsError: true,
			}, nil, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: formatRecommendation(rec)}},
		}, rec, nil
	})

	return nil
}

// SearchInput is the input schema for the searchInterventions tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"Free-text search over the intervention knowledge base"`
	TopK  int    `json:"topK,omitempty" jsonschema:"Maximum number of results, defaults to 4"`
}

// SearchHit is one entry of the searchInterventions structured output.
type SearchHit struct {
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	Clause     string  `json:"clause"`
	Similarity float32 `json:"similarity"`
}

func (s *Server) registerSearch() error {
	inputSchema, err := jsonschema.For[SearchInput](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "searchInterventions",
		Description: "Search the road safety intervention knowledge base and return the closest entries with their citations and similarity scores. No relevance grading is applied.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, any, error) {
		query := strings.TrimSpace(in.Query)
		if query == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "Error: query must not be empty"}},
				IsError: true,
			}, nil, nil
		}

		var opts []knowledge.SearchOption
		if in.TopK > 0 {
			opts = append(opts, knowledge.WithTopK(in.TopK))
		}
		results, err := s.search.Search(ctx, query, opts...)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Error: %v", err)}},
				IsError: true,
			}, nil, nil
		}

		hits := make([]SearchHit, len(results))
		for i, r := range results {
			hits[i] = SearchHit{
				Content:    r.Document.Content,
				Source:     r.Document.Metadata[rag.MetaCode],
				Clause:     r.Document.Metadata[rag.MetaClause],
				Similarity: r.Similarity,
			}
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: formatHits(hits)}},
		}, hits, nil
	})

	return nil
}

// formatRecommendation renders a recommendation as readable text, mirroring
// the three result sections of the web page.
func formatRecommendation(rec rag.Recommendation) string {
	var b strings.Builder

	if rec.InsufficientData {
		b.WriteString("Status: Insufficient Data\n\n")
		b.WriteString(rec.Explanation)
		return b.String()
	}

	b.WriteString("Recommended Intervention(s):\n")
	b.WriteString(rec.Interventions)
	if rec.Explanation != "" {
		b.WriteString("\n\nExplanation & Justification:\n")
		b.WriteString(rec.Explanation)
	}
	if len(rec.Citations) > 0 {
		b.WriteString("\n\nDatabase Reference:\n")
		for _, c := range rec.Citations {
			fmt.Fprintf(&b, "Source: %s, Clause: %s\n", c.Source, c.Clause)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatHits renders search results as readable text.
func formatHits(hits []SearchHit) string {
	if len(hits) == 0 {
		return "No matching interventions found."
	}

	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		fmt.Fprintf(&b, "%s\nReference: Source: %s, Clause: %s (similarity %.2f)", h.Content, h.Source, h.Clause, h.Similarity)
	}
	return b.String()
}
