// Package mcp exposes documentation search to MCP clients over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/records"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/search"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

const defaultLimit = 10

// SearchService is the subset of *search.Service the tools call.
type SearchService interface {
	Execute(q search.Query) (*search.SearchResult, error)
	Record(location string) (records.DocumentRecord, error)
	Status() search.Status
}

type SearchDocsInput struct {
	Query    string `json:"query" jsonschema:"keywords to search for; any matching word counts"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Category string `json:"category,omitempty" jsonschema:"restrict to one record category: page or section"`
}

type SearchDocsOutput struct {
	Query     string      `json:"query"`
	TotalHits int         `json:"total_hits"`
	Results   []DocResult `json:"results"`
}

type DocResult struct {
	Location string  `json:"location" jsonschema:"anchor of the matching page or section"`
	Page     string  `json:"page"`
	Title    string  `json:"title"`
	Category string  `json:"category"`
	Score    float64 `json:"score" jsonschema:"sum of matched term frequencies under the configured scorer"`
}

type GetRecordInput struct {
	Location string `json:"location" jsonschema:"record location as returned by search_docs"`
}

type GetRecordOutput struct {
	records.DocumentRecord
}

type IndexStatusInput struct{}

type Server struct {
	svc     SearchService
	mcp     *mcp.Server
	version string
	logger  *slog.Logger
}

func NewServer(svc SearchService, version string) *Server {
	s := &Server{
		svc:     svc,
		version: version,
		logger:  slog.Default().With("component", "mcp-server"),
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "docsearch",
		Version: version,
	}, nil)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_docs",
		Description: "Keyword search over the documentation index. Returns matching pages and sections ranked by how often the query words occur.",
	}, s.searchDocs)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_record",
		Description: "Fetch the full text of one documentation record by its location.",
	}, s.getRecord)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Report whether the documentation index is built, its generation and size.",
	}, s.indexStatus)
	s.logger.Debug("MCP tools registered", "count", 3)
}

func (s *Server) searchDocs(ctx context.Context, _ *mcp.CallToolRequest, in SearchDocsInput) (
	*mcp.CallToolResult,
	SearchDocsOutput,
	error,
) {
	limit := in.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	res, err := s.svc.Execute(search.Query{
		Text:     in.Query,
		Limit:    limit,
		Category: records.Category(in.Category),
	})
	if err != nil {
		return nil, SearchDocsOutput{}, toolError(err)
	}
	out := SearchDocsOutput{
		Query:     res.Query,
		TotalHits: res.TotalHits,
		Results:   make([]DocResult, 0, len(res.Results)),
	}
	for _, r := range res.Results {
		out.Results = append(out.Results, DocResult{
			Location: r.Location,
			Page:     r.Page,
			Title:    r.Title,
			Category: string(r.Category),
			Score:    r.Score,
		})
	}
	return nil, out, nil
}

func (s *Server) getRecord(ctx context.Context, _ *mcp.CallToolRequest, in GetRecordInput) (
	*mcp.CallToolResult,
	GetRecordOutput,
	error,
) {
	if in.Location == "" {
		return nil, GetRecordOutput{}, errors.New("location parameter is required")
	}
	rec, err := s.svc.Record(in.Location)
	if err != nil {
		return nil, GetRecordOutput{}, toolError(err)
	}
	return nil, GetRecordOutput{DocumentRecord: rec}, nil
}

func (s *Server) indexStatus(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	search.Status,
	error,
) {
	return nil, s.svc.Status(), nil
}

// toolError keeps the client-facing message of application errors and hides
// the detail of anything unexpected.
func toolError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return errors.New(appErr.Message)
	}
	if apperrors.HTTPStatusCode(err) == http.StatusInternalServerError {
		return errors.New("search failed")
	}
	return err
}

// Run serves MCP over stdin/stdout until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server", "transport", "stdio", "version", s.version)
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
