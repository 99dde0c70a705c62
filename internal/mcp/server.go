// Package mcp exposes the indexing pipeline and hybrid search over the
// Model Context Protocol on stdio.
package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/dopemux/codesearch/internal/config"
	"github.com/dopemux/codesearch/internal/contextgen"
	"github.com/dopemux/codesearch/internal/dense"
	"github.com/dopemux/codesearch/internal/embedder"
	"github.com/dopemux/codesearch/internal/hybrid"
	"github.com/dopemux/codesearch/internal/pipeline"
	"github.com/dopemux/codesearch/internal/sparse"
)

const (
	// ServerName is the MCP server name.
	ServerName = "codesearch"
	// ServerVersion is the current server version.
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies.
type Server struct {
	mcp      *server.MCPServer
	cfg      config.Config
	pipeline *pipeline.Pipeline
	searcher *hybrid.Searcher
	dense    *dense.Index
	emb      embedder.Embedder
	log      zerolog.Logger
}

// NewServer wires the full stack from configuration: embedder, vector
// store, both indexes, pipeline, and searcher.
func NewServer(cfg config.Config, logger zerolog.Logger) (*Server, error) {
	emb, err := embedder.New(embedder.Config{
		Provider:  cfg.Embedding.Provider,
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		CacheSize: cfg.Embedding.CacheSize,
		Pricing:   embedder.Pricing{USDPer1KTokens: cfg.Embedding.USDPer1KTokens},
	})
	if err != nil {
		return nil, fmt.Errorf("initialize embedder: %w", err)
	}

	var db *chromem.DB
	if cfg.Index.PersistPath != "" {
		db, err = chromem.NewPersistentDB(cfg.Index.PersistPath, false)
		if err != nil {
			return nil, fmt.Errorf("open vector store: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	denseIdx := dense.NewIndex(db, dense.CollectionConfig{
		Name:        cfg.Index.CollectionName,
		Dimension:   cfg.Index.Dimension,
		M:           cfg.Index.HNSWM,
		EfConstruct: cfg.Index.HNSWEfConstruct,
	})
	if err := denseIdx.CreateCollection(context.Background()); err != nil {
		return nil, err
	}

	sparseIdx := sparse.NewIndex()

	gen, err := newContextGenerator(cfg)
	if err != nil {
		return nil, err
	}

	pipe, err := pipeline.New(cfg.IndexingConfig(), pipeline.Options{
		ContextGen: gen,
		Embedder:   emb,
		Dense:      denseIdx,
		Sparse:     sparseIdx,
		Workers:    cfg.Workspace.Workers,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		cfg:      cfg,
		pipeline: pipe,
		searcher: hybrid.NewSearcher(denseIdx, sparseIdx, emb),
		dense:    denseIdx,
		emb:      emb,
		log:      logger,
	}

	s.registerTools()
	return s, nil
}

// Pipeline exposes the pipeline for the index and watch commands.
func (s *Server) Pipeline() *pipeline.Pipeline {
	return s.pipeline
}

// Searcher exposes the hybrid searcher for the search command.
func (s *Server) Searcher() *hybrid.Searcher {
	return s.searcher
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.emb.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(indexWorkspaceTool(), s.handleIndexWorkspace)
	s.mcp.AddTool(indexFileTool(), s.handleIndexFile)
	s.mcp.AddTool(getCostSummaryTool(), s.handleGetCostSummary)
	s.mcp.AddTool(getIndexInfoTool(), s.handleGetIndexInfo)
}

// newContextGenerator builds the configured context generator; disabled
// configurations get the free static generator.
func newContextGenerator(cfg config.Config) (contextgen.Generator, error) {
	if !cfg.ContextGen.Enabled {
		return contextgen.NewStatic(), nil
	}
	opts := []openai.Option{openai.WithToken(cfg.Embedding.APIKey)}
	if cfg.ContextGen.Model != "" {
		opts = append(opts, openai.WithModel(cfg.ContextGen.Model))
	}
	if cfg.Embedding.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.Embedding.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize context model: %w", err)
	}
	return contextgen.NewLLM(llm, contextgen.Pricing{USDPer1KTokens: cfg.ContextGen.USDPer1KTokens}), nil
}
