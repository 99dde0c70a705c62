// Package contextgen produces short natural-language descriptions of
// code chunks. Descriptions are prepended to chunk text before embedding
// so the content vector carries intent as well as syntax.
package contextgen

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/dopemux/codesearch/pkg/types"
)

// Response is one generated context snippet with its cost.
type Response struct {
	Context    string
	TokensUsed int
	CostUSD    float64
}

// Generator describes code chunks. Implementations must return one
// response per input chunk, in order.
type Generator interface {
	GenerateBatch(ctx context.Context, chunks []types.CodeChunk, filePath string) ([]Response, error)
}

// Static is the no-LLM fallback generator. It synthesizes a snippet from
// the chunk's symbol and location, costing nothing.
type Static struct{}

// NewStatic creates the fallback generator.
func NewStatic() *Static {
	return &Static{}
}

func (s *Static) GenerateBatch(_ context.Context, chunks []types.CodeChunk, filePath string) ([]Response, error) {
	responses := make([]Response, len(chunks))
	for i, chunk := range chunks {
		responses[i] = Response{Context: staticContext(chunk, filePath)}
	}
	return responses, nil
}

// staticContext builds a description without calling a model.
func staticContext(chunk types.CodeChunk, filePath string) string {
	if chunk.SymbolName != "" {
		return fmt.Sprintf("%s %s from %s", chunk.ChunkType, chunk.SymbolName, filePath)
	}
	return fmt.Sprintf("Code from %s", filePath)
}

// contentGenerator is the subset of langchaingo's llms.Model used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Pricing converts estimated token counts into dollar cost.
type Pricing struct {
	USDPer1KTokens float64
}

// LLM generates chunk descriptions with a chat model. Per-chunk failures
// degrade to the static snippet rather than failing the batch.
type LLM struct {
	model    contentGenerator
	pricing  Pricing
	fallback *Static
}

// NewLLM creates a model-backed generator.
func NewLLM(model contentGenerator, pricing Pricing) *LLM {
	return &LLM{
		model:    model,
		pricing:  pricing,
		fallback: NewStatic(),
	}
}

func (g *LLM) GenerateBatch(ctx context.Context, chunks []types.CodeChunk, filePath string) ([]Response, error) {
	responses := make([]Response, len(chunks))
	for i, chunk := range chunks {
		resp, err := g.generateOne(ctx, chunk, filePath)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			responses[i] = Response{Context: staticContext(chunk, filePath)}
			continue
		}
		responses[i] = resp
	}
	return responses, nil
}

func (g *LLM) generateOne(ctx context.Context, chunk types.CodeChunk, filePath string) (Response, error) {
	prompt := buildPrompt(chunk, filePath)

	resp, err := g.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, llms.WithMaxTokens(120), llms.WithTemperature(0.0))
	if err != nil {
		return Response{}, fmt.Errorf("generate context: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return Response{}, fmt.Errorf("generate context: empty completion")
	}

	text := strings.TrimSpace(resp.Choices[0].Content)
	tokens := types.EstimateTokenCount(prompt) + types.EstimateTokenCount(text)
	return Response{
		Context:    text,
		TokensUsed: tokens,
		CostUSD:    float64(tokens) / 1000.0 * g.pricing.USDPer1KTokens,
	}, nil
}

// buildPrompt asks for a one-to-two sentence description situating the
// chunk within its file.
func buildPrompt(chunk types.CodeChunk, filePath string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Describe in one or two sentences what this %s code does", chunk.Language)
	if chunk.SymbolName != "" {
		fmt.Fprintf(&b, " (symbol %q", chunk.SymbolName)
		fmt.Fprintf(&b, " in file %s)", filepath.Base(filePath))
	} else {
		fmt.Fprintf(&b, " (from file %s)", filepath.Base(filePath))
	}
	b.WriteString(". Answer with the description only.\n\n")
	b.WriteString(chunk.Content)
	return b.String()
}
