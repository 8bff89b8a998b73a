package memory

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Embedder converts a passage into a vector. The embedding algorithm is a
// deployment concern; the store only requires that query and passage vectors
// come from the same embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GeminiEmbedder embeds text through the Gemini embeddings endpoint.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

func NewGeminiEmbedder(client *genai.Client, model string) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, model: model}
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("embed content: empty embedding from model %s", e.model)
	}
	return resp.Embeddings[0].Values, nil
}
