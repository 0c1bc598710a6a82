package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/deskflow/alfred/internal/core"
	"github.com/deskflow/alfred/pkg/log"
	"github.com/deskflow/alfred/pkg/retry"
)

// Embedder converts text into a fixed-dimension vector through the OpenAI
// embeddings API. Remote failures are wrapped and retried with backoff;
// auth and malformed-input errors are not retried.
type Embedder struct {
	client  *openai.Client
	model   string
	retrier *retry.Retrier
}

func NewEmbedder(apiKey, model string) *Embedder {
	return &Embedder{
		client:  openai.NewClient(apiKey),
		model:   model,
		retrier: retry.NewDefaultRetrier(),
	}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("embed: empty input")
	}

	var result []float32
	err := e.retrier.Do(ctx, func() error {
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(e.model),
			Input: []string{text},
		})
		if err != nil {
			return classifyAPIError(err)
		}
		if len(resp.Data) == 0 {
			return retry.Permanent(errors.New("embedding response empty"))
		}
		result = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}

	log.FromCtx(ctx).Debug().Int("dims", len(result)).Msg("embedded query")
	return result, nil
}

// EmbedBatch embeds up to the API's batch limit of inputs in one call.
// Used by the ingest pipeline.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var result [][]float32
	err := e.retrier.Do(ctx, func() error {
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(e.model),
			Input: texts,
		})
		if err != nil {
			return classifyAPIError(err)
		}
		if len(resp.Data) != len(texts) {
			return retry.Permanent(fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(texts)))
		}
		result = make([][]float32, len(resp.Data))
		for _, d := range resp.Data {
			// The API orders vectors by the Index field, not by response
			// position.
			if d.Index < 0 || d.Index >= len(result) {
				return retry.Permanent(fmt.Errorf("embedding index %d out of range", d.Index))
			}
			result[d.Index] = d.Embedding
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	return result, nil
}

// classifyAPIError marks client-side API failures permanent so the retrier
// gives up immediately; rate limits and server errors stay retryable.
func classifyAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusBadRequest, http.StatusNotFound:
			return retry.Permanent(err)
		}
	}
	return err
}

var _ core.Embedder = (*Embedder)(nil)
