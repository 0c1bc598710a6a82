package ingest

import (
	"context"
	"fmt"

	"github.com/deskflow/alfred/internal/core"
	"github.com/deskflow/alfred/internal/providers/zendesk"
	"github.com/deskflow/alfred/pkg/log"
)

// ArticleSource lists the documents to index.
type ArticleSource interface {
	ListArticles(ctx context.Context) ([]zendesk.Article, error)
}

// BatchEmbedder embeds a batch of texts, one vector per input in order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

const embedBatchSize = 100

// Pipeline rebuilds a tenant's knowledge base from its help center:
// fetch, strip markup, chunk, embed, and replace the stored namespace
// wholesale.
type Pipeline struct {
	source   ArticleSource
	embedder BatchEmbedder
	store    core.KnowledgeWriter
	chunkCfg ChunkerConfig
}

func NewPipeline(source ArticleSource, embedder BatchEmbedder, store core.KnowledgeWriter) *Pipeline {
	return &Pipeline{
		source:   source,
		embedder: embedder,
		store:    store,
		chunkCfg: AdaChunkerConfig(),
	}
}

// Run executes one full ingest and returns the number of records stored.
func (p *Pipeline) Run(ctx context.Context, namespace string) (int, error) {
	logger := log.FromCtx(ctx)

	articles, err := p.source.ListArticles(ctx)
	if err != nil {
		return 0, fmt.Errorf("list articles: %w", err)
	}
	if len(articles) == 0 {
		return 0, fmt.Errorf("no articles to ingest")
	}

	var records []core.KnowledgeRecord
	for _, article := range articles {
		text, err := CleanHTML(article.Body)
		if err != nil {
			logger.Warn().Err(err).Int64("article_id", article.ID).Msg("skipping article")
			continue
		}
		if text == "" {
			continue
		}

		for _, chunk := range ChunkText(text, p.chunkCfg) {
			records = append(records, core.KnowledgeRecord{
				Title:   article.Title,
				Content: chunk.Text,
			})
		}
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("no text extracted from %d articles", len(articles))
	}
	logger.Info().
		Int("articles", len(articles)).
		Int("chunks", len(records)).
		Msg("chunked help center articles")

	for start := 0; start < len(records); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(records) {
			end = len(records)
		}

		texts := make([]string, 0, end-start)
		for _, r := range records[start:end] {
			texts = append(texts, r.Content)
		}

		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed batch at %d: %w", start, err)
		}
		if len(vectors) != len(texts) {
			return 0, fmt.Errorf("embed batch at %d: got %d vectors for %d texts", start, len(vectors), len(texts))
		}
		for i := range vectors {
			records[start+i].Embedding = vectors[i]
		}
	}

	if err := p.store.Upsert(ctx, namespace, records); err != nil {
		return 0, fmt.Errorf("store knowledge base: %w", err)
	}
	return len(records), nil
}
