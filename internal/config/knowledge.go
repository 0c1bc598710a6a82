package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/deskflow/alfred/pkg/log"
)

const (
	KnowledgeFlavorCSV    = "csv"
	KnowledgeFlavorMilvus = "milvus"
)

type KnowledgeConfig struct {
	// Flavor picks the store implementation: "csv" (flat snapshot file)
	// or "milvus" (vector index).
	Flavor    string `env:"ALFRED_KNOWLEDGE_FLAVOR" envDefault:"csv"`
	Namespace string `env:"ALFRED_KNOWLEDGE_NAMESPACE,required,notEmpty"`

	CSVDir string `env:"ALFRED_KNOWLEDGE_CSV_DIR" envDefault:"data"`

	MilvusAddr       string `env:"MILVUS_ADDR" envDefault:"localhost:19530"`
	MilvusCollection string `env:"MILVUS_COLLECTION" envDefault:"alfred_knowledge"`

	// Embedding dimension for the collection schema; fixed by the
	// embedding model.
	VectorSize int `env:"ALFRED_VECTOR_SIZE" envDefault:"1536"`
}

func NewKnowledgeConfig(ctx context.Context) *KnowledgeConfig {
	c := &KnowledgeConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Knowledge config")
	}
	return c
}
