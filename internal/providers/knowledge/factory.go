package knowledge

import (
	"context"
	"fmt"

	"github.com/deskflow/alfred/internal/config"
	"github.com/deskflow/alfred/internal/core"
)

// Store bundles the read and write halves; both flavors implement both.
type Store interface {
	core.KnowledgeStore
	core.KnowledgeWriter
}

// NewStore picks the store flavor once, here, instead of branching in
// callers.
func NewStore(ctx context.Context, cfg *config.KnowledgeConfig) (Store, func() error, error) {
	switch cfg.Flavor {
	case config.KnowledgeFlavorCSV:
		return NewCSVStore(cfg.CSVDir), func() error { return nil }, nil
	case config.KnowledgeFlavorMilvus:
		store, err := NewMilvusStore(ctx, MilvusOptions{
			Address:    cfg.MilvusAddr,
			Collection: cfg.MilvusCollection,
			VectorSize: cfg.VectorSize,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown knowledge store flavor %q", cfg.Flavor)
	}
}
