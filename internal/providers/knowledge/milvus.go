package knowledge

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/deskflow/alfred/internal/core"
	"github.com/deskflow/alfred/pkg/log"
)

// MilvusStore keeps the knowledge base in a Milvus collection partitioned
// by a namespace field, so one collection serves every tenant.
type MilvusStore struct {
	mc         client.Client
	collection string
	vectorSize int
}

type MilvusOptions struct {
	Address    string
	Collection string
	VectorSize int
}

func NewMilvusStore(ctx context.Context, opts MilvusOptions) (*MilvusStore, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.Collection == "" {
		opts.Collection = "alfred_knowledge"
	}
	if opts.VectorSize == 0 {
		opts.VectorSize = 1536
	}

	mc, err := client.NewClient(ctx, client.Config{Address: opts.Address})
	if err != nil {
		return nil, fmt.Errorf("connect to milvus: %w", err)
	}

	return &MilvusStore{
		mc:         mc,
		collection: opts.Collection,
		vectorSize: opts.VectorSize,
	}, nil
}

func (s *MilvusStore) Close() error {
	return s.mc.Close()
}

func (s *MilvusStore) ensureCollection(ctx context.Context) error {
	has, err := s.mc.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if has {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: s.collection,
		Description:    "support knowledge base passages",
		Fields: []*entity.Field{
			{Name: "id", DataType: entity.FieldTypeInt64, PrimaryKey: true, AutoID: true},
			{Name: "namespace", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "128"}},
			{Name: "title", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "512"}},
			{Name: "content", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "65535"}},
			{Name: "category", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "64"}},
			{Name: "embedding", DataType: entity.FieldTypeFloatVector, TypeParams: map[string]string{"dim": fmt.Sprintf("%d", s.vectorSize)}},
		},
	}
	if err := s.mc.CreateCollection(ctx, schema, 1); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	index, err := entity.NewIndexHNSW(entity.COSINE, 8, 64)
	if err != nil {
		return fmt.Errorf("build index definition: %w", err)
	}
	if err := s.mc.CreateIndex(ctx, s.collection, "embedding", index, false); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// FetchAll pulls every record in the namespace partition. The ranker does
// the scoring locally; Milvus is only bulk storage here, which keeps the
// two store flavors equivalent from the core's point of view.
func (s *MilvusStore) FetchAll(ctx context.Context, namespace string) ([]core.KnowledgeRecord, error) {
	has, err := s.mc.HasCollection(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if !has {
		return nil, nil
	}

	if err := s.mc.LoadCollection(ctx, s.collection, false); err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}

	expr := fmt.Sprintf("namespace == %q", namespace)
	rs, err := s.mc.Query(ctx, s.collection, nil, expr, []string{"title", "content", "category", "embedding"})
	if err != nil {
		return nil, fmt.Errorf("query namespace %q: %w", namespace, err)
	}

	titles, err := varcharColumn(rs, "title")
	if err != nil {
		return nil, err
	}
	contents, err := varcharColumn(rs, "content")
	if err != nil {
		return nil, err
	}
	categories, err := varcharColumn(rs, "category")
	if err != nil {
		return nil, err
	}
	vectors, err := vectorColumn(rs, "embedding")
	if err != nil {
		return nil, err
	}
	if len(contents) != len(vectors) {
		return nil, fmt.Errorf("column length mismatch: %d contents, %d vectors", len(contents), len(vectors))
	}

	records := make([]core.KnowledgeRecord, 0, len(contents))
	for i := range contents {
		rec := core.KnowledgeRecord{
			Content:   contents[i],
			Embedding: vectors[i],
		}
		if i < len(titles) {
			rec.Title = titles[i]
		}
		if i < len(categories) {
			rec.Category = categories[i]
		}
		records = append(records, rec)
	}

	log.FromCtx(ctx).Debug().
		Str("namespace", namespace).
		Int("records", len(records)).
		Msg("fetched knowledge records from milvus")
	return records, nil
}

// Upsert replaces the namespace partition contents wholesale.
func (s *MilvusStore) Upsert(ctx context.Context, namespace string, records []core.KnowledgeRecord) error {
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}

	expr := fmt.Sprintf("namespace == %q", namespace)
	if err := s.mc.Delete(ctx, s.collection, "", expr); err != nil {
		return fmt.Errorf("clear namespace %q: %w", namespace, err)
	}
	if len(records) == 0 {
		return nil
	}

	namespaces := make([]string, len(records))
	titles := make([]string, len(records))
	contents := make([]string, len(records))
	categories := make([]string, len(records))
	vectors := make([][]float32, len(records))
	for i, rec := range records {
		if len(rec.Embedding) != s.vectorSize {
			return fmt.Errorf("record %d: embedding has %d dims, collection expects %d", i, len(rec.Embedding), s.vectorSize)
		}
		namespaces[i] = namespace
		titles[i] = rec.Title
		contents[i] = rec.Content
		categories[i] = rec.Category
		vectors[i] = rec.Embedding
	}

	_, err := s.mc.Insert(ctx, s.collection, "",
		entity.NewColumnVarChar("namespace", namespaces),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnVarChar("category", categories),
		entity.NewColumnFloatVector("embedding", s.vectorSize, vectors),
	)
	if err != nil {
		return fmt.Errorf("insert into %q: %w", s.collection, err)
	}

	if err := s.mc.Flush(ctx, s.collection, false); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("flush after upsert failed")
	}
	return nil
}

func varcharColumn(rs client.ResultSet, name string) ([]string, error) {
	col := rs.GetColumn(name)
	if col == nil {
		return nil, nil
	}
	vc, ok := col.(*entity.ColumnVarChar)
	if !ok {
		return nil, fmt.Errorf("column %q: unexpected type %T", name, col)
	}
	return vc.Data(), nil
}

func vectorColumn(rs client.ResultSet, name string) ([][]float32, error) {
	col := rs.GetColumn(name)
	if col == nil {
		return nil, nil
	}
	fv, ok := col.(*entity.ColumnFloatVector)
	if !ok {
		return nil, fmt.Errorf("column %q: unexpected type %T", name, col)
	}
	return fv.Data(), nil
}

var (
	_ core.KnowledgeStore  = (*MilvusStore)(nil)
	_ core.KnowledgeWriter = (*MilvusStore)(nil)
)
