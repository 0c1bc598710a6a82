package knowledge

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/deskflow/alfred/internal/core"
	"github.com/deskflow/alfred/pkg/log"
)

// CSVStore reads a flat tabular snapshot of the knowledge base: one file
// per namespace, columns title,content,embedding[,category]. Simple and
// fine for small corpora; the whole file is reloaded on every fetch.
type CSVStore struct {
	dir string
}

func NewCSVStore(dir string) *CSVStore {
	return &CSVStore{dir: dir}
}

func (s *CSVStore) path(namespace string) string {
	return filepath.Join(s.dir, namespace+".csv")
}

func (s *CSVStore) FetchAll(ctx context.Context, namespace string) ([]core.KnowledgeRecord, error) {
	f, err := os.Open(s.path(namespace))
	if err != nil {
		if os.IsNotExist(err) {
			// Namespace with no snapshot is an empty corpus, not a failure.
			return nil, nil
		}
		return nil, fmt.Errorf("open knowledge snapshot: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read knowledge snapshot: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// Skip the header row if present.
	if len(rows[0]) > 0 && rows[0][0] == "title" {
		rows = rows[1:]
	}

	records := make([]core.KnowledgeRecord, 0, len(rows))
	for i, row := range rows {
		if len(row) < 3 {
			return nil, fmt.Errorf("knowledge snapshot row %d: want at least 3 columns, got %d", i+1, len(row))
		}
		embedding, err := ParseEmbedding(row[2])
		if err != nil {
			return nil, fmt.Errorf("knowledge snapshot row %d: %w", i+1, err)
		}
		rec := core.KnowledgeRecord{
			Title:     row[0],
			Content:   row[1],
			Embedding: embedding,
		}
		if len(row) > 3 {
			rec.Category = row[3]
		}
		records = append(records, rec)
	}

	log.FromCtx(ctx).Debug().
		Str("namespace", namespace).
		Int("records", len(records)).
		Msg("loaded knowledge snapshot")
	return records, nil
}

// Upsert replaces the namespace snapshot wholesale.
func (s *CSVStore) Upsert(ctx context.Context, namespace string, records []core.KnowledgeRecord) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmp := s.path(namespace) + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create knowledge snapshot: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"title", "content", "embedding", "category"}); err != nil {
		f.Close()
		return fmt.Errorf("write snapshot header: %w", err)
	}
	for _, rec := range records {
		row := []string{rec.Title, rec.Content, SerializeEmbedding(rec.Embedding), rec.Category}
		if err := w.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("write snapshot row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, s.path(namespace))
}

var (
	_ core.KnowledgeStore  = (*CSVStore)(nil)
	_ core.KnowledgeWriter = (*CSVStore)(nil)
)
