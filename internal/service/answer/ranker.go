package answer

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/deskflow/alfred/internal/core"
)

var errZeroVector = errors.New("cosine similarity undefined for zero vector")

// CosineSimilarity is the one canonical relatedness function: dot(a,b) /
// (‖a‖·‖b‖), range [-1, 1]. Errors on dimension mismatch or a zero vector.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, errZeroVector
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Rank scores every record against the query vector and returns the top
// topN matches in non-increasing score order. Ties keep the stored order.
// A full O(n) scan per query; fine at this corpus size.
func Rank(queryVector []float32, records []core.KnowledgeRecord, topN int) ([]core.RankedMatch, error) {
	if topN <= 0 || len(records) == 0 {
		return nil, nil
	}

	matches := make([]core.RankedMatch, 0, len(records))
	for i, rec := range records {
		score, err := CosineSimilarity(queryVector, rec.Embedding)
		if err != nil {
			return nil, fmt.Errorf("record %d (%q): %w", i, rec.Title, err)
		}
		matches = append(matches, core.RankedMatch{
			Content:   rec.Content,
			Score:     score,
			Embedding: rec.Embedding,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if topN < len(matches) {
		matches = matches[:topN]
	}
	return matches, nil
}
