package knowledge

import (
	"fmt"
	"strconv"
	"strings"
)

// The tabular snapshot stores embeddings as a bracketed comma-separated
// float list ("[0.1, -0.2, ...]"). This is the wire format the ingest
// notebooks produced; both sides of the round trip live here.

func SerializeEmbedding(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func ParseEmbedding(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("parse embedding component %q: %w", p, err)
		}
		out = append(out, float32(f))
	}
	return out, nil
}
