package ingest

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tk     *tiktoken.Tiktoken
	tkOnce sync.Once
)

func getTokenizer() *tiktoken.Tiktoken {
	tkOnce.Do(func() {
		var err error
		tk, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			panic("failed to load tiktoken: " + err.Error())
		}
	})
	return tk
}

func countTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(getTokenizer().Encode(text, nil, nil))
}

type Chunk struct {
	Text      string
	TokenSize int
	Index     int
}

type ChunkerConfig struct {
	MaxTokens     int
	OverlapTokens int
}

// AdaChunkerConfig sizes chunks for text-embedding-ada-002. Keeping
// chunks well under the context limit leaves room for several to share
// one prompt.
func AdaChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		MaxTokens:     500,
		OverlapTokens: 50,
	}
}

// ChunkText splits article text into token-bounded chunks on sentence
// boundaries, carrying a small overlap between consecutive chunks so no
// fact is stranded on a boundary.
func ChunkText(text string, cfg ChunkerConfig) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := splitSentences(text)

	var chunks []Chunk
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Text:      strings.TrimSpace(current.String()),
			TokenSize: currentTokens,
			Index:     len(chunks),
		})
		current.Reset()
		currentTokens = 0
	}

	for i, sentence := range sentences {
		sentenceTokens := countTokens(sentence)

		// A single sentence over the limit is sliced on raw token
		// boundaries instead.
		if sentenceTokens > cfg.MaxTokens {
			flush()
			for _, piece := range sliceByTokens(sentence, cfg.MaxTokens) {
				chunks = append(chunks, Chunk{
					Text:      strings.TrimSpace(piece.Text),
					TokenSize: piece.TokenSize,
					Index:     len(chunks),
				})
			}
			continue
		}

		if currentTokens+sentenceTokens > cfg.MaxTokens && current.Len() > 0 {
			flush()
			overlap := overlapTail(sentences, i, cfg.OverlapTokens)
			current.WriteString(overlap)
			currentTokens = countTokens(overlap)
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
		currentTokens += sentenceTokens
	}
	flush()

	return chunks
}

func sliceByTokens(text string, maxTokens int) []Chunk {
	enc := getTokenizer()
	tokens := enc.Encode(text, nil, nil)

	var chunks []Chunk
	for i := 0; i < len(tokens); i += maxTokens {
		end := i + maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, Chunk{
			Text:      enc.Decode(tokens[i:end]),
			TokenSize: end - i,
		})
	}
	return chunks
}

var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true, '…': true,
}

func splitSentences(text string) []string {
	var sentences []string
	for _, para := range splitParagraphs(text) {
		var current strings.Builder
		runes := []rune(para)
		for i, r := range runes {
			current.WriteRune(r)
			if sentenceEnders[r] && (i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\t') {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
	}

	if len(sentences) == 0 && text != "" {
		return []string{text}
	}
	return sentences
}

// splitParagraphs collapses soft line wraps inside paragraphs and splits
// on blank lines.
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var result []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(strings.ReplaceAll(p, "\n", " "))
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// overlapTail collects whole sentences immediately preceding index i,
// newest last, until the overlap budget is spent.
func overlapTail(sentences []string, i, overlapTokens int) string {
	if overlapTokens <= 0 {
		return ""
	}

	var tail []string
	budget := overlapTokens
	for j := i - 1; j >= 0; j-- {
		cost := countTokens(sentences[j])
		if cost > budget {
			break
		}
		tail = append([]string{sentences[j]}, tail...)
		budget -= cost
	}
	return strings.Join(tail, " ")
}
