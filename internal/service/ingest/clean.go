package ingest

import (
	"fmt"
	"strings"

	"github.com/inbucket/html2text"
	"github.com/microcosm-cc/bluemonday"
)

var articlePolicy = bluemonday.UGCPolicy()

// CleanHTML turns help center article HTML into plain text suitable for
// chunking and embedding. Scripts and styling are stripped first, then
// the remaining markup is flattened.
func CleanHTML(html string) (string, error) {
	sanitized := articlePolicy.Sanitize(html)

	text, err := html2text.FromString(sanitized, html2text.Options{
		OmitLinks: true,
		TextOnly:  true,
	})
	if err != nil {
		return "", fmt.Errorf("flatten html: %w", err)
	}

	return strings.TrimSpace(text), nil
}
