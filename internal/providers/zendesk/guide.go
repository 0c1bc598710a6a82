package zendesk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/deskflow/alfred/pkg/log"
)

// Article is one Help Center article. Body is raw HTML as served by the
// Guide API.
type Article struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Section  int64  `json:"section_id"`
	Draft    bool   `json:"draft"`
	HTMLURL  string `json:"html_url"`
	Language string `json:"locale"`
}

// ListArticles pages through every published Help Center article of the
// tenant. Drafts are skipped.
func (c *Client) ListArticles(ctx context.Context) ([]Article, error) {
	logger := log.FromCtx(ctx)

	var articles []Article
	path := "/api/v2/help_center/articles.json?per_page=100"
	for path != "" {
		body, err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK)
		if err != nil {
			return nil, fmt.Errorf("list articles: %w", err)
		}

		var page struct {
			Articles []Article `json:"articles"`
			NextPage string    `json:"next_page"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode articles page: %w", err)
		}

		for _, a := range page.Articles {
			if a.Draft {
				continue
			}
			articles = append(articles, a)
		}

		path = relativePath(page.NextPage, c.baseURL)
	}

	logger.Info().Int("articles", len(articles)).Msg("fetched help center articles")
	return articles, nil
}

// relativePath strips the base URL from the API's absolute next_page
// link so paging stays on the configured host.
func relativePath(nextPage, baseURL string) string {
	if nextPage == "" {
		return ""
	}
	return strings.TrimPrefix(nextPage, baseURL)
}
