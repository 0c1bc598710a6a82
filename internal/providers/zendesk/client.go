package zendesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/deskflow/alfred/internal/config"
	"github.com/deskflow/alfred/internal/core"
	"github.com/deskflow/alfred/pkg/log"
)

// Client talks to the Zendesk Support and Help Center APIs of one
// tenant subdomain with a bearer token.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

var _ core.TicketCreator = (*Client)(nil)

func NewClient(cfg config.ZendeskConfig) *Client {
	return &Client{
		baseURL:    fmt.Sprintf("https://%s.zendesk.com", cfg.Subdomain),
		apiToken:   cfg.APIToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateTicket files a ticket and returns the created record. Anything
// but a 201 is an error carrying the raw response body.
func (c *Client) CreateTicket(ctx context.Context, t core.Ticket) (*core.CreatedTicket, error) {
	payload, err := json.Marshal(map[string]core.Ticket{"ticket": t})
	if err != nil {
		return nil, fmt.Errorf("encode ticket: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/api/v2/tickets.json", bytes.NewReader(payload), http.StatusCreated)
	if err != nil {
		return nil, err
	}

	var result struct {
		Ticket core.CreatedTicket `json:"ticket"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode created ticket: %w", err)
	}

	log.FromCtx(ctx).Info().
		Int64("ticket_id", result.Ticket.ID).
		Str("subject", result.Ticket.Subject).
		Msg("zendesk ticket created")
	return &result.Ticket, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, wantStatus int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", core.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != wantStatus {
		return nil, fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, respBody)
	}
	return respBody, nil
}
