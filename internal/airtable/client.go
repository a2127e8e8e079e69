// Package airtable is a small client for the Airtable REST API covering the
// calls reconciliation needs: list every row, create rows, update rows.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"cardsync/internal/config"
	"cardsync/internal/domain"
	"cardsync/internal/logging"
)

const (
	defaultBaseURL  = "https://api.airtable.com/v0"
	defaultPageSize = 100
	maxBodyLog      = 500
)

// Client implements port.RecordStore against one Airtable table.
type Client struct {
	apiKey     string
	tableURL   string
	pageSize   int
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client from the store config.
func NewClient(cfg *config.AirtableConfig, logger *zap.Logger) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > defaultPageSize {
		pageSize = defaultPageSize
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		tableURL:   base + "/" + url.PathEscape(cfg.BaseID) + "/" + url.PathEscape(cfg.TableName),
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.OrNop(logger),
	}
}

type listResponse struct {
	Records []domain.ExistingRow `json:"records"`
	Offset  string               `json:"offset"`
}

// FetchAll pages through the whole table. Any failure aborts the fetch.
func (c *Client) FetchAll(ctx context.Context) ([]domain.ExistingRow, error) {
	var (
		rows   []domain.ExistingRow
		offset string
		page   int
	)
	for {
		q := url.Values{}
		q.Set("pageSize", strconv.Itoa(c.pageSize))
		if offset != "" {
			q.Set("offset", offset)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tableURL+"?"+q.Encode(), http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("airtable.FetchAll: creating request: %w", err)
		}
		body, status, err := c.do(req)
		if err != nil {
			return nil, fmt.Errorf("airtable.FetchAll: %w", err)
		}
		if status != http.StatusOK {
			return nil, &domain.StoreError{Op: "airtable.FetchAll", StatusCode: status, Body: truncate(string(body))}
		}

		var resp listResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("airtable.FetchAll: decoding page %d: %w", page, err)
		}
		rows = append(rows, resp.Records...)
		page++

		if resp.Offset == "" {
			break
		}
		offset = resp.Offset
	}

	c.logger.Debug("airtable.FetchAll: fetched rows", zap.Int("rows", len(rows)), zap.Int("pages", page))
	return rows, nil
}

// Create posts one chunk of new rows.
func (c *Client) Create(ctx context.Context, chunk []domain.CreatePayload) error {
	return c.write(ctx, "airtable.Create", http.MethodPost, chunk, http.StatusOK, http.StatusCreated)
}

// Update patches one chunk of existing rows.
func (c *Client) Update(ctx context.Context, chunk []domain.UpdatePayload) error {
	return c.write(ctx, "airtable.Update", http.MethodPatch, chunk, http.StatusOK)
}

func (c *Client) write(ctx context.Context, op, method string, records any, okStatus ...int) error {
	payload, err := json.Marshal(map[string]any{"records": records})
	if err != nil {
		return fmt.Errorf("%s: marshaling request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.tableURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, status, err := c.do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, s := range okStatus {
		if status == s {
			return nil
		}
	}
	return &domain.StoreError{Op: op, StatusCode: status, Body: truncate(string(body))}
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("calling airtable API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func truncate(s string) string {
	if len(s) <= maxBodyLog {
		return s
	}
	return s[:maxBodyLog] + "..."
}
