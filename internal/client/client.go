// Package client is a typed HTTP client for the transactions API.
package client

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

	"github.com/dvloznov/txledger/internal/api/dto"
	"github.com/dvloznov/txledger/internal/api/handlers"
	"github.com/dvloznov/txledger/internal/api/middleware"
	"github.com/dvloznov/txledger/internal/apperr"
	"github.com/dvloznov/txledger/internal/domain"
)

// DefaultTimeout applies when no HTTP client is supplied.
const DefaultTimeout = 30 * time.Second

// Client talks to one API server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL. A nil httpClient gets a
// default one.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Create submits a new transaction. The boolean is false when the server
// answered with an existing record for the same serial number.
func (c *Client) Create(ctx context.Context, req dto.WriteRequest) (domain.Transaction, bool, error) {
	var env dto.Envelope[dto.TransactionData]
	status, err := c.do(ctx, http.MethodPost, handlers.TransactionsPath, nil, req, &env)
	if err != nil {
		return domain.Transaction{}, false, fmt.Errorf("create transaction: %w", err)
	}
	return env.Data.Transaction.ToDomain(), status == http.StatusCreated, nil
}

// Get fetches one transaction.
func (c *Client) Get(ctx context.Context, id string) (domain.Transaction, error) {
	var env dto.Envelope[dto.TransactionData]
	if _, err := c.do(ctx, http.MethodGet, recordPath(id), nil, nil, &env); err != nil {
		return domain.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return env.Data.Transaction.ToDomain(), nil
}

// Update replaces a transaction.
func (c *Client) Update(ctx context.Context, id string, req dto.WriteRequest) (domain.Transaction, error) {
	var env dto.Envelope[dto.TransactionData]
	if _, err := c.do(ctx, http.MethodPut, recordPath(id), nil, req, &env); err != nil {
		return domain.Transaction{}, fmt.Errorf("update transaction %s: %w", id, err)
	}
	return env.Data.Transaction.ToDomain(), nil
}

// Delete removes a transaction.
func (c *Client) Delete(ctx context.Context, id string) error {
	if _, err := c.do(ctx, http.MethodDelete, recordPath(id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return nil
}

// List fetches the page after cursor. An empty cursor starts at the beginning.
func (c *Client) List(ctx context.Context, cursor string, pageSize int) (domain.Page, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if pageSize > 0 {
		q.Set("pageSize", strconv.Itoa(pageSize))
	}

	var env dto.Envelope[dto.PageData]
	if _, err := c.do(ctx, http.MethodGet, handlers.TransactionsPath, q, nil, &env); err != nil {
		return domain.Page{}, fmt.Errorf("list transactions: %w", err)
	}

	page := domain.Page{
		Items:      make([]domain.Transaction, 0, len(env.Data.Items)),
		HasNext:    env.Data.Pagination.HasNext,
		NextCursor: env.Data.Pagination.NextCursor,
	}
	for _, item := range env.Data.Items {
		page.Items = append(page.Items, item.ToDomain())
	}
	return page, nil
}

func recordPath(id string) string {
	return handlers.TransactionsPath + "/" + url.PathEscape(id)
}

// do performs one request. Non-2xx answers are returned as *apperr.Error
// carrying the server's error kind.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) (int, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resp.StatusCode, decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func decodeError(resp *http.Response) error {
	var eb middleware.ErrorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &eb); err != nil || eb.Code == 0 {
		return apperr.New(apperr.System, "server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	kind := apperr.Kind(eb.Code)
	msg := strings.TrimPrefix(eb.Error, kind.String()+": ")
	for field, problem := range eb.Details {
		msg += fmt.Sprintf("; %s %s", field, problem)
	}
	return &apperr.Error{Kind: kind, Message: msg}
}
