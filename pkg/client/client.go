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

	"github.com/shopspring/decimal"
)

// Client is the receivables API client. It holds no credentials; calls that
// need them take a *Session.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	var res struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.doRequest(ctx, nil, http.MethodPost, "/api/auth/login", body, &res); err != nil {
		return nil, fmt.Errorf("client.Login: %w", err)
	}
	return &Session{Token: res.Token, User: res.User}, nil
}

// Me returns the operator the session belongs to.
func (c *Client) Me(ctx context.Context, s *Session) (*User, error) {
	if s == nil {
		return nil, ErrNoSession
	}
	var u User
	if err := c.doRequest(ctx, s, http.MethodGet, "/api/auth/me", nil, &u); err != nil {
		return nil, fmt.Errorf("client.Me: %w", err)
	}
	return &u, nil
}

// ListInvoices fetches invoices, most recent first.
func (c *Client) ListInvoices(ctx context.Context, s *Session, opts ListOptions) (*InvoicePage, error) {
	if s == nil {
		return nil, ErrNoSession
	}
	params := url.Values{}
	if opts.Search != "" {
		params.Set("search", opts.Search)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
		if opts.Page > 0 {
			params.Set("page", strconv.Itoa(opts.Page))
		}
	}

	path := "/api/invoices"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var page InvoicePage
	if err := c.doRequest(ctx, s, http.MethodGet, path, nil, &page); err != nil {
		return nil, fmt.Errorf("client.ListInvoices: %w", err)
	}
	return &page, nil
}

// GetInvoice fetches a single invoice. The session may be nil.
func (c *Client) GetInvoice(ctx context.Context, s *Session, id string) (*Invoice, error) {
	var inv Invoice
	if err := c.doRequest(ctx, s, http.MethodGet, "/api/invoices/"+url.PathEscape(id), nil, &inv); err != nil {
		return nil, fmt.Errorf("client.GetInvoice: %w", err)
	}
	return &inv, nil
}

// CreateInvoice creates a pending invoice.
func (c *Client) CreateInvoice(ctx context.Context, s *Session, draft InvoiceDraft) (*Invoice, error) {
	if s == nil {
		return nil, ErrNoSession
	}
	var res struct {
		Invoice Invoice `json:"invoice"`
	}
	if err := c.doRequest(ctx, s, http.MethodPost, "/api/invoices", draft, &res); err != nil {
		return nil, fmt.Errorf("client.CreateInvoice: %w", err)
	}
	return &res.Invoice, nil
}

// UpdateInvoice replaces the editable fields of a pending invoice.
func (c *Client) UpdateInvoice(ctx context.Context, s *Session, id string, draft InvoiceDraft) (*Invoice, error) {
	if s == nil {
		return nil, ErrNoSession
	}
	var res struct {
		Invoice Invoice `json:"invoice"`
	}
	if err := c.doRequest(ctx, s, http.MethodPut, "/api/invoices/"+url.PathEscape(id), draft, &res); err != nil {
		return nil, fmt.Errorf("client.UpdateInvoice: %w", err)
	}
	return &res.Invoice, nil
}

// DeleteInvoice removes a pending invoice.
func (c *Client) DeleteInvoice(ctx context.Context, s *Session, id string) error {
	if s == nil {
		return ErrNoSession
	}
	if err := c.doRequest(ctx, s, http.MethodDelete, "/api/invoices/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("client.DeleteInvoice: %w", err)
	}
	return nil
}

// PayInvoice pays the full amount due. The session may be nil.
func (c *Client) PayInvoice(ctx context.Context, s *Session, id string, amount decimal.Decimal) (*Invoice, error) {
	var res struct {
		Invoice Invoice `json:"invoice"`
	}
	body := map[string]decimal.Decimal{"amount": amount}
	if err := c.doRequest(ctx, s, http.MethodPost, "/api/payments/"+url.PathEscape(id), body, &res); err != nil {
		return nil, fmt.Errorf("client.PayInvoice: %w", err)
	}
	return &res.Invoice, nil
}

// Stats fetches the dashboard counters.
func (c *Client) Stats(ctx context.Context, s *Session) (*Stats, error) {
	if s == nil {
		return nil, ErrNoSession
	}
	var stats Stats
	if err := c.doRequest(ctx, s, http.MethodGet, "/api/dashboard/stats", nil, &stats); err != nil {
		return nil, fmt.Errorf("client.Stats: %w", err)
	}
	return &stats, nil
}

func (c *Client) doRequest(ctx context.Context, s *Session, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s != nil && s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
		if readErr != nil {
			return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Error}
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
