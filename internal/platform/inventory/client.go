package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/time/rate"
)

// DefaultPageSize is used when a listing is called with pageSize <= 0.
const DefaultPageSize = 999

// DefaultTimeout bounds a single request unless WithTimeout overrides it.
const DefaultTimeout = 30 * time.Second

// Client talks to the Inventory Service REST API using HTTP basic auth.
type Client struct {
	baseURL    *url.URL
	username   string
	password   string
	httpClient *http.Client
	limiter    *rate.Limiter
	pageSize   int
	logger     logr.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit limits requests per second. Zero disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithPageSize sets the default per_page value.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l logr.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL, username, password string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid inventory URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid inventory URL %q: scheme and host are required", baseURL)
	}

	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = DefaultTimeout

	c := &Client{
		baseURL:    u,
		username:   username,
		password:   password,
		httpClient: httpClient,
		pageSize:   DefaultPageSize,
		logger:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type pagedResponse[T any] struct {
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Results []T `json:"results"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// Ping checks that the service answers.
func (c *Client) Ping(ctx context.Context) error {
	var resp statusResponse
	if err := c.get(ctx, "/api/status", nil, &resp); err != nil {
		return fmt.Errorf("ping inventory: %w", err)
	}
	return nil
}

// ListHosts returns every host matching query, walking all pages.
func (c *Client) ListHosts(ctx context.Context, query string, pageSize int) ([]Host, error) {
	hosts, err := listAll[Host](ctx, c, "/api/hosts", query, c.perPage(pageSize))
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	return hosts, nil
}

// GetHost returns the host with full parameters. ErrNotFound if unknown.
func (c *Client) GetHost(ctx context.Context, idOrName string) (*Host, error) {
	var host Host
	if err := c.get(ctx, "/api/hosts/"+url.PathEscape(idOrName), nil, &host); err != nil {
		return nil, fmt.Errorf("get host %s: %w", idOrName, err)
	}
	return &host, nil
}

// ListHostgroups returns all hostgroups, optionally filtered by name.
func (c *Client) ListHostgroups(ctx context.Context, pageSize int, nameFilter string) ([]Hostgroup, error) {
	search := ""
	if nameFilter != "" {
		search = "name ~ " + nameFilter
	}
	groups, err := listAll[Hostgroup](ctx, c, "/api/hostgroups", search, c.perPage(pageSize))
	if err != nil {
		return nil, fmt.Errorf("list hostgroups: %w", err)
	}
	return groups, nil
}

// Reserve tags up to amount free hosts matching query with reason and
// returns the hosts actually reserved, possibly none.
func (c *Client) Reserve(ctx context.Context, query string, amount int, reason string) ([]Host, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("amount", strconv.Itoa(amount))
	params.Set("reason", reason)

	var hosts []Host
	err := c.get(ctx, "/api/hosts_reserve", params, &hosts)
	switch {
	case IsNotFound(err):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("reserve %d hosts: %w", amount, err)
	}
	return hosts, nil
}

// Release clears the reservation of every host matching query.
// A query matching nothing is not an error.
func (c *Client) Release(ctx context.Context, query string) ([]string, error) {
	params := url.Values{}
	params.Set("query", query)

	var names []string
	err := c.get(ctx, "/api/hosts_release", params, &names)
	switch {
	case IsNotFound(err):
		return []string{}, nil
	case err != nil:
		return nil, fmt.Errorf("release hosts: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// UpdateReason overwrites the reason on already reserved hosts matching query.
func (c *Client) UpdateReason(ctx context.Context, query, reason string) ([]Host, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("reason", reason)

	var hosts []Host
	err := c.get(ctx, "/api/update_reserved_reason", params, &hosts)
	switch {
	case IsNotFound(err):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("update reason: %w", err)
	}
	return hosts, nil
}

// ListReserved returns reserved hosts matching query.
func (c *Client) ListReserved(ctx context.Context, query string) ([]Host, error) {
	params := url.Values{}
	if query != "" {
		params.Set("query", query)
	}
	var hosts []Host
	err := c.get(ctx, "/api/show_reserved", params, &hosts)
	switch {
	case IsNotFound(err):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("list reserved hosts: %w", err)
	}
	return hosts, nil
}

// ListAvailable returns up to amount free hosts matching query.
// amount <= 0 returns all of them.
func (c *Client) ListAvailable(ctx context.Context, query string, amount int) ([]Host, error) {
	params := url.Values{}
	if query != "" {
		params.Set("query", query)
	}
	if amount > 0 {
		params.Set("amount", strconv.Itoa(amount))
	}
	var hosts []Host
	err := c.get(ctx, "/api/show_available", params, &hosts)
	switch {
	case IsNotFound(err):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("list available hosts: %w", err)
	}
	return hosts, nil
}

// UpdateHost applies a partial update.
func (c *Client) UpdateHost(ctx context.Context, idOrName string, update HostUpdate) (*Host, error) {
	body, err := json.Marshal(map[string]HostUpdate{"host": update})
	if err != nil {
		return nil, fmt.Errorf("encode host update: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, "/api/hosts/"+url.PathEscape(idOrName), nil, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var host Host
	if err := c.do(ctx, req, &host); err != nil {
		return nil, fmt.Errorf("update host %s: %w", idOrName, err)
	}
	return &host, nil
}

func (c *Client) perPage(n int) int {
	if n > 0 {
		return n
	}
	return c.pageSize
}

func listAll[T any](ctx context.Context, c *Client, path, search string, perPage int) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		params := url.Values{}
		if search != "" {
			params.Set("search", search)
		}
		params.Set("per_page", strconv.Itoa(perPage))
		params.Set("page", strconv.Itoa(page))

		var resp pagedResponse[T]
		if err := c.get(ctx, path, params, &resp); err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		all = append(all, resp.Results...)

		if len(resp.Results) == 0 || len(all) >= resp.Total {
			return all, nil
		}
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}
	return c.do(ctx, req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values, body io.Reader) (*http.Request, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, req *http.Request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	c.logger.V(2).Info("inventory request", "method", req.Method, "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrConnection, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ServiceError{
			Method:     req.Method,
			Path:       req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w (status %d)", err, resp.StatusCode)
	}
	return nil
}

// classifyTransportError maps a failed round trip onto ErrTimeout or
// ErrConnection. Cancellation of the caller's context is returned as is.
func classifyTransportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrConnection, err)
}
