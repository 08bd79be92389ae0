// Package client provides a typed HTTP client SDK for the pokedex API.
//
// Every method accepts a context.Context for cancellation and trace
// propagation. Idempotent calls (GET, PUT, DELETE) are retried with
// exponential backoff on transport errors and 5xx responses; creates,
// patches, and searches are sent once.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ericreyes/pokedex/pkg/types"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRetries   = 3
	defaultRetryInitial = 200 * time.Millisecond

	pokemonPath = "/api/pokemon"
	searchPath  = "/api/pokemon/search"
)

// Config holds client configuration.
type Config struct {
	// BaseURL is the root URL of the pokedex API (for example: http://localhost:5001).
	BaseURL string
	// Timeout is the per-request timeout. Defaults to 30s.
	Timeout time.Duration
	// MaxRetries is the number of retry attempts for idempotent calls.
	// Defaults to 3; a negative value disables retries.
	MaxRetries int
	// HTTPClient overrides the underlying client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client is the typed HTTP SDK for the pokedex API.
type Client struct {
	http         *http.Client
	baseURL      string
	cfg          Config
	retryInitial time.Duration
}

// ListOptions configures pagination and ordering. Zero values are left to
// the server defaults.
type ListOptions struct {
	Limit  int
	Offset int
	Sort   string
	SortBy string
}

// PokemonList is one page of results.
type PokemonList struct {
	Items      []types.Pokemon
	Offset     int
	Limit      int
	TotalCount int
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
	Fields     []types.FieldError
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("pokedex api: %d %s", e.StatusCode, e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	for _, f := range e.Fields {
		msg += fmt.Sprintf(" [%s: %s]", f.Field, f.Message)
	}
	return msg
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsConflict reports whether err is a 409 from the API.
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// New creates a new pokedex client.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("client: BaseURL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("client: invalid BaseURL: %w", err)
	}
	cfg.BaseURL = baseURL

	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &Client{
		http:         httpClient,
		baseURL:      baseURL,
		cfg:          cfg,
		retryInitial: defaultRetryInitial,
	}, nil
}

// List returns one page of Pokemon.
func (c *Client) List(ctx context.Context, opts ListOptions) (*PokemonList, error) {
	env, err := do[[]types.Pokemon](ctx, c, http.MethodGet, pokemonPath+listQuery(opts), nil)
	if err != nil {
		return nil, fmt.Errorf("listing pokemon: %w", err)
	}
	return toList(env), nil
}

// Search returns the Pokemon matching every non-empty filter field.
func (c *Client) Search(ctx context.Context, req types.SearchRequest, opts ListOptions) (*PokemonList, error) {
	env, err := do[[]types.Pokemon](ctx, c, http.MethodPost, searchPath+listQuery(opts), req)
	if err != nil {
		return nil, fmt.Errorf("searching pokemon: %w", err)
	}
	return toList(env), nil
}

// Get returns one Pokemon by pokedex number.
func (c *Client) Get(ctx context.Context, number int) (*types.Pokemon, error) {
	env, err := do[types.Pokemon](ctx, c, http.MethodGet, itemPath(number), nil)
	if err != nil {
		return nil, fmt.Errorf("getting pokemon %d: %w", number, err)
	}
	return &env.Data, nil
}

// Create stores a new Pokemon and returns it with its assigned number.
func (c *Client) Create(ctx context.Context, req types.PokemonPayload) (*types.Pokemon, error) {
	env, err := do[types.Pokemon](ctx, c, http.MethodPost, pokemonPath, req)
	if err != nil {
		return nil, fmt.Errorf("creating pokemon: %w", err)
	}
	return &env.Data, nil
}

// Replace overwrites every field of an existing Pokemon.
func (c *Client) Replace(ctx context.Context, number int, req types.PokemonPayload) (*types.Pokemon, error) {
	env, err := do[types.Pokemon](ctx, c, http.MethodPut, itemPath(number), req)
	if err != nil {
		return nil, fmt.Errorf("replacing pokemon %d: %w", number, err)
	}
	return &env.Data, nil
}

// Patch updates only the supplied fields of an existing Pokemon.
func (c *Client) Patch(ctx context.Context, number int, req types.PokemonPatch) (*types.Pokemon, error) {
	env, err := do[types.Pokemon](ctx, c, http.MethodPatch, itemPath(number), req)
	if err != nil {
		return nil, fmt.Errorf("patching pokemon %d: %w", number, err)
	}
	return &env.Data, nil
}

// Delete removes a Pokemon and returns the remaining collection size.
// Deleting a missing record is not an error.
func (c *Client) Delete(ctx context.Context, number int) (int, error) {
	env, err := do[json.RawMessage](ctx, c, http.MethodDelete, itemPath(number), nil)
	if err != nil {
		return 0, fmt.Errorf("deleting pokemon %d: %w", number, err)
	}
	if env.Meta == nil || env.Meta.TotalCount == nil {
		return 0, nil
	}
	return *env.Meta.TotalCount, nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// do sends one API call, retrying idempotent methods, and decodes the
// success envelope.
func do[T any](ctx context.Context, c *Client, method, path string, body any) (types.Envelope[T], error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return types.Envelope[T]{}, fmt.Errorf("encoding request body: %w", err)
		}
	}

	tries := uint(1)
	if isIdempotent(method) {
		tries += uint(c.cfg.MaxRetries)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInitial

	return backoff.Retry(ctx, func() (types.Envelope[T], error) {
		return roundTrip[T](ctx, c, method, path, payload)
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(tries))
}

// roundTrip performs a single HTTP exchange. Errors that retrying cannot
// fix are wrapped with backoff.Permanent.
func roundTrip[T any](ctx context.Context, c *Client, method, path string, payload []byte) (types.Envelope[T], error) {
	var env types.Envelope[T]

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return env, backoff.Permanent(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return env, backoff.Permanent(err)
		}
		return env, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return env, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := parseAPIError(resp.StatusCode, raw)
		if resp.StatusCode >= http.StatusInternalServerError {
			return env, apiErr
		}
		return env, backoff.Permanent(apiErr)
	}

	if err := json.Unmarshal(raw, &env); err != nil {
		return env, backoff.Permanent(fmt.Errorf("decoding response body: %w", err))
	}
	return env, nil
}

func parseAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Kind: http.StatusText(status)}

	var env types.Envelope[json.RawMessage]
	if err := json.Unmarshal(raw, &env); err != nil || env.Status != types.StatusError {
		apiErr.Message = strings.TrimSpace(string(raw))
		return apiErr
	}
	if env.Message != "" {
		apiErr.Kind = env.Message
	}
	apiErr.Message = env.Error
	apiErr.Fields = env.Errors
	return apiErr
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func itemPath(number int) string {
	return pokemonPath + "/" + strconv.Itoa(number)
}

func listQuery(opts ListOptions) string {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.SortBy != "" {
		q.Set("sort_by", opts.SortBy)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func toList(env types.Envelope[[]types.Pokemon]) *PokemonList {
	list := &PokemonList{Items: env.Data}
	if list.Items == nil {
		list.Items = []types.Pokemon{}
	}
	if m := env.Meta; m != nil {
		list.Offset = deref(m.Offset)
		list.Limit = deref(m.Limit)
		list.TotalCount = deref(m.TotalCount)
	}
	return list
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
