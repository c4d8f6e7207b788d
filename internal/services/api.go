// API transport for making raw HTTP requests to the node
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/desertthunder/earbump/internal/shared"
	"golang.org/x/time/rate"
)

const defaultNodeURL string = "http://127.0.0.1:12391"

// APIService performs rate limited HTTP requests against the node API.
//
// A single limiter is shared by every caller so concurrent status pollers cannot flood the node.
type APIService struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// APIOpts configures an [APIService].
type APIOpts struct {
	BaseURL           string
	APIKey            string
	HTTPClient        *http.Client
	RequestsPerSecond float64 // <= 0 disables limiting
}

// NewAPIService creates a new API transport for the node.
func NewAPIService(opts APIOpts) *APIService {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultNodeURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &APIService{
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		httpClient: opts.HTTPClient,
		limiter:    limiter,
	}
}

// BaseURL returns the node base URL.
func (a *APIService) BaseURL() string {
	return a.baseURL
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Err converts a non-2xx response into an error wrapping [shared.ErrAPIRequest].
//
// The node reports failures as {"error": code, "message": "..."}.
func (r *APIResponse) Err() error {
	if r.OK() {
		return nil
	}
	var errResp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.Body, &errResp); err == nil && errResp.Message != "" {
		return fmt.Errorf("%w (status %d): %s", shared.ErrAPIRequest, r.StatusCode, errResp.Message)
	}
	return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, r.StatusCode)
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string, query url.Values) (*APIResponse, error) {
	return a.do(ctx, http.MethodGet, path, query, "", nil)
}

// Post performs a POST request with the given body and content type and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, query url.Values, contentType string, body []byte) (*APIResponse, error) {
	return a.do(ctx, http.MethodPost, path, query, contentType, body)
}

func (a *APIService) do(ctx context.Context, method, path string, query url.Values, contentType string, body []byte) (*APIResponse, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	fullURL := a.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if a.apiKey != "" {
		req.Header.Set("X-API-KEY", a.apiKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}

	var jsonData any
	if err := json.Unmarshal(data, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}
