package yahoo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUpstream is returned when the resource fetch fails for reasons other
// than authentication, e.g. the provider is unreachable.
var ErrUpstream = errors.New("upstream fantasy API request failed")

// Client fetches Fantasy Sports resources on behalf of a logged-in user.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a fantasy API client. baseURL defaults to the public
// Yahoo Fantasy v2 endpoint.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch issues a GET for the given resource path with the access token as a
// bearer credential and returns the upstream status and body unmodified.
func (c *Client) Fetch(ctx context.Context, resourcePath, accessToken string) (int, []byte, error) {
	url := c.baseURL + resourcePath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return resp.StatusCode, body, nil
}
