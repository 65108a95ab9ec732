package canvas

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/shaibs3/canvascache/internal/apperrors"
)

const (
	userAgent       = "canvascache/1.0"
	maxResponseSize = 16 << 20
	defaultTimeout  = 30 * time.Second
)

// ErrForeignHost is returned for links that leave the course's Canvas instance.
// The API key is only ever sent to the base URL's scheme and host.
var ErrForeignHost = errors.New("link points outside the Canvas instance")

// API is the upstream surface the sync engine depends on
type API interface {
	ListModules(ctx context.Context, courseID string) (Tree, error)
	FetchPage(ctx context.Context, pageURL string) (*Page, error)
	ResolveFileLink(ctx context.Context, endpoint string) (*File, error)
}

// ClientFactory builds an API bound to one snapshot's credentials
type ClientFactory func(baseURL, apiKey string) API

var _ API = (*Client)(nil)

// Client talks to a single Canvas instance with a single API key
type Client struct {
	baseURL    *url.URL
	rawBaseURL string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Canvas client. A zero timeout means the default.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	// an unparsable base only matters for relative links, where resolve reports it
	parsed, _ := url.Parse(baseURL)
	return &Client{
		baseURL:    parsed,
		rawBaseURL: baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientFactory returns a factory producing clients with a shared timeout
func NewClientFactory(timeout time.Duration) ClientFactory {
	return func(baseURL, apiKey string) API {
		return NewClient(baseURL, apiKey, timeout)
	}
}

// ListModules fetches the course's modules with their items inlined
func (c *Client) ListModules(ctx context.Context, courseID string) (Tree, error) {
	endpoint := fmt.Sprintf("%s/api/v1/courses/%s/modules?include[]=items", c.rawBaseURL, url.PathEscape(courseID))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return Tree{}, apperrors.NewUpstreamError("failed to list course modules", err)
	}
	tree, err := ParseTree(body)
	if err != nil {
		return Tree{}, apperrors.NewUpstreamError("failed to list course modules", err)
	}
	return tree, nil
}

// FetchPage fetches a wiki page by its API URL
func (c *Client) FetchPage(ctx context.Context, pageURL string) (*Page, error) {
	body, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}
	return &page, nil
}

// ResolveFileLink fetches a file's metadata, which carries its download URL
func (c *Client) ResolveFileLink(ctx context.Context, endpoint string) (*File, error) {
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	var file File
	if err := json.Unmarshal(body, &file); err != nil {
		return nil, fmt.Errorf("failed to decode file: %w", err)
	}
	if file.URL == "" {
		return nil, fmt.Errorf("file metadata has no download url")
	}
	return &file, nil
}

// resolve makes ref absolute against the client's base URL
func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", ref, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if c.baseURL == nil || !c.baseURL.IsAbs() {
		return "", fmt.Errorf("cannot resolve relative URL %q without a base URL", ref)
	}
	return c.baseURL.ResolveReference(u).String(), nil
}

// sameOrigin reports whether target shares the base URL's scheme and host
func (c *Client) sameOrigin(target string) bool {
	if c.baseURL == nil {
		return false
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, c.baseURL.Scheme) && strings.EqualFold(u.Host, c.baseURL.Host)
}

func (c *Client) get(ctx context.Context, ref string) ([]byte, error) {
	target, err := c.resolve(ref)
	if err != nil {
		return nil, err
	}
	if !c.sameOrigin(target) {
		return nil, fmt.Errorf("%w: %s", ErrForeignHost, target)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return body, nil
}

// StatusError is returned for any non-2xx upstream response
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}
