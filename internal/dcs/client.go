// Package dcs provides an HTTP client for the Git-backed content service that
// hosts translation resource repositories.
//
// The client speaks four endpoints: catalog search, repository lookup, the
// contents endpoint (JSON with base64 content) and the raw-file endpoint.
// HTTP status codes are mapped onto the core error taxonomy at this boundary
// so callers only ever branch on errors.Is.
package dcs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
	"github.com/FocuswithJustin/JuniperHelps/internal/logging"
)

const (
	// DefaultBaseURL is the API root of the public content service.
	DefaultBaseURL = "https://git.door43.org/api/v1"
	// DefaultRawBaseURL is the web root used for raw file downloads.
	DefaultRawBaseURL = "https://git.door43.org"
	// DefaultUserAgent identifies this client to the service.
	DefaultUserAgent = "juniper-helps/1.0"
	// DefaultStage is the catalog stage searched unless configured otherwise.
	DefaultStage = "prod"
)

// Client talks to the content service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	rawBaseURL string
	token      string
	userAgent  string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL sets the API root and the raw-file root.
func WithBaseURL(apiBase, rawBase string) Option {
	return func(c *Client) {
		if apiBase != "" {
			c.baseURL = strings.TrimSuffix(apiBase, "/")
		}
		if rawBase != "" {
			c.rawBaseURL = strings.TrimSuffix(rawBase, "/")
		}
	}
}

// WithToken sends a bearer token, which raises the service's rate limits.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger used for boundary diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a content service client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    DefaultBaseURL,
		rawBaseURL: DefaultRawBaseURL,
		userAgent:  DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.Component(c.logger, "dcs")
	return c
}

// HTTPError is an unexpected client-side status (4xx other than 404/429).
// It is final: retrying the same request will not help.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error: %s (%s)", e.Status, e.URL)
}

func (e *HTTPError) Unwrap() error {
	return errors.ErrInvalidInput
}

// CatalogQuery filters a catalog search.
type CatalogQuery struct {
	Owner    string
	Repo     string
	Stage    string
	Subject  string
	Language string
}

// SearchCatalog returns the repositories matching q. Entries that do not
// carry a name and owner are dropped and logged.
func (c *Client) SearchCatalog(ctx context.Context, q CatalogQuery) ([]Repository, error) {
	params := url.Values{}
	if q.Owner != "" {
		params.Set("owner", q.Owner)
	}
	if q.Repo != "" {
		params.Set("repo", q.Repo)
	}
	stage := q.Stage
	if stage == "" {
		stage = DefaultStage
	}
	params.Set("stage", stage)
	if q.Subject != "" {
		params.Set("subject", q.Subject)
	}
	if q.Language != "" {
		params.Set("lang", q.Language)
	}

	endpoint := c.baseURL + "/catalog/search?" + params.Encode()
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.NewParse("json", endpoint, err.Error())
	}

	repos := make([]Repository, 0, len(envelope.Data))
	for _, raw := range envelope.Data {
		repo, err := decodeRepository(raw)
		if err != nil {
			c.logger.Warn("dropping catalog entry", "endpoint", endpoint, "error", err)
			continue
		}
		repos = append(repos, repo)
	}
	return repos, nil
}

// GetRepository looks a repository up directly by owner and name.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (Repository, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, url.PathEscape(owner), url.PathEscape(name))
	body, err := c.get(ctx, endpoint)
	if err != nil {
		if errors.IsNotFound(err) {
			return Repository{}, errors.NewNotFound("repository", owner+"/"+name)
		}
		return Repository{}, err
	}
	repo, err := decodeRepository(body)
	if err != nil {
		return Repository{}, err
	}
	return repo, nil
}

// GetContents fetches a file through the contents endpoint.
func (c *Client) GetContents(ctx context.Context, fullName, path, ref string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/contents/%s?ref=%s",
		c.baseURL, escapeFullName(fullName), escapePath(path), url.QueryEscape(ref))
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var file struct {
		Type     string `json:"type"`
		Encoding string `json:"encoding"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal(body, &file); err != nil {
		// Directories come back as JSON arrays.
		if len(body) > 0 && body[0] == '[' {
			return nil, errors.NewNotFound("file", fullName+"/"+path)
		}
		return nil, errors.NewParse("json", endpoint, err.Error())
	}
	if file.Type != "" && file.Type != "file" {
		return nil, errors.NewNotFound("file", fullName+"/"+path)
	}
	if file.Encoding != "" && file.Encoding != "base64" {
		return nil, errors.NewUnsupported("content encoding", file.Encoding)
	}
	// The service wraps base64 at 60 columns.
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
	if err != nil {
		return nil, errors.NewParse("base64", endpoint, err.Error())
	}
	return data, nil
}

// GetRaw fetches a file through the raw endpoint.
func (c *Client) GetRaw(ctx context.Context, fullName, path, ref string) ([]byte, error) {
	return c.get(ctx, c.RawURL(fullName, path, ref))
}

// Exists probes a file with a HEAD request on its raw URL.
func (c *Client) Exists(ctx context.Context, fullName, path, ref string) (bool, error) {
	endpoint := c.RawURL(fullName, path, ref)
	resp, err := c.do(ctx, http.MethodHead, endpoint)
	if err != nil {
		return false, err
	}
	resp.Body.Close()

	if err := statusError(resp, endpoint); err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RawURL builds the raw download URL for a file at ref.
func (c *Client) RawURL(fullName, path, ref string) string {
	return fmt.Sprintf("%s/%s/raw/%s/%s", c.rawBaseURL, escapeFullName(fullName), url.PathEscape(ref), escapePath(path))
}

// RepositoryURL returns the browsable URL of a repository.
func (c *Client) RepositoryURL(fullName string) string {
	return c.rawBaseURL + "/" + escapeFullName(fullName)
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := statusError(resp, endpoint); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.TransientNetworkError{Op: "read", URL: endpoint, Err: err}
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &errors.TransientNetworkError{Op: strings.ToLower(method), URL: endpoint, Err: err}
	}
	return resp, nil
}

// statusError maps a non-2xx response onto the error taxonomy.
func statusError(resp *http.Response, endpoint string) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return errors.NewNotFound("url", endpoint)
	case resp.StatusCode == http.StatusTooManyRequests:
		return &errors.RateLimitedError{URL: endpoint, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusRequestTimeout:
		return &errors.TransientNetworkError{Op: "status", URL: endpoint, StatusCode: resp.StatusCode}
	default:
		return &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, URL: endpoint}
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func escapeFullName(fullName string) string {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok {
		return url.PathEscape(fullName)
	}
	return url.PathEscape(owner) + "/" + url.PathEscape(name)
}

func escapePath(p string) string {
	segments := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
