// Package openlibrary is a client for the Open Library public API: search,
// work and ISBN lookups, subject browsing, and recommendations for books
// already in the catalog.
package openlibrary

import (
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

	"go.uber.org/zap"
)

// DefaultEndpoint is the public Open Library site.
const DefaultEndpoint = "https://openlibrary.org"

// ErrNotFound is returned when a lookup has no match.
var ErrNotFound = errors.New("openlibrary: not found")

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openlibrary: %s returned HTTP %d", e.URL, e.StatusCode)
}

// Client talks to an Open Library compatible endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	timeout  time.Duration
	log      *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. The client is used as given; a
// nil client keeps the default.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithTimeout sets the per-request timeout of the default HTTP client. It
// has no effect on a client passed to WithHTTPClient.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient returns a client for endpoint, or DefaultEndpoint when empty.
func NewClient(endpoint string, opts ...Option) *Client {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint: endpoint,
		timeout:  10 * time.Second,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dst any) error {
	u := c.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("openlibrary: %w", err)
	}
	defer resp.Body.Close()
	c.log.Debug("catalog request", zap.String("url", u), zap.Int("status", resp.StatusCode), zap.Duration("took", time.Since(start)))

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, URL: u}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("openlibrary: decode %s: %w", path, err)
	}
	return nil
}

// Search runs a free-text search.
func (c *Client) Search(ctx context.Context, q string, limit int) ([]Doc, error) {
	return c.search(ctx, url.Values{"q": {q}}, limit)
}

// SearchAuthor lists books by author.
func (c *Client) SearchAuthor(ctx context.Context, author string, limit int) ([]Doc, error) {
	return c.search(ctx, url.Values{"author": {author}}, limit)
}

func (c *Client) search(ctx context.Context, q url.Values, limit int) ([]Doc, error) {
	q.Set("limit", strconv.Itoa(limit))
	var res SearchResult
	if err := c.getJSON(ctx, "/search.json", q, &res); err != nil {
		return nil, err
	}
	return res.Docs, nil
}

// Work fetches a work or edition by key, e.g. /works/OL45804W.
func (c *Client) Work(ctx context.Context, key string) (Work, error) {
	if !strings.HasPrefix(key, "/") {
		return Work{}, fmt.Errorf("openlibrary: key %q must start with /", key)
	}
	var w Work
	err := c.getJSON(ctx, key+".json", nil, &w)
	return w, err
}

// Related lists works related to a work key.
func (c *Client) Related(ctx context.Context, workKey string) ([]SubjectWork, error) {
	var res struct {
		Works []SubjectWork `json:"works"`
	}
	if err := c.getJSON(ctx, workKey+"/related.json", nil, &res); err != nil {
		return nil, err
	}
	return res.Works, nil
}

// ByISBN looks up one edition by ISBN.
func (c *Client) ByISBN(ctx context.Context, isbn string) (Edition, error) {
	isbn = strings.ReplaceAll(strings.TrimSpace(isbn), "-", "")
	if isbn == "" {
		return Edition{}, fmt.Errorf("openlibrary: empty isbn")
	}
	bibkey := "ISBN:" + isbn
	var res map[string]Edition
	q := url.Values{"bibkeys": {bibkey}, "format": {"json"}, "jscmd": {"data"}}
	if err := c.getJSON(ctx, "/api/books", q, &res); err != nil {
		return Edition{}, err
	}
	e, ok := res[bibkey]
	if !ok {
		return Edition{}, ErrNotFound
	}
	return e, nil
}

// Subjects lists popular subjects.
func (c *Client) Subjects(ctx context.Context, limit int) ([]Subject, error) {
	var res struct {
		Subjects []Subject `json:"subjects"`
	}
	if err := c.getJSON(ctx, "/subjects.json", url.Values{"limit": {strconv.Itoa(limit)}}, &res); err != nil {
		return nil, err
	}
	return res.Subjects, nil
}

// BySubject lists works filed under subject.
func (c *Client) BySubject(ctx context.Context, subject string, limit int) ([]SubjectWork, error) {
	var res struct {
		Works []SubjectWork `json:"works"`
	}
	path := "/subjects/" + url.PathEscape(SubjectSlug(subject)) + ".json"
	if err := c.getJSON(ctx, path, url.Values{"limit": {strconv.Itoa(limit)}}, &res); err != nil {
		return nil, err
	}
	return res.Works, nil
}

// SubjectSlug is the path form of a subject name: "Science Fiction" becomes
// "science_fiction".
func SubjectSlug(subject string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(subject)), " ", "_")
}
