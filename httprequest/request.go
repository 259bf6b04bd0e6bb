package httprequest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	commonsHTTP "github.com/flanksource/commons/http"
	"github.com/flanksource/commons/logger"
	"github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	"github.com/sethvargo/go-retry"

	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/db/models"
	"github.com/flanksource/gid-seminars/utils"
)

var bodyCache = cache.New(24*time.Hour, 48*time.Hour)

// SetBodyCacheTTL resizes the in-memory body cache used for 304 responses.
func SetBodyCacheTTL(ttl time.Duration) {
	bodyCache = cache.New(ttl, 2*ttl)
}

// Client performs requests on behalf of a single source.
type Client struct {
	SourceID       string
	MaxRetries     int
	RetryDelayBase time.Duration
	Timeout        time.Duration
	UserAgent      string

	client *commonsHTTP.Client
	cache  Cache
	log    logger.Logger

	mu      sync.Mutex
	primary *Response
}

func NewClient(sourceID string, cfg v1.HTTPConfig, c Cache, log logger.Logger) *Client {
	if log == nil {
		log = logger.StandardLogger()
	}
	return &Client{
		SourceID:       sourceID,
		MaxRetries:     cfg.GetMaxRetries(),
		RetryDelayBase: cfg.GetRetryDelayBase(),
		Timeout:        cfg.GetTimeout(),
		UserAgent:      cfg.GetUserAgent(),
		client:         commonsHTTP.NewClient().Header("User-Agent", cfg.GetUserAgent()),
		cache:          c,
		log:            log,
	}
}

func (c *Client) Get(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, opts...)
}

// Do retries failed attempts with exponential backoff (base, 2*base, ...)
// and returns a NetworkError once MaxRetries attempts have failed.
func (c *Client) Do(ctx context.Context, method, url string, opts ...Option) (*Response, error) {
	o := &requestOptions{}
	for _, opt := range opts {
		opt(o)
	}

	var cached *models.HTTPCacheEntry
	if o.conditional && c.cache != nil {
		entry, err := c.cache.GetHTTPCache(ctx, url)
		if err != nil {
			c.log.Warnf("[%s] failed to read http cache for %s: %v", c.SourceID, url, err)
		}
		cached = entry
	}

	maxRetries := c.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	base := c.RetryDelayBase
	if base <= 0 {
		base = time.Millisecond
	}
	backoff := retry.WithMaxRetries(uint64(maxRetries-1), retry.NewExponential(base))

	var (
		attempts int
		lastErr  error
		response *Response
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		r, err := c.attempt(ctx, method, url, o, cached)
		if err != nil {
			lastErr = err
			if attempts < maxRetries {
				c.log.Warnf("[%s] request to %s failed (attempt %d/%d): %v", c.SourceID, url, attempts, maxRetries, err)
			}
			return retry.RetryableError(err)
		}
		response = r
		return nil
	})
	if err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return nil, &v1.NetworkError{
			SourceID: c.SourceID,
			Message:  fmt.Sprintf("Request failed after %d attempts: %v", attempts, lastErr),
			Cause:    lastErr,
		}
	}

	if o.conditional {
		c.remember(ctx, response)
	}
	if o.primary {
		c.mu.Lock()
		c.primary = response
		c.mu.Unlock()
	}
	return response, nil
}

func (c *Client) attempt(ctx context.Context, method, url string, o *requestOptions, cached *models.HTTPCacheEntry) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req := c.client.R(ctx)
	for k, v := range o.headers {
		req = req.Header(k, v)
	}
	for _, q := range o.query {
		req = req.QueryParam(q[0], q[1])
	}

	body, hasBody := bodyCache.Get(url)
	if cached != nil && hasBody {
		if cached.ETag != "" {
			req = req.Header("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req = req.Header("If-Modified-Since", cached.LastModified)
		}
	}
	if o.body != "" {
		if err := req.Body(o.body); err != nil {
			return nil, err
		}
	}

	resp, err := req.Do(method, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() // nolint:errcheck

	out := &Response{
		URL:          url,
		StatusCode:   resp.StatusCode,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}

	if resp.StatusCode == http.StatusNotModified && cached != nil && hasBody {
		out.Body = body.([]byte)
		out.ETag = lo.CoalesceOrEmpty(out.ETag, cached.ETag)
		out.LastModified = lo.CoalesceOrEmpty(out.LastModified, cached.LastModified)
		out.ContentHash = cached.ContentHash
		out.NotModified = true
		return out, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s returned HTTP %d", method, url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	out.Body = data
	out.ContentHash = utils.ContentHash(data)
	if cached != nil && cached.ContentHash == out.ContentHash {
		out.NotModified = true
	}
	return out, nil
}

func (c *Client) remember(ctx context.Context, r *Response) {
	bodyCache.SetDefault(r.URL, r.Body)
	if c.cache == nil {
		return
	}
	entry := models.HTTPCacheEntry{
		URL:          r.URL,
		ETag:         r.ETag,
		LastModified: r.LastModified,
		ContentHash:  r.ContentHash,
		CachedAt:     utils.NaiveNow(),
	}
	if err := c.cache.PutHTTPCache(ctx, entry); err != nil {
		c.log.Warnf("[%s] failed to update http cache for %s: %v", c.SourceID, r.URL, err)
	}
}

// Primary returns the response fetched with the Primary option, if any.
func (c *Client) Primary() *Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.primary
}
