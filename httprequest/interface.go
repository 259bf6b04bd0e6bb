package httprequest

import (
	"context"

	"github.com/flanksource/gid-seminars/db/models"
)

// Requester defines the contract for making http calls and fetching data
type Requester interface {
	Get(ctx context.Context, url string, opts ...Option) (*Response, error)
	Do(ctx context.Context, method, url string, opts ...Option) (*Response, error)
}

// Cache persists conditional request validators between runs.
type Cache interface {
	GetHTTPCache(ctx context.Context, url string) (*models.HTTPCacheEntry, error)
	PutHTTPCache(ctx context.Context, entry models.HTTPCacheEntry) error
}

// Response is a fully read response body plus its cache validators.
type Response struct {
	URL          string
	StatusCode   int
	Body         []byte
	ETag         string
	LastModified string
	ContentHash  string

	// NotModified is set when the body was served from the local body
	// cache after the server answered 304 or returned identical content.
	NotModified bool
}

type requestOptions struct {
	headers     map[string]string
	query       [][2]string
	body        string
	conditional bool
	primary     bool
}

type Option func(*requestOptions)

func Header(key, value string) Option {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = map[string]string{}
		}
		o.headers[key] = value
	}
}

func QueryParam(key, value string) Option {
	return func(o *requestOptions) {
		o.query = append(o.query, [2]string{key, value})
	}
}

// Body sets a raw request body.
func Body(body string) Option {
	return func(o *requestOptions) {
		o.body = body
	}
}

// Conditional sends If-None-Match / If-Modified-Since from the cache.
func Conditional() Option {
	return func(o *requestOptions) {
		o.conditional = true
	}
}

// Primary marks the response whose validators are recorded on the source run.
func Primary() Option {
	return func(o *requestOptions) {
		o.primary = true
	}
}
