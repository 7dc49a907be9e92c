package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gabrielmiguelok/golivecatalog/pkg/logging"
)

// DefaultCacheSize is the number of URLs a fetcher memoizes.
const DefaultCacheSize = 128

// maxPayloadSize caps the response body read for one list.
const maxPayloadSize = 8 << 20

// Resource is the managed result of fetching one URL. It transitions once
// from pending to ready or failed.
type Resource[T any] struct {
	url  string
	done chan struct{}

	state       ListState[T]
	watchers    map[uint64]func(ListState[T])
	nextWatcher uint64
	mu          sync.Mutex
}

func newResource[T any](url string) *Resource[T] {
	return &Resource[T]{
		url:      url,
		done:     make(chan struct{}),
		state:    ListState[T]{Status: StatusPending},
		watchers: make(map[uint64]func(ListState[T])),
	}
}

// URL returns the fetched URL.
func (r *Resource[T]) URL() string {
	return r.url
}

// State returns the current state. The items slice is shared and must not be modified.
func (r *Resource[T]) State() ListState[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Done is closed when the fetch resolves.
func (r *Resource[T]) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the fetch resolves or ctx ends.
func (r *Resource[T]) Wait(ctx context.Context) (ListState[T], error) {
	select {
	case <-ctx.Done():
		return r.State(), ctx.Err()
	case <-r.done:
		return r.State(), nil
	}
}

// Watch calls fn once when the fetch resolves, or immediately if it already
// has. Cancelling before resolution removes fn; a callback already in flight
// still runs, so owners must check their own teardown state inside fn.
func (r *Resource[T]) Watch(fn func(ListState[T])) (cancel func()) {
	r.mu.Lock()
	if r.state.Status != StatusPending {
		state := r.state
		r.mu.Unlock()
		fn(state)
		return func() {}
	}
	id := r.nextWatcher
	r.nextWatcher++
	r.watchers[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.watchers, id)
		r.mu.Unlock()
	}
}

func (r *Resource[T]) resolve(items []T, err error) {
	r.mu.Lock()
	if err != nil {
		r.state = ListState[T]{Status: StatusFailed, Failure: err}
	} else {
		r.state = ListState[T]{Status: StatusReady, Items: items}
	}
	state := r.state
	watchers := r.watchers
	r.watchers = nil
	r.mu.Unlock()

	close(r.done)
	for _, fn := range watchers {
		fn(state)
	}
}

// Fetcher issues list reads and memoizes them by URL.
type Fetcher[T any] struct {
	client    *http.Client
	userAgent string
	validate  func(T) error
	logger    logging.Logger

	cache *lru.Cache[string, *Resource[T]]
	mu    sync.Mutex
}

// FetcherOption configures a fetcher.
type FetcherOption func(*fetcherConfig)

type fetcherConfig struct {
	client    *http.Client
	userAgent string
	logger    logging.Logger
	cacheSize int
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(cfg *fetcherConfig) {
		cfg.client = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(cfg *fetcherConfig) {
		cfg.userAgent = ua
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) FetcherOption {
	return func(cfg *fetcherConfig) {
		cfg.logger = l
	}
}

// WithCacheSize sets how many URLs are memoized.
func WithCacheSize(n int) FetcherOption {
	return func(cfg *fetcherConfig) {
		cfg.cacheSize = n
	}
}

// NewFetcher creates a fetcher decoding a JSON array of T.
// validate, if non-nil, rejects individual items as malformed.
func NewFetcher[T any](validate func(T) error, opts ...FetcherOption) (*Fetcher[T], error) {
	cfg := &fetcherConfig{
		client:    &http.Client{},
		userAgent: "golivecatalog",
		logger:    logging.NopLogger{},
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	cache, err := lru.New[string, *Resource[T]](cfg.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create fetch cache: %w", err)
	}

	return &Fetcher[T]{
		client:    cfg.client,
		userAgent: cfg.userAgent,
		validate:  validate,
		logger:    cfg.logger,
		cache:     cache,
	}, nil
}

// Fetch returns the resource for url, starting the outbound call only the
// first time a URL is seen. The call outlives ctx cancellation because the
// resource is shared; only ctx values are inherited. Failed resources are
// not memoized: callers already watching see the failure, the next Fetch
// issues a new call.
func (f *Fetcher[T]) Fetch(ctx context.Context, url string) *Resource[T] {
	f.mu.Lock()
	if res, ok := f.cache.Get(url); ok {
		f.mu.Unlock()
		return res
	}
	res := newResource[T](url)
	f.cache.Add(url, res)
	f.mu.Unlock()

	go f.load(context.WithoutCancel(ctx), res)
	return res
}

// Forget drops the memoized resource for url. The next Fetch re-issues the call.
func (f *Fetcher[T]) Forget(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache.Remove(url)
}

func (f *Fetcher[T]) load(ctx context.Context, res *Resource[T]) {
	start := time.Now()
	items, err := f.get(ctx, res.url)

	if err != nil {
		f.logger.Warn("list fetch failed",
			logging.String("url", res.url),
			logging.Duration("duration", time.Since(start)),
			logging.Err(err),
		)
	} else {
		f.logger.Debug("list fetch completed",
			logging.String("url", res.url),
			logging.Int("items", len(items)),
			logging.Duration("duration", time.Since(start)),
		)
	}

	if err != nil {
		f.evict(res)
	}
	res.resolve(items, err)
}

// evict drops res from the memo unless a later Fetch already replaced it.
func (f *Fetcher[T]) evict(res *Resource[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.cache.Peek(res.url); ok && cur == res {
		f.cache.Remove(res.url)
	}
}

func (f *Fetcher[T]) get(ctx context.Context, url string) ([]T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", url, err)
	}

	return f.decode(body)
}

func (f *Fetcher[T]) decode(body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: expected a JSON array", ErrMalformedPayload)
	}

	var items []T
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if items == nil {
		items = []T{}
	}

	if f.validate != nil {
		for i, item := range items {
			if err := f.validate(item); err != nil {
				return nil, fmt.Errorf("%w: item %d: %v", ErrMalformedPayload, i, err)
			}
		}
	}
	return items, nil
}
