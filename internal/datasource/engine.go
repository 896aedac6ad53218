package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"
)

// PageMeta identifies the page a data bundle belongs to.
type PageMeta struct {
	PageID      string `json:"pageId"`
	PageName    string `json:"pageName"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Path        string `json:"path,omitempty"`
}

// PageData is the aggregation result. For every configured key exactly one
// of Data[key] or Errors[key] is populated once all fetches settle.
type PageData struct {
	Data        map[string]any    `json:"data"`
	Errors      map[string]string `json:"errors"`
	PageMeta    PageMeta          `json:"pageMeta"`
	FetchTimeMs int64             `json:"fetchTimeMs"`
}

// Result is the outcome of running a single source, used by the test
// endpoint and the one-source fetch.
type Result struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode,omitempty"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Engine fetches, maps, and caches page data sources.
type Engine struct {
	client     *http.Client
	cache      *Cache
	defaultTTL time.Duration
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the per-fetch HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.client.Timeout = d
	}
}

// WithDefaultTTL sets the cache TTL applied when a config omits cacheTtlMs.
func WithDefaultTTL(d time.Duration) Option {
	return func(e *Engine) {
		e.defaultTTL = d
	}
}

// WithLogger injects a logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithHTTPClient replaces the HTTP client (tests).
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		e.client = c
	}
}

// NewEngine creates an engine with a 10s fetch timeout and 60s default TTL.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		client:     &http.Client{Timeout: 10 * time.Second},
		cache:      NewCache(),
		defaultTTL: 60 * time.Second,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cache exposes the engine's cache for admin operations.
func (e *Engine) Cache() *Cache {
	return e.cache
}

// FetchAll runs every configured source concurrently and waits for all of
// them to settle. A failing source lands in Errors under its key; it never
// aborts the aggregation.
func (e *Engine) FetchAll(ctx context.Context, configs map[string]Config, params map[string]string) *PageData {
	keys := make([]string, 0, len(configs))
	for k := range configs {
		keys = append(keys, k)
	}
	return e.fetchKeys(ctx, configs, keys, params)
}

// FetchBatch runs only the listed sources, returning the same shape as
// FetchAll restricted to the requested keys. Unknown keys report an error.
func (e *Engine) FetchBatch(ctx context.Context, configs map[string]Config, keys []string, params map[string]string) *PageData {
	return e.fetchKeys(ctx, configs, keys, params)
}

func (e *Engine) fetchKeys(ctx context.Context, configs map[string]Config, keys []string, params map[string]string) *PageData {
	start := time.Now()
	result := &PageData{
		Data:   make(map[string]any),
		Errors: make(map[string]string),
	}

	sort.Strings(keys)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, key := range keys {
		cfg, ok := configs[key]
		if !ok {
			result.Errors[key] = fmt.Sprintf("data source %q is not configured", key)
			continue
		}

		wg.Add(1)
		go func(key string, cfg Config) {
			defer wg.Done()
			value, err := e.fetchOne(ctx, cfg, params)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[key] = err.Error()
				return
			}
			result.Data[key] = value
		}(key, cfg)
	}
	wg.Wait()

	result.FetchTimeMs = time.Since(start).Milliseconds()
	if result.FetchTimeMs < 1 {
		result.FetchTimeMs = 1
	}
	return result
}

// fetchOne resolves a single source: cache, fetch by type, field mapping,
// cache fill. All failure modes come back as an error for the caller to
// file under Errors[key].
func (e *Engine) fetchOne(ctx context.Context, cfg Config, params map[string]string) (any, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.CacheKey != "" {
		if v, ok := e.cache.Get(cfg.CacheKey); ok {
			cacheHits.Inc()
			return v, nil
		}
		cacheMisses.Inc()
	}

	fetchStart := time.Now()
	raw, err := e.fetchRaw(ctx, cfg, params)
	fetchDuration.Observe(time.Since(fetchStart).Seconds())
	if err != nil {
		fetchTotal.WithLabelValues(cfg.Type, "error").Inc()
		return nil, err
	}
	fetchTotal.WithLabelValues(cfg.Type, "success").Inc()

	value := raw
	if len(cfg.FieldMapping) > 0 {
		value = applyMapping(raw, cfg.FieldMapping)
	}

	if cfg.CacheKey != "" {
		ttl := e.defaultTTL
		if cfg.CacheTTLMs > 0 {
			ttl = time.Duration(cfg.CacheTTLMs) * time.Millisecond
		}
		e.cache.Set(cfg.CacheKey, value, ttl)
	}
	return value, nil
}

func (e *Engine) fetchRaw(ctx context.Context, cfg Config, params map[string]string) (any, error) {
	switch cfg.Type {
	case TypeStatic:
		return cfg.StaticData, nil
	case TypeContext:
		if v, ok := params[cfg.ContextKey]; ok {
			return v, nil
		}
		return nil, nil
	case TypeAPI:
		return e.fetchAPI(ctx, cfg, params)
	default:
		return nil, fmt.Errorf("unknown data source type %q", cfg.Type)
	}
}

// fetchAPI performs the HTTP call: request params merge into the query
// string, the response body must decode as JSON, and non-2xx statuses are
// reported as errors.
func (e *Engine) fetchAPI(ctx context.Context, cfg Config, params map[string]string) (any, error) {
	method := cfg.Method
	if method == "" {
		method = http.MethodGet
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	var body io.Reader
	if method == http.MethodPost && len(params) > 0 {
		payload, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, cfg.Endpoint)
	}

	var decoded any
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return decoded, nil
}

// TestDataSource runs one source with empty request params and reports the
// outcome without touching the cache.
func (e *Engine) TestDataSource(ctx context.Context, cfg Config) Result {
	if err := cfg.Validate(); err != nil {
		return Result{Success: false, Message: err.Error()}
	}

	// Bypass the cache so the test always exercises the source.
	probe := cfg
	probe.CacheKey = ""

	value, err := e.fetchOne(ctx, probe, nil)
	if err != nil {
		res := Result{Success: false, Message: err.Error()}
		var status int
		if n, scanErr := fmt.Sscanf(err.Error(), "HTTP %d", &status); scanErr == nil && n == 1 {
			res.StatusCode = status
		}
		return res
	}
	return Result{Success: true, StatusCode: http.StatusOK, Data: value}
}
