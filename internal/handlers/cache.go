package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/victorgomez09/interceptor/internal/cache"
	"github.com/victorgomez09/interceptor/internal/chain"
	"go.uber.org/zap"
)

const (
	CacheHeader       = "X-Cache"
	defaultCacheTTL   = time.Minute
	maxCacheableBytes = 1 << 20
)

// cachedResponse is the stored form of a response.
type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// Cache answers repeated GET requests from a shared store.
// Hits short-circuit with X-Cache: HIT. Successful upstream responses are stored
// on the way back and marked X-Cache: MISS. Store failures never fail a transaction.
type Cache struct {
	store  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCache(store cache.Cache, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{store: store, ttl: ttl, logger: logger}
}

func (c *Cache) Name() string {
	return "cache"
}

func (c *Cache) HandleRequest(ctx context.Context, req *http.Request) (chain.Outcome, error) {
	if req.Method != http.MethodGet || noStore(req.Header) {
		return chain.Pass(req), nil
	}

	data, err := c.store.Get(ctx, cacheKey(req))
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			c.logger.Warn("Cache lookup failed", zap.Error(err))
		}
		return chain.Pass(req), nil
	}

	var entry cachedResponse
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("Dropping corrupt cache entry", zap.Error(err))
		return chain.Pass(req), nil
	}

	resp := chain.NewResponse(req, entry.Status, "", entry.Body)
	for key, values := range entry.Header {
		resp.Header[key] = values
	}
	resp.Header.Set(CacheHeader, "HIT")
	return chain.Respond(resp), nil
}

func (c *Cache) HandleResponse(ctx context.Context, resp *http.Response) (*http.Response, error) {
	req := resp.Request
	if req == nil || req.Method != http.MethodGet || resp.StatusCode != http.StatusOK {
		return resp, nil
	}
	if resp.Header.Get(CacheHeader) == "HIT" || noStore(resp.Header) || noStore(req.Header) {
		return resp, nil
	}
	if resp.ContentLength > maxCacheableBytes {
		return resp, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCacheableBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxCacheableBytes {
		resp.Body = readCloser{io.MultiReader(bytes.NewReader(body), resp.Body), resp.Body}
		return resp, nil
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	header := resp.Header.Clone()
	header.Del(CacheHeader)
	data, err := json.Marshal(cachedResponse{Status: resp.StatusCode, Header: header, Body: body})
	if err == nil {
		err = c.store.Set(ctx, cacheKey(req), data, c.ttl)
	}
	if err != nil {
		c.logger.Warn("Cache store failed", zap.String("key", cacheKey(req)), zap.Error(err))
	}

	resp.Header.Set(CacheHeader, "MISS")
	return resp, nil
}

func cacheKey(req *http.Request) string {
	return req.Method + " " + target(req)
}

func noStore(h http.Header) bool {
	return strings.Contains(h.Get("Cache-Control"), "no-store")
}

type readCloser struct {
	io.Reader
	io.Closer
}
