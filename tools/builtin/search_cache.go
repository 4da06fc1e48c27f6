package builtin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/agentswarm/internal/cache"
	"go.uber.org/zap"
)

// ResultCache is the subset of cache.Manager the search cache needs.
type ResultCache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// CachingSearch memoizes another provider's results. Cache failures are
// logged and never fail the search.
type CachingSearch struct {
	next   WebSearchProvider
	cache  ResultCache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachingSearch(next WebSearchProvider, c ResultCache, ttl time.Duration, logger *zap.Logger) *CachingSearch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingSearch{next: next, cache: c, ttl: ttl, logger: logger}
}

func (c *CachingSearch) Name() string { return c.next.Name() }

func (c *CachingSearch) Search(ctx context.Context, query string, opts WebSearchOptions) ([]WebSearchResult, error) {
	key := c.key(query, opts)

	var cached []WebSearchResult
	err := c.cache.GetJSON(ctx, key, &cached)
	switch {
	case err == nil:
		return cached, nil
	case !cache.IsCacheMiss(err):
		c.logger.Warn("search cache read failed", zap.Error(err))
	}

	results, err := c.next.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		if err := c.cache.SetJSON(ctx, key, results, c.ttl); err != nil {
			c.logger.Warn("search cache write failed", zap.Error(err))
		}
	}
	return results, nil
}

func (c *CachingSearch) key(query string, opts WebSearchOptions) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", strings.ToLower(strings.TrimSpace(query)), opts.MaxResults, opts.Region)))
	return "search:" + c.next.Name() + ":" + hex.EncodeToString(sum[:12])
}
