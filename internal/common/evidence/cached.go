package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"search-workers/internal/common/cache"
	"search-workers/internal/common/logger"
	"search-workers/internal/common/metrics"
	"search-workers/internal/models"
)

func cacheKey(prefix, kind, raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return prefix + kind + ":" + hex.EncodeToString(sum[:16])
}

// lookup reads and decodes a cached value. Store failures count as misses.
func lookup(ctx context.Context, s cache.Store, kind, key string, out interface{}, log logger.Logger) bool {
	val, ok, err := s.Get(ctx, key)
	if err != nil {
		metrics.EvidenceCache.WithLabelValues(kind, "error").Inc()
		log.Warn("evidence cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		return false
	}
	if !ok {
		metrics.EvidenceCache.WithLabelValues(kind, "miss").Inc()
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		metrics.EvidenceCache.WithLabelValues(kind, "error").Inc()
		return false
	}
	metrics.EvidenceCache.WithLabelValues(kind, "hit").Inc()
	return true
}

func save(ctx context.Context, s cache.Store, key string, v interface{}, log logger.Logger) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.Set(ctx, key, string(data)); err != nil {
		log.Warn("evidence cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

// CachedSearcher memoizes non-empty result lists per normalized query.
type CachedSearcher struct {
	next   Searcher
	store  cache.Store
	prefix string
	logger logger.Logger
}

func NewCachedSearcher(next Searcher, s cache.Store, prefix string, log logger.Logger) *CachedSearcher {
	return &CachedSearcher{next: next, store: s, prefix: prefix, logger: log}
}

func (c *CachedSearcher) Search(ctx context.Context, query string) ([]models.EvidenceResult, error) {
	key := cacheKey(c.prefix, "search", strings.ToLower(strings.TrimSpace(query)))

	var cached []models.EvidenceResult
	if lookup(ctx, c.store, "search", key, &cached, c.logger) {
		return cached, nil
	}

	results, err := c.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		save(ctx, c.store, key, results, c.logger)
	}
	return results, nil
}

// CachedOpener memoizes opened pages per URL.
type CachedOpener struct {
	next   Opener
	store  cache.Store
	prefix string
	logger logger.Logger
}

func NewCachedOpener(next Opener, s cache.Store, prefix string, log logger.Logger) *CachedOpener {
	return &CachedOpener{next: next, store: s, prefix: prefix, logger: log}
}

func (c *CachedOpener) Open(ctx context.Context, url string) (*models.OpenedPage, error) {
	key := cacheKey(c.prefix, "page", url)

	var cached models.OpenedPage
	if lookup(ctx, c.store, "page", key, &cached, c.logger) && cached.Content != "" {
		return &cached, nil
	}

	page, err := c.next.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	save(ctx, c.store, key, page, c.logger)
	return page, nil
}
