package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"github.com/kapu/campaign-ops-go/internal/domain"
	"github.com/kapu/campaign-ops-go/internal/metrics"
	"go.uber.org/zap"
)

const scoutKeyPrefix = "campaignops:scout:"

// ScoutCache remembers successful acquisitions per URL. Cache failures are
// logged and treated as misses; they never fail a scout.
type ScoutCache struct {
	backend Cache
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewScoutCache(backend Cache, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *ScoutCache {
	return &ScoutCache{backend: backend, ttl: ttl, metrics: m, logger: logger}
}

func ScoutKey(rawURL string) string {
	sum := sha1.Sum([]byte(strings.TrimSpace(rawURL)))
	return scoutKeyPrefix + hex.EncodeToString(sum[:])
}

func (s *ScoutCache) Get(ctx context.Context, rawURL string) (domain.ScoutResult, bool) {
	if s == nil || s.backend == nil {
		return domain.ScoutResult{}, false
	}

	var result domain.ScoutResult
	found, err := s.backend.Get(ctx, ScoutKey(rawURL), &result)
	if err != nil {
		s.logger.Warn("Scout cache lookup failed", zap.String("url", rawURL), zap.Error(err))
		found = false
	}
	if found && result.IsEmpty() {
		found = false
	}
	s.metrics.CacheLookup(found)
	return result, found
}

// Put stores result unless it is empty.
func (s *ScoutCache) Put(ctx context.Context, rawURL string, result domain.ScoutResult) {
	if s == nil || s.backend == nil || result.IsEmpty() {
		return
	}
	if err := s.backend.Set(ctx, ScoutKey(rawURL), result, s.ttl); err != nil {
		s.logger.Warn("Scout cache store failed", zap.String("url", rawURL), zap.Error(err))
	}
}
