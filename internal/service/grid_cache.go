package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-timetable-api/internal/dto"
	"github.com/noah-isme/campus-timetable-api/internal/models"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
)

const defaultGridCacheTTL = 10 * time.Minute

// Cache lookup results as exported on cache_lookups_total.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheStale = "stale"
	CacheError = "error"
)

// CacheRepository stores JSON payloads by key.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// GridCache keeps rendered grid views per run and mode. A nil or repository-less
// cache behaves as a permanent miss.
type GridCache struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewGridCache constructs a grid cache. Pass a nil repo to disable caching.
func NewGridCache(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *GridCache {
	if ttl <= 0 {
		ttl = defaultGridCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GridCache{repo: repo, metrics: metrics, ttl: ttl, logger: logger}
}

// Enabled reports whether lookups can ever hit.
func (g *GridCache) Enabled() bool {
	return g != nil && g.repo != nil
}

// Lookup returns the cached view of run in mode. Keys carry the run's updated_at, so a
// view built before the last change to the run is never read back. A view cached under
// another run status is treated as stale and ignored. Backend failures degrade to a miss.
func (g *GridCache) Lookup(ctx context.Context, run *models.TimetableRun, mode dto.GridMode) (*dto.GridView, bool) {
	if !g.Enabled() || run == nil {
		return nil, false
	}
	start := time.Now()
	var view dto.GridView
	err := g.repo.Get(ctx, GridCacheKey(run, mode), &view)
	result := CacheHit
	switch {
	case errors.Is(err, appErrors.ErrCacheMiss):
		result = CacheMiss
	case err != nil:
		result = CacheError
		g.logger.Warn("grid cache read failed", zap.String("run_id", run.ID), zap.String("mode", string(mode)), zap.Error(err))
	case view.Status != run.Status:
		result = CacheStale
	}
	g.metrics.RecordCacheLookup(result, time.Since(start))
	if result != CacheHit {
		return nil, false
	}
	return &view, true
}

// Store caches view under the version of run it was built from.
func (g *GridCache) Store(ctx context.Context, run *models.TimetableRun, view *dto.GridView) error {
	if !g.Enabled() || run == nil || view == nil {
		return nil
	}
	start := time.Now()
	err := g.repo.Set(ctx, GridCacheKey(run, view.Mode), view, g.ttl)
	g.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		return fmt.Errorf("store grid %s/%s: %w", run.ID, view.Mode, err)
	}
	return nil
}

// InvalidateRun drops every cached view of a run.
func (g *GridCache) InvalidateRun(ctx context.Context, runID string) error {
	if !g.Enabled() {
		return nil
	}
	if err := g.repo.DeleteByPattern(ctx, GridCachePattern(runID)); err != nil {
		return fmt.Errorf("invalidate grids of run %s: %w", runID, err)
	}
	return nil
}

// GridCacheKey is the cache key of one grid view of run as of its last update.
func GridCacheKey(run *models.TimetableRun, mode dto.GridMode) string {
	return fmt.Sprintf("timetable:grid:%s:%d:%s", run.ID, run.UpdatedAt.UnixNano(), mode)
}

// GridCachePattern matches every cached grid view of a run.
func GridCachePattern(runID string) string {
	return fmt.Sprintf("timetable:grid:%s:*", runID)
}
