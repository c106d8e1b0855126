package directory

import (
	"context"
	"time"

	"servicedesk/internal/common/database"
	"servicedesk/internal/common/logger"
	"servicedesk/internal/models"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "directory:"

// Source is everything Cached can front.
type Source interface {
	WorkerDirectory
	PropertyDirectory
	ContactDirectory
}

// Cached fronts a Source with Redis. Only successful lookups are cached and
// Redis failures fall through to the source.
type Cached struct {
	source Source
	rdb    redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCached(source Source, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *Cached {
	return &Cached{
		source: source,
		rdb:    rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "directory-cache"}),
	}
}

func (c *Cached) Lookup(ctx context.Context, workerID string) (models.Worker, error) {
	return through(ctx, c, keyPrefix+"worker:"+workerID, func() (models.Worker, error) {
		return c.source.Lookup(ctx, workerID)
	})
}

func (c *Cached) DisplayName(ctx context.Context, workerID string) string {
	return displayName(ctx, c, workerID)
}

func (c *Cached) TenantName(ctx context.Context, tenantID string) (string, error) {
	return through(ctx, c, keyPrefix+"tenant:"+tenantID, func() (string, error) {
		return c.source.TenantName(ctx, tenantID)
	})
}

func (c *Cached) PropertyLabel(ctx context.Context, ref models.PropertyRef) (string, error) {
	key := keyPrefix + "property:" + ref.PropertyID + ":" + ref.UnitID + ":" + ref.RoomID
	return through(ctx, c, key, func() (string, error) {
		return c.source.PropertyLabel(ctx, ref)
	})
}

func (c *Cached) Contact(ctx context.Context, recipientID string) (models.Contact, error) {
	return through(ctx, c, keyPrefix+"contact:"+recipientID, func() (models.Contact, error) {
		return c.source.Contact(ctx, recipientID)
	})
}

// InvalidateWorker drops a cached worker after it was edited or deactivated.
func (c *Cached) InvalidateWorker(ctx context.Context, workerID string) error {
	return c.rdb.Del(ctx, keyPrefix+"worker:"+workerID).Err()
}

// through returns the cached value at key, or calls load and caches its result.
func through[T any](ctx context.Context, c *Cached, key string, load func() (T, error)) (T, error) {
	var cached T
	found, err := database.GetJSON(ctx, c.rdb, key, &cached)
	if err != nil {
		c.logger.Warn("directory cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
	if found {
		return cached, nil
	}

	v, err := load()
	if err != nil {
		if !isNotFound(err) {
			c.logger.Error("directory lookup failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
		return v, err
	}
	if err := database.SetJSON(ctx, c.rdb, key, v, c.ttl); err != nil {
		c.logger.Warn("directory cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
	return v, nil
}
