package preferences

import (
	"context"
	"errors"
	"time"

	"servicedesk/internal/common/database"
	apperrors "servicedesk/internal/common/errors"
	"servicedesk/internal/common/logger"
	"servicedesk/internal/models"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "prefs:"

// CachedStore reads through Redis and overwrites the cached copy on every
// Replace. Redis failures degrade to the underlying store.
type CachedStore struct {
	source Store
	rdb    redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedStore(source Store, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedStore {
	return &CachedStore{
		source: source,
		rdb:    rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "preferences-cache"}),
	}
}

func (c *CachedStore) Get(ctx context.Context, recipientID string) (models.NotificationPreferences, error) {
	key := cacheKeyPrefix + recipientID

	var prefs models.NotificationPreferences
	found, err := database.GetJSON(ctx, c.rdb, key, &prefs)
	if err != nil {
		c.logger.Warn("preferences cache read failed", map[string]interface{}{"recipientId": recipientID, "error": err.Error()})
	}
	if found {
		return prefs, nil
	}

	prefs, err = c.source.Get(ctx, recipientID)
	if err != nil {
		return prefs, err
	}
	c.store(ctx, prefs)
	return prefs, nil
}

func (c *CachedStore) Replace(ctx context.Context, prefs models.NotificationPreferences) error {
	if err := c.source.Replace(ctx, prefs); err != nil {
		return err
	}

	// Re-read so the cache carries the stored UpdatedAt.
	stored, err := c.source.Get(ctx, prefs.RecipientID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			c.logger.Warn("preferences reload after replace failed", map[string]interface{}{"recipientId": prefs.RecipientID, "error": err.Error()})
		}
		c.invalidate(ctx, prefs.RecipientID)
		return nil
	}
	c.store(ctx, stored)
	return nil
}

func (c *CachedStore) store(ctx context.Context, prefs models.NotificationPreferences) {
	if err := database.SetJSON(ctx, c.rdb, cacheKeyPrefix+prefs.RecipientID, prefs, c.ttl); err != nil {
		c.logger.Warn("preferences cache write failed", map[string]interface{}{"recipientId": prefs.RecipientID, "error": err.Error()})
	}
}

func (c *CachedStore) invalidate(ctx context.Context, recipientID string) {
	if err := c.rdb.Del(ctx, cacheKeyPrefix+recipientID).Err(); err != nil {
		c.logger.Warn("preferences cache delete failed", map[string]interface{}{"recipientId": recipientID, "error": err.Error()})
	}
}
