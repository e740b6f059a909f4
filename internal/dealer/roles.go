package dealer

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"dealer-portal/internal/common/database"
	"dealer-portal/internal/common/logger"
	"dealer-portal/internal/common/metrics"
	"dealer-portal/internal/models"
)

// RoleResolver returns the role of the account owning email, or
// store.ErrNotFound when there is none.
type RoleResolver interface {
	Role(ctx context.Context, email string) (models.Role, error)
	Invalidate(ctx context.Context, email string)
}

type roleSource interface {
	GetRole(ctx context.Context, email string) (models.Role, error)
}

// StoreRoles reads roles straight from the accounts table.
type StoreRoles struct {
	accounts roleSource
}

func NewStoreRoles(accounts roleSource) *StoreRoles {
	return &StoreRoles{accounts: accounts}
}

func (r *StoreRoles) Role(ctx context.Context, email string) (models.Role, error) {
	return r.accounts.GetRole(ctx, email)
}

func (r *StoreRoles) Invalidate(context.Context, string) {}

// RoleCache is the subset of the Redis client used for role caching.
type RoleCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// CachedRoles caches another resolver's answers in Redis for ttl. Cache
// failures fall through to the underlying resolver; missing accounts are
// not cached.
type CachedRoles struct {
	next   RoleResolver
	cache  RoleCache
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedRoles(next RoleResolver, cache RoleCache, ttl time.Duration, log logger.Logger) *CachedRoles {
	return &CachedRoles{next: next, cache: cache, ttl: ttl, logger: log}
}

func roleKey(email string) string {
	return "dealer-portal:role:" + strings.ToLower(strings.TrimSpace(email))
}

func (c *CachedRoles) Role(ctx context.Context, email string) (models.Role, error) {
	key := roleKey(email)

	cached, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		metrics.RoleCacheLookups.WithLabelValues("hit").Inc()
		return models.Role(cached), nil
	case stderrors.Is(err, database.ErrCacheMiss):
		metrics.RoleCacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.RoleCacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("role cache read failed", map[string]interface{}{"error": err})
	}

	role, err := c.next.Role(ctx, email)
	if err != nil {
		return "", err
	}
	if err := c.cache.Set(ctx, key, string(role), c.ttl); err != nil {
		c.logger.Warn("role cache write failed", map[string]interface{}{"error": err})
	}
	return role, nil
}

// Invalidate drops the cached role so a promotion is visible on the next request.
func (c *CachedRoles) Invalidate(ctx context.Context, email string) {
	if err := c.cache.Del(ctx, roleKey(email)); err != nil {
		c.logger.Warn("role cache invalidation failed", map[string]interface{}{"error": err})
	}
	c.next.Invalidate(ctx, email)
}
