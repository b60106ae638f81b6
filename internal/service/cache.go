package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"flagpole/internal/cache"
	"flagpole/internal/metrics"
	"flagpole/internal/model"
	v1 "flagpole/pkg/api/v1"
	"flagpole/pkg/logger"

	"go.uber.org/zap"
)

// payloadVersion guards cached bytes across shape changes. Bump it whenever a
// cached type changes incompatibly; old entries then read as misses instead of
// decoding into garbage.
const payloadVersion = 1

// TTLs tuned to volatility: flags and org lists change rarely, the
// per-user resolved container embeds overrides and goes stale much faster.
const (
	flagTTL     = 600 * time.Second
	userListTTL = 300 * time.Second
	resolvedTTL = 60 * time.Second
	orgListTTL  = 600 * time.Second
)

const (
	keyFlag        = "flag:%d"
	keyFlagEnabled = "flag:%d:enabled"
	keyUserFlags   = "user:%d:flags"
	keyUserView    = "user:%d:overrides"
	keyOrgFlags    = "org:%d:flags"
)

type envelope struct {
	Version int             `json:"v"`
	Data    json.RawMessage `json:"data"`
}

// CacheService is the typed façade over the cache backend: one get/set pair
// per resolved-view shape, plus the coarse invalidation entry points. It is
// agnostic to which backend is active.
type CacheService struct {
	backend  cache.Backend
	observer metrics.CacheObserver
}

func NewCacheService(backend cache.Backend, observer metrics.CacheObserver) *CacheService {
	return &CacheService{backend: backend, observer: observer}
}

func (c *CacheService) GetFlag(ctx context.Context, flagID uint64) (*model.Flag, bool) {
	var flag model.Flag
	if !c.read(ctx, fmt.Sprintf(keyFlag, flagID), "flag", &flag) {
		return nil, false
	}
	return &flag, true
}

func (c *CacheService) SetFlag(ctx context.Context, flag *model.Flag) {
	c.write(ctx, fmt.Sprintf(keyFlag, flag.ID), flag, flagTTL)
}

func (c *CacheService) GetFlagEnabled(ctx context.Context, flagID uint64) (bool, bool) {
	var enabled bool
	if !c.read(ctx, fmt.Sprintf(keyFlagEnabled, flagID), "flag_enabled", &enabled) {
		return false, false
	}
	return enabled, true
}

func (c *CacheService) SetFlagEnabled(ctx context.Context, flagID uint64, enabled bool) {
	c.write(ctx, fmt.Sprintf(keyFlagEnabled, flagID), enabled, flagTTL)
}

func (c *CacheService) GetUserFlags(ctx context.Context, userID uint64) ([]model.Flag, bool) {
	var flags []model.Flag
	if !c.read(ctx, fmt.Sprintf(keyUserFlags, userID), "user_flags", &flags) {
		return nil, false
	}
	return flags, true
}

func (c *CacheService) SetUserFlags(ctx context.Context, userID uint64, flags []model.Flag) {
	c.write(ctx, fmt.Sprintf(keyUserFlags, userID), flags, userListTTL)
}

func (c *CacheService) GetResolvedView(ctx context.Context, userID uint64) (map[string]v1.ResolvedFlag, bool) {
	var view map[string]v1.ResolvedFlag
	if !c.read(ctx, fmt.Sprintf(keyUserView, userID), "resolved_view", &view) {
		return nil, false
	}
	return view, true
}

func (c *CacheService) SetResolvedView(ctx context.Context, userID uint64, view map[string]v1.ResolvedFlag) {
	c.write(ctx, fmt.Sprintf(keyUserView, userID), view, resolvedTTL)
}

func (c *CacheService) GetOrganizationFlags(ctx context.Context, orgID uint64) ([]model.Flag, bool) {
	var flags []model.Flag
	if !c.read(ctx, fmt.Sprintf(keyOrgFlags, orgID), "org_flags", &flags) {
		return nil, false
	}
	return flags, true
}

func (c *CacheService) SetOrganizationFlags(ctx context.Context, orgID uint64, flags []model.Flag) {
	c.write(ctx, fmt.Sprintf(keyOrgFlags, orgID), flags, orgListTTL)
}

// InvalidateFlag purges the flag's own entries and every aggregate view that
// could embed it. There is no index from flag id to the user/org views it
// appears in, so correctness wins over hit rate: purge them all.
func (c *CacheService) InvalidateFlag(ctx context.Context, flagID uint64) {
	c.backend.Delete(ctx, fmt.Sprintf(keyFlag, flagID))
	c.backend.Delete(ctx, fmt.Sprintf(keyFlagEnabled, flagID))
	c.backend.DeletePattern(ctx, "user:*:flags")
	c.backend.DeletePattern(ctx, "user:*:overrides")
	c.backend.DeletePattern(ctx, "org:*:flags")
}

// InvalidateUser purges only that user's aggregate views.
func (c *CacheService) InvalidateUser(ctx context.Context, userID uint64) {
	c.backend.Delete(ctx, fmt.Sprintf(keyUserFlags, userID))
	c.backend.Delete(ctx, fmt.Sprintf(keyUserView, userID))
}

// InvalidateOrganization purges the org list plus every per-user view:
// organizational flags can appear in any member's resolved view and flag
// list, and membership is not tracked here.
func (c *CacheService) InvalidateOrganization(ctx context.Context, orgID uint64) {
	c.backend.Delete(ctx, fmt.Sprintf(keyOrgFlags, orgID))
	c.backend.DeletePattern(ctx, "user:*:flags")
	c.backend.DeletePattern(ctx, "user:*:overrides")
}

func (c *CacheService) Available(ctx context.Context) bool {
	return c.backend.IsAvailable(ctx)
}

func (c *CacheService) read(ctx context.Context, key, shape string, out any) bool {
	raw, ok := c.backend.Get(ctx, key)
	if !ok {
		c.observer.RecordMiss(shape)
		return false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Version != payloadVersion {
		// A stale or foreign payload shape is a miss, not a fault.
		logger.Warn("discarding undecodable cache entry", zap.String("key", key))
		c.backend.Delete(ctx, key)
		c.observer.RecordMiss(shape)
		return false
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		logger.Warn("discarding undecodable cache payload", zap.String("key", key), zap.Error(err))
		c.backend.Delete(ctx, key)
		c.observer.RecordMiss(shape)
		return false
	}
	c.observer.RecordHit(shape)
	return true
}

func (c *CacheService) write(ctx context.Context, key string, val any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		logger.Warn("skipping cache write, marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	raw, err := json.Marshal(envelope{Version: payloadVersion, Data: data})
	if err != nil {
		return
	}
	c.backend.Set(ctx, key, raw, ttl)
}
