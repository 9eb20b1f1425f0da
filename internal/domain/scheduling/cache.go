package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	slotCacheGenKey    = "slots:gen"
	slotCacheKeyPrefix = "slots:"
)

// CacheClient is the subset of redis commands the slot cache needs;
// *redis.Client satisfies it.
type CacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// CachedStore is a read-through Redis cache in front of a SlotStore. Only
// FetchSlots is cached. Every mutation bumps a generation counter that is part
// of the cache key, so a reload issued after a mutation never sees an older
// entry. Redis failures fall through to the store.
type CachedStore struct {
	next   SlotStore
	rdb    CacheClient
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCachedStore(next SlotStore, rdb CacheClient, ttl time.Duration, logger zerolog.Logger) *CachedStore {
	return &CachedStore{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With().Str("component", "slot_cache").Logger(),
	}
}

func (c *CachedStore) generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, slotCacheGenKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func slotCacheKey(gen int64, doctorID uuid.UUID, institutionID *uuid.UUID) string {
	inst := "all"
	if institutionID != nil {
		inst = institutionID.String()
	}
	return fmt.Sprintf("%s%d:%s:%s", slotCacheKeyPrefix, gen, doctorID, inst)
}

func (c *CachedStore) FetchSlots(ctx context.Context, doctorID uuid.UUID, institutionID *uuid.UUID) ([]RawScheduleRecord, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("read cache generation")
		return c.next.FetchSlots(ctx, doctorID, institutionID)
	}
	key := slotCacheKey(gen, doctorID, institutionID)

	if data, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var recs []RawScheduleRecord
		if err := json.Unmarshal(data, &recs); err == nil {
			return recs, nil
		}
		c.logger.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn().Err(err).Str("key", key).Msg("read slot cache")
	}

	recs, err := c.next.FetchSlots(ctx, doctorID, institutionID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(recs); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("write slot cache")
		}
	}
	return recs, nil
}

// invalidate bumps the generation. It runs after every mutation attempt,
// successful or not, since a failed call may still have reached the store.
func (c *CachedStore) invalidate(ctx context.Context) {
	// The caller's context may already be spent on a timed-out mutation.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := c.rdb.Incr(ctx, slotCacheGenKey).Err(); err != nil {
		c.logger.Error().Err(err).Msg("bump slot cache generation")
	}
}

func (c *CachedStore) ReplaceSlotRange(ctx context.Context, doctorID, institutionID uuid.UUID, oldRange, newRange TimeRange, intervalMinutes int) error {
	defer c.invalidate(ctx)
	return c.next.ReplaceSlotRange(ctx, doctorID, institutionID, oldRange, newRange, intervalMinutes)
}

func (c *CachedStore) UpdateSlot(ctx context.Context, slotID string, start, end time.Time) error {
	defer c.invalidate(ctx)
	return c.next.UpdateSlot(ctx, slotID, start, end)
}

func (c *CachedStore) DeleteSlot(ctx context.Context, slotID string) error {
	defer c.invalidate(ctx)
	return c.next.DeleteSlot(ctx, slotID)
}

func (c *CachedStore) BookSlot(ctx context.Context, slotID string, visitID uuid.UUID) error {
	defer c.invalidate(ctx)
	return c.next.BookSlot(ctx, slotID, visitID)
}

func (c *CachedStore) SetSlotState(ctx context.Context, slotID string, state SlotState) error {
	defer c.invalidate(ctx)
	return c.next.SetSlotState(ctx, slotID, state)
}

func (c *CachedStore) Reschedule(ctx context.Context, visitID uuid.UUID, fromSlotID, toSlotID string) error {
	defer c.invalidate(ctx)
	return c.next.Reschedule(ctx, visitID, fromSlotID, toSlotID)
}
