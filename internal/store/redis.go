package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tickwars/session-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and refresh or invalidate the
// cache; reads check Redis first then fall back to the primary.
//
// The cached document carries its version, so a stale cache entry can at
// worst cost one extra conflict-retry round on the next write — it can
// never cause a lost update.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, refresh cache) ---

func (s *CachedStore) CreateRoom(ctx context.Context, r *model.Room) error {
	if err := s.primary.CreateRoom(ctx, r); err != nil {
		return err
	}
	s.cacheRoom(ctx, r)
	return nil
}

func (s *CachedStore) UpdateRoom(ctx context.Context, r *model.Room, expectedVersion uint64) error {
	if err := s.primary.UpdateRoom(ctx, r, expectedVersion); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			// Our cached copy was stale; drop it so the retry re-reads.
			s.rdb.Del(ctx, roomKey(r.ID))
		}
		return err
	}
	s.cacheRoom(ctx, r)
	return nil
}

func (s *CachedStore) InsertTradeRecord(ctx context.Context, rec *model.TradeRecord) error {
	if err := s.primary.InsertTradeRecord(ctx, rec); err != nil {
		return err
	}
	s.rdb.Del(ctx, tradesKey(rec.RoomID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetRoom(ctx context.Context, code string) (*model.Room, error) {
	data, err := s.rdb.Get(ctx, roomKey(code)).Bytes()
	if err == nil {
		var r model.Room
		if json.Unmarshal(data, &r) == nil {
			return &r, nil
		}
	}

	// Cache miss: read from primary.
	r, err := s.primary.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	s.cacheRoom(ctx, r)
	return r, nil
}

func (s *CachedStore) GetTradeRecordsByRoom(ctx context.Context, roomID string) ([]model.TradeRecord, error) {
	data, err := s.rdb.Get(ctx, tradesKey(roomID)).Bytes()
	if err == nil {
		var records []model.TradeRecord
		if json.Unmarshal(data, &records) == nil {
			return records, nil
		}
	}

	records, err := s.primary.GetTradeRecordsByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(records); err == nil {
		s.rdb.Set(ctx, tradesKey(roomID), data, s.ttl)
	}
	return records, nil
}

// --- Cache helpers ---

func (s *CachedStore) cacheRoom(ctx context.Context, r *model.Room) {
	if data, err := json.Marshal(r); err == nil {
		s.rdb.Set(ctx, roomKey(r.ID), data, s.ttl)
	}
}

func roomKey(code string) string   { return fmt.Sprintf("room:%s", code) }
func tradesKey(code string) string { return fmt.Sprintf("trades:%s", code) }
