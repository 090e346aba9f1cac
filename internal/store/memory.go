package store

import (
	"context"
	"sync"

	"github.com/tickwars/session-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	rooms  map[string]*model.Room
	trades []model.TradeRecord
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]*model.Room),
	}
}

func (s *MemoryStore) CreateRoom(_ context.Context, room *model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return ErrRoomExists
	}
	s.rooms[room.ID] = room.Clone()
	return nil
}

func (s *MemoryStore) GetRoom(_ context.Context, code string) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[code]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (s *MemoryStore) UpdateRoom(_ context.Context, room *model.Room, expectedVersion uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.rooms[room.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != expectedVersion {
		return ErrVersionConflict
	}
	room.Version = expectedVersion + 1
	s.rooms[room.ID] = room.Clone()
	return nil
}

func (s *MemoryStore) InsertTradeRecord(_ context.Context, rec *model.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = append(s.trades, *rec)
	return nil
}

func (s *MemoryStore) GetTradeRecordsByRoom(_ context.Context, roomID string) ([]model.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.TradeRecord
	for _, t := range s.trades {
		if t.RoomID == roomID {
			result = append(result, t)
		}
	}
	return result, nil
}
