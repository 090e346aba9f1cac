// Package store defines the persistence interface for room documents and
// the immutable trade ledger. Implementations include PostgreSQL (source of
// truth), Redis (read-through cache), and in-memory (for testing).
//
// Rooms are shared mutable documents written concurrently by every
// participant's client, so every write is conditioned on the document
// version observed at read time. A plain read-modify-write would let two
// trades computed from the same snapshot silently overwrite each other.
package store

import (
	"context"
	"errors"

	"github.com/tickwars/session-engine/internal/model"
)

var (
	// ErrNotFound is returned when no room exists for a code.
	ErrNotFound = errors.New("store: room not found")

	// ErrRoomExists is returned when creating a room whose code is taken.
	ErrRoomExists = errors.New("store: room code already in use")

	// ErrVersionConflict is returned when a conditional write loses a race:
	// the room changed between the caller's read and this write.
	ErrVersionConflict = errors.New("store: room version conflict")
)

// Store is the persistence interface.
type Store interface {
	// CreateRoom persists a new room at version 0.
	// Returns ErrRoomExists if the code is already taken.
	CreateRoom(ctx context.Context, room *model.Room) error

	// GetRoom retrieves a room snapshot by code. The returned room is a
	// copy; mutating it does not affect committed state.
	GetRoom(ctx context.Context, code string) (*model.Room, error)

	// UpdateRoom commits a mutated snapshot, conditioned on the stored
	// version still equalling expectedVersion. On success the stored and
	// passed-in room carry expectedVersion+1. Returns ErrVersionConflict
	// if another write landed first.
	UpdateRoom(ctx context.Context, room *model.Room, expectedVersion uint64) error

	// --- Immutable trade ledger ---

	// InsertTradeRecord appends an immutable trade record.
	InsertTradeRecord(ctx context.Context, rec *model.TradeRecord) error

	// GetTradeRecordsByRoom returns all trades for a room in commit order.
	GetTradeRecordsByRoom(ctx context.Context, roomID string) ([]model.TradeRecord, error)
}
