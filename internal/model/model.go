// Package model defines the core domain types shared across the session engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a room. Transitions are monotonic:
// waiting → playing → finished, each occurring at most once.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// PriceTick is one entry in a room's append-only price history.
// The first tick is recorded at room creation with the opening price.
type PriceTick struct {
	Price decimal.Decimal `json:"price"`
	Time  time.Time       `json:"time"`
}

// Participant is a joined trader. Identity fields are copied in at join
// time and never changed; balances mutate only through trade execution.
type Participant struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Cash         decimal.Decimal `json:"cash"`
	Shares       int64           `json:"shares"`
	InitialValue decimal.Decimal `json:"initialValue"` // cash at join time, profit baseline
	JoinOrder    int             `json:"joinOrder"`    // insertion order, ranking tie break
}

// Room is one isolated game session: a single synthetic instrument whose
// price is pushed only by the participants' own trades.
//
// Version is the optimistic-concurrency token. Every committed mutation
// increments it; writers must present the version they read and lose the
// write if another commit landed in between.
type Room struct {
	ID              string                 `json:"id"` // short human-typeable code
	HostID          string                 `json:"hostId"`
	Status          Status                 `json:"status"`
	Price           decimal.Decimal        `json:"price"`
	History         []PriceTick            `json:"history"`
	TransactionFees decimal.Decimal        `json:"transactionFees"`
	DurationSeconds int                    `json:"durationSeconds"`
	StartedAt       *time.Time             `json:"startedAt,omitempty"` // set exactly once, on waiting → playing
	Players         map[string]Participant `json:"players"`
	CreatedAt       time.Time              `json:"createdAt"`
	Version         uint64                 `json:"version"`
}

// Clone returns a deep copy of the room. Stores hand out clones so callers
// can never mutate committed state in place.
func (r *Room) Clone() *Room {
	c := *r
	c.History = make([]PriceTick, len(r.History))
	copy(c.History, r.History)
	c.Players = make(map[string]Participant, len(r.Players))
	for id, p := range r.Players {
		c.Players[id] = p
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		c.StartedAt = &t
	}
	return &c
}

// TradeRecord is an immutable record of one executed trade.
// Once created, these are never modified or deleted.
type TradeRecord struct {
	ID            string          `json:"id" db:"id"`
	RoomID        string          `json:"roomId" db:"room_id"`
	ParticipantID string          `json:"participantId" db:"participant_id"`
	Direction     string          `json:"direction" db:"direction"` // "buy" or "sell"
	Price         decimal.Decimal `json:"price" db:"price"`         // post-trade price
	Fee           decimal.Decimal `json:"fee" db:"fee"`
	CashDelta     decimal.Decimal `json:"cashDelta" db:"cash_delta"` // negative for buys, positive for sells
	Timestamp     time.Time       `json:"timestamp" db:"timestamp"`
}
