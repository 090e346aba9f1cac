// Package game provides the session core: room registry, trade execution,
// lifecycle transitions, and the HTTP/WebSocket surface over them.
//
// All monetary values use shopspring/decimal — never float64 for money.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tickwars/session-engine/internal/market"
	"github.com/tickwars/session-engine/internal/metrics"
	"github.com/tickwars/session-engine/internal/model"
	"github.com/tickwars/session-engine/internal/rank"
	"github.com/tickwars/session-engine/internal/roomcode"
	"github.com/tickwars/session-engine/internal/session"
	"github.com/tickwars/session-engine/internal/store"
)

var (
	// ErrRoomStarted is returned when joining a room past the waiting state.
	ErrRoomStarted = errors.New("game: room has already started")

	// ErrUnknownParticipant is returned when the acting participant has not
	// joined the room.
	ErrUnknownParticipant = errors.New("game: participant not in room")

	// ErrSessionNotActive is returned for trades outside the playing state.
	ErrSessionNotActive = errors.New("game: session is not active")

	// ErrInsufficientFunds is returned when a buy exceeds the participant's
	// cash balance.
	ErrInsufficientFunds = errors.New("game: insufficient cash for buy")

	// ErrInsufficientShares is returned when a sell exceeds the
	// participant's position.
	ErrInsufficientShares = errors.New("game: no shares to sell")

	// ErrConflict is returned when a trade repeatedly lost the optimistic
	// write race and the retry budget is exhausted. The trade was not
	// applied; the caller may try again.
	ErrConflict = errors.New("game: room is under heavy contention, try again")

	// ErrCodesExhausted is returned when no free room code could be found.
	ErrCodesExhausted = errors.New("game: could not allocate a room code")
)

// Config carries the game tunables. Zero values are replaced by defaults.
type Config struct {
	OpeningPrice     decimal.Decimal
	StartingCash     decimal.Decimal
	DurationSeconds  int
	MaxTradeAttempts int           // bounded optimistic retry per trade
	RetryBackoff     time.Duration // base backoff between retries
}

// DefaultConfig returns the canonical game parameters.
func DefaultConfig() Config {
	return Config{
		OpeningPrice:     decimal.NewFromInt(100),
		StartingCash:     decimal.NewFromInt(1000),
		DurationSeconds:  300,
		MaxTradeAttempts: 5,
		RetryBackoff:     10 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.OpeningPrice.LessThanOrEqual(decimal.Zero) {
		c.OpeningPrice = def.OpeningPrice
	}
	if c.StartingCash.LessThanOrEqual(decimal.Zero) {
		c.StartingCash = def.StartingCash
	}
	if c.DurationSeconds <= 0 {
		c.DurationSeconds = def.DurationSeconds
	}
	if c.MaxTradeAttempts <= 0 {
		c.MaxTradeAttempts = def.MaxTradeAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = def.RetryBackoff
	}
	return c
}

// maxCodeAttempts bounds the collision-check loop during room creation.
const maxCodeAttempts = 25

// Service is the session core behind the action surface. Every mutation
// goes through a read-compute-commit cycle against the versioned store:
// the commit is conditioned on the version read, and a lost race retries
// from a fresh snapshot up to a bounded number of attempts.
//
// Pass nil for hub if WebSocket broadcasting is not needed.
type Service struct {
	store store.Store
	cfg   Config
	wsHub *WSHub
}

// NewService creates a new game service.
func NewService(st store.Store, cfg Config, hub *WSHub) *Service {
	return &Service{
		store: st,
		cfg:   cfg.withDefaults(),
		wsHub: hub,
	}
}

// CreateRoom allocates a fresh room code, creates the room in waiting
// status with the host as sole participant, and records the opening tick.
func (s *Service) CreateRoom(ctx context.Context, hostID, hostName string) (*model.Room, error) {
	if hostID == "" {
		return nil, fmt.Errorf("%w: empty host id", ErrUnknownParticipant)
	}

	now := time.Now().UTC()
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := roomcode.Generate()
		if err != nil {
			return nil, err
		}

		room := &model.Room{
			ID:              code,
			HostID:          hostID,
			Status:          model.StatusWaiting,
			Price:           s.cfg.OpeningPrice,
			History:         []model.PriceTick{{Price: s.cfg.OpeningPrice, Time: now}},
			TransactionFees: decimal.Zero,
			DurationSeconds: s.cfg.DurationSeconds,
			Players: map[string]model.Participant{
				hostID: s.newParticipant(hostID, hostName, 0),
			},
			CreatedAt: now,
		}

		err = s.store.CreateRoom(ctx, room)
		if errors.Is(err, store.ErrRoomExists) {
			continue // collision with an active room, draw another code
		}
		if err != nil {
			return nil, err
		}

		slog.Info("room created", "room", code, "host", hostID, "price", room.Price.String())
		return room, nil
	}
	return nil, ErrCodesExhausted
}

// JoinRoom admits a participant into a waiting room with the standard
// starting balances. Joining twice overwrites the participant's entry
// (keyed by id) and resets the balances to the starting values.
func (s *Service) JoinRoom(ctx context.Context, code, participantID, name string) (*model.Room, error) {
	if err := roomcode.Validate(code); err != nil {
		return nil, err
	}
	if participantID == "" {
		return nil, fmt.Errorf("%w: empty participant id", ErrUnknownParticipant)
	}

	room, err := s.commit(ctx, code, func(r *model.Room) error {
		if !session.CanJoin(r) {
			return ErrRoomStarted
		}
		order := len(r.Players)
		if existing, ok := r.Players[participantID]; ok {
			order = existing.JoinOrder // rejoin keeps the original slot
		}
		r.Players[participantID] = s.newParticipant(participantID, name, order)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("participant joined", "room", code, "participant", participantID)
	s.broadcast(room)
	return room, nil
}

// StartSession transitions the room to playing. Host only. On success a
// server-side watcher is scheduled for the session deadline, so expiry does
// not depend on a client noticing it.
func (s *Service) StartSession(ctx context.Context, code, requesterID string) (*model.Room, error) {
	if err := roomcode.Validate(code); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	room, err := s.commit(ctx, code, func(r *model.Room) error {
		return session.Start(r, requesterID, now)
	})
	if err != nil {
		return nil, err
	}

	// Count rooms only while a session is running: every start arms a
	// finish watcher, so the gauge cannot be inflated by rooms that are
	// created and then abandoned in waiting.
	metrics.ActiveRooms.Inc()
	slog.Info("session started", "room", code, "duration_s", room.DurationSeconds)
	s.broadcast(room)

	if deadline, ok := session.Deadline(room); ok {
		s.scheduleFinish(room.ID, deadline)
	}
	return room, nil
}

// Trade executes one buy or sell for a participant: read the current
// snapshot, validate, quote via the market rules, and commit the four-field
// delta (price, history tick, fee accumulator, participant balances) as a
// single version-checked write. A lost race retries from a fresh snapshot;
// validation failures are rejected without mutating anything.
func (s *Service) Trade(ctx context.Context, code, participantID string, dir market.Direction) (*model.Room, *model.TradeRecord, error) {
	if err := roomcode.Validate(code); err != nil {
		return nil, nil, err
	}

	for attempt := 0; attempt < s.cfg.MaxTradeAttempts; attempt++ {
		if attempt > 0 {
			if err := s.backoff(ctx, attempt); err != nil {
				return nil, nil, err
			}
		}

		room, err := s.store.GetRoom(ctx, code)
		if err != nil {
			return nil, nil, err
		}

		if !session.CanTrade(room) {
			metrics.TradeRejectionsTotal.WithLabelValues("session_not_active").Inc()
			return nil, nil, ErrSessionNotActive
		}
		p, ok := room.Players[participantID]
		if !ok {
			return nil, nil, ErrUnknownParticipant
		}

		var fee, next, cashDelta decimal.Decimal
		switch dir {
		case market.Buy:
			var cost decimal.Decimal
			cost, fee, next = market.BuyQuote(room.Price)
			if p.Cash.LessThan(cost) {
				metrics.TradeRejectionsTotal.WithLabelValues("insufficient_funds").Inc()
				return nil, nil, ErrInsufficientFunds
			}
			p.Cash = p.Cash.Sub(cost)
			p.Shares++
			cashDelta = cost.Neg()
		case market.Sell:
			if p.Shares < 1 {
				metrics.TradeRejectionsTotal.WithLabelValues("insufficient_shares").Inc()
				return nil, nil, ErrInsufficientShares
			}
			var proceeds decimal.Decimal
			proceeds, fee, next = market.SellQuote(room.Price)
			p.Cash = p.Cash.Add(proceeds)
			p.Shares--
			cashDelta = proceeds
		default:
			return nil, nil, market.ErrInvalidDirection
		}

		now := time.Now().UTC()
		room.Price = next
		room.History = append(room.History, model.PriceTick{Price: next, Time: now})
		room.TransactionFees = room.TransactionFees.Add(fee)
		room.Players[participantID] = p

		err = s.store.UpdateRoom(ctx, room, room.Version)
		if errors.Is(err, store.ErrVersionConflict) {
			metrics.TradeConflictsTotal.Inc()
			slog.Debug("trade commit lost race, retrying",
				"room", code, "participant", participantID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		rec := &model.TradeRecord{
			ID:            uuid.New().String(),
			RoomID:        code,
			ParticipantID: participantID,
			Direction:     string(dir),
			Price:         next,
			Fee:           fee,
			CashDelta:     cashDelta,
			Timestamp:     now,
		}
		if err := s.store.InsertTradeRecord(ctx, rec); err != nil {
			// State delta already committed; the ledger entry is
			// supplementary, so log and carry on.
			slog.Error("trade record insert failed", "room", code, "err", err)
		}

		metrics.TradesTotal.WithLabelValues(string(dir)).Inc()
		slog.Info("trade executed",
			"trade_id", rec.ID,
			"room", code,
			"participant", participantID,
			"direction", dir,
			"price", next.String(),
			"fee", fee.String(),
		)

		s.broadcast(room)
		return room, rec, nil
	}

	return nil, nil, ErrConflict
}

// FinishIfExpired transitions the room to finished once its deadline has
// passed. Idempotent: concurrent observers race harmlessly, the first
// commit wins and every other call is a no-op.
func (s *Service) FinishIfExpired(ctx context.Context, code string) (*model.Room, error) {
	if err := roomcode.Validate(code); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var finished bool
	room, err := s.commit(ctx, code, func(r *model.Room) error {
		finished = session.FinishIfExpired(r, now)
		if !finished {
			return errNothingToCommit
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if finished {
		metrics.ActiveRooms.Dec()
		metrics.SessionsFinishedTotal.Inc()
		slog.Info("session finished", "room", code, "final_price", room.Price.String())
		s.broadcast(room)
	}
	return room, nil
}

// GetRoom returns the current room snapshot.
func (s *Service) GetRoom(ctx context.Context, code string) (*model.Room, error) {
	if err := roomcode.Validate(code); err != nil {
		return nil, err
	}
	return s.store.GetRoom(ctx, code)
}

// Rankings returns the leaderboard at the room's current price, usable
// mid-session or at settlement.
func (s *Service) Rankings(ctx context.Context, code string) ([]rank.Standing, error) {
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	return rank.Rank(room.Players, room.Price), nil
}

// TradeHistory returns the room's immutable trade ledger in commit order.
func (s *Service) TradeHistory(ctx context.Context, code string) ([]model.TradeRecord, error) {
	if err := roomcode.Validate(code); err != nil {
		return nil, err
	}
	if _, err := s.store.GetRoom(ctx, code); err != nil {
		return nil, err
	}
	return s.store.GetTradeRecordsByRoom(ctx, code)
}

// --- Internals ---

// errNothingToCommit short-circuits commit when the mutation decided the
// document does not need to change (e.g. an idempotent no-op transition).
var errNothingToCommit = errors.New("game: nothing to commit")

// commit runs the read-mutate-write cycle with a version-checked write and
// bounded retry. mutate is called on a fresh snapshot each attempt and must
// be side-effect free apart from mutating the snapshot.
func (s *Service) commit(ctx context.Context, code string, mutate func(*model.Room) error) (*model.Room, error) {
	for attempt := 0; attempt < s.cfg.MaxTradeAttempts; attempt++ {
		if attempt > 0 {
			if err := s.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		room, err := s.store.GetRoom(ctx, code)
		if err != nil {
			return nil, err
		}

		if err := mutate(room); err != nil {
			if errors.Is(err, errNothingToCommit) {
				return room, nil
			}
			return nil, err
		}

		err = s.store.UpdateRoom(ctx, room, room.Version)
		if errors.Is(err, store.ErrVersionConflict) {
			metrics.TradeConflictsTotal.Inc()
			continue
		}
		if err != nil {
			return nil, err
		}
		return room, nil
	}
	return nil, ErrConflict
}

// backoff sleeps a small multiple of the base backoff, honoring ctx.
func (s *Service) backoff(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(attempt) * s.cfg.RetryBackoff):
		return nil
	}
}

func (s *Service) newParticipant(id, name string, order int) model.Participant {
	return model.Participant{
		ID:           id,
		Name:         name,
		Cash:         s.cfg.StartingCash,
		Shares:       0,
		InitialValue: s.cfg.StartingCash,
		JoinOrder:    order,
	}
}

func (s *Service) broadcast(room *model.Room) {
	if s.wsHub != nil {
		s.wsHub.BroadcastRoom(room)
	}
}

// scheduleFinish arms a server-side timer for the session deadline. The
// transition itself stays idempotent, so this coexists safely with clients
// calling FinishIfExpired on their own clock.
func (s *Service) scheduleFinish(code string, deadline time.Time) {
	time.AfterFunc(time.Until(deadline), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := s.FinishIfExpired(ctx, code); err != nil {
			slog.Warn("deadline watcher could not finish session", "room", code, "err", err)
		}
	})
}
