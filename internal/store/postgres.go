package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tickwars/session-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Monetary values are stored as NUMERIC for exact decimal precision;
// the participant map and price history are stored as JSONB since they are
// always read and written as part of the whole room document.
//
// The version column implements optimistic concurrency: updates are
// conditioned on `WHERE version = $expected` and bump the column, so a
// write computed from a stale snapshot affects zero rows.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateRoom(ctx context.Context, r *model.Room) error {
	players, err := json.Marshal(r.Players)
	if err != nil {
		return fmt.Errorf("marshal players: %w", err)
	}
	history, err := json.Marshal(r.History)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO rooms (code, host_id, status, price, history, transaction_fees,
		                    duration_seconds, started_at, players, created_at, version)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6::NUMERIC, $7, $8, $9, $10, $11)
		 ON CONFLICT (code) DO NOTHING`,
		r.ID, r.HostID, string(r.Status),
		r.Price.String(), history, r.TransactionFees.String(),
		r.DurationSeconds, r.StartedAt, players, r.CreatedAt, r.Version,
	)
	if err != nil {
		return fmt.Errorf("create room %s: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoomExists
	}
	return nil
}

func (s *PostgresStore) GetRoom(ctx context.Context, code string) (*model.Room, error) {
	var r model.Room
	var status, price, fees string
	var players, history []byte

	err := s.pool.QueryRow(ctx,
		`SELECT code, host_id, status,
		        price::TEXT, history, transaction_fees::TEXT,
		        duration_seconds, started_at, players, created_at, version
		 FROM rooms WHERE code = $1`, code).
		Scan(&r.ID, &r.HostID, &status,
			&price, &history, &fees,
			&r.DurationSeconds, &r.StartedAt, &players, &r.CreatedAt, &r.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", code, err)
	}

	r.Status = model.Status(status)
	r.Price, _ = decimal.NewFromString(price)
	r.TransactionFees, _ = decimal.NewFromString(fees)
	if err := json.Unmarshal(history, &r.History); err != nil {
		return nil, fmt.Errorf("unmarshal history for room %s: %w", code, err)
	}
	if err := json.Unmarshal(players, &r.Players); err != nil {
		return nil, fmt.Errorf("unmarshal players for room %s: %w", code, err)
	}
	return &r, nil
}

func (s *PostgresStore) UpdateRoom(ctx context.Context, r *model.Room, expectedVersion uint64) error {
	players, err := json.Marshal(r.Players)
	if err != nil {
		return fmt.Errorf("marshal players: %w", err)
	}
	history, err := json.Marshal(r.History)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE rooms
		 SET status = $2, price = $3::NUMERIC, history = $4,
		     transaction_fees = $5::NUMERIC, started_at = $6, players = $7,
		     version = version + 1
		 WHERE code = $1 AND version = $8`,
		r.ID, string(r.Status), r.Price.String(), history,
		r.TransactionFees.String(), r.StartedAt, players, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update room %s: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		// Either the room vanished or another writer committed first;
		// distinguish so trade retries don't loop on a deleted room.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM rooms WHERE code = $1)`, r.ID).Scan(&exists); err != nil {
			return fmt.Errorf("update room %s: %w", r.ID, err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	r.Version = expectedVersion + 1
	return nil
}

func (s *PostgresStore) InsertTradeRecord(ctx context.Context, rec *model.TradeRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trade_records (id, room_id, participant_id, direction, price, fee, cash_delta, timestamp)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8)`,
		rec.ID, rec.RoomID, rec.ParticipantID, rec.Direction,
		rec.Price.String(), rec.Fee.String(), rec.CashDelta.String(),
		rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert trade record: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTradeRecordsByRoom(ctx context.Context, roomID string) ([]model.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, room_id, participant_id, direction,
		        price::TEXT, fee::TEXT, cash_delta::TEXT, timestamp
		 FROM trade_records WHERE room_id = $1 ORDER BY timestamp`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.TradeRecord
	for rows.Next() {
		var rec model.TradeRecord
		var price, fee, cashDelta string
		if err := rows.Scan(&rec.ID, &rec.RoomID, &rec.ParticipantID, &rec.Direction,
			&price, &fee, &cashDelta, &rec.Timestamp); err != nil {
			return nil, err
		}
		rec.Price, _ = decimal.NewFromString(price)
		rec.Fee, _ = decimal.NewFromString(fee)
		rec.CashDelta, _ = decimal.NewFromString(cashDelta)
		records = append(records, rec)
	}
	return records, rows.Err()
}
