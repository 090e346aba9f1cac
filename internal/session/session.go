// Package session governs the room lifecycle state machine:
// waiting → playing → finished, never backward.
//
// The functions operate on a snapshot of a room; committing the mutated
// snapshot (with a version check) is the caller's job. That keeps the
// playing → finished transition idempotent under multiple simultaneous
// observers: whoever's commit lands first wins, every later attempt sees
// the room already finished and becomes a no-op.
package session

import (
	"errors"
	"time"

	"github.com/tickwars/session-engine/internal/model"
)

var (
	// ErrNotHost is returned when a non-host participant tries to start
	// the session.
	ErrNotHost = errors.New("session: only the host can start the session")

	// ErrAlreadyStarted is returned when start is requested outside the
	// waiting state.
	ErrAlreadyStarted = errors.New("session: session already started")
)

// CanJoin reports whether new participants may join.
func CanJoin(r *model.Room) bool {
	return r.Status == model.StatusWaiting
}

// CanTrade reports whether trades are accepted.
func CanTrade(r *model.Room) bool {
	return r.Status == model.StatusPlaying
}

// Deadline returns the wall-clock time at which the session expires.
// The second return is false until the session has started.
func Deadline(r *model.Room) (time.Time, bool) {
	if r.StartedAt == nil {
		return time.Time{}, false
	}
	return r.StartedAt.Add(time.Duration(r.DurationSeconds) * time.Second), true
}

// Start transitions the room from waiting to playing and records the start
// time. Only the host may start; starting twice is an error.
func Start(r *model.Room, requesterID string, now time.Time) error {
	if r.Status != model.StatusWaiting {
		return ErrAlreadyStarted
	}
	if requesterID != r.HostID {
		return ErrNotHost
	}
	r.Status = model.StatusPlaying
	r.StartedAt = &now
	return nil
}

// FinishIfExpired transitions the room from playing to finished once the
// deadline has passed. It reports whether this call performed the
// transition; calling it on an already-finished room, before the session
// has started, or before the deadline is a no-op, not an error. There is
// no central clock authority: any observer may request the transition.
func FinishIfExpired(r *model.Room, now time.Time) bool {
	if r.Status != model.StatusPlaying {
		return false
	}
	deadline, ok := Deadline(r)
	if !ok || now.Before(deadline) {
		return false
	}
	r.Status = model.StatusFinished
	return true
}
