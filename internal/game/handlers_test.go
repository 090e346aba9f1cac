package game_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tickwars/session-engine/internal/game"
	"github.com/tickwars/session-engine/internal/model"
	"github.com/tickwars/session-engine/internal/store"
)

// newRouter wires the service handlers the way cmd/server does.
func newRouter(t *testing.T) (chi.Router, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	svc := game.NewService(ms, game.DefaultConfig(), nil)

	r := chi.NewRouter()
	r.Post("/api/v1/rooms", svc.HandleCreateRoom)
	r.Get("/api/v1/rooms/{code}", svc.HandleGetRoom)
	r.Post("/api/v1/rooms/{code}/join", svc.HandleJoinRoom)
	r.Post("/api/v1/rooms/{code}/start", svc.HandleStart)
	r.Post("/api/v1/rooms/{code}/finish", svc.HandleFinish)
	r.Post("/api/v1/rooms/{code}/trade", svc.HandleTrade)
	r.Get("/api/v1/rooms/{code}/rankings", svc.HandleRankings)
	r.Get("/api/v1/rooms/{code}/trades", svc.HandleTradeHistory)
	return r, ms
}

func doJSON(t *testing.T, router chi.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createRoomHTTP(t *testing.T, router chi.Router) model.Room {
	t.Helper()
	w := doJSON(t, router, "POST", "/api/v1/rooms", game.CreateRoomRequest{HostID: "host", HostName: "Host"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create room: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var room model.Room
	if err := json.Unmarshal(w.Body.Bytes(), &room); err != nil {
		t.Fatalf("decode room: %v", err)
	}
	return room
}

func TestHTTP_FullSessionFlow(t *testing.T) {
	router, _ := newRouter(t)
	room := createRoomHTTP(t, router)

	w := doJSON(t, router, "POST", "/api/v1/rooms/"+room.ID+"/join",
		game.JoinRoomRequest{ParticipantID: "alice", Name: "Alice"})
	if w.Code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, "POST", "/api/v1/rooms/"+room.ID+"/start",
		game.StartRequest{RequesterID: "host"})
	if w.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, "POST", "/api/v1/rooms/"+room.ID+"/trade",
		game.TradeHTTPRequest{ParticipantID: "alice", Direction: "buy"})
	if w.Code != http.StatusOK {
		t.Fatalf("trade: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp game.TradeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode trade response: %v", err)
	}
	if resp.Trade == nil || resp.Trade.ID == "" {
		t.Error("expected a trade record with an id")
	}
	if resp.Room == nil || resp.Room.Players["alice"].Shares != 1 {
		t.Error("expected alice to hold one share")
	}

	w = doJSON(t, router, "GET", "/api/v1/rooms/"+room.ID+"/rankings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rankings: expected 200, got %d", w.Code)
	}

	w = doJSON(t, router, "GET", "/api/v1/rooms/"+room.ID+"/trades", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("trades: expected 200, got %d", w.Code)
	}
}

func TestHTTP_ErrorMapping(t *testing.T) {
	router, _ := newRouter(t)
	room := createRoomHTTP(t, router)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"unknown room", "GET", "/api/v1/rooms/9999", nil, http.StatusNotFound},
		{"malformed code", "GET", "/api/v1/rooms/xyz1", nil, http.StatusBadRequest},
		{"non-host start", "POST", "/api/v1/rooms/" + room.ID + "/start",
			game.StartRequest{RequesterID: "alice"}, http.StatusForbidden},
		{"trade before start", "POST", "/api/v1/rooms/" + room.ID + "/trade",
			game.TradeHTTPRequest{ParticipantID: "host", Direction: "buy"}, http.StatusConflict},
		{"bad direction", "POST", "/api/v1/rooms/" + room.ID + "/trade",
			game.TradeHTTPRequest{ParticipantID: "host", Direction: "short"}, http.StatusBadRequest},
		{"missing fields", "POST", "/api/v1/rooms", game.CreateRoomRequest{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := doJSON(t, router, tt.method, tt.path, tt.body)
		if w.Code != tt.want {
			t.Errorf("%s: expected %d, got %d: %s", tt.name, tt.want, w.Code, w.Body.String())
		}
	}

	// Join after start maps to 409 and sells with no shares to 409.
	doJSON(t, router, "POST", "/api/v1/rooms/"+room.ID+"/start", game.StartRequest{RequesterID: "host"})

	w := doJSON(t, router, "POST", "/api/v1/rooms/"+room.ID+"/join",
		game.JoinRoomRequest{ParticipantID: "late", Name: "Late"})
	if w.Code != http.StatusConflict {
		t.Errorf("join after start: expected 409, got %d", w.Code)
	}

	w = doJSON(t, router, "POST", "/api/v1/rooms/"+room.ID+"/trade",
		game.TradeHTTPRequest{ParticipantID: "host", Direction: "sell"})
	if w.Code != http.StatusConflict {
		t.Errorf("sell with no shares: expected 409, got %d", w.Code)
	}
}
