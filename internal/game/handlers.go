package game

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tickwars/session-engine/internal/market"
	"github.com/tickwars/session-engine/internal/model"
	"github.com/tickwars/session-engine/internal/roomcode"
	"github.com/tickwars/session-engine/internal/session"
	"github.com/tickwars/session-engine/internal/store"
)

// --- Request types ---

// CreateRoomRequest is the JSON body for POST /rooms.
type CreateRoomRequest struct {
	HostID   string `json:"hostId"`
	HostName string `json:"hostName"`
}

// JoinRoomRequest is the JSON body for POST /rooms/{code}/join.
type JoinRoomRequest struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
}

// StartRequest is the JSON body for POST /rooms/{code}/start.
type StartRequest struct {
	RequesterID string `json:"requesterId"`
}

// TradeHTTPRequest is the JSON body for POST /rooms/{code}/trade.
type TradeHTTPRequest struct {
	ParticipantID string `json:"participantId"`
	Direction     string `json:"direction"` // "buy" or "sell"
}

// TradeResponse is the JSON body returned from POST /rooms/{code}/trade.
type TradeResponse struct {
	Room  *model.Room        `json:"room"`
	Trade *model.TradeRecord `json:"trade"`
}

// --- Handlers ---

// HandleCreateRoom handles POST /api/v1/rooms
func (s *Service) HandleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.HostID == "" || req.HostName == "" {
		writeError(w, "hostId and hostName are required", http.StatusBadRequest)
		return
	}

	room, err := s.CreateRoom(r.Context(), req.HostID, req.HostName)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(room)
}

// HandleJoinRoom handles POST /api/v1/rooms/{code}/join
func (s *Service) HandleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ParticipantID == "" || req.Name == "" {
		writeError(w, "participantId and name are required", http.StatusBadRequest)
		return
	}

	room, err := s.JoinRoom(r.Context(), chi.URLParam(r, "code"), req.ParticipantID, req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(room)
}

// HandleStart handles POST /api/v1/rooms/{code}/start
func (s *Service) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.RequesterID == "" {
		writeError(w, "requesterId is required", http.StatusBadRequest)
		return
	}

	room, err := s.StartSession(r.Context(), chi.URLParam(r, "code"), req.RequesterID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(room)
}

// HandleTrade handles POST /api/v1/rooms/{code}/trade
func (s *Service) HandleTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ParticipantID == "" {
		writeError(w, "participantId is required", http.StatusBadRequest)
		return
	}
	dir, err := market.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	room, rec, err := s.Trade(r.Context(), chi.URLParam(r, "code"), req.ParticipantID, dir)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TradeResponse{Room: room, Trade: rec})
}

// HandleFinish handles POST /api/v1/rooms/{code}/finish
func (s *Service) HandleFinish(w http.ResponseWriter, r *http.Request) {
	room, err := s.FinishIfExpired(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(room)
}

// HandleGetRoom handles GET /api/v1/rooms/{code}
func (s *Service) HandleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.GetRoom(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(room)
}

// HandleRankings handles GET /api/v1/rooms/{code}/rankings
func (s *Service) HandleRankings(w http.ResponseWriter, r *http.Request) {
	standings, err := s.Rankings(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(standings)
}

// HandleTradeHistory handles GET /api/v1/rooms/{code}/trades
func (s *Service) HandleTradeHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.TradeHistory(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if records == nil {
		records = []model.TradeRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// writeServiceError maps domain sentinels onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, "room not found", http.StatusNotFound)
	case errors.Is(err, roomcode.ErrInvalidCode),
		errors.Is(err, market.ErrInvalidDirection):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, session.ErrNotHost):
		writeError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, session.ErrAlreadyStarted),
		errors.Is(err, ErrRoomStarted),
		errors.Is(err, ErrSessionNotActive),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInsufficientShares):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrUnknownParticipant):
		writeError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrConflict):
		// Transient: the caller may retry.
		writeError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
