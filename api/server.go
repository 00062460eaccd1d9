package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wricardo/race-board-game/game/engine"
	"github.com/wricardo/race-board-game/game/service"
)

// Broadcaster pushes game changes to live spectators
type Broadcaster interface {
	ServeWS(w http.ResponseWriter, r *http.Request, gameID int64)
	BroadcastState(gameID int64, state *service.GameState)
	BroadcastEvent(gameID int64, event string, data any)
}

const (
	eventGameDeleted = "game_deleted"
	eventGameReset   = "game_reset"
)

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     Broadcaster
	router  *mux.Router
	logger  *zap.Logger
}

// NewServer creates a new API server
func NewServer(gameService service.GameService, hub Broadcaster, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
		logger:  logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(requestLogger(s.logger))

	api := s.router.PathPrefix("/api").Subrouter()

	// Games
	api.HandleFunc("/games", s.handleCreateGame).Methods("POST")
	api.HandleFunc("/games", s.handleListGames).Methods("GET")
	api.HandleFunc("/games/{id}", s.handleGetGame).Methods("GET")
	api.HandleFunc("/games/{id}", s.handleDeleteGame).Methods("DELETE")

	// Lobby and play
	api.HandleFunc("/games/{id}/players", s.handleAddPlayer).Methods("POST")
	api.HandleFunc("/games/{id}/start", s.handleStartGame).Methods("POST")
	api.HandleFunc("/games/{id}/roll", s.handleRoll).Methods("POST")
	api.HandleFunc("/games/{id}/reset", s.handleResetGame).Methods("POST")
	api.HandleFunc("/games/{id}/events", s.handleGetEvents).Methods("GET")

	api.HandleFunc("/rules", s.handleRules).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps domain errors to HTTP statuses
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrInvalidState), errors.Is(err, service.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func gameIDFromPath(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Game handlers

type gameCreatedResponse struct {
	GameID int64              `json:"game_id"`
	Game   *service.GameState `json:"game"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.CreateGame(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, gameCreatedResponse{GameID: state.Game.ID, Game: state})
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.service.ListGames(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"games": games,
		"total": len(games),
	})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	gameID, ok := gameIDFromPath(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	state, err := s.service.GetGame(r.Context(), gameID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	gameID, ok := gameIDFromPath(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	if err := s.service.DeleteGame(r.Context(), gameID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.hub.BroadcastEvent(gameID, eventGameDeleted, nil)
	respondJSON(w, http.StatusOK, map[string]string{"message": "game deleted"})
}

func (s *Server) handleAddPlayer(w http.ResponseWriter, r *http.Request) {
	gameID, ok := gameIDFromPath(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	player, err := s.service.AddPlayer(r.Context(), gameID, req.Name)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.broadcastGame(r, gameID)
	respondJSON(w, http.StatusCreated, player)
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	gameID, ok := gameIDFromPath(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	state, err := s.service.StartGame(r.Context(), gameID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.hub.BroadcastState(gameID, state)
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleRoll(w http.ResponseWriter, r *http.Request) {
	gameID, ok := gameIDFromPath(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	result, err := s.service.Roll(r.Context(), gameID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.hub.BroadcastState(gameID, result.GameState)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleResetGame(w http.ResponseWriter, r *http.Request) {
	gameID, ok := gameIDFromPath(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	state, err := s.service.ResetGame(r.Context(), gameID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	// Spectators of the old game follow the rematch
	s.hub.BroadcastEvent(gameID, eventGameReset, map[string]int64{"game_id": state.Game.ID})
	respondJSON(w, http.StatusOK, gameCreatedResponse{GameID: state.Game.ID, Game: state})
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	gameID, ok := gameIDFromPath(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	query := r.URL.Query()
	opts := service.HistoryOptions{
		Order: strings.ToLower(query.Get("order")),
	}
	if pageStr := query.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			opts.Page = p
		}
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			opts.Limit = l
		}
	}

	history, err := s.service.GetEvents(r.Context(), gameID, opts)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, history)
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.service.Rules(r.Context()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.ParseInt(r.URL.Query().Get("game"), 10, 64)
	if err != nil || gameID <= 0 {
		respondError(w, http.StatusBadRequest, "game query parameter required")
		return
	}

	// Refuse to subscribe to games that do not exist
	if _, err := s.service.GetGame(r.Context(), gameID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.hub.ServeWS(w, r, gameID)
}

// broadcastGame pushes the current state when the handler has none at hand
func (s *Server) broadcastGame(r *http.Request, gameID int64) {
	state, err := s.service.GetGame(r.Context(), gameID)
	if err != nil {
		s.logger.Warn("could not load game for broadcast", zap.Int64("game_id", gameID), zap.Error(err))
		return
	}
	s.hub.BroadcastState(gameID, state)
}
