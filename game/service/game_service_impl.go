package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/wricardo/race-board-game/game/engine"
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	repo     engine.Repository
	engine   *engine.Engine
	sessions SessionManager
	logger   *zap.Logger
}

// NewGameService creates a new game service instance
func NewGameService(repo engine.Repository, eng *engine.Engine, sessions SessionManager, logger *zap.Logger) GameService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &gameServiceImpl{
		repo:     repo,
		engine:   eng,
		sessions: sessions,
		logger:   logger,
	}
}

// lockGame takes the game's lock. The returned release must be called with
// the operation's final error: when the game turns out not to exist its lock
// bookkeeping is dropped again, so requests for unknown ids leave nothing
// behind.
func (s *gameServiceImpl) lockGame(ctx context.Context, gameID int64) (func(error), error) {
	unlock, err := s.sessions.Lock(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return func(opErr error) {
		unlock()
		if !errors.Is(opErr, engine.ErrNotFound) {
			return
		}
		if _, err := s.repo.GetGame(ctx, gameID); errors.Is(err, engine.ErrNotFound) {
			s.sessions.Forget(gameID)
		}
	}, nil
}

// CreateGame creates a game waiting for players
func (s *gameServiceImpl) CreateGame(ctx context.Context) (*GameState, error) {
	game, err := s.repo.CreateGame(ctx, s.engine.NewGame())
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}
	s.sessions.Touch(game.ID)

	s.logger.Info("game created", zap.Int64("game_id", game.ID))
	return s.loadState(ctx, game.ID)
}

// GetGame returns the full state of a game
func (s *gameServiceImpl) GetGame(ctx context.Context, gameID int64) (*GameState, error) {
	state, err := s.loadState(ctx, gameID)
	if err != nil {
		return nil, err
	}
	s.sessions.Touch(gameID)
	return state, nil
}

// ListGames returns a summary of every game, newest first
func (s *gameServiceImpl) ListGames(ctx context.Context) ([]*GameSummary, error) {
	games, err := s.repo.ListGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}

	result := make([]*GameSummary, 0, len(games))
	for _, game := range games {
		players, err := s.repo.GetPlayers(ctx, game.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list players of game %d: %w", game.ID, err)
		}
		names := make([]string, 0, len(players))
		for _, p := range players {
			names = append(names, p.Name)
		}
		result = append(result, &GameSummary{
			ID:          game.ID,
			Status:      game.Status,
			CurrentTurn: game.CurrentTurn,
			PlayerCount: len(players),
			Players:     names,
			CreatedAt:   game.CreatedAt,
			UpdatedAt:   game.UpdatedAt,
		})
	}
	return result, nil
}

// DeleteGame removes a game with its players and events
func (s *gameServiceImpl) DeleteGame(ctx context.Context, gameID int64) (err error) {
	release, err := s.lockGame(ctx, gameID)
	if err != nil {
		return err
	}
	defer func() { release(err) }()

	if err := s.repo.DeleteGame(ctx, gameID); err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}
	s.sessions.Forget(gameID)

	s.logger.Info("game deleted", zap.Int64("game_id", gameID))
	return nil
}

// AddPlayer seats a new player in a waiting game
func (s *gameServiceImpl) AddPlayer(ctx context.Context, gameID int64, name string) (_ *engine.Player, err error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < 1 || n > MaxNameLength {
		return nil, fmt.Errorf("%w: player name must be 1 to %d characters", ErrInvalidInput, MaxNameLength)
	}

	release, err := s.lockGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	defer func() { release(err) }()

	game, err := s.repo.GetGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load game: %w", err)
	}
	if game.Status != engine.StatusWaiting {
		return nil, fmt.Errorf("%w: cannot add players to a game that is %s", engine.ErrInvalidState, game.Status)
	}

	players, err := s.repo.GetPlayers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}
	if len(players) >= engine.MaxPlayers {
		return nil, fmt.Errorf("%w: maximum %d players allowed", engine.ErrInvalidState, engine.MaxPlayers)
	}

	seat := len(players)
	player, err := s.repo.CreatePlayer(ctx, &engine.Player{
		GameID: gameID,
		Name:   name,
		Color:  PlayerColors[seat],
		Order:  seat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add player: %w", err)
	}

	s.logger.Info("player joined",
		zap.Int64("game_id", gameID),
		zap.Int64("player_id", player.ID),
		zap.String("name", player.Name),
		zap.Int("seat", seat),
	)
	return player, nil
}

// StartGame moves a waiting game with enough players into play
func (s *gameServiceImpl) StartGame(ctx context.Context, gameID int64) (_ *GameState, err error) {
	release, err := s.lockGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	defer func() { release(err) }()

	game, err := s.repo.GetGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load game: %w", err)
	}
	if game.Status != engine.StatusWaiting {
		return nil, fmt.Errorf("%w: game is already %s", engine.ErrInvalidState, game.Status)
	}

	players, err := s.repo.GetPlayers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}
	if len(players) < engine.MinPlayers {
		return nil, fmt.Errorf("%w: at least %d players are required to start the game", engine.ErrInvalidState, engine.MinPlayers)
	}

	_, err = s.repo.UpdateGame(ctx, gameID, engine.GamePatch{
		Status:             engine.Ptr(engine.StatusActive),
		CurrentTurn:        engine.Ptr(1),
		CurrentPlayerIndex: engine.Ptr(0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start game: %w", err)
	}
	if err := s.engine.Record(ctx, gameID, engine.EventSpecial, "Game started! %s goes first", players[0].Name); err != nil {
		return nil, err
	}

	s.logger.Info("game started", zap.Int64("game_id", gameID), zap.Int("players", len(players)))
	return s.loadState(ctx, gameID)
}

// Roll resolves the current player's turn
func (s *gameServiceImpl) Roll(ctx context.Context, gameID int64) (_ *RollResult, err error) {
	release, err := s.lockGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	defer func() { release(err) }()

	outcome, err := s.engine.ResolveTurn(ctx, gameID)
	if err != nil {
		return nil, err
	}

	events, err := s.repo.ListEvents(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	state := buildState(outcome.Game, outcome.Players, events)
	if outcome.Winner != nil {
		state.Winner = outcome.Winner
	}

	return &RollResult{
		GameState:   state,
		DiceValue:   outcome.DiceValue,
		CurrentCard: outcome.CurrentCard,
		ExtraTurn:   outcome.ExtraTurn,
		SkippedTurn: outcome.SkippedTurn,
	}, nil
}

// ResetGame starts over with the same players in a new game. The old game is
// left untouched.
func (s *gameServiceImpl) ResetGame(ctx context.Context, gameID int64) (_ *GameState, err error) {
	release, err := s.lockGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	defer func() { release(err) }()

	players, err := s.repo.GetPlayers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}

	fresh, err := s.repo.CreateGame(ctx, s.engine.NewGame())
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}
	for _, p := range players {
		_, err := s.repo.CreatePlayer(ctx, &engine.Player{
			GameID: fresh.ID,
			Name:   p.Name,
			Color:  p.Color,
			Order:  p.Order,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to copy player %q: %w", p.Name, err)
		}
	}
	if err := s.engine.Record(ctx, fresh.ID, engine.EventSpecial, "Game restarted!"); err != nil {
		return nil, err
	}
	s.sessions.Touch(fresh.ID)

	s.logger.Info("game reset",
		zap.Int64("game_id", gameID),
		zap.Int64("new_game_id", fresh.ID),
		zap.Int("players", len(players)),
	)
	return s.loadState(ctx, fresh.ID)
}

// GetEvents returns paginated event history
func (s *gameServiceImpl) GetEvents(ctx context.Context, gameID int64, opts HistoryOptions) (*HistoryResponse, error) {
	events, err := s.repo.ListEvents(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	total := len(events)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultHistoryLimit
	}
	if opts.Limit > MaxHistoryLimit {
		opts.Limit = MaxHistoryLimit
	}
	switch opts.Order {
	case "":
		opts.Order = "desc"
	case "asc", "desc":
	default:
		return nil, fmt.Errorf("%w: order must be asc or desc", ErrInvalidInput)
	}

	// Repository order is newest first
	if opts.Order == "asc" {
		for i, j := 0, total-1; i < j; i, j = i+1, j-1 {
			events[i], events[j] = events[j], events[i]
		}
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := min((opts.Page-1)*opts.Limit, total)
	end := min(start+opts.Limit, total)
	page := events[start:end]
	if page == nil {
		page = []*engine.Event{}
	}

	s.sessions.Touch(gameID)
	return &HistoryResponse{
		Events:      page,
		TotalEvents: total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// Rules describes the fixed rules
func (s *gameServiceImpl) Rules(ctx context.Context) *Rules {
	tiles := engine.SpecialTiles()
	positions := make([]int, 0, len(tiles))
	for pos := range tiles {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	special := make([]Tile, 0, len(positions))
	for _, pos := range positions {
		special = append(special, Tile{
			Position: pos,
			Number:   pos + 1,
			Effect:   tiles[pos],
			Label:    tiles[pos].DisplayName(),
		})
	}

	cards := make([]CardInfo, 0, len(engine.CardSet()))
	for _, card := range engine.CardSet() {
		cards = append(cards, CardInfo{Name: card, Description: describeCard(card)})
	}

	return &Rules{
		BoardSize:    engine.BoardSize,
		GoalTile:     engine.GoalTile + 1,
		DiceSides:    engine.DiceSides,
		MinPlayers:   engine.MinPlayers,
		MaxPlayers:   engine.MaxPlayers,
		SpecialTiles: special,
		Cards:        cards,
		Summary: fmt.Sprintf("Race along a %d-tile track. On your turn roll a %d-sided die and move forward, "+
			"never past the last tile. Special tiles trigger once per landing. The first player to reach tile %d wins.",
			engine.BoardSize, engine.DiceSides, engine.GoalTile+1),
	}
}

func describeCard(card engine.Card) string {
	switch card {
	case engine.CardAdvance3:
		return "Move forward 3 tiles"
	case engine.CardPlayAgain:
		return "Take another turn right away"
	case engine.CardRetreat2:
		return "Move back 2 tiles"
	case engine.CardSwapWithLeader:
		return "Swap places with the player furthest ahead"
	default:
		return string(card)
	}
}

// loadState reads a game, its players and its events
func (s *gameServiceImpl) loadState(ctx context.Context, gameID int64) (*GameState, error) {
	game, err := s.repo.GetGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load game: %w", err)
	}
	players, err := s.repo.GetPlayers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}
	events, err := s.repo.ListEvents(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	return buildState(game, players, events), nil
}

// buildState derives the board and the highlighted players from raw state
func buildState(game *engine.Game, players []*engine.Player, events []*engine.Event) *GameState {
	if len(events) > DefaultHistoryLimit {
		events = events[:DefaultHistoryLimit]
	}

	board := make([]Tile, engine.BoardSize)
	for pos := range board {
		board[pos] = Tile{Position: pos, Number: pos + 1}
		effect, ok := game.SpecialTiles[pos]
		if game.SpecialTiles == nil {
			effect, ok = engine.LookupTile(pos)
		}
		if ok {
			board[pos].Effect = effect
			board[pos].Label = effect.DisplayName()
		}
	}

	state := &GameState{
		Game:    game,
		Players: players,
		Events:  events,
		Board:   board,
	}

	for _, p := range players {
		if p.Position >= 0 && p.Position < len(board) {
			board[p.Position].Occupants = append(board[p.Position].Occupants, p.ID)
		}
		if state.Leader == nil || p.Position > state.Leader.Position {
			state.Leader = p
		}
	}

	if game.Status == engine.StatusActive && game.CurrentPlayerIndex < len(players) {
		state.CurrentPlayer = players[game.CurrentPlayerIndex]
	}
	if game.Status == engine.StatusCompleted {
		for _, p := range players {
			if p.Position >= engine.GoalTile {
				state.Winner = p
				break
			}
		}
	}
	return state
}
