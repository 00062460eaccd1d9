package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wricardo/race-board-game/game/engine"
)

type gameRecord struct {
	ID                 int64                     `gorm:"primaryKey"`
	Status             string                    `gorm:"not null;index"`
	CurrentTurn        int                       `gorm:"not null"`
	CurrentPlayerIndex int                       `gorm:"not null"`
	CardDeck           []engine.Card             `gorm:"serializer:json"`
	SpecialTiles       map[int]engine.TileEffect `gorm:"serializer:json"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (gameRecord) TableName() string { return "games" }

type playerRecord struct {
	ID           int64  `gorm:"primaryKey"`
	GameID       int64  `gorm:"not null;index"`
	Name         string `gorm:"not null"`
	Position     int    `gorm:"not null"`
	SkipNextTurn bool   `gorm:"not null"`
	Color        string
	SeatOrder    int `gorm:"column:seat_order;not null"`
}

func (playerRecord) TableName() string { return "players" }

type eventRecord struct {
	ID         int64  `gorm:"primaryKey"`
	GameID     int64  `gorm:"not null;index"`
	Message    string `gorm:"not null"`
	Kind       string `gorm:"not null"`
	OccurredAt int64  `gorm:"not null;index"` // Unix milliseconds
}

func (eventRecord) TableName() string { return "game_events" }

func toGame(r *gameRecord) *engine.Game {
	return &engine.Game{
		ID:                 r.ID,
		Status:             engine.Status(r.Status),
		CurrentTurn:        r.CurrentTurn,
		CurrentPlayerIndex: r.CurrentPlayerIndex,
		CardDeck:           r.CardDeck,
		SpecialTiles:       r.SpecialTiles,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func toPlayer(r *playerRecord) *engine.Player {
	return &engine.Player{
		ID:           r.ID,
		GameID:       r.GameID,
		Name:         r.Name,
		Position:     r.Position,
		SkipNextTurn: r.SkipNextTurn,
		Color:        r.Color,
		Order:        r.SeatOrder,
	}
}

func toEvent(r *eventRecord) *engine.Event {
	return &engine.Event{
		ID:        r.ID,
		GameID:    r.GameID,
		Message:   r.Message,
		Kind:      engine.EventKind(r.Kind),
		Timestamp: r.OccurredAt,
	}
}

// GormRepository stores games in a SQL database through GORM
type GormRepository struct {
	db *gorm.DB
}

var _ engine.Repository = (*GormRepository)(nil)

// NewGormRepository wraps an open connection and migrates the schema
func NewGormRepository(db *gorm.DB) (*GormRepository, error) {
	if err := db.AutoMigrate(&gameRecord{}, &playerRecord{}, &eventRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &GormRepository{db: db}, nil
}

// OpenPostgres connects to PostgreSQL, retrying a few times while the
// database comes up
func OpenPostgres(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	const maxRetries = 3
	const retryInterval = 5 * time.Second

	var err error
	for i := 0; i <= maxRetries; i++ {
		var db *gorm.DB
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err == nil {
			return db, nil
		}
		logger.Error("database connection failed, retrying", zap.Int("retry", i), zap.Error(err))
		if i < maxRetries {
			time.Sleep(retryInterval)
		}
	}
	return nil, fmt.Errorf("failed to connect to database: %w", err)
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", what, id, engine.ErrNotFound)
	}
	return fmt.Errorf("load %s %d: %w", what, id, err)
}

func (r *GormRepository) CreateGame(ctx context.Context, game *engine.Game) (*engine.Game, error) {
	if game == nil {
		return nil, fmt.Errorf("game cannot be nil")
	}
	rec := &gameRecord{
		Status:             string(game.Status),
		CurrentTurn:        game.CurrentTurn,
		CurrentPlayerIndex: game.CurrentPlayerIndex,
		CardDeck:           game.CardDeck,
		SpecialTiles:       game.SpecialTiles,
		CreatedAt:          game.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	return toGame(rec), nil
}

func (r *GormRepository) GetGame(ctx context.Context, id int64) (*engine.Game, error) {
	var rec gameRecord
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, notFound(err, "game", id)
	}
	return toGame(&rec), nil
}

// UpdateGame applies the patch to a row locked FOR UPDATE, so concurrent
// patches of the same game never interleave
func (r *GormRepository) UpdateGame(ctx context.Context, id int64, patch engine.GamePatch) (*engine.Game, error) {
	var updated *engine.Game
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec gameRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, id).Error; err != nil {
			return notFound(err, "game", id)
		}

		game := toGame(&rec)
		patch.Apply(game)
		rec.Status = string(game.Status)
		rec.CurrentTurn = game.CurrentTurn
		rec.CurrentPlayerIndex = game.CurrentPlayerIndex
		rec.CardDeck = game.CardDeck

		if err := tx.Save(&rec).Error; err != nil {
			return fmt.Errorf("save game %d: %w", id, err)
		}
		updated = toGame(&rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListGames returns every game, newest first
func (r *GormRepository) ListGames(ctx context.Context) ([]*engine.Game, error) {
	var recs []gameRecord
	if err := r.db.WithContext(ctx).Order("id DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	games := make([]*engine.Game, 0, len(recs))
	for i := range recs {
		games = append(games, toGame(&recs[i]))
	}
	return games, nil
}

// DeleteGame removes a game together with its players and events
func (r *GormRepository) DeleteGame(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("game_id = ?", id).Delete(&eventRecord{}).Error; err != nil {
			return fmt.Errorf("delete events of game %d: %w", id, err)
		}
		if err := tx.Where("game_id = ?", id).Delete(&playerRecord{}).Error; err != nil {
			return fmt.Errorf("delete players of game %d: %w", id, err)
		}
		res := tx.Delete(&gameRecord{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete game %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("game %d: %w", id, engine.ErrNotFound)
		}
		return nil
	})
}

func (r *GormRepository) CreatePlayer(ctx context.Context, player *engine.Player) (*engine.Player, error) {
	if player == nil {
		return nil, fmt.Errorf("player cannot be nil")
	}
	if _, err := r.GetGame(ctx, player.GameID); err != nil {
		return nil, err
	}
	rec := &playerRecord{
		GameID:       player.GameID,
		Name:         player.Name,
		Position:     player.Position,
		SkipNextTurn: player.SkipNextTurn,
		Color:        player.Color,
		SeatOrder:    player.Order,
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("create player: %w", err)
	}
	return toPlayer(rec), nil
}

func (r *GormRepository) GetPlayers(ctx context.Context, gameID int64) ([]*engine.Player, error) {
	if _, err := r.GetGame(ctx, gameID); err != nil {
		return nil, err
	}
	var recs []playerRecord
	err := r.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("seat_order ASC, id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list players of game %d: %w", gameID, err)
	}
	players := make([]*engine.Player, 0, len(recs))
	for i := range recs {
		players = append(players, toPlayer(&recs[i]))
	}
	return players, nil
}

func (r *GormRepository) UpdatePlayer(ctx context.Context, id int64, patch engine.PlayerPatch) (*engine.Player, error) {
	var updated *engine.Player
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec playerRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, id).Error; err != nil {
			return notFound(err, "player", id)
		}

		player := toPlayer(&rec)
		patch.Apply(player)
		rec.Position = player.Position
		rec.SkipNextTurn = player.SkipNextTurn

		if err := tx.Save(&rec).Error; err != nil {
			return fmt.Errorf("save player %d: %w", id, err)
		}
		updated = toPlayer(&rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SwapPositions exchanges two positions in one transaction. Rows are locked
// in id order so two concurrent swaps cannot deadlock.
func (r *GormRepository) SwapPositions(ctx context.Context, playerA, playerB int64) (*engine.Player, *engine.Player, error) {
	var a, b *engine.Player
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recs []playerRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", []int64{playerA, playerB}).
			Order("id ASC").
			Find(&recs).Error
		if err != nil {
			return fmt.Errorf("lock players %d and %d: %w", playerA, playerB, err)
		}

		byID := make(map[int64]*playerRecord, len(recs))
		for i := range recs {
			byID[recs[i].ID] = &recs[i]
		}
		recA, ok := byID[playerA]
		if !ok {
			return fmt.Errorf("player %d: %w", playerA, engine.ErrNotFound)
		}
		recB, ok := byID[playerB]
		if !ok {
			return fmt.Errorf("player %d: %w", playerB, engine.ErrNotFound)
		}

		posA, posB := recB.Position, recA.Position
		if err := tx.Model(&playerRecord{}).Where("id = ?", playerA).Update("position", posA).Error; err != nil {
			return fmt.Errorf("move player %d: %w", playerA, err)
		}
		if err := tx.Model(&playerRecord{}).Where("id = ?", playerB).Update("position", posB).Error; err != nil {
			return fmt.Errorf("move player %d: %w", playerB, err)
		}
		recA.Position, recB.Position = posA, posB

		a, b = toPlayer(recA), toPlayer(recB)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func (r *GormRepository) AppendEvent(ctx context.Context, gameID int64, message string, kind engine.EventKind, timestamp int64) (*engine.Event, error) {
	if _, err := r.GetGame(ctx, gameID); err != nil {
		return nil, err
	}
	rec := &eventRecord{
		GameID:     gameID,
		Message:    message,
		Kind:       string(kind),
		OccurredAt: timestamp,
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("append event to game %d: %w", gameID, err)
	}
	return toEvent(rec), nil
}

// ListEvents returns a game's events newest first
func (r *GormRepository) ListEvents(ctx context.Context, gameID int64) ([]*engine.Event, error) {
	if _, err := r.GetGame(ctx, gameID); err != nil {
		return nil, err
	}
	var recs []eventRecord
	err := r.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("occurred_at DESC, id DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list events of game %d: %w", gameID, err)
	}
	events := make([]*engine.Event, 0, len(recs))
	for i := range recs {
		events = append(events, toEvent(&recs[i]))
	}
	return events, nil
}
