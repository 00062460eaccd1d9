// Package engine provides the core rules of the race board game.
//
// The engine package implements:
//   - Turn resolution: dice roll, movement, special tiles, cards, win detection
//   - The effect-card deck with reshuffle-on-empty semantics
//   - The fixed special-tile table shared by every game
//   - The domain types (Game, Player, Event) and the Repository contract
//
// Core Types:
//
// Engine resolves one roll request into a new consistent game state. It reads
// and writes exclusively through a Repository, so it can run on top of the
// in-memory store, a database, or a test double. Randomness comes from an
// injected Rand so that scenarios can be replayed in tests.
//
// Usage:
//
//	repo := store.NewMemoryRepository()
//	eng := engine.NewEngine(repo, engine.WithLogger(logger))
//
//	game, err := repo.CreateGame(ctx, eng.NewGame())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// ...add players and start the game...
//
//	outcome, err := eng.ResolveTurn(ctx, game.ID)
//
// Game Rules:
//
// Players race along a 30-tile track. Each turn the acting player rolls a
// six-sided die and moves forward, never past the goal tile. Landing on tiles
// 6, 11, 16, 21 and 26 (positions 5, 10, 15, 20, 25) triggers an effect: jump
// ahead two, fall back three, lose the next turn, swap places with a random
// opponent, or draw a card. The first player whose resolved position reaches
// the goal tile (position 29) wins.
package engine
