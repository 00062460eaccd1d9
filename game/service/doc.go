// Package service provides the business logic layer for the race board game.
//
// The service package implements:
//   - Game lifecycle: create, list, inspect, delete and restart games
//   - The lobby: seating players and starting a game
//   - Turn handling on top of the engine, one mutation per game at a time
//   - Paginated event history
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager serialises mutations per game and tracks when each game was
// last used; session.Manager implements it.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the game engine. Every mutating operation takes the game's lock first, so two
// roll requests for the same game never interleave while different games
// proceed in parallel.
//
// Usage:
//
//	repo := store.NewMemoryRepository()
//	eng := engine.NewEngine(repo, engine.WithLogger(logger))
//	gameService := service.NewGameService(repo, eng, session.NewManager(), logger)
//
//	state, err := gameService.CreateGame(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameService.AddPlayer(ctx, state.Game.ID, "Ana")
//	gameService.AddPlayer(ctx, state.Game.ID, "Bruno")
//	gameService.StartGame(ctx, state.Game.ID)
//
//	result, err := gameService.Roll(ctx, state.Game.ID)
package service
