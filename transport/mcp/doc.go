// Package mcp exposes the race board game to AI agents over the Model
// Context Protocol.
//
// The Client is a thin proxy: every tool turns into one or more REST calls
// against a running API server and renders the JSON answer as plain text an
// agent can read.
//
// MCP Tools:
//   - create_game: Create a game, optionally seating players and starting it
//   - list_games: List games with their players
//   - get_game: Track, players and recent events of a game
//   - add_player: Join a waiting game
//   - start_game: Start a game with two or more players
//   - roll_dice: Resolve the current player's turn
//   - reset_game: Rematch with the same players as a new game
//   - game_events: Event log with pagination
//   - game_rules: Board, special tiles and cards
//
// Transport Modes:
//
// The same MCPServer is served over stdio by the mcp command and over HTTP on
// POST /mcp by the serve command.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
