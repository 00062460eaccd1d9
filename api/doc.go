// Package api exposes the race board game over HTTP.
//
// Endpoints:
//
// Games:
//   - POST /api/games - Create a game in the waiting state
//   - GET /api/games - List games, newest first
//   - GET /api/games/{id} - Full state: game, players, board, recent events
//   - DELETE /api/games/{id} - Delete a game with its players and events
//
// Lobby and play:
//   - POST /api/games/{id}/players - Join with {"name": "..."}
//   - POST /api/games/{id}/start - Start once two or more players joined
//   - POST /api/games/{id}/roll - Resolve the current player's turn
//   - POST /api/games/{id}/reset - Start a rematch as a new game
//   - GET /api/games/{id}/events - Paginated event log (page, limit, order)
//
// Reference:
//   - GET /api/rules - Board, special tiles and cards
//   - GET /api/health - Liveness probe
//
// WebSocket:
//   - GET /ws?game={id} - Receive state updates after every change
//
// Errors are returned as {"error": "..."}. Unknown games map to 404, requests
// that are not allowed in the current game state or carry bad input map to
// 400, and anything else to 500.
//
// Every request gets an X-Request-ID (taken from the request when present)
// and one structured log line when it completes.
package api
