// Package websocket pushes live game updates to spectators.
//
// Spectators connect to /ws?game=<id> and receive one JSON Message per
// frame whenever the game changes:
//
//	{"game_id": 3, "event": "state_update", "game_state": {...}}
//
// A central Hub owns every connection. Registration, removal, broadcasts and
// counting all run on the Hub's Run goroutine, so no locks are involved.
// Each client has a read pump, which only watches for pongs and close frames,
// and a write pump that serialises writes and sends pings.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//
//	hub.ServeWS(w, r, gameID)
//	hub.BroadcastState(gameID, state)
//
// A client whose send buffer fills up is disconnected rather than allowed to
// stall the others.
package websocket
