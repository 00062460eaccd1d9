// Package session provides per-game locking and lifetime management for the
// race board game.
//
// The session package implements:
//   - Single-writer-per-game locking inside one process (Manager)
//   - Optional cross-process locking through Redis (RedisLocker)
//   - Last-access tracking for every game the server touches
//   - Scheduled removal of idle games (Cleaner)
//
// Core Types:
//
// Manager hands out one lock per game id. Locks for different games never
// contend, and Lock gives up as soon as its context is done. When configured
// with WithDistributedLocker the manager also takes the shared lock, so several
// server instances can serve the same database.
//
// Usage:
//
//	manager := session.NewManager()
//
//	unlock, err := manager.Lock(ctx, gameID)
//	if err != nil {
//		return err
//	}
//	defer unlock()
//
//	// ...resolve the turn...
//
// Cleanup:
//
// Cleaner deletes games that nobody has updated or locked within the
// configured TTL; completed games go after half of it. Schedule runs the sweep
// on a cron spec.
package session
