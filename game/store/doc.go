// Package store provides the Repository implementations for the race board game.
//
// The store package implements:
//   - MemoryRepository: maps guarded by a single RWMutex, sequential ids
//   - JSON snapshots of the memory store, so a single instance survives restarts
//   - GormRepository: PostgreSQL through GORM, multi-field updates in transactions
//
// Both backends satisfy engine.Repository and return errors wrapping
// engine.ErrNotFound for unknown ids. Events are listed newest first; events
// sharing a timestamp are ordered by descending id.
//
// Usage:
//
//	repo := store.NewMemoryRepository()
//	if err := repo.LoadSnapshot("data/games.json"); err != nil {
//		log.Fatal(err)
//	}
//
//	db, err := store.OpenPostgres(dsn, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	pg, err := store.NewGormRepository(db)
package store
