// Package config provides server configuration for the race board game.
//
// Configuration is layered. Default supplies working values for a single
// local instance; LoadFile overlays a JSON file; the command line then applies
// flags and environment variables on top. Validate reports every problem at
// once.
//
// Configuration Format:
//
//	{
//	  "host": "0.0.0.0",
//	  "port": 8080,
//	  "store": {"driver": "postgres", "postgres_dsn": "host=db user=race dbname=race sslmode=disable"},
//	  "lock": {"driver": "redis", "redis_addr": "redis:6379", "ttl": "10s"},
//	  "cleanup": {"schedule": "@hourly", "game_ttl": "24h"}
//	}
//
// Durations are Go duration strings. Schedules use cron syntax, including the
// "@hourly" and "@every 5m" descriptors.
package config
