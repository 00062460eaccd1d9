// Command validate checks server configuration JSON files before they are
// deployed. It checks:
//   - JSON structure, including keys the server would silently ignore
//   - Store driver settings (postgres DSN, snapshot schedule)
//   - Lock driver settings (redis address and TTL)
//   - Cleanup schedule and game TTL
//   - Ngrok credentials
//
// Files are given as arguments; with none, every *.json file in ./configs
// is checked.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wricardo/race-board-game/game/config"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...any) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// validateConfig loads and validates a single configuration file
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	// Unknown keys are usually typos that would fall back to defaults
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&config.Config{}); err != nil {
		result.fail("Invalid JSON: %v", err)
		return result
	}

	cfg, err := config.LoadFile(filePath)
	if err != nil {
		result.fail("%v", err)
		return result
	}
	if err := cfg.Validate(); err != nil {
		msg := strings.TrimPrefix(err.Error(), config.ErrInvalidConfig.Error()+": ")
		for _, problem := range strings.Split(msg, "; ") {
			result.fail("%s", problem)
		}
		return result
	}

	result.info("Listen address: %s", cfg.Addr())
	switch cfg.Store.Driver {
	case config.StorePostgres:
		result.info("Store: postgres")
	default:
		if cfg.Store.SnapshotPath != "" {
			result.info("Store: memory, snapshot to %s", cfg.Store.SnapshotPath)
		} else {
			result.info("Store: memory, games are lost on restart")
		}
	}
	if cfg.Lock.Driver == config.LockRedis {
		result.info("Locks: redis at %s, TTL %v", cfg.Lock.RedisAddr, time.Duration(cfg.Lock.TTL))
	} else {
		result.info("Locks: local")
	}
	if cfg.Cleanup.Schedule != "" {
		result.info("Cleanup: %s, games idle for %v are removed", cfg.Cleanup.Schedule, time.Duration(cfg.Cleanup.GameTTL))
	} else {
		result.info("Cleanup: disabled")
	}
	return result
}

// main validates each file and prints a concise report, exiting with
// non-zero status if any are invalid.
func main() {
	files := os.Args[1:]
	if len(files) == 0 {
		var err error
		files, err = filepath.Glob(filepath.Join("configs", "*.json"))
		if err != nil {
			fmt.Printf("Error finding config files: %v\n", err)
			os.Exit(1)
		}
	}
	if len(files) == 0 {
		fmt.Println("No config files to validate")
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)
		if result.Valid {
			fmt.Println("✅ VALID")
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
		}
		for _, msg := range result.Errors {
			fmt.Printf("  %s\n", msg)
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if !allValid {
		fmt.Println("❌ Some configurations are invalid")
		os.Exit(1)
	}
	fmt.Println("✅ All configurations are valid")
}
