package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wricardo/race-board-game/game/config"
)

// parseConfig runs the root command with args and returns what loadConfig built
func parseConfig(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	cmd := newCommand()

	var cfg *config.Config
	var loadErr error
	cmd.Action = func(ctx context.Context, c *cli.Command) error {
		cfg, loadErr = loadConfig(c)
		return nil
	}

	if err := cmd.Run(context.Background(), append([]string{"raceboard"}, args...)); err != nil {
		t.Fatalf("command failed: %v", err)
	}
	return cfg, loadErr
}

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName != "Race Board Game Server" {
		t.Errorf("Expected app name %q, got %q", "Race Board Game Server", AppName)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := parseConfig(t)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	want := config.Default()
	if cfg.Addr() != want.Addr() {
		t.Errorf("Expected addr %s, got %s", want.Addr(), cfg.Addr())
	}
	if cfg.Store.Driver != config.StoreMemory {
		t.Errorf("Expected memory store, got %s", cfg.Store.Driver)
	}
	if cfg.Lock.Driver != config.LockLocal {
		t.Errorf("Expected local locks, got %s", cfg.Lock.Driver)
	}
}

func TestLoadConfig_Flags(t *testing.T) {
	cfg, err := parseConfig(t,
		"--host", "0.0.0.0",
		"--port", "9090",
		"--store", "postgres",
		"--postgres-dsn", "postgres://localhost/race",
		"--lock", "redis",
		"--redis-db", "2",
		"--game-ttl", "2h",
	)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.Addr() != "0.0.0.0:9090" {
		t.Errorf("Expected addr 0.0.0.0:9090, got %s", cfg.Addr())
	}
	if cfg.Store.Driver != config.StorePostgres || cfg.Store.PostgresDSN != "postgres://localhost/race" {
		t.Errorf("Unexpected store config: %+v", cfg.Store)
	}
	if cfg.Lock.Driver != config.LockRedis || cfg.Lock.RedisDB != 2 {
		t.Errorf("Unexpected lock config: %+v", cfg.Lock)
	}
	if time.Duration(cfg.Cleanup.GameTTL) != 2*time.Hour {
		t.Errorf("Expected game TTL 2h, got %v", time.Duration(cfg.Cleanup.GameTTL))
	}
}

func TestLoadConfig_EnvVars(t *testing.T) {
	t.Setenv("RACEBOARD_PORT", "7070")
	t.Setenv("RACEBOARD_CLEANUP_SCHEDULE", "*/5 * * * *")

	cfg, err := parseConfig(t)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.Port != 7070 {
		t.Errorf("Expected port 7070 from env, got %d", cfg.Port)
	}
	if cfg.Cleanup.Schedule != "*/5 * * * *" {
		t.Errorf("Expected cleanup schedule from env, got %q", cfg.Cleanup.Schedule)
	}
}

func TestLoadConfig_FileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "race.json")
	data := `{"host": "example.internal", "port": 8000, "cleanup": {"game_ttl": "30m"}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := parseConfig(t, "--config", path, "--port", "8001")
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.Host != "example.internal" {
		t.Errorf("Expected host from file, got %s", cfg.Host)
	}
	if cfg.Port != 8001 {
		t.Errorf("Expected flag to override file port, got %d", cfg.Port)
	}
	if time.Duration(cfg.Cleanup.GameTTL) != 30*time.Minute {
		t.Errorf("Expected game TTL from file, got %v", time.Duration(cfg.Cleanup.GameTTL))
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	if _, err := parseConfig(t, "--store", "sqlite"); err == nil {
		t.Error("Expected error for unknown store driver")
	}
	if _, err := parseConfig(t, "--config", "/non/existent/race.json"); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestInitializeServices_Memory(t *testing.T) {
	cfg := config.Default()
	cfg.Store.SnapshotPath = filepath.Join(t.TempDir(), "games.json")

	a, err := initializeServices(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	if a.service == nil || a.memory == nil {
		t.Fatal("Expected game service and memory store to be initialized")
	}

	state, err := a.service.CreateGame(context.Background())
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}

	// close writes the final snapshot, which a fresh start loads back
	a.close()
	if _, err := os.Stat(cfg.Store.SnapshotPath); err != nil {
		t.Fatalf("Expected snapshot file: %v", err)
	}

	b, err := initializeServices(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to restart services: %v", err)
	}
	defer b.close()

	if _, err := b.service.GetGame(context.Background(), state.Game.ID); err != nil {
		t.Errorf("Expected game %d to survive a restart: %v", state.Game.ID, err)
	}
}

func TestStartBackground_InvalidSchedule(t *testing.T) {
	cfg := config.Default()
	cfg.Cleanup.Schedule = "whenever"

	a, err := initializeServices(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	defer a.close()

	if err := a.startBackground(); err == nil {
		t.Error("Expected error for invalid cleanup schedule")
	}
}

func TestMCPHandler_RejectsGet(t *testing.T) {
	req := httptest.NewRequest("GET", "/mcp", nil)
	w := httptest.NewRecorder()
	mcpHandler(nil).ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}
}

func TestAPIReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			w.Write([]byte(`{"status":"ok"}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	if !apiReachable(server.URL) {
		t.Error("Expected server to be reachable")
	}
	if apiReachable("http://127.0.0.1:1") {
		t.Error("Expected closed port to be unreachable")
	}
}
