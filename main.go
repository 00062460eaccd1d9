// Command raceboard starts the race board game server.
//
// Commands:
//  1. "serve" (default) runs the HTTP server exposing the REST API, WebSocket
//     updates and an /mcp HTTP endpoint
//  2. "mcp" runs an MCP stdio server and spins up an internal HTTP API if none
//     is reachable
//  3. "simulate" plays bot games against the engine and prints statistics
//
// Settings come from built-in defaults, then an optional JSON file (--config),
// then flags and environment variables. A .env file is loaded first if present.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/race-board-game/api"
	"github.com/wricardo/race-board-game/game/config"
	"github.com/wricardo/race-board-game/game/engine"
	"github.com/wricardo/race-board-game/game/service"
	"github.com/wricardo/race-board-game/game/session"
	"github.com/wricardo/race-board-game/game/simulation"
	"github.com/wricardo/race-board-game/game/store"
	"github.com/wricardo/race-board-game/transport/mcp"
	"github.com/wricardo/race-board-game/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Race Board Game Server"
)

// externalAPI is where the mcp command looks for an already running server
const externalAPI = "http://localhost:8080"

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "raceboard",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "JSON configuration file", Sources: cli.EnvVars("RACEBOARD_CONFIG")},
			&cli.StringFlag{Name: "host", Usage: "HTTP server host", Sources: cli.EnvVars("RACEBOARD_HOST")},
			&cli.IntFlag{Name: "port", Usage: "HTTP server port", Sources: cli.EnvVars("RACEBOARD_PORT")},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging", Sources: cli.EnvVars("RACEBOARD_DEBUG")},

			&cli.StringFlag{Name: "store", Usage: "Game store: memory or postgres", Sources: cli.EnvVars("RACEBOARD_STORE")},
			&cli.StringFlag{Name: "snapshot", Usage: "Snapshot file for the memory store", Sources: cli.EnvVars("RACEBOARD_SNAPSHOT")},
			&cli.StringFlag{Name: "snapshot-schedule", Usage: "Cron spec for memory snapshots", Sources: cli.EnvVars("RACEBOARD_SNAPSHOT_SCHEDULE")},
			&cli.StringFlag{Name: "postgres-dsn", Usage: "PostgreSQL DSN for the postgres store", Sources: cli.EnvVars("DATABASE_URL")},

			&cli.StringFlag{Name: "lock", Usage: "Game locks: local or redis", Sources: cli.EnvVars("RACEBOARD_LOCK")},
			&cli.StringFlag{Name: "redis-addr", Usage: "Redis address for shared locks", Sources: cli.EnvVars("REDIS_ADDR")},
			&cli.StringFlag{Name: "redis-password", Usage: "Redis password", Sources: cli.EnvVars("REDIS_PASSWORD")},
			&cli.IntFlag{Name: "redis-db", Usage: "Redis database number", Sources: cli.EnvVars("REDIS_DB")},
			&cli.DurationFlag{Name: "lock-ttl", Usage: "Lifetime of a Redis game lock", Sources: cli.EnvVars("RACEBOARD_LOCK_TTL")},

			&cli.StringFlag{Name: "cleanup-schedule", Usage: "Cron spec for removing idle games (empty disables)", Sources: cli.EnvVars("RACEBOARD_CLEANUP_SCHEDULE")},
			&cli.DurationFlag{Name: "game-ttl", Usage: "Idle time after which a game is removed", Sources: cli.EnvVars("RACEBOARD_GAME_TTL")},

			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server with API, WebSocket and MCP endpoint",
				Action: serveAction,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run an MCP stdio server backed by the HTTP API",
				Action:  mcpAction,
			},
			{
				Name:  "simulate",
				Usage: "Play bot games and print statistics",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "games", Value: 1000, Usage: "Number of games to play"},
					&cli.IntFlag{Name: "players", Value: engine.MaxPlayers, Usage: "Players per game"},
					&cli.IntFlag{Name: "seed", Usage: "Random seed (0 picks one)"},
				},
				Action: simulateAction,
			},
		},
	}
}

// loadConfig builds the configuration: defaults, then the file, then flags
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("debug") {
		cfg.Debug = cmd.Bool("debug")
	}
	if cmd.IsSet("store") {
		cfg.Store.Driver = cmd.String("store")
	}
	if cmd.IsSet("snapshot") {
		cfg.Store.SnapshotPath = cmd.String("snapshot")
	}
	if cmd.IsSet("snapshot-schedule") {
		cfg.Store.SnapshotSchedule = cmd.String("snapshot-schedule")
	}
	if cmd.IsSet("postgres-dsn") {
		cfg.Store.PostgresDSN = cmd.String("postgres-dsn")
	}
	if cmd.IsSet("lock") {
		cfg.Lock.Driver = cmd.String("lock")
	}
	if cmd.IsSet("redis-addr") {
		cfg.Lock.RedisAddr = cmd.String("redis-addr")
	}
	if cmd.IsSet("redis-password") {
		cfg.Lock.RedisPassword = cmd.String("redis-password")
	}
	if cmd.IsSet("redis-db") {
		cfg.Lock.RedisDB = int(cmd.Int("redis-db"))
	}
	if cmd.IsSet("lock-ttl") {
		cfg.Lock.TTL = config.Duration(cmd.Duration("lock-ttl"))
	}
	if cmd.IsSet("cleanup-schedule") {
		cfg.Cleanup.Schedule = cmd.String("cleanup-schedule")
	}
	if cmd.IsSet("game-ttl") {
		cfg.Cleanup.GameTTL = config.Duration(cmd.Duration("game-ttl"))
	}
	if cmd.IsSet("ngrok") {
		cfg.Ngrok.Enabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-auth") {
		cfg.Ngrok.AuthToken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.Ngrok.Domain = cmd.String("ngrok-domain")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// app holds the services shared by every command
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	repo    engine.Repository
	memory  *store.MemoryRepository // nil unless the memory store is used
	manager *session.Manager
	service service.GameService

	crons   []*cron.Cron
	closers []func() error
}

// initializeServices wires the store, the locks and the game service
func initializeServices(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := store.OpenPostgres(cfg.Store.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		a.closers = append(a.closers, sqlDB.Close)

		repo, err := store.NewGormRepository(db)
		if err != nil {
			a.close()
			return nil, err
		}
		a.repo = repo

	default:
		memory := store.NewMemoryRepository()
		if path := cfg.Store.SnapshotPath; path != "" {
			if err := memory.LoadSnapshot(path); err != nil {
				return nil, err
			}
			logger.Info("loaded game snapshot", zap.String("path", path))
		}
		a.memory = memory
		a.repo = memory
	}

	var opts []session.ManagerOption
	if cfg.Lock.Driver == config.LockRedis {
		rdb, err := session.ConnectRedis(ctx, cfg.Lock.RedisAddr, cfg.Lock.RedisPassword, cfg.Lock.RedisDB, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)

		locker := session.NewRedisLocker(rdb,
			session.WithLockTTL(time.Duration(cfg.Lock.TTL)),
			session.WithRedisLogger(logger),
		)
		opts = append(opts, session.WithDistributedLocker(locker))
	}
	a.manager = session.NewManager(opts...)

	eng := engine.NewEngine(a.repo, engine.WithLogger(logger))
	a.service = service.NewGameService(a.repo, eng, a.manager, logger)
	return a, nil
}

// startBackground schedules the cleanup sweep and memory snapshots
func (a *app) startBackground() error {
	if spec := a.cfg.Cleanup.Schedule; spec != "" {
		cleaner := session.NewCleaner(a.repo, a.manager, time.Duration(a.cfg.Cleanup.GameTTL), a.logger)
		c, err := cleaner.Schedule(spec)
		if err != nil {
			return err
		}
		a.crons = append(a.crons, c)
	}

	if a.memory != nil && a.cfg.Store.SnapshotPath != "" && a.cfg.Store.SnapshotSchedule != "" {
		c := cron.New()
		_, err := c.AddFunc(a.cfg.Store.SnapshotSchedule, a.saveSnapshot)
		if err != nil {
			return fmt.Errorf("invalid snapshot schedule %q: %w", a.cfg.Store.SnapshotSchedule, err)
		}
		c.Start()
		a.crons = append(a.crons, c)
	}
	return nil
}

func (a *app) saveSnapshot() {
	if a.memory == nil || a.cfg.Store.SnapshotPath == "" {
		return
	}
	if err := a.memory.SaveSnapshot(a.cfg.Store.SnapshotPath); err != nil {
		a.logger.Error("failed to save game snapshot", zap.String("path", a.cfg.Store.SnapshotPath), zap.Error(err))
		return
	}
	a.logger.Debug("saved game snapshot", zap.String("path", a.cfg.Store.SnapshotPath))
}

// close stops scheduled jobs, writes a final snapshot and releases connections
func (a *app) close() {
	for _, c := range a.crons {
		<-c.Stop().Done()
	}
	a.saveSnapshot()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error during shutdown", zap.Error(err))
		}
	}
}

func setup(ctx context.Context, cmd *cli.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	a, err := initializeServices(ctx, cfg, logger)
	if err != nil {
		logger.Sync()
		return nil, err
	}
	return a, nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.logger.Sync()
	defer a.close()

	if err := a.startBackground(); err != nil {
		return err
	}

	a.logger.Info("starting",
		zap.String("app", AppName),
		zap.String("version", Version),
		zap.String("store", a.cfg.Store.Driver),
		zap.String("lock", a.cfg.Lock.Driver),
	)
	return runHTTPServer(ctx, a)
}

// mcpHandler serves MCP JSON-RPC messages over plain HTTP POST
func mcpHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// runHTTPServer serves the API, the WebSocket hub and /mcp until ctx is done.
// With ngrok enabled the same handler is also served through a public tunnel.
func runHTTPServer(ctx context.Context, a *app) error {
	hub := websocket.NewHub(a.logger)
	go hub.Run(ctx)

	apiServer := api.NewServer(a.service, hub, a.logger)

	addr := a.cfg.Addr()
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr))

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", mcpHandler(mcpClient))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		a.logger.Info("HTTP server listening",
			zap.String("api", fmt.Sprintf("http://%s/api", addr)),
			zap.String("websocket", fmt.Sprintf("ws://%s/ws?game=<id>", addr)),
			zap.String("mcp", fmt.Sprintf("http://%s/mcp", addr)),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if a.cfg.Ngrok.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, a, mainRouter)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case runErr = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	wg.Wait()
	a.logger.Info("server stopped")
	return runErr
}

func runNgrok(ctx context.Context, a *app, handler http.Handler) {
	var tunnel ngrokConfig.Tunnel
	if domain := a.cfg.Ngrok.Domain; domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		a.logger.Info("using custom ngrok domain", zap.String("domain", domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(a.cfg.Ngrok.AuthToken))
	if err != nil {
		a.logger.Error("failed to start ngrok tunnel", zap.Error(err))
		return
	}

	// Closing the listener is what stops http.Serve below
	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			a.logger.Warn("failed to close ngrok tunnel", zap.Error(err))
		}
	}()

	url := tun.URL()
	a.logger.Info("ngrok tunnel established",
		zap.String("url", url),
		zap.String("api", url+"/api"),
		zap.String("mcp", url+"/mcp"),
	)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		a.logger.Error("ngrok server error", zap.Error(err))
	}
	a.logger.Info("ngrok tunnel closed")
}

func mcpAction(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.logger.Sync()
	defer a.close()

	return runStdioMCPWithInternalServer(ctx, a, externalAPI)
}

// apiReachable reports whether an API server answers at baseURL
func apiReachable(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runStdioMCPWithInternalServer runs an MCP stdio server. It reuses the API at
// externalURL when one answers; otherwise it serves the API itself on a
// random loopback port.
func runStdioMCPWithInternalServer(ctx context.Context, a *app, externalURL string) error {
	baseURL := externalURL

	if apiReachable(externalURL) {
		a.logger.Info("using external API server for MCP", zap.String("url", externalURL))
	} else {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = fmt.Sprintf("http://%s", listener.Addr().String())

		if err := a.startBackground(); err != nil {
			listener.Close()
			return err
		}

		hub := websocket.NewHub(a.logger)
		go hub.Run(ctx)

		httpServer := &http.Server{Handler: api.NewServer(a.service, hub, a.logger)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("internal HTTP server error", zap.Error(err))
			}
		}()
		defer httpServer.Close()

		a.logger.Info("started internal API server for MCP", zap.String("url", baseURL))
	}

	mcpClient := mcp.NewClient(baseURL)
	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

func simulateAction(ctx context.Context, cmd *cli.Command) error {
	logger, err := newLogger(cmd.Bool("debug"))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	started := time.Now()
	report, err := simulation.Run(ctx, simulation.Options{
		Games:   int(cmd.Int("games")),
		Players: int(cmd.Int("players")),
		Seed:    uint64(cmd.Int("seed")),
	})
	if err != nil {
		return err
	}
	logger.Info("simulation finished",
		zap.Stringer("report", report),
		zap.Duration("elapsed", time.Since(started)),
	)
	report.Print(os.Stdout)
	return nil
}
