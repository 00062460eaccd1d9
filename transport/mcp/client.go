package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/race-board-game/game/engine"
	"github.com/wricardo/race-board-game/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Race Board Game",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Race Board Game - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
2 to 4 players race along a 30-tile track. Each turn the current player rolls
a six-sided die. The first to reach tile 30 wins.

SPECIAL TILES:
6 advance 2, 11 go back 3, 16 lose next turn, 21 swap with a random player,
26 draw a card (Advance 3, Retreat 2, Play again, Swap with leader).

TYPICAL FLOW:
create_game -> add_player (at least twice) -> start_game -> roll_dice until
someone wins -> reset_game for a rematch.

AVAILABLE TOOLS:
- create_game: Create a game, optionally joining players right away
- list_games: List games
- get_game: Board, players and recent events of one game
- add_player: Join a waiting game
- start_game: Start a game with two or more players
- roll_dice: Roll for whoever's turn it is
- reset_game: Rematch with the same players as a new game
- game_events: Paginated event log
- game_rules: Full rules`),
	)

	c.registerTools()
}

func gameIDOption() mcp.ToolOption {
	return mcp.WithNumber("game_id",
		mcp.Required(),
		mcp.Description("Game ID"),
	)
}

func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.NewTool("create_game",
		mcp.WithDescription("Create a new game in the waiting state"),
		mcp.WithArray("players",
			mcp.Description("Names of players to join immediately (optional)"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithBoolean("start",
			mcp.Description("Start the game after the players joined"),
		),
	), c.handleCreateGame)

	c.mcpServer.AddTool(mcp.NewTool("list_games",
		mcp.WithDescription("List all games, newest first"),
	), c.handleListGames)

	c.mcpServer.AddTool(mcp.NewTool("get_game",
		mcp.WithDescription("Get the board, players and recent events of a game"),
		gameIDOption(),
	), c.handleGetGame)

	c.mcpServer.AddTool(mcp.NewTool("add_player",
		mcp.WithDescription("Add a player to a game that has not started"),
		gameIDOption(),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Player name, 1 to 20 characters"),
		),
	), c.handleAddPlayer)

	c.mcpServer.AddTool(mcp.NewTool("start_game",
		mcp.WithDescription("Start a waiting game; needs at least two players"),
		gameIDOption(),
	), c.handleStartGame)

	c.mcpServer.AddTool(mcp.NewTool("roll_dice",
		mcp.WithDescription("Roll the die for the current player and resolve the turn"),
		gameIDOption(),
	), c.handleRollDice)

	c.mcpServer.AddTool(mcp.NewTool("reset_game",
		mcp.WithDescription("Create a rematch with the same players; the old game is kept"),
		gameIDOption(),
	), c.handleResetGame)

	c.mcpServer.AddTool(mcp.NewTool("game_events",
		mcp.WithDescription("Get the event log of a game with pagination"),
		gameIDOption(),
		mcp.WithNumber("page",
			mcp.Description("Page number (1-based)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Events per page (default 20, max 100)"),
		),
		mcp.WithString("order",
			mcp.Description("asc for oldest first, desc for newest first"),
			mcp.Enum("asc", "desc"),
		),
	), c.handleGameEvents)

	c.mcpServer.AddTool(mcp.NewTool("game_rules",
		mcp.WithDescription("Describe the board, special tiles and cards"),
	), c.handleGameRules)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

func (c *Client) apiCall(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func arguments(request mcp.CallToolRequest) map[string]any {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		return map[string]any{}
	}
	return args
}

// intArg reads a numeric argument; JSON numbers arrive as float64
func intArg(args map[string]any, key string) (int64, bool) {
	switch v := args[key].(type) {
	case float64:
		return int64(v), v == float64(int64(v))
	case int:
		return int64(v), true
	case int64:
		return v, true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func gameIDArg(args map[string]any) (int64, error) {
	id, ok := intArg(args, "game_id")
	if !ok || id <= 0 {
		return 0, fmt.Errorf("game_id must be a positive integer")
	}
	return id, nil
}

type createdGame struct {
	GameID int64              `json:"game_id"`
	Game   *service.GameState `json:"game"`
}

func (c *Client) handleCreateGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	var created createdGame
	if err := c.apiCall(ctx, "POST", "/api/games", nil, &created); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Created game %d\n", created.GameID)

	names, _ := args["players"].([]any)
	for _, n := range names {
		name, _ := n.(string)
		var player engine.Player
		if err := c.apiCall(ctx, "POST", gamePath(created.GameID, "/players"), map[string]string{"name": name}, &player); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("game %d created but %q could not join: %v", created.GameID, name, err)), nil
		}
		fmt.Fprintf(&sb, "Joined: %s (seat %d)\n", player.Name, player.Order+1)
	}

	if start, _ := args["start"].(bool); start {
		var state service.GameState
		if err := c.apiCall(ctx, "POST", gamePath(created.GameID, "/start"), nil, &state); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("game %d created but could not start: %v", created.GameID, err)), nil
		}
		sb.WriteString("\n")
		sb.WriteString(formatGameState(&state))
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleListGames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp struct {
		Games []*service.GameSummary `json:"games"`
		Total int                    `json:"total"`
	}
	if err := c.apiCall(ctx, "GET", "/api/games", nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameList(resp.Games)), nil
}

func (c *Client) handleGetGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gameID, err := gameIDArg(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var state service.GameState
	if err := c.apiCall(ctx, "GET", gamePath(gameID, ""), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleAddPlayer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	gameID, err := gameIDArg(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, _ := args["name"].(string)

	var player engine.Player
	if err := c.apiCall(ctx, "POST", gamePath(gameID, "/players"), map[string]string{"name": name}, &player); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%s joined game %d in seat %d (color %s)\n",
		player.Name, gameID, player.Order+1, player.Color)), nil
}

func (c *Client) handleStartGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gameID, err := gameIDArg(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var state service.GameState
	if err := c.apiCall(ctx, "POST", gamePath(gameID, "/start"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleRollDice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gameID, err := gameIDArg(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result service.RollResult
	if err := c.apiCall(ctx, "POST", gamePath(gameID, "/roll"), nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRollResult(&result)), nil
}

func (c *Client) handleResetGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gameID, err := gameIDArg(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var created createdGame
	if err := c.apiCall(ctx, "POST", gamePath(gameID, "/reset"), nil, &created); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Rematch of game %d created as game %d\n\n", gameID, created.GameID)
	if created.Game != nil {
		sb.WriteString(formatGameState(created.Game))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleGameEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	gameID, err := gameIDArg(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	params := url.Values{}
	if page, ok := intArg(args, "page"); ok && page > 0 {
		params.Set("page", strconv.FormatInt(page, 10))
	}
	if limit, ok := intArg(args, "limit"); ok && limit > 0 {
		params.Set("limit", strconv.FormatInt(limit, 10))
	}
	if order, _ := args["order"].(string); order != "" {
		params.Set("order", order)
	}

	path := gamePath(gameID, "/events")
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleGameRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var rules service.Rules
	if err := c.apiCall(ctx, "GET", "/api/rules", nil, &rules); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRules(&rules)), nil
}

func gamePath(gameID int64, suffix string) string {
	return fmt.Sprintf("/api/games/%d%s", gameID, suffix)
}
