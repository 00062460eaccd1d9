package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wricardo/race-board-game/game/engine"
	"github.com/wricardo/race-board-game/game/service"
)

// Client drives one game through the REST API
type Client struct {
	baseURL string
	gameID  int64
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type createResponse struct {
	GameID int64              `json:"game_id"`
	Game   *service.GameState `json:"game"`
}

// do sends a request and decodes the JSON answer into out
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s failed: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s failed: %s", method, path, resp.Status)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}

func (c *Client) gamePath(suffix string) string {
	return fmt.Sprintf("/api/games/%d%s", c.gameID, suffix)
}

// CreateGame creates a game and makes it the client's current game
func (c *Client) CreateGame(ctx context.Context) (*service.GameState, error) {
	var resp createResponse
	if err := c.do(ctx, "POST", "/api/games", nil, &resp); err != nil {
		return nil, err
	}
	c.gameID = resp.GameID
	return resp.Game, nil
}

// Use switches the client to an existing game
func (c *Client) Use(gameID int64) {
	c.gameID = gameID
}

func (c *Client) GameID() int64 {
	return c.gameID
}

func (c *Client) GetState(ctx context.Context) (*service.GameState, error) {
	var state service.GameState
	if err := c.do(ctx, "GET", c.gamePath(""), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *Client) AddPlayer(ctx context.Context, name string) (*engine.Player, error) {
	var player engine.Player
	if err := c.do(ctx, "POST", c.gamePath("/players"), map[string]string{"name": name}, &player); err != nil {
		return nil, err
	}
	return &player, nil
}

func (c *Client) Start(ctx context.Context) (*service.GameState, error) {
	var state service.GameState
	if err := c.do(ctx, "POST", c.gamePath("/start"), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *Client) Roll(ctx context.Context) (*service.RollResult, error) {
	var result service.RollResult
	if err := c.do(ctx, "POST", c.gamePath("/roll"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Reset starts a rematch and switches the client to the new game
func (c *Client) Reset(ctx context.Context) (*service.GameState, error) {
	var resp createResponse
	if err := c.do(ctx, "POST", c.gamePath("/reset"), nil, &resp); err != nil {
		return nil, err
	}
	c.gameID = resp.GameID
	return resp.Game, nil
}
