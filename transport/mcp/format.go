package mcp

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wricardo/race-board-game/game/engine"
	"github.com/wricardo/race-board-game/game/service"
)

// formatTrack draws the track on one line. Seats show as 1-4, shared tiles
// as '+', special tiles as '*' and plain tiles as '.'.
func formatTrack(state *service.GameState) string {
	cells := make([]byte, engine.BoardSize)
	for i := range cells {
		cells[i] = '.'
		if state.Game != nil {
			if _, special := state.Game.SpecialTiles[i]; special {
				cells[i] = '*'
			}
		}
	}

	seen := make(map[int]bool)
	for _, p := range state.Players {
		if p.Position < 0 || p.Position >= engine.BoardSize {
			continue
		}
		if seen[p.Position] {
			cells[p.Position] = '+'
			continue
		}
		seen[p.Position] = true
		cells[p.Position] = byte('1' + p.Order)
	}
	return "[" + string(cells) + "]"
}

func formatGameState(state *service.GameState) string {
	var sb strings.Builder
	if state.Game == nil {
		return "No game data\n"
	}

	game := state.Game
	fmt.Fprintf(&sb, "Game %d [%s]", game.ID, game.Status)
	if game.Status != engine.StatusWaiting {
		fmt.Fprintf(&sb, " turn %d", game.CurrentTurn)
	}
	sb.WriteString("\n")

	switch {
	case state.Winner != nil:
		fmt.Fprintf(&sb, "WINNER: %s\n", state.Winner.Name)
	case state.CurrentPlayer != nil:
		fmt.Fprintf(&sb, "Current player: %s\n", state.CurrentPlayer.Name)
	case game.Status == engine.StatusWaiting:
		fmt.Fprintf(&sb, "Waiting for players (%d/%d joined, need %d to start)\n",
			len(state.Players), engine.MaxPlayers, engine.MinPlayers)
	}

	sb.WriteString("\nTrack: " + formatTrack(state) + "\n")

	if len(state.Players) > 0 {
		sb.WriteString("\nPlayers:\n")
		for _, p := range state.Players {
			marker := " "
			if state.CurrentPlayer != nil && state.CurrentPlayer.ID == p.ID {
				marker = ">"
			}
			fmt.Fprintf(&sb, "%s %d. %-20s tile %2d/%d", marker, p.Order+1, p.Name, p.Position+1, engine.BoardSize)
			if p.SkipNextTurn {
				sb.WriteString("  (loses next turn)")
			}
			sb.WriteString("\n")
		}
	}

	if len(state.Events) > 0 {
		sb.WriteString("\nRecent events:\n")
		n := min(len(state.Events), 5)
		for i := n - 1; i >= 0; i-- {
			fmt.Fprintf(&sb, "  [%s] %s\n", state.Events[i].Kind, state.Events[i].Message)
		}
	}

	return sb.String()
}

func formatRollResult(result *service.RollResult) string {
	var sb strings.Builder

	switch {
	case result.SkippedTurn:
		sb.WriteString("Turn skipped\n")
	case result.DiceValue > 0:
		fmt.Fprintf(&sb, "Rolled a %d\n", result.DiceValue)
	}
	if result.CurrentCard != nil {
		fmt.Fprintf(&sb, "Card drawn: %s\n", *result.CurrentCard)
	}
	if result.ExtraTurn {
		sb.WriteString("Extra turn! Roll again\n")
	}
	sb.WriteString("\n")

	if result.GameState != nil {
		sb.WriteString(formatGameState(result.GameState))
	}
	return sb.String()
}

func formatGameList(games []*service.GameSummary) string {
	if len(games) == 0 {
		return "No games\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d game(s):\n", len(games))
	for _, g := range games {
		fmt.Fprintf(&sb, "- Game %d [%s] turn %d, %d player(s)", g.ID, g.Status, g.CurrentTurn, g.PlayerCount)
		if len(g.Players) > 0 {
			fmt.Fprintf(&sb, ": %s", strings.Join(g.Players, ", "))
		}
		fmt.Fprintf(&sb, " (updated %s)\n", g.UpdatedAt.Format(time.RFC3339))
	}
	return sb.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Events (page %d/%d, %d total):\n",
		history.Page, history.TotalPages, history.TotalEvents)

	for _, e := range history.Events {
		ts := time.UnixMilli(e.Timestamp).UTC().Format("15:04:05")
		fmt.Fprintf(&sb, "  %s [%s] %s\n", ts, e.Kind, e.Message)
	}

	if history.HasNext {
		fmt.Fprintf(&sb, "More events on page %d\n", history.Page+1)
	}
	return sb.String()
}

func formatRules(rules *service.Rules) string {
	var sb strings.Builder
	sb.WriteString(rules.Summary)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Board: %d tiles, goal is tile %d\n", rules.BoardSize, rules.GoalTile)
	fmt.Fprintf(&sb, "Players: %d to %d\n", rules.MinPlayers, rules.MaxPlayers)
	fmt.Fprintf(&sb, "Die: %d sides\n", rules.DiceSides)

	if len(rules.SpecialTiles) > 0 {
		tiles := append([]service.Tile(nil), rules.SpecialTiles...)
		sort.Slice(tiles, func(i, j int) bool { return tiles[i].Number < tiles[j].Number })

		sb.WriteString("\nSpecial tiles:\n")
		for _, t := range tiles {
			fmt.Fprintf(&sb, "  %2d: %s\n", t.Number, t.Label)
		}
	}

	if len(rules.Cards) > 0 {
		sb.WriteString("\nCards:\n")
		for _, c := range rules.Cards {
			fmt.Fprintf(&sb, "  %s: %s\n", c.Name, c.Description)
		}
	}
	return sb.String()
}
