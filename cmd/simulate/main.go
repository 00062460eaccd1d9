// Command simulate plays bot games against the real engine and prints how
// long games take, how often each seat wins and which cards come up. Use it
// to sanity check the balance of the board after changing tiles or cards.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/race-board-game/game/engine"
	"github.com/wricardo/race-board-game/game/simulation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "simulate: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "Play bot games and print statistics",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "games", Aliases: []string{"n"}, Value: 1000, Usage: "Number of games to play"},
			&cli.IntFlag{Name: "players", Aliases: []string{"p"}, Value: engine.MaxPlayers, Usage: "Players per game"},
			&cli.IntFlag{Name: "seed", Usage: "Random seed (0 picks one)"},
			&cli.IntFlag{Name: "workers", Usage: "Games played in parallel (0 uses every CPU)"},
			&cli.BoolFlag{Name: "all", Usage: "Compare every table size from 2 to 4 players"},
		},
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	sizes := []int{int(cmd.Int("players"))}
	if cmd.Bool("all") {
		sizes = sizes[:0]
		for n := engine.MinPlayers; n <= engine.MaxPlayers; n++ {
			sizes = append(sizes, n)
		}
	}

	for i, players := range sizes {
		report, err := simulation.Run(ctx, simulation.Options{
			Games:   int(cmd.Int("games")),
			Players: players,
			Seed:    uint64(cmd.Int("seed")),
			Workers: int(cmd.Int("workers")),
		})
		if err != nil {
			return err
		}

		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("=== %d players ===\n", players)
		report.Print(os.Stdout)
	}
	return nil
}
